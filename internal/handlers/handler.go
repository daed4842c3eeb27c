package handlers

import (
	"solarview/internal/logger"
	"solarview/internal/push"
	"solarview/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services, the push manager and logging.
type Handler struct {
	services *service.Service
	hub      *push.Manager
	log      *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, hub *push.Manager, log *logger.Logger) *Handler {
	return &Handler{services: services, hub: hub, log: log}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health endpoint
	router.GET("/health", h.health)

	// Versioned API endpoints
	h.registerAPIRoutes(router)

	// Push channels (HTTP upgrade) — same port
	router.GET("/ws/panels", h.wsPanels)
	router.GET("/ws/discovery", h.wsDiscovery)

	return router
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		api.GET("/panels", h.getPanels)
		api.POST("/reload", h.reloadTopology)
		api.GET("/events", h.getEvents)
		h.registerDiscoveryRoutes(api)
	}
}

func (h *Handler) registerDiscoveryRoutes(api *gin.RouterGroup) {
	disc := api.Group("/discovery")
	{
		disc.POST("/start", h.startDiscovery)
		disc.POST("/stop", h.stopDiscovery)
		disc.POST("/clear", h.clearDiscovery)
		disc.GET("/panels", h.getDiscoveredPanels)
		disc.POST("/match", h.matchDiscovered)
	}
}
