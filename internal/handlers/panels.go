package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"solarview/internal/models"
)

const (
	statusOK       = "ok"
	statusReloaded = "reloaded"

	errReloadTopology = "failed to reload topology"
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  statusOK,
		"viewers": h.hub.ConnCount(),
	})
}

// @Summary      Current panel states
// @Description  REST fallback for the push channel; same shape as a state broadcast.
// @Tags         panels
// @Produce      json
// @Success      200  {object}  models.ViewMessage
// @Router       /api/v1/panels [get]
func (h *Handler) getPanels(c *gin.Context) {
	c.JSON(http.StatusOK, models.ViewMessage{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Panels:    h.services.Panels.Snapshot(),
	})
}

// @Summary      Force topology reload
// @Description  Reloads the topology file and broadcasts the result to all viewers.
// @Tags         panels
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status, panels"
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/reload [post]
func (h *Handler) reloadTopology(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.services.Panels.Load(); err != nil {
		h.services.EventLog.Record(ctx, models.EventConfigError, "topology reload failed", gin.H{"error": err.Error()})
		h.logAndJSONError(c, http.StatusInternalServerError, errReloadTopology, "topology_reload_failed", err)
		return
	}

	panels := h.services.Panels.Snapshot()
	h.hub.Broadcast(panels)
	h.services.EventLog.Record(ctx, models.EventReload, "topology reloaded on request", gin.H{"panels": len(panels)})

	c.JSON(http.StatusOK, gin.H{
		"status": statusReloaded,
		"panels": len(panels),
	})
}
