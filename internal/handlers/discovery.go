package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"solarview/internal/discovery"
	"solarview/internal/models"
)

const (
	statusStarted = "started"
	statusStopped = "stopped"
	statusCleared = "cleared"

	errStartDiscovery = "failed to start discovery"
)

// @Summary      Start discovery
// @Description  Opens the transient state-only subscription for the setup flow.
// @Tags         discovery
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /api/v1/discovery/start [post]
func (h *Handler) startDiscovery(c *gin.Context) {
	// The session outlives this request; it ends on an explicit stop.
	if err := h.services.Discovery.Start(context.Background()); err != nil {
		if errors.Is(err, discovery.ErrAlreadyRunning) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		h.logAndJSONError(c, http.StatusInternalServerError, errStartDiscovery, "discovery_start_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusStarted})
}

// @Summary      Stop discovery
// @Tags         discovery
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /api/v1/discovery/stop [post]
func (h *Handler) stopDiscovery(c *gin.Context) {
	h.services.Discovery.Stop()
	c.JSON(http.StatusOK, gin.H{"status": statusStopped})
}

// @Summary      Clear discovered panels
// @Tags         discovery
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /api/v1/discovery/clear [post]
func (h *Handler) clearDiscovery(c *gin.Context) {
	h.services.Discovery.Clear()
	c.JSON(http.StatusOK, gin.H{"status": statusCleared})
}

// @Summary      List discovered panels
// @Tags         discovery
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, running, panels"
// @Router       /api/v1/discovery/panels [get]
func (h *Handler) getDiscoveredPanels(c *gin.Context) {
	panels := h.services.Discovery.Panels()
	c.JSON(http.StatusOK, gin.H{
		"count":   len(panels),
		"running": h.services.Discovery.Running(),
		"panels":  panels,
	})
}

// matchRequest optionally supplies the panels to classify; when omitted the
// current discovery session's panels are used.
type matchRequest struct {
	DiscoveredPanels []models.DiscoveredPanel `json:"discovered_panels"`
}

// matchSummary totals a batch classification.
type matchSummary struct {
	Total                int `json:"total"`
	Matched              int `json:"matched"`
	Unmatched            int `json:"unmatched"`
	PossibleWiringIssues int `json:"possible_wiring_issues"`
}

// @Summary      Match discovered panels against topology
// @Description  Classifies each discovered panel: known serial, topology suggestion, wiring issue or unmatched.
// @Tags         discovery
// @Accept       json
// @Produce      json
// @Param        body  body   matchRequest  false  "Panels to classify (defaults to the current session)"
// @Success      200   {object}  map[string]interface{}  "results, summary"
// @Failure      400   {object}  map[string]string
// @Router       /api/v1/discovery/match [post]
func (h *Handler) matchDiscovered(c *gin.Context) {
	var req matchRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
			return
		}
	}
	panels := req.DiscoveredPanels
	if panels == nil {
		panels = h.services.Discovery.Panels()
	}

	systems := h.services.Panels.SystemTopologies()
	known := h.services.Panels.KnownPanels()
	translations := h.services.Panels.Translations()

	results := make([]models.MatchResult, 0, len(panels))
	var sum matchSummary
	for _, p := range panels {
		res := discovery.MatchDiscoveredPanel(p, systems, known, translations)
		switch res.Status {
		case models.MatchStatusMatched:
			sum.Matched++
		case models.MatchStatusWiringIssue:
			sum.PossibleWiringIssues++
		default:
			sum.Unmatched++
		}
		results = append(results, res)
	}
	sum.Total = len(results)

	c.JSON(http.StatusOK, gin.H{
		"results": results,
		"summary": sum,
	})
}
