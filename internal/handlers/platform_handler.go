package handlers

import (
	"net/http"

	"coinfluence/internal/networks"
	"coinfluence/internal/services"

	"github.com/gin-gonic/gin"
)

// PlatformHandler serves public platform figures and the network registry
type PlatformHandler struct {
	dashboard *services.DashboardService
	networks  *networks.Registry
}

func NewPlatformHandler(dashboard *services.DashboardService, nets *networks.Registry) *PlatformHandler {
	return &PlatformHandler{dashboard: dashboard, networks: nets}
}

// GetStats GET /api/platform/stats
func (h *PlatformHandler) GetStats(c *gin.Context) {
	stats, err := h.dashboard.PlatformStats(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to fetch platform stats")
		return
	}
	respondOK(c, stats)
}

// GetNetworks GET /api/contract/networks
func (h *PlatformHandler) GetNetworks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"networks":       h.networks.List(),
		"defaultNetwork": h.networks.Default().ID,
	})
}
