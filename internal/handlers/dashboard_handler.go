package handlers

import (
	"net/http"

	"coinfluence/internal/auth"
	"coinfluence/internal/services"

	"github.com/gin-gonic/gin"
)

// DashboardHandler serves the investor and influencer dashboards
type DashboardHandler struct {
	dashboard *services.DashboardService
}

func NewDashboardHandler(dashboard *services.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

// GetPortfolio GET /api/dashboard/investor/portfolio
func (h *DashboardHandler) GetPortfolio(c *gin.Context) {
	user, _ := auth.GetUser(c)
	portfolio, err := h.dashboard.InvestorPortfolio(c.Request.Context(), user)
	if err != nil {
		respondError(c, err, "Failed to fetch portfolio")
		return
	}
	respondOK(c, portfolio)
}

// GetInvestorPledges GET /api/dashboard/investor/pledges
func (h *DashboardHandler) GetInvestorPledges(c *gin.Context) {
	user, _ := auth.GetUser(c)
	pledges, err := h.dashboard.InvestorPledges(c.Request.Context(), user)
	if err != nil {
		respondError(c, err, "Failed to fetch pledges")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": pledges, "total": len(pledges)})
}

// GetInfluencerStats GET /api/dashboard/influencer/stats
func (h *DashboardHandler) GetInfluencerStats(c *gin.Context) {
	user, _ := auth.GetUser(c)
	stats, err := h.dashboard.InfluencerStats(c.Request.Context(), user)
	if err != nil {
		respondError(c, err, "Failed to fetch influencer stats")
		return
	}
	respondOK(c, stats)
}

// GetPledgers GET /api/dashboard/influencer/pledgers
func (h *DashboardHandler) GetPledgers(c *gin.Context) {
	user, _ := auth.GetUser(c)
	pledgers, err := h.dashboard.InfluencerPledgers(c.Request.Context(), user)
	if err != nil {
		respondError(c, err, "Failed to fetch pledgers")
		return
	}
	respondOK(c, pledgers)
}
