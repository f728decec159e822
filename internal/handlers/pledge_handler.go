package handlers

import (
	"net/http"

	"coinfluence/internal/models"
	"coinfluence/internal/services"

	"github.com/gin-gonic/gin"
)

// PledgeHandler serves pledge submission, withdrawal and listings
type PledgeHandler struct {
	pledges     *services.PledgeService
	influencers *services.InfluencerService
}

func NewPledgeHandler(pledges *services.PledgeService, influencers *services.InfluencerService) *PledgeHandler {
	return &PledgeHandler{pledges: pledges, influencers: influencers}
}

// CreateMockPledge records a pledge without an on-chain transfer.
// POST /api/pledge/mock
func (h *PledgeHandler) CreateMockPledge(c *gin.Context) {
	var req models.PledgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.pledges.Submit(c.Request.Context(), services.PledgeInput{
		UserAddress:       req.UserAddress,
		InfluencerAddress: req.InfluencerAddress,
		Amount:            req.Amount,
		Currency:          req.Currency,
		TxHash:            req.TxHash,
		IdempotencyKey:    c.GetHeader(IdempotencyHeader),
	})
	if err != nil {
		respondError(c, err, "Failed to create pledge")
		return
	}

	if res.Replayed {
		c.Header("Idempotent-Replayed", "true")
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "pledge": res.Pledge})
}

// Withdraw releases an active pledge before approval.
// POST /api/pledge/withdraw
func (h *PledgeHandler) Withdraw(c *gin.Context) {
	var req models.WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	pledge, err := h.pledges.Withdraw(c.Request.Context(), req.UserAddress, req.InfluencerAddress)
	if err != nil {
		respondError(c, err, "Failed to withdraw pledge")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "pledge": pledge})
}

// GetUserPledges GET /api/pledge/user/:address/pledges
func (h *PledgeHandler) GetUserPledges(c *gin.Context) {
	pledges, err := h.pledges.ListByUser(c.Request.Context(), c.Param("address"))
	if err != nil {
		respondError(c, err, "Failed to fetch pledges")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "pledges": pledges, "total": len(pledges)})
}

// GetInfluencerPledges GET /api/pledge/influencer/:address
func (h *PledgeHandler) GetInfluencerPledges(c *gin.Context) {
	summary, err := h.pledges.ListByInfluencer(c.Request.Context(), c.Param("address"))
	if err != nil {
		respondError(c, err, "Failed to fetch influencer pledges")
		return
	}
	respondOK(c, summary)
}

// GetStats GET /api/pledge/stats
func (h *PledgeHandler) GetStats(c *gin.Context) {
	stats, err := h.pledges.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to fetch pledge stats")
		return
	}
	respondOK(c, stats)
}

// SetupInfluencer opens pledging for a wallet.
// POST /api/pledge/admin/setup-influencer
func (h *PledgeHandler) SetupInfluencer(c *gin.Context) {
	var req models.SetupPledgingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	inf, err := h.influencers.SetupPledging(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "Failed to set up influencer")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "influencer": inf})
}
