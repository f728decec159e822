package handlers

import (
	"net/http"

	"coinfluence/internal/auth"
	"coinfluence/internal/models"
	"coinfluence/internal/repository"
	"coinfluence/internal/services"

	"github.com/gin-gonic/gin"
)

// AdminHandler serves the admin dashboard: approvals, token launch,
// liquidity and user management
type AdminHandler struct {
	approvals *services.ApprovalService
	tokens    *services.TokenService
	liquidity *services.LiquidityService
	dashboard *services.DashboardService
	users     *services.UserService
}

func NewAdminHandler(
	approvals *services.ApprovalService,
	tokens *services.TokenService,
	liquidity *services.LiquidityService,
	dashboard *services.DashboardService,
	users *services.UserService,
) *AdminHandler {
	return &AdminHandler{
		approvals: approvals,
		tokens:    tokens,
		liquidity: liquidity,
		dashboard: dashboard,
		users:     users,
	}
}

func adminOf(c *gin.Context) *models.User {
	user, _ := auth.GetUser(c)
	if user == nil {
		return &models.User{}
	}
	return user
}

// ApproveInfluencer approves, or with {"approved": false} rejects, an influencer.
// POST /api/dashboard/admin/influencers/:id/approve
func (h *AdminHandler) ApproveInfluencer(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		Approved *bool  `json:"approved"`
		Reason   string `json:"reason"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	admin := adminOf(c)
	if req.Approved != nil && !*req.Approved {
		inf, err := h.approvals.Reject(c.Request.Context(), id, admin.ID, req.Reason)
		if err != nil {
			respondError(c, err, "Failed to reject influencer")
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Influencer rejected", "influencer": inf})
		return
	}

	inf, err := h.approvals.Approve(c.Request.Context(), id, admin.ID)
	if err != nil {
		respondError(c, err, "Failed to approve influencer")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Influencer approved", "influencer": inf})
}

// PrepareToken returns the deployment parameters for an approved influencer.
// GET /api/dashboard/admin/influencers/:id/prepare-token
func (h *AdminHandler) PrepareToken(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	plan, err := h.tokens.Prepare(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Failed to prepare token")
		return
	}
	respondOK(c, plan)
}

// CreateToken records a token deployed on-chain and marks the influencer live.
// POST /api/dashboard/admin/influencers/:id/create-token
func (h *AdminHandler) CreateToken(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req models.CreateTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.tokens.Create(c.Request.Context(), services.TokenCreationInput{
		InfluencerID:   id,
		TokenAddress:   req.TokenAddress,
		TxHash:         req.TxHash,
		TokenName:      req.TokenName,
		TokenSymbol:    req.TokenSymbol,
		TotalSupply:    req.TotalSupply,
		Network:        req.Network,
		CreatedBy:      adminOf(c).Email,
		IdempotencyKey: c.GetHeader(IdempotencyHeader),
	})
	if err != nil {
		respondError(c, err, "Failed to create token")
		return
	}

	if res.Replayed {
		c.Header("Idempotent-Replayed", "true")
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"tokenId":      res.TokenID,
		"tokenAddress": res.TokenAddress,
		"initialPrice": res.InitialPrice,
		"network":      res.Network,
		"influencer":   res.Influencer,
	})
}

// CreateLiquidity runs the pool-creation script for an influencer's token.
// POST /api/dashboard/admin/influencers/:id/liquidity
func (h *AdminHandler) CreateLiquidity(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req models.CreateLiquidityRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	result, err := h.liquidity.CreateLiquidity(c.Request.Context(), services.LiquidityRequest{
		InfluencerID:    id,
		Network:         req.Network,
		ETHAmount:       req.ETHAmount,
		TokenPercentage: req.TokenPercentage,
	})
	if err != nil {
		respondError(c, err, "Failed to create liquidity pool")
		return
	}
	respondOK(c, result)
}

// GetLiquidity GET /api/dashboard/admin/influencers/:id/liquidity
func (h *AdminHandler) GetLiquidity(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	status, err := h.liquidity.Status(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Failed to fetch liquidity status")
		return
	}
	respondOK(c, status)
}

// GetStats GET /api/dashboard/admin/stats
func (h *AdminHandler) GetStats(c *gin.Context) {
	stats, err := h.dashboard.AdminStats(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to fetch admin stats")
		return
	}
	respondOK(c, stats)
}

// GetPendingApprovals GET /api/dashboard/admin/pending-approvals
func (h *AdminHandler) GetPendingApprovals(c *gin.Context) {
	pending, err := h.approvals.PendingApprovals(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to fetch pending approvals")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": pending, "total": len(pending)})
}

// GetRecentActivity GET /api/dashboard/admin/recent-activity?limit=
func (h *AdminHandler) GetRecentActivity(c *gin.Context) {
	activity, err := h.dashboard.RecentActivity(c.Request.Context(), queryInt(c, "limit", 20))
	if err != nil {
		respondError(c, err, "Failed to fetch recent activity")
		return
	}
	respondOK(c, activity)
}

// GetUsers GET /api/dashboard/admin/users?status=&search=&limit=&offset=
func (h *AdminHandler) GetUsers(c *gin.Context) {
	filter := repository.UserFilter{
		Status: c.Query("status"),
		Search: c.Query("search"),
		Limit:  queryInt(c, "limit", 50),
		Offset: queryInt(c, "offset", 0),
	}
	users, total, err := h.users.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err, "Failed to fetch users")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    users,
		"total":   total,
		"limit":   filter.Limit,
		"offset":  filter.Offset,
	})
}

// UpdateUserStatus PUT /api/dashboard/admin/users/:id/status
func (h *AdminHandler) UpdateUserStatus(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status" binding:"required"`
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	change, err := h.users.SetStatusByID(c.Request.Context(), id, models.UserStatus(req.Status), adminOf(c).Email, req.Reason)
	if err != nil {
		respondError(c, err, "Failed to update user status")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"user":       change.User,
		"oldStatus":  change.OldStatus,
		"changed":    change.Changed,
		"influencer": change.Influencer,
	})
}
