package handlers

import (
	"net/http"

	"coinfluence/internal/models"
	"coinfluence/internal/repository"
	"coinfluence/internal/services"

	"github.com/gin-gonic/gin"
)

// InfluencerHandler serves the influencer directory
type InfluencerHandler struct {
	influencers *services.InfluencerService
}

func NewInfluencerHandler(influencers *services.InfluencerService) *InfluencerHandler {
	return &InfluencerHandler{influencers: influencers}
}

// List GET /api/influencer?status=&category=&search=&sort=&order=&limit=&offset=
func (h *InfluencerHandler) List(c *gin.Context) {
	filter := repository.InfluencerFilter{
		Status:   c.Query("status"),
		Category: c.Query("category"),
		Search:   c.Query("search"),
		SortBy:   c.Query("sort"),
		Order:    c.Query("order"),
		Limit:    queryInt(c, "limit", 20),
		Offset:   queryInt(c, "offset", 0),
	}

	influencers, total, err := h.influencers.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err, "Failed to fetch influencers")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    influencers,
		"total":   total,
		"limit":   filter.Limit,
		"offset":  filter.Offset,
	})
}

// Get GET /api/influencer/:id
func (h *InfluencerHandler) Get(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	inf, err := h.influencers.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Failed to fetch influencer")
		return
	}
	respondOK(c, inf)
}

// GetByHandle GET /api/influencer/handle/:handle; the leading @ is optional
func (h *InfluencerHandler) GetByHandle(c *gin.Context) {
	inf, err := h.influencers.GetByHandle(c.Request.Context(), c.Param("handle"))
	if err != nil {
		respondError(c, err, "Failed to fetch influencer")
		return
	}
	respondOK(c, inf)
}

// GetByAddress GET /api/influencer/address/:address
func (h *InfluencerHandler) GetByAddress(c *gin.Context) {
	inf, err := h.influencers.GetByAddress(c.Request.Context(), c.Param("address"))
	if err != nil {
		respondError(c, err, "Failed to fetch influencer")
		return
	}
	respondOK(c, inf)
}

// Create POST /api/influencer
func (h *InfluencerHandler) Create(c *gin.Context) {
	var req models.CreateInfluencerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	inf, err := h.influencers.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "Failed to create influencer")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": inf})
}

// Update PUT /api/influencer/:id with a partial JSON object
func (h *InfluencerHandler) Update(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var changes map[string]interface{}
	if err := c.ShouldBindJSON(&changes); err != nil {
		badRequest(c, err)
		return
	}
	inf, err := h.influencers.Update(c.Request.Context(), id, changes)
	if err != nil {
		respondError(c, err, "Failed to update influencer")
		return
	}
	respondOK(c, inf)
}

// Delete DELETE /api/influencer/:id
func (h *InfluencerHandler) Delete(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.influencers.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err, "Failed to delete influencer")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Influencer deleted"})
}
