package handlers

import (
	"coinfluence/internal/services"

	"github.com/gin-gonic/gin"
)

// MarketDataHandler serves quotes, charts and token analytics
type MarketDataHandler struct {
	market *services.MarketDataService
}

func NewMarketDataHandler(market *services.MarketDataService) *MarketDataHandler {
	return &MarketDataHandler{market: market}
}

// GetQuote GET /api/quotes/:tokenId
func (h *MarketDataHandler) GetQuote(c *gin.Context) {
	id, ok := idParam(c, "tokenId")
	if !ok {
		return
	}
	quote, err := h.market.Quote(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Failed to fetch quote")
		return
	}
	respondOK(c, quote)
}

// GetMiniQuote GET /api/quotes/:tokenId/mini
func (h *MarketDataHandler) GetMiniQuote(c *gin.Context) {
	id, ok := idParam(c, "tokenId")
	if !ok {
		return
	}
	quote, err := h.market.MiniQuote(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Failed to fetch quote")
		return
	}
	respondOK(c, quote)
}

// GetChart GET /api/chart/:tokenId/:range; unknown ranges fall back to 1D
func (h *MarketDataHandler) GetChart(c *gin.Context) {
	id, ok := idParam(c, "tokenId")
	if !ok {
		return
	}
	chart, err := h.market.Chart(c.Request.Context(), id, c.Param("range"))
	if err != nil {
		respondError(c, err, "Failed to fetch chart")
		return
	}
	respondOK(c, chart)
}

// GetPerformance GET /api/analytics/:tokenId/performance
func (h *MarketDataHandler) GetPerformance(c *gin.Context) {
	id, ok := idParam(c, "tokenId")
	if !ok {
		return
	}
	perf, err := h.market.Performance(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Failed to fetch performance")
		return
	}
	respondOK(c, perf)
}

// GetStatistics GET /api/analytics/:tokenId/statistics
func (h *MarketDataHandler) GetStatistics(c *gin.Context) {
	id, ok := idParam(c, "tokenId")
	if !ok {
		return
	}
	stats, err := h.market.Statistics(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Failed to fetch statistics")
		return
	}
	respondOK(c, stats)
}

// GetProfile GET /api/analytics/:tokenId/profile
func (h *MarketDataHandler) GetProfile(c *gin.Context) {
	id, ok := idParam(c, "tokenId")
	if !ok {
		return
	}
	profile, err := h.market.Profile(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Failed to fetch profile")
		return
	}
	respondOK(c, profile)
}

// GetNews GET /api/analytics/:tokenId/news?limit=&offset=
func (h *MarketDataHandler) GetNews(c *gin.Context) {
	id, ok := idParam(c, "tokenId")
	if !ok {
		return
	}
	page, err := h.market.News(c.Request.Context(), id, queryInt(c, "limit", 10), queryInt(c, "offset", 0))
	if err != nil {
		respondError(c, err, "Failed to fetch news")
		return
	}
	respondOK(c, page)
}
