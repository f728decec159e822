package handlers

import (
	"net/http"

	"coinfluence/internal/auth"
	"coinfluence/internal/services"

	"github.com/gin-gonic/gin"
)

// StatusHandler exposes the signed-in user's authorization level
type StatusHandler struct {
	users *services.UserService
}

func NewStatusHandler(users *services.UserService) *StatusHandler {
	return &StatusHandler{users: users}
}

// GetCurrent GET /api/status/current
func (h *StatusHandler) GetCurrent(c *gin.Context) {
	user, _ := auth.GetUser(c)
	respondOK(c, h.users.Current(user))
}

// PromoteToInvestor upgrades a browser who has pledged.
// POST /api/status/promote-to-investor
func (h *StatusHandler) PromoteToInvestor(c *gin.Context) {
	var req struct {
		WalletAddress string `json:"walletAddress"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	user, _ := auth.GetUser(c)
	change, err := h.users.PromoteToInvestor(c.Request.Context(), user, req.WalletAddress)
	if err != nil {
		respondError(c, err, "Failed to promote user")
		return
	}

	message := "Already at investor level or above"
	if change.Changed {
		message = "Promoted to investor"
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": message,
		"status":  h.users.Current(change.User),
	})
}
