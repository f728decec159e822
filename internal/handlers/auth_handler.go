package handlers

import (
	"net/http"

	"coinfluence/internal/auth"
	"coinfluence/internal/services"

	"github.com/gin-gonic/gin"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService *services.AuthService
	users       *services.UserService
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(authService *services.AuthService, users *services.UserService) *AuthHandler {
	return &AuthHandler{authService: authService, users: users}
}

// SyncUser creates or refreshes the users row for the token's identity.
// POST /api/auth/sync
func (h *AuthHandler) SyncUser(c *gin.Context) {
	id, _ := auth.GetIdentity(c)

	var req services.SyncUserInput
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	user, created, err := h.authService.SyncUser(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err, "Failed to sync user")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"success": true, "created": created, "user": user})
}

// GetMe returns the signed-in user with permissions.
// GET /api/auth/me
func (h *AuthHandler) GetMe(c *gin.Context) {
	user, _ := auth.GetUser(c)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user":    user,
		"status":  h.users.Current(user),
	})
}
