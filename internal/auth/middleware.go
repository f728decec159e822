package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"coinfluence/internal/models"
	"coinfluence/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	identityKey = "identity"
	userKey     = "user"
)

var log = logrus.WithField("component", "auth")

// UserResolver loads the users row behind a verified identity
type UserResolver interface {
	ResolveUser(ctx context.Context, id services.Identity) (*models.User, error)
}

// AuthMiddleware validates JWT tokens and protects routes
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header required",
			})
			return
		}

		// Extract token from "Bearer <token>" format
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid authorization header format. Expected: Bearer <token>",
			})
			return
		}

		claims, err := ValidateToken(parts[1])
		if err != nil {
			log.WithError(err).Debug("Token validation failed")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "Invalid or expired token",
				"details": err.Error(),
			})
			return
		}

		c.Set(identityKey, services.Identity{Subject: claims.Subject, Email: claims.Email})
		c.Next()
	}
}

// LoadUser resolves the authenticated identity to a users row. Requests whose
// token is valid but whose user was never synced get 404.
func LoadUser(resolver UserResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := GetIdentity(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		user, err := resolver.ResolveUser(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, services.ErrUserNotFound) {
				c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "User not found in database"})
				return
			}
			log.WithError(err).Error("Failed to load user")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":   "Failed to load user",
				"details": err.Error(),
			})
			return
		}

		c.Set(userKey, user)
		c.Next()
	}
}

// RequireStatus admits users at or above the given level. Must run after
// LoadUser.
func RequireStatus(required models.UserStatus) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := GetUser(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}
		if user.Status.Level() < required.Level() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":    "Insufficient permissions",
				"required": required,
				"current":  user.Status,
			})
			return
		}
		c.Next()
	}
}

// GetIdentity retrieves the verified token identity from the context
func GetIdentity(c *gin.Context) (services.Identity, bool) {
	v, exists := c.Get(identityKey)
	if !exists {
		return services.Identity{}, false
	}
	id, ok := v.(services.Identity)
	return id, ok
}

// GetUser retrieves the loaded user from the context
func GetUser(c *gin.Context) (*models.User, bool) {
	v, exists := c.Get(userKey)
	if !exists {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok
}
