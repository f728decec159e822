package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"coinfluence/internal/models"
	"coinfluence/internal/services"
	"coinfluence/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProtectedRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	InitJWT("test-secret")

	db := testutil.NewDB(t)
	testutil.CreateUser(t, db, "admin@example.com", models.UserStatusAdmin, "")
	testutil.CreateUser(t, db, "browser@example.com", models.UserStatusBrowser, testutil.Address(5))

	r := gin.New()
	api := r.Group("/api", AuthMiddleware(), LoadUser(services.NewAuthService(db)))
	api.GET("/me", func(c *gin.Context) {
		user, _ := GetUser(c)
		c.JSON(http.StatusOK, gin.H{"email": user.Email})
	})
	api.GET("/admin", RequireStatus(models.UserStatusAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func call(t *testing.T, r http.Handler, path, token string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	body := map[string]interface{}{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	}
	return w, body
}

func mustToken(t *testing.T, subject, email string) string {
	t.Helper()
	token, err := GenerateToken(subject, email, time.Hour)
	require.NoError(t, err)
	return token
}

func TestAuthMiddleware(t *testing.T) {
	r := newProtectedRouter(t)

	w, body := call(t, r, "/api/me", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Authorization header required", body["error"])

	w, _ = call(t, r, "/api/me", "garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, body = call(t, r, "/api/me", mustToken(t, "", "admin@example.com"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "admin@example.com", body["email"])

	// wallet subjects resolve by address
	w, body = call(t, r, "/api/me", mustToken(t, testutil.Address(5), ""))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "browser@example.com", body["email"])

	w, body = call(t, r, "/api/me", mustToken(t, "uid-unknown", "ghost@example.com"))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "User not found in database", body["error"])
}

func TestAuthorizationHeaderFormat(t *testing.T) {
	r := newProtectedRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Token abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Invalid authorization header format. Expected: Bearer <token>", body["error"])
}

func TestRequireStatus(t *testing.T) {
	r := newProtectedRouter(t)

	w, _ := call(t, r, "/api/admin", mustToken(t, "", "admin@example.com"))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w, body := call(t, r, "/api/admin", mustToken(t, "", "browser@example.com"))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Insufficient permissions", body["error"])
	assert.Equal(t, "admin", body["required"])
	assert.Equal(t, "browser", body["current"])
}
