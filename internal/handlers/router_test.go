package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"coinfluence/internal/auth"
	"coinfluence/internal/middleware"
	"coinfluence/internal/models"
	"coinfluence/internal/networks"
	"coinfluence/internal/services"
	"coinfluence/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type testServer struct {
	t      *testing.T
	db     *gorm.DB
	router *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	auth.InitJWT("handler-test-secret")

	db := testutil.NewDB(t)
	nets := networks.Defaults()
	rate := decimal.NewFromInt(2000)

	router := NewRouter(Services{
		Auth:        services.NewAuthService(db),
		Users:       services.NewUserService(db),
		Influencers: services.NewInfluencerService(db),
		Pledges:     services.NewPledgeService(db, nil),
		Approvals:   services.NewApprovalService(db, nil),
		Tokens:      services.NewTokenService(db, nets, rate, nil),
		Liquidity:   services.NewLiquidityService(db, nets, services.LiquidityOptions{Timeout: time.Second}, nil),
		Dashboard:   services.NewDashboardService(db, rate, decimal.NewFromInt(5)),
		MarketData:  services.NewMarketDataService(db),
		Networks:    nets,
	}, RouterOptions{RateLimit: middleware.RateLimiterConfig{RequestsPerSecond: 1000, Burst: 1000}})

	return &testServer{t: t, db: db, router: router}
}

type response struct {
	Code   int
	Header http.Header
	Body   map[string]interface{}
}

func (s *testServer) do(method, path, token string, body interface{}, headers ...string) response {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	out := response{Code: w.Code, Header: w.Header(), Body: map[string]interface{}{}}
	if w.Body.Len() > 0 {
		require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &out.Body), w.Body.String())
	}
	return out
}

func (s *testServer) tokenFor(email string, status models.UserStatus, wallet string) string {
	s.t.Helper()
	testutil.CreateUser(s.t, s.db, email, status, wallet)
	token, err := auth.GenerateToken("", email, time.Hour)
	require.NoError(s.t, err)
	return token
}

func (s *testServer) pledge(user, influencer int, amount, key string) response {
	s.t.Helper()
	return s.do(http.MethodPost, "/api/pledge/mock", "", gin.H{
		"userAddress":       testutil.Address(user),
		"influencerAddress": testutil.Address(influencer),
		"amount":            amount,
		"currency":          "ETH",
	}, IdempotencyHeader, key)
}

func data(t *testing.T, r response) map[string]interface{} {
	t.Helper()
	d, ok := r.Body["data"].(map[string]interface{})
	require.True(t, ok, "response has no data object: %v", r.Body)
	return d
}

func TestHealthAndNetworks(t *testing.T) {
	s := newTestServer(t)

	res := s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "ok", res.Body["status"])
	assert.NotEmpty(t, res.Header.Get(middleware.RequestIDHeader))

	res = s.do(http.MethodGet, "/api/contract/networks", "", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, networks.BaseSepolia, res.Body["defaultNetwork"])
	assert.Len(t, res.Body["networks"], 2)
}

func TestMockPledgeEndpoint(t *testing.T) {
	s := newTestServer(t)
	testutil.CreateInfluencer(t, s.db, 1, "5", "0")

	res := s.pledge(100, 1, "1.5", "key-1")
	require.Equal(t, http.StatusOK, res.Code, res.Body)
	assert.Equal(t, true, res.Body["success"])
	pledge := res.Body["pledge"].(map[string]interface{})
	assert.Equal(t, "1.5", pledge["ethAmount"])
	assert.Equal(t, testutil.Address(100), pledge["userAddress"])

	replay := s.pledge(100, 1, "1.5", "key-1")
	require.Equal(t, http.StatusOK, replay.Code)
	assert.Equal(t, "true", replay.Header.Get("Idempotent-Replayed"))
	assert.Equal(t, pledge["id"], replay.Body["pledge"].(map[string]interface{})["id"])

	conflict := s.pledge(100, 1, "2", "key-1")
	assert.Equal(t, http.StatusConflict, conflict.Code)

	missing := s.pledge(100, 1, "1", "")
	assert.Equal(t, http.StatusBadRequest, missing.Code)

	invalid := s.pledge(100, 1, "-1", "key-2")
	assert.Equal(t, http.StatusBadRequest, invalid.Code)

	unknown := s.pledge(100, 99, "1", "key-3")
	assert.Equal(t, http.StatusNotFound, unknown.Code)

	list := s.do(http.MethodGet, fmt.Sprintf("/api/pledge/user/%s/pledges", testutil.Address(100)), "", nil)
	require.Equal(t, http.StatusOK, list.Code)
	assert.EqualValues(t, 1, list.Body["total"])
}

func TestRequestBodiesRejectMalformedIdentifiers(t *testing.T) {
	s := newTestServer(t)
	inf := testutil.CreateInfluencer(t, s.db, 1, "5", "0")
	admin := s.tokenFor("admin@example.com", models.UserStatusAdmin, "")

	res := s.do(http.MethodPost, "/api/pledge/mock", "", gin.H{
		"userAddress":       "0x123",
		"influencerAddress": testutil.Address(1),
		"amount":            "1",
		"currency":          "ETH",
	}, IdempotencyHeader, "k")
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body["details"], "eth_addr")

	res = s.do(http.MethodPost, "/api/pledge/mock", "", gin.H{
		"userAddress":       testutil.Address(100),
		"influencerAddress": testutil.Address(1),
		"amount":            "1",
		"currency":          "ETH",
		"txHash":            "0xdeadbeef",
	}, IdempotencyHeader, "k")
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body["details"], "TxHash")

	res = s.do(http.MethodPost, "/api/pledge/withdraw", "", gin.H{
		"userAddress":       testutil.Address(100),
		"influencerAddress": "influencer",
	})
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = s.do(http.MethodPost, fmt.Sprintf("/api/dashboard/admin/influencers/%d/create-token", inf.ID), admin,
		gin.H{"tokenAddress": testutil.Address(500), "txHash": "0x" + strings.Repeat("zz", 32)},
		IdempotencyHeader, "launch")
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "Invalid request body", res.Body["error"])
}

func TestInfluencerHandleNormalization(t *testing.T) {
	s := newTestServer(t)
	inf := testutil.CreateInfluencer(t, s.db, 1, "1", "0")

	bare := s.do(http.MethodGet, "/api/influencer/handle/influencer1", "", nil)
	at := s.do(http.MethodGet, "/api/influencer/handle/@influencer1", "", nil)
	require.Equal(t, http.StatusOK, bare.Code)
	require.Equal(t, http.StatusOK, at.Code)
	assert.EqualValues(t, inf.ID, data(t, bare)["id"])
	assert.Equal(t, data(t, bare)["id"], data(t, at)["id"])

	res := s.do(http.MethodGet, "/api/influencer/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = s.do(http.MethodGet, "/api/influencer/404", "", nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
	assert.Equal(t, "influencer not found", res.Body["error"])
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	s := newTestServer(t)
	inf := testutil.CreateInfluencer(t, s.db, 1, "2", "0")
	browser := s.tokenFor("browser@example.com", models.UserStatusBrowser, "")
	approvePath := fmt.Sprintf("/api/dashboard/admin/influencers/%d/approve", inf.ID)

	res := s.do(http.MethodPost, approvePath, "", nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	res = s.do(http.MethodPost, approvePath, browser, nil)
	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.Equal(t, "Insufficient permissions", res.Body["error"])
	assert.Equal(t, "admin", res.Body["required"])
	assert.Equal(t, "browser", res.Body["current"])

	res = s.do(http.MethodPut, fmt.Sprintf("/api/influencer/%d", inf.ID), browser, gin.H{"name": "x"})
	assert.Equal(t, http.StatusForbidden, res.Code)
}

func TestApproveAndLaunchOverHTTP(t *testing.T) {
	s := newTestServer(t)
	inf := testutil.CreateInfluencer(t, s.db, 1, "2", "0")
	admin := s.tokenFor("admin@example.com", models.UserStatusAdmin, "")
	base := fmt.Sprintf("/api/dashboard/admin/influencers/%d", inf.ID)

	res := s.do(http.MethodPost, base+"/approve", admin, nil)
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "pledge threshold not met", res.Body["error"])

	require.Equal(t, http.StatusOK, s.pledge(100, 1, "2", "p-1").Code)

	pending := s.do(http.MethodGet, "/api/dashboard/admin/pending-approvals", admin, nil)
	require.Equal(t, http.StatusOK, pending.Code)
	assert.EqualValues(t, 1, pending.Body["total"])

	res = s.do(http.MethodPost, base+"/approve", admin, gin.H{"approved": true})
	require.Equal(t, http.StatusOK, res.Code, res.Body)
	assert.Equal(t, "approved", res.Body["influencer"].(map[string]interface{})["status"])

	res = s.do(http.MethodPost, base+"/approve", admin, nil)
	assert.Equal(t, http.StatusConflict, res.Code)

	plan := s.do(http.MethodGet, base+"/prepare-token", admin, nil)
	require.Equal(t, http.StatusOK, plan.Code)
	assert.Equal(t, "INFLU", data(t, plan)["symbol"])

	create := gin.H{"tokenAddress": testutil.Address(500), "txHash": testutil.TxHash(500)}
	res = s.do(http.MethodPost, base+"/create-token", admin, create)
	assert.Equal(t, http.StatusBadRequest, res.Code, "missing idempotency key")

	res = s.do(http.MethodPost, base+"/create-token", admin, create, IdempotencyHeader, "launch-1")
	require.Equal(t, http.StatusOK, res.Code, res.Body)
	tokenID := res.Body["tokenId"]
	assert.Equal(t, testutil.Address(500), res.Body["tokenAddress"])
	assert.Equal(t, networks.BaseSepolia, res.Body["network"])

	replay := s.do(http.MethodPost, base+"/create-token", admin, create, IdempotencyHeader, "launch-1")
	require.Equal(t, http.StatusOK, replay.Code)
	assert.Equal(t, tokenID, replay.Body["tokenId"])

	res = s.do(http.MethodPost, base+"/create-token", admin, create, IdempotencyHeader, "launch-2")
	assert.Equal(t, http.StatusConflict, res.Code)

	quote := s.do(http.MethodGet, fmt.Sprintf("/api/quotes/%v", tokenID), "", nil)
	require.Equal(t, http.StatusOK, quote.Code)
	assert.Equal(t, "INFLU", data(t, quote)["symbol"])

	news := s.do(http.MethodGet, fmt.Sprintf("/api/analytics/%v/news", tokenID), "", nil)
	require.Equal(t, http.StatusOK, news.Code)

	chart := s.do(http.MethodGet, fmt.Sprintf("/api/chart/%v/1M", tokenID), "", nil)
	assert.Equal(t, http.StatusNotFound, chart.Code)

	liquidity := s.do(http.MethodGet, base+"/liquidity", admin, nil)
	require.Equal(t, http.StatusOK, liquidity.Code)
	assert.Equal(t, false, data(t, liquidity)["hasLiquidity"])

	late := s.pledge(101, 1, "1", "p-late")
	assert.Equal(t, http.StatusBadRequest, late.Code)
}

func TestRejectOverHTTP(t *testing.T) {
	s := newTestServer(t)
	inf := testutil.CreateInfluencer(t, s.db, 1, "2", "0")
	admin := s.tokenFor("admin@example.com", models.UserStatusAdmin, "")

	res := s.do(http.MethodPost, fmt.Sprintf("/api/dashboard/admin/influencers/%d/approve", inf.ID), admin,
		gin.H{"approved": false, "reason": "spam"})
	require.Equal(t, http.StatusOK, res.Code, res.Body)
	assert.Equal(t, "Influencer rejected", res.Body["message"])
}

func TestInfluencerAdminCRUD(t *testing.T) {
	s := newTestServer(t)
	admin := s.tokenFor("admin@example.com", models.UserStatusAdmin, "")

	res := s.do(http.MethodPost, "/api/influencer", admin, gin.H{
		"name": "Crypto Kate", "handle": "cryptokate", "email": "kate@example.com",
	})
	require.Equal(t, http.StatusCreated, res.Code, res.Body)
	id := data(t, res)["id"]

	dup := s.do(http.MethodPost, "/api/influencer", admin, gin.H{
		"name": "Kate", "handle": "@cryptokate", "email": "kate2@example.com",
	})
	assert.Equal(t, http.StatusBadRequest, dup.Code)
	assert.Equal(t, "Handle or email already exists", dup.Body["error"])

	path := fmt.Sprintf("/api/influencer/%v", id)
	res = s.do(http.MethodPut, path, admin, gin.H{"description": "Daily notes"})
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "Daily notes", data(t, res)["description"])

	res = s.do(http.MethodPut, path, admin, gin.H{"is_approved": true})
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = s.do(http.MethodDelete, path, admin, nil)
	assert.Equal(t, http.StatusOK, res.Code)
	res = s.do(http.MethodGet, path, "", nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestStatusEndpoints(t *testing.T) {
	s := newTestServer(t)
	testutil.CreateInfluencer(t, s.db, 1, "5", "0")
	token := s.tokenFor("bob@example.com", models.UserStatusBrowser, testutil.Address(100))

	res := s.do(http.MethodGet, "/api/status/current", token, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "browser", data(t, res)["status"])

	res = s.do(http.MethodGet, "/api/dashboard/investor/portfolio", token, nil)
	assert.Equal(t, http.StatusForbidden, res.Code)

	res = s.do(http.MethodPost, "/api/status/promote-to-investor", token, nil)
	assert.Equal(t, http.StatusBadRequest, res.Code)

	require.Equal(t, http.StatusOK, s.pledge(100, 1, "1", "bob-1").Code)

	res = s.do(http.MethodPost, "/api/status/promote-to-investor", token, nil)
	require.Equal(t, http.StatusOK, res.Code, res.Body)
	assert.Equal(t, "Promoted to investor", res.Body["message"])

	res = s.do(http.MethodGet, "/api/dashboard/investor/pledges", token, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.EqualValues(t, 1, res.Body["total"])
}

func TestAuthSyncAndMe(t *testing.T) {
	s := newTestServer(t)
	token, err := auth.GenerateToken("uid-42", "new@example.com", time.Hour)
	require.NoError(t, err)

	res := s.do(http.MethodGet, "/api/auth/me", token, nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
	assert.Equal(t, "User not found in database", res.Body["error"])

	res = s.do(http.MethodPost, "/api/auth/sync", token, gin.H{"display_name": "Newcomer"})
	require.Equal(t, http.StatusCreated, res.Code, res.Body)
	assert.Equal(t, true, res.Body["created"])

	res = s.do(http.MethodPost, "/api/auth/sync", token, gin.H{"avatar_url": "https://example.com/a.png"})
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, false, res.Body["created"])

	res = s.do(http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, res.Code)
	user := res.Body["user"].(map[string]interface{})
	assert.Equal(t, "Newcomer", user["display_name"])
	assert.Equal(t, "https://example.com/a.png", user["avatar_url"])
}

func TestPlatformStatsEndpoint(t *testing.T) {
	s := newTestServer(t)
	testutil.CreateInfluencer(t, s.db, 1, "5", "0")
	require.Equal(t, http.StatusOK, s.pledge(100, 1, "1", "k").Code)

	res := s.do(http.MethodGet, "/api/platform/stats", "", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "2000", data(t, res)["totalVolume"])
	assert.Equal(t, "100", data(t, res)["totalFees"])
}
