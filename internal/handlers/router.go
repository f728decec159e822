package handlers

import (
	"net/http"
	"time"

	"coinfluence/internal/auth"
	"coinfluence/internal/metrics"
	"coinfluence/internal/middleware"
	"coinfluence/internal/models"
	"coinfluence/internal/networks"
	"coinfluence/internal/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Services are the dependencies behind the HTTP API
type Services struct {
	Auth        *services.AuthService
	Users       *services.UserService
	Influencers *services.InfluencerService
	Pledges     *services.PledgeService
	Approvals   *services.ApprovalService
	Tokens      *services.TokenService
	Liquidity   *services.LiquidityService
	Dashboard   *services.DashboardService
	MarketData  *services.MarketDataService
	Networks    *networks.Registry
}

// RouterOptions configure the transport middleware
type RouterOptions struct {
	AllowedOrigins []string
	RateLimit      middleware.RateLimiterConfig
	// AccessLog enables gin's request logger.
	AccessLog bool
}

var defaultOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173", // Vite dev server
	"http://127.0.0.1:3000",
	"http://127.0.0.1:5173",
}

// NewRouter builds the gin engine with every route registered
func NewRouter(s Services, opts RouterOptions) *gin.Engine {
	router := gin.New()
	if opts.AccessLog {
		router.Use(gin.Logger())
	}
	router.Use(gin.Recovery(), middleware.RequestID(), metrics.Middleware())

	origins := append([]string{}, defaultOrigins...)
	origins = append(origins, opts.AllowedOrigins...)
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With", IdempotencyHeader, middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", "Retry-After", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	limited := middleware.NewRateLimiter(opts.RateLimit).Middleware()

	authHandler := NewAuthHandler(s.Auth, s.Users)
	statusHandler := NewStatusHandler(s.Users)
	influencerHandler := NewInfluencerHandler(s.Influencers)
	pledgeHandler := NewPledgeHandler(s.Pledges, s.Influencers)
	adminHandler := NewAdminHandler(s.Approvals, s.Tokens, s.Liquidity, s.Dashboard, s.Users)
	dashboardHandler := NewDashboardHandler(s.Dashboard)
	marketHandler := NewMarketDataHandler(s.MarketData)
	platformHandler := NewPlatformHandler(s.Dashboard, s.Networks)

	authenticated := []gin.HandlerFunc{auth.AuthMiddleware(), auth.LoadUser(s.Auth)}
	withStatus := func(level models.UserStatus) []gin.HandlerFunc {
		return chain(authenticated, auth.RequireStatus(level))
	}
	admin := withStatus(models.UserStatusAdmin)

	api := router.Group("/api")

	// Public reads
	api.GET("/influencer", influencerHandler.List)
	api.GET("/influencer/:id", influencerHandler.Get)
	api.GET("/influencer/handle/:handle", influencerHandler.GetByHandle)
	api.GET("/influencer/address/:address", influencerHandler.GetByAddress)

	api.GET("/pledge/user/:address/pledges", pledgeHandler.GetUserPledges)
	api.GET("/pledge/influencer/:address", pledgeHandler.GetInfluencerPledges)
	api.GET("/pledge/stats", pledgeHandler.GetStats)

	api.GET("/quotes/:tokenId", marketHandler.GetQuote)
	api.GET("/quotes/:tokenId/mini", marketHandler.GetMiniQuote)
	api.GET("/chart/:tokenId/:range", marketHandler.GetChart)
	analytics := api.Group("/analytics/:tokenId")
	{
		analytics.GET("/performance", marketHandler.GetPerformance)
		analytics.GET("/statistics", marketHandler.GetStatistics)
		analytics.GET("/profile", marketHandler.GetProfile)
		analytics.GET("/news", marketHandler.GetNews)
	}

	api.GET("/platform/stats", platformHandler.GetStats)
	api.GET("/contract/networks", platformHandler.GetNetworks)

	// Public writes
	api.POST("/pledge/mock", limited, pledgeHandler.CreateMockPledge)
	api.POST("/pledge/withdraw", limited, pledgeHandler.Withdraw)

	// Auth
	api.POST("/auth/sync", limited, auth.AuthMiddleware(), authHandler.SyncUser)
	api.GET("/auth/me", chain(authenticated, authHandler.GetMe)...)

	status := api.Group("/status", authenticated...)
	{
		status.GET("/current", statusHandler.GetCurrent)
		status.POST("/promote-to-investor", limited, statusHandler.PromoteToInvestor)
	}

	investor := api.Group("/dashboard/investor", withStatus(models.UserStatusInvestor)...)
	{
		investor.GET("/portfolio", dashboardHandler.GetPortfolio)
		investor.GET("/pledges", dashboardHandler.GetInvestorPledges)
	}

	influencer := api.Group("/dashboard/influencer", withStatus(models.UserStatusInfluencer)...)
	{
		influencer.GET("/stats", dashboardHandler.GetInfluencerStats)
		influencer.GET("/pledgers", dashboardHandler.GetPledgers)
	}

	adminRoutes := api.Group("/dashboard/admin", admin...)
	{
		adminRoutes.GET("/stats", adminHandler.GetStats)
		adminRoutes.GET("/pending-approvals", adminHandler.GetPendingApprovals)
		adminRoutes.GET("/recent-activity", adminHandler.GetRecentActivity)
		adminRoutes.GET("/users", adminHandler.GetUsers)
		adminRoutes.PUT("/users/:id/status", adminHandler.UpdateUserStatus)

		adminRoutes.POST("/influencers/:id/approve", adminHandler.ApproveInfluencer)
		adminRoutes.GET("/influencers/:id/prepare-token", adminHandler.PrepareToken)
		adminRoutes.POST("/influencers/:id/create-token", adminHandler.CreateToken)
		adminRoutes.POST("/influencers/:id/liquidity", adminHandler.CreateLiquidity)
		adminRoutes.GET("/influencers/:id/liquidity", adminHandler.GetLiquidity)
	}

	// Admin directory management
	api.POST("/influencer", chain(admin, influencerHandler.Create)...)
	api.PUT("/influencer/:id", chain(admin, influencerHandler.Update)...)
	api.DELETE("/influencer/:id", chain(admin, influencerHandler.Delete)...)
	api.POST("/pledge/admin/setup-influencer", chain(admin, pledgeHandler.SetupInfluencer)...)

	return router
}

// chain returns a fresh slice of mw followed by handlers.
func chain(mw []gin.HandlerFunc, handlers ...gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(mw)+len(handlers))
	out = append(out, mw...)
	return append(out, handlers...)
}
