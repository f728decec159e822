package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coinfluence/internal/auth"
	"coinfluence/internal/config"
	"coinfluence/internal/database"
	"coinfluence/internal/events"
	"coinfluence/internal/handlers"
	"coinfluence/internal/jobs"
	"coinfluence/internal/middleware"
	"coinfluence/internal/networks"
	"coinfluence/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	cfg.ConfigureLogging()
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize JWT
	auth.InitJWT(cfg.App.JWTSecret)

	// Connect to database
	ctx := context.Background()
	if err := database.Connect(ctx, dbOptions(cfg)); err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}
	db := database.GetDB()

	// Run migrations
	if err := database.AutoMigrate(db); err != nil {
		logrus.Fatalf("Failed to run migrations: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		logrus.Fatalf("Failed to get sql.DB: %v", err)
	}
	postgres := cfg.Database.Driver != "sqlite"
	if postgres {
		if err := database.RunMigrations(sqlDB); err != nil {
			logrus.Fatalf("Failed to run SQL migrations: %v", err)
		}
	}

	nets, err := networks.Load(cfg.App.NetworksFile)
	if err != nil {
		logrus.Fatalf("Failed to load networks: %v", err)
	}

	var publisher events.Publisher = events.Noop{}
	if cfg.Broker.URL != "" {
		amqpPublisher, err := events.DialAMQP(ctx, cfg.Broker.URL, cfg.Broker.Queue, cfg.Database.ConnectTimeout)
		if err != nil {
			logrus.Fatalf("Failed to connect to RabbitMQ: %v", err)
		}
		publisher = amqpPublisher
	}

	// Initialize services
	liquidityService := services.NewLiquidityService(db, nets, services.LiquidityOptions{
		Command: cfg.Liquidity.Command,
		Script:  cfg.Liquidity.Script,
		WorkDir: cfg.Liquidity.WorkDir,
		Timeout: cfg.Liquidity.Timeout,
	}, publisher)
	tokenService := services.NewTokenService(db, nets, cfg.App.ETHUSDRate, publisher)
	if cfg.Liquidity.AutoCreate {
		tokenService.EnableAutoLiquidity(liquidityService, cfg.Liquidity.Timeout)
	}

	var allowed []string
	if cfg.Server.FrontendURL != "" {
		allowed = append(allowed, cfg.Server.FrontendURL)
	}

	router := handlers.NewRouter(handlers.Services{
		Auth:        services.NewAuthService(db),
		Users:       services.NewUserService(db),
		Influencers: services.NewInfluencerService(db),
		Pledges:     services.NewPledgeService(db, publisher),
		Approvals:   services.NewApprovalService(db, publisher),
		Tokens:      tokenService,
		Liquidity:   liquidityService,
		Dashboard:   services.NewDashboardService(db, cfg.App.ETHUSDRate, cfg.App.PlatformFeePercent),
		MarketData:  services.NewMarketDataService(db),
		Networks:    nets,
	}, handlers.RouterOptions{
		AllowedOrigins: allowed,
		RateLimit: middleware.RateLimiterConfig{
			RequestsPerSecond: cfg.Server.RateLimitRPS,
			Burst:             cfg.Server.RateLimitBurst,
		},
		AccessLog: cfg.IsDevelopment(),
	})

	// Materialized views only exist on postgres
	var refresher *jobs.ViewRefresher
	if postgres {
		refresher = jobs.NewViewRefresher(sqlDB)
		if err := refresher.Start(cfg.Jobs.ViewRefreshSchedule); err != nil {
			logrus.Fatalf("Failed to start view refresher: %v", err)
		}
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logrus.Infof("Server starting on port %s", cfg.Server.Port)
		logrus.Infof("Health check: http://localhost:%s/health", cfg.Server.Port)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	if refresher != nil {
		refresher.Stop()
	}

	// Graceful shutdown with 5 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}
	if err := tokenService.Shutdown(shutdownCtx); err != nil {
		logrus.Warnf("Cancelled running liquidity automation: %v", err)
	}
	if err := publisher.Close(); err != nil {
		logrus.Warnf("Failed to close event publisher: %v", err)
	}
	if err := sqlDB.Close(); err != nil {
		logrus.Warnf("Failed to close database: %v", err)
	}

	logrus.Info("Server exited")
}

func dbOptions(cfg *config.Config) database.Options {
	opts := database.Options{
		Driver:         cfg.Database.Driver,
		DSN:            cfg.GetDSN(),
		ConnectTimeout: cfg.Database.ConnectTimeout,
	}
	if cfg.Database.Driver == "sqlite" {
		opts.DSN = cfg.Database.SQLitePath
	}
	return opts
}
