package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all application configuration
type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	App       AppConfig
	Liquidity LiquidityConfig
	Broker    BrokerConfig
	Jobs      JobsConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver         string // postgres or sqlite
	Host           string
	Port           string
	User           string
	Password       string
	DBName         string
	SSLMode        string
	SQLitePath     string
	ConnectTimeout time.Duration
}

// ServerConfig holds server settings
type ServerConfig struct {
	Port           string
	FrontendURL    string
	RateLimitRPS   float64
	RateLimitBurst int
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Env          string
	LogLevel     string
	JWTSecret    string
	NetworksFile string
	// ETHUSDRate converts pledged ETH into USD for pricing and dashboards.
	ETHUSDRate         decimal.Decimal
	PlatformFeePercent decimal.Decimal
}

// LiquidityConfig describes how the pool-creation script is invoked
type LiquidityConfig struct {
	Command    string
	Script     string
	WorkDir    string
	Timeout    time.Duration
	AutoCreate bool
}

// BrokerConfig holds the optional RabbitMQ event fan-out settings
type BrokerConfig struct {
	URL   string
	Queue string
}

// JobsConfig holds background job schedules
type JobsConfig struct {
	ViewRefreshSchedule string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	ethRate, err := decimal.NewFromString(getEnv("ETH_USD_RATE", "2000"))
	if err != nil {
		return nil, fmt.Errorf("invalid ETH_USD_RATE: %w", err)
	}
	feePct, err := decimal.NewFromString(getEnv("PLATFORM_FEE_PERCENT", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid PLATFORM_FEE_PERCENT: %w", err)
	}

	config := &Config{
		Database: DatabaseConfig{
			Driver:         getEnv("DB_DRIVER", "postgres"),
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnv("DB_PORT", "5432"),
			User:           getEnv("DB_USER", "postgres"),
			Password:       getEnv("DB_PASSWORD", ""),
			DBName:         getEnv("DB_NAME", "coinfluence"),
			SSLMode:        getEnv("DB_SSLMODE", "disable"),
			SQLitePath:     getEnv("SQLITE_PATH", "coinfluence.db"),
			ConnectTimeout: getDuration("DB_CONNECT_TIMEOUT", 30*time.Second),
		},
		Server: ServerConfig{
			Port:           getEnv("SERVER_PORT", "8080"),
			FrontendURL:    getEnv("FRONTEND_URL", ""),
			RateLimitRPS:   getFloat("RATE_LIMIT_RPS", 5),
			RateLimitBurst: getInt("RATE_LIMIT_BURST", 10),
		},
		App: AppConfig{
			Env:                getEnv("APP_ENV", "production"),
			LogLevel:           getEnv("LOG_LEVEL", "info"),
			JWTSecret:          getEnv("JWT_SECRET", ""),
			NetworksFile:       getEnv("NETWORKS_FILE", ""),
			ETHUSDRate:         ethRate,
			PlatformFeePercent: feePct,
		},
		Liquidity: LiquidityConfig{
			Command:    getEnv("LIQUIDITY_COMMAND", "node"),
			Script:     getEnv("LIQUIDITY_SCRIPT", "createUniswapV3Pool.js"),
			WorkDir:    getEnv("LIQUIDITY_WORKDIR", "scripts"),
			Timeout:    getDuration("LIQUIDITY_TIMEOUT", 5*time.Minute),
			AutoCreate: getBool("LIQUIDITY_AUTO_CREATE", false),
		},
		Broker: BrokerConfig{
			URL:   getEnv("RABBITMQ_URL", ""),
			Queue: getEnv("RABBITMQ_EVENTS_QUEUE", "coinfluence.pledge_events"),
		},
		Jobs: JobsConfig{
			ViewRefreshSchedule: getEnv("VIEW_REFRESH_SCHEDULE", "0 */5 * * * *"),
		},
	}

	// Validate required fields
	if config.App.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	if !config.App.ETHUSDRate.IsPositive() {
		return nil, fmt.Errorf("ETH_USD_RATE must be positive")
	}

	if config.Liquidity.Timeout <= 0 {
		return nil, fmt.Errorf("LIQUIDITY_TIMEOUT must be positive")
	}

	return config, nil
}

// GetDSN returns the PostgreSQL connection string
func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
		c.Database.SSLMode,
	)
}

// GetMigrationURL returns the postgres:// URL form used by golang-migrate
func (c *Config) GetMigrationURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.DBName,
		c.Database.SSLMode,
	)
}

// IsDevelopment reports whether APP_ENV selects development defaults
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getFloat(key string, defaultValue float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}
