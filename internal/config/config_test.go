package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.EqualError(t, err, "JWT_SECRET is required")
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "2000", cfg.App.ETHUSDRate.String())
	assert.Equal(t, 5*time.Minute, cfg.Liquidity.Timeout)
	assert.False(t, cfg.Liquidity.AutoCreate)
	assert.Equal(t, "host=localhost port=5432 user=postgres password= dbname=coinfluence sslmode=disable", cfg.GetDSN())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("ETH_USD_RATE", "3100.5")
	t.Setenv("LIQUIDITY_TIMEOUT", "90s")
	t.Setenv("LIQUIDITY_AUTO_CREATE", "true")
	t.Setenv("RATE_LIMIT_BURST", "3")
	t.Setenv("DB_USER", "cf")
	t.Setenv("DB_PASSWORD", "pw")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "3100.5", cfg.App.ETHUSDRate.String())
	assert.Equal(t, 90*time.Second, cfg.Liquidity.Timeout)
	assert.True(t, cfg.Liquidity.AutoCreate)
	assert.Equal(t, 3, cfg.Server.RateLimitBurst)
	assert.Equal(t, "postgres://cf:pw@localhost:5432/coinfluence?sslmode=disable", cfg.GetMigrationURL())
}

func TestLoadRejectsBadRate(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("ETH_USD_RATE", "abc")

	_, err := Load()
	assert.Error(t, err)
}

func TestConfigureLogging(t *testing.T) {
	cfg := &Config{App: AppConfig{Env: "development", LogLevel: "debug"}}
	cfg.ConfigureLogging()
	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())

	cfg = &Config{App: AppConfig{Env: "production", LogLevel: "nonsense"}}
	cfg.ConfigureLogging()
	assert.Equal(t, logrus.InfoLevel, logrus.GetLevel())
}
