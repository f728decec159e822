// Package testutil provides in-memory databases and fixtures for package tests.
package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"coinfluence/internal/database"
	"coinfluence/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbCounter atomic.Int64

// NewDB opens a private in-memory sqlite database with every model migrated.
// A single connection is used so the shared-cache database never sees
// concurrent writers.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, dbCounter.Add(1))

	cfg := database.GormConfig()
	cfg.Logger = logger.Discard
	db, err := gorm.Open(sqlite.Open(dsn), cfg)
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}
	return db
}

// Address builds a deterministic, well-formed EVM address from a small seed.
func Address(seed int) string {
	return fmt.Sprintf("0x%040x", seed)
}

// TxHash builds a deterministic, well-formed transaction hash from a small seed.
func TxHash(seed int) string {
	return fmt.Sprintf("0x%064x", seed)
}

// Dec parses a decimal literal and panics on malformed input.
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// CreateInfluencer inserts a pledging influencer with the given wallet seed and thresholds.
func CreateInfluencer(t testing.TB, db *gorm.DB, seed int, ethThreshold, usdcThreshold string) *models.Influencer {
	t.Helper()

	wallet := Address(seed)
	email := fmt.Sprintf("influencer%d@example.com", seed)
	inf := &models.Influencer{
		Name:                fmt.Sprintf("Influencer %d", seed),
		Handle:              fmt.Sprintf("@influencer%d", seed),
		Email:               &email,
		WalletAddress:       &wallet,
		Category:            "General",
		PledgeThresholdETH:  Dec(ethThreshold),
		PledgeThresholdUSDC: Dec(usdcThreshold),
		Status:              models.InfluencerStatusPledging,
	}
	if err := db.Create(inf).Error; err != nil {
		t.Fatalf("failed to create influencer: %v", err)
	}
	return inf
}

// CreateUser inserts a user with the given status.
func CreateUser(t testing.TB, db *gorm.DB, email string, status models.UserStatus, wallet string) *models.User {
	t.Helper()

	user := &models.User{
		Email:       email,
		DisplayName: strings.Split(email, "@")[0],
		Status:      status,
	}
	if wallet != "" {
		user.WalletAddress = &wallet
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user
}
