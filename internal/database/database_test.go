package database

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"coinfluence/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectSQLiteAndAutoMigrate(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "coinfluence.db")

	err := Connect(context.Background(), Options{Driver: "sqlite", DSN: dsn, ConnectTimeout: time.Second})
	require.NoError(t, err)
	require.NotNil(t, GetDB())

	require.NoError(t, AutoMigrate(GetDB()))

	for _, table := range []string{"influencers", "pledges", "pledge_events", "tokens", "users", "idempotency_keys", "token_returns", "ohlcv_1h", "ohlcv_1d"} {
		assert.True(t, GetDB().Migrator().HasTable(table), "expected table %s", table)
	}

	// unique (user_address, influencer_address) surfaces as a translated duplicate error
	p := models.Pledge{UserAddress: "0x1", InfluencerAddress: "0x2"}
	require.NoError(t, GetDB().Create(&p).Error)
	dup := models.Pledge{UserAddress: "0x1", InfluencerAddress: "0x2"}
	err = GetDB().Create(&dup).Error
	assert.Error(t, err)

	sqlDB, _ := GetDB().DB()
	_ = sqlDB.Close()
}

func TestConnectUnsupportedDriverFailsFast(t *testing.T) {
	start := time.Now()
	err := Connect(context.Background(), Options{Driver: "mysql", DSN: "x", ConnectTimeout: 10 * time.Second})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	ups, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err)

	names := map[string]bool{}
	for _, e := range ups {
		names[e.Name()] = true
	}
	for name := range names {
		if filepath.Ext(name) != ".sql" {
			continue
		}
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			assert.True(t, names[strings.TrimSuffix(name, ".up.sql")+".down.sql"], "missing down migration for %s", name)
		case strings.HasSuffix(name, ".down.sql"):
			assert.True(t, names[strings.TrimSuffix(name, ".down.sql")+".up.sql"], "missing up migration for %s", name)
		}
	}
}
