package database

import (
	"context"
	"fmt"
	"time"

	"coinfluence/internal/models"

	"github.com/cenkalti/backoff/v5"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

var log = logrus.WithField("component", "database")

// Options select the driver and connection retry budget.
type Options struct {
	Driver         string // postgres (default) or sqlite
	DSN            string
	ConnectTimeout time.Duration
}

// GormConfig is shared by the server, the CLI and tests so that unique
// violations surface as gorm.ErrDuplicatedKey everywhere.
func GormConfig() *gorm.Config {
	return &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Error),
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
	}
}

// Connect opens the database, retrying with exponential backoff until the
// server accepts connections or the timeout elapses.
func Connect(ctx context.Context, opts Options) error {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 30 * time.Second
	}

	open := func() (*gorm.DB, error) {
		var dialector gorm.Dialector
		switch opts.Driver {
		case "", "postgres":
			dialector = postgres.Open(opts.DSN)
		case "sqlite":
			dialector = sqlite.Open(opts.DSN)
		default:
			return nil, backoff.Permanent(fmt.Errorf("unsupported database driver %q", opts.Driver))
		}

		db, err := gorm.Open(dialector, GormConfig())
		if err != nil {
			log.Warnf("Database not ready: %v", err)
			return nil, err
		}

		sqlDB, err := db.DB()
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			log.Warnf("Database ping failed: %v", err)
			return nil, err
		}
		return db, nil
	}

	db, err := backoff.Retry(
		ctx,
		open,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(opts.ConnectTimeout),
	)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	DB = db
	log.Info("Database connection established successfully")
	return nil
}

// Models lists every table managed by AutoMigrate, grouped by concern.
func Models() []interface{} {
	coreModels := []interface{}{
		&models.User{},
		&models.UserStatusHistory{},
		&models.Influencer{},
		&models.Pledge{},
		&models.PledgeEvent{},
		&models.Token{},
		&models.IdempotencyKey{},
	}

	analyticsModels := []interface{}{
		&models.TokenReference{},
		&models.TokenQuote{},
		&models.TokenReturn{},
		&models.TokenStatsDaily{},
		&models.TokenNews{},
		&models.HourlyCandle{},
		&models.DailyCandle{},
	}

	return append(coreModels, analyticsModels...)
}

// AutoMigrate runs automatic migrations for all models
func AutoMigrate(db *gorm.DB) error {
	for _, model := range Models() {
		if err := db.AutoMigrate(model); err != nil {
			return fmt.Errorf("migration failed for %T: %w", model, err)
		}
	}

	log.Info("Database migrations completed successfully")
	return nil
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}
