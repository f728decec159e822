// Command coinfluencectl is the operator CLI: user status changes,
// materialized view refreshes and network inspection.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"

	"coinfluence/internal/config"
	"coinfluence/internal/database"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// app holds what commands need from the environment. Tests replace the
// openers with in-memory databases.
type app struct {
	out     io.Writer
	config  func() (*config.Config, error)
	openDB  func(ctx context.Context, cfg *config.Config) (*gorm.DB, error)
	openSQL func(cfg *config.Config) (*sql.DB, error)
}

func defaultApp() *app {
	return &app{
		out:    os.Stdout,
		config: config.Load,
		openDB: func(ctx context.Context, cfg *config.Config) (*gorm.DB, error) {
			opts := database.Options{
				Driver:         cfg.Database.Driver,
				DSN:            cfg.GetDSN(),
				ConnectTimeout: cfg.Database.ConnectTimeout,
			}
			if cfg.Database.Driver == "sqlite" {
				opts.DSN = cfg.Database.SQLitePath
			}
			if err := database.Connect(ctx, opts); err != nil {
				return nil, err
			}
			return database.GetDB(), nil
		},
		openSQL: func(cfg *config.Config) (*sql.DB, error) {
			return sql.Open("postgres", cfg.GetMigrationURL())
		},
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "coinfluencectl",
		Short:         "CoinFluence operator tooling",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newSetAdminCmd(a),
		newSetInfluencerCmd(a),
		newRefreshViewsCmd(a),
		newNetworksCmd(a),
		newTokenCmd(a),
	)
	root.SetOut(a.out)
	return root
}

// loadConfig reads the environment and applies the logging settings
func (a *app) loadConfig() (*config.Config, error) {
	cfg, err := a.config()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	cfg.ConfigureLogging()
	return cfg, nil
}

func main() {
	if err := newRootCmd(defaultApp()).Execute(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}
