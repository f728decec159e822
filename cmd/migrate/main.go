package main

import (
	"database/sql"
	"fmt"
	"os"
	"strconv"

	"coinfluence/internal/config"
	"coinfluence/internal/database"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// usage: migrate [up | down [steps]]
func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	cfg.ConfigureLogging()

	direction, args := "up", []string(nil)
	if len(os.Args) > 1 {
		direction, args = os.Args[1], os.Args[2:]
	}

	db, err := sql.Open("postgres", cfg.GetMigrationURL())
	if err != nil {
		logrus.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := run(db, direction, args); err != nil {
		logrus.Errorf("Migration failed: %v", err)
		os.Exit(1)
	}
	logrus.Infof("Migration %s complete", direction)
}

func run(db *sql.DB, direction string, args []string) error {
	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to reach database: %w", err)
	}

	switch direction {
	case "up":
		return database.RunMigrations(db)
	case "down":
		steps := 1
		if len(args) > 0 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n <= 0 {
				return fmt.Errorf("invalid step count %q", args[0])
			}
			steps = n
		}
		return database.RollbackMigrations(db, steps)
	default:
		return fmt.Errorf("unknown direction %q (want up or down)", direction)
	}
}
