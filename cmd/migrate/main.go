package main

import (
	"log/slog"
	"os"

	"signal-relay/internal/config"
	"signal-relay/internal/database"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting database migration...")

	db, err := database.NewPostgresConnection(cfg.Database.DSN())
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := database.Migrate(db); err != nil {
		slog.Error("Migration failed", "error", err)
		os.Exit(1)
	}

	slog.Info("Database migration completed successfully!")
}
