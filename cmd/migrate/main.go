package main

import (
	"log/slog"
	"os"

	"focusflow/backend/internal/config"
	"focusflow/backend/internal/db"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	database, err := db.OpenSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("open database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	migrations, err := db.Migrations(cfg.MigrationsDir)
	if err != nil {
		slog.Error("load migrations", "error", err)
		os.Exit(1)
	}
	applied, err := db.RunMigrations(database, migrations)
	if err != nil {
		slog.Error("run migrations", "error", err)
		os.Exit(1)
	}

	slog.Info("migrations applied successfully", "count", applied, "db", cfg.DBPath)
}
