package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"evalsvc/internal/platform/config"
	"evalsvc/internal/platform/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending SQL migrations",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	pool, err := db.Connect(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer pool.Close()

	if err := db.Migrate(cmd.Context(), pool, cfg.MigrationsDir); err != nil {
		return err
	}
	slog.Info("migrations applied", "dir", cfg.MigrationsDir)
	return nil
}
