package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"evalsvc/internal/domain/evaluation"
	"evalsvc/internal/platform/config"
	"evalsvc/internal/platform/db"
)

var catalogPath string

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect or load the evaluation catalog",
}

var catalogValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Parse and validate the catalog file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		catalog, err := loadCatalog()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "catalog ok: %d lines, %d grade ranges\n", len(catalog.Lines), len(catalog.DefaultGradeRanges))
		return nil
	},
}

var catalogSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Write the catalog's evaluation lines to the database",
	RunE: func(cmd *cobra.Command, _ []string) error {
		catalog, err := loadCatalog()
		if err != nil {
			return err
		}
		cfg := config.Load()
		if cfg.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required")
		}
		pool, err := db.Connect(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("db connect: %w", err)
		}
		defer pool.Close()

		if err := evaluation.NewStore(pool).UpsertEvaluationLines(cmd.Context(), catalog.Lines); err != nil {
			return fmt.Errorf("seed evaluation lines: %w", err)
		}
		slog.Info("catalog seeded", "lines", len(catalog.Lines))
		return nil
	},
}

func init() {
	catalogCmd.PersistentFlags().StringVar(&catalogPath, "file", "", "Catalog file (overrides CATALOG_PATH)")
	catalogCmd.AddCommand(catalogValidateCmd, catalogSeedCmd)
	rootCmd.AddCommand(catalogCmd)
}

func loadCatalog() (evaluation.Catalog, error) {
	path := catalogPath
	if path == "" {
		path = config.Load().CatalogPath
	}
	return evaluation.LoadCatalog(path)
}
