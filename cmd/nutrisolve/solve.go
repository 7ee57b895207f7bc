package main

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nutrisolve/nutrisolve/internal/catalog"
	"github.com/nutrisolve/nutrisolve/internal/config"
	"github.com/nutrisolve/nutrisolve/internal/logging"
	"github.com/nutrisolve/nutrisolve/internal/orchestrator"
	"github.com/nutrisolve/nutrisolve/internal/store"
)

func newSolveCmd() *cobra.Command {
	var cardinality, workers, maxSolutions int
	var jobTimeout, startupGrace string
	var resume bool

	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Run a full exhaustive-exclusion solve to completion",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, map[string]interface{}{
				"cardinality":   cardinality,
				"workers":       workers,
				"job_timeout":   jobTimeout,
				"startup_grace": startupGrace,
				"resume":        resume,
			})
			if err != nil {
				return err
			}

			log, err := logging.New(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer log.Sync()

			cat, err := loadCatalog(cfg)
			if err != nil {
				return err
			}

			st, err := openStore(cmd, cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			result, err := orchestrator.Run(ctx, orchestrator.Options{
				Catalog:      cat,
				Cardinality:  cfg.Cardinality,
				Workers:      cfg.Workers,
				JobTimeout:   cfg.JobTimeout,
				StartupGrace: cfg.StartupGrace,
				MaxSolutions: maxSolutions,
				Resume:       cfg.Resume,
				Store:        st,
				Logger:       log,
			})
			if err != nil {
				return fmt.Errorf("solve: %w", err)
			}

			fmt.Printf("solved: %d food sets found, %d foods seen\n", len(result.Solutions), result.FoodsSeen)
			for _, fs := range result.Solutions {
				fmt.Printf("  %v\n", fs)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&cardinality, "cardinality", 0, "number of foods per set (N)")
	cmd.Flags().IntVar(&workers, "workers", 0, "number of parallel worker slots")
	cmd.Flags().StringVar(&jobTimeout, "job-timeout", "", "per-exclusion solve deadline, e.g. 1h")
	cmd.Flags().StringVar(&startupGrace, "startup-grace", "", "grace period tolerating transient queue emptiness")
	cmd.Flags().IntVar(&maxSolutions, "max-solutions-per-job", 100_000, "cap on raw solver rows enumerated per exclusion")
	cmd.Flags().BoolVar(&resume, "resume", false, "requeue in-progress rows from a prior crashed run instead of re-initializing")

	return cmd
}

func loadConfig(cmd *cobra.Command, overrides map[string]interface{}) (config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	storeDSN, _ := cmd.Flags().GetString("store-dsn")
	catalogDir, _ := cmd.Flags().GetString("catalog-dir")
	logLevel, _ := cmd.Flags().GetString("log-level")

	overrides["store_dsn"] = storeDSN
	overrides["catalog_dir"] = catalogDir
	overrides["log_level"] = logLevel

	return config.Load(configPath, overrides)
}

func loadCatalog(cfg config.Config) (*catalog.Catalog, error) {
	bandsPath := filepath.Join(cfg.CatalogDir, "bands.csv")
	foodsPath := filepath.Join(cfg.CatalogDir, "foods.csv")
	cat, err := catalog.Load(bandsPath, foodsPath, catalog.ExpectedScale)
	if err != nil {
		return nil, fmt.Errorf("loading catalog from %s: %w", cfg.CatalogDir, err)
	}
	return cat, nil
}

func openStore(cmd *cobra.Command, cfg config.Config) (store.Store, error) {
	driver, _ := cmd.Flags().GetString("store-driver")
	switch driver {
	case "postgres":
		return store.OpenPostgres(cfg.StoreDSN)
	case "sqlite", "":
		return store.OpenSQLite(cfg.StoreDSN)
	default:
		return nil, fmt.Errorf("unknown store driver %q (want sqlite or postgres)", driver)
	}
}
