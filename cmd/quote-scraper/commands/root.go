// Package commands implements the quote-scraper CLI.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/maltedev/life-quote-scraper/internal/config"
	"github.com/maltedev/life-quote-scraper/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:           "quote-scraper",
	Short:         "Scrapes life insurance premiums across a grid of risk profiles.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var gridFile string

func init() {
	rootCmd.PersistentFlags().StringVar(&gridFile, "grid", "", "grid file (JSON5); defaults to SCRAPER_GRID_FILE")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// env is the configuration every command starts from.
type env struct {
	cfg    *config.Config
	grid   config.Grid
	logger *slog.Logger
}

func loadEnv() (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(log)

	path := gridFile
	if path == "" {
		path = cfg.Scraper.GridFile
	}
	grid, err := config.LoadGrid(path)
	if err != nil {
		return nil, err
	}

	return &env{cfg: cfg, grid: grid, logger: log}, nil
}
