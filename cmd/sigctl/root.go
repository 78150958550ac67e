package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"tradesignal/config"
	"tradesignal/internal/feed"
	"tradesignal/internal/logger"
	"tradesignal/internal/model"
	"tradesignal/internal/store/sqldb"

	"github.com/spf13/cobra"
)

var (
	cfgPath string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "sigctl",
	Short: "Technical-analysis signal engine tools",
	Long: `sigctl runs the indicator and signal pipeline outside the engine.

Bars are read from the configured store (sqlite3 or postgres). With
--synthetic, or when the store holds nothing for a symbol and the
fallback is enabled, the deterministic synthetic generator is used.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := "warn"
		if verbose {
			level = "debug"
		}
		logger.InitWriter(cmd.ErrOrStderr(), "sigctl", logger.ParseLevel(level))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "path to YAML config (optional)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// openSource returns the bar source for analyze/backtest and a closer.
func openSource(ctx context.Context, cfg *config.Config, synthetic bool) (model.BarSource, func(), error) {
	gen := feed.NewSynthetic(cfg.Fallback.Seed)
	if synthetic {
		return gen, func() {}, nil
	}
	store, err := sqldb.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("migrate store: %w", err)
	}
	closer := func() { store.Close() }
	if cfg.Fallback.Enabled {
		return feed.NewFallback(store, gen), closer, nil
	}
	return store, closer, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
