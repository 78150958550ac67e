package main

import (
	"fmt"
	"log/slog"
	"time"

	"tradesignal/config"
	"tradesignal/internal/feed"
	"tradesignal/internal/store/sqldb"

	"github.com/spf13/cobra"
)

var (
	seedSymbols  string
	seedCount    int
	seedInterval time.Duration
	seedValue    int64
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Write synthetic bars into the bar store",
	Long: `Generate deterministic synthetic bars and upsert them into the configured store.

Examples:
  # Seed every configured symbol with 300 five-minute bars
  sigctl seed --count 300

  # Seed two symbols with hourly bars
  sigctl seed --symbols TCS,INFY --interval 1h`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().StringVar(&seedSymbols, "symbols", "", "comma-separated symbols (default: engine.symbols)")
	seedCmd.Flags().IntVar(&seedCount, "count", 300, "bars per symbol")
	seedCmd.Flags().DurationVar(&seedInterval, "interval", 5*time.Minute, "bar spacing")
	seedCmd.Flags().Int64Var(&seedValue, "seed", 0, "generator seed (default: fallback.seed)")
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	symbols := cfg.Engine.Symbols
	if seedSymbols != "" {
		symbols = config.ParseSymbols(seedSymbols)
	}
	if seedCount <= 0 {
		return fmt.Errorf("--count must be positive")
	}

	ctx := cmd.Context()
	store, err := sqldb.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate store: %w", err)
	}

	gen := feed.NewSynthetic(cfg.Fallback.Seed)
	if cmd.Flags().Changed("seed") {
		gen.Seed = seedValue
	}
	gen.Count = seedCount
	gen.Interval = seedInterval

	for _, sym := range symbols {
		bars, err := gen.Bars(ctx, sym, 0)
		if err != nil {
			return fmt.Errorf("generate %s: %w", sym, err)
		}
		if err := store.WriteBars(ctx, sym, bars); err != nil {
			return fmt.Errorf("write %s: %w", sym, err)
		}
		slog.Info("[seed] wrote bars", "symbol", sym, "bars", len(bars))
		fmt.Fprintf(cmd.OutOrStdout(), "%-10s %d bars\n", sym, len(bars))
	}
	return nil
}
