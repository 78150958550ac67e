package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"tradesignal/config"
	"tradesignal/internal/model"
	"tradesignal/internal/store/redis"

	"github.com/spf13/cobra"
)

var (
	watchLast    bool
	watchHistory int64
)

var watchCmd = &cobra.Command{
	Use:   "watch [SYMBOL...]",
	Short: "Tail live signals published to Redis",
	Long: `Subscribe to the engine's Redis signal channels and print each result.

With --last, the stored latest result for each named symbol is printed first.
With --history N, up to N past results per named symbol are replayed from the
Redis stream (oldest first) before tailing.

Examples:
  sigctl watch
  sigctl watch TCS INFY --history 20`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchLast, "last", false, "print the latest stored result for each symbol first")
	watchCmd.Flags().Int64Var(&watchHistory, "history", 0, "replay up to N stored results per symbol before tailing")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is not configured")
	}
	rs, err := redis.New(redis.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return err
	}
	defer rs.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	want := make(map[string]bool)
	for _, s := range config.ParseSymbols(strings.Join(args, ",")) {
		want[s] = true
	}

	out := cmd.OutOrStdout()
	symbols := make([]string, 0, len(want))
	for sym := range want {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	if watchHistory > 0 {
		if err := backfill(ctx, out, rs, symbols, watchHistory); err != nil {
			return err
		}
	}
	if watchLast {
		for _, sym := range symbols {
			r, err := rs.Latest(ctx, sym)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", sym, err)
				continue
			}
			fmt.Fprintln(out, formatResult(r))
		}
	}

	for r := range rs.Subscribe(ctx) {
		if len(want) > 0 && !want[r.Symbol] {
			continue
		}
		fmt.Fprintln(out, formatResult(r))
	}
	return nil
}

// historySource is the slice of redis.LatestStore that backfill reads.
type historySource interface {
	History(ctx context.Context, symbol string, n int64) ([]model.Result, error)
}

// backfill prints up to n stored results per symbol, oldest first.
func backfill(ctx context.Context, w io.Writer, src historySource, symbols []string, n int64) error {
	for _, sym := range symbols {
		hist, err := src.History(ctx, sym, n)
		if err != nil {
			return fmt.Errorf("history %s: %w", sym, err)
		}
		for i := len(hist) - 1; i >= 0; i-- {
			fmt.Fprintln(w, formatResult(hist[i]))
		}
	}
	return nil
}

func formatResult(r model.Result) string {
	return fmt.Sprintf("%-10s %-4s %3d%% @ %-10.2f %s", r.Symbol, r.Signal.Signal, r.Signal.Confidence, r.Quote.Price, r.Signal.Reason)
}
