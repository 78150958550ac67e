package main

import (
	"fmt"
	"strings"

	"tradesignal/config"
	"tradesignal/internal/indicator"
	"tradesignal/internal/model"
	"tradesignal/internal/strategy"

	"github.com/spf13/cobra"
)

var (
	analyzeLimit     int
	analyzeSynthetic bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze SYMBOL",
	Short: "Compute indicators and the trading signal for a symbol",
	Long: `Compute the indicator bundle and synthesize a signal from the most recent bars.

Examples:
  # Analyze TCS from the configured store
  sigctl analyze TCS

  # Analyze NIFTY on synthetic bars
  sigctl analyze NIFTY --synthetic`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().IntVar(&analyzeLimit, "limit", 0, "bars to load (default: engine.bar_limit)")
	analyzeCmd.Flags().BoolVar(&analyzeSynthetic, "synthetic", false, "use synthetic bars instead of the store")
	rootCmd.AddCommand(analyzeCmd)
}

type analyzeOutput struct {
	Symbol     string              `json:"symbol"`
	Bars       int                 `json:"bars"`
	Sufficient bool                `json:"sufficient"`
	Quote      model.Quote         `json:"quote"`
	Latest     model.Snapshot      `json:"indicators"`
	Signal     model.TradingSignal `json:"signal"`
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	symbol := strings.ToUpper(args[0])
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	limit := analyzeLimit
	if limit <= 0 {
		limit = cfg.Engine.BarLimit
	}

	ctx := cmd.Context()
	src, closeSrc, err := openSource(ctx, cfg, analyzeSynthetic)
	if err != nil {
		return err
	}
	defer closeSrc()

	bars, err := src.Bars(ctx, symbol, limit)
	if err != nil {
		return fmt.Errorf("bars %s: %w", symbol, err)
	}
	if err := bars.Validate(); err != nil {
		return fmt.Errorf("bars %s: %w", symbol, err)
	}

	agg, err := indicator.NewAggregator(cfg.Indicators)
	if err != nil {
		return err
	}
	synth, err := strategy.NewSynthesizer(cfg.Signal)
	if err != nil {
		return err
	}

	q, qerr := src.Quote(ctx, symbol)
	if qerr != nil || q.Price <= 0 {
		q, _ = model.QuoteFromSeries(symbol, bars)
	}
	bundle := agg.Compute(bars)
	snap := bundle.Latest(cfg.Indicators.SMAShort)
	sig := synth.Evaluate(strategy.InputsFrom(snap, q))
	sig.Symbol = symbol

	return printJSON(cmd.OutOrStdout(), analyzeOutput{
		Symbol:     symbol,
		Bars:       len(bars),
		Sufficient: agg.Sufficient(len(bars)),
		Quote:      q,
		Latest:     snap,
		Signal:     sig,
	})
}
