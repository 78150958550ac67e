package main

import (
	"errors"
	"fmt"

	"tradesignal/config"
	"tradesignal/internal/portfolio"

	"github.com/spf13/cobra"
)

var (
	sizeCapital float64
	sizeRisk    float64
	sizeEntry   float64
	sizeStop    float64
	sizeTarget  float64
)

var sizeCmd = &cobra.Command{
	Use:   "size",
	Short: "Size a position from capital, risk percent, entry, stop and target",
	Long: `Compute quantity, risk and reward for one planned trade.

Capital and risk percent default to the risk section of the config.

Examples:
  sigctl size --entry 100 --stop 95 --target 110
  sigctl size --capital 50000 --risk 1 --entry 2450 --stop 2400 --target 2550`,
	RunE: runSize,
}

func init() {
	sizeCmd.Flags().Float64Var(&sizeCapital, "capital", 0, "account capital (default: risk.capital)")
	sizeCmd.Flags().Float64Var(&sizeRisk, "risk", 0, "risk percent per trade (default: risk.risk_percent)")
	sizeCmd.Flags().Float64Var(&sizeEntry, "entry", 0, "entry price")
	sizeCmd.Flags().Float64Var(&sizeStop, "stop", 0, "stop-loss price")
	sizeCmd.Flags().Float64Var(&sizeTarget, "target", 0, "target price")
	sizeCmd.MarkFlagRequired("entry")
	sizeCmd.MarkFlagRequired("stop")
	sizeCmd.MarkFlagRequired("target")
	rootCmd.AddCommand(sizeCmd)
}

func runSize(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	params := cfg.Risk
	if cmd.Flags().Changed("capital") {
		params.Capital = sizeCapital
	}
	if cmd.Flags().Changed("risk") {
		params.RiskPercent = sizeRisk
	}

	plan, err := portfolio.Size(params, sizeEntry, sizeStop, sizeTarget)
	if errors.Is(err, portfolio.ErrUndefinedSize) {
		return fmt.Errorf("entry equals stop, position size is undefined: %w", err)
	}
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), plan)
}
