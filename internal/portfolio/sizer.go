// Package portfolio sizes positions from account risk parameters and a
// signal's entry, stop and target levels. It has no dependency on the
// indicator pipeline.
package portfolio

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"tradesignal/internal/model"
)

var (
	// ErrInvalidParams is returned for non-positive capital or prices, or a
	// risk percentage outside (0, 100].
	ErrInvalidParams = errors.New("invalid sizing params")

	// ErrUndefinedSize is returned when entry equals stop: the risk per unit
	// is zero and no quantity can be derived.
	ErrUndefinedSize = errors.New("undefined position size: zero risk per unit")
)

var hundred = decimal.NewFromInt(100)

// RiskParams are the account-level inputs to sizing.
type RiskParams struct {
	Capital     float64 `json:"capital" yaml:"capital"`
	RiskPercent float64 `json:"riskPercent" yaml:"risk_percent"`
}

// DefaultRiskParams returns ₹1,00,000 capital risking 2% per trade.
func DefaultRiskParams() RiskParams {
	return RiskParams{Capital: 100000, RiskPercent: 2}
}

// Validate checks capital > 0 and 0 < riskPercent <= 100.
func (p RiskParams) Validate() error {
	if p.Capital <= 0 {
		return fmt.Errorf("%w: capital must be positive, got %g", ErrInvalidParams, p.Capital)
	}
	if p.RiskPercent <= 0 || p.RiskPercent > 100 {
		return fmt.Errorf("%w: risk percent must be in (0, 100], got %g", ErrInvalidParams, p.RiskPercent)
	}
	return nil
}

// Size computes the position plan for one trade:
//
//	riskAmount  = capital × riskPercent / 100
//	riskPerUnit = |entry − stop|
//	quantity    = floor(riskAmount / riskPerUnit)
//
// A zero risk per unit returns ErrUndefinedSize. A quantity of zero is a valid
// plan; its risk/reward ratio is left undefined (nil) because potential loss is zero.
func Size(p RiskParams, entry, stop, target float64) (model.PositionPlan, error) {
	if err := p.Validate(); err != nil {
		return model.PositionPlan{}, err
	}
	if entry <= 0 || stop <= 0 || target <= 0 {
		return model.PositionPlan{}, fmt.Errorf("%w: prices must be positive (entry=%g stop=%g target=%g)",
			ErrInvalidParams, entry, stop, target)
	}

	entryD := decimal.NewFromFloat(entry)
	riskAmount := decimal.NewFromFloat(p.Capital).Mul(decimal.NewFromFloat(p.RiskPercent)).Div(hundred)
	riskPerUnit := entryD.Sub(decimal.NewFromFloat(stop)).Abs()
	if riskPerUnit.IsZero() {
		return model.PositionPlan{}, ErrUndefinedSize
	}
	rewardPerUnit := decimal.NewFromFloat(target).Sub(entryD).Abs()

	qty := riskAmount.Div(riskPerUnit).Floor()
	potentialLoss := qty.Mul(riskPerUnit)
	potentialProfit := qty.Mul(rewardPerUnit)

	plan := model.PositionPlan{
		Quantity:        qty.IntPart(),
		RiskAmount:      riskAmount.InexactFloat64(),
		RiskPerUnit:     riskPerUnit.InexactFloat64(),
		TotalInvestment: qty.Mul(entryD).InexactFloat64(),
		PotentialLoss:   potentialLoss.InexactFloat64(),
		PotentialProfit: potentialProfit.InexactFloat64(),
	}
	if !potentialLoss.IsZero() {
		ratio := potentialProfit.Div(potentialLoss).InexactFloat64()
		plan.RiskRewardRatio = &ratio
	}
	return plan, nil
}

// SizeSignal sizes a position at entry using the signal's stop and target.
// Signals without price levels (HOLD) return ErrUndefinedSize.
func SizeSignal(p RiskParams, entry float64, sig model.TradingSignal) (model.PositionPlan, error) {
	if sig.StopLoss == nil || sig.TargetPrice == nil {
		return model.PositionPlan{}, ErrUndefinedSize
	}
	return Size(p, entry, *sig.StopLoss, *sig.TargetPrice)
}
