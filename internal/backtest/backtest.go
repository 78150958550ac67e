// Package backtest walks a stored bar series forward, recomputing the
// indicator bundle and signal at every bar as the live engine would, and
// scores each directional call against the bars that follow it.
package backtest

import (
	"context"
	"log"

	"tradesignal/internal/indicator"
	"tradesignal/internal/model"
	"tradesignal/internal/strategy"
)

// Outcome is how a directional call resolved against later bars.
type Outcome string

const (
	OutcomeTarget Outcome = "TARGET" // target reached before stop
	OutcomeStop   Outcome = "STOP"   // stop reached first (or on the same bar)
	OutcomeOpen   Outcome = "OPEN"   // neither level touched before the series ended
)

// Trade is one scored BUY or SELL call.
type Trade struct {
	TS       int64        `json:"ts"`
	Action   model.Action `json:"action"`
	Entry    float64      `json:"entry"`
	Target   float64      `json:"target"`
	Stop     float64      `json:"stop"`
	Outcome  Outcome      `json:"outcome"`
	ExitTS   int64        `json:"exitTs,omitempty"`
	BarsHeld int          `json:"barsHeld"`
}

// Report summarises a walk-forward run.
type Report struct {
	Symbol    string               `json:"symbol"`
	Bars      int                  `json:"bars"`
	Evaluated int                  `json:"evaluated"`
	Actions   map[model.Action]int `json:"actions"`
	Trades    []Trade              `json:"trades"`
	Targets   int                  `json:"targets"`
	Stops     int                  `json:"stops"`
	Open      int                  `json:"open"`
}

// HitRate is targets / (targets + stops); zero when nothing resolved.
func (r Report) HitRate() float64 {
	closed := r.Targets + r.Stops
	if closed == 0 {
		return 0
	}
	return float64(r.Targets) / float64(closed)
}

// Runner evaluates signals over a series.
type Runner struct {
	Aggregator   *indicator.Aggregator
	Synthesizer  *strategy.Synthesizer
	VolumeWindow int
	// Warmup is the number of bars required before the first evaluation.
	// Zero uses the aggregator's longest period.
	Warmup int
}

// Run evaluates the signal at every bar from Warmup onwards, using only the
// bars up to and including that bar. The quote at each step is derived from
// the series itself.
func (rn *Runner) Run(ctx context.Context, symbol string, series model.Series) (Report, error) {
	if err := series.Validate(); err != nil {
		return Report{}, err
	}
	warmup := rn.Warmup
	if warmup <= 0 {
		warmup = rn.Aggregator.Config().LongestPeriod()
	}

	rep := Report{
		Symbol:  symbol,
		Bars:    len(series),
		Actions: make(map[model.Action]int),
	}
	for i := warmup - 1; i < len(series); i++ {
		if i < 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			log.Printf("[backtest] cancelled after %d evaluations", rep.Evaluated)
			return rep, err
		}

		window := series[:i+1]
		bundle := rn.Aggregator.Compute(window)
		q, _ := model.QuoteFromSeries(symbol, window)
		sig := rn.Synthesizer.Evaluate(strategy.InputsFrom(bundle.Latest(rn.VolumeWindow), q))

		rep.Evaluated++
		rep.Actions[sig.Signal]++

		if sig.Signal == model.ActionHold || sig.TargetPrice == nil || sig.StopLoss == nil {
			continue
		}
		t := Resolve(sig.Signal, series[i], *sig.TargetPrice, *sig.StopLoss, series[i+1:])
		switch t.Outcome {
		case OutcomeTarget:
			rep.Targets++
		case OutcomeStop:
			rep.Stops++
		default:
			rep.Open++
		}
		rep.Trades = append(rep.Trades, t)
	}
	return rep, nil
}

// Resolve scores a call entered at the close of entryBar against the bars
// that follow. A bar that spans both levels counts as a stop.
func Resolve(action model.Action, entryBar model.Bar, target, stop float64, future model.Series) Trade {
	t := Trade{
		TS:      entryBar.TS,
		Action:  action,
		Entry:   entryBar.Close,
		Target:  target,
		Stop:    stop,
		Outcome: OutcomeOpen,
	}
	for k, b := range future {
		var hitStop, hitTarget bool
		switch action {
		case model.ActionBuy:
			hitStop, hitTarget = b.Low <= stop, b.High >= target
		case model.ActionSell:
			hitStop, hitTarget = b.High >= stop, b.Low <= target
		default:
			return t
		}
		if hitStop || hitTarget {
			t.Outcome = OutcomeTarget
			if hitStop {
				t.Outcome = OutcomeStop
			}
			t.ExitTS = b.TS
			t.BarsHeld = k + 1
			return t
		}
	}
	t.BarsHeld = len(future)
	return t
}
