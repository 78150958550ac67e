package backtest

import (
	"context"
	"errors"
	"testing"
	"time"

	"tradesignal/internal/feed"
	"tradesignal/internal/indicator"
	"tradesignal/internal/model"
	"tradesignal/internal/strategy"
)

func newRunner(t *testing.T) *Runner {
	t.Helper()
	agg, err := indicator.NewAggregator(indicator.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	synth, err := strategy.NewSynthesizer(strategy.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	return &Runner{Aggregator: agg, Synthesizer: synth, VolumeWindow: 20}
}

func syntheticSeries(t *testing.T, n int) model.Series {
	t.Helper()
	gen := feed.NewSynthetic(7)
	gen.Count = n
	gen.Now = func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }
	s, err := gen.Bars(context.Background(), "TCS", 0)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

// ──── Resolve ────

func TestResolve_Buy(t *testing.T) {
	entry := model.Bar{TS: 1, Open: 100, High: 101, Low: 99, Close: 100}
	cases := []struct {
		name   string
		future model.Series
		want   Outcome
		held   int
	}{
		{"target first", model.Series{
			{TS: 2, Open: 100, High: 101, Low: 99.5, Close: 100.5},
			{TS: 3, Open: 100.5, High: 103, Low: 100, Close: 102.5},
		}, OutcomeTarget, 2},
		{"stop first", model.Series{
			{TS: 2, Open: 100, High: 100.5, Low: 97.5, Close: 98},
		}, OutcomeStop, 1},
		{"both on one bar counts as stop", model.Series{
			{TS: 2, Open: 100, High: 103, Low: 97, Close: 100},
		}, OutcomeStop, 1},
		{"never touched", model.Series{
			{TS: 2, Open: 100, High: 101, Low: 99, Close: 100},
			{TS: 3, Open: 100, High: 101, Low: 99, Close: 100},
		}, OutcomeOpen, 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tr := Resolve(model.ActionBuy, entry, 102, 98, tc.future)
			if tr.Outcome != tc.want {
				t.Errorf("outcome: got %s, want %s", tr.Outcome, tc.want)
			}
			if tr.BarsHeld != tc.held {
				t.Errorf("bars held: got %d, want %d", tr.BarsHeld, tc.held)
			}
			if tr.Entry != 100 {
				t.Errorf("entry: got %v", tr.Entry)
			}
		})
	}
}

func TestResolve_Sell(t *testing.T) {
	entry := model.Bar{TS: 1, Open: 100, High: 101, Low: 99, Close: 100}
	future := model.Series{
		{TS: 2, Open: 100, High: 100.5, Low: 97.9, Close: 98},
	}
	tr := Resolve(model.ActionSell, entry, 98, 102, future)
	if tr.Outcome != OutcomeTarget || tr.ExitTS != 2 {
		t.Errorf("sell: got %+v", tr)
	}

	future = model.Series{{TS: 2, Open: 100, High: 102.1, Low: 99, Close: 101}}
	tr = Resolve(model.ActionSell, entry, 98, 102, future)
	if tr.Outcome != OutcomeStop {
		t.Errorf("sell stop: got %s", tr.Outcome)
	}
}

func TestResolve_HoldIsOpen(t *testing.T) {
	tr := Resolve(model.ActionHold, model.Bar{TS: 1, Close: 100}, 0, 0, model.Series{{TS: 2, High: 200, Low: 1}})
	if tr.Outcome != OutcomeOpen {
		t.Errorf("hold: got %s", tr.Outcome)
	}
}

// ──── Run ────

func TestRun_CountsEveryBarAfterWarmup(t *testing.T) {
	rn := newRunner(t)
	series := syntheticSeries(t, 120)

	rep, err := rn.Run(context.Background(), "TCS", series)
	if err != nil {
		t.Fatal(err)
	}
	warmup := rn.Aggregator.Config().LongestPeriod()
	if want := 120 - warmup + 1; rep.Evaluated != want {
		t.Errorf("evaluated: got %d, want %d", rep.Evaluated, want)
	}
	total := 0
	for _, n := range rep.Actions {
		total += n
	}
	if total != rep.Evaluated {
		t.Errorf("action counts %v do not sum to %d", rep.Actions, rep.Evaluated)
	}
	if got := rep.Targets + rep.Stops + rep.Open; got != len(rep.Trades) {
		t.Errorf("outcome tally %d != trades %d", got, len(rep.Trades))
	}
	directional := rep.Actions[model.ActionBuy] + rep.Actions[model.ActionSell]
	if len(rep.Trades) != directional {
		t.Errorf("trades %d != directional calls %d", len(rep.Trades), directional)
	}
}

func TestRun_Deterministic(t *testing.T) {
	rn := newRunner(t)
	series := syntheticSeries(t, 90)
	a, _ := rn.Run(context.Background(), "TCS", series)
	b, _ := rn.Run(context.Background(), "TCS", series)
	if a.Evaluated != b.Evaluated || len(a.Trades) != len(b.Trades) || a.Targets != b.Targets {
		t.Errorf("runs differ: %+v vs %+v", a, b)
	}
}

func TestRun_ShortSeries(t *testing.T) {
	rn := newRunner(t)
	rep, err := rn.Run(context.Background(), "TCS", syntheticSeries(t, 10))
	if err != nil {
		t.Fatal(err)
	}
	if rep.Evaluated != 0 || len(rep.Trades) != 0 {
		t.Errorf("short series should not evaluate: %+v", rep)
	}
}

func TestRun_CustomWarmup(t *testing.T) {
	rn := newRunner(t)
	rn.Warmup = 5
	rep, err := rn.Run(context.Background(), "TCS", syntheticSeries(t, 10))
	if err != nil {
		t.Fatal(err)
	}
	if rep.Evaluated != 6 {
		t.Errorf("evaluated: got %d, want 6", rep.Evaluated)
	}
}

func TestRun_InvalidSeries(t *testing.T) {
	rn := newRunner(t)
	bad := model.Series{{TS: 2, Open: 1, High: 1, Low: 1, Close: 1}, {TS: 1, Open: 1, High: 1, Low: 1, Close: 1}}
	if _, err := rn.Run(context.Background(), "X", bad); !errors.Is(err, model.ErrInvalidSeries) {
		t.Errorf("want ErrInvalidSeries, got %v", err)
	}
}

func TestRun_Cancelled(t *testing.T) {
	rn := newRunner(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := rn.Run(ctx, "TCS", syntheticSeries(t, 80)); !errors.Is(err, context.Canceled) {
		t.Errorf("want context.Canceled, got %v", err)
	}
}

func TestReport_HitRate(t *testing.T) {
	if (Report{}).HitRate() != 0 {
		t.Error("empty report hit rate should be 0")
	}
	if got := (Report{Targets: 3, Stops: 1}).HitRate(); got != 0.75 {
		t.Errorf("hit rate: got %v", got)
	}
}
