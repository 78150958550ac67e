package model

import "context"

// ── Integration Port Interfaces ──
// These decouple the recompute engine from concrete bar sources and result sinks.

// BarSource supplies bar history and live quotes for a symbol.
type BarSource interface {
	// Bars returns up to limit most recent bars, oldest first.
	Bars(ctx context.Context, symbol string, limit int) (Series, error)

	// Quote returns the current quote for symbol.
	Quote(ctx context.Context, symbol string) (Quote, error)
}

// Result is one recompute outcome for a symbol.
type Result struct {
	ID       string        `json:"id"`
	Symbol   string        `json:"symbol"`
	RunID    string        `json:"runId"`
	TraceID  string        `json:"traceId"`
	Bars     int           `json:"bars"`
	Quote    Quote         `json:"quote"`
	Latest   Snapshot      `json:"indicators"`
	Signal   TradingSignal `json:"signal"`
	Fallback bool          `json:"fallback"`
	At       int64         `json:"at"` // ms since epoch
}

// ResultSink receives recompute results.
type ResultSink interface {
	// Name identifies the sink in logs and metrics.
	Name() string

	// Publish delivers one result.
	Publish(ctx context.Context, r Result) error
}
