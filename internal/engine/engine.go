// Package engine schedules per-symbol recomputes: fetch bars, compute the
// indicator bundle, synthesize a signal and publish the result to sinks.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"tradesignal/internal/indicator"
	"tradesignal/internal/logger"
	"tradesignal/internal/markethours"
	"tradesignal/internal/metrics"
	"tradesignal/internal/model"
	"tradesignal/internal/strategy"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// ErrBusy is returned by RecomputeNow while a recompute for the same symbol
// is still running.
var ErrBusy = errors.New("recompute already in flight")

const sinkTimeout = 5 * time.Second

// Options controls scheduling.
type Options struct {
	Symbols         []string
	Schedule        string // robfig/cron spec with seconds, e.g. "@every 2s"
	BarLimit        int
	VolumeWindow    int // bars in the average-volume window
	MarketHoursOnly bool
	Session         markethours.Session
}

// Deps are the collaborators the engine drives. Metrics and Health are optional.
type Deps struct {
	Source      model.BarSource
	Aggregator  *indicator.Aggregator
	Synthesizer *strategy.Synthesizer
	Sinks       []model.ResultSink
	Metrics     *metrics.Metrics
	Health      *metrics.HealthStatus
}

// originSource is implemented by sources that can tell whether a series
// came from a fallback.
type originSource interface {
	BarsWithOrigin(ctx context.Context, symbol string, limit int) (model.Series, bool, error)
}

// Service is the recompute orchestrator.
type Service struct {
	opts  Options
	deps  Deps
	runID string
	now   func() time.Time

	cron     *cron.Cron
	inFlight sync.Map // symbol -> *atomic.Bool
}

// New validates opts and returns a Service. Symbols are upper-cased.
func New(opts Options, deps Deps) (*Service, error) {
	if deps.Source == nil || deps.Aggregator == nil || deps.Synthesizer == nil {
		return nil, errors.New("engine: source, aggregator and synthesizer are required")
	}
	if opts.Schedule == "" {
		opts.Schedule = "@every 2s"
	}
	if opts.BarLimit <= 0 {
		opts.BarLimit = 300
	}
	if opts.VolumeWindow <= 0 {
		opts.VolumeWindow = deps.Aggregator.Config().SMAShort
	}

	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(opts.Schedule); err != nil {
		return nil, fmt.Errorf("engine: bad schedule %q: %w", opts.Schedule, err)
	}

	seen := make(map[string]bool, len(opts.Symbols))
	symbols := make([]string, 0, len(opts.Symbols))
	for _, s := range opts.Symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		symbols = append(symbols, s)
	}
	opts.Symbols = symbols

	return &Service{
		opts:  opts,
		deps:  deps,
		runID: uuid.NewString(),
		now:   time.Now,
		cron:  cron.New(cron.WithParser(parser)),
	}, nil
}

// RunID identifies this engine process in every published result.
func (svc *Service) RunID() string { return svc.runID }

// Symbols returns the tracked symbols.
func (svc *Service) Symbols() []string {
	out := make([]string, len(svc.opts.Symbols))
	copy(out, svc.opts.Symbols)
	return out
}

// Run registers one job per symbol and blocks until ctx is cancelled, then
// waits for in-flight jobs to finish.
func (svc *Service) Run(ctx context.Context) error {
	for _, sym := range svc.opts.Symbols {
		sym := sym
		if _, err := svc.cron.AddFunc(svc.opts.Schedule, func() { svc.tick(ctx, sym) }); err != nil {
			return fmt.Errorf("engine: register %s: %w", sym, err)
		}
	}
	if svc.deps.Health != nil {
		svc.deps.Health.SetSymbols(svc.Symbols())
	}

	svc.cron.Start()
	log.Printf("[engine] run=%s tracking %d symbols %v schedule=%q market_hours_only=%v",
		svc.runID, len(svc.opts.Symbols), svc.opts.Symbols, svc.opts.Schedule, svc.opts.MarketHoursOnly)

	<-ctx.Done()

	stopCtx := svc.cron.Stop()
	<-stopCtx.Done()
	log.Println("[engine] stopped")
	return nil
}

// tick is one scheduled firing for sym.
func (svc *Service) tick(ctx context.Context, sym string) {
	if ctx.Err() != nil {
		return
	}
	if svc.opts.MarketHoursOnly {
		open := svc.opts.Session.IsOpen(svc.now())
		if m := svc.deps.Metrics; m != nil {
			if open {
				m.MarketState.Set(1)
			} else {
				m.MarketState.Set(0)
			}
		}
		if !open {
			return
		}
	}

	flag := svc.flag(sym)
	if !flag.CompareAndSwap(false, true) {
		if m := svc.deps.Metrics; m != nil {
			m.OverlapSkips.WithLabelValues(sym).Inc()
			m.RecomputeTotal.WithLabelValues(sym, "skipped").Inc()
		}
		slog.Debug("recompute skipped, previous run in flight", "symbol", sym)
		return
	}
	defer flag.Store(false)

	if _, err := svc.recompute(ctx, sym); err != nil {
		log.Printf("[engine] %s recompute failed: %v", sym, err)
	}
}

// RecomputeNow runs one recompute for symbol outside the schedule. The
// symbol does not need to be tracked.
func (svc *Service) RecomputeNow(ctx context.Context, symbol string) (model.Result, error) {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	if sym == "" {
		return model.Result{}, errors.New("engine: empty symbol")
	}
	flag := svc.flag(sym)
	if !flag.CompareAndSwap(false, true) {
		return model.Result{}, fmt.Errorf("%w: %s", ErrBusy, sym)
	}
	defer flag.Store(false)
	return svc.recompute(ctx, sym)
}

func (svc *Service) flag(sym string) *atomic.Bool {
	v, _ := svc.inFlight.LoadOrStore(sym, new(atomic.Bool))
	return v.(*atomic.Bool)
}

func (svc *Service) recompute(ctx context.Context, sym string) (model.Result, error) {
	start := svc.now()
	traceID := logger.GenerateTraceID(sym, start)
	ctx = logger.WithTraceID(ctx, traceID)

	r, err := svc.compute(ctx, sym, start)

	m := svc.deps.Metrics
	if m != nil {
		m.RecomputeDur.Observe(time.Since(start).Seconds())
	}
	if svc.deps.Health != nil {
		svc.deps.Health.RecordRun(start, err)
	}
	if err != nil {
		if m != nil {
			m.RecomputeTotal.WithLabelValues(sym, "error").Inc()
		}
		slog.Warn("recompute failed", append(logger.LogWithTrace(ctx), "symbol", sym, "error", err)...)
		return model.Result{}, err
	}

	if m != nil {
		m.RecomputeTotal.WithLabelValues(sym, "ok").Inc()
		m.SignalsTotal.WithLabelValues(string(r.Signal.Signal)).Inc()
		m.Confidence.WithLabelValues(sym).Set(float64(r.Signal.Confidence))
		if r.Fallback {
			m.Fallbacks.WithLabelValues(sym).Inc()
		}
	}
	slog.Info("recompute",
		append(logger.LogWithTrace(ctx),
			"symbol", sym,
			"bars", r.Bars,
			"signal", r.Signal.Signal,
			"confidence", r.Signal.Confidence,
			"fallback", r.Fallback,
		)...)

	svc.publish(ctx, r)
	return r, nil
}

// compute is the pure part of a recompute: no metrics, no sinks.
func (svc *Service) compute(ctx context.Context, sym string, at time.Time) (model.Result, error) {
	var (
		bars     model.Series
		fallback bool
		err      error
	)
	if src, ok := svc.deps.Source.(originSource); ok {
		bars, fallback, err = src.BarsWithOrigin(ctx, sym, svc.opts.BarLimit)
	} else {
		bars, err = svc.deps.Source.Bars(ctx, sym, svc.opts.BarLimit)
	}
	if err != nil {
		return model.Result{}, fmt.Errorf("bars %s: %w", sym, err)
	}
	if err := bars.Validate(); err != nil {
		return model.Result{}, fmt.Errorf("bars %s: %w", sym, err)
	}
	if !svc.deps.Aggregator.Sufficient(len(bars)) {
		slog.Debug("short history, some indicators unavailable",
			append(logger.LogWithTrace(ctx), "symbol", sym, "bars", len(bars))...)
	}

	bundle := svc.deps.Aggregator.Compute(bars)

	q, qerr := svc.deps.Source.Quote(ctx, sym)
	if qerr != nil || q.Price <= 0 {
		q, _ = model.QuoteFromSeries(sym, bars)
	}

	snap := bundle.Latest(svc.opts.VolumeWindow)
	sig := svc.deps.Synthesizer.Evaluate(strategy.InputsFrom(snap, q))
	sig.Symbol = sym
	sig.GeneratedAt = at.UnixMilli()

	return model.Result{
		ID:       uuid.NewString(),
		Symbol:   sym,
		RunID:    svc.runID,
		TraceID:  logger.TraceID(ctx),
		Bars:     len(bars),
		Quote:    q,
		Latest:   snap,
		Signal:   sig,
		Fallback: fallback,
		At:       at.UnixMilli(),
	}, nil
}

// publish delivers r to every sink. A failing sink does not block the others.
func (svc *Service) publish(ctx context.Context, r model.Result) {
	for _, sink := range svc.deps.Sinks {
		sctx, cancel := context.WithTimeout(ctx, sinkTimeout)
		start := time.Now()
		err := sink.Publish(sctx, r)
		cancel()

		if m := svc.deps.Metrics; m != nil {
			m.SinkPublishDur.WithLabelValues(sink.Name()).Observe(time.Since(start).Seconds())
			if err != nil {
				m.SinkErrors.WithLabelValues(sink.Name()).Inc()
			}
		}
		if err != nil {
			slog.Warn("sink publish failed",
				append(logger.LogWithTrace(ctx), "sink", sink.Name(), "symbol", r.Symbol, "error", err)...)
		}
	}
}
