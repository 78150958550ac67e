package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"tradesignal/internal/indicator"
	"tradesignal/internal/markethours"
	"tradesignal/internal/metrics"
	"tradesignal/internal/model"
	"tradesignal/internal/strategy"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// ──── Fakes ────

func makeSeries(n int) model.Series {
	out := make(model.Series, n)
	price := 1000.0
	for i := range out {
		step := 2.0
		if i%3 == 0 {
			step = -3
		}
		open := price
		price += step
		out[i] = model.Bar{
			TS:     int64(1_700_000_000_000 + i*300_000),
			Open:   open,
			High:   max(open, price) + 1,
			Low:    min(open, price) - 1,
			Close:  price,
			Volume: 1000 + float64(i%5)*100,
		}
	}
	return out
}

type fakeSource struct {
	mu       sync.Mutex
	bars     model.Series
	err      error
	quoteErr error
	calls    map[string]int

	block   string // symbol whose first Bars call blocks until release is closed
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (f *fakeSource) Bars(ctx context.Context, symbol string, limit int) (model.Series, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[symbol]++
	f.mu.Unlock()

	if symbol == f.block {
		first := false
		f.once.Do(func() { first = true })
		if first {
			close(f.entered)
			<-f.release
		}
	}
	return f.bars, f.err
}

func (f *fakeSource) Quote(ctx context.Context, symbol string) (model.Quote, error) {
	if f.quoteErr != nil {
		return model.Quote{}, f.quoteErr
	}
	return model.NewQuote(symbol, 1234, 1200, 1210, 1240, 1200, 5000, 1), nil
}

func (f *fakeSource) count(symbol string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[symbol]
}

type fallbackSource struct{ fakeSource }

func (f *fallbackSource) BarsWithOrigin(ctx context.Context, symbol string, limit int) (model.Series, bool, error) {
	bars, err := f.Bars(ctx, symbol, limit)
	return bars, true, err
}

type recordingSink struct {
	name string
	err  error

	mu      sync.Mutex
	results []model.Result
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Publish(_ context.Context, r model.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, r)
	return s.err
}

func (s *recordingSink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.results)
}

func newService(t *testing.T, opts Options, src model.BarSource, sinks ...model.ResultSink) (*Service, *metrics.Metrics) {
	t.Helper()
	agg, err := indicator.NewAggregator(indicator.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	syn, err := strategy.NewSynthesizer(strategy.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	m := metrics.NewMetrics()
	svc, err := New(opts, Deps{
		Source:      src,
		Aggregator:  agg,
		Synthesizer: syn,
		Sinks:       sinks,
		Metrics:     m,
		Health:      metrics.NewHealthStatus(),
	})
	if err != nil {
		t.Fatal(err)
	}
	return svc, m
}

// ──── Construction ────

func TestNew_RequiresDeps(t *testing.T) {
	if _, err := New(Options{}, Deps{}); err == nil {
		t.Fatal("expected error without deps")
	}
}

func TestNew_BadSchedule(t *testing.T) {
	agg, _ := indicator.NewAggregator(indicator.DefaultConfig())
	syn, _ := strategy.NewSynthesizer(strategy.DefaultConfig())
	_, err := New(Options{Schedule: "every tuesday"}, Deps{Source: &fakeSource{}, Aggregator: agg, Synthesizer: syn})
	if err == nil {
		t.Fatal("expected schedule parse error")
	}
}

func TestNew_NormalizesSymbols(t *testing.T) {
	svc, _ := newService(t, Options{Symbols: []string{"tcs", " INFY ", "TCS", ""}}, &fakeSource{})
	got := svc.Symbols()
	if len(got) != 2 || got[0] != "TCS" || got[1] != "INFY" {
		t.Errorf("symbols: got %v", got)
	}
}

// ──── Recompute ────

func TestRecomputeNow_PublishesResult(t *testing.T) {
	src := &fakeSource{bars: makeSeries(101)}
	sink := &recordingSink{name: "mem"}
	svc, m := newService(t, Options{}, src, sink)

	r, err := svc.RecomputeNow(context.Background(), "tcs")
	if err != nil {
		t.Fatal(err)
	}
	if r.Symbol != "TCS" || r.Signal.Symbol != "TCS" {
		t.Errorf("symbol: got %q / %q", r.Symbol, r.Signal.Symbol)
	}
	if r.Bars != 101 {
		t.Errorf("bars: got %d", r.Bars)
	}
	if r.RunID != svc.RunID() || r.ID == "" {
		t.Errorf("ids: run=%q id=%q", r.RunID, r.ID)
	}
	if !strings.HasPrefix(r.TraceID, "TCS-") {
		t.Errorf("trace id: got %q", r.TraceID)
	}
	if r.Quote.Price != 1234 {
		t.Errorf("quote should come from the source, got %v", r.Quote.Price)
	}
	if !r.Latest.RSI.OK || !r.Latest.SMA50.OK {
		t.Error("101 bars should produce RSI and SMA50")
	}
	switch r.Signal.Signal {
	case model.ActionBuy, model.ActionSell, model.ActionHold:
	default:
		t.Errorf("unexpected action %q", r.Signal.Signal)
	}
	if r.Signal.Confidence < 0 || r.Signal.Confidence > 100 {
		t.Errorf("confidence out of range: %d", r.Signal.Confidence)
	}
	if r.Signal.GeneratedAt != r.At {
		t.Errorf("generatedAt %d != at %d", r.Signal.GeneratedAt, r.At)
	}

	if sink.len() != 1 {
		t.Fatalf("expected 1 published result, got %d", sink.len())
	}
	if got := testutil.ToFloat64(m.RecomputeTotal.WithLabelValues("TCS", "ok")); got != 1 {
		t.Errorf("recompute ok counter: got %v", got)
	}
	if got := testutil.ToFloat64(m.SignalsTotal.WithLabelValues(string(r.Signal.Signal))); got != 1 {
		t.Errorf("signals counter: got %v", got)
	}
}

func TestRecomputeNow_QuoteFallsBackToSeries(t *testing.T) {
	bars := makeSeries(60)
	src := &fakeSource{bars: bars, quoteErr: errors.New("no quote feed")}
	svc, _ := newService(t, Options{}, src)

	r, err := svc.RecomputeNow(context.Background(), "TCS")
	if err != nil {
		t.Fatal(err)
	}
	if r.Quote.Price != bars[len(bars)-1].Close {
		t.Errorf("quote price: got %v, want last close %v", r.Quote.Price, bars[len(bars)-1].Close)
	}
	if r.Quote.PreviousClose != bars[len(bars)-2].Close {
		t.Errorf("previous close: got %v", r.Quote.PreviousClose)
	}
}

func TestRecomputeNow_InvalidSeriesNotPublished(t *testing.T) {
	bars := makeSeries(30)
	bars[10].TS = bars[9].TS
	sink := &recordingSink{name: "mem"}
	svc, m := newService(t, Options{}, &fakeSource{bars: bars}, sink)

	_, err := svc.RecomputeNow(context.Background(), "TCS")
	if !errors.Is(err, model.ErrInvalidSeries) {
		t.Fatalf("expected ErrInvalidSeries, got %v", err)
	}
	if sink.len() != 0 {
		t.Error("invalid series must not be published")
	}
	if got := testutil.ToFloat64(m.RecomputeTotal.WithLabelValues("TCS", "error")); got != 1 {
		t.Errorf("error counter: got %v", got)
	}
}

func TestRecomputeNow_EmptySeries(t *testing.T) {
	svc, _ := newService(t, Options{}, &fakeSource{})
	if _, err := svc.RecomputeNow(context.Background(), "TCS"); !errors.Is(err, model.ErrEmptySeries) {
		t.Fatalf("expected ErrEmptySeries, got %v", err)
	}
}

func TestRecomputeNow_ShortHistory(t *testing.T) {
	svc, _ := newService(t, Options{}, &fakeSource{bars: makeSeries(5)})
	r, err := svc.RecomputeNow(context.Background(), "TCS")
	if err != nil {
		t.Fatal(err)
	}
	if r.Latest.RSI.OK || r.Latest.SMA20.OK || r.Latest.BollingerMid.OK {
		t.Error("5 bars cannot produce RSI, SMA20 or Bollinger")
	}
	if !r.Latest.MACDHistogram.OK || !r.Latest.EMA20.OK {
		t.Error("seeded EMAs produce values from the first bar")
	}
	if strings.Contains(r.Signal.Reason, "RSI") || strings.Contains(r.Signal.Reason, "moving averages") {
		t.Errorf("missing indicators must not fire rules, got reason %q", r.Signal.Reason)
	}
}

func TestRecomputeNow_FallbackFlag(t *testing.T) {
	src := &fallbackSource{fakeSource{bars: makeSeries(60)}}
	svc, m := newService(t, Options{}, src)

	r, err := svc.RecomputeNow(context.Background(), "ITC")
	if err != nil {
		t.Fatal(err)
	}
	if !r.Fallback {
		t.Error("expected fallback flag from origin-aware source")
	}
	if got := testutil.ToFloat64(m.Fallbacks.WithLabelValues("ITC")); got != 1 {
		t.Errorf("fallback counter: got %v", got)
	}
}

func TestPublish_SinkErrorDoesNotStopOthers(t *testing.T) {
	bad := &recordingSink{name: "bad", err: errors.New("down")}
	good := &recordingSink{name: "good"}
	svc, m := newService(t, Options{}, &fakeSource{bars: makeSeries(60)}, bad, good)

	if _, err := svc.RecomputeNow(context.Background(), "TCS"); err != nil {
		t.Fatal(err)
	}
	if good.len() != 1 {
		t.Error("good sink should still receive the result")
	}
	if got := testutil.ToFloat64(m.SinkErrors.WithLabelValues("bad")); got != 1 {
		t.Errorf("sink error counter: got %v", got)
	}
}

// ──── Scheduling ────

func TestTick_SkipsOverlapPerSymbol(t *testing.T) {
	src := &fakeSource{
		bars:    makeSeries(60),
		block:   "TCS",
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	svc, m := newService(t, Options{Symbols: []string{"TCS", "INFY"}}, src)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		svc.tick(ctx, "TCS")
		close(done)
	}()
	<-src.entered

	svc.tick(ctx, "TCS")
	if got := testutil.ToFloat64(m.OverlapSkips.WithLabelValues("TCS")); got != 1 {
		t.Errorf("overlap skips: got %v, want 1", got)
	}
	if _, err := svc.RecomputeNow(ctx, "TCS"); !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy while in flight, got %v", err)
	}

	// Other symbols are independent.
	if _, err := svc.RecomputeNow(ctx, "INFY"); err != nil {
		t.Errorf("INFY should run while TCS is in flight: %v", err)
	}

	close(src.release)
	<-done

	if n := src.count("TCS"); n != 1 {
		t.Errorf("TCS bars fetched %d times, want 1", n)
	}
	if _, err := svc.RecomputeNow(ctx, "TCS"); err != nil {
		t.Errorf("TCS should run again after completion: %v", err)
	}
}

func TestTick_MarketClosedGate(t *testing.T) {
	src := &fakeSource{bars: makeSeries(60)}
	svc, m := newService(t, Options{
		Symbols:         []string{"TCS"},
		MarketHoursOnly: true,
		Session:         markethours.NSE(),
	}, src)

	svc.now = func() time.Time { return time.Date(2026, time.March, 7, 11, 0, 0, 0, markethours.IST) } // Saturday
	svc.tick(context.Background(), "TCS")
	if n := src.count("TCS"); n != 0 {
		t.Errorf("closed market should not fetch, got %d calls", n)
	}
	if got := testutil.ToFloat64(m.MarketState); got != 0 {
		t.Errorf("market state: got %v", got)
	}

	svc.now = func() time.Time { return time.Date(2026, time.March, 10, 11, 0, 0, 0, markethours.IST) } // Tuesday
	svc.tick(context.Background(), "TCS")
	if n := src.count("TCS"); n != 1 {
		t.Errorf("open market should fetch once, got %d", n)
	}
	if got := testutil.ToFloat64(m.MarketState); got != 1 {
		t.Errorf("market state: got %v", got)
	}
}

func TestRun_SchedulesJobs(t *testing.T) {
	sink := &recordingSink{name: "mem"}
	svc, _ := newService(t, Options{Symbols: []string{"TCS"}, Schedule: "@every 1s"}, &fakeSource{bars: makeSeries(60)}, sink)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for sink.len() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	cancel()
	if err := <-errCh; err != nil {
		t.Fatal(err)
	}
	if sink.len() == 0 {
		t.Fatal("expected at least one scheduled result")
	}
}
