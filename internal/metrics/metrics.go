package metrics

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the signal engine.
type Metrics struct {
	Registry *prometheus.Registry

	RecomputeDur   prometheus.Histogram
	RecomputeTotal *prometheus.CounterVec // labels: symbol, outcome=ok|error|skipped
	SignalsTotal   *prometheus.CounterVec // labels: action
	Confidence     *prometheus.GaugeVec   // labels: symbol
	OverlapSkips   *prometheus.CounterVec // labels: symbol
	Fallbacks      *prometheus.CounterVec // labels: symbol
	SinkErrors     *prometheus.CounterVec // labels: sink
	SinkPublishDur *prometheus.HistogramVec

	// Market session
	MarketState prometheus.Gauge // 0=closed, 1=open

	// Gateway
	WSClients   prometheus.Gauge
	HTTPReqsDur *prometheus.HistogramVec // labels: route, code
}

// NewMetrics builds every collector on a fresh registry, so multiple
// instances (tests, sigctl) never collide on the global default.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),

		RecomputeDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sigengine_recompute_duration_seconds",
			Help:    "Latency of one fetch-compute-publish cycle per symbol",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2},
		}),
		RecomputeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sigengine_recompute_total",
			Help: "Recompute jobs by symbol and outcome",
		}, []string{"symbol", "outcome"}),
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sigengine_signals_total",
			Help: "Signals generated by action",
		}, []string{"action"}),
		Confidence: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sigengine_signal_confidence",
			Help: "Confidence of the latest signal per symbol",
		}, []string{"symbol"}),
		OverlapSkips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sigengine_overlap_skips_total",
			Help: "Scheduled jobs skipped because the previous run for the symbol was still in flight",
		}, []string{"symbol"}),
		Fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sigengine_source_fallbacks_total",
			Help: "Recomputes served from the fallback bar source",
		}, []string{"symbol"}),
		SinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sigengine_sink_errors_total",
			Help: "Failed result publishes per sink",
		}, []string{"sink"}),
		SinkPublishDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sigengine_sink_publish_duration_seconds",
			Help:    "Publish latency per sink",
			Buckets: prometheus.DefBuckets,
		}, []string{"sink"}),

		MarketState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sigengine_market_state",
			Help: "Market session state (0=closed, 1=open)",
		}),

		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sigengine_ws_clients",
			Help: "Connected WebSocket clients",
		}),
		HTTPReqsDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sigengine_http_request_duration_seconds",
			Help:    "HTTP API latency by route and status code",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "code"}),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RecomputeDur,
		m.RecomputeTotal,
		m.SignalsTotal,
		m.Confidence,
		m.OverlapSkips,
		m.Fallbacks,
		m.SinkErrors,
		m.SinkPublishDur,
		m.MarketState,
		m.WSClients,
		m.HTTPReqsDur,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Pinger is satisfied by any dependency that can report liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	Symbols   []string             `json:"symbols"`
	LastRunAt time.Time            `json:"last_run_at"`
	LastError string               `json:"last_error"`
	Deps      map[string]DepStatus `json:"deps"`
	StartedAt time.Time            `json:"started_at"`

	probes map[string]Pinger
}

// DepStatus is the result of the last liveness probe for one dependency.
type DepStatus struct {
	OK        bool    `json:"ok"`
	LatencyMs float64 `json:"latency_ms"`
	Error     string  `json:"error,omitempty"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		Deps:      make(map[string]DepStatus),
		probes:    make(map[string]Pinger),
		StartedAt: time.Now(),
	}
}

func (h *HealthStatus) SetSymbols(symbols []string) {
	h.mu.Lock()
	h.Symbols = symbols
	h.mu.Unlock()
}

// RecordRun notes the completion of a recompute; err may be nil.
func (h *HealthStatus) RecordRun(at time.Time, err error) {
	h.mu.Lock()
	h.LastRunAt = at
	if err != nil {
		h.LastError = err.Error()
	} else {
		h.LastError = ""
	}
	h.mu.Unlock()
}

// Register adds a dependency to the liveness checker. It is reported as
// down until the first probe succeeds.
func (h *HealthStatus) Register(name string, p Pinger) {
	h.mu.Lock()
	h.probes[name] = p
	h.Deps[name] = DepStatus{}
	h.mu.Unlock()
}

// Check probes every registered dependency once.
func (h *HealthStatus) Check(ctx context.Context) {
	h.mu.RLock()
	probes := make(map[string]Pinger, len(h.probes))
	for k, v := range h.probes {
		probes[k] = v
	}
	h.mu.RUnlock()

	for name, p := range probes {
		start := time.Now()
		err := p.Ping(ctx)
		st := DepStatus{
			OK:        err == nil,
			LatencyMs: float64(time.Since(start).Microseconds()) / 1000.0,
		}
		if err != nil {
			st.Error = err.Error()
		}
		h.mu.Lock()
		h.Deps[name] = st
		h.mu.Unlock()
	}
}

// StartLivenessChecker runs periodic dependency checks.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, interval time.Duration) {
	go func() {
		h.Check(ctx)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				h.Check(probeCtx)
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK

	down := 0
	for _, d := range h.Deps {
		if !d.OK {
			down++
		}
	}
	if down > 0 {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}
	if len(h.Deps) > 0 && down == len(h.Deps) {
		overallStatus = "unhealthy"
	}

	lastRun := ""
	if !h.LastRunAt.IsZero() {
		lastRun = h.LastRunAt.Format(time.RFC3339)
	}

	status := struct {
		Status    string               `json:"status"`
		Uptime    string               `json:"uptime"`
		Symbols   []string             `json:"symbols"`
		LastRunAt string               `json:"last_run_at"`
		LastError string               `json:"last_error,omitempty"`
		Deps      map[string]DepStatus `json:"deps"`
	}{
		Status:    overallStatus,
		Uptime:    time.Since(h.StartedAt).Round(time.Second).String(),
		Symbols:   h.Symbols,
		LastRunAt: lastRun,
		LastError: h.LastError,
		Deps:      h.Deps,
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	addr string
	srv  *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, m *Metrics, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.Handle("/healthz", health)

	return &Server{
		addr: addr,
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
