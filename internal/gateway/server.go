package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tradesignal/internal/engine"
	"tradesignal/internal/indicator"
	"tradesignal/internal/markethours"
	"tradesignal/internal/metrics"
	"tradesignal/internal/model"
	"tradesignal/internal/portfolio"
	"tradesignal/internal/strategy"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const maxBodyBytes = 4 << 20

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Recomputer runs an on-demand recompute. *engine.Service satisfies it.
type Recomputer interface {
	RecomputeNow(ctx context.Context, symbol string) (model.Result, error)
}

// Options wires the HTTP API.
type Options struct {
	Hub          *Hub
	Aggregator   *indicator.Aggregator
	Synthesizer  *strategy.Synthesizer
	Risk         portfolio.RiskParams
	Symbols      func() []string
	Recomputer   Recomputer // optional
	Session      markethours.Session
	Metrics      *metrics.Metrics // optional
	VolumeWindow int
}

// Server is the REST + WebSocket API.
type Server struct {
	opts    Options
	router  *mux.Router
	started time.Time
}

// NewServer builds the router.
func NewServer(opts Options) *Server {
	if opts.Symbols == nil {
		opts.Symbols = func() []string { return nil }
	}
	if opts.VolumeWindow <= 0 && opts.Aggregator != nil {
		opts.VolumeWindow = opts.Aggregator.Config().SMAShort
	}
	s := &Server{opts: opts, router: mux.NewRouter(), started: time.Now()}
	s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() {
	r := s.router
	r.Use(s.corsMiddleware, s.metricsMiddleware)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/symbols", s.handleSymbols).Methods(http.MethodGet)
	api.HandleFunc("/signals", s.handleSignalsAll).Methods(http.MethodGet)
	api.HandleFunc("/signals/{symbol}", s.handleSignal).Methods(http.MethodGet)
	api.HandleFunc("/signals/{symbol}/history", s.handleHistory).Methods(http.MethodGet)
	api.HandleFunc("/signals/{symbol}/refresh", s.handleRefresh).Methods(http.MethodPost)
	api.HandleFunc("/analyze", s.handleAnalyze).Methods(http.MethodPost)
	api.HandleFunc("/position-size", s.handlePositionSize).Methods(http.MethodPost)
	api.PathPrefix("/").HandlerFunc(preflight).Methods(http.MethodOptions)

	r.HandleFunc("/ws", s.handleWS)
}

// ──── Middleware ────

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.code = code
	sr.ResponseWriter.WriteHeader(code)
}

func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.Metrics == nil || r.URL.Path == "/ws" {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		s.opts.Metrics.HTTPReqsDur.WithLabelValues(route, strconv.Itoa(rec.code)).Observe(time.Since(start).Seconds())
	})
}

func preflight(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// ──── Helpers ────

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[gateway] encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, code int, kind, msg string) {
	writeJSON(w, code, ErrorResponse{Error: kind, Message: msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func symbolVar(r *http.Request) string {
	return strings.ToUpper(strings.TrimSpace(mux.Vars(r)["symbol"]))
}

// ──── Handlers ────

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "ok",
		"uptime":       time.Since(s.started).Round(time.Second).String(),
		"symbols":      s.opts.Symbols(),
		"clients":      s.opts.Hub.ClientCount(),
		"marketOpen":   s.opts.Session.IsOpen(now),
		"marketStatus": s.opts.Session.Status(now),
	})
}

func (s *Server) handleSymbols(w http.ResponseWriter, r *http.Request) {
	syms := s.opts.Symbols()
	if syms == nil {
		syms = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"symbols": syms})
}

func (s *Server) handleSignalsAll(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.opts.Hub.LatestAll())
}

func (s *Server) handleSignal(w http.ResponseWriter, r *http.Request) {
	sym := symbolVar(r)
	res, ok := s.opts.Hub.Latest(sym)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "no signal computed yet for "+sym)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sym := symbolVar(r)
	var after int64
	if v := r.URL.Query().Get("after"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "bad_request", "after must be a non-negative integer")
			return
		}
		after = n
	}
	items, complete := s.opts.Hub.History(sym, after)
	writeJSON(w, http.StatusOK, HistoryResponse{Symbol: sym, Complete: complete, Items: items})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.opts.Recomputer == nil {
		writeError(w, http.StatusNotImplemented, "not_available", "on-demand recompute is not enabled")
		return
	}
	res, err := s.opts.Recomputer.RecomputeNow(r.Context(), symbolVar(r))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res)
	case errors.Is(err, engine.ErrBusy):
		writeError(w, http.StatusConflict, "busy", err.Error())
	case errors.Is(err, model.ErrEmptySeries), errors.Is(err, model.ErrInvalidSeries):
		writeError(w, http.StatusUnprocessableEntity, "invalid_series", err.Error())
	default:
		writeError(w, http.StatusBadGateway, "recompute_failed", err.Error())
	}
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if err := req.Bars.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_series", err.Error())
		return
	}
	sym := strings.ToUpper(strings.TrimSpace(req.Symbol))

	bundle := s.opts.Aggregator.Compute(req.Bars)
	var q model.Quote
	if req.Quote != nil && req.Quote.Price > 0 {
		q = *req.Quote
	} else {
		q, _ = model.QuoteFromSeries(sym, req.Bars)
	}
	snap := bundle.Latest(s.opts.VolumeWindow)
	sig := s.opts.Synthesizer.Evaluate(strategy.InputsFrom(snap, q))
	sig.Symbol = sym
	sig.GeneratedAt = time.Now().UnixMilli()

	writeJSON(w, http.StatusOK, AnalyzeResponse{
		Symbol:     sym,
		Bars:       len(req.Bars),
		Sufficient: s.opts.Aggregator.Sufficient(len(req.Bars)),
		Quote:      q,
		Indicators: bundle,
		Latest:     snap,
		Signal:     sig,
	})
}

func (s *Server) handlePositionSize(w http.ResponseWriter, r *http.Request) {
	var req PositionSizeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	params := s.opts.Risk
	if req.Capital != nil {
		params.Capital = *req.Capital
	}
	if req.RiskPercent != nil {
		params.RiskPercent = *req.RiskPercent
	}

	var (
		plan model.PositionPlan
		err  error
	)
	if req.Symbol != "" && req.StopLoss == 0 && req.TargetPrice == 0 {
		res, ok := s.opts.Hub.Latest(req.Symbol)
		if !ok {
			writeError(w, http.StatusNotFound, "not_found", "no signal computed yet for "+strings.ToUpper(req.Symbol))
			return
		}
		entry := req.EntryPrice
		if entry == 0 {
			entry = res.Quote.Price
		}
		plan, err = portfolio.SizeSignal(params, entry, res.Signal)
	} else {
		plan, err = portfolio.Size(params, req.EntryPrice, req.StopLoss, req.TargetPrice)
	}

	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, plan)
	case errors.Is(err, portfolio.ErrUndefinedSize):
		writeError(w, http.StatusUnprocessableEntity, "undefined_size", err.Error())
	case errors.Is(err, portfolio.ErrInvalidParams):
		writeError(w, http.StatusBadRequest, "invalid_params", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[gateway] ws upgrade error: %v", err)
		return
	}
	var symbols []string
	if v := r.URL.Query().Get("symbols"); v != "" {
		symbols = strings.Split(v, ",")
	}
	s.opts.Hub.Attach(conn, symbols)
}
