// cmd/sigengine runs the signal engine: scheduled per-symbol recomputes over
// stored bars, fanned out to Redis, NATS and WebSocket clients.
//
// Usage:
//
//	go run ./cmd/sigengine --config=config.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tradesignal/config"
	"tradesignal/internal/engine"
	"tradesignal/internal/feed"
	"tradesignal/internal/gateway"
	"tradesignal/internal/indicator"
	"tradesignal/internal/logger"
	"tradesignal/internal/markethours"
	"tradesignal/internal/messaging"
	"tradesignal/internal/metrics"
	"tradesignal/internal/model"
	"tradesignal/internal/store/redis"
	"tradesignal/internal/store/sqldb"
	"tradesignal/internal/strategy"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	cfgPath := flag.String("config", "config.yaml", "Path to YAML config (optional)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("[sigengine] config: %v", err)
	}
	logger.Init("sigengine", logger.ParseLevel(cfg.Log.Level))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigCh
		slog.Info("[sigengine] shutting down", "signal", s.String())
		cancel()
	}()

	m := metrics.NewMetrics()
	health := metrics.NewHealthStatus()

	// Bar source: SQL store, optionally backed by the synthetic generator.
	store, err := sqldb.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		log.Fatalf("[sigengine] store: %v", err)
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		log.Fatalf("[sigengine] migrate: %v", err)
	}
	health.Register("store", store)

	var source model.BarSource = store
	if cfg.Fallback.Enabled {
		source = feed.NewFallback(store, feed.NewSynthetic(cfg.Fallback.Seed))
	}

	agg, err := indicator.NewAggregator(cfg.Indicators)
	if err != nil {
		log.Fatalf("[sigengine] indicators: %v", err)
	}
	synth, err := strategy.NewSynthesizer(cfg.Signal)
	if err != nil {
		log.Fatalf("[sigengine] signal: %v", err)
	}

	session := markethours.NSE()
	hub := gateway.NewHub(0, session, m)
	sinks := []model.ResultSink{hub}

	if cfg.Redis.Addr != "" {
		rs, err := redis.New(redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.LatestTTL,
		})
		if err != nil {
			log.Fatalf("[sigengine] redis: %v", err)
		}
		defer rs.Close()
		sinks = append(sinks, rs)
		health.Register("redis", rs)
	}

	if cfg.NATS.URL != "" {
		ns, err := messaging.NewNATSSink(messaging.Config{
			URL:       cfg.NATS.URL,
			Prefix:    cfg.NATS.Prefix,
			JetStream: cfg.NATS.JetStream,
		})
		if err != nil {
			log.Fatalf("[sigengine] nats: %v", err)
		}
		defer ns.Close()
		sinks = append(sinks, ns)
		health.Register("nats", ns)
	}

	svc, err := engine.New(engine.Options{
		Symbols:         cfg.Engine.Symbols,
		Schedule:        cfg.Engine.Schedule,
		BarLimit:        cfg.Engine.BarLimit,
		VolumeWindow:    cfg.Indicators.SMAShort,
		MarketHoursOnly: cfg.Engine.MarketHoursOnly,
		Session:         session,
	}, engine.Deps{
		Source:      source,
		Aggregator:  agg,
		Synthesizer: synth,
		Sinks:       sinks,
		Metrics:     m,
		Health:      health,
	})
	if err != nil {
		log.Fatalf("[sigengine] engine: %v", err)
	}
	slog.SetDefault(slog.Default().With("run_id", svc.RunID()))
	health.SetSymbols(svc.Symbols())

	api := gateway.NewServer(gateway.Options{
		Hub:          hub,
		Aggregator:   agg,
		Synthesizer:  synth,
		Risk:         cfg.Risk,
		Symbols:      svc.Symbols,
		Recomputer:   svc,
		Session:      session,
		Metrics:      m,
		VolumeWindow: cfg.Indicators.SMAShort,
	})
	httpSrv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("[gateway] listening", "addr", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("[gateway] server error", "error", err)
			cancel()
		}
	}()

	metricsSrv := metrics.NewServer(cfg.Metrics.Addr, m, health)
	metricsSrv.Start()

	health.StartLivenessChecker(ctx, 10*time.Second)
	go hub.StartStatusBroadcast(ctx, 30*time.Second)

	slog.Info("[sigengine] started",
		"symbols", svc.Symbols(),
		"schedule", cfg.Engine.Schedule,
		"store", store.Driver(),
		"sinks", len(sinks),
		"market_hours_only", cfg.Engine.MarketHoursOnly,
	)

	if err := svc.Run(ctx); err != nil {
		slog.Error("[sigengine] engine stopped", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	httpSrv.Shutdown(shutdownCtx)
	metricsSrv.Stop(shutdownCtx)
	slog.Info("[sigengine] stopped")
}
