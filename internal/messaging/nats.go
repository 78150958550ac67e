// Package messaging publishes recompute results to NATS subjects.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"tradesignal/internal/model"

	"github.com/nats-io/nats.go"
)

// Config configures the NATS sink.
type Config struct {
	URL           string
	Prefix        string // subject prefix, default "signals"
	JetStream     bool   // persist results in a SIGNALS stream
	MaxReconnect  int
	ReconnectWait time.Duration
}

// Subject returns "{prefix}.{SYMBOL}".
func Subject(prefix, symbol string) string {
	if prefix == "" {
		prefix = "signals"
	}
	return prefix + "." + strings.ToUpper(symbol)
}

// NATSSink is a model.ResultSink publishing JSON results.
type NATSSink struct {
	conn   *nats.Conn
	js     nats.JetStreamContext
	prefix string
}

// NewNATSSink connects to cfg.URL and, when JetStream is enabled, ensures
// the SIGNALS stream exists.
func NewNATSSink(cfg Config) (*NATSSink, error) {
	if cfg.MaxReconnect == 0 {
		cfg.MaxReconnect = 60
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = 2 * time.Second
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "signals"
	}

	opts := []nats.Option{
		nats.Name("sigengine"),
		nats.MaxReconnects(cfg.MaxReconnect),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("[nats] disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[nats] reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			log.Printf("[nats] connection closed")
		}),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	s := &NATSSink{conn: conn, prefix: cfg.Prefix}
	if cfg.JetStream {
		js, err := conn.JetStream()
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("nats jetstream: %w", err)
		}
		_, err = js.AddStream(&nats.StreamConfig{
			Name:     "SIGNALS",
			Subjects: []string{cfg.Prefix + ".>"},
			Storage:  nats.MemoryStorage,
			MaxAge:   24 * time.Hour,
			MaxMsgs:  100000,
			Replicas: 1,
		})
		if err != nil && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
			conn.Close()
			return nil, fmt.Errorf("nats add stream SIGNALS: %w", err)
		}
		s.js = js
	}

	log.Printf("[nats] connected to %s prefix=%s jetstream=%v", cfg.URL, cfg.Prefix, cfg.JetStream)
	return s, nil
}

// Name implements model.ResultSink.
func (s *NATSSink) Name() string { return "nats" }

// Publish sends r to its symbol subject.
func (s *NATSSink) Publish(ctx context.Context, r model.Result) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("nats marshal result: %w", err)
	}
	subject := Subject(s.prefix, r.Symbol)

	if s.js != nil {
		if _, err := s.js.Publish(subject, data, nats.Context(ctx)); err != nil {
			return fmt.Errorf("nats js publish %s: %w", subject, err)
		}
		return nil
	}
	if err := s.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}
	return nil
}

// Ping reports whether the connection is up.
func (s *NATSSink) Ping(ctx context.Context) error {
	if !s.conn.IsConnected() {
		return fmt.Errorf("nats: %s", s.conn.Status())
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
	}
	return s.conn.FlushWithContext(ctx)
}

// Close drains and closes the connection.
func (s *NATSSink) Close() error {
	return s.conn.Drain()
}
