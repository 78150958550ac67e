// Package redis publishes recompute results to Redis: the latest result per
// symbol under a TTL key, a capped history stream and a pub/sub fan-out.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"tradesignal/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const (
	defaultLatestTTL = 30 * time.Minute
	defaultStreamLen = 500
)

// Key builders. Symbols are upper-cased so API and engine agree on keys.

// LatestKey holds the most recent result JSON for symbol.
func LatestKey(symbol string) string { return "sig:latest:" + strings.ToUpper(symbol) }

// StreamKey holds the capped result history for symbol.
func StreamKey(symbol string) string { return "sig:stream:" + strings.ToUpper(symbol) }

// ChannelKey is the pub/sub channel results are published on.
func ChannelKey(symbol string) string { return "pub:signal:" + strings.ToUpper(symbol) }

// ChannelPattern matches every per-symbol channel.
const ChannelPattern = "pub:signal:*"

// Config configures the Redis sink.
type Config struct {
	Addr      string // e.g. "localhost:6379"
	Password  string
	DB        int
	TTL       time.Duration // latest-key expiry (default 30m)
	StreamLen int64         // approximate stream cap (default 500)
}

// LatestStore is a model.ResultSink backed by Redis.
type LatestStore struct {
	client  *goredis.Client
	ttl     time.Duration
	maxLen  int64
	breaker *Breaker
}

// New connects to Redis and pings it.
func New(cfg Config) (*LatestStore, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return NewWithClient(client, cfg), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *goredis.Client, cfg Config) *LatestStore {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultLatestTTL
	}
	maxLen := cfg.StreamLen
	if maxLen <= 0 {
		maxLen = defaultStreamLen
	}
	b := NewBreaker(5, 10*time.Second)
	b.OnStateChange = func(from, to State) {
		log.Printf("[redis] breaker %s -> %s", from, to)
	}
	return &LatestStore{client: client, ttl: ttl, maxLen: maxLen, breaker: b}
}

// Name implements model.ResultSink.
func (s *LatestStore) Name() string { return "redis" }

// Publish writes the latest key, appends to the stream and publishes, in one
// pipeline.
func (s *LatestStore) Publish(ctx context.Context, r model.Result) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("redis marshal result: %w", err)
	}
	payload := string(data)

	return s.breaker.Do(func() error {
		pipe := s.client.Pipeline()
		pipe.Set(ctx, LatestKey(r.Symbol), payload, s.ttl)
		pipe.XAdd(ctx, &goredis.XAddArgs{
			Stream: StreamKey(r.Symbol),
			MaxLen: s.maxLen,
			Approx: true,
			Values: map[string]interface{}{"data": payload},
		})
		pipe.Publish(ctx, ChannelKey(r.Symbol), payload)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("redis pipeline %s: %w", r.Symbol, err)
		}
		return nil
	})
}

// ErrNotFound is returned when no result is stored for a symbol.
var ErrNotFound = errors.New("no result stored")

// Latest reads back the most recent result for symbol.
func (s *LatestStore) Latest(ctx context.Context, symbol string) (model.Result, error) {
	raw, err := s.client.Get(ctx, LatestKey(symbol)).Result()
	if errors.Is(err, goredis.Nil) {
		return model.Result{}, fmt.Errorf("%w: %s", ErrNotFound, symbol)
	}
	if err != nil {
		return model.Result{}, fmt.Errorf("redis get %s: %w", symbol, err)
	}
	return decodeResult(raw)
}

// History returns up to n results for symbol, newest first.
func (s *LatestStore) History(ctx context.Context, symbol string, n int64) ([]model.Result, error) {
	msgs, err := s.client.XRevRangeN(ctx, StreamKey(symbol), "+", "-", n).Result()
	if err != nil {
		return nil, fmt.Errorf("redis xrevrange %s: %w", symbol, err)
	}
	out := make([]model.Result, 0, len(msgs))
	for _, m := range msgs {
		raw, ok := m.Values["data"].(string)
		if !ok {
			continue
		}
		r, err := decodeResult(raw)
		if err != nil {
			log.Printf("[redis] skip bad stream entry %s: %v", m.ID, err)
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// Subscribe streams results published for every symbol until ctx is done.
func (s *LatestStore) Subscribe(ctx context.Context) <-chan model.Result {
	ps := s.client.PSubscribe(ctx, ChannelPattern)
	out := make(chan model.Result, 64)
	go func() {
		defer close(out)
		defer ps.Close()
		ch := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				r, err := decodeResult(msg.Payload)
				if err != nil {
					log.Printf("[redis] bad payload on %s: %v", msg.Channel, err)
					continue
				}
				select {
				case out <- r:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// Ping reports whether Redis is reachable.
func (s *LatestStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (s *LatestStore) Close() error {
	return s.client.Close()
}

func decodeResult(raw string) (model.Result, error) {
	var r model.Result
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return model.Result{}, fmt.Errorf("decode result: %w", err)
	}
	return r, nil
}
