package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"tradesignal/internal/model"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
)

func newTestStore(t *testing.T) (*LatestStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	s := NewWithClient(client, Config{TTL: time.Minute})
	t.Cleanup(func() { s.Close() })
	return s, mr
}

func result(sym string, conf int) model.Result {
	return model.Result{
		ID:     fmt.Sprintf("%s-%d", sym, conf),
		Symbol: sym,
		Signal: model.TradingSignal{Signal: model.ActionBuy, Confidence: conf},
	}
}

// ──── LatestStore ────

func TestPublish_LatestAndTTL(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Latest(ctx, "TCS"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("empty store: want ErrNotFound, got %v", err)
	}

	if err := s.Publish(ctx, result("TCS", 35)); err != nil {
		t.Fatal(err)
	}
	if err := s.Publish(ctx, result("TCS", 60)); err != nil {
		t.Fatal(err)
	}

	got, err := s.Latest(ctx, "tcs")
	if err != nil {
		t.Fatal(err)
	}
	if got.Signal.Confidence != 60 {
		t.Errorf("latest confidence: got %d, want 60", got.Signal.Confidence)
	}
	if ttl := mr.TTL(LatestKey("TCS")); ttl != time.Minute {
		t.Errorf("ttl: got %v, want 1m", ttl)
	}

	mr.FastForward(2 * time.Minute)
	if _, err := s.Latest(ctx, "TCS"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expired key: want ErrNotFound, got %v", err)
	}
}

func TestHistory_NewestFirst(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	for _, c := range []int{10, 20, 30, 40} {
		if err := s.Publish(ctx, result("INFY", c)); err != nil {
			t.Fatal(err)
		}
	}
	s.Publish(ctx, result("ITC", 99))

	hist, err := s.History(ctx, "INFY", 3)
	if err != nil {
		t.Fatal(err)
	}
	want := []int{40, 30, 20}
	if len(hist) != len(want) {
		t.Fatalf("history length: got %d, want %d", len(hist), len(want))
	}
	for i, r := range hist {
		if r.Symbol != "INFY" || r.Signal.Confidence != want[i] {
			t.Errorf("[%d] got %s/%d, want INFY/%d", i, r.Symbol, r.Signal.Confidence, want[i])
		}
	}

	empty, err := s.History(ctx, "HDFC", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(empty) != 0 {
		t.Errorf("unknown symbol history: got %d entries", len(empty))
	}
}

func TestSubscribe_ReceivesPublished(t *testing.T) {
	s, _ := newTestStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch := s.Subscribe(ctx)
	// PSUBSCRIBE is asynchronous; publish until the first message arrives.
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case r := <-ch:
			if r.Symbol != "NIFTY" || r.Signal.Confidence != 25 {
				t.Errorf("received %+v", r)
			}
			return
		case <-ticker.C:
			if err := s.Publish(ctx, result("NIFTY", 25)); err != nil {
				t.Fatal(err)
			}
		case <-ctx.Done():
			t.Fatal("no message received")
		}
	}
}

func TestPublish_BreakerOpensWhenServerDown(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()
	mr.Close()

	for i := 0; i < 5; i++ {
		if err := s.Publish(ctx, result("TCS", 1)); err == nil || errors.Is(err, ErrBreakerOpen) {
			t.Fatalf("attempt %d: want a connection error, got %v", i, err)
		}
	}
	if err := s.Publish(ctx, result("TCS", 1)); !errors.Is(err, ErrBreakerOpen) {
		t.Errorf("want ErrBreakerOpen after 5 failures, got %v", err)
	}
	if s.breaker.State() != StateOpen {
		t.Errorf("breaker state: got %s", s.breaker.State())
	}
}
