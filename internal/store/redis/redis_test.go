package redis

import (
	"errors"
	"testing"
	"time"
)

// ──── Keys ────

func TestKeys(t *testing.T) {
	if got := LatestKey("tcs"); got != "sig:latest:TCS" {
		t.Errorf("LatestKey: got %q", got)
	}
	if got := StreamKey("NIFTY"); got != "sig:stream:NIFTY" {
		t.Errorf("StreamKey: got %q", got)
	}
	if got := ChannelKey("Infy"); got != "pub:signal:INFY" {
		t.Errorf("ChannelKey: got %q", got)
	}
}

func TestDecodeResult(t *testing.T) {
	r, err := decodeResult(`{"symbol":"TCS","signal":{"signal":"BUY","confidence":80}}`)
	if err != nil {
		t.Fatal(err)
	}
	if r.Symbol != "TCS" || r.Signal.Signal != "BUY" || r.Signal.Confidence != 80 {
		t.Errorf("decoded: %+v", r)
	}
	if _, err := decodeResult("not json"); err == nil {
		t.Error("expected decode error")
	}
}

// ──── Breaker ────

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(max int, cool time.Duration) (*Breaker, *fakeClock) {
	clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	b := NewBreaker(max, cool)
	b.now = clk.now
	return b, clk
}

var errFail = errors.New("fail")

func TestBreaker_StartsClosed(t *testing.T) {
	b, _ := newTestBreaker(3, time.Second)
	if b.State() != StateClosed {
		t.Errorf("expected closed, got %v", b.State())
	}
}

func TestBreaker_OpensAfterFailures(t *testing.T) {
	b, _ := newTestBreaker(3, time.Second)
	for i := 0; i < 3; i++ {
		if err := b.Do(func() error { return errFail }); err != errFail {
			t.Fatalf("expected errFail, got %v", err)
		}
	}
	if b.State() != StateOpen {
		t.Fatalf("expected open, got %v", b.State())
	}

	called := false
	if err := b.Do(func() error { called = true; return nil }); err != ErrBreakerOpen {
		t.Errorf("expected ErrBreakerOpen, got %v", err)
	}
	if called {
		t.Error("fn must not run while open")
	}
}

func TestBreaker_ProbeSuccessCloses(t *testing.T) {
	b, clk := newTestBreaker(2, time.Second)
	b.Do(func() error { return errFail })
	b.Do(func() error { return errFail })

	clk.advance(time.Second)
	if err := b.Do(func() error { return nil }); err != nil {
		t.Fatalf("probe: %v", err)
	}
	if b.State() != StateClosed {
		t.Errorf("expected closed after probe, got %v", b.State())
	}
}

func TestBreaker_ProbeFailureReopens(t *testing.T) {
	b, clk := newTestBreaker(2, time.Second)
	b.Do(func() error { return errFail })
	b.Do(func() error { return errFail })

	clk.advance(time.Second)
	b.Do(func() error { return errFail })
	if b.State() != StateOpen {
		t.Fatalf("expected reopened, got %v", b.State())
	}
	if err := b.Do(func() error { return nil }); err != ErrBreakerOpen {
		t.Errorf("cool-down should restart, got %v", err)
	}
}

func TestBreaker_SuccessResetsCount(t *testing.T) {
	b, _ := newTestBreaker(3, time.Second)
	b.Do(func() error { return errFail })
	b.Do(func() error { return errFail })
	b.Do(func() error { return nil })
	b.Do(func() error { return errFail })
	b.Do(func() error { return errFail })
	if b.State() != StateClosed {
		t.Errorf("non-consecutive failures must not trip, got %v", b.State())
	}
}

func TestBreaker_OnStateChange(t *testing.T) {
	b, clk := newTestBreaker(1, time.Second)
	var transitions []string
	b.OnStateChange = func(from, to State) {
		transitions = append(transitions, from.String()+">"+to.String())
	}
	b.Do(func() error { return errFail })
	clk.advance(2 * time.Second)
	b.Do(func() error { return nil })

	want := []string{"closed>open", "open>half-open", "half-open>closed"}
	if len(transitions) != len(want) {
		t.Fatalf("transitions: got %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d: got %s, want %s", i, transitions[i], want[i])
		}
	}
}
