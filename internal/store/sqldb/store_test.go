package sqldb

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"tradesignal/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	s, err := Open(ctx, "sqlite3", filepath.Join(t.TempDir(), "bars.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func bars(n int, startTS int64, startClose float64) model.Series {
	out := make(model.Series, n)
	for i := range out {
		c := startClose + float64(i)
		out[i] = model.Bar{
			TS:     startTS + int64(i)*60_000,
			Open:   c - 0.5,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: 1000 + float64(i),
		}
	}
	return out
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	if _, err := Open(context.Background(), "mysql", "x"); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestStore_WriteAndReadBars(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	in := bars(10, 1_700_000_000_000, 100)
	if err := s.WriteBars(ctx, "TCS", in); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := s.Bars(ctx, "TCS", 0)
	if err != nil {
		t.Fatalf("bars: %v", err)
	}
	if len(got) != 10 {
		t.Fatalf("expected 10 bars, got %d", len(got))
	}
	for i := range in {
		if got[i] != in[i] {
			t.Errorf("bar %d: got %+v, want %+v", i, got[i], in[i])
		}
	}
}

func TestStore_BarsLimitReturnsNewestOldestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	in := bars(10, 1_700_000_000_000, 100)
	if err := s.WriteBars(ctx, "TCS", in); err != nil {
		t.Fatal(err)
	}

	got, err := s.Bars(ctx, "TCS", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 bars, got %d", len(got))
	}
	if got[0].TS != in[7].TS || got[2].TS != in[9].TS {
		t.Errorf("expected bars 7..9 oldest first, got ts %d..%d", got[0].TS, got[2].TS)
	}
	if err := got.Validate(); err != nil {
		t.Errorf("limited series should validate: %v", err)
	}
}

func TestStore_WriteBarsUpserts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	in := bars(3, 1_700_000_000_000, 100)
	if err := s.WriteBars(ctx, "INFY", in); err != nil {
		t.Fatal(err)
	}
	in[2].Close = 555
	if err := s.WriteBars(ctx, "INFY", in[2:]); err != nil {
		t.Fatal(err)
	}

	got, err := s.Bars(ctx, "INFY", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("upsert must not duplicate rows, got %d", len(got))
	}
	if got[2].Close != 555 {
		t.Errorf("expected updated close 555, got %v", got[2].Close)
	}
}

func TestStore_SymbolsIsolated(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.WriteBars(ctx, "TCS", bars(2, 1_700_000_000_000, 100)); err != nil {
		t.Fatal(err)
	}
	if err := s.WriteBars(ctx, "ITC", bars(5, 1_700_000_000_000, 400)); err != nil {
		t.Fatal(err)
	}

	syms, err := s.Symbols(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(syms) != 2 || syms[0] != "ITC" || syms[1] != "TCS" {
		t.Errorf("symbols: got %v", syms)
	}

	tcs, _ := s.Bars(ctx, "TCS", 0)
	if len(tcs) != 2 {
		t.Errorf("TCS: expected 2 bars, got %d", len(tcs))
	}
}

func TestStore_Quote(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.WriteBars(ctx, "TCS", bars(5, 1_700_000_000_000, 100)); err != nil {
		t.Fatal(err)
	}
	q, err := s.Quote(ctx, "TCS")
	if err != nil {
		t.Fatal(err)
	}
	if q.Price != 104 || q.PreviousClose != 103 {
		t.Errorf("quote: got price=%v prevClose=%v", q.Price, q.PreviousClose)
	}
	if q.Change != 1 {
		t.Errorf("change: got %v, want 1", q.Change)
	}

	if _, err := s.Quote(ctx, "NONE"); !errors.Is(err, ErrNoBars) {
		t.Errorf("expected ErrNoBars, got %v", err)
	}
}
