// Package feed provides bar sources that sit in front of, or stand in for,
// the persistent store.
package feed

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"strings"
	"time"

	"tradesignal/internal/model"
)

// DefaultBasePrice is used for symbols not in BasePrices.
const DefaultBasePrice = 1000.0

// BasePrices seeds the synthetic random walk per symbol.
var BasePrices = map[string]float64{
	"NIFTY":     19500,
	"BANKNIFTY": 43000,
	"RELIANCE":  2450,
	"TCS":       3650,
	"HDFC":      1580,
	"ICICIBANK": 950,
	"INFY":      1420,
	"ITC":       420,
}

// BasePrice returns the configured base for symbol or DefaultBasePrice.
func BasePrice(symbol string) float64 {
	if p, ok := BasePrices[strings.ToUpper(symbol)]; ok {
		return p
	}
	return DefaultBasePrice
}

// Synthetic generates a random-walk bar series ending at Now. Output is a
// pure function of (Seed, symbol, Now), so repeated calls within the same
// bar interval return the same series.
type Synthetic struct {
	Seed     int64
	Count    int           // bars per series (default 101)
	Interval time.Duration // bar spacing (default 5m)
	Now      func() time.Time
}

// NewSynthetic returns a generator with the default shape.
func NewSynthetic(seed int64) *Synthetic {
	return &Synthetic{
		Seed:     seed,
		Count:    101,
		Interval: 5 * time.Minute,
		Now:      time.Now,
	}
}

func (s *Synthetic) rng(symbol string, salt int64) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(strings.ToUpper(symbol)))
	return rand.New(rand.NewSource(s.Seed ^ int64(h.Sum64()) ^ salt))
}

func (s *Synthetic) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Synthetic) shape() (int, time.Duration) {
	n, iv := s.Count, s.Interval
	if n <= 0 {
		n = 101
	}
	if iv <= 0 {
		iv = 5 * time.Minute
	}
	return n, iv
}

// Bars returns min(limit, Count) bars; a non-positive limit returns Count.
func (s *Synthetic) Bars(ctx context.Context, symbol string, limit int) (model.Series, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n, iv := s.shape()
	step := iv.Milliseconds()
	end := s.now().UnixMilli() / step * step
	r := s.rng(symbol, end)

	out := make(model.Series, n)
	price := BasePrice(symbol)
	for i := 0; i < n; i++ {
		change := (r.Float64() - 0.5) * price * 0.01
		open := price
		cl := price + change
		out[i] = model.Bar{
			TS:     end - int64(n-1-i)*step,
			Open:   open,
			High:   math.Max(open, cl) * (1 + r.Float64()*0.005),
			Low:    math.Min(open, cl) * (1 - r.Float64()*0.005),
			Close:  cl,
			Volume: float64(r.Intn(100000) + 10000),
		}
		price = cl
	}

	if limit > 0 && limit < n {
		out = out[n-limit:]
	}
	return out, nil
}

// Quote returns a quote within ±1% of the base price, with previousClose = base.
func (s *Synthetic) Quote(ctx context.Context, symbol string) (model.Quote, error) {
	if err := ctx.Err(); err != nil {
		return model.Quote{}, err
	}
	now := s.now().UnixMilli()
	r := s.rng(symbol, now)

	base := BasePrice(symbol)
	price := round2(base + (r.Float64()-0.5)*base*0.02)
	q := model.NewQuote(strings.ToUpper(symbol), price, base,
		price*(1+(r.Float64()-0.5)*0.005),
		price*(1+r.Float64()*0.01),
		price*(1-r.Float64()*0.01),
		float64(r.Intn(1000000)+100000),
		now,
	)
	q.Change = round2(q.Change)
	q.ChangePercent = round2(q.ChangePercent)
	return q, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
