package feed

import (
	"context"
	"fmt"
	"log"

	"tradesignal/internal/model"
)

// OriginSource is a BarSource that can report whether its answer came from
// a fallback.
type OriginSource interface {
	model.BarSource
	BarsWithOrigin(ctx context.Context, symbol string, limit int) (model.Series, bool, error)
}

// Fallback serves Primary and switches to Secondary when Primary fails or
// has no data for the symbol.
type Fallback struct {
	Primary   model.BarSource
	Secondary model.BarSource
}

// NewFallback wraps primary with secondary. A nil secondary disables fallback.
func NewFallback(primary, secondary model.BarSource) *Fallback {
	return &Fallback{Primary: primary, Secondary: secondary}
}

// BarsWithOrigin returns the series and true if it came from Secondary.
func (f *Fallback) BarsWithOrigin(ctx context.Context, symbol string, limit int) (model.Series, bool, error) {
	bars, err := f.Primary.Bars(ctx, symbol, limit)
	if err == nil && len(bars) > 0 {
		return bars, false, nil
	}
	if f.Secondary == nil {
		if err == nil {
			err = fmt.Errorf("%w: %s", model.ErrEmptySeries, symbol)
		}
		return nil, false, err
	}
	if ctx.Err() != nil {
		return nil, false, ctx.Err()
	}

	if err != nil {
		log.Printf("[feed] primary bars failed for %s, using fallback: %v", symbol, err)
	} else {
		log.Printf("[feed] primary has no bars for %s, using fallback", symbol)
	}
	bars, err = f.Secondary.Bars(ctx, symbol, limit)
	if err != nil {
		return nil, true, fmt.Errorf("fallback bars %s: %w", symbol, err)
	}
	return bars, true, nil
}

// Bars implements model.BarSource.
func (f *Fallback) Bars(ctx context.Context, symbol string, limit int) (model.Series, error) {
	bars, _, err := f.BarsWithOrigin(ctx, symbol, limit)
	return bars, err
}

// Quote implements model.BarSource.
func (f *Fallback) Quote(ctx context.Context, symbol string) (model.Quote, error) {
	q, err := f.Primary.Quote(ctx, symbol)
	if err == nil || f.Secondary == nil || ctx.Err() != nil {
		return q, err
	}
	return f.Secondary.Quote(ctx, symbol)
}
