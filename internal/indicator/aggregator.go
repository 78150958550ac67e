package indicator

import "tradesignal/internal/model"

// Aggregator runs the indicator library over one symbol's bar series with a
// fixed set of periods. It holds no per-symbol state and is safe for
// concurrent use.
type Aggregator struct {
	cfg Config
}

// NewAggregator validates cfg and returns an Aggregator using it.
func NewAggregator(cfg Config) (*Aggregator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Aggregator{cfg: cfg}, nil
}

// Config returns the periods in use.
func (a *Aggregator) Config() Config { return a.cfg }

// Sufficient reports whether n bars fill every indicator window.
// Shorter histories still compute; some sub-series just come back short or empty.
func (a *Aggregator) Sufficient(n int) bool { return n >= a.cfg.LongestPeriod() }

// Compute derives the full IndicatorBundle for series. The bundle is rebuilt
// from scratch on every call.
func (a *Aggregator) Compute(series model.Series) model.IndicatorBundle {
	closes := series.Closes()
	cfg := a.cfg

	macdLine, signalLine, hist := MACD(closes, cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal)
	upper, middle, lower := BollingerBands(closes, cfg.BollingerPeriod, cfg.BollingerWidth)

	b := model.IndicatorBundle{
		RSI:   RSI(closes, cfg.RSIPeriod),
		MACD:  model.MACDSeries{MACD: macdLine, Signal: signalLine, Histogram: hist},
		SMA20: SMA(closes, cfg.SMAShort),
		SMA50: SMA(closes, cfg.SMALong),
		EMA20: EMA(closes, cfg.EMAShort),
		EMA50: EMA(closes, cfg.EMALong),
		Bollinger: model.BollingerSeries{
			Upper:  upper,
			Middle: middle,
			Lower:  lower,
		},
		Volume: series.Volumes(),
	}
	if last, ok := series.Last(); ok {
		b.Levels = Levels(last.Close)
	}
	return b
}
