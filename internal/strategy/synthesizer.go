// Package strategy synthesizes a trading signal from the latest indicator values.
//
// Evaluation is single-shot: an ordered rule list runs against one set of
// inputs and yields one TradingSignal. Nothing is kept between calls.
package strategy

import (
	"math"
	"strings"

	"tradesignal/internal/model"
)

// Inputs are the latest indicator values plus the current quote fields the
// rules read.
type Inputs struct {
	RSI           float64 `json:"rsi"`
	Histogram     float64 `json:"macdHistogram"`
	SMAShort      float64 `json:"sma20"`
	SMALong       float64 `json:"sma50"`
	Price         float64 `json:"price"`
	ChangePercent float64 `json:"changePercent"`
	Volume        float64 `json:"volume"`
	AvgVolume     float64 `json:"avgVolume"`
}

// InputsFrom builds Inputs from a bundle snapshot and quote. Missing values
// fall back to neutral readings: RSI 50, histogram 0 and both averages at the
// quote price, so no rule fires on absent data.
func InputsFrom(snap model.Snapshot, q model.Quote) Inputs {
	in := Inputs{
		RSI:           50,
		Price:         q.Price,
		ChangePercent: q.ChangePercent,
		SMAShort:      q.Price,
		SMALong:       q.Price,
	}
	if snap.RSI.OK {
		in.RSI = snap.RSI.Value
	}
	if snap.MACDHistogram.OK {
		in.Histogram = snap.MACDHistogram.Value
	}
	if snap.SMA20.OK {
		in.SMAShort = snap.SMA20.Value
	}
	if snap.SMA50.OK {
		in.SMALong = snap.SMA50.Value
	}
	if snap.Volume.OK {
		in.Volume = snap.Volume.Value
	}
	if snap.AvgVolume.OK {
		in.AvgVolume = snap.AvgVolume.Value
	}
	return in
}

// Synthesizer applies the ordered rule list: RSI, MACD, moving averages, then
// volume confirmation. A directional rule only takes effect while the current
// call is neutral or already agrees with it.
type Synthesizer struct {
	cfg   Config
	rules []Rule
}

// NewSynthesizer validates cfg and builds the rule list from it.
func NewSynthesizer(cfg Config) (*Synthesizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.FallbackReason == "" {
		cfg.FallbackReason = DefaultFallbackReason
	}
	return &Synthesizer{
		cfg: cfg,
		rules: []Rule{
			rsiRule{oversold: cfg.RSIOversold, overbought: cfg.RSIOverbought, weight: cfg.RSIWeight},
			macdRule{weight: cfg.MACDWeight},
			movingAverageRule{weight: cfg.MAWeight},
			volumeRule{factor: cfg.VolumeFactor, weight: cfg.VolumeWeight},
		},
	}, nil
}

// Rules returns the rule names in evaluation order.
func (s *Synthesizer) Rules() []string {
	names := make([]string, len(s.rules))
	for i, r := range s.rules {
		names[i] = r.Name()
	}
	return names
}

// Evaluate runs every rule against in and returns the resulting signal.
func (s *Synthesizer) Evaluate(in Inputs) model.TradingSignal {
	ev := &evaluation{call: model.ActionHold, risk: model.RiskMedium}
	for _, r := range s.rules {
		r.Apply(in, ev)
	}

	if !ev.fired {
		return model.TradingSignal{
			Signal:     model.ActionHold,
			Confidence: 0,
			Reason:     s.cfg.FallbackReason,
			RiskLevel:  ev.risk,
		}
	}

	sig := model.TradingSignal{
		Signal:     ev.call,
		Confidence: clamp(ev.confidence, 0, 100),
		Reason:     strings.Join(ev.reasons, ". ") + ".",
		RiskLevel:  ev.risk,
	}
	s.priceLevels(&sig, in)
	return sig
}

// EvaluateBundle takes the latest values of b (average volume over
// volumeWindow bars) together with q and evaluates them.
func (s *Synthesizer) EvaluateBundle(b *model.IndicatorBundle, q model.Quote, volumeWindow int) model.TradingSignal {
	sig := s.Evaluate(InputsFrom(b.Latest(volumeWindow), q))
	sig.Symbol = q.Symbol
	return sig
}

// priceLevels sets target and stop from the quote's daily move.
// HOLD leaves both unset.
func (s *Synthesizer) priceLevels(sig *model.TradingSignal, in Inputs) {
	volatility := math.Abs(in.ChangePercent) / 100
	targetMult := math.Max(s.cfg.TargetFloor, volatility*s.cfg.TargetVolMultiplier)
	stopMult := math.Max(s.cfg.StopFloor, volatility*s.cfg.StopVolMultiplier)

	var target, stop float64
	switch sig.Signal {
	case model.ActionBuy:
		target = in.Price * (1 + targetMult)
		stop = in.Price * (1 - stopMult)
	case model.ActionSell:
		target = in.Price * (1 - targetMult)
		stop = in.Price * (1 + stopMult)
	default:
		return
	}
	sig.TargetPrice = &target
	sig.StopLoss = &stop
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
