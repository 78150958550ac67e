package strategy

import "tradesignal/internal/model"

// Rule is one step of the ordered evaluation. Rules run in sequence against a
// shared evaluation and may propose a direction, add confidence and append a
// reason phrase.
type Rule interface {
	Name() string
	Apply(in Inputs, ev *evaluation)
}

// evaluation is the mutable state of a single Evaluate call.
type evaluation struct {
	call       model.Action
	confidence int
	reasons    []string
	risk       model.RiskLevel
	fired      bool
}

func opposite(a model.Action) model.Action {
	switch a {
	case model.ActionBuy:
		return model.ActionSell
	case model.ActionSell:
		return model.ActionBuy
	}
	return model.ActionHold
}

// propose sets the call to dir unless the opposite call is already active.
// An agreeing or neutral call takes the direction and the weight; an opposing
// call is left untouched and the rule contributes nothing.
func (ev *evaluation) propose(dir model.Action, weight int, reason string) bool {
	if ev.call == opposite(dir) {
		return false
	}
	ev.call = dir
	ev.confidence += weight
	ev.reasons = append(ev.reasons, reason)
	ev.fired = true
	return true
}

type rsiRule struct {
	oversold, overbought float64
	weight               int
}

func (r rsiRule) Name() string { return "rsi" }

func (r rsiRule) Apply(in Inputs, ev *evaluation) {
	switch {
	case in.RSI < r.oversold:
		ev.propose(model.ActionBuy, r.weight, "RSI oversold (bullish)")
		ev.risk = model.RiskLow
	case in.RSI > r.overbought:
		ev.propose(model.ActionSell, r.weight, "RSI overbought (bearish)")
		ev.risk = model.RiskHigh
	}
}

type macdRule struct {
	weight int
}

func (r macdRule) Name() string { return "macd" }

func (r macdRule) Apply(in Inputs, ev *evaluation) {
	switch {
	case in.Histogram > 0:
		ev.propose(model.ActionBuy, r.weight, "MACD bullish crossover")
	case in.Histogram < 0:
		ev.propose(model.ActionSell, r.weight, "MACD bearish crossover")
	}
}

type movingAverageRule struct {
	weight int
}

func (r movingAverageRule) Name() string { return "moving_average" }

func (r movingAverageRule) Apply(in Inputs, ev *evaluation) {
	switch {
	case in.Price > in.SMAShort && in.SMAShort > in.SMALong:
		ev.propose(model.ActionBuy, r.weight, "Price above moving averages")
	case in.Price < in.SMAShort && in.SMAShort < in.SMALong:
		ev.propose(model.ActionSell, r.weight, "Price below moving averages")
	}
}

// volumeRule confirms an active directional call on a high-volume bar.
// It never picks a direction itself.
type volumeRule struct {
	factor float64
	weight int
}

func (r volumeRule) Name() string { return "volume" }

func (r volumeRule) Apply(in Inputs, ev *evaluation) {
	if ev.call == model.ActionHold || r.weight == 0 || in.AvgVolume <= 0 {
		return
	}
	if in.Volume > in.AvgVolume*r.factor {
		ev.confidence += r.weight
		ev.reasons = append(ev.reasons, "High volume confirmation")
	}
}
