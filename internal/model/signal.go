package model

import "encoding/json"

// Action is the directional call of a trading signal.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// RiskLevel is the coarse risk tier attached to a signal.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// TradingSignal is one synthesized recommendation. TargetPrice and StopLoss
// are nil for HOLD.
type TradingSignal struct {
	Symbol      string    `json:"symbol,omitempty"`
	Signal      Action    `json:"signal"`
	Confidence  int       `json:"confidence"`
	Reason      string    `json:"reason"`
	RiskLevel   RiskLevel `json:"riskLevel"`
	TargetPrice *float64  `json:"targetPrice,omitempty"`
	StopLoss    *float64  `json:"stopLoss,omitempty"`
	GeneratedAt int64     `json:"generatedAt,omitempty"` // ms since epoch
}

// JSON returns the JSON-encoded signal.
func (s *TradingSignal) JSON() []byte {
	b, _ := json.Marshal(s)
	return b
}
