package gateway

import "tradesignal/internal/model"

// AnalyzeRequest is the body of POST /api/v1/analyze.
type AnalyzeRequest struct {
	Symbol string       `json:"symbol"`
	Bars   model.Series `json:"bars"`
	Quote  *model.Quote `json:"quote,omitempty"`
}

// AnalyzeResponse carries the full indicator bundle alongside the signal.
type AnalyzeResponse struct {
	Symbol     string                `json:"symbol"`
	Bars       int                   `json:"bars"`
	Sufficient bool                  `json:"sufficient"`
	Quote      model.Quote           `json:"quote"`
	Indicators model.IndicatorBundle `json:"indicators"`
	Latest     model.Snapshot        `json:"latest"`
	Signal     model.TradingSignal   `json:"signal"`
}

// PositionSizeRequest is the body of POST /api/v1/position-size. Capital and
// RiskPercent default to the configured risk params. When Symbol is set and
// StopLoss/TargetPrice are omitted, the latest signal for the symbol supplies
// entry, stop and target.
type PositionSizeRequest struct {
	Capital     *float64 `json:"capital,omitempty"`
	RiskPercent *float64 `json:"riskPercent,omitempty"`
	Symbol      string   `json:"symbol,omitempty"`
	EntryPrice  float64  `json:"entryPrice"`
	StopLoss    float64  `json:"stopLoss"`
	TargetPrice float64  `json:"targetPrice"`
}

// ErrorResponse is the body of every non-2xx API reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// HistoryResponse is the body of GET /api/v1/signals/{symbol}/history.
type HistoryResponse struct {
	Symbol   string     `json:"symbol"`
	Complete bool       `json:"complete"`
	Items    []Envelope `json:"items"`
}
