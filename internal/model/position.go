package model

// PositionPlan is the sizing result for one planned trade.
// RiskRewardRatio is nil when potential loss is zero (undefined ratio).
type PositionPlan struct {
	Quantity        int64    `json:"quantity"`
	RiskAmount      float64  `json:"riskAmount"`
	RiskPerUnit     float64  `json:"riskPerUnit"`
	TotalInvestment float64  `json:"totalInvestment"`
	PotentialLoss   float64  `json:"potentialLoss"`
	PotentialProfit float64  `json:"potentialProfit"`
	RiskRewardRatio *float64 `json:"riskRewardRatio"`
}

// RatioDefined reports whether the risk/reward ratio could be computed.
func (p PositionPlan) RatioDefined() bool { return p.RiskRewardRatio != nil }
