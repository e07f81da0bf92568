package model

import "time"

// PriceRange is a continuous price interval.
type PriceRange struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Width returns the interval width.
func (r PriceRange) Width() float64 {
	return r.Upper - r.Lower
}

// TickRange is a discrete tick interval with its price projection.
type TickRange struct {
	TickLower  int        `json:"tick_lower"`
	TickUpper  int        `json:"tick_upper"`
	PriceRange PriceRange `json:"price_range"`
}

// RebalanceEvaluation is the decision artifact produced once per position per
// cycle. It is never mutated after creation.
type RebalanceEvaluation struct {
	PositionID             string    `json:"position_id"`
	PoolAddress            string    `json:"pool_address"`
	CurrentRange           TickRange `json:"current_range"`
	SuggestedRange         TickRange `json:"suggested_range"`
	NeedsRebalance         bool      `json:"needs_rebalance"`
	Reason                 string    `json:"reason"`
	EstimatedAprImprovement float64  `json:"estimated_apr_improvement"`
	PriceDeviation         float64   `json:"price_deviation"`
	CurrentPrice           float64   `json:"current_price"`
	Volatility             VolatilityMetrics `json:"volatility"`
	EvaluatedAt            time.Time `json:"evaluated_at"`
}

// RebalancePlan pairs a triggered evaluation with the exact token amounts for
// the redeployed position. It is handed to the execution sink as-is.
type RebalancePlan struct {
	Evaluation RebalanceEvaluation `json:"evaluation"`
	Amount0    float64             `json:"amount0"`
	Amount1    float64             `json:"amount1"`
	Liquidity  float64             `json:"liquidity"`
	UsdValue   float64             `json:"usd_value"`
	Decimals0  uint8               `json:"decimals0"`
	Decimals1  uint8               `json:"decimals1"`
}

// SkippedPosition records why a position was excluded from a cycle.
type SkippedPosition struct {
	PositionID string `json:"position_id"`
	Reason     string `json:"reason"`
}
