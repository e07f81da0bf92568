package model

// PricePoint is one observation in a token price series.
type PricePoint struct {
	Timestamp uint64  `json:"timestamp"`
	Price     float64 `json:"price"`
}

// TokenMarketData holds price history and metadata for one token.
type TokenMarketData struct {
	Address      string       `json:"address"`
	Symbol       string       `json:"symbol"`
	Decimals     uint8        `json:"decimals"`
	CurrentPrice float64      `json:"current_price"`
	PriceHistory []PricePoint `json:"price_history"`
}

// VolatilityMetrics is a scalar volatility estimate and the method that
// produced it.
type VolatilityMetrics struct {
	Value  float64 `json:"value"`
	Method string  `json:"method"`
}
