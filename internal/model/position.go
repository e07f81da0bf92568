package model

// PoolPosition is a single concentrated-liquidity position.
//
// Amount and liquidity fields are token base units expressed as float64;
// the on-chain fetcher converts *big.Int values at the boundary.
type PoolPosition struct {
	PositionID  string  `json:"position_id"`
	PoolAddress string  `json:"pool_address"`
	Token0      string  `json:"token0"`
	Token1      string  `json:"token1"`
	TickLower   int     `json:"tick_lower"`
	TickUpper   int     `json:"tick_upper"`
	Liquidity   float64 `json:"liquidity"`
	Amount0     float64 `json:"amount0"`
	Amount1     float64 `json:"amount1"`
	Fees0       float64 `json:"fees0"`
	Fees1       float64 `json:"fees1"`
	InRange     bool    `json:"is_in_range"`
}

// PoolState is a read-only snapshot of a pool's current market condition,
// refreshed every evaluation cycle.
type PoolState struct {
	PoolAddress  string  `json:"pool_address"`
	CurrentTick  int     `json:"current_tick"`
	SqrtPrice    float64 `json:"sqrt_price"`
	CurrentPrice float64 `json:"current_price"`
	TickSpacing  int     `json:"tick_spacing"`
	Decimals0    uint8   `json:"decimals0"`
	Decimals1    uint8   `json:"decimals1"`
	Liquidity    float64 `json:"liquidity"`
	Fee          uint32  `json:"fee"`
}
