package positions

import (
	"bytes"
	"encoding/json"
	"fmt"

	"rangekeeper/internal/model"
)

// rawPositionPayload mirrors the JSON shape of externally supplied position
// documents (subgraph exports, fixtures). Shape mismatches are rejected,
// never coerced.
type rawPositionPayload struct {
	Positions []rawPosition `json:"positions"`
}

type rawPosition struct {
	PositionID  string   `json:"position_id"`
	PoolAddress string   `json:"pool_address"`
	Token0      string   `json:"token0"`
	Token1      string   `json:"token1"`
	TickLower   *int     `json:"tick_lower"`
	TickUpper   *int     `json:"tick_upper"`
	Liquidity   *float64 `json:"liquidity"`
	Amount0     float64  `json:"amount0"`
	Amount1     float64  `json:"amount1"`
	Fees0       float64  `json:"fees0"`
	Fees1       float64  `json:"fees1"`
}

// DecodePositionPayload parses and validates an external position document.
func DecodePositionPayload(data []byte) ([]model.PoolPosition, error) {
	var payload rawPositionPayload
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&payload); err != nil {
		return nil, fmt.Errorf("parse position payload: %w", err)
	}

	out := make([]model.PoolPosition, 0, len(payload.Positions))
	for i, raw := range payload.Positions {
		entry, err := validatePosition(raw)
		if err != nil {
			return nil, fmt.Errorf("position %d: %w", i, err)
		}
		out = append(out, entry)
	}
	return out, nil
}

func validatePosition(raw rawPosition) (model.PoolPosition, error) {
	if raw.PositionID == "" {
		return model.PoolPosition{}, fmt.Errorf("position_id is required")
	}
	if raw.PoolAddress == "" {
		return model.PoolPosition{}, fmt.Errorf("pool_address is required")
	}
	if raw.TickLower == nil || raw.TickUpper == nil {
		return model.PoolPosition{}, fmt.Errorf("tick_lower and tick_upper are required")
	}
	if *raw.TickLower >= *raw.TickUpper {
		return model.PoolPosition{}, fmt.Errorf("tick_lower %d must be below tick_upper %d", *raw.TickLower, *raw.TickUpper)
	}
	if raw.Liquidity == nil {
		return model.PoolPosition{}, fmt.Errorf("liquidity is required")
	}
	if *raw.Liquidity < 0 {
		return model.PoolPosition{}, fmt.Errorf("liquidity must be non-negative, got %v", *raw.Liquidity)
	}

	return model.PoolPosition{
		PositionID:  raw.PositionID,
		PoolAddress: raw.PoolAddress,
		Token0:      raw.Token0,
		Token1:      raw.Token1,
		TickLower:   *raw.TickLower,
		TickUpper:   *raw.TickUpper,
		Liquidity:   *raw.Liquidity,
		Amount0:     raw.Amount0,
		Amount1:     raw.Amount1,
		Fees0:       raw.Fees0,
		Fees1:       raw.Fees1,
	}, nil
}
