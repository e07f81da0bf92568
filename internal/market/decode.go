package market

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"rangekeeper/internal/model"
)

// rawMarketPayload mirrors the JSON shape delivered by external price
// services. Every field is validated before it reaches the math core;
// shape mismatches are rejected, never coerced.
type rawMarketPayload struct {
	Tokens []rawTokenData `json:"tokens"`
}

type rawTokenData struct {
	Address      string          `json:"address"`
	Symbol       string          `json:"symbol"`
	Decimals     *uint8          `json:"decimals"`
	CurrentPrice *float64        `json:"current_price"`
	PriceHistory []rawPricePoint `json:"price_history"`
}

type rawPricePoint struct {
	Timestamp *uint64  `json:"timestamp"`
	Price     *float64 `json:"price"`
}

// DecodeMarketPayload parses and validates an external market-data document.
func DecodeMarketPayload(data []byte) ([]model.TokenMarketData, error) {
	var payload rawMarketPayload
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&payload); err != nil {
		return nil, fmt.Errorf("parse market payload: %w", err)
	}

	out := make([]model.TokenMarketData, 0, len(payload.Tokens))
	for i, raw := range payload.Tokens {
		entry, err := validateTokenData(raw)
		if err != nil {
			return nil, fmt.Errorf("token %d: %w", i, err)
		}
		out = append(out, entry)
	}
	return out, nil
}

func validateTokenData(raw rawTokenData) (model.TokenMarketData, error) {
	if raw.Address == "" {
		return model.TokenMarketData{}, fmt.Errorf("address is required")
	}
	if raw.Decimals == nil {
		return model.TokenMarketData{}, fmt.Errorf("decimals is required")
	}
	if raw.CurrentPrice == nil {
		return model.TokenMarketData{}, fmt.Errorf("current_price is required")
	}
	if *raw.CurrentPrice <= 0 {
		return model.TokenMarketData{}, fmt.Errorf("current_price must be positive, got %v", *raw.CurrentPrice)
	}

	history := make([]model.PricePoint, 0, len(raw.PriceHistory))
	var lastTs uint64
	for i, point := range raw.PriceHistory {
		if point.Timestamp == nil || point.Price == nil {
			return model.TokenMarketData{}, fmt.Errorf("price point %d: timestamp and price are required", i)
		}
		if *point.Price <= 0 {
			return model.TokenMarketData{}, fmt.Errorf("price point %d: price must be positive, got %v", i, *point.Price)
		}
		if *point.Timestamp < lastTs {
			return model.TokenMarketData{}, fmt.Errorf("price point %d: series not ordered by timestamp", i)
		}
		lastTs = *point.Timestamp
		history = append(history, model.PricePoint{Timestamp: *point.Timestamp, Price: *point.Price})
	}

	return model.TokenMarketData{
		Address:      raw.Address,
		Symbol:       raw.Symbol,
		Decimals:     *raw.Decimals,
		CurrentPrice: *raw.CurrentPrice,
		PriceHistory: history,
	}, nil
}

func normalizeKey(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
