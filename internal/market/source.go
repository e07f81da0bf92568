// Package market defines the market-data boundary: a source of token price
// series and a strict decoder for externally supplied payloads.
package market

import (
	"context"
	"errors"

	"rangekeeper/internal/model"
)

// ErrMissingMarketData is returned when a token has no usable market data.
// Callers skip the affected position and continue the batch.
var ErrMissingMarketData = errors.New("market data missing for token")

// Source supplies market data for a set of token addresses. Tokens without
// data are simply absent from the result map.
type Source interface {
	FetchMarketData(ctx context.Context, tokens []string) (map[string]model.TokenMarketData, error)
}

// StaticSource serves a fixed data set. Used when the host process supplies
// market data out of band, and in tests.
type StaticSource struct {
	data map[string]model.TokenMarketData
}

// NewStaticSource builds a StaticSource keyed by lowercase token address.
func NewStaticSource(entries []model.TokenMarketData) *StaticSource {
	data := make(map[string]model.TokenMarketData, len(entries))
	for _, entry := range entries {
		data[normalizeKey(entry.Address)] = entry
	}
	return &StaticSource{data: data}
}

// FetchMarketData returns the subset of tokens present in the static set.
func (s *StaticSource) FetchMarketData(_ context.Context, tokens []string) (map[string]model.TokenMarketData, error) {
	out := make(map[string]model.TokenMarketData, len(tokens))
	for _, token := range tokens {
		if entry, ok := s.data[normalizeKey(token)]; ok {
			out[normalizeKey(token)] = entry
		}
	}
	return out, nil
}

// Lookup fetches one token's data from a result map, with the missing-data
// error the evaluator expects.
func Lookup(data map[string]model.TokenMarketData, token string) (model.TokenMarketData, error) {
	entry, ok := data[normalizeKey(token)]
	if !ok {
		return model.TokenMarketData{}, ErrMissingMarketData
	}
	return entry, nil
}
