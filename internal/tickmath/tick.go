// Package tickmath implements the tick/price conversions used by
// concentrated-liquidity pools: price = 1.0001^tick scaled by token decimals.
// The formulas mirror the on-chain accounting; every other component derives
// its decisions from these conversions.
package tickmath

import (
	"errors"
	"fmt"
	"math"

	"rangekeeper/internal/model"
)

var (
	// ErrInvalidPrice is returned for non-positive prices, which have no tick.
	ErrInvalidPrice = errors.New("price must be positive")
	// ErrInvalidRange is returned for tick or price bounds with upper <= lower.
	ErrInvalidRange = errors.New("range upper bound must be greater than lower bound")
	// ErrInvalidTickSpacing is returned for non-positive tick spacing.
	ErrInvalidTickSpacing = errors.New("tick spacing must be positive")
)

// tickBase is the per-tick price ratio of V3-style pools.
const tickBase = 1.0001

var lnTickBase = math.Log(tickBase)

// TickToPrice converts a tick to a price, adjusting for token decimals:
// price = 1.0001^tick * 10^(decimals0 - decimals1).
func TickToPrice(tick int, decimals0, decimals1 uint8) float64 {
	return math.Pow(tickBase, float64(tick)) * math.Pow(10, float64(decimals0)-float64(decimals1))
}

// PriceToTick converts a price to the nearest tick aligned to tickSpacing.
func PriceToTick(price float64, tickSpacing int) (int, error) {
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return 0, fmt.Errorf("price %v: %w", price, ErrInvalidPrice)
	}
	if tickSpacing <= 0 {
		return 0, fmt.Errorf("tick spacing %d: %w", tickSpacing, ErrInvalidTickSpacing)
	}
	rawTick := math.Log(price) / lnTickBase
	aligned := math.Round(rawTick/float64(tickSpacing)) * float64(tickSpacing)
	return int(math.Floor(aligned)), nil
}

// PriceRange projects tick bounds into a price interval.
func PriceRange(tickLower, tickUpper int, decimals0, decimals1 uint8) (model.PriceRange, error) {
	if tickUpper <= tickLower {
		return model.PriceRange{}, fmt.Errorf("ticks [%d, %d]: %w", tickLower, tickUpper, ErrInvalidRange)
	}
	return model.PriceRange{
		Lower: TickToPrice(tickLower, decimals0, decimals1),
		Upper: TickToPrice(tickUpper, decimals0, decimals1),
	}, nil
}

// IsInRange reports whether currentTick lies within [tickLower, tickUpper],
// bounds inclusive.
func IsInRange(currentTick, tickLower, tickUpper int) bool {
	return currentTick >= tickLower && currentTick <= tickUpper
}

// UtilizationRate returns the fraction of the range consumed from the lower
// bound, clamped to [0, 1]. A degenerate range reports 0.
func UtilizationRate(currentTick, tickLower, tickUpper int) float64 {
	if tickUpper == tickLower {
		return 0
	}
	rate := float64(currentTick-tickLower) / float64(tickUpper-tickLower)
	return math.Min(1, math.Max(0, rate))
}

// PriceDeviation measures how far currentPrice sits outside the range: 0
// inside, otherwise the distance to the nearest bound normalized by the
// range width. This is the primary rebalance trigger signal.
func PriceDeviation(currentPrice, rangeLower, rangeUpper float64) float64 {
	if currentPrice >= rangeLower && currentPrice <= rangeUpper {
		return 0
	}
	width := rangeUpper - rangeLower
	if width <= 0 {
		return 0
	}
	if currentPrice < rangeLower {
		return (rangeLower - currentPrice) / width
	}
	return (currentPrice - rangeUpper) / width
}
