package rebalance

import (
	"fmt"
	"math"

	"rangekeeper/internal/model"
	"rangekeeper/internal/tickmath"
	"rangekeeper/internal/volatility"
)

// NewTickRange derives a replacement range centered on currentPrice, sized by
// volatility and the risk profile, and aligned to the pool's tick grid. The
// lower bound is floored and the upper bound is ceiled to tickSpacing
// multiples so rounding can only widen the requested range, never narrow it.
func NewTickRange(currentPrice, vol float64, profile model.RiskProfile, decimals0, decimals1 uint8, tickSpacing int) (model.TickRange, error) {
	if currentPrice <= 0 || math.IsNaN(currentPrice) || math.IsInf(currentPrice, 0) {
		return model.TickRange{}, fmt.Errorf("price %v: %w", currentPrice, tickmath.ErrInvalidPrice)
	}
	if tickSpacing <= 0 {
		return model.TickRange{}, fmt.Errorf("tick spacing %d: %w", tickSpacing, tickmath.ErrInvalidTickSpacing)
	}

	widthPercent := volatility.AdjustedRangeWidth(vol, profile)
	half := widthPercent / 200

	priceLower := currentPrice * (1 - half)
	priceUpper := currentPrice * (1 + half)
	if priceLower <= 0 {
		return model.TickRange{}, fmt.Errorf("width %v%% collapses lower bound: %w", widthPercent, tickmath.ErrInvalidPrice)
	}

	spacing := float64(tickSpacing)
	tickLower := int(math.Floor(rawTick(priceLower, decimals0, decimals1)/spacing) * spacing)
	tickUpper := int(math.Ceil(rawTick(priceUpper, decimals0, decimals1)/spacing) * spacing)
	if tickUpper <= tickLower {
		tickUpper = tickLower + tickSpacing
	}

	priceRange, err := tickmath.PriceRange(tickLower, tickUpper, decimals0, decimals1)
	if err != nil {
		return model.TickRange{}, err
	}

	return model.TickRange{
		TickLower:  tickLower,
		TickUpper:  tickUpper,
		PriceRange: priceRange,
	}, nil
}

// rawTick is the unrounded tick coordinate for a decimal-adjusted price.
func rawTick(price float64, decimals0, decimals1 uint8) float64 {
	adjusted := price / math.Pow(10, float64(decimals0)-float64(decimals1))
	return math.Log(adjusted) / math.Log(1.0001)
}
