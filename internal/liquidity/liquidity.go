// Package liquidity converts between liquidity and token amounts at a given
// sqrt price, and solves the USD-value-preserving redeployment used when a
// position moves to a new range.
package liquidity

import (
	"errors"
	"fmt"
	"math"

	"rangekeeper/internal/tickmath"
)

// ErrPriceOutsideRange is returned when the current price does not lie within
// the proposed range during optimal-amount calculation. The caller should
// re-derive the range rather than force the computation.
var ErrPriceOutsideRange = errors.New("current price outside proposed range")

// Amounts is the result of an optimal-amount calculation.
type Amounts struct {
	Amount0   float64
	Amount1   float64
	Liquidity float64
}

// TickToSqrtPrice returns 1.0001^(tick/2).
func TickToSqrtPrice(tick int) float64 {
	return math.Pow(1.0001, float64(tick)/2)
}

// SqrtPriceToTick returns the floored tick for a sqrt price.
func SqrtPriceToTick(sqrtPrice float64) (int, error) {
	if sqrtPrice <= 0 || math.IsNaN(sqrtPrice) || math.IsInf(sqrtPrice, 0) {
		return 0, fmt.Errorf("sqrt price %v: %w", sqrtPrice, tickmath.ErrInvalidPrice)
	}
	return int(math.Floor(2 * math.Log(sqrtPrice) / math.Log(1.0001))), nil
}

// LiquidityFromToken0 computes liquidity for a single-sided token0 deposit,
// valid when the current price is below the range:
// L = amount0 * sqrtPL * sqrtPU / (sqrtPU - sqrtPL).
func LiquidityFromToken0(amount0, sqrtPriceLower, sqrtPriceUpper float64) (float64, error) {
	if err := checkSqrtBounds(sqrtPriceLower, sqrtPriceUpper); err != nil {
		return 0, err
	}
	return amount0 * sqrtPriceLower * sqrtPriceUpper / (sqrtPriceUpper - sqrtPriceLower), nil
}

// LiquidityFromToken1 computes liquidity for a single-sided token1 deposit,
// valid when the current price is above the range:
// L = amount1 / (sqrtPU - sqrtPL).
func LiquidityFromToken1(amount1, sqrtPriceLower, sqrtPriceUpper float64) (float64, error) {
	if err := checkSqrtBounds(sqrtPriceLower, sqrtPriceUpper); err != nil {
		return 0, err
	}
	return amount1 / (sqrtPriceUpper - sqrtPriceLower), nil
}

// Token0FromLiquidity returns the token0 amount held by liquidity at
// sqrtPrice. Outside [sqrtPriceLower, sqrtPriceUpper) all value sits in the
// other token and the amount is 0; that is policy, not an error.
func Token0FromLiquidity(liquidity, sqrtPrice, sqrtPriceLower, sqrtPriceUpper float64) (float64, error) {
	if err := checkSqrtBounds(sqrtPriceLower, sqrtPriceUpper); err != nil {
		return 0, err
	}
	if sqrtPrice < sqrtPriceLower || sqrtPrice >= sqrtPriceUpper {
		return 0, nil
	}
	return liquidity * (sqrtPriceUpper - sqrtPrice) / (sqrtPrice * sqrtPriceUpper), nil
}

// Token1FromLiquidity returns the token1 amount held by liquidity at
// sqrtPrice, with the same outside-range policy as Token0FromLiquidity.
func Token1FromLiquidity(liquidity, sqrtPrice, sqrtPriceLower, sqrtPriceUpper float64) (float64, error) {
	if err := checkSqrtBounds(sqrtPriceLower, sqrtPriceUpper); err != nil {
		return 0, err
	}
	if sqrtPrice < sqrtPriceLower || sqrtPrice >= sqrtPriceUpper {
		return 0, nil
	}
	return liquidity * (sqrtPrice - sqrtPriceLower), nil
}

// AmountsFromLiquidity decomposes a position's liquidity into the token
// amounts it currently holds. Unlike the primitive conversions above, the
// price is clamped into the range first: an out-of-range position holds its
// full value single-sided (all token0 below the range, all token1 above),
// not zero.
func AmountsFromLiquidity(liquidity, sqrtPrice, sqrtPriceLower, sqrtPriceUpper float64) (Amounts, error) {
	if err := checkSqrtBounds(sqrtPriceLower, sqrtPriceUpper); err != nil {
		return Amounts{}, err
	}
	if sqrtPrice < sqrtPriceLower {
		sqrtPrice = sqrtPriceLower
	}
	if sqrtPrice > sqrtPriceUpper {
		sqrtPrice = sqrtPriceUpper
	}

	var amount0 float64
	if sqrtPrice < sqrtPriceUpper {
		amount0 = liquidity * (sqrtPriceUpper - sqrtPrice) / (sqrtPrice * sqrtPriceUpper)
	}
	amount1 := liquidity * (sqrtPrice - sqrtPriceLower)

	return Amounts{Amount0: amount0, Amount1: amount1, Liquidity: liquidity}, nil
}

// UsdValue sums the dollar value of raw base-unit token amounts.
func UsdValue(amount0, amount1, price0, price1 float64, decimals0, decimals1 uint8) float64 {
	return amount0/math.Pow10(int(decimals0))*price0 + amount1/math.Pow10(int(decimals1))*price1
}

// OptimalAmounts computes the token amounts and liquidity for a new range
// such that the redeployed position is worth exactly targetUsdValue at the
// current price. It computes amounts for a unit trial liquidity, prices the
// trial in USD, then scales linearly: amount-from-liquidity is linear in L at
// a fixed price, so one trial plus one scale step hits the target exactly.
func OptimalAmounts(targetUsdValue, currentSqrtPrice float64, newTickLower, newTickUpper int, price0, price1 float64, decimals0, decimals1 uint8) (Amounts, error) {
	if newTickUpper <= newTickLower {
		return Amounts{}, fmt.Errorf("ticks [%d, %d]: %w", newTickLower, newTickUpper, tickmath.ErrInvalidRange)
	}
	if targetUsdValue <= 0 {
		return Amounts{}, fmt.Errorf("target usd value must be positive, got %v", targetUsdValue)
	}

	sqrtLower := TickToSqrtPrice(newTickLower)
	sqrtUpper := TickToSqrtPrice(newTickUpper)
	if currentSqrtPrice < sqrtLower || currentSqrtPrice >= sqrtUpper {
		return Amounts{}, fmt.Errorf("sqrt price %v vs [%v, %v): %w", currentSqrtPrice, sqrtLower, sqrtUpper, ErrPriceOutsideRange)
	}

	const trialLiquidity = 1.0
	trial0, err := Token0FromLiquidity(trialLiquidity, currentSqrtPrice, sqrtLower, sqrtUpper)
	if err != nil {
		return Amounts{}, err
	}
	trial1, err := Token1FromLiquidity(trialLiquidity, currentSqrtPrice, sqrtLower, sqrtUpper)
	if err != nil {
		return Amounts{}, err
	}

	trialUsd := UsdValue(trial0, trial1, price0, price1, decimals0, decimals1)
	if trialUsd <= 0 {
		return Amounts{}, fmt.Errorf("trial position has no usd value at price0=%v price1=%v", price0, price1)
	}

	scale := targetUsdValue / trialUsd
	return Amounts{
		Amount0:   trial0 * scale,
		Amount1:   trial1 * scale,
		Liquidity: trialLiquidity * scale,
	}, nil
}

// ValidateUsdPreservation reports whether the redeployed value stays within
// tolerancePercent of the previous value. Used as a postcondition check
// before committing to a new position.
func ValidateUsdPreservation(previousUsdValue, newUsdValue, tolerancePercent float64) bool {
	if previousUsdValue == 0 {
		return newUsdValue == 0
	}
	diff := math.Abs(newUsdValue-previousUsdValue) / math.Abs(previousUsdValue) * 100
	return diff <= tolerancePercent
}

func checkSqrtBounds(sqrtPriceLower, sqrtPriceUpper float64) error {
	if sqrtPriceUpper <= sqrtPriceLower {
		return fmt.Errorf("sqrt bounds [%v, %v]: %w", sqrtPriceLower, sqrtPriceUpper, tickmath.ErrInvalidRange)
	}
	return nil
}
