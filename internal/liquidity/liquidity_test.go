package liquidity

import (
	"errors"
	"math"
	"testing"

	"rangekeeper/internal/tickmath"
)

func TestTickToSqrtPriceRoundTrip(t *testing.T) {
	for _, tick := range []int{-20000, -60, 0, 60, 20000} {
		sqrt := TickToSqrtPrice(tick)
		got, err := SqrtPriceToTick(sqrt)
		if err != nil {
			t.Fatalf("tick %d: unexpected error: %v", tick, err)
		}
		if got < tick-1 || got > tick+1 {
			t.Fatalf("round trip tick %d -> %d", tick, got)
		}
	}
}

func TestSqrtPriceToTickInvalid(t *testing.T) {
	if _, err := SqrtPriceToTick(0); !errors.Is(err, tickmath.ErrInvalidPrice) {
		t.Fatalf("want ErrInvalidPrice, got %v", err)
	}
}

func TestLiquidityFromSingleSidedDeposits(t *testing.T) {
	sqrtLower := TickToSqrtPrice(1000)
	sqrtUpper := TickToSqrtPrice(2000)

	l0, err := LiquidityFromToken0(1e18, sqrtLower, sqrtUpper)
	if err != nil {
		t.Fatalf("token0 liquidity: %v", err)
	}
	if l0 <= 0 {
		t.Fatalf("token0 liquidity not positive: %v", l0)
	}

	l1, err := LiquidityFromToken1(1e18, sqrtLower, sqrtUpper)
	if err != nil {
		t.Fatalf("token1 liquidity: %v", err)
	}
	if l1 <= 0 {
		t.Fatalf("token1 liquidity not positive: %v", l1)
	}

	if _, err := LiquidityFromToken0(1e18, sqrtUpper, sqrtLower); !errors.Is(err, tickmath.ErrInvalidRange) {
		t.Fatalf("inverted bounds: want ErrInvalidRange, got %v", err)
	}
	if _, err := LiquidityFromToken1(1e18, sqrtUpper, sqrtUpper); !errors.Is(err, tickmath.ErrInvalidRange) {
		t.Fatalf("equal bounds: want ErrInvalidRange, got %v", err)
	}
}

func TestTokenAmountsFromLiquidityInRange(t *testing.T) {
	sqrtLower := TickToSqrtPrice(-1000)
	sqrtUpper := TickToSqrtPrice(1000)
	sqrtMid := TickToSqrtPrice(0)

	a0, err := Token0FromLiquidity(1e12, sqrtMid, sqrtLower, sqrtUpper)
	if err != nil {
		t.Fatalf("amount0: %v", err)
	}
	a1, err := Token1FromLiquidity(1e12, sqrtMid, sqrtLower, sqrtUpper)
	if err != nil {
		t.Fatalf("amount1: %v", err)
	}
	if a0 <= 0 || a1 <= 0 {
		t.Fatalf("in-range amounts should both be positive: %v %v", a0, a1)
	}

	// Symmetric range around tick 0 holds nearly equal amounts of both sides.
	if math.Abs(a0-a1)/a1 > 0.1 {
		t.Fatalf("amounts should be near-symmetric: %v vs %v", a0, a1)
	}
}

func TestTokenAmountsZeroOutsideRange(t *testing.T) {
	sqrtLower := TickToSqrtPrice(100)
	sqrtUpper := TickToSqrtPrice(200)

	for _, sqrtP := range []float64{TickToSqrtPrice(50), TickToSqrtPrice(250)} {
		a0, err := Token0FromLiquidity(1e12, sqrtP, sqrtLower, sqrtUpper)
		if err != nil {
			t.Fatalf("amount0: %v", err)
		}
		a1, err := Token1FromLiquidity(1e12, sqrtP, sqrtLower, sqrtUpper)
		if err != nil {
			t.Fatalf("amount1: %v", err)
		}
		if a0 != 0 || a1 != 0 {
			t.Fatalf("outside-range amounts should be 0, got %v %v", a0, a1)
		}
	}
}

func TestUsdValue(t *testing.T) {
	// 2 token0 at $2000 plus 1000 token1 at $1, both 18 decimals.
	got := UsdValue(2e18, 1000e18, 2000, 1, 18, 18)
	if math.Abs(got-5000) > 1e-6 {
		t.Fatalf("usd value: %v", got)
	}
}

func TestOptimalAmountsPreservesUsdValue(t *testing.T) {
	const target = 10000.0

	// Price 2000 token1-per-token0, both 18 decimals, +/-5% band.
	price := 2000.0
	tickLower, _ := approxTick(price * 0.95)
	tickUpper, _ := approxTick(price * 1.05)
	sqrtP := math.Sqrt(price)

	amounts, err := OptimalAmounts(target, sqrtP, tickLower, tickUpper, 2000, 1, 18, 18)
	if err != nil {
		t.Fatalf("optimal amounts: %v", err)
	}
	if amounts.Liquidity <= 0 {
		t.Fatalf("liquidity not positive: %v", amounts.Liquidity)
	}

	got := UsdValue(amounts.Amount0, amounts.Amount1, 2000, 1, 18, 18)
	if math.Abs(got-target) > 100 {
		t.Fatalf("redeployed value %v not within $100 of %v", got, target)
	}
	if !ValidateUsdPreservation(target, got, 1.0) {
		t.Fatalf("usd preservation check failed: %v vs %v", got, target)
	}
}

func TestOptimalAmountsPriceOutsideRange(t *testing.T) {
	sqrtP := TickToSqrtPrice(5000)
	if _, err := OptimalAmounts(1000, sqrtP, -1000, 1000, 1, 1, 18, 18); !errors.Is(err, ErrPriceOutsideRange) {
		t.Fatalf("want ErrPriceOutsideRange, got %v", err)
	}
}

func TestOptimalAmountsInvalidRange(t *testing.T) {
	if _, err := OptimalAmounts(1000, 1, 1000, -1000, 1, 1, 18, 18); !errors.Is(err, tickmath.ErrInvalidRange) {
		t.Fatalf("want ErrInvalidRange, got %v", err)
	}
}

func TestValidateUsdPreservation(t *testing.T) {
	if !ValidateUsdPreservation(10000, 10050, 1.0) {
		t.Fatalf("0.5%% drift should pass")
	}
	if ValidateUsdPreservation(10000, 10200, 1.0) {
		t.Fatalf("2%% drift should fail")
	}
	if !ValidateUsdPreservation(0, 0, 1.0) {
		t.Fatalf("zero to zero should pass")
	}
	if ValidateUsdPreservation(0, 5, 1.0) {
		t.Fatalf("zero to nonzero should fail")
	}
}

func approxTick(price float64) (int, error) {
	return int(math.Round(math.Log(price) / math.Log(1.0001))), nil
}

func TestAmountsFromLiquidityInRange(t *testing.T) {
	sqrtL := TickToSqrtPrice(-1020)
	sqrtU := TickToSqrtPrice(1020)
	sqrtP := TickToSqrtPrice(100)
	const liq = 1e18

	amounts, err := AmountsFromLiquidity(liq, sqrtP, sqrtL, sqrtU)
	if err != nil {
		t.Fatalf("AmountsFromLiquidity: %v", err)
	}

	want0, err := Token0FromLiquidity(liq, sqrtP, sqrtL, sqrtU)
	if err != nil {
		t.Fatalf("Token0FromLiquidity: %v", err)
	}
	want1, err := Token1FromLiquidity(liq, sqrtP, sqrtL, sqrtU)
	if err != nil {
		t.Fatalf("Token1FromLiquidity: %v", err)
	}

	if amounts.Amount0 != want0 || amounts.Amount1 != want1 {
		t.Fatalf("in-range decomposition diverges: got (%v, %v), want (%v, %v)", amounts.Amount0, amounts.Amount1, want0, want1)
	}
}

func TestAmountsFromLiquiditySingleSided(t *testing.T) {
	sqrtL := TickToSqrtPrice(-1020)
	sqrtU := TickToSqrtPrice(1020)
	const liq = 1e18

	// Price above the range: the position holds only token1, worth the full
	// span of the range.
	above, err := AmountsFromLiquidity(liq, TickToSqrtPrice(2000), sqrtL, sqrtU)
	if err != nil {
		t.Fatalf("above range: %v", err)
	}
	if above.Amount0 != 0 {
		t.Errorf("above range amount0 = %v, want 0", above.Amount0)
	}
	if want := liq * (sqrtU - sqrtL); math.Abs(above.Amount1-want) > want*1e-12 {
		t.Errorf("above range amount1 = %v, want %v", above.Amount1, want)
	}

	// Price below the range: only token0.
	below, err := AmountsFromLiquidity(liq, TickToSqrtPrice(-2000), sqrtL, sqrtU)
	if err != nil {
		t.Fatalf("below range: %v", err)
	}
	if below.Amount1 != 0 {
		t.Errorf("below range amount1 = %v, want 0", below.Amount1)
	}
	if want := liq * (sqrtU - sqrtL) / (sqrtL * sqrtU); math.Abs(below.Amount0-want) > want*1e-12 {
		t.Errorf("below range amount0 = %v, want %v", below.Amount0, want)
	}
}

func TestAmountsFromLiquidityInvalidBounds(t *testing.T) {
	if _, err := AmountsFromLiquidity(1e18, 1, 2, 2); !errors.Is(err, tickmath.ErrInvalidRange) {
		t.Fatalf("want ErrInvalidRange, got %v", err)
	}
}
