package positions

import (
	"math"
	"testing"

	"rangekeeper/internal/model"
)

func poolStateAt(tick int) model.PoolState {
	return model.PoolState{
		PoolAddress:  "0xpool",
		CurrentTick:  tick,
		SqrtPrice:    math.Pow(1.0001, float64(tick)/2),
		CurrentPrice: math.Pow(1.0001, float64(tick)),
		TickSpacing:  60,
		Decimals0:    18,
		Decimals1:    18,
	}
}

func TestEnrichWithPoolStateInRange(t *testing.T) {
	position := model.PoolPosition{
		PositionID: "1",
		TickLower:  -1020,
		TickUpper:  1020,
		Liquidity:  1e18,
	}

	if err := EnrichWithPoolState(&position, poolStateAt(0)); err != nil {
		t.Fatalf("EnrichWithPoolState: %v", err)
	}
	if !position.InRange {
		t.Errorf("position at tick 0 not marked in range")
	}
	if position.Amount0 <= 0 || position.Amount1 <= 0 {
		t.Errorf("in-range amounts = (%v, %v), want both > 0", position.Amount0, position.Amount1)
	}
}

func TestEnrichWithPoolStateAboveRange(t *testing.T) {
	// The pool trades above the position's upper bound: all value sits in
	// token1 and the amount must stay non-zero so the redeploy plan can be
	// sized.
	position := model.PoolPosition{
		PositionID: "1",
		TickLower:  -1020,
		TickUpper:  1020,
		Liquidity:  1e18,
	}

	if err := EnrichWithPoolState(&position, poolStateAt(2000)); err != nil {
		t.Fatalf("EnrichWithPoolState: %v", err)
	}
	if position.InRange {
		t.Errorf("position above range marked in range")
	}
	if position.Amount0 != 0 {
		t.Errorf("amount0 = %v, want 0 above the range", position.Amount0)
	}
	if position.Amount1 <= 0 {
		t.Errorf("amount1 = %v, want > 0 above the range", position.Amount1)
	}
}

func TestEnrichWithPoolStateBelowRange(t *testing.T) {
	position := model.PoolPosition{
		PositionID: "1",
		TickLower:  -1020,
		TickUpper:  1020,
		Liquidity:  1e18,
	}

	if err := EnrichWithPoolState(&position, poolStateAt(-2000)); err != nil {
		t.Fatalf("EnrichWithPoolState: %v", err)
	}
	if position.InRange {
		t.Errorf("position below range marked in range")
	}
	if position.Amount1 != 0 {
		t.Errorf("amount1 = %v, want 0 below the range", position.Amount1)
	}
	if position.Amount0 <= 0 {
		t.Errorf("amount0 = %v, want > 0 below the range", position.Amount0)
	}
}
