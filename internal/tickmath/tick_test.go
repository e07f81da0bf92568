package tickmath

import (
	"errors"
	"math"
	"testing"
)

func TestTickToPriceKnownValues(t *testing.T) {
	if got := TickToPrice(0, 18, 18); got != 1.0 {
		t.Fatalf("tick 0 price: %v", got)
	}

	// One tick moves price by exactly one basis-point factor.
	got := TickToPrice(1, 18, 18)
	if math.Abs(got-1.0001) > 1e-12 {
		t.Fatalf("tick 1 price: %v", got)
	}

	// Decimal scaling: 10^(6-18) shift for a USDC/WETH style pair.
	got = TickToPrice(0, 6, 18)
	if math.Abs(got-1e-12) > 1e-24 {
		t.Fatalf("decimal-adjusted price: %v", got)
	}
}

func TestTickToPriceMonotonic(t *testing.T) {
	prev := TickToPrice(-5000, 18, 18)
	for tick := -4999; tick <= 5000; tick += 7 {
		cur := TickToPrice(tick, 18, 18)
		if cur <= prev {
			t.Fatalf("price not increasing at tick %d: %v <= %v", tick, cur, prev)
		}
		prev = cur
	}
}

func TestPriceToTickRoundTrip(t *testing.T) {
	for _, tick := range []int{-100000, -887, -1, 0, 1, 60, 887, 100000} {
		price := TickToPrice(tick, 18, 18)
		got, err := PriceToTick(price, 1)
		if err != nil {
			t.Fatalf("tick %d: unexpected error: %v", tick, err)
		}
		if got < tick-1 || got > tick+1 {
			t.Fatalf("round trip tick %d -> %d", tick, got)
		}
	}
}

func TestPriceToTickSpacingAlignment(t *testing.T) {
	got, err := PriceToTick(TickToPrice(95, 18, 18), 60)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got%60 != 0 {
		t.Fatalf("tick %d not aligned to spacing 60", got)
	}
}

func TestPriceToTickInvalidInputs(t *testing.T) {
	if _, err := PriceToTick(0, 1); !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("zero price: want ErrInvalidPrice, got %v", err)
	}
	if _, err := PriceToTick(-5, 1); !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("negative price: want ErrInvalidPrice, got %v", err)
	}
	if _, err := PriceToTick(1.5, 0); !errors.Is(err, ErrInvalidTickSpacing) {
		t.Fatalf("zero spacing: want ErrInvalidTickSpacing, got %v", err)
	}
}

func TestPriceRange(t *testing.T) {
	r, err := PriceRange(-1000, 1000, 18, 18)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Lower >= r.Upper {
		t.Fatalf("range not ordered: %+v", r)
	}

	if _, err := PriceRange(10, 10, 18, 18); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("degenerate range: want ErrInvalidRange, got %v", err)
	}
	if _, err := PriceRange(10, -10, 18, 18); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("inverted range: want ErrInvalidRange, got %v", err)
	}
}

func TestIsInRangeBounds(t *testing.T) {
	lower, upper := -120, 120

	cases := []struct {
		tick int
		want bool
	}{
		{lower - 1, false},
		{lower, true},
		{0, true},
		{upper, true},
		{upper + 1, false},
	}
	for _, tc := range cases {
		if got := IsInRange(tc.tick, lower, upper); got != tc.want {
			t.Fatalf("IsInRange(%d): got %v want %v", tc.tick, got, tc.want)
		}
	}
}

func TestUtilizationRate(t *testing.T) {
	if got := UtilizationRate(0, -100, 100); got != 0.5 {
		t.Fatalf("midpoint utilization: %v", got)
	}
	if got := UtilizationRate(-100, -100, 100); got != 0 {
		t.Fatalf("lower bound utilization: %v", got)
	}
	if got := UtilizationRate(100, -100, 100); got != 1 {
		t.Fatalf("upper bound utilization: %v", got)
	}
	if got := UtilizationRate(500, -100, 100); got != 1 {
		t.Fatalf("above range should clamp: %v", got)
	}
	if got := UtilizationRate(50, 10, 10); got != 0 {
		t.Fatalf("degenerate range should be 0: %v", got)
	}
}

func TestPriceDeviationZeroInsideRange(t *testing.T) {
	for _, price := range []float64{100, 150, 199.99, 200} {
		if got := PriceDeviation(price, 100, 200); got != 0 {
			t.Fatalf("price %v inside range: deviation %v", price, got)
		}
	}
}

func TestPriceDeviationOutsideRange(t *testing.T) {
	// 50 below a width-100 range.
	if got := PriceDeviation(50, 100, 200); math.Abs(got-0.5) > 1e-12 {
		t.Fatalf("below range deviation: %v", got)
	}
	// 150 above a width-100 range.
	if got := PriceDeviation(350, 100, 200); math.Abs(got-1.5) > 1e-12 {
		t.Fatalf("above range deviation: %v", got)
	}
}
