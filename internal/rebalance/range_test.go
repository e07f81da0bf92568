package rebalance

import (
	"errors"
	"testing"

	"rangekeeper/internal/model"
	"rangekeeper/internal/tickmath"
)

func testProfiles() []model.RiskProfile {
	return []model.RiskProfile{
		{Name: "low", BaseWidthPercent: 4, MaxWidthPercent: 10, RebalanceThreshold: 0.25, VolatilityWeight: 25},
		{Name: "medium", BaseWidthPercent: 8, MaxWidthPercent: 25, RebalanceThreshold: 0.5, VolatilityWeight: 50},
		{Name: "high", BaseWidthPercent: 15, MaxWidthPercent: 60, RebalanceThreshold: 0.75, VolatilityWeight: 75},
	}
}

func TestNewTickRangeBracketsPrice(t *testing.T) {
	prices := []float64{0.05, 1, 1850.75, 65000}
	vols := []float64{0, 0.004, 0.02, 0.5}
	spacings := []int{1, 10, 60, 200}

	for _, profile := range testProfiles() {
		for _, price := range prices {
			for _, vol := range vols {
				for _, spacing := range spacings {
					r, err := NewTickRange(price, vol, profile, 18, 18, spacing)
					if err != nil {
						t.Fatalf("NewTickRange(%v, %v, %s, spacing %d): %v", price, vol, profile.Name, spacing, err)
					}
					if r.TickLower >= r.TickUpper {
						t.Fatalf("ticks not ordered: [%d, %d]", r.TickLower, r.TickUpper)
					}
					if r.TickLower%spacing != 0 || r.TickUpper%spacing != 0 {
						t.Fatalf("ticks [%d, %d] not aligned to spacing %d", r.TickLower, r.TickUpper, spacing)
					}
					if price < r.PriceRange.Lower || price > r.PriceRange.Upper {
						t.Fatalf("price %v outside projected range [%v, %v]", price, r.PriceRange.Lower, r.PriceRange.Upper)
					}
				}
			}
		}
	}
}

func TestNewTickRangeWidensWithVolatility(t *testing.T) {
	profile := model.RiskProfile{Name: "medium", BaseWidthPercent: 8, MaxWidthPercent: 25, RebalanceThreshold: 0.5, VolatilityWeight: 50}

	calm, err := NewTickRange(2000, 0, profile, 18, 18, 10)
	if err != nil {
		t.Fatalf("calm range: %v", err)
	}
	turbulent, err := NewTickRange(2000, 0.03, profile, 18, 18, 10)
	if err != nil {
		t.Fatalf("turbulent range: %v", err)
	}

	if turbulent.PriceRange.Width() <= calm.PriceRange.Width() {
		t.Fatalf("width did not grow with volatility: %v <= %v", turbulent.PriceRange.Width(), calm.PriceRange.Width())
	}
}

func TestNewTickRangeDecimalAdjustment(t *testing.T) {
	profile := model.RiskProfile{Name: "low", BaseWidthPercent: 4, MaxWidthPercent: 10, RebalanceThreshold: 0.25, VolatilityWeight: 25}

	// USDC/WETH style pair: 6 vs 18 decimals shifts the tick coordinate but
	// the projected price range must still bracket the input price.
	r, err := NewTickRange(2000, 0.01, profile, 6, 18, 60)
	if err != nil {
		t.Fatalf("NewTickRange: %v", err)
	}
	if 2000 < r.PriceRange.Lower || 2000 > r.PriceRange.Upper {
		t.Fatalf("price 2000 outside [%v, %v]", r.PriceRange.Lower, r.PriceRange.Upper)
	}
}

func TestNewTickRangeInvalidInputs(t *testing.T) {
	profile := model.RiskProfile{Name: "low", BaseWidthPercent: 4, MaxWidthPercent: 10, RebalanceThreshold: 0.25, VolatilityWeight: 25}

	if _, err := NewTickRange(0, 0.01, profile, 18, 18, 60); !errors.Is(err, tickmath.ErrInvalidPrice) {
		t.Errorf("zero price: got %v, want ErrInvalidPrice", err)
	}
	if _, err := NewTickRange(-5, 0.01, profile, 18, 18, 60); !errors.Is(err, tickmath.ErrInvalidPrice) {
		t.Errorf("negative price: got %v, want ErrInvalidPrice", err)
	}
	if _, err := NewTickRange(2000, 0.01, profile, 18, 18, 0); !errors.Is(err, tickmath.ErrInvalidTickSpacing) {
		t.Errorf("zero spacing: got %v, want ErrInvalidTickSpacing", err)
	}
	if _, err := NewTickRange(2000, 0.01, profile, 18, 18, -10); !errors.Is(err, tickmath.ErrInvalidTickSpacing) {
		t.Errorf("negative spacing: got %v, want ErrInvalidTickSpacing", err)
	}
}
