package volatility

import (
	"errors"
	"math"
	"testing"

	"rangekeeper/internal/model"
)

func series(prices ...float64) []model.PricePoint {
	points := make([]model.PricePoint, 0, len(prices))
	for i, p := range prices {
		points = append(points, model.PricePoint{Timestamp: uint64(1700000000 + i*3600), Price: p})
	}
	return points
}

func TestCalculateInsufficientData(t *testing.T) {
	calc := NewCalculator(Params{})

	if _, err := calc.Calculate(nil, MethodStandard); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("empty series: want ErrInsufficientData, got %v", err)
	}
	if _, err := calc.Calculate(series(2000), MethodStandard); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("single point: want ErrInsufficientData, got %v", err)
	}
}

func TestCalculateTwoPointsSucceeds(t *testing.T) {
	calc := NewCalculator(Params{})

	for _, method := range []Method{MethodStandard, MethodEWMA, MethodGARCH} {
		metrics, err := calc.Calculate(series(2000, 2100), method)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", method, err)
		}
		if metrics.Value < 0 || math.IsNaN(metrics.Value) || math.IsInf(metrics.Value, 0) {
			t.Fatalf("%s: value not finite non-negative: %v", method, metrics.Value)
		}
		if metrics.Method != string(method) {
			t.Fatalf("%s: method label %q", method, metrics.Method)
		}
	}
}

func TestCalculateNonNegative(t *testing.T) {
	calc := NewCalculator(Params{})
	prices := series(100, 103, 99, 108, 95, 101, 104, 97)

	for _, method := range []Method{MethodStandard, MethodEWMA, MethodGARCH} {
		metrics, err := calc.Calculate(prices, method)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", method, err)
		}
		if metrics.Value < 0 {
			t.Fatalf("%s: negative volatility %v", method, metrics.Value)
		}
	}
}

func TestStandardFlatSeriesIsZero(t *testing.T) {
	calc := NewCalculator(Params{})
	metrics, err := calc.Calculate(series(100, 100, 100, 100), MethodStandard)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if metrics.Value != 0 {
		t.Fatalf("flat series volatility: %v", metrics.Value)
	}
}

func TestEWMAReactsToRecentMoves(t *testing.T) {
	calc := NewCalculator(Params{Lambda: 0.94})

	calm := series(100, 100.1, 100.05, 100.12, 100.08, 100.1)
	spiky := series(100, 100.1, 100.05, 100.12, 100.08, 110)

	calmVol, err := calc.Calculate(calm, MethodEWMA)
	if err != nil {
		t.Fatalf("calm: %v", err)
	}
	spikyVol, err := calc.Calculate(spiky, MethodEWMA)
	if err != nil {
		t.Fatalf("spiky: %v", err)
	}
	if spikyVol.Value <= calmVol.Value {
		t.Fatalf("ewma should react to the late spike: %v <= %v", spikyVol.Value, calmVol.Value)
	}
}

func TestCalculateRejectsNonPositivePrices(t *testing.T) {
	calc := NewCalculator(Params{})
	if _, err := calc.Calculate(series(100, -5, 100), MethodStandard); err == nil {
		t.Fatalf("expected error for negative price")
	}
}

func TestCalculateUnknownMethod(t *testing.T) {
	calc := NewCalculator(Params{})
	if _, err := calc.Calculate(series(1, 2), Method("quantum")); !errors.Is(err, ErrUnknownMethod) {
		t.Fatalf("want ErrUnknownMethod, got %v", err)
	}
	if _, err := ParseMethod("quantum"); !errors.Is(err, ErrUnknownMethod) {
		t.Fatalf("parse: want ErrUnknownMethod, got %v", err)
	}
}

func TestAdjustedRangeWidthMonotonicInVolatility(t *testing.T) {
	profile := model.RiskProfile{
		Name:               "medium",
		BaseWidthPercent:   8,
		MaxWidthPercent:    25,
		RebalanceThreshold: 0.5,
		VolatilityWeight:   50,
	}

	prev := AdjustedRangeWidth(0, profile)
	for vol := 0.001; vol <= 0.2; vol += 0.001 {
		cur := AdjustedRangeWidth(vol, profile)
		if cur < prev {
			t.Fatalf("width decreased at vol %v: %v < %v", vol, cur, prev)
		}
		if cur > profile.MaxWidthPercent {
			t.Fatalf("width exceeds cap at vol %v: %v", vol, cur)
		}
		prev = cur
	}
}

func TestAdjustedRangeWidthMonotonicInRisk(t *testing.T) {
	low := model.RiskProfile{Name: "low", BaseWidthPercent: 4, MaxWidthPercent: 10, RebalanceThreshold: 0.25, VolatilityWeight: 25}
	medium := model.RiskProfile{Name: "medium", BaseWidthPercent: 8, MaxWidthPercent: 25, RebalanceThreshold: 0.5, VolatilityWeight: 50}
	high := model.RiskProfile{Name: "high", BaseWidthPercent: 15, MaxWidthPercent: 60, RebalanceThreshold: 0.75, VolatilityWeight: 75}

	for _, vol := range []float64{0, 0.005, 0.02, 0.1, 1} {
		wLow := AdjustedRangeWidth(vol, low)
		wMed := AdjustedRangeWidth(vol, medium)
		wHigh := AdjustedRangeWidth(vol, high)
		if !(wLow <= wMed && wMed <= wHigh) {
			t.Fatalf("width not monotonic in risk at vol %v: %v %v %v", vol, wLow, wMed, wHigh)
		}
	}
}
