// Package volatility estimates price volatility from historical series and
// maps the estimate into a target range width for a risk profile.
package volatility

import (
	"errors"
	"fmt"
	"math"

	"rangekeeper/internal/model"
)

// ErrInsufficientData is returned when fewer than two price points are
// supplied: a single point yields no return, hence no volatility.
var ErrInsufficientData = errors.New("at least 2 price points required")

// ErrUnknownMethod is returned for an unrecognized estimation method.
var ErrUnknownMethod = errors.New("unknown volatility method")

// Method selects the volatility estimator.
type Method string

const (
	MethodStandard Method = "standard"
	MethodEWMA     Method = "ewma"
	MethodGARCH    Method = "garch"
)

// ParseMethod validates a method name from configuration.
func ParseMethod(name string) (Method, error) {
	switch Method(name) {
	case MethodStandard, MethodEWMA, MethodGARCH:
		return Method(name), nil
	default:
		return "", fmt.Errorf("%q: %w", name, ErrUnknownMethod)
	}
}

// Calculator computes volatility metrics. Estimator parameters are fixed at
// construction.
type Calculator struct {
	lambda     float64 // EWMA decay
	garchOmega float64
	garchAlpha float64
	garchBeta  float64
}

// Params configures a Calculator. Zero values fall back to defaults.
type Params struct {
	Lambda     float64
	GarchOmega float64
	GarchAlpha float64
	GarchBeta  float64
}

// NewCalculator builds a Calculator with the given parameters.
func NewCalculator(params Params) *Calculator {
	c := &Calculator{
		lambda:     params.Lambda,
		garchOmega: params.GarchOmega,
		garchAlpha: params.GarchAlpha,
		garchBeta:  params.GarchBeta,
	}
	if c.lambda <= 0 || c.lambda >= 1 {
		c.lambda = 0.94
	}
	if c.garchOmega <= 0 {
		c.garchOmega = 1e-6
	}
	if c.garchAlpha <= 0 {
		c.garchAlpha = 0.1
	}
	if c.garchBeta <= 0 {
		c.garchBeta = 0.85
	}
	return c
}

// Calculate produces a volatility estimate from an ordered price series.
func (c *Calculator) Calculate(prices []model.PricePoint, method Method) (model.VolatilityMetrics, error) {
	if len(prices) < 2 {
		return model.VolatilityMetrics{}, fmt.Errorf("%d price points: %w", len(prices), ErrInsufficientData)
	}

	returns, err := logReturns(prices)
	if err != nil {
		return model.VolatilityMetrics{}, err
	}

	var value float64
	switch method {
	case MethodStandard:
		value = stdDev(returns)
	case MethodEWMA:
		value = c.ewma(returns)
	case MethodGARCH:
		value = c.garch(returns)
	default:
		return model.VolatilityMetrics{}, fmt.Errorf("%q: %w", method, ErrUnknownMethod)
	}

	return model.VolatilityMetrics{Value: value, Method: string(method)}, nil
}

func logReturns(prices []model.PricePoint) ([]float64, error) {
	returns := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		prev, cur := prices[i-1].Price, prices[i].Price
		if prev <= 0 || cur <= 0 {
			return nil, fmt.Errorf("non-positive price at index %d", i)
		}
		returns = append(returns, math.Log(cur/prev))
	}
	return returns, nil
}

// stdDev is the population standard deviation of the returns. Population
// rather than sample so a single return yields 0, not an undefined value.
func stdDev(returns []float64) float64 {
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		diff := r - mean
		variance += diff * diff
	}
	variance /= float64(len(returns))
	return math.Sqrt(variance)
}

// ewma runs the exponentially weighted moving variance recursion
// var_t = lambda*var_{t-1} + (1-lambda)*r_t^2, seeded with r_0^2.
func (c *Calculator) ewma(returns []float64) float64 {
	variance := returns[0] * returns[0]
	for _, r := range returns[1:] {
		variance = c.lambda*variance + (1-c.lambda)*r*r
	}
	return math.Sqrt(variance)
}

// garch runs a one-lag GARCH(1,1) variance recursion
// h_t = omega + alpha*r_{t-1}^2 + beta*h_{t-1}, seeded with the sample
// variance of the series.
func (c *Calculator) garch(returns []float64) float64 {
	seed := stdDev(returns)
	h := seed * seed
	if h == 0 {
		h = returns[0] * returns[0]
	}
	for _, r := range returns {
		h = c.garchOmega + c.garchAlpha*r*r + c.garchBeta*h
	}
	return math.Sqrt(h)
}

// AdjustedRangeWidth maps a volatility estimate and a risk profile into a
// target total range width percent. Monotonically non-decreasing in both the
// volatility and the profile's width parameters, capped at MaxWidthPercent.
func AdjustedRangeWidth(volatility float64, profile model.RiskProfile) float64 {
	if volatility < 0 {
		volatility = 0
	}
	width := profile.BaseWidthPercent * (1 + profile.VolatilityWeight*volatility)
	if width > profile.MaxWidthPercent {
		width = profile.MaxWidthPercent
	}
	return width
}
