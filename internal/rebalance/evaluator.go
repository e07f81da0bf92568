// Package rebalance decides whether concentrated-liquidity positions need to
// be re-centered and runs the periodic evaluation loop.
package rebalance

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"rangekeeper/internal/model"
	"rangekeeper/internal/tickmath"
	"rangekeeper/internal/volatility"
)

// EvalInput bundles everything needed to evaluate one position.
type EvalInput struct {
	Position model.PoolPosition
	Pool     model.PoolState
	Market0  model.TokenMarketData
	Market1  model.TokenMarketData
}

// EvaluationStrategy produces a rebalance decision for one position. The
// deterministic range-math strategy is the canonical implementation; hosts
// can plug alternatives behind this interface.
type EvaluationStrategy interface {
	Evaluate(in EvalInput) (model.RebalanceEvaluation, error)
}

// RuleBasedStrategy is the deterministic evaluation strategy: price deviation
// plus volatility-adjusted width against a risk profile.
type RuleBasedStrategy struct {
	calc    *volatility.Calculator
	method  volatility.Method
	profile model.RiskProfile
	logger  *zap.Logger
}

// NewRuleBasedStrategy builds the canonical strategy.
func NewRuleBasedStrategy(calc *volatility.Calculator, method volatility.Method, profile model.RiskProfile, logger *zap.Logger) (*RuleBasedStrategy, error) {
	if calc == nil {
		return nil, fmt.Errorf("volatility calculator is nil")
	}
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RuleBasedStrategy{calc: calc, method: method, profile: profile, logger: logger}, nil
}

// Evaluate runs the decision procedure for one position.
//
// A position is left alone only when it is in range and its width sits within
// the profile's tolerated drift of the volatility-adjusted optimum. Width
// drift exactly at the threshold triggers a rebalance: re-centering beats
// keeping a stale range.
func (s *RuleBasedStrategy) Evaluate(in EvalInput) (model.RebalanceEvaluation, error) {
	pos := in.Position
	pool := in.Pool

	currentPriceRange, err := tickmath.PriceRange(pos.TickLower, pos.TickUpper, pool.Decimals0, pool.Decimals1)
	if err != nil {
		return model.RebalanceEvaluation{}, fmt.Errorf("position %s range: %w", pos.PositionID, err)
	}

	currentPrice := pool.CurrentPrice
	if currentPrice <= 0 {
		currentPrice = tickmath.TickToPrice(pool.CurrentTick, pool.Decimals0, pool.Decimals1)
	}

	deviation := tickmath.PriceDeviation(currentPrice, currentPriceRange.Lower, currentPriceRange.Upper)

	vol := s.estimateVolatility(in)
	optimalWidth := volatility.AdjustedRangeWidth(vol.Value, s.profile)
	currentWidth := currentPriceRange.Width() / currentPrice * 100
	widthDrift := widthDriftRatio(currentWidth, optimalWidth)

	eval := model.RebalanceEvaluation{
		PositionID:  pos.PositionID,
		PoolAddress: pos.PoolAddress,
		CurrentRange: model.TickRange{
			TickLower:  pos.TickLower,
			TickUpper:  pos.TickUpper,
			PriceRange: currentPriceRange,
		},
		PriceDeviation: deviation,
		CurrentPrice:   currentPrice,
		Volatility:     vol,
		EvaluatedAt:    time.Now().UTC(),
	}

	switch {
	case deviation > 0:
		eval.NeedsRebalance = true
		eval.Reason = fmt.Sprintf("position is out of range: price %.6g outside [%.6g, %.6g], deviation %.2f range widths", currentPrice, currentPriceRange.Lower, currentPriceRange.Upper, deviation)
	case widthDrift >= s.profile.RebalanceThreshold:
		eval.NeedsRebalance = true
		eval.Reason = fmt.Sprintf("range width %.2f%% drifted %.0f%% from optimal %.2f%%", currentWidth, widthDrift*100, optimalWidth)
	default:
		eval.Reason = "position is in range and optimally sized"
	}

	if !eval.NeedsRebalance {
		return eval, nil
	}

	suggested, err := NewTickRange(currentPrice, vol.Value, s.profile, pool.Decimals0, pool.Decimals1, pool.TickSpacing)
	if err != nil {
		return model.RebalanceEvaluation{}, fmt.Errorf("position %s suggested range: %w", pos.PositionID, err)
	}
	eval.SuggestedRange = suggested

	// Fees accrue in proportion to liquidity concentration, which is inverse
	// to range width.
	if newWidth := suggested.PriceRange.Width() / currentPrice * 100; newWidth > 0 {
		eval.EstimatedAprImprovement = currentWidth/newWidth - 1
	}

	return eval, nil
}

// estimateVolatility takes the more volatile of the two tokens' histories.
// Insufficient history degrades to zero volatility (default width sizing)
// rather than failing the evaluation.
func (s *RuleBasedStrategy) estimateVolatility(in EvalInput) model.VolatilityMetrics {
	best := model.VolatilityMetrics{Value: 0, Method: string(s.method)}
	for _, md := range []model.TokenMarketData{in.Market0, in.Market1} {
		metrics, err := s.calc.Calculate(md.PriceHistory, s.method)
		if err != nil {
			if !errors.Is(err, volatility.ErrInsufficientData) {
				s.logger.Warn("volatility estimate failed",
					zap.String("position", in.Position.PositionID),
					zap.String("token", md.Address),
					zap.Error(err),
				)
			}
			continue
		}
		if metrics.Value > best.Value {
			best = metrics
		}
	}
	return best
}

func widthDriftRatio(currentWidth, optimalWidth float64) float64 {
	if optimalWidth <= 0 {
		return 0
	}
	drift := (currentWidth - optimalWidth) / optimalWidth
	if drift < 0 {
		drift = -drift
	}
	return drift
}
