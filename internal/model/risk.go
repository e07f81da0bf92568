package model

import "fmt"

// RiskProfile bundles the tunables that control how wide ranges are and how
// eagerly rebalances trigger. Profiles are loaded once at startup and never
// mutated.
type RiskProfile struct {
	Name               string  `json:"name"`
	BaseWidthPercent   float64 `json:"base_width_percent"`
	MaxWidthPercent    float64 `json:"max_width_percent"`
	RebalanceThreshold float64 `json:"rebalance_threshold"`
	VolatilityWeight   float64 `json:"volatility_weight"`
}

// Validate checks the profile invariants.
func (p RiskProfile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("risk profile name is required")
	}
	if p.BaseWidthPercent <= 0 {
		return fmt.Errorf("risk profile %s: base width must be > 0", p.Name)
	}
	if p.MaxWidthPercent < p.BaseWidthPercent {
		return fmt.Errorf("risk profile %s: max width %f < base width %f", p.Name, p.MaxWidthPercent, p.BaseWidthPercent)
	}
	if p.RebalanceThreshold <= 0 {
		return fmt.Errorf("risk profile %s: rebalance threshold must be > 0", p.Name)
	}
	if p.VolatilityWeight < 0 {
		return fmt.Errorf("risk profile %s: volatility weight must be >= 0", p.Name)
	}
	return nil
}
