package config

import (
	"fmt"
	"sort"
	"strings"

	"rangekeeper/internal/model"
)

// Builtin risk profiles. Width percents are total range widths; the
// threshold is the tolerated relative drift from the optimal width before a
// rebalance triggers.
var builtinProfiles = map[string]model.RiskProfile{
	"low": {
		Name:               "low",
		BaseWidthPercent:   4,
		MaxWidthPercent:    10,
		RebalanceThreshold: 0.25,
		VolatilityWeight:   25,
	},
	"medium": {
		Name:               "medium",
		BaseWidthPercent:   8,
		MaxWidthPercent:    25,
		RebalanceThreshold: 0.5,
		VolatilityWeight:   50,
	},
	"high": {
		Name:               "high",
		BaseWidthPercent:   15,
		MaxWidthPercent:    60,
		RebalanceThreshold: 0.75,
		VolatilityWeight:   75,
	},
}

// ProfileNames lists the builtin profile names, sorted.
func ProfileNames() []string {
	names := make([]string, 0, len(builtinProfiles))
	for name := range builtinProfiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ProfileFor resolves the configured risk profile and applies any per-run
// width overrides from the config.
func ProfileFor(cfg Config) (model.RiskProfile, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.RiskProfile))
	profile, ok := builtinProfiles[name]
	if !ok {
		return model.RiskProfile{}, fmt.Errorf("unknown risk profile %q, expected one of %s", cfg.RiskProfile, strings.Join(ProfileNames(), ", "))
	}

	if cfg.BaseWidth > 0 {
		profile.BaseWidthPercent = cfg.BaseWidth
	}
	if cfg.MaxWidth > 0 {
		profile.MaxWidthPercent = cfg.MaxWidth
	}
	if cfg.RebalanceThreshold > 0 {
		profile.RebalanceThreshold = cfg.RebalanceThreshold
	}
	if cfg.VolWeight > 0 {
		profile.VolatilityWeight = cfg.VolWeight
	}

	if err := profile.Validate(); err != nil {
		return model.RiskProfile{}, err
	}
	return profile, nil
}
