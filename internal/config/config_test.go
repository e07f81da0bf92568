package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Interval != 5*time.Minute {
		t.Errorf("interval = %v, want 5m", cfg.Interval)
	}
	if cfg.RiskProfile != "medium" {
		t.Errorf("risk profile = %q, want medium", cfg.RiskProfile)
	}
	if cfg.VolMethod != "standard" {
		t.Errorf("vol method = %q, want standard", cfg.VolMethod)
	}
	if !cfg.StateEnabled {
		t.Errorf("state not enabled by default")
	}
	if cfg.UsdTolerance != 1.0 {
		t.Errorf("usd tolerance = %v, want 1.0", cfg.UsdTolerance)
	}
	if cfg.MaxRetries != 5 {
		t.Errorf("max retries = %d, want 5", cfg.MaxRetries)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("log level = %q, want info", cfg.LogLevel)
	}
}

func TestProfileFor(t *testing.T) {
	cfg := Config{RiskProfile: "low"}
	profile, err := ProfileFor(cfg)
	if err != nil {
		t.Fatalf("ProfileFor: %v", err)
	}
	if profile.BaseWidthPercent != 4 || profile.MaxWidthPercent != 10 {
		t.Errorf("low profile = %+v", profile)
	}

	cfg.RiskProfile = "HIGH"
	profile, err = ProfileFor(cfg)
	if err != nil {
		t.Fatalf("ProfileFor case-insensitive: %v", err)
	}
	if profile.Name != "high" {
		t.Errorf("profile name = %q", profile.Name)
	}
}

func TestProfileForUnknown(t *testing.T) {
	_, err := ProfileFor(Config{RiskProfile: "reckless"})
	if err == nil {
		t.Fatalf("unknown profile accepted")
	}
	if !strings.Contains(err.Error(), "high, low, medium") {
		t.Errorf("error %q does not list known profiles", err.Error())
	}
}

func TestProfileForOverrides(t *testing.T) {
	cfg := Config{
		RiskProfile: "medium",
		BaseWidth:   12,
		MaxWidth:    30,
	}
	profile, err := ProfileFor(cfg)
	if err != nil {
		t.Fatalf("ProfileFor: %v", err)
	}
	if profile.BaseWidthPercent != 12 || profile.MaxWidthPercent != 30 {
		t.Errorf("overrides not applied: %+v", profile)
	}
	if profile.RebalanceThreshold != 0.5 {
		t.Errorf("untouched field changed: %v", profile.RebalanceThreshold)
	}
}

func TestProfileForInvalidOverride(t *testing.T) {
	cfg := Config{
		RiskProfile: "medium",
		BaseWidth:   30,
		MaxWidth:    10,
	}
	if _, err := ProfileFor(cfg); err == nil {
		t.Fatalf("max width below base width accepted")
	}
}
