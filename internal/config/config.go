package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL          string
	Wallet          string
	PositionManager string
	Factory         string
	Interval        time.Duration
	RiskProfile     string
	VolMethod       string
	VolLambda       float64
	MarketDataFile  string
	PGDSN           string
	Out             string
	StatePath       string
	StateEnabled    bool
	UsdTolerance    float64
	TelegramToken   string
	TelegramChatID  int64
	MaxRetries      int
	RetryBackoff    time.Duration
	LogLevel        string

	// Optional per-run overrides of the selected risk profile. Zero values
	// keep the profile's own settings.
	BaseWidth          float64
	MaxWidth           float64
	RebalanceThreshold float64
	VolWeight          float64
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("REBALANCER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("interval", 5*time.Minute)
	v.SetDefault("risk-profile", "medium")
	v.SetDefault("vol-method", "standard")
	v.SetDefault("out", "./data/evaluations.jsonl")
	v.SetDefault("state", "./data/state.json")
	v.SetDefault("state-enabled", true)
	v.SetDefault("usd-tolerance", 1.0)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		RPCURL:          v.GetString("rpc"),
		Wallet:          v.GetString("wallet"),
		PositionManager: v.GetString("position-manager"),
		Factory:         v.GetString("factory"),
		Interval:        v.GetDuration("interval"),
		RiskProfile:     v.GetString("risk-profile"),
		VolMethod:       v.GetString("vol-method"),
		VolLambda:       v.GetFloat64("vol-lambda"),
		MarketDataFile:  v.GetString("market-data"),
		PGDSN:           v.GetString("pg-dsn"),
		Out:             v.GetString("out"),
		StatePath:       v.GetString("state"),
		StateEnabled:    v.GetBool("state-enabled"),
		UsdTolerance:    v.GetFloat64("usd-tolerance"),
		TelegramToken:   v.GetString("telegram-token"),
		TelegramChatID:  v.GetInt64("telegram-chat-id"),
		MaxRetries:      v.GetInt("max-retries"),
		RetryBackoff:    v.GetDuration("retry-backoff"),
		LogLevel:        v.GetString("log-level"),

		BaseWidth:          v.GetFloat64("base-width"),
		MaxWidth:           v.GetFloat64("max-width"),
		RebalanceThreshold: v.GetFloat64("rebalance-threshold"),
		VolWeight:          v.GetFloat64("vol-weight"),
	}

	return cfg, nil
}
