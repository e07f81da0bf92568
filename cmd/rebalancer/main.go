package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"rangekeeper/internal/chain"
	"rangekeeper/internal/config"
	"rangekeeper/internal/market"
	"rangekeeper/internal/model"
	"rangekeeper/internal/notify"
	"rangekeeper/internal/positions"
	"rangekeeper/internal/rebalance"
	"rangekeeper/internal/storage"
	"rangekeeper/internal/storage/postgres"
	"rangekeeper/internal/volatility"
)

func main() {
	root := &cobra.Command{
		Use:          "rebalancer",
		Short:        "Concentrated-liquidity position rebalancer",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the monitoring loop",
		RunE:  runMonitor,
	}
	addCommonFlags(runCmd)
	root.AddCommand(runCmd)

	evaluateCmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Run a single evaluation cycle and print the result",
		RunE:  runEvaluate,
	}
	addCommonFlags(evaluateCmd)
	root.AddCommand(evaluateCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addCommonFlags(cmd *cobra.Command) {
	cmd.Flags().String("rpc", "", "chain RPC URL")
	cmd.Flags().String("wallet", "", "wallet address holding the positions")
	cmd.Flags().String("position-manager", "", "NFT position manager address")
	cmd.Flags().String("factory", "", "pool factory address")
	cmd.Flags().Duration("interval", 5*time.Minute, "evaluation interval")
	cmd.Flags().String("risk-profile", "medium", "risk profile (low, medium, high)")
	cmd.Flags().String("vol-method", "standard", "volatility method (standard, ewma, garch)")
	cmd.Flags().Float64("vol-lambda", 0, "EWMA decay factor, 0 uses the default")
	cmd.Flags().String("market-data", "", "market data JSON file")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN")
	cmd.Flags().String("out", "./data/evaluations.jsonl", "output JSONL path")
	cmd.Flags().String("state", "./data/state.json", "state file path")
	cmd.Flags().Bool("state-enabled", true, "enable state persistence")
	cmd.Flags().Float64("usd-tolerance", 1.0, "allowed USD value drift percent on redeploy")
	cmd.Flags().String("telegram-token", "", "Telegram bot token")
	cmd.Flags().Int64("telegram-chat-id", 0, "Telegram chat id")
	cmd.Flags().Float64("base-width", 0, "override profile base width percent")
	cmd.Flags().Float64("max-width", 0, "override profile max width percent")
	cmd.Flags().Float64("rebalance-threshold", 0, "override profile rebalance threshold")
	cmd.Flags().Float64("vol-weight", 0, "override profile volatility weight")
	cmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	cmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

func runMonitor(cmd *cobra.Command, _ []string) error {
	monitor, cleanup, logger, err := buildMonitor(cmd)
	if err != nil {
		return err
	}
	defer cleanup()
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	monitor.Start(ctx)
	<-ctx.Done()
	logger.Info("shutting down")
	monitor.Stop()
	return nil
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
	monitor, cleanup, logger, err := buildMonitor(cmd)
	if err != nil {
		return err
	}
	defer cleanup()
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := monitor.RunCycle(ctx)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func buildMonitor(cmd *cobra.Command) (*rebalance.Monitor, func(), *zap.Logger, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, nil, nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, nil, err
	}

	if cfg.RPCURL == "" {
		return nil, nil, nil, fmt.Errorf("rpc url is required")
	}
	if cfg.Wallet == "" {
		return nil, nil, nil, fmt.Errorf("wallet is required")
	}
	if cfg.MarketDataFile == "" {
		return nil, nil, nil, fmt.Errorf("market data file is required")
	}

	profile, err := config.ProfileFor(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	method, err := volatility.ParseMethod(cfg.VolMethod)
	if err != nil {
		return nil, nil, nil, err
	}

	ctx := context.Background()
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect rpc: %w", err)
	}
	closers = append(closers, chainClient.Close)

	chainID, err := chainClient.GetChainID(ctx)
	if err != nil {
		cleanup()
		return nil, nil, nil, fmt.Errorf("get chain id: %w", err)
	}
	blockNumber, err := chainClient.LatestBlockNumber(ctx)
	if err != nil {
		cleanup()
		return nil, nil, nil, fmt.Errorf("get latest block: %w", err)
	}
	logger.Info("connected to chain",
		zap.String("chain_id", chainID.String()),
		zap.Uint64("block", blockNumber),
	)

	positionSource, err := positions.NewChainSource(positions.ChainConfig{
		PositionManager: cfg.PositionManager,
		Factory:         cfg.Factory,
		MaxRetries:      cfg.MaxRetries,
		RetryBackoff:    cfg.RetryBackoff,
	}, chainClient, logger)
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}

	marketSource, err := loadMarketSource(cfg.MarketDataFile)
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}

	calc := volatility.NewCalculator(volatility.Params{Lambda: cfg.VolLambda})
	strategy, err := rebalance.NewRuleBasedStrategy(calc, method, profile, logger)
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}

	monitor, err := rebalance.NewMonitor(rebalance.MonitorConfig{
		Wallet:              cfg.Wallet,
		Interval:            cfg.Interval,
		StatePath:           cfg.StatePath,
		StateEnabled:        cfg.StateEnabled,
		UsdTolerancePercent: cfg.UsdTolerance,
	}, positionSource, marketSource, strategy, logger)
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}

	if cfg.Out != "" {
		monitor.AddSink(storage.NewJsonlStorage(cfg.Out))
	}
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			cleanup()
			return nil, nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		closers = append(closers, store.Close)
		monitor.AddSink(store)
		monitor.AddPositionSink(store)
		monitor.SetStateSink(store)
	}
	if cfg.TelegramToken != "" && cfg.TelegramChatID != 0 {
		notifier, err := notify.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID, logger)
		if err != nil {
			cleanup()
			return nil, nil, nil, err
		}
		monitor.SetNotifier(notifier)
	}
	monitor.SetPlanSink(&logPlanSink{logger: logger})

	logger.Info("rebalancer configured",
		zap.String("wallet", cfg.Wallet),
		zap.String("risk_profile", profile.Name),
		zap.String("vol_method", string(method)),
		zap.Duration("interval", cfg.Interval),
		zap.String("out", cfg.Out),
		zap.Bool("postgres", cfg.PGDSN != ""),
		zap.Bool("telegram", cfg.TelegramToken != ""),
	)

	return monitor, cleanup, logger, nil
}

func loadMarketSource(path string) (market.Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read market data: %w", err)
	}
	entries, err := market.DecodeMarketPayload(data)
	if err != nil {
		return nil, err
	}
	return market.NewStaticSource(entries), nil
}

// logPlanSink records triggered plans in the log. Execution backends replace
// this sink.
type logPlanSink struct {
	logger *zap.Logger
}

func (s *logPlanSink) SubmitPlan(_ context.Context, plan model.RebalancePlan) error {
	s.logger.Info("rebalance plan",
		zap.String("position", plan.Evaluation.PositionID),
		zap.String("pool", plan.Evaluation.PoolAddress),
		zap.Int("tick_lower", plan.Evaluation.SuggestedRange.TickLower),
		zap.Int("tick_upper", plan.Evaluation.SuggestedRange.TickUpper),
		zap.Float64("amount0", plan.Amount0),
		zap.Float64("amount1", plan.Amount1),
		zap.Float64("usd_value", plan.UsdValue),
		zap.String("reason", plan.Evaluation.Reason),
	)
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
