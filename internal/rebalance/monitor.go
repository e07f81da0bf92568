package rebalance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"rangekeeper/internal/liquidity"
	"rangekeeper/internal/market"
	"rangekeeper/internal/model"
	"rangekeeper/internal/positions"
	"rangekeeper/internal/storage"
)

// Notifier receives a summary after each completed cycle.
type Notifier interface {
	NotifyCycle(ctx context.Context, result CycleResult) error
}

// PlanSink receives rebalance plans for positions that need re-centering.
// The default deployment logs plans; an execution backend can be plugged in
// behind this interface.
type PlanSink interface {
	SubmitPlan(ctx context.Context, plan model.RebalancePlan) error
}

// StateSink persists cycle progress in shared storage, alongside the local
// state file, so restarts on another host can see when the wallet was last
// evaluated.
type StateSink interface {
	LoadState(ctx context.Context, name string) (uint64, bool, error)
	SaveState(ctx context.Context, name string, ts uint64) error
}

// stateName keys the monitor's row in shared state storage.
const stateName = "rebalance_monitor"

// CycleResult is the outcome of one evaluation cycle.
type CycleResult struct {
	Evaluations []model.RebalanceEvaluation
	Plans       []model.RebalancePlan
	Skipped     []model.SkippedPosition
	StartedAt   time.Time
	FinishedAt  time.Time
}

// MonitorConfig holds runtime settings for the monitoring loop.
type MonitorConfig struct {
	Wallet              string
	Interval            time.Duration
	StatePath           string
	StateEnabled        bool
	UsdTolerancePercent float64
}

// Monitor runs the periodic evaluation loop. Cycles execute on the loop
// goroutine, so they never overlap; a cycle that outlasts the interval simply
// delays the next tick.
type Monitor struct {
	cfg       MonitorConfig
	positions positions.Source
	market    market.Source
	strategy  EvaluationStrategy
	sinks     []storage.EvaluationSink
	posSinks  []storage.PositionSink
	planSink  PlanSink
	stateSink StateSink
	notifier  Notifier
	logger    *zap.Logger
	state     *StateStore

	// handleError observes per-position and sink failures without stopping
	// the loop. Overridable in tests.
	handleError func(err error)

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
	cycles  uint64
}

// NewMonitor builds a Monitor with its dependencies. Sinks, the plan sink,
// and the notifier are all optional.
func NewMonitor(cfg MonitorConfig, positionSource positions.Source, marketSource market.Source, strategy EvaluationStrategy, logger *zap.Logger) (*Monitor, error) {
	if positionSource == nil {
		return nil, fmt.Errorf("position source is nil")
	}
	if marketSource == nil {
		return nil, fmt.Errorf("market source is nil")
	}
	if strategy == nil {
		return nil, fmt.Errorf("evaluation strategy is nil")
	}
	if cfg.Wallet == "" {
		return nil, fmt.Errorf("wallet is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.UsdTolerancePercent <= 0 {
		cfg.UsdTolerancePercent = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Monitor{
		cfg:       cfg,
		positions: positionSource,
		market:    marketSource,
		strategy:  strategy,
		logger:    logger,
		state:     NewStateStore(cfg.StatePath, cfg.StateEnabled),
	}
	m.handleError = func(err error) {
		m.logger.Warn("cycle error", zap.Error(err))
	}
	return m, nil
}

// AddSink registers an evaluation sink.
func (m *Monitor) AddSink(sink storage.EvaluationSink) {
	if sink != nil {
		m.sinks = append(m.sinks, sink)
	}
}

// AddPositionSink registers a position snapshot sink.
func (m *Monitor) AddPositionSink(sink storage.PositionSink) {
	if sink != nil {
		m.posSinks = append(m.posSinks, sink)
	}
}

// SetPlanSink sets the destination for rebalance plans.
func (m *Monitor) SetPlanSink(sink PlanSink) {
	m.planSink = sink
}

// SetStateSink sets the shared-storage state sink.
func (m *Monitor) SetStateSink(sink StateSink) {
	m.stateSink = sink
}

// SetNotifier sets the cycle notifier.
func (m *Monitor) SetNotifier(notifier Notifier) {
	m.notifier = notifier
}

// Start launches the loop: one cycle immediately, then one per interval.
// Calling Start on a running monitor is a no-op.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		m.logger.Warn("monitor already running, start ignored")
		return
	}

	if state, ok, err := m.state.Load(); err != nil {
		m.logger.Warn("load state failed", zap.Error(err))
	} else if ok {
		m.cycles = state.CyclesRun
		m.logger.Info("resume monitoring state", zap.Uint64("cycles_run", state.CyclesRun), zap.String("last_cycle_at", state.LastCycleAt))
	}

	if m.stateSink != nil {
		if ts, ok, err := m.stateSink.LoadState(ctx, stateName); err != nil {
			m.logger.Warn("load shared state failed", zap.Error(err))
		} else if ok {
			m.logger.Info("shared state found", zap.Uint64("last_cycle_ts", ts))
		}
	}

	m.running = true
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	go m.loop(ctx, m.stop, m.done)
}

// Stop halts the loop and waits for any in-flight cycle to finish. Stopping
// a monitor that is not running is a no-op.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		m.logger.Warn("monitor not running, stop ignored")
		return
	}
	m.running = false
	close(m.stop)
	done := m.done
	m.mu.Unlock()

	<-done
}

func (m *Monitor) loop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer func() {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
		close(done)
	}()

	m.runAndLog(ctx)

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.runAndLog(ctx)
		}
	}
}

func (m *Monitor) runAndLog(ctx context.Context) {
	result, err := m.RunCycle(ctx)
	if err != nil {
		m.handleError(fmt.Errorf("cycle failed: %w", err))
		return
	}
	m.logger.Info("cycle complete",
		zap.Int("evaluated", len(result.Evaluations)),
		zap.Int("triggered", len(result.Plans)),
		zap.Int("skipped", len(result.Skipped)),
		zap.Duration("elapsed", result.FinishedAt.Sub(result.StartedAt)),
	)
}

// RunCycle fetches positions, evaluates each one, and dispatches the results.
// A failure on one position skips that position and continues the batch; only
// failures before any evaluation can happen fail the cycle.
func (m *Monitor) RunCycle(ctx context.Context) (CycleResult, error) {
	result := CycleResult{StartedAt: time.Now().UTC()}

	activePositions, err := m.positions.FetchActivePositions(ctx, m.cfg.Wallet)
	if err != nil {
		return CycleResult{}, fmt.Errorf("fetch positions: %w", err)
	}
	if len(activePositions) == 0 {
		m.logger.Info("no active positions", zap.String("wallet", m.cfg.Wallet))
		result.FinishedAt = time.Now().UTC()
		return result, nil
	}

	tokens := collectTokens(activePositions)
	marketData, err := m.market.FetchMarketData(ctx, tokens)
	if err != nil {
		return CycleResult{}, fmt.Errorf("fetch market data: %w", err)
	}

	poolStates := make(map[string]model.PoolState)
	snapshots := make([]model.PoolPosition, 0, len(activePositions))

	for _, position := range activePositions {
		pool, ok := poolStates[position.PoolAddress]
		if !ok {
			pool, err = m.positions.PoolState(ctx, position.PoolAddress)
			if err != nil {
				m.handleError(fmt.Errorf("position %s: pool state: %w", position.PositionID, err))
				result.Skipped = append(result.Skipped, model.SkippedPosition{
					PositionID: position.PositionID,
					Reason:     fmt.Sprintf("pool state unavailable: %v", err),
				})
				continue
			}
			poolStates[position.PoolAddress] = pool
		}

		if err := positions.EnrichWithPoolState(&position, pool); err != nil {
			m.handleError(fmt.Errorf("position %s: amounts: %w", position.PositionID, err))
			result.Skipped = append(result.Skipped, model.SkippedPosition{
				PositionID: position.PositionID,
				Reason:     fmt.Sprintf("amount derivation failed: %v", err),
			})
			continue
		}
		snapshots = append(snapshots, position)

		market0, err0 := market.Lookup(marketData, position.Token0)
		market1, err1 := market.Lookup(marketData, position.Token1)
		if err0 != nil || err1 != nil {
			result.Skipped = append(result.Skipped, model.SkippedPosition{
				PositionID: position.PositionID,
				Reason:     "market data missing for pool tokens",
			})
			continue
		}

		evaluation, err := m.strategy.Evaluate(EvalInput{
			Position: position,
			Pool:     pool,
			Market0:  market0,
			Market1:  market1,
		})
		if err != nil {
			m.handleError(fmt.Errorf("position %s: evaluate: %w", position.PositionID, err))
			result.Skipped = append(result.Skipped, model.SkippedPosition{
				PositionID: position.PositionID,
				Reason:     fmt.Sprintf("evaluation failed: %v", err),
			})
			continue
		}
		result.Evaluations = append(result.Evaluations, evaluation)

		if !evaluation.NeedsRebalance {
			continue
		}
		plan, err := m.buildPlan(position, pool, market0, market1, evaluation)
		if err != nil {
			m.handleError(fmt.Errorf("position %s: plan: %w", position.PositionID, err))
			continue
		}
		result.Plans = append(result.Plans, plan)
	}

	m.dispatch(ctx, snapshots, result)

	m.mu.Lock()
	m.cycles++
	cycles := m.cycles
	m.mu.Unlock()

	if err := m.state.Save(MonitoringState{
		CyclesRun:     cycles,
		LastEvaluated: len(result.Evaluations),
		LastTriggered: len(result.Plans),
	}); err != nil {
		m.handleError(err)
	}

	result.FinishedAt = time.Now().UTC()

	if m.stateSink != nil {
		if err := m.stateSink.SaveState(ctx, stateName, uint64(result.FinishedAt.Unix())); err != nil {
			m.handleError(fmt.Errorf("save shared state: %w", err))
		}
	}

	return result, nil
}

// buildPlan sizes the redeployed position so its USD value matches the
// current one, fees included.
func (m *Monitor) buildPlan(position model.PoolPosition, pool model.PoolState, market0, market1 model.TokenMarketData, evaluation model.RebalanceEvaluation) (model.RebalancePlan, error) {
	currentUsd := liquidity.UsdValue(
		position.Amount0+position.Fees0,
		position.Amount1+position.Fees1,
		market0.CurrentPrice, market1.CurrentPrice,
		pool.Decimals0, pool.Decimals1,
	)

	amounts, err := liquidity.OptimalAmounts(
		currentUsd, pool.SqrtPrice,
		evaluation.SuggestedRange.TickLower, evaluation.SuggestedRange.TickUpper,
		market0.CurrentPrice, market1.CurrentPrice,
		pool.Decimals0, pool.Decimals1,
	)
	if err != nil {
		return model.RebalancePlan{}, err
	}

	newUsd := liquidity.UsdValue(amounts.Amount0, amounts.Amount1, market0.CurrentPrice, market1.CurrentPrice, pool.Decimals0, pool.Decimals1)
	if !liquidity.ValidateUsdPreservation(currentUsd, newUsd, m.cfg.UsdTolerancePercent) {
		return model.RebalancePlan{}, fmt.Errorf("usd value not preserved: %.2f -> %.2f", currentUsd, newUsd)
	}

	return model.RebalancePlan{
		Evaluation: evaluation,
		Amount0:    amounts.Amount0,
		Amount1:    amounts.Amount1,
		Liquidity:  amounts.Liquidity,
		UsdValue:   newUsd,
		Decimals0:  pool.Decimals0,
		Decimals1:  pool.Decimals1,
	}, nil
}

// dispatch delivers the cycle's artifacts. Sink and notifier failures are
// reported but never fail the cycle.
func (m *Monitor) dispatch(ctx context.Context, snapshots []model.PoolPosition, result CycleResult) {
	for _, sink := range m.posSinks {
		if err := sink.SavePositions(ctx, snapshots); err != nil {
			m.handleError(fmt.Errorf("save positions: %w", err))
		}
	}
	for _, sink := range m.sinks {
		if err := sink.SaveEvaluations(ctx, result.Evaluations); err != nil {
			m.handleError(fmt.Errorf("save evaluations: %w", err))
		}
	}
	if m.planSink != nil {
		for _, plan := range result.Plans {
			if err := m.planSink.SubmitPlan(ctx, plan); err != nil {
				m.handleError(fmt.Errorf("submit plan %s: %w", plan.Evaluation.PositionID, err))
			}
		}
	}
	if m.notifier != nil && len(result.Evaluations) > 0 {
		if err := m.notifier.NotifyCycle(ctx, result); err != nil && !errors.Is(err, context.Canceled) {
			m.handleError(fmt.Errorf("notify: %w", err))
		}
	}
}

func collectTokens(positions []model.PoolPosition) []string {
	seen := make(map[string]struct{}, len(positions)*2)
	tokens := make([]string, 0, len(positions)*2)
	for _, position := range positions {
		for _, token := range []string{position.Token0, position.Token1} {
			if _, ok := seen[token]; ok {
				continue
			}
			seen[token] = struct{}{}
			tokens = append(tokens, token)
		}
	}
	return tokens
}
