package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"rangekeeper/internal/model"
)

// Store provides Postgres persistence for evaluations and position snapshots.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// SaveEvaluations inserts or updates evaluation records, keyed by position
// and evaluation time.
func (s *Store) SaveEvaluations(ctx context.Context, evaluations []model.RebalanceEvaluation) error {
	if len(evaluations) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, e := range evaluations {
		batch.Queue(`
			INSERT INTO rebalance_evaluations (
				position_id, pool_address, evaluated_at,
				tick_lower, tick_upper, suggested_tick_lower, suggested_tick_upper,
				needs_rebalance, reason, estimated_apr_improvement,
				price_deviation, current_price, volatility, volatility_method,
				created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,now())
			ON CONFLICT (position_id, evaluated_at)
			DO UPDATE SET
				needs_rebalance = EXCLUDED.needs_rebalance,
				reason = EXCLUDED.reason,
				suggested_tick_lower = EXCLUDED.suggested_tick_lower,
				suggested_tick_upper = EXCLUDED.suggested_tick_upper,
				estimated_apr_improvement = EXCLUDED.estimated_apr_improvement
		`,
			e.PositionID,
			e.PoolAddress,
			e.EvaluatedAt,
			e.CurrentRange.TickLower,
			e.CurrentRange.TickUpper,
			e.SuggestedRange.TickLower,
			e.SuggestedRange.TickUpper,
			e.NeedsRebalance,
			e.Reason,
			e.EstimatedAprImprovement,
			e.PriceDeviation,
			e.CurrentPrice,
			e.Volatility.Value,
			e.Volatility.Method,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range evaluations {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// SavePositions inserts or updates position snapshots.
func (s *Store) SavePositions(ctx context.Context, positions []model.PoolPosition) error {
	if len(positions) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, p := range positions {
		batch.Queue(`
			INSERT INTO positions (
				position_id, pool_address, token0, token1,
				tick_lower, tick_upper, liquidity,
				amount0, amount1, fees0, fees1, is_in_range,
				created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,now(),now())
			ON CONFLICT (position_id)
			DO UPDATE SET
				tick_lower = EXCLUDED.tick_lower,
				tick_upper = EXCLUDED.tick_upper,
				liquidity = EXCLUDED.liquidity,
				amount0 = EXCLUDED.amount0,
				amount1 = EXCLUDED.amount1,
				fees0 = EXCLUDED.fees0,
				fees1 = EXCLUDED.fees1,
				is_in_range = EXCLUDED.is_in_range,
				updated_at = now()
		`,
			p.PositionID,
			p.PoolAddress,
			p.Token0,
			p.Token1,
			p.TickLower,
			p.TickUpper,
			p.Liquidity,
			p.Amount0,
			p.Amount1,
			p.Fees0,
			p.Fees1,
			p.InRange,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range positions {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadState returns the last cycle timestamp for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var ts uint64
	row := s.pool.QueryRow(ctx, `SELECT last_cycle_ts FROM rebalancer_state WHERE name=$1`, name)
	if err := row.Scan(&ts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return ts, true, nil
}

// SaveState upserts the last cycle timestamp for a name.
func (s *Store) SaveState(ctx context.Context, name string, ts uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO rebalancer_state (name, last_cycle_ts, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_cycle_ts = EXCLUDED.last_cycle_ts, updated_at = now()
	`, name, ts)
	return err
}
