package storage

import (
	"context"

	"rangekeeper/internal/model"
)

// EvaluationSink persists the decision artifacts produced by an evaluation
// cycle.
type EvaluationSink interface {
	SaveEvaluations(ctx context.Context, evaluations []model.RebalanceEvaluation) error
}

// PositionSink persists per-cycle position snapshots.
type PositionSink interface {
	SavePositions(ctx context.Context, positions []model.PoolPosition) error
}
