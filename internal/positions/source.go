// Package positions supplies concentrated-liquidity positions to the
// rebalancer: a source interface, an on-chain fetcher reading the NFT
// position manager, and a strict decoder for externally supplied payloads.
package positions

import (
	"context"

	"rangekeeper/internal/model"
)

// Source yields the active positions for a wallet and the current state of
// the pools they sit in.
type Source interface {
	FetchActivePositions(ctx context.Context, wallet string) ([]model.PoolPosition, error)
	PoolState(ctx context.Context, poolAddress string) (model.PoolState, error)
}
