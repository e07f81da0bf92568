package positions

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"rangekeeper/internal/chain"
	"rangekeeper/internal/liquidity"
	"rangekeeper/internal/model"
	"rangekeeper/internal/tickmath"
)

// ChainConfig holds runtime settings for the on-chain source.
type ChainConfig struct {
	PositionManager string
	Factory         string
	MaxRetries      int
	RetryBackoff    time.Duration
}

// ChainSource reads positions from the NFT position manager and pool state
// directly from pool contracts. Amounts are derived from liquidity and the
// current sqrt price rather than trusted from any off-chain index.
type ChainSource struct {
	cfg     ChainConfig
	client  *chain.Client
	manager common.Address
	factory common.Address
	logger  *zap.Logger

	mu        sync.RWMutex
	poolCache map[common.Address]poolMeta
	pairCache map[string]common.Address
	metaCache map[common.Address]model.TokenMeta
}

type poolMeta struct {
	token0      common.Address
	token1      common.Address
	fee         uint32
	tickSpacing int32
}

// NewChainSource builds a ChainSource.
func NewChainSource(cfg ChainConfig, client *chain.Client, logger *zap.Logger) (*ChainSource, error) {
	if client == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	if !common.IsHexAddress(cfg.PositionManager) {
		return nil, fmt.Errorf("invalid position manager address: %s", cfg.PositionManager)
	}
	if !common.IsHexAddress(cfg.Factory) {
		return nil, fmt.Errorf("invalid factory address: %s", cfg.Factory)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChainSource{
		cfg:       cfg,
		client:    client,
		manager:   common.HexToAddress(cfg.PositionManager),
		factory:   common.HexToAddress(cfg.Factory),
		logger:    logger,
		poolCache: make(map[common.Address]poolMeta),
		pairCache: make(map[string]common.Address),
		metaCache: make(map[common.Address]model.TokenMeta),
	}, nil
}

// FetchActivePositions enumerates the wallet's position NFTs and returns the
// ones with non-zero liquidity, with amounts computed from current pool state.
func (s *ChainSource) FetchActivePositions(ctx context.Context, wallet string) ([]model.PoolPosition, error) {
	if !common.IsHexAddress(wallet) {
		return nil, fmt.Errorf("invalid wallet address: %s", wallet)
	}
	owner := common.HexToAddress(wallet)

	managerABI, err := PositionManagerABI()
	if err != nil {
		return nil, fmt.Errorf("parse position manager abi: %w", err)
	}

	values, err := s.callWithRetry(ctx, s.manager, managerABI, "balanceOf", owner)
	if err != nil {
		return nil, fmt.Errorf("balanceOf: %w", err)
	}
	balance, err := asBigInt(values[0])
	if err != nil {
		return nil, fmt.Errorf("balanceOf: %w", err)
	}

	positions := make([]model.PoolPosition, 0, balance.Int64())
	for i := int64(0); i < balance.Int64(); i++ {
		values, err := s.callWithRetry(ctx, s.manager, managerABI, "tokenOfOwnerByIndex", owner, big.NewInt(i))
		if err != nil {
			return nil, fmt.Errorf("tokenOfOwnerByIndex %d: %w", i, err)
		}
		tokenID, err := asBigInt(values[0])
		if err != nil {
			return nil, fmt.Errorf("tokenOfOwnerByIndex %d: %w", i, err)
		}

		position, active, err := s.fetchPosition(ctx, managerABI, tokenID)
		if err != nil {
			return nil, fmt.Errorf("position %s: %w", tokenID, err)
		}
		if active {
			positions = append(positions, position)
		}
	}

	return positions, nil
}

func (s *ChainSource) fetchPosition(ctx context.Context, managerABI abi.ABI, tokenID *big.Int) (model.PoolPosition, bool, error) {
	values, err := s.callWithRetry(ctx, s.manager, managerABI, "positions", tokenID)
	if err != nil {
		return model.PoolPosition{}, false, err
	}
	if len(values) != 11 {
		return model.PoolPosition{}, false, fmt.Errorf("positions return size %d", len(values))
	}

	token0, err := asAddress(values[2])
	if err != nil {
		return model.PoolPosition{}, false, fmt.Errorf("token0: %w", err)
	}
	token1, err := asAddress(values[3])
	if err != nil {
		return model.PoolPosition{}, false, fmt.Errorf("token1: %w", err)
	}
	tickLower, err := asInt24(values[4])
	if err != nil {
		return model.PoolPosition{}, false, fmt.Errorf("tickLower: %w", err)
	}
	tickUpper, err := asInt24(values[5])
	if err != nil {
		return model.PoolPosition{}, false, fmt.Errorf("tickUpper: %w", err)
	}
	liquidityRaw, err := asBigInt(values[6])
	if err != nil {
		return model.PoolPosition{}, false, fmt.Errorf("liquidity: %w", err)
	}
	owed0, err := asBigInt(values[9])
	if err != nil {
		return model.PoolPosition{}, false, fmt.Errorf("tokensOwed0: %w", err)
	}
	owed1, err := asBigInt(values[10])
	if err != nil {
		return model.PoolPosition{}, false, fmt.Errorf("tokensOwed1: %w", err)
	}

	if liquidityRaw.Sign() == 0 {
		return model.PoolPosition{}, false, nil
	}

	pool, err := s.getPoolAddress(ctx, token0, token1)
	if err != nil {
		return model.PoolPosition{}, false, fmt.Errorf("resolve pool: %w", err)
	}

	position := model.PoolPosition{
		PositionID:  tokenID.String(),
		PoolAddress: pool.Hex(),
		Token0:      token0.Hex(),
		Token1:      token1.Hex(),
		TickLower:   int(tickLower),
		TickUpper:   int(tickUpper),
		Liquidity:   bigToFloat(liquidityRaw),
		Fees0:       bigToFloat(owed0),
		Fees1:       bigToFloat(owed1),
	}
	return position, true, nil
}

// EnrichWithPoolState fills the derived per-cycle fields (amounts, in-range
// flag) of a position from its pool's current state. Out-of-range positions
// hold their value single-sided, so the clamped decomposition is used rather
// than the primitive conversions.
func EnrichWithPoolState(position *model.PoolPosition, pool model.PoolState) error {
	sqrtLower := liquidity.TickToSqrtPrice(position.TickLower)
	sqrtUpper := liquidity.TickToSqrtPrice(position.TickUpper)

	amounts, err := liquidity.AmountsFromLiquidity(position.Liquidity, pool.SqrtPrice, sqrtLower, sqrtUpper)
	if err != nil {
		return err
	}

	position.Amount0 = amounts.Amount0
	position.Amount1 = amounts.Amount1
	position.InRange = tickmath.IsInRange(pool.CurrentTick, position.TickLower, position.TickUpper)
	return nil
}

// PoolState reads the pool's current tick, sqrt price, spacing, and token
// decimals. Uniswap-style slot0 is tried first, then Algebra-style
// globalState for Camelot pools.
func (s *ChainSource) PoolState(ctx context.Context, poolAddress string) (model.PoolState, error) {
	if !common.IsHexAddress(poolAddress) {
		return model.PoolState{}, fmt.Errorf("invalid pool address: %s", poolAddress)
	}
	pool := common.HexToAddress(poolAddress)

	meta, err := s.getPoolMeta(ctx, pool)
	if err != nil {
		return model.PoolState{}, err
	}

	meta0, err := s.TokenMeta(ctx, meta.token0)
	if err != nil {
		return model.PoolState{}, fmt.Errorf("token0 metadata: %w", err)
	}
	meta1, err := s.TokenMeta(ctx, meta.token1)
	if err != nil {
		return model.PoolState{}, fmt.Errorf("token1 metadata: %w", err)
	}

	sqrtPriceX96, tick, err := s.getPriceAndTick(ctx, pool)
	if err != nil {
		return model.PoolState{}, err
	}

	poolABI, err := PoolABI()
	if err != nil {
		return model.PoolState{}, fmt.Errorf("parse pool abi: %w", err)
	}
	var liquidityValue float64
	if values, err := s.callWithRetry(ctx, pool, poolABI, "liquidity"); err == nil {
		if liq, err := asBigInt(values[0]); err == nil {
			liquidityValue = bigToFloat(liq)
		}
	} else {
		s.logger.Debug("liquidity call failed", zap.String("pool", pool.Hex()), zap.Error(err))
	}

	sqrtPrice := sqrtFromX96(sqrtPriceX96)
	currentPrice := sqrtPrice * sqrtPrice * math.Pow(10, float64(meta0.Decimals)-float64(meta1.Decimals))

	return model.PoolState{
		PoolAddress:  pool.Hex(),
		CurrentTick:  int(tick),
		SqrtPrice:    sqrtPrice,
		CurrentPrice: currentPrice,
		TickSpacing:  int(meta.tickSpacing),
		Decimals0:    meta0.Decimals,
		Decimals1:    meta1.Decimals,
		Liquidity:    liquidityValue,
		Fee:          meta.fee,
	}, nil
}

func (s *ChainSource) getPriceAndTick(ctx context.Context, pool common.Address) (*big.Int, int32, error) {
	poolABI, err := PoolABI()
	if err != nil {
		return nil, 0, fmt.Errorf("parse pool abi: %w", err)
	}

	if values, err := s.callWithRetry(ctx, pool, poolABI, "slot0"); err == nil && len(values) >= 2 {
		return decodePriceAndTick(values)
	}

	algebraABI, err := AlgebraPoolABI()
	if err != nil {
		return nil, 0, fmt.Errorf("parse algebra abi: %w", err)
	}
	values, err := s.callWithRetry(ctx, pool, algebraABI, "globalState")
	if err != nil {
		return nil, 0, fmt.Errorf("slot0/globalState: %w", err)
	}
	if len(values) < 2 {
		return nil, 0, fmt.Errorf("globalState return size %d", len(values))
	}
	return decodePriceAndTick(values)
}

func decodePriceAndTick(values []interface{}) (*big.Int, int32, error) {
	sqrtPrice, err := asBigInt(values[0])
	if err != nil {
		return nil, 0, fmt.Errorf("sqrt price: %w", err)
	}
	tick, err := asInt24(values[1])
	if err != nil {
		return nil, 0, fmt.Errorf("tick: %w", err)
	}
	return sqrtPrice, tick, nil
}

func (s *ChainSource) getPoolAddress(ctx context.Context, token0, token1 common.Address) (common.Address, error) {
	key := token0.Hex() + "/" + token1.Hex()
	s.mu.RLock()
	pool, ok := s.pairCache[key]
	s.mu.RUnlock()
	if ok {
		return pool, nil
	}

	parsed, err := FactoryABI()
	if err != nil {
		return common.Address{}, fmt.Errorf("parse factory abi: %w", err)
	}
	values, err := s.callWithRetry(ctx, s.factory, parsed, "poolByPair", token0, token1)
	if err != nil {
		return common.Address{}, err
	}
	pool, err = asAddress(values[0])
	if err != nil {
		return common.Address{}, err
	}
	if pool == (common.Address{}) {
		return common.Address{}, fmt.Errorf("no pool for pair %s/%s", token0.Hex(), token1.Hex())
	}

	s.mu.Lock()
	s.pairCache[key] = pool
	s.mu.Unlock()
	return pool, nil
}

func (s *ChainSource) getPoolMeta(ctx context.Context, pool common.Address) (poolMeta, error) {
	s.mu.RLock()
	meta, ok := s.poolCache[pool]
	s.mu.RUnlock()
	if ok {
		return meta, nil
	}

	poolABI, err := PoolABI()
	if err != nil {
		return poolMeta{}, fmt.Errorf("parse pool abi: %w", err)
	}

	values, err := s.callWithRetry(ctx, pool, poolABI, "token0")
	if err != nil {
		return poolMeta{}, err
	}
	token0, err := asAddress(values[0])
	if err != nil {
		return poolMeta{}, fmt.Errorf("token0: %w", err)
	}

	values, err = s.callWithRetry(ctx, pool, poolABI, "token1")
	if err != nil {
		return poolMeta{}, err
	}
	token1, err := asAddress(values[0])
	if err != nil {
		return poolMeta{}, fmt.Errorf("token1: %w", err)
	}

	values, err = s.callWithRetry(ctx, pool, poolABI, "tickSpacing")
	if err != nil {
		return poolMeta{}, err
	}
	tickSpacing, err := asInt24(values[0])
	if err != nil {
		return poolMeta{}, fmt.Errorf("tick spacing: %w", err)
	}

	var fee uint32
	if values, err := s.callWithRetry(ctx, pool, poolABI, "fee"); err == nil {
		if feeInt, err := asBigInt(values[0]); err == nil {
			fee = uint32(feeInt.Uint64())
		}
	} else {
		s.logger.Debug("fee call failed", zap.String("pool", pool.Hex()), zap.Error(err))
	}

	meta = poolMeta{token0: token0, token1: token1, fee: fee, tickSpacing: tickSpacing}
	s.mu.Lock()
	s.poolCache[pool] = meta
	s.mu.Unlock()
	return meta, nil
}

// TokenMeta returns cached ERC20 metadata, fetching decimals and symbol on
// first use. A missing symbol is tolerated; missing decimals are not.
func (s *ChainSource) TokenMeta(ctx context.Context, token common.Address) (model.TokenMeta, error) {
	s.mu.RLock()
	meta, ok := s.metaCache[token]
	s.mu.RUnlock()
	if ok {
		return meta, nil
	}

	tokenABI, err := ERC20ABI()
	if err != nil {
		return model.TokenMeta{}, fmt.Errorf("parse erc20 abi: %w", err)
	}
	values, err := s.callWithRetry(ctx, token, tokenABI, "decimals")
	if err != nil {
		return model.TokenMeta{}, err
	}
	decimals, err := asUint8(values[0])
	if err != nil {
		return model.TokenMeta{}, err
	}

	meta = model.TokenMeta{Address: token.Hex(), Decimals: decimals}
	if values, err := s.callWithRetry(ctx, token, tokenABI, "symbol"); err == nil && len(values) == 1 {
		if symbol, ok := values[0].(string); ok {
			meta.Symbol = symbol
		}
	} else if err != nil {
		s.logger.Debug("symbol call failed", zap.String("token", token.Hex()), zap.Error(err))
	}

	s.mu.Lock()
	s.metaCache[token] = meta
	s.mu.Unlock()
	return meta, nil
}

func (s *ChainSource) callWithRetry(ctx context.Context, target common.Address, parsed abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	var resp []byte
	err = chain.WithRetry(ctx, s.cfg.MaxRetries, s.cfg.RetryBackoff, func(ctx context.Context) error {
		var callErr error
		msg := ethereum.CallMsg{To: &target, Data: data}
		resp, callErr = s.client.CallContract(ctx, msg, nil)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}

	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return values, nil
}

func sqrtFromX96(sqrtPriceX96 *big.Int) float64 {
	q96 := new(big.Float).SetInt(new(big.Int).Lsh(big.NewInt(1), 96))
	ratio := new(big.Float).Quo(new(big.Float).SetInt(sqrtPriceX96), q96)
	out, _ := ratio.Float64()
	return out
}

func bigToFloat(value *big.Int) float64 {
	out, _ := new(big.Float).SetInt(value).Float64()
	return out
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case int8:
		return big.NewInt(int64(v)), nil
	case int16:
		return big.NewInt(int64(v)), nil
	case int32:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func asUint8(value interface{}) (uint8, error) {
	switch v := value.(type) {
	case uint8:
		return v, nil
	case *big.Int:
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unsupported uint8 type %T", value)
	}
}

func asInt24(value interface{}) (int32, error) {
	bigVal, err := asBigInt(value)
	if err != nil {
		return 0, err
	}
	min := big.NewInt(-1 << 23)
	max := big.NewInt((1 << 23) - 1)
	if bigVal.Cmp(min) < 0 || bigVal.Cmp(max) > 0 {
		return 0, fmt.Errorf("int24 overflow: %s", bigVal.String())
	}
	return int32(bigVal.Int64()), nil
}
