// Package fees aggregates the dynamic fees of every pool a route crosses.
package fees

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jellydator/ttlcache/v3"
	"go.uber.org/zap"

	"dex-swap/pkg/amount"
	"dex-swap/pkg/client"
	"dex-swap/pkg/types"
)

// Source returns the current fee of a single pool in basis points
type Source interface {
	GetDynamicFee(ctx context.Context, req client.FeeRequest) (uint32, error)
}

// HopFee is the fee of one pool in a route
type HopFee struct {
	Hop    types.PoolHop
	FeeBps uint32
	Cached bool
}

type cacheKey struct {
	token0  common.Address
	token1  common.Address
	chainID uint64
}

// Aggregator resolves fees for whole routes. A route either gets a fee for every
// hop or an error; partial results are never returned or cached.
type Aggregator struct {
	source  Source
	chainID uint64
	cache   *ttlcache.Cache[cacheKey, uint32]
	logger  *zap.Logger
}

// NewAggregator creates a new fee aggregator whose cache entries live for ttl
func NewAggregator(source Source, chainID uint64, ttl time.Duration, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	cache := ttlcache.New[cacheKey, uint32](
		ttlcache.WithTTL[cacheKey, uint32](ttl),
		ttlcache.WithDisableTouchOnHit[cacheKey, uint32](),
	)
	go cache.Start()

	return &Aggregator{
		source:  source,
		chainID: chainID,
		cache:   cache,
		logger:  logger,
	}
}

// Stop stops the cache's expiry loop
func (a *Aggregator) Stop() {
	a.cache.Stop()
}

// key identifies a pool by its sorted token pair, so both swap directions share an entry
func (a *Aggregator) key(hop types.PoolHop) cacheKey {
	t0, t1 := hop.Token0, hop.Token1
	if bytes.Compare(t0.Bytes(), t1.Bytes()) > 0 {
		t0, t1 = t1, t0
	}
	return cacheKey{token0: t0, token1: t1, chainID: a.chainID}
}

// ResolveFees returns one fee per hop in route order
func (a *Aggregator) ResolveFees(ctx context.Context, route types.SwapRoute) ([]HopFee, error) {
	if len(route.Hops) == 0 {
		return nil, types.ErrEmptyRoute
	}

	result := make([]HopFee, 0, len(route.Hops))
	fetched := make(map[cacheKey]uint32)

	for i, hop := range route.Hops {
		key := a.key(hop)

		if item := a.cache.Get(key); item != nil {
			result = append(result, HopFee{Hop: hop, FeeBps: item.Value(), Cached: true})
			continue
		}
		if fee, ok := fetched[key]; ok {
			result = append(result, HopFee{Hop: hop, FeeBps: fee})
			continue
		}

		fee, err := a.source.GetDynamicFee(ctx, client.FeeRequest{Token0: hop.Token0, Token1: hop.Token1})
		if err != nil {
			a.logger.Debug("fee lookup failed",
				zap.Int("hop", i),
				zap.String("pool", hop.Label()),
				zap.Error(err))
			return nil, fmt.Errorf("fee for hop %d (%s): %w", i, hop.Label(), err)
		}

		fetched[key] = fee
		result = append(result, HopFee{Hop: hop, FeeBps: fee})
	}

	for key, fee := range fetched {
		a.cache.Set(key, fee, ttlcache.DefaultTTL)
	}

	return result, nil
}

// Cached returns the cached fee of a hop, if any
func (a *Aggregator) Cached(hop types.PoolHop) (uint32, bool) {
	item := a.cache.Get(a.key(hop))
	if item == nil {
		return 0, false
	}
	return item.Value(), true
}

// Invalidate drops every cached fee
func (a *Aggregator) Invalidate() {
	a.cache.DeleteAll()
}

// EffectiveFeeBps composes per-hop fees multiplicatively:
// 10000 - prod(10000 - f_i) / 10000^(n-1)
func EffectiveFeeBps(fees []HopFee) uint32 {
	if len(fees) == 0 {
		return 0
	}

	kept := big.NewInt(1)
	for _, f := range fees {
		kept.Mul(kept, big.NewInt(int64(amount.BpsDenominator)-int64(f.FeeBps)))
	}
	scale := new(big.Int).Exp(big.NewInt(amount.BpsDenominator), big.NewInt(int64(len(fees)-1)), nil)
	kept.Quo(kept, scale)

	if kept.Sign() < 0 {
		return amount.BpsDenominator
	}
	return uint32(amount.BpsDenominator - kept.Int64())
}
