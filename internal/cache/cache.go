// Package cache implements the DB-first / on-chain-fallback / write-through
// lookup caches for token metadata, router factories, and pool addresses.
//
// The backing store is authoritative across restarts, and "no chain-side
// binding" is a legal cached answer (nil). Writes are idempotent upserts so
// replicas racing on the same key never fail.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/swapscan/backend/internal/chain"
	"github.com/swapscan/backend/internal/config"
	"github.com/swapscan/backend/internal/decode"
	"github.com/swapscan/backend/internal/metrics"
	"github.com/swapscan/backend/internal/store"
)

// Fallback values for tokens whose metadata calls revert. 18 decimals is
// the overwhelmingly common case.
const (
	defaultTokenName     = "Unknown"
	defaultTokenSymbol   = "UNKNOWN"
	defaultTokenDecimals = uint8(18)

	// Historical artifact carried for schema compatibility: V2 pools are
	// persisted with this fee even though V2 has no per-pool fee tier.
	defaultPoolFee = "2500"

	poolLookupTimeout = 15 * time.Second
)

// ErrNotAnAddress rejects malformed input before any I/O happens.
var ErrNotAnAddress = errors.New("not a valid address")

// Caches bundles the three lookup caches over one store and one reader.
type Caches struct {
	chainID int64
	store   *store.Store
	reader  *chain.Reader
}

// New builds the cache layer for one chain.
func New(chainID int64, st *store.Store, reader *chain.Reader) *Caches {
	return &Caches{chainID: chainID, store: st, reader: reader}
}

// GetToken resolves ERC-20 metadata: DB first, then name()/symbol()/
// decimals() in parallel with per-field defaults, write-through.
func (c *Caches) GetToken(ctx context.Context, address string) (*store.Token, error) {
	if !config.IsAddress(address) {
		return nil, fmt.Errorf("%w: %q", ErrNotAnAddress, address)
	}
	address = config.NormalizeAddress(address)

	if tok, err := c.store.GetToken(ctx, c.chainID, address); err != nil {
		slog.Warn("token cache read failed, falling through to chain", "token", address, "error", err)
	} else if tok != nil {
		metrics.CacheLookups.WithLabelValues("token", "db").Inc()
		return tok, nil
	}

	tok := &store.Token{
		ChainID:  c.chainID,
		Address:  address,
		Name:     defaultTokenName,
		Symbol:   defaultTokenSymbol,
		Decimals: defaultTokenDecimals,
	}
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		if name, err := c.reader.TokenName(ctx, address); err == nil {
			tok.Name = name
		}
	}()
	go func() {
		defer wg.Done()
		if symbol, err := c.reader.TokenSymbol(ctx, address); err == nil {
			tok.Symbol = symbol
		}
	}()
	go func() {
		defer wg.Done()
		if decimals, err := c.reader.TokenDecimals(ctx, address); err == nil {
			tok.Decimals = decimals
		}
	}()
	wg.Wait()
	metrics.CacheLookups.WithLabelValues("token", "chain").Inc()

	if err := c.store.UpsertToken(ctx, tok); err != nil {
		// Write-through failure is not fatal to the lookup.
		slog.Warn("token cache write-through failed", "token", address, "error", err)
	}
	return tok, nil
}

// GetFactory resolves a router's factory and wrapped-native binding.
func (c *Caches) GetFactory(ctx context.Context, router string, family decode.Family) (*store.Factory, error) {
	if !config.IsAddress(router) {
		return nil, fmt.Errorf("%w: %q", ErrNotAnAddress, router)
	}
	router = config.NormalizeAddress(router)

	if f, err := c.store.GetFactory(ctx, c.chainID, router); err != nil {
		slog.Warn("factory cache read failed, falling through to chain", "router", router, "error", err)
	} else if f != nil {
		metrics.CacheLookups.WithLabelValues("factory", "db").Inc()
		return f, nil
	}

	factory, err := c.reader.FactoryOf(ctx, router)
	if err != nil {
		return nil, fmt.Errorf("factory() on %s: %w", router, err)
	}
	wrapped, err := c.reader.WrappedNative(ctx, router, family == decode.FamilyV3)
	if err != nil {
		return nil, fmt.Errorf("wrapped native on %s: %w", router, err)
	}
	metrics.CacheLookups.WithLabelValues("factory", "chain").Inc()

	f := &store.Factory{
		ChainID:       c.chainID,
		Router:        router,
		Factory:       factory,
		WrappedNative: wrapped,
		RouterFamily:  string(family),
	}
	if err := c.store.UpsertFactory(ctx, f); err != nil {
		slog.Warn("factory cache write-through failed", "router", router, "error", err)
	}
	return f, nil
}

// GetPools resolves the pool for a token pair through the router's factory.
// Returns (nil, nil) when the pool is known to be absent. The factory call
// runs under its own 15 s timeout; on expiry the DB search by token pair is
// the fallback.
func (c *Caches) GetPools(ctx context.Context, tokenA, tokenB, router string, family decode.Family, fee *big.Int) (*store.Pool, error) {
	if !config.IsAddress(tokenA) || !config.IsAddress(tokenB) {
		return nil, fmt.Errorf("%w: %q/%q", ErrNotAnAddress, tokenA, tokenB)
	}
	tokenA = config.NormalizeAddress(tokenA)
	tokenB = config.NormalizeAddress(tokenB)

	// Warm path: a cached row for this pair (and tier, for V3) means the
	// factory is never asked again. A cached zero address is absence.
	feeFilter := ""
	if family == decode.FamilyV3 && fee != nil {
		feeFilter = fee.String()
	}
	if p, err := c.store.FindPoolByTokens(ctx, c.chainID, tokenA, tokenB, string(family), feeFilter); err != nil {
		slog.Warn("pool cache read failed, falling through to chain", "tokenA", tokenA, "tokenB", tokenB, "error", err)
	} else if p != nil {
		if config.IsZeroAddress(p.Address) {
			metrics.CacheLookups.WithLabelValues("pool", "miss").Inc()
			return nil, nil
		}
		metrics.CacheLookups.WithLabelValues("pool", "db").Inc()
		return p, nil
	}

	factory, err := c.GetFactory(ctx, router, family)
	if err != nil {
		return nil, err
	}

	lookupCtx, cancel := context.WithTimeout(ctx, poolLookupTimeout)
	defer cancel()

	var poolAddr string
	if family == decode.FamilyV3 {
		tier := fee
		if tier == nil {
			tier = big.NewInt(3000)
		}
		poolAddr, err = c.reader.GetPool(lookupCtx, factory.Factory, tokenA, tokenB, tier)
	} else {
		poolAddr, err = c.reader.GetPair(lookupCtx, factory.Factory, tokenA, tokenB)
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || lookupCtx.Err() != nil {
			slog.Warn("factory pool lookup timed out, falling back to cache search",
				"tokenA", tokenA, "tokenB", tokenB, "family", family)
			p, dbErr := c.store.FindPoolByTokens(ctx, c.chainID, tokenA, tokenB, string(family), "")
			if dbErr != nil {
				return nil, dbErr
			}
			if p == nil || config.IsZeroAddress(p.Address) {
				metrics.CacheLookups.WithLabelValues("pool", "miss").Inc()
				return nil, nil
			}
			metrics.CacheLookups.WithLabelValues("pool", "db").Inc()
			return p, nil
		}
		return nil, fmt.Errorf("pool lookup %s/%s: %w", tokenA, tokenB, err)
	}

	// The zero address means the factory never deployed this pool.
	if config.IsZeroAddress(poolAddr) {
		metrics.CacheLookups.WithLabelValues("pool", "miss").Inc()
		return nil, nil
	}
	metrics.CacheLookups.WithLabelValues("pool", "chain").Inc()

	feeStr := defaultPoolFee
	if fee != nil {
		feeStr = fee.String()
	}
	p := &store.Pool{
		ChainID:      c.chainID,
		Address:      poolAddr,
		Token0:       tokenA,
		Token1:       tokenB,
		Exists:       true,
		RouterFamily: string(family),
		Fee:          feeStr,
	}
	if err := c.store.UpsertPool(ctx, p); err != nil {
		slog.Warn("pool cache write-through failed", "pool", poolAddr, "error", err)
	}
	return p, nil
}
