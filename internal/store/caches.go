package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/swapscan/backend/internal/config"
)

// GetToken returns the cached token metadata, or (nil, nil) on a miss.
func (s *Store) GetToken(ctx context.Context, chainID int64, address string) (*Token, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT chain_id, token_address, name, symbol, decimals
		FROM tokens WHERE chain_id = $1 AND token_address = $2`,
		chainID, config.NormalizeAddress(address))

	var t Token
	if err := row.Scan(&t.ChainID, &t.Address, &t.Name, &t.Symbol, &t.Decimals); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get token: %w", err)
	}
	return &t, nil
}

// UpsertToken writes token metadata idempotently.
func (s *Store) UpsertToken(ctx context.Context, t *Token) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tokens (chain_id, token_address, name, symbol, decimals)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (chain_id, token_address)
		DO UPDATE SET name = EXCLUDED.name, symbol = EXCLUDED.symbol,
		              decimals = EXCLUDED.decimals, updated_at = now()`,
		t.ChainID, config.NormalizeAddress(t.Address), t.Name, t.Symbol, t.Decimals)
	if err != nil {
		return fmt.Errorf("upsert token %s: %w", t.Address, err)
	}
	return nil
}

// GetFactory returns the cached factory binding for a router, or (nil, nil).
func (s *Store) GetFactory(ctx context.Context, chainID int64, router string) (*Factory, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT chain_id, router, factory_address, wrapped_native_address, router_family
		FROM factory_addresses WHERE chain_id = $1 AND router = $2`,
		chainID, config.NormalizeAddress(router))

	var f Factory
	if err := row.Scan(&f.ChainID, &f.Router, &f.Factory, &f.WrappedNative, &f.RouterFamily); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get factory: %w", err)
	}
	return &f, nil
}

// UpsertFactory writes a router→factory binding idempotently.
func (s *Store) UpsertFactory(ctx context.Context, f *Factory) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO factory_addresses (chain_id, router, factory_address, wrapped_native_address, router_family)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (chain_id, router)
		DO UPDATE SET factory_address = EXCLUDED.factory_address,
		              wrapped_native_address = EXCLUDED.wrapped_native_address,
		              router_family = EXCLUDED.router_family, updated_at = now()`,
		f.ChainID, config.NormalizeAddress(f.Router), config.NormalizeAddress(f.Factory),
		config.NormalizeAddress(f.WrappedNative), f.RouterFamily)
	if err != nil {
		return fmt.Errorf("upsert factory %s: %w", f.Router, err)
	}
	return nil
}

// GetPool returns a pool row by address, or (nil, nil) on a miss.
func (s *Store) GetPool(ctx context.Context, chainID int64, address string) (*Pool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT chain_id, pool_address, token0, token1, exists_onchain, router_family, fee
		FROM pools WHERE chain_id = $1 AND pool_address = $2`,
		chainID, config.NormalizeAddress(address))
	return scanPool(row)
}

// FindPoolByTokens searches the cache by unordered token pair and family.
// A non-empty fee narrows the search to one V3 tier. This is both the warm
// path of the pool cache and the fallback when the factory lookup times out.
func (s *Store) FindPoolByTokens(ctx context.Context, chainID int64, tokenA, tokenB, family, fee string) (*Pool, error) {
	a, b := config.NormalizeAddress(tokenA), config.NormalizeAddress(tokenB)
	query := `
		SELECT chain_id, pool_address, token0, token1, exists_onchain, router_family, fee
		FROM pools
		WHERE chain_id = $1 AND router_family = $4
		  AND ((token0 = $2 AND token1 = $3) OR (token0 = $3 AND token1 = $2))`
	args := []interface{}{chainID, a, b, family}
	if fee != "" {
		query += ` AND fee = $5`
		args = append(args, fee)
	}
	query += ` ORDER BY updated_at DESC LIMIT 1`
	row := s.db.QueryRowContext(ctx, query, args...)
	return scanPool(row)
}

func scanPool(row *sql.Row) (*Pool, error) {
	var p Pool
	if err := row.Scan(&p.ChainID, &p.Address, &p.Token0, &p.Token1, &p.Exists, &p.RouterFamily, &p.Fee); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan pool: %w", err)
	}
	return &p, nil
}

// UpsertPool writes a pool row idempotently. The zero address is never
// persisted; absence is memoized with Exists=false on the real key only by
// callers that have one.
func (s *Store) UpsertPool(ctx context.Context, p *Pool) error {
	if config.IsZeroAddress(p.Address) {
		return fmt.Errorf("refusing to persist zero-address pool")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pools (chain_id, pool_address, token0, token1, exists_onchain, router_family, fee)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (chain_id, pool_address)
		DO UPDATE SET token0 = EXCLUDED.token0, token1 = EXCLUDED.token1,
		              exists_onchain = EXCLUDED.exists_onchain,
		              router_family = EXCLUDED.router_family,
		              fee = EXCLUDED.fee, updated_at = now()`,
		p.ChainID, config.NormalizeAddress(p.Address), config.NormalizeAddress(p.Token0),
		config.NormalizeAddress(p.Token1), p.Exists, p.RouterFamily, p.Fee)
	if err != nil {
		return fmt.Errorf("upsert pool %s: %w", p.Address, err)
	}
	return nil
}
