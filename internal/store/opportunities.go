package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/swapscan/backend/internal/config"
)

const opportunityColumns = `
	id, chain_id, tx_hash, router, router_family, token_in, token_out,
	amount_in, amount_out_min, amount_in_max, fee, pool_address, method,
	recipient, deadline, block_number, status, detected_at, processed_at, metadata`

// UpsertOpportunity writes a verdict keyed on (chain_id, tx_hash).
// Re-observation of the same transaction replaces the previous row's
// mutable fields; identical inputs produce byte-equal metadata.
func (s *Store) UpsertOpportunity(ctx context.Context, o *Opportunity) error {
	meta, err := json.Marshal(o.Metadata)
	if err != nil {
		return fmt.Errorf("marshal opportunity metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO opportunities (
			chain_id, tx_hash, router, router_family, token_in, token_out,
			amount_in, amount_out_min, amount_in_max, fee, pool_address,
			method, recipient, deadline, block_number, status, metadata)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		ON CONFLICT (chain_id, tx_hash)
		DO UPDATE SET router = EXCLUDED.router,
		              router_family = EXCLUDED.router_family,
		              token_in = EXCLUDED.token_in,
		              token_out = EXCLUDED.token_out,
		              amount_in = EXCLUDED.amount_in,
		              amount_out_min = EXCLUDED.amount_out_min,
		              amount_in_max = EXCLUDED.amount_in_max,
		              fee = EXCLUDED.fee,
		              pool_address = EXCLUDED.pool_address,
		              method = EXCLUDED.method,
		              recipient = EXCLUDED.recipient,
		              deadline = EXCLUDED.deadline,
		              block_number = EXCLUDED.block_number,
		              status = EXCLUDED.status,
		              metadata = EXCLUDED.metadata,
		              processed_at = now()`,
		o.ChainID, o.TxHash,
		config.NormalizeAddress(o.Router), o.RouterFamily,
		config.NormalizeAddress(o.TokenIn), config.NormalizeAddress(o.TokenOut),
		o.AmountIn, o.AmountOutMin, o.AmountInMax, o.Fee,
		config.NormalizeAddress(o.PoolAddress), o.Method,
		config.NormalizeAddress(o.Recipient), o.Deadline,
		o.BlockNumber, o.Status, meta)
	if err != nil {
		return fmt.Errorf("upsert opportunity %s: %w", o.TxHash, err)
	}
	return nil
}

// GetOpportunity fetches one row by transaction hash, (nil, nil) on miss.
func (s *Store) GetOpportunity(ctx context.Context, chainID int64, txHash string) (*Opportunity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+opportunityColumns+` FROM opportunities WHERE chain_id = $1 AND tx_hash = $2`,
		chainID, txHash)
	o, err := scanOpportunity(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return o, err
}

// ListOpportunities returns recent rows, optionally filtered by status.
func (s *Store) ListOpportunities(ctx context.Context, chainID int64, status string, limit int) ([]*Opportunity, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := `SELECT ` + opportunityColumns + ` FROM opportunities WHERE chain_id = $1`
	args := []interface{}{chainID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += fmt.Sprintf(` ORDER BY processed_at DESC LIMIT %d`, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list opportunities: %w", err)
	}
	defer rows.Close()

	var out []*Opportunity
	for rows.Next() {
		o, err := scanOpportunity(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// ListDetected returns id, deadline metadata pairs for the cleanup loop's
// in-process deadline sweep.
func (s *Store) ListDetected(ctx context.Context, chainID int64) ([]*Opportunity, error) {
	return s.ListOpportunities(ctx, chainID, StatusDetected, 500)
}

// DeleteByStatus removes every row with the given status and returns the
// count.
func (s *Store) DeleteByStatus(ctx context.Context, chainID int64, status string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM opportunities WHERE chain_id = $1 AND status = $2`, chainID, status)
	if err != nil {
		return 0, fmt.Errorf("delete %s opportunities: %w", status, err)
	}
	return res.RowsAffected()
}

// DeleteDetectedFlaggedExpired removes detected rows whose metadata carries
// isExpired=true.
func (s *Store) DeleteDetectedFlaggedExpired(ctx context.Context, chainID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM opportunities
		WHERE chain_id = $1 AND status = $2 AND metadata->>'isExpired' = 'true'`,
		chainID, StatusDetected)
	if err != nil {
		return 0, fmt.Errorf("delete flagged-expired opportunities: %w", err)
	}
	return res.RowsAffected()
}

// DeleteByIDs removes rows by primary key.
func (s *Store) DeleteByIDs(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM opportunities WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("delete opportunities by id: %w", err)
	}
	return res.RowsAffected()
}

func scanOpportunity(scan func(...interface{}) error) (*Opportunity, error) {
	var (
		o    Opportunity
		meta []byte
	)
	err := scan(&o.ID, &o.ChainID, &o.TxHash, &o.Router, &o.RouterFamily,
		&o.TokenIn, &o.TokenOut, &o.AmountIn, &o.AmountOutMin, &o.AmountInMax,
		&o.Fee, &o.PoolAddress, &o.Method, &o.Recipient, &o.Deadline,
		&o.BlockNumber, &o.Status, &o.DetectedAt, &o.ProcessedAt, &meta)
	if err != nil {
		return nil, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &o.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal opportunity metadata: %w", err)
		}
	}
	return &o, nil
}
