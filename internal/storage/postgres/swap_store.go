package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"token-flow-lab/internal/domain"
	"token-flow-lab/internal/storage"
)

// SwapStore keeps swaps in the swaps table, unique on (tx_hash, event_index).
type SwapStore struct {
	pool *Pool
}

// NewSwapStore creates a SwapStore on pool.
func NewSwapStore(pool *Pool) *SwapStore {
	return &SwapStore{pool: pool}
}

var _ storage.SwapStore = (*SwapStore)(nil)

// swapColumns is the write order shared by Insert and the COPY in InsertBulk.
var swapColumns = []string{
	"tx_hash", "event_index", "timestamp", "token_in", "token_out", "amount_in", "amount_out", "amount_usd",
}

func swapValues(s *domain.Swap) []any {
	return []any{s.TxHash, s.EventIndex, s.Timestamp, s.TokenIn, s.TokenOut, s.AmountIn, s.AmountOut, s.AmountUSD}
}

// Insert adds one swap. Returns ErrDuplicateKey if (tx_hash, event_index) exists.
func (s *SwapStore) Insert(ctx context.Context, swap *domain.Swap) (err error) {
	if err := storage.ValidateSwap(swap); err != nil {
		return err
	}
	defer func(start time.Time) { observe("insert_swap", start, err) }(time.Now())

	_, err = s.pool.Exec(ctx, `
		INSERT INTO swaps (tx_hash, event_index, timestamp, token_in, token_out, amount_in, amount_out, amount_usd)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		swapValues(swap)...,
	)
	return translate("insert swap", err)
}

// InsertBulk copies swaps in one transaction. Any existing key aborts the
// whole batch with ErrDuplicateKey.
func (s *SwapStore) InsertBulk(ctx context.Context, swaps []*domain.Swap) (err error) {
	if len(swaps) == 0 {
		return nil
	}
	for _, swap := range swaps {
		if err := storage.ValidateSwap(swap); err != nil {
			return err
		}
	}
	defer func(start time.Time) { observe("insert_swaps_bulk", start, err) }(time.Now())

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	src := pgx.CopyFromSlice(len(swaps), func(i int) ([]any, error) {
		return swapValues(swaps[i]), nil
	})
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"swaps"}, swapColumns, src); err != nil {
		return translate("copy swaps", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByTokenSince returns swaps on either side of token at or after since,
// in insertion order within a timestamp.
func (s *SwapStore) GetByTokenSince(ctx context.Context, token string, since int64) (_ []*domain.Swap, err error) {
	defer func(start time.Time) { observe("get_swaps_by_token", start, err) }(time.Now())

	rows, err := s.pool.Query(ctx, `
		SELECT id, tx_hash, event_index, timestamp, token_in, token_out, amount_in, amount_out, amount_usd, created_at
		FROM swaps
		WHERE (token_in = $1 OR token_out = $1) AND timestamp >= $2
		ORDER BY timestamp ASC, id ASC`,
		token, since,
	)
	if err != nil {
		return nil, fmt.Errorf("get swaps by token: %w", err)
	}

	swaps, err := pgx.CollectRows(rows, scanSwap)
	if err != nil {
		return nil, fmt.Errorf("scan swaps: %w", err)
	}
	return swaps, nil
}

func scanSwap(row pgx.CollectableRow) (*domain.Swap, error) {
	var s domain.Swap
	err := row.Scan(
		&s.ID, &s.TxHash, &s.EventIndex, &s.Timestamp,
		&s.TokenIn, &s.TokenOut, &s.AmountIn, &s.AmountOut, &s.AmountUSD,
		&s.CreatedAt,
	)
	return &s, err
}
