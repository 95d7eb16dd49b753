package clickhouse

import (
	"context"
	"fmt"
	"time"

	"token-flow-lab/internal/domain"
	"token-flow-lab/internal/storage"
)

// SwapStore implements storage.SwapStore using ClickHouse.
type SwapStore struct {
	conn *Conn
	now  func() time.Time
}

// NewSwapStore creates a new SwapStore.
func NewSwapStore(conn *Conn) *SwapStore {
	return &SwapStore{conn: conn, now: time.Now}
}

// Compile-time interface check.
var _ storage.SwapStore = (*SwapStore)(nil)

// Insert adds a new swap. Returns ErrDuplicateKey if (tx_hash, event_index) exists.
func (s *SwapStore) Insert(ctx context.Context, swap *domain.Swap) error {
	return s.InsertBulk(ctx, []*domain.Swap{swap})
}

// InsertBulk adds multiple swaps. Fails entire batch on duplicate.
// MergeTree does not enforce uniqueness, so duplicates are checked before the batch is sent.
func (s *SwapStore) InsertBulk(ctx context.Context, swaps []*domain.Swap) (err error) {
	if len(swaps) == 0 {
		return nil
	}

	type key struct {
		txHash     string
		eventIndex int
	}
	seen := make(map[key]struct{}, len(swaps))
	hashes := make([]string, 0, len(swaps))
	for _, sw := range swaps {
		if err := storage.ValidateSwap(sw); err != nil {
			return err
		}
		k := key{sw.TxHash, sw.EventIndex}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
		hashes = append(hashes, sw.TxHash)
	}

	defer func(start time.Time) { observe("insert_swaps", start, err) }(time.Now())

	existing, err := s.existingKeys(ctx, hashes)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	for _, sw := range swaps {
		if _, ok := existing[fmt.Sprintf("%s|%d", sw.TxHash, sw.EventIndex)]; ok {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO swaps (
			tx_hash, event_index, timestamp, token_in, token_out, amount_in, amount_out, amount_usd, created_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	created := s.now().UnixMilli()
	for _, sw := range swaps {
		err = batch.Append(
			sw.TxHash, uint32(sw.EventIndex), sw.Timestamp, sw.TokenIn, sw.TokenOut,
			sw.AmountIn, sw.AmountOut, sw.AmountUSD, created,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// existingKeys returns "tx|index" keys already stored for the given tx hashes.
func (s *SwapStore) existingKeys(ctx context.Context, hashes []string) (map[string]struct{}, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT tx_hash, event_index FROM swaps FINAL
		WHERE tx_hash IN (?)
	`, hashes)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make(map[string]struct{})
	for rows.Next() {
		var tx string
		var idx uint32
		if err := rows.Scan(&tx, &idx); err != nil {
			return nil, err
		}
		keys[fmt.Sprintf("%s|%d", tx, idx)] = struct{}{}
	}
	return keys, rows.Err()
}

// GetByTokenSince retrieves swaps involving token since the given timestamp, ordered by timestamp ASC.
func (s *SwapStore) GetByTokenSince(ctx context.Context, token string, since int64) (_ []*domain.Swap, err error) {
	defer func(start time.Time) { observe("get_swaps_by_token", start, err) }(time.Now())

	query := `
		SELECT tx_hash, event_index, timestamp, token_in, token_out, amount_in, amount_out, amount_usd, created_at
		FROM swaps FINAL
		WHERE (token_in = ? OR token_out = ?) AND timestamp >= ?
		ORDER BY timestamp ASC, tx_hash ASC, event_index ASC
	`

	rows, err := s.conn.Query(ctx, query, token, token, since)
	if err != nil {
		return nil, fmt.Errorf("query by token: %w", err)
	}
	defer rows.Close()

	return scanSwaps(rows)
}

// scanSwaps scans multiple rows.
func scanSwaps(rows chRows) ([]*domain.Swap, error) {
	var swaps []*domain.Swap

	for rows.Next() {
		var sw domain.Swap
		var eventIndex uint32

		err := rows.Scan(
			&sw.TxHash, &eventIndex, &sw.Timestamp, &sw.TokenIn, &sw.TokenOut,
			&sw.AmountIn, &sw.AmountOut, &sw.AmountUSD, &sw.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan swap row: %w", err)
		}

		sw.EventIndex = int(eventIndex)
		swaps = append(swaps, &sw)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate swap rows: %w", err)
	}

	return swaps, nil
}
