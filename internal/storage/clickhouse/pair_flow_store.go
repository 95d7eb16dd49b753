package clickhouse

import (
	"context"
	"fmt"
	"time"

	"token-flow-lab/internal/domain"
	"token-flow-lab/internal/storage"
)

// PairFlowStore implements storage.PairFlowStore over the token_swap_legs table,
// which the materialized views fill with one row per side of every swap.
type PairFlowStore struct {
	conn *Conn
}

// NewPairFlowStore creates a new PairFlowStore.
func NewPairFlowStore(conn *Conn) *PairFlowStore {
	return &PairFlowStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PairFlowStore = (*PairFlowStore)(nil)

// GetPairFlows returns one record per counterparty of token.
func (s *PairFlowStore) GetPairFlows(ctx context.Context, token string, since int64, limit int) (_ []domain.TokenPair, err error) {
	if token == "" {
		return nil, storage.ErrInvalidInput
	}
	defer func(start time.Time) { observe("get_pair_flows", start, err) }(time.Now())

	query := `
		SELECT
			other,
			sum(inflow_usd + outflow_usd) AS volume,
			count() AS swaps,
			sum(inflow_usd) AS central_inflow,
			sum(outflow_usd) AS central_outflow
		FROM token_swap_legs FINAL
		WHERE token = ? AND timestamp >= ?
		GROUP BY other
		ORDER BY volume DESC, other ASC
	`
	args := []any{token, since}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, uint64(limit))
	}

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query pair flows: %w", err)
	}
	defer rows.Close()

	return scanPairFlows(rows, token)
}

func scanPairFlows(rows chRows, token string) ([]domain.TokenPair, error) {
	pairs := make([]domain.TokenPair, 0)

	for rows.Next() {
		p := domain.TokenPair{CentralToken: token}
		var swaps uint64

		err := rows.Scan(
			&p.OtherToken, &p.TotalVolumeUSD, &swaps,
			&p.CentralTokenInflowUSD, &p.CentralTokenOutflowUSD,
		)
		if err != nil {
			return nil, fmt.Errorf("scan pair flow row: %w", err)
		}

		p.TotalSwaps = int64(swaps)
		p.OtherTokenInflowUSD = p.CentralTokenOutflowUSD
		p.OtherTokenOutflowUSD = p.CentralTokenInflowUSD
		pairs = append(pairs, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pair flow rows: %w", err)
	}

	return pairs, nil
}
