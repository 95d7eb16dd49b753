package postgres

import (
	"context"
	"fmt"
	"time"

	"token-flow-lab/internal/domain"
	"token-flow-lab/internal/storage"
)

// PairFlowStore implements storage.PairFlowStore by aggregating the swaps table.
type PairFlowStore struct {
	pool *Pool
}

// NewPairFlowStore creates a new PairFlowStore.
func NewPairFlowStore(pool *Pool) *PairFlowStore {
	return &PairFlowStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PairFlowStore = (*PairFlowStore)(nil)

// GetPairFlows returns one record per counterparty of token.
// token_out = token is central inflow, token_in = token is central outflow.
func (s *PairFlowStore) GetPairFlows(ctx context.Context, token string, since int64, limit int) (_ []domain.TokenPair, err error) {
	if token == "" {
		return nil, storage.ErrInvalidInput
	}
	defer func(start time.Time) { observe("get_pair_flows", start, err) }(time.Now())

	query := `
		SELECT
			other,
			SUM(amount_usd) AS volume,
			COUNT(*) AS swaps,
			SUM(CASE WHEN token_out = $1 THEN amount_usd ELSE 0 END) AS central_inflow,
			SUM(CASE WHEN token_in = $1 THEN amount_usd ELSE 0 END) AS central_outflow
		FROM (
			SELECT
				CASE WHEN token_in = $1 THEN token_out ELSE token_in END AS other,
				token_in, token_out, amount_usd
			FROM swaps
			WHERE (token_in = $1 OR token_out = $1)
			  AND token_in <> token_out
			  AND timestamp >= $2
		) s
		GROUP BY other
		ORDER BY volume DESC, other ASC
	`
	args := []any{token, since}
	if limit > 0 {
		query += " LIMIT $3"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get pair flows: %w", err)
	}
	defer rows.Close()

	pairs := make([]domain.TokenPair, 0)
	for rows.Next() {
		p := domain.TokenPair{CentralToken: token}
		if err := rows.Scan(
			&p.OtherToken,
			&p.TotalVolumeUSD,
			&p.TotalSwaps,
			&p.CentralTokenInflowUSD,
			&p.CentralTokenOutflowUSD,
		); err != nil {
			return nil, fmt.Errorf("scan pair flow row: %w", err)
		}
		p.OtherTokenInflowUSD = p.CentralTokenOutflowUSD
		p.OtherTokenOutflowUSD = p.CentralTokenInflowUSD
		pairs = append(pairs, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pair flow rows: %w", err)
	}

	return pairs, nil
}
