package storage

import (
	"context"

	"token-flow-lab/internal/domain"
)

// SwapStore persists executed swaps keyed by (tx hash, event index).
type SwapStore interface {
	// Insert stores one swap, or fails with ErrDuplicateKey when its key is taken.
	Insert(ctx context.Context, s *domain.Swap) error

	// InsertBulk is all-or-nothing: one taken key rejects the batch with ErrDuplicateKey.
	InsertBulk(ctx context.Context, swaps []*domain.Swap) error

	// GetByTokenSince lists swaps with token on either side and timestamp >= since (ms),
	// oldest first.
	GetByTokenSince(ctx context.Context, token string, since int64) ([]*domain.Swap, error)
}

// PairFlowStore aggregates swaps into per-pair flow records.
type PairFlowStore interface {
	// GetPairFlows returns one record per counterparty of token over swaps with
	// timestamp >= since (ms), ordered by volume DESC then counterparty ASC,
	// truncated to limit (limit <= 0 means no limit).
	GetPairFlows(ctx context.Context, token string, since int64, limit int) ([]domain.TokenPair, error)
}

// TokenMetadataStore maps symbols to mint addresses and display data.
type TokenMetadataStore interface {
	// Insert fails with ErrDuplicateKey when the symbol or mint is already known.
	Insert(ctx context.Context, m *domain.TokenMetadata) error

	// Upsert inserts or replaces metadata keyed by symbol.
	Upsert(ctx context.Context, m *domain.TokenMetadata) error

	// GetBySymbol returns ErrNotFound for unknown symbols.
	GetBySymbol(ctx context.Context, symbol string) (*domain.TokenMetadata, error)

	// GetByMint returns ErrNotFound for unknown mints.
	GetByMint(ctx context.Context, mint string) (*domain.TokenMetadata, error)

	// GetBySymbols skips symbols it does not know.
	GetBySymbols(ctx context.Context, symbols []string) ([]*domain.TokenMetadata, error)
}
