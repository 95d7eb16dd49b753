package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"token-flow-lab/internal/domain"
	"token-flow-lab/internal/storage"
)

// TokenMetadataStore implements storage.TokenMetadataStore using PostgreSQL.
type TokenMetadataStore struct {
	pool *Pool
	now  func() time.Time
}

// NewTokenMetadataStore creates a new TokenMetadataStore.
func NewTokenMetadataStore(pool *Pool) *TokenMetadataStore {
	return &TokenMetadataStore{pool: pool, now: time.Now}
}

// Compile-time interface check.
var _ storage.TokenMetadataStore = (*TokenMetadataStore)(nil)

const metadataColumns = `symbol, COALESCE(mint, ''), name, decimals, image_url, updated_at`

// Insert adds new metadata. Returns ErrDuplicateKey if symbol or mint exists.
func (s *TokenMetadataStore) Insert(ctx context.Context, m *domain.TokenMetadata) error {
	if err := storage.ValidateMetadata(m); err != nil {
		return err
	}

	query := `
		INSERT INTO token_metadata (symbol, mint, name, decimals, image_url, updated_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6)
	`
	_, err := s.pool.Exec(ctx, query, m.Symbol, m.Mint, m.Name, m.Decimals, m.ImageURL, s.updatedAt(m))
	if err != nil {
		return translate("insert token metadata", err)
	}
	return nil
}

// Upsert inserts or replaces metadata keyed by symbol.
func (s *TokenMetadataStore) Upsert(ctx context.Context, m *domain.TokenMetadata) error {
	if err := storage.ValidateMetadata(m); err != nil {
		return err
	}

	query := `
		INSERT INTO token_metadata (symbol, mint, name, decimals, image_url, updated_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6)
		ON CONFLICT (symbol) DO UPDATE SET
			mint = EXCLUDED.mint,
			name = EXCLUDED.name,
			decimals = EXCLUDED.decimals,
			image_url = EXCLUDED.image_url,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.pool.Exec(ctx, query, m.Symbol, m.Mint, m.Name, m.Decimals, m.ImageURL, s.updatedAt(m))
	if err != nil {
		return translate("upsert token metadata", err)
	}
	return nil
}

func (s *TokenMetadataStore) updatedAt(m *domain.TokenMetadata) int64 {
	if m.UpdatedAt > 0 {
		return m.UpdatedAt
	}
	return s.now().UnixMilli()
}

// GetBySymbol retrieves metadata by symbol. Returns ErrNotFound if not exists.
func (s *TokenMetadataStore) GetBySymbol(ctx context.Context, symbol string) (*domain.TokenMetadata, error) {
	query := `SELECT ` + metadataColumns + ` FROM token_metadata WHERE symbol = $1`

	m, err := scanTokenMetadata(s.pool.QueryRow(ctx, query, symbol))
	if err != nil {
		return nil, translate("get token metadata by symbol", err)
	}
	return m, nil
}

// GetByMint retrieves metadata by mint address. Returns ErrNotFound if not exists.
func (s *TokenMetadataStore) GetByMint(ctx context.Context, mint string) (*domain.TokenMetadata, error) {
	query := `SELECT ` + metadataColumns + ` FROM token_metadata WHERE mint = $1`

	m, err := scanTokenMetadata(s.pool.QueryRow(ctx, query, mint))
	if err != nil {
		return nil, translate("get token metadata by mint", err)
	}
	return m, nil
}

// GetBySymbols retrieves metadata for the given symbols, ordered by symbol.
func (s *TokenMetadataStore) GetBySymbols(ctx context.Context, symbols []string) ([]*domain.TokenMetadata, error) {
	if len(symbols) == 0 {
		return nil, nil
	}

	query := `SELECT ` + metadataColumns + ` FROM token_metadata WHERE symbol = ANY($1) ORDER BY symbol`

	rows, err := s.pool.Query(ctx, query, symbols)
	if err != nil {
		return nil, fmt.Errorf("get token metadata by symbols: %w", err)
	}
	defer rows.Close()

	var result []*domain.TokenMetadata
	for rows.Next() {
		m, err := scanTokenMetadata(rows)
		if err != nil {
			return nil, fmt.Errorf("scan token metadata row: %w", err)
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate token metadata rows: %w", err)
	}
	return result, nil
}

// scanTokenMetadata scans a single row into TokenMetadata.
func scanTokenMetadata(row pgx.Row) (*domain.TokenMetadata, error) {
	var m domain.TokenMetadata
	err := row.Scan(&m.Symbol, &m.Mint, &m.Name, &m.Decimals, &m.ImageURL, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
