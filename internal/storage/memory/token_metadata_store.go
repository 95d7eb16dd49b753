package memory

import (
	"context"
	"sync"

	"token-flow-lab/internal/domain"
	"token-flow-lab/internal/storage"
)

// TokenMetadataStore is an in-memory implementation of storage.TokenMetadataStore.
type TokenMetadataStore struct {
	mu       sync.RWMutex
	bySymbol map[string]*domain.TokenMetadata // keyed by symbol
	byMint   map[string]*domain.TokenMetadata // keyed by mint (unique, non-empty)
}

// NewTokenMetadataStore creates a new in-memory token metadata store.
func NewTokenMetadataStore() *TokenMetadataStore {
	return &TokenMetadataStore{
		bySymbol: make(map[string]*domain.TokenMetadata),
		byMint:   make(map[string]*domain.TokenMetadata),
	}
}

// Insert adds new metadata. Returns ErrDuplicateKey if symbol or mint already exists.
func (s *TokenMetadataStore) Insert(_ context.Context, m *domain.TokenMetadata) error {
	if err := storage.ValidateMetadata(m); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.bySymbol[m.Symbol]; exists {
		return storage.ErrDuplicateKey
	}
	if m.Mint != "" {
		if _, exists := s.byMint[m.Mint]; exists {
			return storage.ErrDuplicateKey
		}
	}

	s.putLocked(m)
	return nil
}

// Upsert inserts or replaces metadata keyed by symbol. A mint owned by another
// symbol is rejected with ErrDuplicateKey.
func (s *TokenMetadataStore) Upsert(_ context.Context, m *domain.TokenMetadata) error {
	if err := storage.ValidateMetadata(m); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if m.Mint != "" {
		if owner, exists := s.byMint[m.Mint]; exists && owner.Symbol != m.Symbol {
			return storage.ErrDuplicateKey
		}
	}
	if prev, exists := s.bySymbol[m.Symbol]; exists && prev.Mint != "" {
		delete(s.byMint, prev.Mint)
	}

	s.putLocked(m)
	return nil
}

func (s *TokenMetadataStore) putLocked(m *domain.TokenMetadata) {
	metaCopy := *m
	s.bySymbol[m.Symbol] = &metaCopy
	if m.Mint != "" {
		s.byMint[m.Mint] = &metaCopy
	}
}

// GetBySymbol retrieves metadata by symbol. Returns ErrNotFound if not exists.
func (s *TokenMetadataStore) GetBySymbol(_ context.Context, symbol string) (*domain.TokenMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, exists := s.bySymbol[symbol]
	if !exists {
		return nil, storage.ErrNotFound
	}

	metaCopy := *m
	return &metaCopy, nil
}

// GetByMint retrieves metadata by mint address. Returns ErrNotFound if not exists.
func (s *TokenMetadataStore) GetByMint(_ context.Context, mint string) (*domain.TokenMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, exists := s.byMint[mint]
	if !exists {
		return nil, storage.ErrNotFound
	}

	metaCopy := *m
	return &metaCopy, nil
}

// GetBySymbols retrieves metadata for the given symbols, in input order.
func (s *TokenMetadataStore) GetBySymbols(_ context.Context, symbols []string) ([]*domain.TokenMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TokenMetadata
	seen := make(map[string]struct{}, len(symbols))
	for _, sym := range symbols {
		if _, dup := seen[sym]; dup {
			continue
		}
		seen[sym] = struct{}{}
		if m, ok := s.bySymbol[sym]; ok {
			metaCopy := *m
			result = append(result, &metaCopy)
		}
	}
	return result, nil
}

var _ storage.TokenMetadataStore = (*TokenMetadataStore)(nil)
