package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"token-flow-lab/internal/domain"
	"token-flow-lab/internal/storage"
)

type swapKey struct {
	tx    string
	index int
}

func keyOf(s *domain.Swap) swapKey {
	return swapKey{tx: s.TxHash, index: s.EventIndex}
}

// SwapStore holds swaps in memory and serves both the raw swap queries and
// the pair-flow aggregation. Swaps are indexed by each token they touch.
type SwapStore struct {
	mu      sync.RWMutex
	keys    map[swapKey]struct{}
	byToken map[string][]*domain.Swap // append order == ID order
	count   int
	nextID  int64
	now     func() time.Time
}

// NewSwapStore creates an empty SwapStore.
func NewSwapStore() *SwapStore {
	return &SwapStore{
		keys:    make(map[swapKey]struct{}),
		byToken: make(map[string][]*domain.Swap),
		now:     time.Now,
	}
}

var (
	_ storage.SwapStore     = (*SwapStore)(nil)
	_ storage.PairFlowStore = (*SwapStore)(nil)
)

// Insert adds one swap. Returns ErrDuplicateKey if (tx, index) is stored.
func (s *SwapStore) Insert(ctx context.Context, swap *domain.Swap) error {
	return s.InsertBulk(ctx, []*domain.Swap{swap})
}

// InsertBulk stores all swaps or none of them. A key already stored or
// repeated inside the batch fails the batch with ErrDuplicateKey.
func (s *SwapStore) InsertBulk(_ context.Context, swaps []*domain.Swap) error {
	if len(swaps) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[swapKey]struct{}, len(swaps))
	for _, swap := range swaps {
		if err := storage.ValidateSwap(swap); err != nil {
			return err
		}
		k := keyOf(swap)
		_, stored := s.keys[k]
		_, repeated := seen[k]
		if stored || repeated {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	created := s.now().UnixMilli()
	for _, swap := range swaps {
		s.nextID++
		c := *swap
		c.ID = s.nextID
		c.CreatedAt = created

		s.keys[keyOf(&c)] = struct{}{}
		s.byToken[c.TokenIn] = append(s.byToken[c.TokenIn], &c)
		if c.TokenOut != c.TokenIn {
			s.byToken[c.TokenOut] = append(s.byToken[c.TokenOut], &c)
		}
		s.count++
	}
	return nil
}

// GetByTokenSince returns copies of the swaps touching token with
// timestamp >= since, ordered by timestamp then insertion.
func (s *SwapStore) GetByTokenSince(_ context.Context, token string, since int64) ([]*domain.Swap, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.since(token, since), nil
}

func (s *SwapStore) since(token string, since int64) []*domain.Swap {
	var out []*domain.Swap
	for _, swap := range s.byToken[token] {
		if swap.Timestamp < since {
			continue
		}
		c := *swap
		out = append(out, &c)
	}
	// Index order is ID order, so a stable sort on timestamp is enough.
	slices.SortStableFunc(out, func(a, b *domain.Swap) int {
		return cmp.Compare(a.Timestamp, b.Timestamp)
	})
	return out
}

// GetPairFlows aggregates the swaps of token into pair records.
func (s *SwapStore) GetPairFlows(_ context.Context, token string, since int64, limit int) ([]domain.TokenPair, error) {
	if token == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	swaps := s.since(token, since)
	s.mu.RUnlock()

	return storage.AggregatePairFlows(token, swaps, since, limit), nil
}

// Len returns the number of stored swaps.
func (s *SwapStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}
