package source

import (
	"context"
	"fmt"
	"time"

	"token-flow-lab/internal/domain"
	"token-flow-lab/internal/observability"
	"token-flow-lab/internal/storage"
)

// StoreSource serves pair records straight from a PairFlowStore.
type StoreSource struct {
	store storage.PairFlowStore
	name  string
	now   func() time.Time
}

// NewStoreSource creates a StoreSource. name labels fetch metrics ("postgres", "clickhouse", "memory").
func NewStoreSource(store storage.PairFlowStore, name string) *StoreSource {
	return &StoreSource{store: store, name: name, now: time.Now}
}

// Compile-time interface check.
var _ PairSource = (*StoreSource)(nil)

// FetchPairs aggregates swaps newer than the query window.
func (s *StoreSource) FetchPairs(ctx context.Context, q Query) ([]domain.TokenPair, error) {
	q = q.Normalize()
	start := time.Now()

	since := q.Window.Since(s.now()).UnixMilli()
	pairs, err := s.store.GetPairFlows(ctx, q.Token, since, q.Limit)

	status := "ok"
	if err != nil {
		status = "error"
	}
	observability.RecordFetch(s.name, status, time.Since(start).Seconds())

	if err != nil {
		return nil, &FetchError{Message: fmt.Sprintf("%s: %v", s.name, err)}
	}
	return pairs, nil
}
