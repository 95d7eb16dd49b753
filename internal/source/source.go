// Package source fetches token-pair flow records, either from the pairs HTTP API
// or directly from a storage backend, and sequences overlapping requests so that
// only the latest one is applied.
package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"token-flow-lab/internal/domain"
)

// ErrDataFetch is the class of all fetch failures.
var ErrDataFetch = errors.New("data fetch failed")

// FetchError describes a failed request. Status is 0 for transport errors.
type FetchError struct {
	Status  int
	Message string
}

func (e *FetchError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("fetch pairs: %s", e.Message)
	}
	return fmt.Sprintf("fetch pairs: HTTP %d: %s", e.Status, e.Message)
}

// Unwrap lets errors.Is(err, ErrDataFetch) match any FetchError.
func (e *FetchError) Unwrap() error {
	return ErrDataFetch
}

// Query identifies one pair request.
type Query struct {
	Token  string
	Limit  int
	Window domain.TimeWindow
}

// Key returns a stable key used to collapse identical in-flight requests.
func (q Query) Key() string {
	return fmt.Sprintf("%s|%d|%d", q.Token, q.Limit, int(q.Window))
}

// After returns the window start in unix seconds for a request made at now.
func (q Query) After(now time.Time) int64 {
	return q.Window.Since(now).Unix()
}

// Normalize fills defaults for a zero limit or window.
func (q Query) Normalize() Query {
	if q.Limit <= 0 {
		q.Limit = domain.DefaultLimit
	}
	if q.Window <= 0 {
		q.Window = domain.DefaultWindow
	}
	return q
}

// PairSource returns pair records for the query's central token, ordered as the
// backend ordered them.
type PairSource interface {
	FetchPairs(ctx context.Context, q Query) ([]domain.TokenPair, error)
}
