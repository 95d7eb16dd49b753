package source

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"token-flow-lab/internal/domain"
	"token-flow-lab/internal/observability"
)

// ErrSuperseded is returned when a newer fetch started before this one completed.
var ErrSuperseded = errors.New("fetch superseded by a newer request")

// DefaultFetchTimeout bounds a shared backend request once it no longer
// follows the context of the caller that started it.
const DefaultFetchTimeout = 30 * time.Second

// Result is a completed fetch tagged with its generation.
type Result struct {
	Generation uint64
	Query      Query
	Pairs      []domain.TokenPair
}

// Fetcher sequences fetches: every call gets a new generation, and only the
// call holding the latest generation may deliver its result. Identical
// in-flight queries share one backend request.
type Fetcher struct {
	source  PairSource
	group   singleflight.Group
	latest  atomic.Uint64
	timeout time.Duration
	logger  *log.Logger
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithFetchTimeout bounds each shared backend request. Zero or less keeps
// DefaultFetchTimeout.
func WithFetchTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// NewFetcher wraps source. A nil logger uses log.Default().
func NewFetcher(source PairSource, logger *log.Logger, opts ...FetcherOption) *Fetcher {
	if logger == nil {
		logger = log.Default()
	}
	f := &Fetcher{source: source, timeout: DefaultFetchTimeout, logger: logger}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Latest returns the most recently issued generation.
func (f *Fetcher) Latest() uint64 {
	return f.latest.Load()
}

// Invalidate supersedes every in-flight fetch.
func (f *Fetcher) Invalidate() uint64 {
	return f.latest.Add(1)
}

// Fetch runs q and returns its pairs, or ErrSuperseded if another Fetch or
// Invalidate happened meanwhile. Cancelling ctx abandons only this caller:
// the backend request is shared with later callers of the same query, so it
// keeps ctx's values but not its cancellation.
func (f *Fetcher) Fetch(ctx context.Context, q Query) (Result, error) {
	q = q.Normalize()
	gen := f.latest.Add(1)
	res := Result{Generation: gen, Query: q}

	ch := f.group.DoChan(q.Key(), func() (interface{}, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.timeout)
		defer cancel()
		return f.source.FetchPairs(shared, q)
	})

	var out singleflight.Result
	select {
	case <-ctx.Done():
		return res, ctx.Err()
	case out = <-ch:
	}

	if gen != f.latest.Load() {
		observability.RecordFetchSuperseded()
		f.logger.Printf("fetch %s gen=%d superseded by gen=%d", q.Key(), gen, f.latest.Load())
		return res, ErrSuperseded
	}
	if out.Err != nil {
		return res, out.Err
	}

	pairs, _ := out.Val.([]domain.TokenPair)
	if out.Shared {
		pairs = append([]domain.TokenPair(nil), pairs...)
	}
	res.Pairs = pairs
	observability.UpdateLastFetch(time.Now().Unix())
	return res, nil
}
