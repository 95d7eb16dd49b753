package explorer

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-flow-lab/internal/domain"
	"token-flow-lab/internal/imagecache"
	"token-flow-lab/internal/layout"
	"token-flow-lab/internal/source"
	"token-flow-lab/internal/storage/memory"
	"token-flow-lab/internal/tokenid"
)

const usdcMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

type fakeSource struct {
	mu      sync.Mutex
	data    map[string][]domain.TokenPair
	err     error
	queries []source.Query
}

func (f *fakeSource) FetchPairs(_ context.Context, q source.Query) ([]domain.TokenPair, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	return append([]domain.TokenPair(nil), f.data[q.Token]...), nil
}

func (f *fakeSource) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

func (f *fakeSource) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func pair(central, other string, volume, centralIn, centralOut float64) domain.TokenPair {
	return domain.TokenPair{
		CentralToken:           central,
		OtherToken:             other,
		TotalVolumeUSD:         volume,
		TotalSwaps:             10,
		CentralTokenInflowUSD:  centralIn,
		CentralTokenOutflowUSD: centralOut,
		OtherTokenInflowUSD:    centralOut,
		OtherTokenOutflowUSD:   centralIn,
	}
}

func newFakeSource() *fakeSource {
	return &fakeSource{data: map[string][]domain.TokenPair{
		"WETH": {
			pair("WETH", "USDC", 1_000_000, 700_000, 300_000),
			pair("WETH", "DAI", 10_000, 1_000, 9_000),
			pair("WETH", "BONK", 500, 250, 250),
		},
		"USDC": {
			pair("USDC", "WETH", 1_000_000, 300_000, 700_000),
		},
	}}
}

type recordingSink struct {
	count atomic.Int64
	last  atomic.Uint64
}

func (r *recordingSink) Frame(f layout.Frame) {
	r.count.Add(1)
	r.last.Store(f.Generation)
}

type fakeLoader struct {
	cache   imagecache.Cache
	symbols []string
}

func (l *fakeLoader) Load(_ context.Context, symbols []string) (int, error) {
	l.symbols = append(l.symbols, symbols...)
	l.cache.Put("USDC", "https://img.local/usdc.png")
	return 1, nil
}

func fastLayout() layout.Config {
	cfg := layout.DefaultConfig()
	cfg.TickInterval = time.Millisecond
	cfg.ReheatInterval = 20 * time.Millisecond
	return cfg
}

func newTestSession(t *testing.T, src source.PairSource, sink layout.Sink) *Session {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	s := New(Options{
		Fetcher:  source.NewFetcher(src, logger),
		Layout:   fastLayout(),
		Sink:     sink,
		Controls: DefaultControls("weth"),
		Logger:   logger,
	})
	t.Cleanup(s.Close)
	return s
}

func nodeIDs(v View) []string {
	ids := make([]string, 0, len(v.Graph.Nodes))
	for _, n := range v.Graph.Nodes {
		ids = append(ids, n.ID)
	}
	return ids
}

func TestSession_RefreshBuildsAndLaysOut(t *testing.T) {
	src := newFakeSource()
	sink := &recordingSink{}
	s := newTestSession(t, src, sink)

	require.NoError(t, s.Refresh(context.Background()))

	v := s.View()
	assert.Equal(t, uint64(1), v.Generation)
	assert.Equal(t, "WETH", v.Controls.Token)
	assert.Equal(t, []string{"WETH", "USDC", "DAI", "BONK"}, nodeIDs(v))
	assert.Len(t, v.Encoded.Links, 3)
	assert.True(t, v.Central.Found)
	assert.Equal(t, 3, v.Central.Links)
	assert.Empty(t, v.Error)
	assert.False(t, v.Loading)

	q := src.queries[0]
	assert.Equal(t, domain.DefaultLimit, q.Limit)
	assert.Equal(t, domain.DefaultWindow, q.Window)

	require.Eventually(t, func() bool { return sink.count.Load() > 0 }, time.Second, time.Millisecond)
	assert.Equal(t, uint64(1), sink.last.Load())

	require.Eventually(t, func() bool { return s.View().Layout != nil }, time.Second, time.Millisecond)
	frame := s.View().Layout
	assert.Equal(t, uint64(1), frame.Generation)
	assert.Len(t, frame.Nodes, 4)
}

func TestSession_VolumeIndexRefiltersWithoutFetch(t *testing.T) {
	src := newFakeSource()
	s := newTestSession(t, src, nil)
	ctx := context.Background()
	require.NoError(t, s.Refresh(ctx))

	idx := 4 // 50k floor keeps WETH and USDC only
	require.NoError(t, s.Apply(ctx, Update{VolumeIndex: &idx}))

	v := s.View()
	assert.Equal(t, 1, src.calls())
	assert.Equal(t, uint64(2), v.Generation)
	assert.Equal(t, []string{"WETH", "USDC"}, nodeIDs(v))
}

func TestSession_UnchangedFilterResultKeepsLayout(t *testing.T) {
	src := newFakeSource()
	s := newTestSession(t, src, nil)
	ctx := context.Background()
	require.NoError(t, s.Refresh(ctx))

	idx := 1 // 100 USD floor removes nothing
	require.NoError(t, s.Apply(ctx, Update{VolumeIndex: &idx}))

	v := s.View()
	assert.Equal(t, uint64(1), v.Generation)
	assert.Equal(t, 1, v.Controls.VolumeIndex)
	assert.Len(t, v.Graph.Nodes, 4)
}

func TestSession_ModeFilter(t *testing.T) {
	src := newFakeSource()
	s := newTestSession(t, src, nil)
	ctx := context.Background()
	require.NoError(t, s.Refresh(ctx))

	sell := domain.LinkModeSell
	require.NoError(t, s.Apply(ctx, Update{Mode: &sell}))
	assert.Equal(t, []string{"WETH", "DAI"}, nodeIDs(s.View()))

	buy := domain.LinkModeBuy
	require.NoError(t, s.Apply(ctx, Update{Mode: &buy}))
	assert.Equal(t, []string{"WETH", "USDC", "BONK"}, nodeIDs(s.View()))
	assert.Equal(t, 1, src.calls())
}

func TestSession_LegendReencodesOnly(t *testing.T) {
	src := newFakeSource()
	s := newTestSession(t, src, nil)
	ctx := context.Background()
	require.NoError(t, s.Refresh(ctx))

	before := s.View()
	usdc := before.Encoded.Links[0]
	assert.Equal(t, "USDC", usdc.Source)
	assert.InDelta(t, 0.8, usdc.Opacity, 1e-9)

	outflow := domain.DirectionOutflow
	require.NoError(t, s.Apply(ctx, Update{Legend: &outflow}))

	after := s.View()
	assert.Equal(t, before.Generation, after.Generation)
	assert.InDelta(t, 0.3, after.Encoded.Links[0].Opacity, 1e-9)
	assert.Equal(t, 1, src.calls())
}

func TestSession_NavigationAndBreadcrumbs(t *testing.T) {
	src := newFakeSource()
	s := newTestSession(t, src, nil)
	ctx := context.Background()
	require.NoError(t, s.Refresh(ctx))

	require.NoError(t, s.SelectToken(ctx, " usdc "))
	v := s.View()
	assert.Equal(t, "USDC", v.Controls.Token)
	assert.Equal(t, []string{"WETH"}, v.Breadcrumbs)
	assert.Equal(t, "USDC", v.Graph.Central)
	assert.Equal(t, 2, src.calls())

	require.NoError(t, s.NavigateToBreadcrumb(ctx, "WETH"))
	v = s.View()
	assert.Equal(t, "WETH", v.Controls.Token)
	assert.Empty(t, v.Breadcrumbs)
	assert.Equal(t, 3, src.calls())

	// Re-filtering never touches the history.
	idx := 2
	require.NoError(t, s.Apply(ctx, Update{VolumeIndex: &idx}))
	assert.Empty(t, s.View().Breadcrumbs)
}

func TestSession_BreadcrumbTargetIsNormalized(t *testing.T) {
	src := newFakeSource()
	s := newTestSession(t, src, nil)
	ctx := context.Background()
	require.NoError(t, s.Refresh(ctx))
	require.NoError(t, s.SelectToken(ctx, "USDC"))

	require.NoError(t, s.NavigateToBreadcrumb(ctx, " weth "))
	v := s.View()
	assert.Equal(t, "WETH", v.Controls.Token)
	assert.Empty(t, v.Breadcrumbs)
	assert.Equal(t, "WETH", v.Graph.Central)
	assert.Equal(t, "WETH", src.queries[len(src.queries)-1].Token)

	assert.ErrorIs(t, s.NavigateToBreadcrumb(ctx, "  "), ErrInvalidControl)
}

// heldSource blocks matching queries until release is closed.
type heldSource struct {
	*fakeSource
	held    func(source.Query) bool
	release chan struct{}
}

func newHeldSource(t *testing.T, held func(source.Query) bool) *heldSource {
	h := &heldSource{fakeSource: newFakeSource(), held: held, release: make(chan struct{})}
	t.Cleanup(func() { close(h.release) })
	return h
}

func (h *heldSource) FetchPairs(ctx context.Context, q source.Query) ([]domain.TokenPair, error) {
	if h.held(q) {
		<-h.release
	}
	return h.fakeSource.FetchPairs(ctx, q)
}

// cancelWhileLoading runs apply on a context that is cancelled once the
// session reports the fetch in flight.
func cancelWhileLoading(t *testing.T, s *Session, apply func(context.Context) error) error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- apply(ctx) }()
	require.Eventually(t, func() bool { return s.View().Loading }, time.Second, time.Millisecond)
	cancel()
	return <-done
}

func TestSession_CancelledSelectionKeepsDisplayedToken(t *testing.T) {
	src := newHeldSource(t, func(q source.Query) bool { return q.Token == "USDC" })
	s := newTestSession(t, src, nil)
	require.NoError(t, s.Refresh(context.Background()))
	before := s.View()

	err := cancelWhileLoading(t, s, func(ctx context.Context) error { return s.SelectToken(ctx, "usdc") })
	assert.ErrorIs(t, err, context.Canceled)

	v := s.View()
	assert.Equal(t, "WETH", v.Controls.Token)
	assert.Equal(t, "WETH", v.Graph.Central)
	assert.Empty(t, v.Breadcrumbs)
	assert.False(t, v.Loading)
	assert.Empty(t, v.Error)
	assert.Equal(t, before.Generation, v.Generation)

	// The restored controls refetch the displayed token.
	require.NoError(t, s.Refresh(context.Background()))
	assert.Equal(t, "WETH", s.View().Graph.Central)
}

func TestSession_CancelledLimitChangeRollsBack(t *testing.T) {
	src := newHeldSource(t, func(q source.Query) bool { return q.Limit == 10 })
	s := newTestSession(t, src, nil)
	require.NoError(t, s.Refresh(context.Background()))
	require.NoError(t, s.SelectToken(context.Background(), "USDC"))

	limit := 10
	err := cancelWhileLoading(t, s, func(ctx context.Context) error { return s.Apply(ctx, Update{Limit: &limit}) })
	assert.ErrorIs(t, err, context.Canceled)

	v := s.View()
	assert.Equal(t, DefaultControls("USDC").Limit, v.Controls.Limit)
	assert.Equal(t, "USDC", v.Controls.Token)
	assert.Equal(t, []string{"WETH"}, v.Breadcrumbs)
}

func TestSession_LimitAndWindowRefetch(t *testing.T) {
	src := newFakeSource()
	s := newTestSession(t, src, nil)
	ctx := context.Background()

	limit := 10
	window := domain.Window1h
	require.NoError(t, s.Apply(ctx, Update{Limit: &limit, Window: &window}))

	require.Equal(t, 1, src.calls())
	assert.Equal(t, 10, src.queries[0].Limit)
	assert.Equal(t, domain.Window1h, src.queries[0].Window)
}

func TestSession_FetchErrorDropsGraph(t *testing.T) {
	src := newFakeSource()
	s := newTestSession(t, src, nil)
	ctx := context.Background()
	require.NoError(t, s.Refresh(ctx))
	require.NoError(t, s.DragStart("USDC"))

	src.setErr(&source.FetchError{Status: 503, Message: "unavailable"})
	err := s.Refresh(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, source.ErrDataFetch))

	v := s.View()
	assert.Contains(t, v.Error, "503")
	assert.True(t, v.Graph.Empty())
	assert.Empty(t, v.Encoded.Links)
	assert.Nil(t, v.Layout)
	assert.Equal(t, layout.StateIdle, v.State)
	assert.False(t, v.Central.Found)
	assert.ErrorIs(t, s.DragStart("USDC"), ErrNoLayout)

	src.setErr(nil)
	require.NoError(t, s.Refresh(ctx))
	v = s.View()
	assert.Empty(t, v.Error)
	assert.Len(t, v.Graph.Nodes, 4)
	assert.Equal(t, uint64(3), v.Generation)
}

func TestSession_EmptyResult(t *testing.T) {
	src := newFakeSource()
	s := newTestSession(t, src, nil)
	ctx := context.Background()

	require.NoError(t, s.SelectToken(ctx, "NOPE"))
	v := s.View()
	assert.Empty(t, v.Error)
	assert.True(t, v.Graph.Empty())
	assert.ErrorIs(t, s.DragStart("NOPE"), ErrNoLayout)
}

func TestSession_DragDelegation(t *testing.T) {
	src := newFakeSource()
	s := newTestSession(t, src, nil)
	require.NoError(t, s.Refresh(context.Background()))

	require.NoError(t, s.DragStart("USDC"))
	assert.ErrorIs(t, s.DragStart("USDC"), layout.ErrAlreadyDragging)
	require.NoError(t, s.DragMove("USDC", 10, 20))
	require.NoError(t, s.DragEnd("USDC"))
	assert.ErrorIs(t, s.DragEnd("USDC"), layout.ErrNotDragging)
	assert.ErrorIs(t, s.DragStart("ZZZ"), layout.ErrUnknownNode)
	assert.NoError(t, s.Reheat())
}

func TestSession_Tooltips(t *testing.T) {
	src := newFakeSource()
	s := newTestSession(t, src, nil)
	require.NoError(t, s.Refresh(context.Background()))

	central := s.Tooltip("WETH")
	assert.True(t, central.Found)
	assert.True(t, central.IsCentral)
	assert.InDelta(t, 1_010_500, central.TotalVolumeUSD, 1e-6)

	dai := s.PairTooltip("DAI")
	assert.True(t, dai.Found)
	assert.InDelta(t, 9_000, dai.OutflowUSD, 1e-9)

	assert.False(t, s.Tooltip("MISSING").Found)
	assert.False(t, s.PairTooltip("MISSING").Found)
}

func TestSession_InvalidUpdate(t *testing.T) {
	s := newTestSession(t, newFakeSource(), nil)
	ctx := context.Background()

	limit := 7
	assert.ErrorIs(t, s.Apply(ctx, Update{Limit: &limit}), ErrInvalidControl)

	idx := 99
	assert.ErrorIs(t, s.Apply(ctx, Update{VolumeIndex: &idx}), ErrInvalidControl)

	mode := domain.LinkMode("hold")
	assert.ErrorIs(t, s.Apply(ctx, Update{Mode: &mode}), ErrInvalidControl)

	assert.ErrorIs(t, s.SelectToken(ctx, "  "), ErrInvalidControl)
}

func TestSession_ResolvesMint(t *testing.T) {
	ctx := context.Background()
	meta := memory.NewTokenMetadataStore()
	require.NoError(t, meta.Insert(ctx, &domain.TokenMetadata{Symbol: "USDC", Mint: usdcMint}))

	src := newFakeSource()
	logger := log.New(io.Discard, "", 0)
	s := New(Options{
		Fetcher:  source.NewFetcher(src, logger),
		Resolver: tokenid.NewResolver(meta),
		Layout:   fastLayout(),
		Controls: DefaultControls("WETH"),
		Logger:   logger,
	})
	defer s.Close()

	require.NoError(t, s.SelectToken(ctx, usdcMint))
	assert.Equal(t, "USDC", s.View().Controls.Token)
}

func TestSession_LoadsImages(t *testing.T) {
	cache := imagecache.NewMemory()
	loader := &fakeLoader{cache: cache}
	logger := log.New(io.Discard, "", 0)
	s := New(Options{
		Fetcher:  source.NewFetcher(newFakeSource(), logger),
		Images:   cache,
		Loader:   loader,
		Layout:   fastLayout(),
		Controls: DefaultControls("WETH"),
		Logger:   logger,
	})
	defer s.Close()

	require.NoError(t, s.Refresh(context.Background()))
	assert.Equal(t, []string{"WETH", "USDC", "DAI", "BONK"}, loader.symbols)

	var found bool
	for _, n := range s.View().Encoded.Nodes {
		if n.ID == "USDC" {
			found = true
			assert.Equal(t, "https://img.local/usdc.png", n.ImageURL)
		}
	}
	assert.True(t, found)
}

func TestSession_Close(t *testing.T) {
	s := newTestSession(t, newFakeSource(), nil)
	require.NoError(t, s.Refresh(context.Background()))

	s.Close()
	s.Close()
	assert.ErrorIs(t, s.Refresh(context.Background()), ErrClosed)
	assert.ErrorIs(t, s.DragStart("USDC"), ErrClosed)
}
