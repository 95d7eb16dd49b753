// Package explorer ties the pipeline together for one viewer: it fetches pair
// records for the selected central token, builds and filters the graph, encodes
// it and keeps exactly one layout runner alive for the current snapshot.
package explorer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"token-flow-lab/internal/domain"
	"token-flow-lab/internal/encoding"
	"token-flow-lab/internal/graph"
	"token-flow-lab/internal/imagecache"
	"token-flow-lab/internal/layout"
	"token-flow-lab/internal/navigation"
	"token-flow-lab/internal/observability"
	"token-flow-lab/internal/source"
	"token-flow-lab/internal/tokenid"
	"token-flow-lab/internal/tooltip"
)

var (
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("session closed")

	// ErrNoLayout is returned by drag operations when nothing is laid out.
	ErrNoLayout = errors.New("no active layout")
)

// ImageLoader fills the image cache for a set of symbols.
type ImageLoader interface {
	Load(ctx context.Context, symbols []string) (int, error)
}

// Options contains configuration for creating a Session.
type Options struct {
	Fetcher  *source.Fetcher   // required
	Resolver *tokenid.Resolver // optional, resolves mint addresses
	Images   imagecache.Cache  // optional
	Loader   ImageLoader       // optional
	Layout   layout.Config
	Sink     layout.Sink // receives frames; must not call back into the Session
	Controls Controls
	Logger   *log.Logger
}

// View is a consistent snapshot of the session for rendering.
type View struct {
	Generation  uint64           `json:"generation"`
	Controls    Controls         `json:"controls"`
	Breadcrumbs []string         `json:"breadcrumbs"`
	Loading     bool             `json:"loading"`
	Error       string           `json:"error,omitempty"`
	Records     int              `json:"records"`
	Skipped     int              `json:"skipped"`
	Duplicates  int              `json:"duplicates"`
	Graph       graph.Graph      `json:"graph"`
	Encoded     encoding.Encoded `json:"encoded"`
	Central     tooltip.Summary  `json:"central"`
	State       layout.State     `json:"state"`
	Layout      *layout.Frame    `json:"layout,omitempty"`
}

// Session is safe for concurrent use. Network I/O happens outside the lock;
// results are applied only if no newer fetch was issued meanwhile.
type Session struct {
	opts    Options
	logger  *log.Logger
	encoder *encoding.Encoder
	ctx     context.Context
	cancel  context.CancelFunc

	mu          sync.Mutex
	controls    Controls
	history     *navigation.History
	shown       source.Query        // query behind the current graph or error
	shownPath   *navigation.History // history as it was when shown was applied
	loading     bool
	err         error
	raw         graph.Graph
	stats       graph.BuildStats
	filtered    graph.Graph
	fingerprint string
	encoded     encoding.Encoded
	runner      *layout.Runner
	generation  uint64
	closed      bool

	frameMu  sync.Mutex
	frameGen uint64
	frame    *layout.Frame
}

// New creates a session. Nothing is fetched until Refresh or Apply.
func New(opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	controls := opts.Controls
	if controls.Limit == 0 && controls.Window == 0 {
		controls = DefaultControls(controls.Token)
	}
	controls.Token = normalizeToken(controls.Token)

	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		opts:     opts,
		logger:   logger,
		encoder:  encoding.New(opts.Images),
		ctx:      ctx,
		cancel:   cancel,
		controls: controls,
		history:  navigation.New(controls.Token),
		raw:      emptyGraph(),
		filtered: emptyGraph(),
	}
}

func emptyGraph() graph.Graph {
	return graph.Graph{Nodes: []graph.Node{}, Links: []graph.Link{}}
}

// Apply changes controls. Token, breadcrumb, limit and window changes refetch;
// volume index and mode only refilter; legend only re-encodes.
func (s *Session) Apply(ctx context.Context, u Update) error {
	if err := u.Validate(); err != nil {
		return err
	}

	var token string
	switch {
	case u.Token != nil:
		resolved, err := s.resolve(ctx, *u.Token)
		if err != nil {
			return err
		}
		token = resolved
	case u.Breadcrumb != nil:
		// History entries are stored normalized.
		token = normalizeToken(*u.Breadcrumb)
		if token == "" {
			return fmt.Errorf("%w: empty breadcrumb", ErrInvalidControl)
		}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}

	fetch := u.needsFetch(s.controls)
	refilter := (u.VolumeIndex != nil && *u.VolumeIndex != s.controls.VolumeIndex) ||
		(u.Mode != nil && *u.Mode != s.controls.Mode)
	reencode := u.Legend != nil && *u.Legend != s.controls.Legend

	switch {
	case u.Token != nil:
		s.history.NavigateToToken(token)
		s.controls.Token = token
	case u.Breadcrumb != nil:
		s.history.NavigateToBreadcrumb(token)
		s.controls.Token = token
	}
	if u.Limit != nil {
		s.controls.Limit = *u.Limit
	}
	if u.Window != nil {
		s.controls.Window = *u.Window
	}
	if u.VolumeIndex != nil {
		s.controls.VolumeIndex = *u.VolumeIndex
	}
	if u.Mode != nil {
		s.controls.Mode = *u.Mode
	}
	if u.Legend != nil {
		s.controls.Legend = *u.Legend
	}

	if !fetch {
		if refilter {
			s.refilterLocked()
		} else if reencode {
			s.encoded = s.encoder.Encode(s.filtered, s.controls.Window, s.controls.Legend)
		}
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	return s.Refresh(ctx)
}

// SelectToken re-centres the graph on input, a symbol or mint address.
func (s *Session) SelectToken(ctx context.Context, input string) error {
	return s.Apply(ctx, Update{Token: &input})
}

// NavigateToBreadcrumb jumps back to a previously centred token.
func (s *Session) NavigateToBreadcrumb(ctx context.Context, target string) error {
	return s.Apply(ctx, Update{Breadcrumb: &target})
}

// ClearHistory empties the breadcrumb trail without refetching.
func (s *Session) ClearHistory() {
	s.mu.Lock()
	s.history.ClearHistory()
	s.mu.Unlock()
}

func (s *Session) resolve(ctx context.Context, input string) (string, error) {
	if strings.TrimSpace(input) == "" {
		return "", fmt.Errorf("%w: empty token", ErrInvalidControl)
	}
	if s.opts.Resolver == nil {
		return normalizeToken(input), nil
	}
	return s.opts.Resolver.Resolve(ctx, input)
}

// normalizeToken trims mint addresses and upper-cases symbols.
func normalizeToken(input string) string {
	if tokenid.IsMint(input) {
		return strings.TrimSpace(input)
	}
	return tokenid.NormalizeSymbol(input)
}

// Refresh refetches pairs for the current controls. A fetch overtaken by a
// newer one returns nil without touching the view. A failed fetch drops the
// current graph, stops the layout and is reported through View.Error too.
// A cancelled fetch keeps the current graph and rolls the controls and
// breadcrumbs back to the ones that produced it.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.controls.Token == "" {
		s.mu.Unlock()
		return fmt.Errorf("%w: no central token selected", ErrInvalidControl)
	}
	q := source.Query{Token: s.controls.Token, Limit: s.controls.Limit, Window: s.controls.Window}
	s.loading = true
	s.mu.Unlock()

	res, err := s.opts.Fetcher.Fetch(ctx, q)
	if errors.Is(err, source.ErrSuperseded) {
		return nil
	}
	if err == nil {
		s.loadImages(ctx, res.Pairs)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if res.Generation != s.opts.Fetcher.Latest() {
		observability.RecordFetchSuperseded()
		return nil
	}
	s.loading = false

	if err != nil {
		if errors.Is(err, context.Canceled) {
			s.rollbackLocked(q)
			return err
		}
		s.logger.Printf("fetch %s failed: %v", q.Key(), err)
		s.dropLocked(err)
		s.markShownLocked(q)
		return err
	}

	g, stats := graph.BuildWithStats(res.Pairs)
	observability.RecordGraphBuild(len(g.Nodes), stats.Skipped, stats.Duplicates)
	if stats.Skipped > 0 || stats.Duplicates > 0 {
		s.logger.Printf("fetch %s: %d records, %d skipped, %d duplicates", q.Key(), stats.Records, stats.Skipped, stats.Duplicates)
	}

	s.err = nil
	s.raw = g
	s.stats = stats
	s.markShownLocked(q)
	s.refilterLocked()
	return nil
}

func (s *Session) markShownLocked(q source.Query) {
	s.shown = q
	s.shownPath = s.history.Clone()
}

// rollbackLocked restores the controls behind the displayed snapshot after
// the fetch for q was abandoned, so the view never names one centre while
// drawing another.
func (s *Session) rollbackLocked(q source.Query) {
	if s.shownPath == nil || q == s.shown {
		return
	}
	s.logger.Printf("fetch %s cancelled, keeping %s", q.Key(), s.shown.Key())
	s.controls.Token = s.shown.Token
	s.controls.Limit = s.shown.Limit
	s.controls.Window = s.shown.Window
	s.history = s.shownPath.Clone()
}

func (s *Session) loadImages(ctx context.Context, pairs []domain.TokenPair) {
	if s.opts.Loader == nil || len(pairs) == 0 {
		return
	}
	symbols := make([]string, 0, len(pairs)+1)
	symbols = append(symbols, pairs[0].CentralToken)
	for _, p := range pairs {
		symbols = append(symbols, p.OtherToken)
	}
	n, err := s.opts.Loader.Load(ctx, symbols)
	observability.RecordImagesLoaded(n)
	if err != nil {
		s.logger.Printf("load token images: %v", err)
	}
}

// refilterLocked recomputes the filtered graph and restarts the layout unless
// the result is identical to the current snapshot.
func (s *Session) refilterLocked() {
	filtered := graph.Filter(s.raw, graph.Options{
		VolumeIndex: s.controls.VolumeIndex,
		Mode:        s.controls.Mode,
	})
	observability.RecordFilterRun(string(s.controls.Mode))

	fp := graph.Fingerprint(filtered)
	s.encoded = s.encoder.Encode(filtered, s.controls.Window, s.controls.Legend)
	if fp == s.fingerprint {
		observability.RecordFilterCacheHit()
		s.filtered = filtered
		return
	}

	s.stopRunnerLocked()
	s.generation++
	s.filtered = filtered
	s.fingerprint = fp
	s.resetFrame()

	if filtered.Empty() {
		return
	}

	r := layout.NewRunner(s.encoded, layout.RunnerOptions{
		Config:     s.opts.Layout,
		Generation: s.generation,
		Sink:       layout.SinkFunc(s.onFrame),
		Logger:     s.logger,
	})
	if err := r.Start(s.ctx); err != nil {
		s.logger.Printf("start layout generation %d: %v", s.generation, err)
		return
	}
	s.runner = r
}

// dropLocked discards the current snapshot after a failed fetch.
func (s *Session) dropLocked(err error) {
	s.stopRunnerLocked()
	s.err = err
	s.raw = emptyGraph()
	s.stats = graph.BuildStats{}
	s.filtered = emptyGraph()
	s.encoded = encoding.Encoded{Nodes: []encoding.NodeStyle{}, Links: []encoding.LinkStyle{}}
	s.fingerprint = ""
	s.generation++
	s.resetFrame()
}

func (s *Session) stopRunnerLocked() {
	if s.runner != nil {
		s.runner.Stop()
		s.runner = nil
	}
}

func (s *Session) resetFrame() {
	s.frameMu.Lock()
	s.frameGen = s.generation
	s.frame = nil
	s.frameMu.Unlock()
}

// onFrame runs on the runner goroutine. It must not take s.mu: Stop is
// called with s.mu held and waits for the runner to exit.
func (s *Session) onFrame(f layout.Frame) {
	s.frameMu.Lock()
	if f.Generation != s.frameGen {
		s.frameMu.Unlock()
		return
	}
	s.frame = &f
	s.frameMu.Unlock()

	if s.opts.Sink != nil {
		s.opts.Sink.Frame(f)
	}
}

// View returns the current state.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		Generation:  s.generation,
		Controls:    s.controls,
		Breadcrumbs: s.history.Path(),
		Loading:     s.loading,
		Records:     s.stats.Records,
		Skipped:     s.stats.Skipped,
		Duplicates:  s.stats.Duplicates,
		Graph:       s.filtered,
		Encoded:     s.encoded,
		Central:     tooltip.ForNode(s.filtered, s.filtered.Central),
		State:       layout.StateIdle,
	}
	if s.err != nil {
		v.Error = s.err.Error()
	}
	if s.runner != nil {
		v.State = s.runner.State()
	}

	s.frameMu.Lock()
	if s.frame != nil {
		f := *s.frame
		v.Layout = &f
	}
	s.frameMu.Unlock()

	return v
}

// Tooltip summarises a node of the current filtered graph.
func (s *Session) Tooltip(nodeID string) tooltip.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return tooltip.ForNode(s.filtered, nodeID)
}

// PairTooltip summarises the link between other and the central token.
func (s *Session) PairTooltip(other string) tooltip.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.filtered.LinkBetween(other, s.filtered.Central)
	if !ok {
		return tooltip.Summary{}
	}
	return tooltip.ForPair(l)
}

// Reheat re-energizes the current layout.
func (s *Session) Reheat() error {
	return s.withRunner(func(r *layout.Runner) error { return r.Reheat() })
}

// DragStart pins a node of the current layout.
func (s *Session) DragStart(id string) error {
	return s.withRunner(func(r *layout.Runner) error { return r.DragStart(id) })
}

// DragMove moves a pinned node.
func (s *Session) DragMove(id string, x, y float64) error {
	return s.withRunner(func(r *layout.Runner) error { return r.DragMove(id, x, y) })
}

// DragEnd releases a pinned node.
func (s *Session) DragEnd(id string) error {
	return s.withRunner(func(r *layout.Runner) error { return r.DragEnd(id) })
}

func (s *Session) withRunner(fn func(*layout.Runner) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.runner == nil {
		return ErrNoLayout
	}
	return fn(s.runner)
}

// Close stops the layout. The session cannot be used afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.stopRunnerLocked()
	s.cancel()
}
