package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"token-flow-lab/internal/explorer"
	"token-flow-lab/internal/imagecache"
	"token-flow-lab/internal/layout"
	"token-flow-lab/internal/observability"
	"token-flow-lab/internal/source"
	"token-flow-lab/internal/tokenid"
)

// Options contains configuration for creating a Server.
type Options struct {
	Source       source.PairSource // required
	SourceName   string
	Resolver     *tokenid.Resolver    // optional
	Images       imagecache.Cache     // optional
	Loader       explorer.ImageLoader // optional
	Layout       layout.Config
	Defaults     explorer.Controls
	FetchTimeout time.Duration // bounds each shared pair fetch, 0 keeps the default
	IdleTimeout  time.Duration // 0 disables idle expiry
	Logger       *log.Logger
}

// Server owns the explorer sessions and serves them over HTTP.
type Server struct {
	opts     Options
	logger   *log.Logger
	upgrader websocket.Upgrader
	now      func() time.Time
	started  time.Time

	mu       sync.Mutex
	sessions map[string]*entry
	created  int
	expired  int
}

// entry is one registered session.
type entry struct {
	id       string
	session  *explorer.Session
	hub      *hub
	lastSeen time.Time // guarded by Server.mu
}

// NewServer creates a server.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		opts:   opts,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		now:      time.Now,
		started:  time.Now(),
		sessions: make(map[string]*entry),
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Prometheus metrics
	mux.Handle("GET /metrics", observability.Handler())

	// Status endpoint
	mux.HandleFunc("GET /status", s.handleStatus)

	mux.HandleFunc("POST /api/sessions", s.handleCreate)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDelete)
	mux.HandleFunc("GET /api/sessions/{id}/view", s.handleView)
	mux.HandleFunc("POST /api/sessions/{id}/control", s.handleControl)
	mux.HandleFunc("GET /api/sessions/{id}/tooltip", s.handleTooltip)
	mux.HandleFunc("GET /api/sessions/{id}/ws", s.handleWS)

	return mux
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status          string `json:"status"`
	Uptime          string `json:"uptime"`
	Source          string `json:"source"`
	ActiveSessions  int    `json:"active_sessions"`
	SessionsCreated int    `json:"sessions_created"`
	SessionsExpired int    `json:"sessions_expired"`
	WSClients       int    `json:"ws_clients"`
}

// handleStatus returns server status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	resp := StatusResponse{
		Status:          "running",
		Uptime:          s.now().Sub(s.started).Truncate(time.Second).String(),
		Source:          s.opts.SourceName,
		ActiveSessions:  len(s.sessions),
		SessionsCreated: s.created,
		SessionsExpired: s.expired,
	}
	for _, e := range s.sessions {
		resp.WSClients += e.hub.count()
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

// createResponse is returned by POST /api/sessions.
type createResponse struct {
	ID   string        `json:"id"`
	View explorer.View `json:"view"`
}

// handleCreate opens a session. The optional body is an explorer.Update
// applied on top of the server defaults before the first fetch.
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var u explorer.Update
	if err := decodeBody(r, &u); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := u.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if u.Breadcrumb != nil {
		writeError(w, http.StatusBadRequest, errors.New("a new session has no breadcrumbs"))
		return
	}

	controls := s.opts.Defaults
	if u.Token != nil {
		token, err := s.opts.Resolver.Resolve(r.Context(), *u.Token)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		controls.Token = token
	}
	if u.Limit != nil {
		controls.Limit = *u.Limit
	}
	if u.Window != nil {
		controls.Window = *u.Window
	}
	if u.VolumeIndex != nil {
		controls.VolumeIndex = *u.VolumeIndex
	}
	if u.Mode != nil {
		controls.Mode = *u.Mode
	}
	if u.Legend != nil {
		controls.Legend = *u.Legend
	}

	e := s.open(controls)
	if err := e.session.Refresh(r.Context()); err != nil && !isFetchError(err) {
		s.remove(e.id)
		writeError(w, statusFor(err), err)
		return
	}

	writeJSON(w, http.StatusCreated, createResponse{ID: e.id, View: e.session.View()})
}

// open registers a new session.
func (s *Server) open(controls explorer.Controls) *entry {
	id := uuid.NewString()
	h := newHub()
	sess := explorer.New(explorer.Options{
		Fetcher:  source.NewFetcher(s.opts.Source, s.logger, source.WithFetchTimeout(s.opts.FetchTimeout)),
		Resolver: s.opts.Resolver,
		Images:   s.opts.Images,
		Loader:   s.opts.Loader,
		Layout:   s.opts.Layout,
		Sink:     h,
		Controls: controls,
		Logger:   s.logger,
	})
	e := &entry{id: id, session: sess, hub: h}

	s.mu.Lock()
	e.lastSeen = s.now()
	s.sessions[id] = e
	s.created++
	n := len(s.sessions)
	s.mu.Unlock()

	observability.UpdateActiveSessions(n)
	s.logger.Printf("session %s opened (token=%s)", id, controls.Token)
	return e
}

// lookup returns the session and marks it as used.
func (s *Server) lookup(id string) (*entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if ok {
		e.lastSeen = s.now()
	}
	return e, ok
}

// remove closes and forgets a session.
func (s *Server) remove(id string) bool {
	s.mu.Lock()
	e, ok := s.sessions[id]
	delete(s.sessions, id)
	n := len(s.sessions)
	s.mu.Unlock()
	if !ok {
		return false
	}

	e.session.Close()
	e.hub.closeAll()
	observability.UpdateActiveSessions(n)
	s.logger.Printf("session %s closed", id)
	return true
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*entry, bool) {
	e, ok := s.lookup(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("session not found"))
	}
	return e, ok
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if !s.remove(r.PathValue("id")) {
		writeError(w, http.StatusNotFound, errors.New("session not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	e, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, e.session.View())
}

// handleControl applies an explorer.Update. Fetch failures are not request
// errors: they are reported through the returned view.
func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	e, ok := s.session(w, r)
	if !ok {
		return
	}

	var u explorer.Update
	if err := decodeBody(r, &u); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := e.session.Apply(r.Context(), u); err != nil && !isFetchError(err) {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, e.session.View())
}

// handleTooltip summarises ?node=<id>, or the link of ?pair=<id> to the
// central token.
func (s *Server) handleTooltip(w http.ResponseWriter, r *http.Request) {
	e, ok := s.session(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	switch {
	case q.Get("node") != "":
		writeJSON(w, http.StatusOK, e.session.Tooltip(q.Get("node")))
	case q.Get("pair") != "":
		writeJSON(w, http.StatusOK, e.session.PairTooltip(q.Get("pair")))
	default:
		writeError(w, http.StatusBadRequest, errors.New("node or pair is required"))
	}
}

// Sweep closes sessions idle for longer than the idle timeout. Sessions with
// a connected websocket are never idle.
func (s *Server) Sweep() int {
	if s.opts.IdleTimeout <= 0 {
		return 0
	}

	s.mu.Lock()
	cutoff := s.now().Add(-s.opts.IdleTimeout)
	var idle []string
	for id, e := range s.sessions {
		if e.hub.count() == 0 && e.lastSeen.Before(cutoff) {
			idle = append(idle, id)
		}
	}
	s.expired += len(idle)
	s.mu.Unlock()

	for _, id := range idle {
		s.remove(id)
	}
	return len(idle)
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *Server) RunSweeper(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.logger.Printf("expired %d idle sessions", n)
			}
		}
	}
}

// Close closes every session.
func (s *Server) Close() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.remove(id)
	}
}

// statusFor maps session errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, explorer.ErrInvalidControl),
		errors.Is(err, tokenid.ErrEmpty):
		return http.StatusBadRequest
	case errors.Is(err, explorer.ErrNoLayout):
		return http.StatusConflict
	case errors.Is(err, explorer.ErrClosed):
		return http.StatusGone
	case errors.Is(err, layout.ErrUnknownNode):
		return http.StatusNotFound
	case errors.Is(err, layout.ErrAlreadyDragging), errors.Is(err, layout.ErrNotDragging), errors.Is(err, layout.ErrStopped):
		return http.StatusConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// isFetchError reports errors already surfaced on the session view.
func isFetchError(err error) bool {
	return errors.Is(err, source.ErrDataFetch)
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
