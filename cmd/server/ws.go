package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"token-flow-lab/internal/explorer"
	"token-flow-lab/internal/layout"
	"token-flow-lab/internal/observability"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
	wsSendBuffer   = 32
	wsMaxMessage   = 64 << 10
)

// wsMessage is sent to clients.
type wsMessage struct {
	Type  string         `json:"type"` // frame, view, error
	Frame *layout.Frame  `json:"frame,omitempty"`
	View  *explorer.View `json:"view,omitempty"`
	Error string         `json:"error,omitempty"`
}

// clientMessage is received from clients.
type clientMessage struct {
	Type       string           `json:"type"`
	Node       string           `json:"node,omitempty"`
	X          float64          `json:"x,omitempty"`
	Y          float64          `json:"y,omitempty"`
	Token      string           `json:"token,omitempty"`
	Breadcrumb string           `json:"breadcrumb,omitempty"`
	Control    *explorer.Update `json:"control,omitempty"`
}

// hub fans layout frames out to the websocket clients of one session.
// Slow clients lose frames rather than stall the layout.
type hub struct {
	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

func newHub() *hub {
	return &hub{clients: make(map[*wsClient]struct{})}
}

var _ layout.Sink = (*hub)(nil)

// Frame implements layout.Sink.
func (h *hub) Frame(f layout.Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.clients) == 0 {
		return
	}

	data, err := json.Marshal(wsMessage{Type: "frame", Frame: &f})
	if err != nil {
		return
	}
	for c := range h.clients {
		observability.RecordWSFrame(c.offer(data))
	}
}

func (h *hub) add(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	observability.RecordWSClient(1)
}

func (h *hub) remove(c *wsClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		observability.RecordWSClient(-1)
	}
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// closeAll disconnects every client.
func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.close()
	}
}

// wsClient is the outbound queue of one connection.
type wsClient struct {
	send chan []byte
	done chan struct{}
	once sync.Once
}

func newWSClient() *wsClient {
	return &wsClient{
		send: make(chan []byte, wsSendBuffer),
		done: make(chan struct{}),
	}
}

// offer queues data without blocking and reports whether it was queued.
func (c *wsClient) offer(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// push queues data, waiting for room unless the client is gone.
func (c *wsClient) push(data []byte) {
	select {
	case c.send <- data:
	case <-c.done:
	}
}

func (c *wsClient) close() {
	c.once.Do(func() { close(c.done) })
}

// handleWS streams frames of one session and accepts drag and navigation
// messages.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	e, ok := s.session(w, r)
	if !ok {
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c := newWSClient()
	e.hub.add(c)
	defer e.hub.remove(c)

	v := e.session.View()
	c.push(encodeMessage(wsMessage{Type: "view", View: &v}))

	go func() {
		defer c.close()
		s.readLoop(ctx, conn, e, c)
	}()
	s.writeLoop(conn, c)
}

// readLoop handles client messages until the connection fails.
func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, e *entry, c *wsClient) {
	conn.SetReadLimit(wsMaxMessage)
	conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Printf("session %s websocket read: %v", e.id, err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		s.lookup(e.id)

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.push(encodeMessage(wsMessage{Type: "error", Error: fmt.Sprintf("decode message: %v", err)}))
			continue
		}

		reply, err := s.dispatch(ctx, e.session, msg)
		switch {
		case err != nil && !isFetchError(err):
			c.push(encodeMessage(wsMessage{Type: "error", Error: err.Error()}))
		case reply:
			v := e.session.View()
			c.push(encodeMessage(wsMessage{Type: "view", View: &v}))
		}
	}
}

// dispatch applies msg and reports whether the view changed.
func (s *Server) dispatch(ctx context.Context, sess *explorer.Session, msg clientMessage) (bool, error) {
	switch msg.Type {
	case "drag_start":
		return false, sess.DragStart(msg.Node)
	case "drag_move":
		return false, sess.DragMove(msg.Node, msg.X, msg.Y)
	case "drag_end":
		return false, sess.DragEnd(msg.Node)
	case "reheat":
		return false, sess.Reheat()
	case "select":
		return true, sess.SelectToken(ctx, msg.Token)
	case "breadcrumb":
		return true, sess.NavigateToBreadcrumb(ctx, msg.Breadcrumb)
	case "clear_history":
		sess.ClearHistory()
		return true, nil
	case "control":
		if msg.Control == nil {
			return false, errors.New("control message without control")
		}
		return true, sess.Apply(ctx, *msg.Control)
	case "view":
		return true, nil
	default:
		return false, fmt.Errorf("unknown message type %q", msg.Type)
	}
}

// writeLoop is the only writer of conn.
func (s *Server) writeLoop(conn *websocket.Conn, c *wsClient) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(wsWriteTimeout))
			return
		case data := <-c.send:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}

func encodeMessage(m wsMessage) []byte {
	data, err := json.Marshal(m)
	if err != nil {
		data, _ = json.Marshal(wsMessage{Type: "error", Error: err.Error()})
	}
	return data
}
