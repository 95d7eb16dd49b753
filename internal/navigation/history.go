// Package navigation tracks the breadcrumb path of previously centred tokens.
package navigation

// MaxDepth is the maximum number of retained history entries.
const MaxDepth = 10

// History is the breadcrumb trail: previously centred tokens, oldest first,
// plus the current token. Not safe for concurrent use.
type History struct {
	current string
	path    []string
}

// New creates a history positioned at current.
func New(current string) *History {
	return &History{current: current}
}

// Current returns the current token.
func (h *History) Current() string {
	return h.current
}

// Path returns a copy of the history, oldest first. The current token is not included.
func (h *History) Path() []string {
	out := make([]string, len(h.path))
	copy(out, h.path)
	return out
}

// Len returns the number of history entries.
func (h *History) Len() int {
	return len(h.path)
}

// NavigateToToken moves to next, pushing the current token onto the history.
// Navigating to the current token is a no-op. Returns whether anything changed.
func (h *History) NavigateToToken(next string) bool {
	if next == h.current {
		return false
	}
	if h.current != "" {
		h.path = append(h.path, h.current)
		if len(h.path) > MaxDepth {
			h.path = append([]string(nil), h.path[len(h.path)-MaxDepth:]...)
		}
	}
	h.current = next
	return true
}

// NavigateToBreadcrumb jumps to target. If target is in the history, the history
// is cut to the entries strictly before it; otherwise the history is cleared.
func (h *History) NavigateToBreadcrumb(target string) {
	h.current = target
	for i, tok := range h.path {
		if tok == target {
			h.path = h.path[:i]
			return
		}
	}
	h.path = nil
}

// Clone returns an independent copy of h.
func (h *History) Clone() *History {
	return &History{current: h.current, path: h.Path()}
}

// ClearHistory empties the history. The current token is unchanged.
func (h *History) ClearHistory() {
	h.path = nil
}
