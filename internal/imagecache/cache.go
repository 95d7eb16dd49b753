// Package imagecache holds token image URLs keyed by symbol.
//
// The cache is injected into the encoder and the session; it has no
// invalidation, entries live for the lifetime of the process.
package imagecache

import (
	"strings"
	"sync"
)

// Cache resolves token symbols to image URLs.
type Cache interface {
	// Get returns the image URL for symbol.
	Get(symbol string) (string, bool)
	// Put stores url for symbol. Empty urls are ignored.
	Put(symbol, url string)
	// Missing returns the symbols that have no entry, in input order, deduplicated.
	Missing(symbols []string) []string
}

// Memory is an in-memory Cache safe for concurrent use.
type Memory struct {
	mu   sync.RWMutex
	urls map[string]string
}

// NewMemory creates an empty cache.
func NewMemory() *Memory {
	return &Memory{urls: make(map[string]string)}
}

func key(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Get returns the image URL for symbol.
func (m *Memory) Get(symbol string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	url, ok := m.urls[key(symbol)]
	return url, ok
}

// Put stores url for symbol.
func (m *Memory) Put(symbol, url string) {
	if url == "" || key(symbol) == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.urls[key(symbol)] = url
}

// Missing returns uncached symbols.
func (m *Memory) Missing(symbols []string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]struct{}, len(symbols))
	var out []string
	for _, s := range symbols {
		k := key(s)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		if _, ok := m.urls[k]; !ok {
			out = append(out, k)
		}
	}
	return out
}

// Len returns the number of cached entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.urls)
}

var _ Cache = (*Memory)(nil)
