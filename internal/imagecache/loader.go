package imagecache

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout bounds a single batch request.
const DefaultTimeout = 10 * time.Second

// DefaultBatchSize is the maximum number of symbols per request.
const DefaultBatchSize = 50

// Loader fills a Cache from the batch image endpoint
// GET {base}/api/tokens/images/batch?symbols=A,B,C.
type Loader struct {
	baseURL   string
	client    *http.Client
	cache     Cache
	batchSize int
}

// LoaderOption configures Loader.
type LoaderOption func(*Loader)

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) LoaderOption {
	return func(l *Loader) {
		l.client = client
	}
}

// WithBatchSize sets the number of symbols requested per call.
func WithBatchSize(n int) LoaderOption {
	return func(l *Loader) {
		if n > 0 {
			l.batchSize = n
		}
	}
}

// NewLoader creates a loader writing into cache.
func NewLoader(baseURL string, cache Cache, opts ...LoaderOption) *Loader {
	l := &Loader{
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    &http.Client{Timeout: DefaultTimeout},
		cache:     cache,
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

type imageEntry struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	ImageURL string `json:"imageUrl"`
}

type batchResponse struct {
	Success bool                  `json:"success"`
	Data    map[string]imageEntry `json:"data"`
	Error   string                `json:"error"`
}

// Load fetches image URLs for the symbols not yet cached and returns how many
// entries were added. Symbols the endpoint does not know are left uncached.
func (l *Loader) Load(ctx context.Context, symbols []string) (int, error) {
	missing := l.cache.Missing(symbols)
	added := 0
	for start := 0; start < len(missing); start += l.batchSize {
		end := start + l.batchSize
		if end > len(missing) {
			end = len(missing)
		}
		n, err := l.loadBatch(ctx, missing[start:end])
		added += n
		if err != nil {
			return added, err
		}
	}
	return added, nil
}

func (l *Loader) loadBatch(ctx context.Context, symbols []string) (int, error) {
	u := l.baseURL + "/api/tokens/images/batch?symbols=" + url.QueryEscape(strings.Join(symbols, ","))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch images: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("fetch images: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var br batchResponse
	if err := json.Unmarshal(body, &br); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}
	if !br.Success {
		return 0, fmt.Errorf("fetch images: %s", br.Error)
	}

	added := 0
	for symbol, entry := range br.Data {
		if entry.ImageURL == "" {
			continue
		}
		l.cache.Put(symbol, entry.ImageURL)
		added++
	}
	return added, nil
}
