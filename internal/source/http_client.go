package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"token-flow-lab/internal/domain"
	"token-flow-lab/internal/observability"
)

// Default configuration values.
const (
	DefaultTimeout    = 15 * time.Second
	DefaultMaxRetries = 0
	DefaultRetryDelay = 500 * time.Millisecond
	DefaultMaxDelay   = 5 * time.Second
)

// HTTPClient implements PairSource against the token-pairs API.
type HTTPClient struct {
	baseURL    string
	client     *http.Client
	now        func() time.Time
	maxRetries int
	retryDelay time.Duration
	maxDelay   time.Duration
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// WithClock sets the clock used to compute the window start.
func WithClock(now func() time.Time) ClientOption {
	return func(c *HTTPClient) {
		c.now = now
	}
}

// WithMaxRetries sets retry attempts for transport errors, 429 and 5xx.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = d
	}
}

// NewHTTPClient creates a client for the API rooted at baseURL.
func NewHTTPClient(baseURL string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		client:     &http.Client{Timeout: DefaultTimeout},
		now:        time.Now,
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
		maxDelay:   DefaultMaxDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile-time interface check.
var _ PairSource = (*HTTPClient)(nil)

// FetchPairs performs GET /api/token-pairs/after/{token}/{after}?limit=N.
func (c *HTTPClient) FetchPairs(ctx context.Context, q Query) ([]domain.TokenPair, error) {
	q = q.Normalize()
	start := time.Now()

	pairs, err := c.fetch(ctx, q)

	status := "ok"
	if err != nil {
		status = "error"
	}
	observability.RecordFetch("http", status, time.Since(start).Seconds())
	return pairs, err
}

func (c *HTTPClient) endpoint(q Query) string {
	return fmt.Sprintf("%s/api/token-pairs/after/%s/%d?limit=%s",
		c.baseURL, url.PathEscape(q.Token), q.After(c.now()), strconv.Itoa(q.Limit))
}

func (c *HTTPClient) fetch(ctx context.Context, q Query) ([]domain.TokenPair, error) {
	endpoint := c.endpoint(q)
	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		body, err := c.get(ctx, endpoint)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			if retryable(err) {
				continue
			}
			return nil, err
		}

		var env pairsEnvelope
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, &FetchError{Message: fmt.Sprintf("decode response: %v", err)}
		}
		if !env.Success {
			msg := env.Error
			if msg == "" {
				msg = "request unsuccessful"
			}
			return nil, &FetchError{Status: http.StatusOK, Message: msg}
		}

		pairs, err := decodePairs(env.Data, q.Token)
		if err != nil {
			return nil, &FetchError{Message: err.Error()}
		}
		return pairs, nil
	}

	return nil, lastErr
}

func (c *HTTPClient) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &FetchError{Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Status: resp.StatusCode, Message: fmt.Sprintf("read response: %v", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}
	return body, nil
}

// retryable reports whether a failed request may succeed on a later attempt.
func retryable(err error) bool {
	var fe *FetchError
	if !errors.As(err, &fe) {
		return false
	}
	return fe.Status == 0 || fe.Status == http.StatusTooManyRequests || fe.Status >= 500
}
