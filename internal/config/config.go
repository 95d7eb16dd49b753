// Package config loads service settings from the environment, after merging an
// optional .env file. Existing environment variables always win over the file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"token-flow-lab/internal/domain"
)

// Source backends.
const (
	SourceHTTP       = "http"
	SourcePostgres   = "postgres"
	SourceClickhouse = "clickhouse"
	SourceMemory     = "memory"
)

// Config holds settings shared by the binaries.
type Config struct {
	Source        string // FLOW_SOURCE
	APIBaseURL    string // PAIRS_API_URL
	ImagesBaseURL string // IMAGES_API_URL, defaults to PAIRS_API_URL
	PostgresDSN   string // POSTGRES_DSN
	ClickhouseDSN string // CLICKHOUSE_DSN

	PostgresMaxConns int // POSTGRES_MAX_CONNS, 0 keeps the pgx default

	HTTPAddr     string        // HTTP_ADDR
	FetchTimeout time.Duration // FETCH_TIMEOUT
	FetchRetries int           // FETCH_RETRIES

	DefaultToken  string            // DEFAULT_TOKEN
	DefaultLimit  int               // DEFAULT_LIMIT
	DefaultWindow domain.TimeWindow // DEFAULT_WINDOW_MINUTES

	LayoutWidth        float64       // LAYOUT_WIDTH
	LayoutHeight       float64       // LAYOUT_HEIGHT
	LayoutTickInterval time.Duration // LAYOUT_TICK_INTERVAL
	SessionIdleTimeout time.Duration // SESSION_IDLE_TIMEOUT
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Source:             SourceHTTP,
		HTTPAddr:           ":8080",
		FetchTimeout:       15 * time.Second,
		DefaultToken:       "WETH",
		DefaultLimit:       domain.DefaultLimit,
		DefaultWindow:      domain.DefaultWindow,
		LayoutWidth:        800,
		LayoutHeight:       600,
		LayoutTickInterval: 16 * time.Millisecond,
		SessionIdleTimeout: 30 * time.Minute,
	}
}

// LoadEnvFile merges the given .env files (default ".env") into the process
// environment. Missing files are ignored.
func LoadEnvFile(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads Config from the environment on top of Default and validates it.
func Load() (Config, error) {
	c, err := Parse()
	if err != nil {
		return c, err
	}
	return c, c.Validate()
}

// Parse reads Config from the environment on top of Default without
// cross-field validation, for binaries that apply flag overrides first.
func Parse() (Config, error) {
	c := Default()
	var errs []error

	c.Source = strings.ToLower(getString("FLOW_SOURCE", c.Source))
	c.APIBaseURL = getString("PAIRS_API_URL", c.APIBaseURL)
	c.ImagesBaseURL = getString("IMAGES_API_URL", c.APIBaseURL)
	c.PostgresDSN = getString("POSTGRES_DSN", c.PostgresDSN)
	c.ClickhouseDSN = getString("CLICKHOUSE_DSN", c.ClickhouseDSN)
	c.HTTPAddr = getString("HTTP_ADDR", c.HTTPAddr)
	c.DefaultToken = getString("DEFAULT_TOKEN", c.DefaultToken)

	c.FetchTimeout = getDuration("FETCH_TIMEOUT", c.FetchTimeout, &errs)
	c.FetchRetries = getInt("FETCH_RETRIES", c.FetchRetries, &errs)
	c.PostgresMaxConns = getInt("POSTGRES_MAX_CONNS", c.PostgresMaxConns, &errs)
	c.DefaultLimit = getInt("DEFAULT_LIMIT", c.DefaultLimit, &errs)
	c.DefaultWindow = domain.TimeWindow(getInt("DEFAULT_WINDOW_MINUTES", int(c.DefaultWindow), &errs))
	c.LayoutWidth = getFloat("LAYOUT_WIDTH", c.LayoutWidth, &errs)
	c.LayoutHeight = getFloat("LAYOUT_HEIGHT", c.LayoutHeight, &errs)
	c.LayoutTickInterval = getDuration("LAYOUT_TICK_INTERVAL", c.LayoutTickInterval, &errs)
	c.SessionIdleTimeout = getDuration("SESSION_IDLE_TIMEOUT", c.SessionIdleTimeout, &errs)

	return c, errors.Join(errs...)
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	switch c.Source {
	case SourceHTTP:
		if c.APIBaseURL == "" {
			return errors.New("PAIRS_API_URL is required for the http source")
		}
	case SourcePostgres:
		if c.PostgresDSN == "" {
			return errors.New("POSTGRES_DSN is required for the postgres source")
		}
	case SourceClickhouse:
		if c.ClickhouseDSN == "" {
			return errors.New("CLICKHOUSE_DSN is required for the clickhouse source")
		}
	case SourceMemory:
	default:
		return fmt.Errorf("unknown FLOW_SOURCE %q", c.Source)
	}

	if !validLimit(c.DefaultLimit) {
		return fmt.Errorf("DEFAULT_LIMIT %d not in %v", c.DefaultLimit, domain.Limits)
	}
	if !c.DefaultWindow.IsValid() {
		return fmt.Errorf("DEFAULT_WINDOW_MINUTES %d is not a supported window", int(c.DefaultWindow))
	}
	if c.PostgresMaxConns < 0 {
		return fmt.Errorf("POSTGRES_MAX_CONNS %d must not be negative", c.PostgresMaxConns)
	}
	if c.LayoutWidth <= 0 || c.LayoutHeight <= 0 {
		return errors.New("layout viewport must be positive")
	}
	return nil
}

func validLimit(n int) bool {
	for _, l := range domain.Limits {
		if l == n {
			return true
		}
	}
	return false
}

func getString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int, errs *[]error) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func getFloat(key string, def float64, errs *[]error) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return f
}

func getDuration(key string, def time.Duration, errs *[]error) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}
