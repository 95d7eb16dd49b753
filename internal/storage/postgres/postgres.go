// Package postgres implements the swap, pair-flow and token metadata stores on
// PostgreSQL through a shared pgx pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"token-flow-lab/internal/observability"
	"token-flow-lab/internal/storage"
)

// SQLSTATE codes mapped onto storage errors.
const (
	codeUniqueViolation = "23505"
	codeCheckViolation  = "23514"
)

// Pool is the pgx pool shared by every store in this package.
type Pool struct {
	*pgxpool.Pool
}

// PoolOption adjusts the parsed pool config before connecting.
type PoolOption func(*pgxpool.Config)

// WithMaxConns caps open connections. Non-positive values keep the DSN's setting.
func WithMaxConns(n int32) PoolOption {
	return func(c *pgxpool.Config) {
		if n > 0 {
			c.MaxConns = n
		}
	}
}

// WithMaxConnLifetime recycles connections older than d.
func WithMaxConnLifetime(d time.Duration) PoolOption {
	return func(c *pgxpool.Config) {
		if d > 0 {
			c.MaxConnLifetime = d
		}
	}
}

// NewPool parses dsn, applies opts and pings the server before returning.
func NewPool(ctx context.Context, dsn string, opts ...PoolOption) (*Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	for _, opt := range opts {
		opt(cfg)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Pool{Pool: pool}, nil
}

// translate maps driver errors onto the storage sentinels and wraps the rest
// with op.
func translate(op string, err error) error {
	var pgErr *pgconn.PgError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return storage.ErrNotFound
	case errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation:
		return storage.ErrDuplicateKey
	case errors.As(err, &pgErr) && pgErr.Code == codeCheckViolation:
		return fmt.Errorf("%w: %s: constraint %s", storage.ErrInvalidInput, op, pgErr.ConstraintName)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// observe records query latency and failures for operation.
func observe(operation string, start time.Time, err error) {
	observability.RecordDBQuery("postgres", operation, time.Since(start).Seconds(), err)
}
