package migrations

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

const clickhouseVersionTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version    UInt32,
    name       String,
    applied_at DateTime DEFAULT now()
) ENGINE = MergeTree
ORDER BY version`

// ClickhouseDB is the part of a ClickHouse connection the runner uses.
type ClickhouseDB interface {
	Exec(ctx context.Context, query string, args ...any) error
	Query(ctx context.Context, query string, args ...any) (driver.Rows, error)
}

// RunClickhouseMigrations applies the pending embedded migrations statement by
// statement and returns the names of those applied. ClickHouse has no DDL
// transactions: a file that fails halfway is retried in full on the next run,
// so its statements must use IF NOT EXISTS.
func RunClickhouseMigrations(ctx context.Context, db ClickhouseDB) ([]string, error) {
	all, err := Clickhouse()
	if err != nil {
		return nil, err
	}

	if err := db.Exec(ctx, clickhouseVersionTable); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}
	applied, err := clickhouseApplied(ctx, db)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, m := range pending(all, applied) {
		for _, stmt := range SplitStatements(m.SQL) {
			if err := db.Exec(ctx, stmt); err != nil {
				return names, fmt.Errorf("apply migration %s: %w", m.Name, err)
			}
		}
		if err := db.Exec(ctx,
			`INSERT INTO schema_migrations (version, name) VALUES (?, ?)`, uint32(m.Version), m.Name,
		); err != nil {
			return names, fmt.Errorf("record migration %s: %w", m.Name, err)
		}
		names = append(names, m.Name)
	}
	return names, nil
}

func clickhouseApplied(ctx context.Context, db ClickhouseDB) (map[int]bool, error) {
	rows, err := db.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("read schema_migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var v uint32
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan schema_migrations: %w", err)
		}
		applied[int(v)] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read schema_migrations: %w", err)
	}
	return applied, nil
}
