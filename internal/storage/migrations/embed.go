package migrations

import "embed"

//go:embed postgres/*.sql
var postgresFiles embed.FS

//go:embed clickhouse/*.sql
var clickhouseFiles embed.FS

// Postgres returns the embedded PostgreSQL migrations.
func Postgres() ([]Migration, error) {
	return Load(postgresFiles, "postgres")
}

// Clickhouse returns the embedded ClickHouse migrations.
func Clickhouse() ([]Migration, error) {
	return Load(clickhouseFiles, "clickhouse")
}
