// Package postgres implements the line and report repositories on pgx.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pool on dsn and makes sure the schema exists.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid postgres dsn: %w", err)
	}
	config.MaxConns = 10
	config.MinConns = 1
	config.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres connection failed: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// Order timestamps are stored without a zone: the wall-clock time is what
// the bucketer reads.
const linesTable = `
CREATE TABLE IF NOT EXISTS %[1]s (
	location        TEXT NOT NULL,
	order_id        TEXT NOT NULL,
	line_id         TEXT NOT NULL,
	display_name    TEXT NOT NULL,
	parent_name     TEXT NOT NULL DEFAULT '',
	order_timestamp TIMESTAMP NOT NULL,
	order_date      DATE NOT NULL,
	quantity        NUMERIC NOT NULL,
	voided          BOOLEAN NOT NULL DEFAULT FALSE,
	code            TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (location, order_id, line_id, display_name)
);
CREATE INDEX IF NOT EXISTS idx_%[1]s_date ON %[1]s (order_date, location);
`

const reportTables = `
CREATE TABLE IF NOT EXISTS report_runs (
	location         TEXT NOT NULL,
	order_date       DATE NOT NULL,
	interval_minutes INTEGER NOT NULL,
	categories       JSONB NOT NULL,
	audit            JSONB NOT NULL DEFAULT '{}',
	generation       BIGINT NOT NULL,
	generated_at     TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (location, order_date)
);
CREATE TABLE IF NOT EXISTS report_rows (
	location       TEXT NOT NULL,
	order_date     DATE NOT NULL,
	service        TEXT NOT NULL,
	interval_label TEXT NOT NULL,
	slot           INTEGER NOT NULL,
	counts         JSONB NOT NULL,
	total          INTEGER NOT NULL,
	generation     BIGINT NOT NULL,
	PRIMARY KEY (location, order_date, service, interval_label)
);
`

func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range []string{
		fmt.Sprintf(linesTable, "items_data"),
		fmt.Sprintf(linesTable, "modifiers_data"),
		reportTables,
	} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}
