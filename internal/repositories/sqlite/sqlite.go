// Package sqlite is the local, file-backed implementation of the line and
// report repositories.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS items_data (
  location        TEXT NOT NULL,
  order_id        TEXT NOT NULL,
  line_id         TEXT NOT NULL,
  display_name    TEXT NOT NULL,
  parent_name     TEXT NOT NULL DEFAULT '',
  order_timestamp TEXT NOT NULL,
  order_date      TEXT NOT NULL,
  quantity        TEXT NOT NULL,
  voided          INTEGER NOT NULL CHECK (voided IN (0,1)),
  code            TEXT NOT NULL DEFAULT '',
  PRIMARY KEY (location, order_id, line_id, display_name)
);
CREATE INDEX IF NOT EXISTS idx_items_date ON items_data(order_date, location);
CREATE TABLE IF NOT EXISTS modifiers_data (
  location        TEXT NOT NULL,
  order_id        TEXT NOT NULL,
  line_id         TEXT NOT NULL,
  display_name    TEXT NOT NULL,
  parent_name     TEXT NOT NULL DEFAULT '',
  order_timestamp TEXT NOT NULL,
  order_date      TEXT NOT NULL,
  quantity        TEXT NOT NULL,
  voided          INTEGER NOT NULL CHECK (voided IN (0,1)),
  code            TEXT NOT NULL DEFAULT '',
  PRIMARY KEY (location, order_id, line_id, display_name)
);
CREATE INDEX IF NOT EXISTS idx_modifiers_date ON modifiers_data(order_date, location);
CREATE TABLE IF NOT EXISTS report_runs (
  location         TEXT NOT NULL,
  order_date       TEXT NOT NULL,
  interval_minutes INTEGER NOT NULL,
  categories       TEXT NOT NULL,
  audit            TEXT NOT NULL DEFAULT '{}',
  generation       INTEGER NOT NULL,
  generated_at     TEXT NOT NULL,
  PRIMARY KEY (location, order_date)
);
CREATE TABLE IF NOT EXISTS report_rows (
  location       TEXT NOT NULL,
  order_date     TEXT NOT NULL,
  service        TEXT NOT NULL,
  interval_label TEXT NOT NULL,
  slot           INTEGER NOT NULL,
  counts         TEXT NOT NULL,
  total          INTEGER NOT NULL,
  generation     INTEGER NOT NULL,
  PRIMARY KEY (location, order_date, service, interval_label)
);
`

// Open opens (creating if needed) the database at path and ensures the
// schema exists.
func Open(path string) (*sql.DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// one writer at a time; concurrent report writes queue on the pool
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating schema: %w", err)
	}
	return db, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
