package storage

import (
	"context"
	"database/sql"
	"fmt"

	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS analyses (
		id                TEXT PRIMARY KEY,
		submission_id     TEXT NOT NULL DEFAULT '',
		session_id        TEXT NOT NULL DEFAULT '',
		text              TEXT NOT NULL,
		top_pattern       TEXT NOT NULL,
		confidence_scores TEXT NOT NULL,
		strategy          TEXT NOT NULL,
		source            TEXT NOT NULL,
		created_at        TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS analyses_created_at_idx ON analyses (created_at)`,
	`CREATE INDEX IF NOT EXISTS analyses_session_id_idx ON analyses (session_id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS analyses_submission_id_key ON analyses (submission_id) WHERE submission_id <> ''`,
}

// NewSQLite opens a single-node history database, e.g. "file:analyses.db".
func NewSQLite(ctx context.Context, dsn string) (*DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One writer; also keeps in-memory databases on a single connection.
	db.SetMaxOpenConns(1)

	for _, p := range []string{"PRAGMA busy_timeout = 5000", "PRAGMA synchronous = NORMAL"} {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}

	d := &DB{db: db, rebind: questionMarks}
	if err := d.migrate(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return d, nil
}
