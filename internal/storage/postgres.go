package storage

import (
	"context"
	"database/sql"

	_ "github.com/lib/pq"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS analyses (
		id                TEXT PRIMARY KEY,
		submission_id     TEXT NOT NULL DEFAULT '',
		session_id        TEXT NOT NULL DEFAULT '',
		text              TEXT NOT NULL,
		top_pattern       TEXT NOT NULL,
		confidence_scores TEXT NOT NULL,
		strategy          TEXT NOT NULL,
		source            TEXT NOT NULL,
		created_at        TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS analyses_created_at_idx ON analyses (created_at)`,
	`CREATE INDEX IF NOT EXISTS analyses_session_id_idx ON analyses (session_id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS analyses_submission_id_key ON analyses (submission_id) WHERE submission_id <> ''`,
}

func NewPostgres(ctx context.Context, dsn string) (*DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	d := &DB{db: db, rebind: identity}
	if err := d.migrate(ctx, postgresSchema); err != nil {
		db.Close()
		return nil, err
	}

	return d, nil
}
