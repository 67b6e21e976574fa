package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"mindpattern/internal/domain"
)

// ErrDuplicate is returned by Save when the analysis or its submission is
// already stored.
var ErrDuplicate = errors.New("analysis already stored")

// DB is the analysis history table on either supported database.
type DB struct {
	db     *sql.DB
	rebind func(string) string
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) migrate(ctx context.Context, schema []string) error {
	for _, stmt := range schema {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

const analysisColumns = `id, submission_id, session_id, text, top_pattern, confidence_scores, strategy, source, created_at`

func (d *DB) Save(ctx context.Context, a domain.Analysis) error {
	scores, err := json.Marshal(a.ConfidenceScores)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO analyses (` + analysisColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT DO NOTHING
	`

	res, err := d.db.ExecContext(ctx, d.rebind(query),
		a.ID,
		a.SubmissionID,
		a.SessionID,
		a.Text,
		a.TopPattern,
		string(scores),
		a.Strategy,
		a.Source,
		a.CreatedAt.UTC(),
	)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrDuplicate
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(s scanner) (*domain.Analysis, error) {
	var (
		a      domain.Analysis
		scores string
	)
	if err := s.Scan(
		&a.ID,
		&a.SubmissionID,
		&a.SessionID,
		&a.Text,
		&a.TopPattern,
		&scores,
		&a.Strategy,
		&a.Source,
		&a.CreatedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(scores), &a.ConfidenceScores); err != nil {
		return nil, err
	}
	a.CreatedAt = a.CreatedAt.UTC()

	return &a, nil
}

func (d *DB) FindByID(ctx context.Context, id string) (*domain.Analysis, error) {
	query := `SELECT ` + analysisColumns + ` FROM analyses WHERE id = $1`

	a, err := scanAnalysis(d.db.QueryRowContext(ctx, d.rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return a, nil
}

func (d *DB) FindAll(ctx context.Context, limit, offset int) ([]domain.Analysis, error) {
	query := `
		SELECT ` + analysisColumns + `
		FROM analyses ORDER BY created_at DESC LIMIT $1 OFFSET $2
	`
	return d.list(ctx, query, limit, offset)
}

func (d *DB) FindBySession(ctx context.Context, sessionID string, limit int) ([]domain.Analysis, error) {
	query := `
		SELECT ` + analysisColumns + `
		FROM analyses WHERE session_id = $1 ORDER BY created_at DESC LIMIT $2
	`
	return d.list(ctx, query, sessionID, limit)
}

func (d *DB) list(ctx context.Context, query string, args ...any) ([]domain.Analysis, error) {
	rows, err := d.db.QueryContext(ctx, d.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	analyses := []domain.Analysis{}
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		analyses = append(analyses, *a)
	}

	return analyses, rows.Err()
}

// Exists reports whether a submission has already been analyzed.
func (d *DB) Exists(ctx context.Context, submissionID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM analyses WHERE submission_id = $1)`

	var exists bool
	err := d.db.QueryRowContext(ctx, d.rebind(query), submissionID).Scan(&exists)
	return exists, err
}

// Stats counts analyses created at or after since. A zero since counts all.
func (d *DB) Stats(ctx context.Context, since time.Time) (*domain.Stats, error) {
	stats := &domain.Stats{
		ByPattern:  map[string]int{},
		ByStrategy: map[string]int{},
	}

	query := `
		SELECT top_pattern, strategy, COUNT(*)
		FROM analyses WHERE created_at >= $1
		GROUP BY top_pattern, strategy
	`

	rows, err := d.db.QueryContext(ctx, d.rebind(query), since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			pattern, strategy string
			n                 int
		)
		if err := rows.Scan(&pattern, &strategy, &n); err != nil {
			return nil, err
		}
		stats.Total += n
		stats.ByPattern[pattern] += n
		stats.ByStrategy[strategy] += n
	}

	return stats, rows.Err()
}

// Purge deletes analyses older than before.
func (d *DB) Purge(ctx context.Context, before time.Time) (int64, error) {
	query := `DELETE FROM analyses WHERE created_at < $1`

	res, err := d.db.ExecContext(ctx, d.rebind(query), before.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func identity(q string) string { return q }

// questionMarks rewrites $n placeholders to SQLite's ?n form.
func questionMarks(q string) string {
	return strings.ReplaceAll(q, "$", "?")
}
