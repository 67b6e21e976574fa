package storage

import (
	"context"
	"fmt"
	"time"

	"mindpattern/internal/config"
	"mindpattern/internal/domain"
)

type AnalysisRepository interface {
	Save(ctx context.Context, a domain.Analysis) error
	FindByID(ctx context.Context, id string) (*domain.Analysis, error)
	FindAll(ctx context.Context, limit, offset int) ([]domain.Analysis, error)
	FindBySession(ctx context.Context, sessionID string, limit int) ([]domain.Analysis, error)
	Exists(ctx context.Context, submissionID string) (bool, error)
	Stats(ctx context.Context, since time.Time) (*domain.Stats, error)
	Purge(ctx context.Context, before time.Time) (int64, error)
	Close() error
}

// Open connects to the configured database and creates the schema.
func Open(ctx context.Context, cfg config.StorageConfig) (*DB, error) {
	switch cfg.Driver {
	case "postgres":
		return NewPostgres(ctx, cfg.DSN)
	case "sqlite":
		return NewSQLite(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
