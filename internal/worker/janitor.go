package worker

import (
	"context"
	"log"
	"time"

	"mindpattern/internal/config"
)

type Purger interface {
	Purge(ctx context.Context, before time.Time) (int64, error)
}

// Janitor deletes analyses older than the retention period.
type Janitor struct {
	repo      Purger
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
}

func NewJanitor(repo Purger, cfg config.StorageConfig) *Janitor {
	return &Janitor{
		repo:      repo,
		retention: cfg.Retention,
		interval:  cfg.PurgeInterval,
		now:       time.Now,
	}
}

func (w *Janitor) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce purges expired analyses and returns how many were removed.
func (w *Janitor) RunOnce(ctx context.Context) int64 {
	cutoff := w.now().Add(-w.retention)

	n, err := w.repo.Purge(ctx, cutoff)
	if err != nil {
		log.Printf("[ERROR] purge: %v", err)
		return 0
	}
	if n > 0 {
		log.Printf("[PURGE] removed %d analyses older than %s", n, cutoff.Format(time.RFC3339))
	}
	return n
}
