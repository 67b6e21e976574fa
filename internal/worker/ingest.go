package worker

import (
	"context"
	"log"
	"time"

	"mindpattern/internal/config"
	"mindpattern/internal/queue"
	"mindpattern/internal/scraper"
)

// Ingest polls journal feeds and queues entries it has not seen before. Only
// the ids of each feed's latest fetch are remembered.
type Ingest struct {
	scraper   scraper.Scraper
	publisher queue.Publisher
	feeds     []string
	interval  time.Duration
	seen      map[string]map[string]bool
}

func NewIngest(s scraper.Scraper, p queue.Publisher, cfg config.IngestConfig) *Ingest {
	return &Ingest{
		scraper:   s,
		publisher: p,
		feeds:     cfg.Feeds,
		interval:  cfg.Interval,
		seen:      make(map[string]map[string]bool),
	}
}

func (w *Ingest) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.scrapeAll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.scrapeAll(ctx)
		}
	}
}

func (w *Ingest) scrapeAll(ctx context.Context) {
	for _, feed := range w.feeds {
		subs, err := w.scraper.Scrape(ctx, feed)
		if err != nil {
			log.Printf("[ERROR] %s: %v", feed, err)
			continue
		}

		log.Printf("[SCRAPE] %s: fetched %d entries", feed, len(subs))

		newCount := 0
		dupCount := 0
		current := make(map[string]bool, len(subs))

		for _, sub := range subs {
			if current[sub.ID] || w.isSeen(sub.ID) {
				current[sub.ID] = true
				dupCount++
				continue
			}

			if err := w.publisher.Publish(ctx, sub); err != nil {
				log.Printf("[ERROR] publish: %v", err)
				continue
			}
			current[sub.ID] = true
			newCount++
			log.Printf("[QUEUED] %s: %s", sub.ID, truncate(sub.Text, 60))
		}

		w.seen[feed] = current
		log.Printf("[STATS] %s: new=%d, duplicates=%d, seen=%d", feed, newCount, dupCount, len(current))
	}
}

func (w *Ingest) isSeen(id string) bool {
	for _, ids := range w.seen {
		if ids[id] {
			return true
		}
	}
	return false
}
