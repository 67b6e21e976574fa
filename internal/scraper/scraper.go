package scraper

import (
	"context"

	"mindpattern/internal/domain"
)

type Scraper interface {
	Scrape(ctx context.Context, feedURL string) ([]domain.Submission, error)
}
