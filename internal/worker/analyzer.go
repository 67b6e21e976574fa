package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"mindpattern/internal/classifier"
	"mindpattern/internal/domain"
	"mindpattern/internal/notifier"
	"mindpattern/internal/queue"
	"mindpattern/internal/storage"
)

type Resolver interface {
	Resolve(ctx context.Context, text string) (*classifier.Result, error)
}

type Broadcaster interface {
	Broadcast(msg string)
}

// Analyzer resolves submissions and fans the result out to history, live
// listeners and alerts. Every dependency but the resolver is optional.
type Analyzer struct {
	resolver    Resolver
	repo        storage.AnalysisRepository
	broadcaster Broadcaster
	notifier    notifier.Notifier
	policy      notifier.Policy
}

func NewAnalyzer(r Resolver, repo storage.AnalysisRepository, b Broadcaster, n notifier.Notifier, p notifier.Policy) *Analyzer {
	return &Analyzer{
		resolver:    r,
		repo:        repo,
		broadcaster: b,
		notifier:    n,
		policy:      p,
	}
}

// Analyze resolves one submission. The analysis is broadcast and alerted
// only once it is stored; when storing fails the analysis is still returned,
// together with the error.
func (w *Analyzer) Analyze(ctx context.Context, sub domain.Submission) (*domain.Analysis, error) {
	result, err := w.resolver.Resolve(ctx, sub.Text)
	if err != nil {
		return nil, err
	}

	a := domain.NewAnalysis(sub, string(result.TopPattern), toScores(result.ConfidenceScores), result.Strategy)

	if w.repo != nil {
		if err := w.repo.Save(ctx, a); err != nil {
			if !errors.Is(err, storage.ErrDuplicate) {
				log.Printf("[ERROR] save: %v", err)
			}
			return &a, fmt.Errorf("save analysis: %w", err)
		}
	}

	if w.broadcaster != nil {
		if data, err := json.Marshal(a); err == nil {
			w.broadcaster.Broadcast(string(data))
		}
	}

	if w.notifier != nil && w.policy.ShouldNotify(a) {
		log.Printf("[DETECTED] %s (%.2f, %s): %s", a.TopPattern, a.TopScore(), a.Strategy, truncate(sub.Text, 60))

		if err := w.notifier.Notify(ctx, notifier.Notification{Submission: sub, Analysis: a}); err != nil {
			log.Printf("[ERROR] notify: %v", err)
		}
	}

	return &a, nil
}

func toScores(d classifier.Distribution) []domain.Score {
	scores := make([]domain.Score, len(d))
	for i, s := range d {
		scores[i] = domain.Score{Label: string(s.Label), Score: s.Score}
	}
	return scores
}

// Consume analyzes submissions from the queue until ctx is done.
func (w *Analyzer) Consume(ctx context.Context, c queue.Consumer) error {
	return c.Consume(ctx, w.handleSubmission)
}

func (w *Analyzer) handleSubmission(ctx context.Context, sub domain.Submission) error {
	log.Printf("[RECEIVED] %s %s: %s", sub.Source, sub.ID, truncate(sub.Text, 60))

	if w.repo != nil && sub.ID != "" {
		exists, err := w.repo.Exists(ctx, sub.ID)
		if err != nil {
			log.Printf("[ERROR] exists: %v", err)
			return err
		}
		if exists {
			log.Printf("[DUPLICATE] %s", sub.ID)
			return nil
		}
	}

	a, err := w.Analyze(ctx, sub)

	var invalid *classifier.ErrValidation
	switch {
	case errors.As(err, &invalid):
		log.Printf("[SKIP] %s: %v", sub.ID, err)
		return nil
	case errors.Is(err, storage.ErrDuplicate):
		log.Printf("[DUPLICATE] %s", sub.ID)
		return nil
	case a == nil && err != nil:
		log.Printf("[ERROR] analyze %s: %v", sub.ID, err)
		return nil
	case err != nil:
		return err
	}

	log.Printf("[ANALYZED] %s: %s via %s", sub.ID, a.TopPattern, a.Strategy)
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
