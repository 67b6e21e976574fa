package worker

import (
	"context"
	"sync"
	"time"

	"mindpattern/internal/classifier"
	"mindpattern/internal/domain"
	"mindpattern/internal/notifier"
)

type fakeResolver struct {
	ResolveFunc func(ctx context.Context, text string) (*classifier.Result, error)
}

func (f *fakeResolver) Resolve(ctx context.Context, text string) (*classifier.Result, error) {
	return f.ResolveFunc(ctx, text)
}

func lexicalResolver() *fakeResolver {
	r := classifier.NewResolver(nil, nil)
	return &fakeResolver{ResolveFunc: r.Resolve}
}

type fakeRepo struct {
	mu         sync.Mutex
	saved      []domain.Analysis
	SaveFunc   func(a domain.Analysis) error
	ExistsFunc func(id string) (bool, error)
}

func (f *fakeRepo) Save(_ context.Context, a domain.Analysis) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SaveFunc != nil {
		if err := f.SaveFunc(a); err != nil {
			return err
		}
	}
	f.saved = append(f.saved, a)
	return nil
}

func (f *fakeRepo) FindByID(context.Context, string) (*domain.Analysis, error) { return nil, nil }

func (f *fakeRepo) FindAll(context.Context, int, int) ([]domain.Analysis, error) { return nil, nil }

func (f *fakeRepo) FindBySession(context.Context, string, int) ([]domain.Analysis, error) {
	return nil, nil
}

func (f *fakeRepo) Exists(_ context.Context, id string) (bool, error) {
	if f.ExistsFunc != nil {
		return f.ExistsFunc(id)
	}
	return false, nil
}

func (f *fakeRepo) Stats(context.Context, time.Time) (*domain.Stats, error) { return &domain.Stats{}, nil }

func (f *fakeRepo) Purge(context.Context, time.Time) (int64, error) { return 0, nil }

func (f *fakeRepo) Close() error { return nil }

type fakeBroadcaster struct {
	messages []string
}

func (f *fakeBroadcaster) Broadcast(msg string) { f.messages = append(f.messages, msg) }

type fakeNotifier struct {
	sent []notifier.Notification
	err  error
}

func (f *fakeNotifier) Notify(_ context.Context, n notifier.Notification) error {
	f.sent = append(f.sent, n)
	return f.err
}

type fakePublisher struct {
	published []domain.Submission
	err       error
}

func (f *fakePublisher) Publish(_ context.Context, sub domain.Submission) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, sub)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

type fakeScraper struct {
	entries map[string][]domain.Submission
	err     error
	calls   int
}

func (f *fakeScraper) Scrape(_ context.Context, feedURL string) ([]domain.Submission, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.entries[feedURL], nil
}

type fakePurger struct {
	before []time.Time
	n      int64
	err    error
}

func (f *fakePurger) Purge(_ context.Context, before time.Time) (int64, error) {
	f.before = append(f.before, before)
	return f.n, f.err
}
