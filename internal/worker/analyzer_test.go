package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindpattern/internal/classifier"
	"mindpattern/internal/domain"
	"mindpattern/internal/notifier"
	"mindpattern/internal/storage"
)

const anxious = "I feel really anxious about my upcoming presentation. My heart is racing and I can't stop worrying."

func TestAnalyzer_Analyze(t *testing.T) {
	repo := &fakeRepo{}
	b := &fakeBroadcaster{}
	n := &fakeNotifier{}
	w := NewAnalyzer(lexicalResolver(), repo, b, n, notifier.Policy{Patterns: []string{"Anxiety"}, MinScore: 0.5})

	sub := domain.Submission{ID: "sub-1", SessionID: "s1", Text: anxious, Source: domain.SourceAPI}
	a, err := w.Analyze(context.Background(), sub)
	require.NoError(t, err)

	assert.Equal(t, "Anxiety", a.TopPattern)
	assert.Equal(t, classifier.FallbackName, a.Strategy)
	assert.Equal(t, "sub-1", a.SubmissionID)
	assert.Equal(t, "s1", a.SessionID)
	require.Len(t, a.ConfidenceScores, 3)

	require.Len(t, repo.saved, 1)
	assert.Equal(t, a.ID, repo.saved[0].ID)

	require.Len(t, b.messages, 1)
	var broadcast domain.Analysis
	require.NoError(t, json.Unmarshal([]byte(b.messages[0]), &broadcast))
	assert.Equal(t, a.ID, broadcast.ID)

	require.Len(t, n.sent, 1)
	assert.Equal(t, sub, n.sent[0].Submission)
}

func TestAnalyzer_AnalyzeWithoutOptionalDependencies(t *testing.T) {
	w := NewAnalyzer(lexicalResolver(), nil, nil, nil, notifier.Policy{})

	a, err := w.Analyze(context.Background(), domain.Submission{Text: anxious})
	require.NoError(t, err)
	assert.Equal(t, "Anxiety", a.TopPattern)
}

func TestAnalyzer_PolicyFiltersAlerts(t *testing.T) {
	n := &fakeNotifier{}
	w := NewAnalyzer(lexicalResolver(), nil, nil, n, notifier.Policy{Patterns: []string{"Bipolar"}})

	_, err := w.Analyze(context.Background(), domain.Submission{Text: anxious})
	require.NoError(t, err)
	assert.Empty(t, n.sent)
}

func TestAnalyzer_NotifyFailureIsNotFatal(t *testing.T) {
	n := &fakeNotifier{err: errors.New("telegram down")}
	w := NewAnalyzer(lexicalResolver(), nil, nil, n, notifier.Policy{})

	a, err := w.Analyze(context.Background(), domain.Submission{Text: anxious})
	require.NoError(t, err)
	assert.NotNil(t, a)
	assert.Len(t, n.sent, 1)
}

func TestAnalyzer_SaveFailureReturnsAnalysis(t *testing.T) {
	repo := &fakeRepo{SaveFunc: func(domain.Analysis) error { return errors.New("disk full") }}
	b := &fakeBroadcaster{}
	n := &fakeNotifier{}
	w := NewAnalyzer(lexicalResolver(), repo, b, n, notifier.Policy{})

	a, err := w.Analyze(context.Background(), domain.Submission{Text: anxious})
	assert.Error(t, err)
	require.NotNil(t, a)
	assert.Equal(t, "Anxiety", a.TopPattern)

	// Nothing is announced until the analysis is stored, so a redelivery
	// does not alert twice.
	assert.Empty(t, b.messages)
	assert.Empty(t, n.sent)
}

func TestAnalyzer_RetryAlertsOnce(t *testing.T) {
	failures := 1
	repo := &fakeRepo{SaveFunc: func(domain.Analysis) error {
		if failures > 0 {
			failures--
			return errors.New("db down")
		}
		return nil
	}}
	n := &fakeNotifier{}
	w := NewAnalyzer(lexicalResolver(), repo, nil, n, notifier.Policy{})
	sub := domain.Submission{ID: "sub-1", Text: anxious}

	require.Error(t, w.handleSubmission(context.Background(), sub))
	require.NoError(t, w.handleSubmission(context.Background(), sub))

	assert.Len(t, repo.saved, 1)
	assert.Len(t, n.sent, 1)
}

func TestAnalyzer_ValidationError(t *testing.T) {
	repo := &fakeRepo{}
	w := NewAnalyzer(lexicalResolver(), repo, nil, nil, notifier.Policy{})

	a, err := w.Analyze(context.Background(), domain.Submission{Text: "hi"})
	assert.Nil(t, a)
	var invalid *classifier.ErrValidation
	assert.ErrorAs(t, err, &invalid)
	assert.Empty(t, repo.saved)
}

func TestAnalyzer_HandleSubmission(t *testing.T) {
	tests := []struct {
		name      string
		repo      *fakeRepo
		text      string
		wantErr   bool
		wantSaved int
	}{
		{"analyzed", &fakeRepo{}, anxious, false, 1},
		{"duplicate", &fakeRepo{ExistsFunc: func(string) (bool, error) { return true, nil }}, anxious, false, 0},
		{"too short is acknowledged", &fakeRepo{}, "ok", false, 0},
		{"exists failure is retried", &fakeRepo{ExistsFunc: func(string) (bool, error) { return false, errors.New("db down") }}, anxious, true, 0},
		{"save failure is retried", &fakeRepo{SaveFunc: func(domain.Analysis) error { return errors.New("db down") }}, anxious, true, 0},
		{"stored concurrently", &fakeRepo{SaveFunc: func(domain.Analysis) error { return storage.ErrDuplicate }}, anxious, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewAnalyzer(lexicalResolver(), tt.repo, nil, nil, notifier.Policy{})

			err := w.handleSubmission(context.Background(), domain.Submission{ID: "sub-1", Text: tt.text})
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Len(t, tt.repo.saved, tt.wantSaved)
		})
	}
}

func TestAnalyzer_HandleSubmissionResolverFailure(t *testing.T) {
	r := &fakeResolver{ResolveFunc: func(context.Context, string) (*classifier.Result, error) {
		return nil, &classifier.ErrInternal{Err: errors.New("boom")}
	}}
	w := NewAnalyzer(r, &fakeRepo{}, nil, nil, notifier.Policy{})

	assert.NoError(t, w.handleSubmission(context.Background(), domain.Submission{ID: "sub-1", Text: anxious}))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "héllo...", truncate("héllo wörld", 5))
}
