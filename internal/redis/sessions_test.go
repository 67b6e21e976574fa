package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindpattern/internal/config"
	"mindpattern/internal/domain"
)

func newTestSessions(t *testing.T, maxAnalyses int) (*Sessions, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	s := NewWithClient(rdb, config.SessionsConfig{TTL: time.Hour, MaxAnalyses: maxAnalyses})
	t.Cleanup(func() { s.Close() })
	return s, mr
}

func sessionAnalysis(id, pattern string) domain.Analysis {
	return domain.Analysis{
		ID:               id,
		SessionID:        "s1",
		Text:             "everything feels heavy",
		TopPattern:       pattern,
		ConfidenceScores: []domain.Score{{Label: pattern, Score: 1}},
		Strategy:         "lexical",
		Source:           domain.SourceSession,
		CreatedAt:        time.Now().UTC(),
	}
}

func ids(analyses []domain.Analysis) []string {
	out := make([]string, len(analyses))
	for i, a := range analyses {
		out[i] = a.ID
	}
	return out
}

func TestSessions_Create(t *testing.T) {
	s, mr := newTestSessions(t, 50)
	ctx := context.Background()

	first, err := s.Create(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", first.ID)
	assert.Equal(t, time.Hour, mr.TTL(sessionKey("s1")))

	// Creating a live session renews it and keeps its creation time.
	again, err := s.Create(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, first.CreatedAt.Equal(again.CreatedAt))

	generated, err := s.Create(ctx, "")
	require.NoError(t, err)
	assert.NotEmpty(t, generated.ID)
	assert.NotEqual(t, "s1", generated.ID)
}

func TestSessions_UnknownSession(t *testing.T) {
	s, _ := newTestSessions(t, 50)
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
	}{
		{"touch", func() error { _, err := s.Touch(ctx, "nope"); return err }},
		{"append", func() error { return s.Append(ctx, "nope", sessionAnalysis("a1", "Anxiety")) }},
		{"history", func() error { _, err := s.History(ctx, "nope", 0); return err }},
		{"delete", func() error { return s.Delete(ctx, "nope") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.call(), ErrNotFound)
		})
	}
}

func TestSessions_HistoryNewestFirstAndCapped(t *testing.T) {
	s, _ := newTestSessions(t, 2)
	ctx := context.Background()

	_, err := s.Create(ctx, "s1")
	require.NoError(t, err)

	require.NoError(t, s.Append(ctx, "s1", sessionAnalysis("a1", "Anxiety")))
	require.NoError(t, s.Append(ctx, "s1", sessionAnalysis("a2", "Depression")))
	require.NoError(t, s.Append(ctx, "s1", sessionAnalysis("a3", "Bipolar")))

	all, err := s.History(ctx, "s1", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"a3", "a2"}, ids(all))
	assert.Equal(t, "Bipolar", all[0].TopPattern)

	latest, err := s.History(ctx, "s1", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a3"}, ids(latest))
}

func TestSessions_AccessRenewsTTL(t *testing.T) {
	s, mr := newTestSessions(t, 50)
	ctx := context.Background()

	_, err := s.Create(ctx, "s1")
	require.NoError(t, err)
	require.NoError(t, s.Append(ctx, "s1", sessionAnalysis("a1", "Anxiety")))

	mr.FastForward(50 * time.Minute)
	assert.Equal(t, 10*time.Minute, mr.TTL(sessionKey("s1")))

	_, err = s.History(ctx, "s1", 0)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, mr.TTL(sessionKey("s1")))
	assert.Equal(t, time.Hour, mr.TTL(analysesKey("s1")))

	mr.FastForward(61 * time.Minute)
	_, err = s.Touch(ctx, "s1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, mr.Exists(analysesKey("s1")))
}

func TestSessions_Delete(t *testing.T) {
	s, mr := newTestSessions(t, 50)
	ctx := context.Background()

	_, err := s.Create(ctx, "s1")
	require.NoError(t, err)
	require.NoError(t, s.Append(ctx, "s1", sessionAnalysis("a1", "Anxiety")))

	require.NoError(t, s.Delete(ctx, "s1"))
	assert.False(t, mr.Exists(sessionKey("s1")))
	assert.False(t, mr.Exists(analysesKey("s1")))

	_, err = s.History(ctx, "s1", 0)
	assert.ErrorIs(t, err, ErrNotFound)
}
