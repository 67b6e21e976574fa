package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewAnalysis(t *testing.T) {
	sub := Submission{ID: "sub-1", SessionID: "sess-1", Text: "I feel restless", Source: SourceSession}
	scores := []Score{{Label: "Anxiety", Score: 0.7}, {Label: "Depression", Score: 0.3}}

	a := NewAnalysis(sub, "Anxiety", scores, "lexical")

	assert.NotEmpty(t, a.ID)
	assert.Equal(t, "sub-1", a.SubmissionID)
	assert.Equal(t, "sess-1", a.SessionID)
	assert.Equal(t, SourceSession, a.Source)
	assert.False(t, a.CreatedAt.IsZero())
	assert.InDelta(t, 0.7, a.TopScore(), 1e-12)
}

func TestAnalysis_TopScoreMissing(t *testing.T) {
	assert.Zero(t, Analysis{TopPattern: "ADHD"}.TopScore())
}
