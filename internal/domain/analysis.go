package domain

import (
	"time"

	"github.com/google/uuid"
)

type Score struct {
	Label string  `json:"label" msgpack:"label"`
	Score float64 `json:"score" msgpack:"score"`
}

// Analysis is one resolved prediction.
type Analysis struct {
	ID               string    `json:"id" msgpack:"id"`
	SubmissionID     string    `json:"submissionId,omitempty" msgpack:"submission_id"`
	SessionID        string    `json:"sessionId,omitempty" msgpack:"session_id"`
	Text             string    `json:"text" msgpack:"text"`
	TopPattern       string    `json:"topPattern" msgpack:"top_pattern"`
	ConfidenceScores []Score   `json:"confidenceScores" msgpack:"confidence_scores"`
	Strategy         string    `json:"strategy" msgpack:"strategy"`
	Source           Source    `json:"source" msgpack:"source"`
	CreatedAt        time.Time `json:"createdAt" msgpack:"created_at"`
}

// Stats summarizes stored analyses.
type Stats struct {
	Total      int            `json:"total"`
	ByPattern  map[string]int `json:"byPattern"`
	ByStrategy map[string]int `json:"byStrategy"`
}

// TopScore returns the confidence of the top pattern.
func (a Analysis) TopScore() float64 {
	for _, s := range a.ConfidenceScores {
		if s.Label == a.TopPattern {
			return s.Score
		}
	}
	return 0
}

// NewAnalysis records the outcome of analyzing sub.
func NewAnalysis(sub Submission, top string, scores []Score, strategy string) Analysis {
	return Analysis{
		ID:               uuid.NewString(),
		SubmissionID:     sub.ID,
		SessionID:        sub.SessionID,
		Text:             sub.Text,
		TopPattern:       top,
		ConfidenceScores: scores,
		Strategy:         strategy,
		Source:           sub.Source,
		CreatedAt:        time.Now().UTC(),
	}
}
