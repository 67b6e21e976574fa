package domain

import "time"

// Submission is a piece of text waiting to be analyzed.
type Submission struct {
	ID         string    `json:"id"`
	ExternalID string    `json:"externalId,omitempty"`
	SessionID  string    `json:"sessionId,omitempty"`
	Author     string    `json:"author,omitempty"`
	Text       string    `json:"text"`
	Link       string    `json:"link,omitempty"`
	Source     Source    `json:"source"`
	CreatedAt  time.Time `json:"createdAt"`
}

type Source string

const (
	SourceAPI      Source = "api"
	SourceSession  Source = "session"
	SourceFeed     Source = "feed"
	SourceExternal Source = "external"
)
