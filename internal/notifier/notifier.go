package notifier

import (
	"context"
	"slices"

	"mindpattern/internal/config"
	"mindpattern/internal/domain"
)

type Notification struct {
	Submission domain.Submission
	Analysis   domain.Analysis
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Policy decides which analyses raise an alert.
type Policy struct {
	Patterns []string
	MinScore float64
}

func NewPolicy(cfg config.NotifierConfig) Policy {
	return Policy{Patterns: cfg.Patterns, MinScore: cfg.MinScore}
}

// ShouldNotify matches when the top pattern is watched (any pattern if none
// are configured) and its score reaches MinScore.
func (p Policy) ShouldNotify(a domain.Analysis) bool {
	if len(p.Patterns) > 0 && !slices.Contains(p.Patterns, a.TopPattern) {
		return false
	}
	return a.TopScore() >= p.MinScore
}

// Discard drops every notification.
type Discard struct{}

func (Discard) Notify(context.Context, Notification) error { return nil }

// New returns a Telegram notifier, or Discard when no bot is configured.
func New(cfg config.NotifierConfig) Notifier {
	if cfg.TelegramToken == "" || len(cfg.TelegramChatIDs) == 0 {
		return Discard{}
	}
	return NewTelegram(cfg.TelegramToken, cfg.TelegramChatIDs)
}
