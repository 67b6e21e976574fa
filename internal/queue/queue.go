package queue

import (
	"context"

	"mindpattern/internal/domain"
)

type Publisher interface {
	Publish(ctx context.Context, sub domain.Submission) error
	Close() error
}

// Handler processes one submission. A returned error leaves the message
// unacknowledged.
type Handler func(ctx context.Context, sub domain.Submission) error

type Consumer interface {
	Consume(ctx context.Context, handler Handler) error
	Close() error
}
