package event

import (
	"context"

	"github.com/viant/intake/internal/clock"
	"github.com/viant/intake/service/messaging"
)

// Publisher moves events through a queue.
type Publisher[T any] struct {
	queue messaging.Queue[Event[T]]
}

func NewPublisher[T any](queue messaging.Queue[Event[T]]) *Publisher[T] {
	return &Publisher[T]{
		queue: queue,
	}
}

func (p *Publisher[T]) Publish(ctx context.Context, event *Event[T]) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = clock.Now()
	}
	return p.queue.Publish(ctx, event)
}

// Consume returns the next queued event message; the caller acknowledges it.
func (p *Publisher[T]) Consume(ctx context.Context) (messaging.Message[Event[T]], error) {
	return p.queue.Consume(ctx)
}
