package event

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Listener hands queued events to a handler on its own goroutine.
type Listener[T any] struct {
	publisher *Publisher[T]
	handler   func(*Event[T])
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	logger    *slog.Logger
}

func NewListener[T any](publisher *Publisher[T], handler func(*Event[T]), logger *slog.Logger) *Listener[T] {
	ctx, cancel := context.WithCancel(context.Background())
	return &Listener[T]{
		publisher: publisher,
		handler:   handler,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		logger:    logger,
	}
}

// Stop cancels consumption and waits for the current handler to return.
func (l *Listener[T]) Stop() {
	l.cancel()
	<-l.done
}

func (l *Listener[T]) Start() {
	go func() {
		defer close(l.done)
		for {
			msg, err := l.publisher.Consume(l.ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				l.logger.Warn("failed to consume event", "error", err)
				continue
			}
			if msg != nil {
				l.handle(msg.T(), msg.Ack, msg.Nack)
			}
		}
	}()
}

// handle runs the handler, nacking the message when it panics.
func (l *Listener[T]) handle(event *Event[T], ack func() error, nack func(error) error) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("event handler panicked", "panic", r)
			_ = nack(fmt.Errorf("handler panic: %v", r))
		}
	}()
	l.handler(event)
	_ = ack()
}
