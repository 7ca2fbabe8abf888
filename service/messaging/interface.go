// Package messaging defines the queue abstraction behind lifecycle event
// delivery.
package messaging

import (
	"context"
)

// Queue is a message queue for any payload type.
type Queue[T any] interface {
	// Publish adds a message with payload t.
	Publish(ctx context.Context, t *T) error

	// Consume blocks until a message is available or ctx is done.
	Consume(ctx context.Context) (Message[T], error)
}

// Message is a delivered payload awaiting acknowledgement.
type Message[T any] interface {
	// T returns the payload.
	T() *T

	// Ack marks the message processed.
	Ack() error

	// Nack reports a processing failure; the queue decides whether to redeliver.
	Nack(err error) error
}
