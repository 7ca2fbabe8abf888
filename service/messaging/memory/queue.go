// Package memory implements a bounded in-process messaging.Queue.
package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/viant/intake/internal/clock"
	"github.com/viant/intake/internal/idgen"
	"github.com/viant/intake/service/messaging"
)

var (
	// ErrQueueFull is returned by Publish when DropWhenFull is set and the buffer is full.
	ErrQueueFull = errors.New("queue is full")
	// ErrProcessed is returned when a message is acknowledged twice.
	ErrProcessed = errors.New("message already processed")
)

// Config for the memory queue.
type Config struct {
	// MaxRetries bounds redeliveries of a nacked message.
	MaxRetries int
	RetryDelay time.Duration
	// QueueBuffer is the channel capacity.
	QueueBuffer int
	// DropWhenFull makes Publish fail fast instead of waiting for capacity.
	DropWhenFull bool
}

// DefaultConfig returns the default queue configuration.
func DefaultConfig() Config {
	return Config{
		MaxRetries:  3,
		RetryDelay:  100 * time.Millisecond,
		QueueBuffer: 100,
	}
}

// Message is a queued payload.
type Message[T any] struct {
	ID        string
	CreatedAt time.Time
	payload   T
	queue     *Queue[T]
	attempt   int
	mu        sync.Mutex
	processed bool
}

// T returns the payload.
func (m *Message[T]) T() *T {
	return &m.payload
}

// Attempt returns how many times the message was delivered before this one.
func (m *Message[T]) Attempt() int { return m.attempt }

// Ack marks the message processed.
func (m *Message[T]) Ack() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return ErrProcessed
	}
	m.processed = true
	return nil
}

// Nack marks the message processed and schedules a redelivery while retries
// remain. A message that cannot be redelivered is counted as dropped.
func (m *Message[T]) Nack(err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return ErrProcessed
	}
	m.processed = true
	if m.attempt >= m.queue.config.MaxRetries {
		m.queue.dropped.Add(1)
		return nil
	}
	retry := &Message[T]{ID: m.ID, CreatedAt: m.CreatedAt, payload: m.payload, queue: m.queue, attempt: m.attempt + 1}
	time.AfterFunc(m.queue.config.RetryDelay, func() {
		if !m.queue.offer(retry) {
			m.queue.dropped.Add(1)
		}
	})
	return nil
}

// Queue is a bounded channel backed queue.
type Queue[T any] struct {
	messages chan *Message[T]
	config   Config
	dropped  atomic.Int64
}

// NewQueue creates a queue.
func NewQueue[T any](config Config) *Queue[T] {
	if config.QueueBuffer <= 0 {
		config.QueueBuffer = DefaultConfig().QueueBuffer
	}
	return &Queue[T]{
		messages: make(chan *Message[T], config.QueueBuffer),
		config:   config,
	}
}

// Publish enqueues t. With DropWhenFull a full queue returns ErrQueueFull,
// otherwise Publish waits for capacity or ctx.
func (q *Queue[T]) Publish(ctx context.Context, t *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := &Message[T]{ID: idgen.New(), CreatedAt: clock.Now(), payload: *t, queue: q}
	if q.config.DropWhenFull {
		if !q.offer(msg) {
			q.dropped.Add(1)
			return ErrQueueFull
		}
		return nil
	}
	select {
	case q.messages <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue[T]) offer(msg *Message[T]) bool {
	select {
	case q.messages <- msg:
		return true
	default:
		return false
	}
}

// Consume returns the next message.
func (q *Queue[T]) Consume(ctx context.Context) (messaging.Message[T], error) {
	select {
	case msg := <-q.messages:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Size returns the number of queued messages.
func (q *Queue[T]) Size() int {
	return len(q.messages)
}

// Dropped returns how many messages were discarded because the queue was
// full or retries were exhausted.
func (q *Queue[T]) Dropped() int64 {
	return q.dropped.Load()
}

var _ messaging.Queue[any] = (*Queue[any])(nil)
