package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type TestPayload struct {
	ID      string
	Message string
	Count   int
}

func TestQueue(t *testing.T) {
	config := DefaultConfig()
	config.RetryDelay = 10 * time.Millisecond
	queue := NewQueue[TestPayload](config)

	ctx := context.Background()
	payload := TestPayload{ID: "test-1", Message: "Hello, world!", Count: 1}

	err := queue.Publish(ctx, &payload)
	assert.NoError(t, err)
	assert.Equal(t, 1, queue.Size())

	message, err := queue.Consume(ctx)
	require.NoError(t, err)
	require.NotNil(t, message)
	assert.Equal(t, 0, queue.Size())

	msgData := message.T()
	assert.Equal(t, payload.ID, msgData.ID)
	assert.Equal(t, payload.Message, msgData.Message)
	assert.Equal(t, payload.Count, msgData.Count)

	assert.NoError(t, message.Ack())
	assert.True(t, errors.Is(message.Ack(), ErrProcessed))
	assert.True(t, errors.Is(message.Nack(errors.New("late")), ErrProcessed))
}

func TestQueueRetries(t *testing.T) {
	config := DefaultConfig()
	config.MaxRetries = 2
	config.RetryDelay = 10 * time.Millisecond
	queue := NewQueue[TestPayload](config)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, queue.Publish(ctx, &TestPayload{ID: "retry-test"}))

	var attempts []int
	for i := 0; i <= config.MaxRetries; i++ {
		message, err := queue.Consume(ctx)
		require.NoError(t, err)
		assert.Equal(t, "retry-test", message.T().ID)
		attempts = append(attempts, message.(*Message[TestPayload]).Attempt())
		require.NoError(t, message.Nack(fmt.Errorf("attempt %d failed", i)))
	}
	assert.Equal(t, []int{0, 1, 2}, attempts)
	assert.EqualValues(t, 1, queue.Dropped())

	short, cancelShort := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancelShort()
	_, err := queue.Consume(short)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestQueueDropWhenFull(t *testing.T) {
	queue := NewQueue[TestPayload](Config{QueueBuffer: 2, DropWhenFull: true})
	ctx := context.Background()

	require.NoError(t, queue.Publish(ctx, &TestPayload{ID: "1"}))
	require.NoError(t, queue.Publish(ctx, &TestPayload{ID: "2"}))
	err := queue.Publish(ctx, &TestPayload{ID: "3"})
	assert.True(t, errors.Is(err, ErrQueueFull))
	assert.EqualValues(t, 1, queue.Dropped())
	assert.Equal(t, 2, queue.Size())
}

func TestQueuePublishBlocksUntilCancelled(t *testing.T) {
	queue := NewQueue[TestPayload](Config{QueueBuffer: 1})
	require.NoError(t, queue.Publish(context.Background(), &TestPayload{ID: "1"}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := queue.Publish(ctx, &TestPayload{ID: "2"})
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	cancelled, cancelNow := context.WithCancel(context.Background())
	cancelNow()
	assert.Error(t, queue.Publish(cancelled, &TestPayload{ID: "3"}))
}

func TestQueueConcurrency(t *testing.T) {
	config := DefaultConfig()
	config.QueueBuffer = 1000
	queue := NewQueue[TestPayload](config)
	ctx := context.Background()

	const publishers = 10
	const messagesPerPublisher = 100
	var wg sync.WaitGroup
	for p := 0; p < publishers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < messagesPerPublisher; i++ {
				_ = queue.Publish(ctx, &TestPayload{ID: fmt.Sprintf("%d-%d", p, i)})
			}
		}(p)
	}
	wg.Wait()
	assert.Equal(t, publishers*messagesPerPublisher, queue.Size())

	seen := map[string]bool{}
	for i := 0; i < publishers*messagesPerPublisher; i++ {
		message, err := queue.Consume(ctx)
		require.NoError(t, err)
		seen[message.T().ID] = true
		require.NoError(t, message.Ack())
	}
	assert.Len(t, seen, publishers*messagesPerPublisher)
}
