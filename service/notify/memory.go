package notify

import (
	"context"
	"sync"
)

// Memory records messages instead of sending them.
type Memory struct {
	mu       sync.Mutex
	messages []*Message
	failure  error
}

// NewMemory creates an empty recorder.
func NewMemory() *Memory {
	return &Memory{}
}

// Send records message or returns the injected failure.
func (m *Memory) Send(_ context.Context, message *Message) error {
	if err := message.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failure != nil {
		return m.failure
	}
	clone := *message
	clone.To = append([]string(nil), message.To...)
	m.messages = append(m.messages, &clone)
	return nil
}

// Fail makes every following Send return err; nil restores delivery.
func (m *Memory) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failure = err
}

// Messages returns recorded messages.
func (m *Memory) Messages() []*Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Message(nil), m.messages...)
}

// SentTo returns recorded messages addressed to recipient.
func (m *Memory) SentTo(recipient string) []*Message {
	var ret []*Message
	for _, message := range m.Messages() {
		for _, to := range message.To {
			if to == recipient {
				ret = append(ret, message)
				break
			}
		}
	}
	return ret
}
