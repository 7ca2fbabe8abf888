// Package event publishes workflow lifecycle events to in-process listeners.
//
// Events are advisory: the instance store is the source of truth, so a full
// queue drops events instead of blocking the workflow.
package event

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/viant/intake/model/workflow"
	"github.com/viant/intake/service/messaging/memory"
)

// Lifecycle is an event carrying an instance snapshot.
type Lifecycle = Event[*workflow.Instance]

// Service fans lifecycle events out to a single listener.
type Service struct {
	publisher   *Publisher[*workflow.Instance]
	queue       *memory.Queue[Lifecycle]
	listener    *Listener[*workflow.Instance]
	mux         sync.Mutex
	queueConfig memory.Config
	logger      *slog.Logger
}

// New creates an event service with a non-blocking queue.
func New(opts ...Option) *Service {
	ret := &Service{
		queueConfig: memory.DefaultConfig(),
		logger:      slog.Default().With("component", "event"),
	}
	ret.queueConfig.DropWhenFull = true
	for _, opt := range opts {
		opt(ret)
	}
	ret.queue = memory.NewQueue[Lifecycle](ret.queueConfig)
	ret.publisher = NewPublisher[*workflow.Instance](ret.queue)
	return ret
}

// Publish emits an event for instance. Dropped events are logged, never returned.
func (s *Service) Publish(ctx context.Context, eventType string, from workflow.State, instance *workflow.Instance) {
	if s == nil || instance == nil {
		return
	}
	ev := NewEvent(&Context{
		InstanceID: instance.ID,
		Identity:   string(instance.Identity),
		EventType:  eventType,
		From:       string(from),
		To:         string(instance.State),
		Reason:     instance.Reason,
	}, instance.Clone())
	if err := s.publisher.Publish(ctx, ev); err != nil {
		if errors.Is(err, memory.ErrQueueFull) {
			s.logger.Debug("event dropped", "instance", instance.ID, "type", eventType)
			return
		}
		s.logger.Warn("failed to publish event", "instance", instance.ID, "type", eventType, "error", err)
	}
}

// Dropped returns the number of events discarded by a full queue.
func (s *Service) Dropped() int64 {
	if s == nil {
		return 0
	}
	return s.queue.Dropped()
}

// SetListener replaces the listener consuming events.
func (s *Service) SetListener(handler func(*Lifecycle)) {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.listener != nil {
		s.listener.Stop()
	}
	s.listener = NewListener[*workflow.Instance](s.publisher, handler, s.logger)
	s.listener.Start()
}

// Shutdown stops the listener, if any.
func (s *Service) Shutdown() {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.listener != nil {
		s.listener.Stop()
		s.listener = nil
	}
}
