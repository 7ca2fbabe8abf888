package workflow

import (
	"log/slog"
	"time"

	"github.com/viant/intake/internal/metrics"
	"github.com/viant/intake/service/event"
)

// Option customises the engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithEvents publishes lifecycle events to events.
func WithEvents(events *event.Service) Option {
	return func(e *Engine) { e.events = events }
}

// WithMetrics records counters on recorder.
func WithMetrics(recorder *metrics.Recorder) Option {
	return func(e *Engine) { e.metrics = recorder }
}

// WithMaxPendingLifetime bounds how long an instance waits for a decision.
func WithMaxPendingLifetime(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.maxPending = d
		}
	}
}

// WithArtifactPrefix sets the path prefix of instance artifacts.
func WithArtifactPrefix(prefix string) Option {
	return func(e *Engine) { e.artifactPrefix = prefix }
}
