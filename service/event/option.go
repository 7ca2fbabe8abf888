package event

import (
	"log/slog"

	"github.com/viant/intake/service/messaging/memory"
)

type Option func(s *Service)

// WithQueueConfig sets the memory queue configuration
func WithQueueConfig(config memory.Config) Option {
	return func(s *Service) {
		s.queueConfig = config
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}
