// Package sweeper periodically fails suspended instances that passed their
// decision deadline. Redemption never depends on it; it only converts
// abandoned instances into an explicit decision-timeout.
package sweeper

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Expirer is implemented by the workflow engine.
type Expirer interface {
	ExpireOverdue(ctx context.Context) (int, error)
}

// Config represents sweeper configuration
type Config struct {
	// PollingInterval is how often overdue instances are checked.
	PollingInterval time.Duration `json:"pollingInterval" yaml:"pollingInterval"`
}

// DefaultConfig returns the default sweeper configuration
func DefaultConfig() Config {
	return Config{
		PollingInterval: time.Minute,
	}
}

// Service runs the expiry loop
type Service struct {
	config     Config
	expirer    Expirer
	shutdownCh chan struct{}
	once       sync.Once
	logger     *slog.Logger
}

// New creates a new sweeper service
func New(expirer Expirer, config Config) *Service {
	if config.PollingInterval <= 0 {
		config.PollingInterval = DefaultConfig().PollingInterval
	}
	return &Service{
		config:     config,
		expirer:    expirer,
		shutdownCh: make(chan struct{}),
		logger:     slog.Default().With("component", "sweeper"),
	}
}

// Start runs the loop until ctx is done or Shutdown is called.
func (s *Service) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.config.PollingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.shutdownCh:
			return nil
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one expiry pass; errors are logged and the loop continues.
func (s *Service) Sweep(ctx context.Context) int {
	count, err := s.expirer.ExpireOverdue(ctx)
	if err != nil {
		s.logger.Error("failed to expire overdue instances", "error", err)
	}
	return count
}

// Shutdown stops the loop; it is safe to call more than once.
func (s *Service) Shutdown() {
	s.once.Do(func() { close(s.shutdownCh) })
}
