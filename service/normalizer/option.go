package normalizer

import "log/slog"

// Option customises the normalizer.
type Option func(*Service)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPreference overrides the ordered extraction keys.
func WithPreference(keys ...string) Option {
	return func(s *Service) {
		if len(keys) > 0 {
			s.preference = keys
		}
	}
}
