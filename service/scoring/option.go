package scoring

import "log/slog"

// Option customises the scoring service.
type Option func(*Service)

// WithLogger sets the logger used for diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStrictAnswers makes unscorable answers fail scoring instead of scoring zero.
func WithStrictAnswers(strict bool) Option {
	return func(s *Service) { s.strict = strict }
}
