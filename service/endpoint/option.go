package endpoint

import (
	"log/slog"

	"golang.org/x/time/rate"
)

// Option customises the HTTP service.
type Option func(*Service)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRateLimit limits webhook deliveries to rps per second with the given
// burst. Zero rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Service) {
		if rps <= 0 {
			s.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithMaxBodySize bounds the webhook body in bytes.
func WithMaxBodySize(size int64) Option {
	return func(s *Service) {
		if size > 0 {
			s.maxBodySize = size
		}
	}
}

// WithSchema replaces the embedded webhook JSON schema.
func WithSchema(document []byte) Option {
	return func(s *Service) { s.schemaDocument = document }
}
