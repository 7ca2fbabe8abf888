package notify

import (
	"context"
	"log/slog"
)

// Log writes messages to a logger; used in development.
type Log struct {
	logger *slog.Logger
}

// NewLog creates a log sender; nil logger uses the default.
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default().With("component", "notify")
	}
	return &Log{logger: logger}
}

// Send logs message.
func (l *Log) Send(ctx context.Context, message *Message) error {
	if err := message.Validate(); err != nil {
		return err
	}
	l.logger.InfoContext(ctx, "notification", "to", message.To, "subject", message.Subject, "body", message.Body)
	return nil
}
