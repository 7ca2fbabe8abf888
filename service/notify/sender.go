// Package notify delivers reviewer and applicant messages.
package notify

import (
	"context"
	"errors"
	"strings"
)

// ErrNoRecipient is returned for a message without recipients.
var ErrNoRecipient = errors.New("notify: no recipient")

// Message is a plain text notification.
type Message struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
}

// Validate checks the message has a recipient and a subject.
func (m *Message) Validate() error {
	if m == nil || len(m.To) == 0 {
		return ErrNoRecipient
	}
	for _, to := range m.To {
		if strings.TrimSpace(to) == "" {
			return ErrNoRecipient
		}
	}
	if strings.ContainsAny(m.Subject, "\r\n") {
		return errors.New("notify: subject contains line break")
	}
	return nil
}

// Sender delivers messages. A returned error means the message was not sent.
type Sender interface {
	Send(ctx context.Context, message *Message) error
}
