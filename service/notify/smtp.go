package notify

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/viant/intake/internal/clock"
	"github.com/viant/intake/service/secret"
)

// SMTPConfig configures the SMTP sender.
type SMTPConfig struct {
	Addr string `json:"addr" yaml:"addr" validate:"required,hostname_port"`
	From string `json:"from" yaml:"from" validate:"required,email"`
	// CredentialsURL is a scy resource holding a basic credential.
	CredentialsURL string `json:"credentialsURL,omitempty" yaml:"credentialsURL,omitempty"`
	// CredentialsKey is the scy encryption key, e.g. blowfish://default.
	CredentialsKey string `json:"credentialsKey,omitempty" yaml:"credentialsKey,omitempty"`
}

// SMTP sends messages with PLAIN auth.
type SMTP struct {
	addr     string
	from     string
	auth     smtp.Auth
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTP creates an SMTP sender, loading credentials through scy when configured.
func NewSMTP(ctx context.Context, cfg *SMTPConfig, secrets *secret.Service) (*SMTP, error) {
	host, _, err := net.SplitHostPort(cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("invalid smtp address %v: %w", cfg.Addr, err)
	}
	ret := &SMTP{addr: cfg.Addr, from: cfg.From, sendMail: smtp.SendMail}
	if cfg.CredentialsURL != "" {
		if secrets == nil {
			secrets = secret.New()
		}
		basic, err := secrets.Basic(ctx, cfg.CredentialsURL, cfg.CredentialsKey)
		if err != nil {
			return nil, err
		}
		ret.auth = smtp.PlainAuth("", basic.Username, basic.Password, host)
	}
	return ret, nil
}

// Send delivers message.
func (s *SMTP) Send(ctx context.Context, message *Message) error {
	if err := message.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.sendMail(s.addr, s.auth, s.from, message.To, s.encode(message)); err != nil {
		return fmt.Errorf("failed to send %q: %w", message.Subject, err)
	}
	return nil
}

func (s *SMTP) encode(message *Message) []byte {
	builder := strings.Builder{}
	builder.WriteString("From: " + s.from + "\r\n")
	builder.WriteString("To: " + strings.Join(message.To, ", ") + "\r\n")
	builder.WriteString("Subject: " + message.Subject + "\r\n")
	builder.WriteString("Date: " + clock.Now().Format(time.RFC1123Z) + "\r\n")
	builder.WriteString("MIME-Version: 1.0\r\n")
	builder.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	builder.WriteString(strings.ReplaceAll(message.Body, "\n", "\r\n"))
	return []byte(builder.String())
}
