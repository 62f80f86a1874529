// Package mail delivers reminder emails. Resend is the production transport;
// SMTP and a log-only sender cover self-hosted and development setups.
package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
)

// ErrDisabled signals that no delivery backend is configured.
var ErrDisabled = errors.New("mail: delivery disabled")

// Message represents an outbound email.
type Message struct {
	From    string
	To      []string
	Subject string
	HTML    string
}

// Mailer defines behaviour for sending email messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Settings selects and configures a backend.
type Settings struct {
	From         string
	ResendAPIKey string
	SMTP         SMTPSettings
}

// New picks Resend when an API key is set, SMTP when a host is set, and the
// log-only sender otherwise.
func New(s Settings, logger *slog.Logger) (Mailer, error) {
	switch {
	case s.ResendAPIKey != "":
		return NewResendMailer(s.ResendAPIKey, s.From), nil
	case s.SMTP.Host != "":
		smtpCfg := s.SMTP
		smtpCfg.Enabled = true
		if smtpCfg.From == "" {
			smtpCfg.From = s.From
		}
		return NewSMTPMailer(smtpCfg)
	default:
		return NewLogMailer(logger), nil
	}
}

// LogMailer writes messages to the log instead of sending them.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer creates a log-only mailer.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{logger: logger}
}

// Send logs the message and reports success.
func (m *LogMailer) Send(_ context.Context, msg Message) error {
	if len(uniqueAddresses(msg.To)) == 0 {
		return errors.New("mail: at least one recipient is required")
	}
	m.logger.Info("Email (no transport configured)",
		"to", strings.Join(msg.To, ","), "subject", msg.Subject)
	return nil
}

func validateAddresses(from string, recipients []string) error {
	if from == "" {
		return errors.New("mail: sender address is required")
	}
	if _, err := mail.ParseAddress(from); err != nil {
		return fmt.Errorf("mail: invalid from address: %w", err)
	}
	if len(recipients) == 0 {
		return errors.New("mail: at least one recipient is required")
	}
	for _, rcpt := range recipients {
		if _, err := mail.ParseAddress(rcpt); err != nil {
			return fmt.Errorf("mail: invalid recipient address %q: %w", rcpt, err)
		}
	}
	return nil
}

func uniqueAddresses(addresses []string) []string {
	seen := make(map[string]struct{}, len(addresses))
	var result []string
	for _, addr := range addresses {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		if _, exists := seen[addr]; exists {
			continue
		}
		seen[addr] = struct{}{}
		result = append(result, addr)
	}
	return result
}
