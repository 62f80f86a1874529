package mail

import (
	"context"
	"fmt"
	"strings"

	"github.com/resend/resend-go/v2"
	"golang.org/x/time/rate"
)

// Resend's default team limit is 2 requests per second.
const resendRequestsPerSecond = 2

type resendEmails interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// ResendMailer sends through the Resend HTTP API.
type ResendMailer struct {
	emails  resendEmails
	from    string
	limiter *rate.Limiter
}

// NewResendMailer creates a Resend-backed mailer with a request throttle.
func NewResendMailer(apiKey, from string) *ResendMailer {
	client := resend.NewClient(apiKey)
	return &ResendMailer{
		emails:  client.Emails,
		from:    from,
		limiter: rate.NewLimiter(rate.Limit(resendRequestsPerSecond), 1),
	}
}

// Send delivers one HTML email. The Resend error message is preserved so it
// ends up in the sweep's error list.
func (m *ResendMailer) Send(ctx context.Context, msg Message) error {
	from := strings.TrimSpace(msg.From)
	if from == "" {
		from = m.from
	}
	recipients := uniqueAddresses(msg.To)
	if err := validateAddresses(from, recipients); err != nil {
		return err
	}

	if err := m.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("resend: rate limit wait: %w", err)
	}

	_, err := m.emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    from,
		To:      recipients,
		Subject: msg.Subject,
		Html:    msg.HTML,
	})
	if err != nil {
		return fmt.Errorf("resend: %w", err)
	}
	return nil
}
