package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/immowaechter/immowaechter/internal/mail"
)

// deliver renders and emails one reminder. The returned error is the string
// that ends up in the sweep's error list. Ledger and push side effects only
// follow a successful send and never fail the record.
func (s *Sweeper) deliver(ctx context.Context, rec Record, today time.Time) error {
	email, err := Render(rec, s.appURL)
	if err != nil {
		return fmt.Errorf("component %s: %w", rec.ComponentID, err)
	}

	sendErr := s.mailer.Send(ctx, mail.Message{
		From:    s.from,
		To:      []string{rec.UserEmail},
		Subject: email.Subject,
		HTML:    email.HTML,
	})
	if sendErr != nil {
		s.logger.Warn("Email send failed",
			"component_id", rec.ComponentID, "to", rec.UserEmail, "error", sendErr)
		return fmt.Errorf("failed to send to %s: %v", rec.UserEmail, sendErr)
	}
	s.logger.Info("Reminder sent",
		"component_id", rec.ComponentID, "to", rec.UserEmail,
		"days_until", rec.DaysUntil, "overdue", rec.IsOverdue)

	if s.ledger != nil {
		if err := s.ledger.MarkSent(ctx, rec.ComponentID, today); err != nil {
			s.logger.Warn("Ledger write failed", "component_id", rec.ComponentID, "error", err)
		}
	}
	if s.push != nil {
		if err := s.push.Publish(ctx, rec); err != nil {
			s.logger.Warn("Push publish failed", "component_id", rec.ComponentID, "error", err)
		}
	}
	return nil
}

// alreadySent consults the ledger. A failed lookup counts as "not sent":
// a duplicate reminder is preferable to a missing one.
func (s *Sweeper) alreadySent(ctx context.Context, componentID uuid.UUID, today time.Time) bool {
	if s.ledger == nil {
		return false
	}
	sent, err := s.ledger.WasSent(ctx, componentID, today)
	if err != nil {
		s.logger.Warn("Ledger lookup failed", "component_id", componentID, "error", err)
		return false
	}
	return sent
}
