package email

import (
	"context"
	"log/slog"

	"github.com/mailframe/newsletter-api/internal/newsletter/domain"
)

// NoopSender logs emails without delivering them. Useful for local dev before wiring a provider.
type NoopSender struct{}

// NewNoopSender returns a new no-op email sender.
func NewNoopSender() *NoopSender {
	return &NoopSender{}
}

func (n *NoopSender) Send(_ context.Context, recipient domain.SubscriberEmail, subject, _, _ string) error {
	slog.Debug("email::send", "to", recipient.String(), "subject", subject)
	return nil
}
