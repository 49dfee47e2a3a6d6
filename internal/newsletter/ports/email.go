package ports

import (
	"context"

	"github.com/mailframe/newsletter-api/internal/newsletter/domain"
)

// EmailSender is the outbound delivery transport. Retry and backoff policy
// belong to the implementation, not to the fan-out loop that calls it.
type EmailSender interface {
	Send(ctx context.Context, recipient domain.SubscriberEmail, subject, htmlBody, textBody string) error
}
