package ports

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/mailframe/newsletter-api/internal/newsletter/domain"
)

// SubscriberRepository exposes persistence operations required by the application layer.
type SubscriberRepository interface {
	Create(ctx context.Context, subscriber domain.Subscriber) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Subscriber, error)
	ListConfirmed(ctx context.Context) ([]domain.Subscriber, error)
	Confirm(ctx context.Context, id uuid.UUID) error
}

var (
	// ErrNotFound is returned when the requested subscriber does not exist.
	ErrNotFound = errors.New("subscriber not found")
	// ErrDuplicateEmail is returned when the email is already subscribed.
	ErrDuplicateEmail = errors.New("email already subscribed")
)
