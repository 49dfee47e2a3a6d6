package queries

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/mailframe/newsletter-api/internal/newsletter/domain"
	"github.com/mailframe/newsletter-api/internal/newsletter/ports"
)

// GetSubscriberQuery represents a request to retrieve a subscriber by ID.
type GetSubscriberQuery struct {
	SubscriberID uuid.UUID
}

// GetSubscriberQueryHandler executes GetSubscriberQuery and returns the subscriber if found.
type GetSubscriberQueryHandler struct {
	repo ports.SubscriberRepository
}

// NewGetSubscriberQueryHandler constructs a GetSubscriberQueryHandler.
func NewGetSubscriberQueryHandler(repo ports.SubscriberRepository) *GetSubscriberQueryHandler {
	return &GetSubscriberQueryHandler{repo: repo}
}

// Handle executes the query and retrieves the subscriber.
func (h *GetSubscriberQueryHandler) Handle(ctx context.Context, query GetSubscriberQuery) (*domain.Subscriber, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	return h.repo.GetByID(ctx, query.SubscriberID)
}

// Validate ensures the query has valid parameters.
func (q GetSubscriberQuery) Validate() error {
	if q.SubscriberID == uuid.Nil {
		return errors.New("subscriber_id is required")
	}
	return nil
}
