package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SubscriberStatus captures the confirmation lifecycle of a subscriber.
type SubscriberStatus string

const (
	StatusPendingConfirmation SubscriberStatus = "pending_confirmation"
	StatusConfirmed           SubscriberStatus = "confirmed"
)

// Subscriber is a mailing list member. Only confirmed subscribers receive
// newsletter issues.
type Subscriber struct {
	ID           uuid.UUID        `json:"id"`
	Email        string           `json:"email"`
	Name         string           `json:"name"`
	Status       SubscriberStatus `json:"status"`
	SubscribedAt time.Time        `json:"subscribed_at"`
}

// SubscriberEmail is a syntactically valid email address. Stored contact
// details are re-parsed on the way out of the database: rows written before
// validation was tightened may no longer pass.
type SubscriberEmail struct {
	value string
}

// ParseSubscriberEmail validates a raw email address.
func ParseSubscriberEmail(raw string) (SubscriberEmail, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return SubscriberEmail{}, errors.New("email is required")
	}
	if !strings.Contains(trimmed, "@") {
		return SubscriberEmail{}, errors.New("email must be valid")
	}
	return SubscriberEmail{value: trimmed}, nil
}

func (e SubscriberEmail) String() string {
	return e.value
}
