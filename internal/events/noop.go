package events

import (
	"context"
	"log/slog"
)

// NoopEventBus logs events without sending them to a broker. Useful for local dev before wiring one.
type NoopEventBus struct{}

// NewNoopEventBus returns a new no-op event publisher.
func NewNoopEventBus() *NoopEventBus {
	return &NoopEventBus{}
}

func (n *NoopEventBus) PublishIssuePublished(_ context.Context, title string, delivered int) error {
	slog.Debug("event::issue_published", "title", title, "delivered", delivered)
	return nil
}

func (n *NoopEventBus) PublishSubscriberCreated(_ context.Context, subscriberID string) error {
	slog.Debug("event::subscriber_created", "subscriber_id", subscriberID)
	return nil
}

func (n *NoopEventBus) PublishSubscriberConfirmed(_ context.Context, subscriberID string) error {
	slog.Debug("event::subscriber_confirmed", "subscriber_id", subscriberID)
	return nil
}
