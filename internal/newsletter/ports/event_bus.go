package ports

import "context"

// EventBus defines the contract for publishing newsletter lifecycle events.
type EventBus interface {
	PublishIssuePublished(ctx context.Context, title string, delivered int) error
	PublishSubscriberCreated(ctx context.Context, subscriberID string) error
	PublishSubscriberConfirmed(ctx context.Context, subscriberID string) error
}
