package adapters

import (
	"context"
	"time"

	"github.com/mailframe/newsletter-api/internal/events"
	"github.com/mailframe/newsletter-api/internal/newsletter/ports"
	"github.com/mailframe/newsletter-api/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

type ObservableEventBus struct {
	bus     ports.EventBus
	metrics *events.Metrics
}

func NewObservableEventBus(bus ports.EventBus, metrics *events.Metrics) *ObservableEventBus {
	return &ObservableEventBus{
		bus:     bus,
		metrics: metrics,
	}
}

func (e *ObservableEventBus) PublishIssuePublished(ctx context.Context, title string, delivered int) error {
	ctx, span := telemetry.StartSpan(ctx, "EventBus.PublishIssuePublished")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("issue.title", title),
		attribute.Int("issue.delivered", delivered),
		attribute.String("event.type", "issue.published"),
	)

	start := time.Now()
	err := e.bus.PublishIssuePublished(ctx, title, delivered)
	duration := time.Since(start).Seconds()

	e.metrics.RecordPublish(ctx, "issue.published", duration, err == nil)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return err
	}

	telemetry.SetSpanSuccess(span)
	return nil
}

func (e *ObservableEventBus) PublishSubscriberCreated(ctx context.Context, subscriberID string) error {
	ctx, span := telemetry.StartSpan(ctx, "EventBus.PublishSubscriberCreated")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("subscriber.id", subscriberID),
		attribute.String("event.type", "subscriber.created"),
	)

	start := time.Now()
	err := e.bus.PublishSubscriberCreated(ctx, subscriberID)
	duration := time.Since(start).Seconds()

	e.metrics.RecordPublish(ctx, "subscriber.created", duration, err == nil)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return err
	}

	telemetry.SetSpanSuccess(span)
	return nil
}

func (e *ObservableEventBus) PublishSubscriberConfirmed(ctx context.Context, subscriberID string) error {
	ctx, span := telemetry.StartSpan(ctx, "EventBus.PublishSubscriberConfirmed")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("subscriber.id", subscriberID),
		attribute.String("event.type", "subscriber.confirmed"),
	)

	start := time.Now()
	err := e.bus.PublishSubscriberConfirmed(ctx, subscriberID)
	duration := time.Since(start).Seconds()

	e.metrics.RecordPublish(ctx, "subscriber.confirmed", duration, err == nil)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return err
	}

	telemetry.SetSpanSuccess(span)
	return nil
}
