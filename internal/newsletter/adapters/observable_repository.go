package adapters

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mailframe/newsletter-api/internal/database"
	"github.com/mailframe/newsletter-api/internal/newsletter/domain"
	"github.com/mailframe/newsletter-api/internal/newsletter/ports"
	"github.com/mailframe/newsletter-api/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

type ObservableRepository struct {
	repo    ports.SubscriberRepository
	metrics *database.Metrics
}

func NewObservableRepository(repo ports.SubscriberRepository, metrics *database.Metrics) *ObservableRepository {
	return &ObservableRepository{
		repo:    repo,
		metrics: metrics,
	}
}

func (r *ObservableRepository) Create(ctx context.Context, subscriber domain.Subscriber) error {
	ctx, span := telemetry.StartSpan(ctx, "SubscriberRepository.Create")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("subscriber.id", subscriber.ID.String()),
		attribute.String("operation", "create"),
	)

	start := time.Now()
	err := r.repo.Create(ctx, subscriber)
	duration := time.Since(start).Seconds()

	r.metrics.RecordQuery(ctx, "create_subscriber", duration)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return err
	}

	telemetry.SetSpanSuccess(span)
	return nil
}

func (r *ObservableRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Subscriber, error) {
	ctx, span := telemetry.StartSpan(ctx, "SubscriberRepository.GetByID")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("subscriber.id", id.String()),
		attribute.String("operation", "get_by_id"),
	)

	start := time.Now()
	subscriber, err := r.repo.GetByID(ctx, id)
	duration := time.Since(start).Seconds()

	r.metrics.RecordQuery(ctx, "get_subscriber_by_id", duration)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return nil, err
	}

	telemetry.SetSpanSuccess(span)
	return subscriber, nil
}

func (r *ObservableRepository) ListConfirmed(ctx context.Context) ([]domain.Subscriber, error) {
	ctx, span := telemetry.StartSpan(ctx, "SubscriberRepository.ListConfirmed")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("operation", "list_confirmed"),
	)

	start := time.Now()
	subscribers, err := r.repo.ListConfirmed(ctx)
	duration := time.Since(start).Seconds()

	r.metrics.RecordQuery(ctx, "list_confirmed_subscribers", duration)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return nil, err
	}

	telemetry.AddSpanAttributes(span, attribute.Int("result.count", len(subscribers)))
	telemetry.SetSpanSuccess(span)
	return subscribers, nil
}

func (r *ObservableRepository) Confirm(ctx context.Context, id uuid.UUID) error {
	ctx, span := telemetry.StartSpan(ctx, "SubscriberRepository.Confirm")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("subscriber.id", id.String()),
		attribute.String("operation", "confirm"),
	)

	start := time.Now()
	err := r.repo.Confirm(ctx, id)
	duration := time.Since(start).Seconds()

	r.metrics.RecordQuery(ctx, "confirm_subscriber", duration)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return err
	}

	telemetry.SetSpanSuccess(span)
	return nil
}
