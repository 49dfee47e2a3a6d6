package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mailframe/newsletter-api/internal/idempotency"
	"github.com/mailframe/newsletter-api/internal/newsletter/app/commands"
	"github.com/mailframe/newsletter-api/internal/newsletter/app/queries"
	"github.com/mailframe/newsletter-api/internal/newsletter/domain"
	"github.com/mailframe/newsletter-api/internal/newsletter/metrics"
	"github.com/mailframe/newsletter-api/internal/newsletter/ports"
)

// Service bundles use cases for handling the newsletter via the API.
type Service struct {
	repo                ports.SubscriberRepository
	events              ports.EventBus
	coordinator         *idempotency.Coordinator
	metrics             *metrics.Metrics
	logger              *slog.Logger
	publishIssueHandler commands.CommandHandler
	getSubscriber       *queries.GetSubscriberQueryHandler
}

// NewService wires required dependencies.
func NewService(
	repo ports.SubscriberRepository,
	sender ports.EmailSender,
	events ports.EventBus,
	coordinator *idempotency.Coordinator,
	logger *slog.Logger,
	metrics *metrics.Metrics,
) *Service {
	coreHandler := commands.NewPublishIssueCommandHandler(repo, sender, events, logger)
	observableHandler := commands.NewObservableCommandHandler(coreHandler, logger, metrics)

	return &Service{
		repo:                repo,
		events:              events,
		coordinator:         coordinator,
		metrics:             metrics,
		logger:              logger,
		publishIssueHandler: observableHandler,
		getSubscriber:       queries.NewGetSubscriberQueryHandler(repo),
	}
}

// StartPublish claims processing rights for (userID, key) or returns the
// saved response of an earlier attempt. When a claim is returned the caller
// must run PublishIssue and settle the claim with Complete or Rollback.
func (s *Service) StartPublish(ctx context.Context, userID uuid.UUID, key idempotency.Key) (*idempotency.Claim, *idempotency.ResponseSnapshot, error) {
	claim, saved, err := s.coordinator.Start(ctx, userID, key)
	if err != nil {
		return nil, nil, err
	}
	if saved != nil {
		s.metrics.RecordIdempotentReplay(ctx)
		s.logger.InfoContext(ctx, "replaying saved newsletter response",
			"user_id", userID,
			"idempotency_key", key.String(),
		)
	}
	return claim, saved, nil
}

// PublishIssue delivers the issue to every confirmed subscriber.
func (s *Service) PublishIssue(ctx context.Context, input domain.Issue) (*commands.PublishResult, error) {
	cmd := commands.PublishIssueCommand{
		Title:       input.Title,
		HTMLContent: input.HTMLContent,
		TextContent: input.TextContent,
	}
	return s.publishIssueHandler.Handle(ctx, cmd)
}

// SubscribeInput captures payload for creating a subscriber.
type SubscribeInput struct {
	Name  string
	Email string
}

// Subscribe registers a new, unconfirmed subscriber.
func (s *Service) Subscribe(ctx context.Context, input SubscribeInput) (*domain.Subscriber, error) {
	email, err := domain.ParseSubscriberEmail(input.Email)
	if err != nil {
		return nil, err
	}
	if input.Name == "" {
		return nil, fmt.Errorf("name is required")
	}

	subscriber := domain.Subscriber{
		ID:           uuid.New(),
		Email:        email.String(),
		Name:         input.Name,
		Status:       domain.StatusPendingConfirmation,
		SubscribedAt: time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, subscriber); err != nil {
		return nil, err
	}

	if err := s.events.PublishSubscriberCreated(ctx, subscriber.ID.String()); err != nil {
		s.logger.WarnContext(ctx, "subscriber saved but failed to publish event", "error", err)
	}

	return &subscriber, nil
}

// ConfirmSubscriber marks a pending subscriber as confirmed.
func (s *Service) ConfirmSubscriber(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Confirm(ctx, id); err != nil {
		return err
	}

	if err := s.events.PublishSubscriberConfirmed(ctx, id.String()); err != nil {
		s.logger.WarnContext(ctx, "subscriber confirmed but failed to publish event", "error", err)
	}

	return nil
}

// GetSubscriber retrieves a subscriber by ID.
func (s *Service) GetSubscriber(ctx context.Context, id uuid.UUID) (*domain.Subscriber, error) {
	return s.getSubscriber.Handle(ctx, queries.GetSubscriberQuery{SubscriberID: id})
}
