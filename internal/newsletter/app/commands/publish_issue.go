package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mailframe/newsletter-api/internal/newsletter/domain"
	"github.com/mailframe/newsletter-api/internal/newsletter/ports"
)

type PublishIssueCommand struct {
	Title       string
	HTMLContent string
	TextContent string
}

func (c PublishIssueCommand) Validate() error {
	issue := domain.Issue{
		Title:       c.Title,
		HTMLContent: c.HTMLContent,
		TextContent: c.TextContent,
	}
	return issue.Validate()
}

// PublishResult summarizes a fan-out run.
type PublishResult struct {
	Delivered int
	Skipped   int
}

type CommandHandler interface {
	Handle(ctx context.Context, cmd PublishIssueCommand) (*PublishResult, error)
}

// PublishIssueCommandHandler delivers an issue to every confirmed subscriber.
// A failure to deliver to one recipient, or a stored contact detail that no
// longer parses, is logged and skipped; it does not fail the whole run. A
// failure to list subscribers does, since nothing was attempted yet.
type PublishIssueCommandHandler struct {
	repo   ports.SubscriberRepository
	sender ports.EmailSender
	events ports.EventBus
	logger *slog.Logger
}

func NewPublishIssueCommandHandler(
	repo ports.SubscriberRepository,
	sender ports.EmailSender,
	events ports.EventBus,
	logger *slog.Logger,
) *PublishIssueCommandHandler {
	return &PublishIssueCommandHandler{
		repo:   repo,
		sender: sender,
		events: events,
		logger: logger,
	}
}

func (h *PublishIssueCommandHandler) Handle(ctx context.Context, cmd PublishIssueCommand) (*PublishResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	subscribers, err := h.repo.ListConfirmed(ctx)
	if err != nil {
		return nil, fmt.Errorf("list confirmed subscribers: %w", err)
	}

	result := &PublishResult{}
	for _, subscriber := range subscribers {
		email, err := domain.ParseSubscriberEmail(subscriber.Email)
		if err != nil {
			h.logger.WarnContext(ctx, "skipping confirmed subscriber, stored contact details are invalid",
				"subscriber_id", subscriber.ID,
				"error", err,
			)
			result.Skipped++
			continue
		}

		if err := h.sender.Send(ctx, email, cmd.Title, cmd.HTMLContent, cmd.TextContent); err != nil {
			h.logger.WarnContext(ctx, "failed to deliver newsletter issue to subscriber",
				"subscriber_id", subscriber.ID,
				"error", err,
			)
			result.Skipped++
			continue
		}
		result.Delivered++
	}

	if err := h.events.PublishIssuePublished(ctx, cmd.Title, result.Delivered); err != nil {
		h.logger.WarnContext(ctx, "issue delivered but failed to publish event", "error", err)
	}

	return result, nil
}
