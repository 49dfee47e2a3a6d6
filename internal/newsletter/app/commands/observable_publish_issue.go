package commands

import (
	"context"
	"log/slog"
	"time"

	"github.com/mailframe/newsletter-api/internal/newsletter/metrics"
	"github.com/mailframe/newsletter-api/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

type ObservableCommandHandler struct {
	handler CommandHandler
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewObservableCommandHandler(handler CommandHandler, logger *slog.Logger, metrics *metrics.Metrics) *ObservableCommandHandler {
	return &ObservableCommandHandler{
		handler: handler,
		logger:  logger,
		metrics: metrics,
	}
}

func (o *ObservableCommandHandler) Handle(ctx context.Context, cmd PublishIssueCommand) (*PublishResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "PublishIssueCommand.Handle")
	defer span.End()

	start := time.Now()
	var success bool
	defer func() {
		duration := time.Since(start).Seconds()
		o.metrics.RecordPublishDuration(ctx, duration)
		o.metrics.RecordIssuePublished(ctx, success)
	}()

	o.logger.InfoContext(ctx, "publishing newsletter issue",
		"title", cmd.Title,
	)

	result, err := o.handler.Handle(ctx, cmd)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		o.logger.ErrorContext(ctx, "failed to publish newsletter issue",
			"error", err,
			"title", cmd.Title,
		)
		return nil, err
	}

	o.metrics.RecordEmailsDelivered(ctx, result.Delivered)

	telemetry.AddSpanAttributes(span,
		attribute.String("issue.title", cmd.Title),
		attribute.Int("issue.delivered", result.Delivered),
		attribute.Int("issue.skipped", result.Skipped),
	)

	o.logger.InfoContext(ctx, "newsletter issue published",
		"title", cmd.Title,
		"delivered", result.Delivered,
		"skipped", result.Skipped,
	)

	success = true
	telemetry.SetSpanSuccess(span)

	return result, nil
}
