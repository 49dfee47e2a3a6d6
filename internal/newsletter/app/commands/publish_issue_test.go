package commands_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mailframe/newsletter-api/internal/newsletter/adapters/memory"
	"github.com/mailframe/newsletter-api/internal/newsletter/app/commands"
	"github.com/mailframe/newsletter-api/internal/newsletter/domain"
)

type recordingSender struct {
	mu         sync.Mutex
	recipients []string
	failFor    map[string]error
}

func newRecordingSender() *recordingSender {
	return &recordingSender{failFor: make(map[string]error)}
}

func (s *recordingSender) Send(_ context.Context, recipient domain.SubscriberEmail, _, _, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failFor[recipient.String()]; ok {
		return err
	}
	s.recipients = append(s.recipients, recipient.String())
	return nil
}

type recordingEventBus struct {
	issuesPublished int
	lastDelivered   int
	publishErr      error
}

func (b *recordingEventBus) PublishIssuePublished(_ context.Context, _ string, delivered int) error {
	if b.publishErr != nil {
		return b.publishErr
	}
	b.issuesPublished++
	b.lastDelivered = delivered
	return nil
}

func (b *recordingEventBus) PublishSubscriberCreated(_ context.Context, _ string) error {
	return nil
}

func (b *recordingEventBus) PublishSubscriberConfirmed(_ context.Context, _ string) error {
	return nil
}

type failingListRepo struct {
	*memory.Repository
	err error
}

func (r *failingListRepo) ListConfirmed(_ context.Context) ([]domain.Subscriber, error) {
	return nil, r.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedSubscriber(t *testing.T, repo *memory.Repository, email string, status domain.SubscriberStatus) domain.Subscriber {
	t.Helper()
	subscriber := domain.Subscriber{
		ID:           uuid.New(),
		Email:        email,
		Name:         "Reader",
		Status:       status,
		SubscribedAt: time.Now().UTC(),
	}
	if err := repo.Create(context.Background(), subscriber); err != nil {
		t.Fatalf("failed to create subscriber: %v", err)
	}
	return subscriber
}

func TestPublishIssueCommandHandler(t *testing.T) {
	ctx := context.Background()

	cmd := commands.PublishIssueCommand{
		Title:       "Issue #1",
		HTMLContent: "<p>Hello</p>",
		TextContent: "Hello",
	}

	t.Run("delivers issue to every confirmed subscriber", func(t *testing.T) {
		repo := memory.NewRepository()
		seedSubscriber(t, repo, "first@example.com", domain.StatusConfirmed)
		seedSubscriber(t, repo, "second@example.com", domain.StatusConfirmed)
		seedSubscriber(t, repo, "pending@example.com", domain.StatusPendingConfirmation)

		sender := newRecordingSender()
		events := &recordingEventBus{}
		handler := commands.NewPublishIssueCommandHandler(repo, sender, events, testLogger())

		result, err := handler.Handle(ctx, cmd)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if result.Delivered != 2 {
			t.Errorf("expected 2 delivered, got %d", result.Delivered)
		}
		if result.Skipped != 0 {
			t.Errorf("expected 0 skipped, got %d", result.Skipped)
		}
		if len(sender.recipients) != 2 {
			t.Errorf("expected 2 emails sent, got %d", len(sender.recipients))
		}
		if events.issuesPublished != 1 {
			t.Errorf("expected 1 published event, got %d", events.issuesPublished)
		}
		if events.lastDelivered != 2 {
			t.Errorf("expected event to report 2 delivered, got %d", events.lastDelivered)
		}
	})

	t.Run("skips subscriber when delivery fails and continues fan-out", func(t *testing.T) {
		repo := memory.NewRepository()
		seedSubscriber(t, repo, "first@example.com", domain.StatusConfirmed)
		seedSubscriber(t, repo, "broken@example.com", domain.StatusConfirmed)
		seedSubscriber(t, repo, "third@example.com", domain.StatusConfirmed)

		sender := newRecordingSender()
		sender.failFor["broken@example.com"] = errors.New("smtp 550")
		handler := commands.NewPublishIssueCommandHandler(repo, sender, &recordingEventBus{}, testLogger())

		result, err := handler.Handle(ctx, cmd)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if result.Delivered != 2 {
			t.Errorf("expected 2 delivered, got %d", result.Delivered)
		}
		if result.Skipped != 1 {
			t.Errorf("expected 1 skipped, got %d", result.Skipped)
		}
	})

	t.Run("skips subscriber whose stored email no longer parses", func(t *testing.T) {
		repo := memory.NewRepository()
		seedSubscriber(t, repo, "valid@example.com", domain.StatusConfirmed)
		// Bypasses parsing on write, the way a relaxed legacy validation would have.
		seedSubscriber(t, repo, "not-an-email", domain.StatusConfirmed)

		sender := newRecordingSender()
		handler := commands.NewPublishIssueCommandHandler(repo, sender, &recordingEventBus{}, testLogger())

		result, err := handler.Handle(ctx, cmd)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if result.Delivered != 1 {
			t.Errorf("expected 1 delivered, got %d", result.Delivered)
		}
		if result.Skipped != 1 {
			t.Errorf("expected 1 skipped, got %d", result.Skipped)
		}
	})

	t.Run("fails when subscriber listing fails", func(t *testing.T) {
		repo := &failingListRepo{Repository: memory.NewRepository(), err: errors.New("connection refused")}
		sender := newRecordingSender()
		handler := commands.NewPublishIssueCommandHandler(repo, sender, &recordingEventBus{}, testLogger())

		if _, err := handler.Handle(ctx, cmd); err == nil {
			t.Fatal("expected error when listing fails")
		}
		if len(sender.recipients) != 0 {
			t.Errorf("expected no emails sent, got %d", len(sender.recipients))
		}
	})

	t.Run("returns validation error for incomplete command", func(t *testing.T) {
		handler := commands.NewPublishIssueCommandHandler(memory.NewRepository(), newRecordingSender(), &recordingEventBus{}, testLogger())

		invalid := cmd
		invalid.Title = ""
		if _, err := handler.Handle(ctx, invalid); err == nil {
			t.Fatal("expected validation error for missing title")
		}
	})

	t.Run("does not fail when event publish fails", func(t *testing.T) {
		repo := memory.NewRepository()
		seedSubscriber(t, repo, "first@example.com", domain.StatusConfirmed)

		events := &recordingEventBus{publishErr: errors.New("broker unavailable")}
		handler := commands.NewPublishIssueCommandHandler(repo, newRecordingSender(), events, testLogger())

		result, err := handler.Handle(ctx, cmd)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if result.Delivered != 1 {
			t.Errorf("expected 1 delivered, got %d", result.Delivered)
		}
	})
}
