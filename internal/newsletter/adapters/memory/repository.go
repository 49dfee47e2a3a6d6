package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/mailframe/newsletter-api/internal/newsletter/domain"
	"github.com/mailframe/newsletter-api/internal/newsletter/ports"
)

// Repository provides an in-memory store useful for local development and tests.
type Repository struct {
	mu          sync.RWMutex
	subscribers map[uuid.UUID]domain.Subscriber
}

// NewRepository constructs a new in-memory repository.
func NewRepository() *Repository {
	return &Repository{subscribers: make(map[uuid.UUID]domain.Subscriber)}
}

// Create stores a new subscriber.
func (r *Repository) Create(_ context.Context, subscriber domain.Subscriber) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.subscribers {
		if existing.Email == subscriber.Email {
			return ports.ErrDuplicateEmail
		}
	}
	r.subscribers[subscriber.ID] = subscriber
	return nil
}

// GetByID fetches a single subscriber by identifier.
func (r *Repository) GetByID(_ context.Context, id uuid.UUID) (*domain.Subscriber, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	subscriber, ok := r.subscribers[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	copy := subscriber
	return &copy, nil
}

// ListConfirmed returns confirmed subscribers ordered by subscription time.
func (r *Repository) ListConfirmed(_ context.Context) ([]domain.Subscriber, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []domain.Subscriber
	for _, subscriber := range r.subscribers {
		if subscriber.Status == domain.StatusConfirmed {
			result = append(result, subscriber)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].SubscribedAt.Before(result[j].SubscribedAt)
	})

	return result, nil
}

// Confirm marks a subscriber as confirmed.
func (r *Repository) Confirm(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	subscriber, ok := r.subscribers[id]
	if !ok {
		return ports.ErrNotFound
	}

	subscriber.Status = domain.StatusConfirmed
	r.subscribers[id] = subscriber
	return nil
}
