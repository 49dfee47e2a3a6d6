package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mailframe/newsletter-api/internal/newsletter/domain"
	"github.com/mailframe/newsletter-api/internal/newsletter/ports"
)

const uniqueViolationCode = "23505"

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Create(ctx context.Context, subscriber domain.Subscriber) error {
	query := `
		INSERT INTO subscriptions (id, email, name, status, subscribed_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.pool.Exec(ctx, query,
		subscriber.ID,
		subscriber.Email,
		subscriber.Name,
		subscriber.Status,
		subscriber.SubscribedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return ports.ErrDuplicateEmail
		}
		return fmt.Errorf("insert subscriber: %w", err)
	}

	return nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Subscriber, error) {
	query := `
		SELECT id, email, name, status, subscribed_at
		FROM subscriptions
		WHERE id = $1
	`

	var subscriber domain.Subscriber
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&subscriber.ID,
		&subscriber.Email,
		&subscriber.Name,
		&subscriber.Status,
		&subscriber.SubscribedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("select subscriber: %w", err)
	}

	return &subscriber, nil
}

func (r *Repository) ListConfirmed(ctx context.Context) ([]domain.Subscriber, error) {
	query := `
		SELECT id, email, name, status, subscribed_at
		FROM subscriptions
		WHERE status = $1
		ORDER BY subscribed_at
	`

	rows, err := r.pool.Query(ctx, query, domain.StatusConfirmed)
	if err != nil {
		return nil, fmt.Errorf("query confirmed subscribers: %w", err)
	}
	defer rows.Close()

	var subscribers []domain.Subscriber
	for rows.Next() {
		var subscriber domain.Subscriber
		if err := rows.Scan(
			&subscriber.ID,
			&subscriber.Email,
			&subscriber.Name,
			&subscriber.Status,
			&subscriber.SubscribedAt,
		); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		subscribers = append(subscribers, subscriber)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscribers: %w", err)
	}

	return subscribers, nil
}

func (r *Repository) Confirm(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE subscriptions
		SET status = $1
		WHERE id = $2
	`

	result, err := r.pool.Exec(ctx, query, domain.StatusConfirmed, id)
	if err != nil {
		return fmt.Errorf("confirm subscriber: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ports.ErrNotFound
	}

	return nil
}
