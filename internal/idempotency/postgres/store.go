package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mailframe/newsletter-api/internal/idempotency"
)

// Store persists claim records in the idempotency table, one row per
// (user_id, idempotency_key). The composite primary key doubles as the slot
// lock: an INSERT ... ON CONFLICT DO NOTHING that collides with an uncommitted
// placeholder blocks inside Postgres until the owning transaction concludes,
// then resolves to zero rows (owner committed) or one row (owner rolled back).
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Begin(ctx context.Context) (idempotency.Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return tx, nil
}

func (s *Store) InsertPlaceholder(ctx context.Context, tx idempotency.Tx, userID uuid.UUID, key idempotency.Key) (bool, error) {
	pgxTx, err := unwrap(tx)
	if err != nil {
		return false, err
	}

	query := `
		INSERT INTO idempotency (user_id, idempotency_key, created_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id, idempotency_key) DO NOTHING
	`

	tag, err := pgxTx.Exec(ctx, query, userID, key.String())
	if err != nil {
		return false, fmt.Errorf("insert idempotency placeholder: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

func (s *Store) ReadCompleted(ctx context.Context, userID uuid.UUID, key idempotency.Key) (*idempotency.ResponseSnapshot, error) {
	query := `
		SELECT response_status_code, response_headers, response_body
		FROM idempotency
		WHERE user_id = $1 AND idempotency_key = $2
	`

	var (
		statusCode *int
		headers    []byte
		body       []byte
	)
	err := s.pool.QueryRow(ctx, query, userID, key.String()).Scan(&statusCode, &headers, &body)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, idempotency.ErrIncompleteClaim
		}
		return nil, fmt.Errorf("select idempotency record: %w", err)
	}

	if statusCode == nil {
		return nil, idempotency.ErrIncompleteClaim
	}

	headerPairs, err := idempotency.UnmarshalHeaders(headers)
	if err != nil {
		return nil, err
	}

	return &idempotency.ResponseSnapshot{
		StatusCode: *statusCode,
		Headers:    headerPairs,
		Body:       body,
	}, nil
}

func (s *Store) Complete(ctx context.Context, tx idempotency.Tx, userID uuid.UUID, key idempotency.Key, snapshot idempotency.ResponseSnapshot) error {
	pgxTx, err := unwrap(tx)
	if err != nil {
		return err
	}

	headers, err := idempotency.MarshalHeaders(snapshot.Headers)
	if err != nil {
		return err
	}

	query := `
		UPDATE idempotency
		SET response_status_code = $3,
		    response_headers = $4,
		    response_body = $5
		WHERE user_id = $1 AND idempotency_key = $2
	`

	tag, err := pgxTx.Exec(ctx, query, userID, key.String(), snapshot.StatusCode, headers, snapshot.Body)
	if err != nil {
		return fmt.Errorf("update idempotency record: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no pending idempotency record for key %q", key)
	}

	return nil
}

func unwrap(tx idempotency.Tx) (pgx.Tx, error) {
	pgxTx, ok := tx.(pgx.Tx)
	if !ok {
		return nil, fmt.Errorf("transaction is %T, expected pgx.Tx", tx)
	}
	return pgxTx, nil
}
