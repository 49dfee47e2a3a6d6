package idempotency

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrIncompleteClaim indicates the store observed a claim record without a
// committed response. Under the coordinator's ordering contract this cannot
// happen: a losing insert only resolves after the owning transaction has
// committed, and the owner commits only after storing its snapshot. Seeing
// this error means the contract was violated (e.g. a row committed by hand).
var ErrIncompleteClaim = errors.New("idempotency record exists but carries no response")

// Tx is a claim-store transaction. The caller must settle it exactly once,
// with Commit or Rollback. pgx.Tx satisfies this interface directly.
type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// ClaimStore is the transactional persistence layer behind the coordinator.
// One record exists per (user, key) pair; the record is created as a pending
// placeholder and later completed in place with a response snapshot.
//
// The critical property implementations must provide: InsertPlaceholder for a
// slot whose placeholder was inserted by another, still-open transaction
// blocks until that transaction concludes. If it committed, the call resolves
// to inserted=false; if it rolled back, the call resolves to inserted=true
// and the caller becomes the new owner. Postgres unique-index conflict
// handling gives exactly this behavior.
type ClaimStore interface {
	Begin(ctx context.Context) (Tx, error)

	// InsertPlaceholder attempts to create the pending record for
	// (userID, key) inside tx. May block; see the interface comment.
	InsertPlaceholder(ctx context.Context, tx Tx, userID uuid.UUID, key Key) (inserted bool, err error)

	// ReadCompleted returns the committed snapshot for (userID, key). It is
	// called outside any blocking transaction, only after InsertPlaceholder
	// reported a conflict. A pending or missing record yields
	// ErrIncompleteClaim.
	ReadCompleted(ctx context.Context, userID uuid.UUID, key Key) (*ResponseSnapshot, error)

	// Complete updates the pending record with the response snapshot inside
	// the same transaction that performed the side effects. The caller
	// commits tx afterwards; commit never precedes Complete.
	Complete(ctx context.Context, tx Tx, userID uuid.UUID, key Key, snapshot ResponseSnapshot) error
}
