package idempotency

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Coordinator implements the claim-or-replay protocol over a ClaimStore.
// It holds no state of its own; all serialization between concurrent callers
// is delegated to the store's transaction machinery, so a single Coordinator
// is safe for any number of concurrent request handlers. An in-process mutex
// would not survive restarts or multiple instances sharing one database.
type Coordinator struct {
	store ClaimStore
}

func NewCoordinator(store ClaimStore) *Coordinator {
	return &Coordinator{store: store}
}

// Start claims processing rights for (userID, key), or replays the outcome of
// a finished attempt. Exactly one of the returned claim and snapshot is
// non-nil on success.
//
// When a claim is returned the caller owns an open transaction: it must run
// the guarded side effects, then call Claim.Complete with the response
// snapshot, or Claim.Rollback on any failure. The slot stays locked for the
// whole duration, which is what keeps a concurrent duplicate from executing
// the side effects a second time. A concurrent Start for the same pair blocks
// inside the store until the owner settles; callers must not wrap that wait
// in a short timeout.
func (c *Coordinator) Start(ctx context.Context, userID uuid.UUID, key Key) (*Claim, *ResponseSnapshot, error) {
	tx, err := c.store.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin claim transaction: %w", err)
	}

	inserted, err := c.store.InsertPlaceholder(ctx, tx, userID, key)
	if err != nil {
		_ = tx.Rollback(context.WithoutCancel(ctx))
		return nil, nil, fmt.Errorf("insert claim placeholder: %w", err)
	}

	if inserted {
		return &Claim{store: c.store, tx: tx, userID: userID, key: key}, nil, nil
	}

	// Lost the race. The transaction performed no writes; discard it before
	// reading so the read does not run under the aborted snapshot.
	_ = tx.Rollback(context.WithoutCancel(ctx))

	snapshot, err := c.store.ReadCompleted(ctx, userID, key)
	if err != nil {
		return nil, nil, fmt.Errorf("read completed claim: %w", err)
	}
	return nil, snapshot, nil
}

// Claim is exclusive ownership of processing for one (user, key) slot. It
// wraps the transaction opened by Start and enforces the ordering contract:
// the snapshot is stored before the transaction commits, never after.
type Claim struct {
	store   ClaimStore
	tx      Tx
	userID  uuid.UUID
	key     Key
	settled bool
}

// Complete records the response snapshot and commits the owning transaction,
// releasing any callers blocked on this slot. After Complete returns nil the
// snapshot is durable and every future or waiting duplicate replays it.
func (c *Claim) Complete(ctx context.Context, snapshot ResponseSnapshot) error {
	if c.settled {
		return fmt.Errorf("claim for key %q already settled", c.key)
	}

	if err := c.store.Complete(ctx, c.tx, c.userID, c.key, snapshot); err != nil {
		c.settled = true
		_ = c.tx.Rollback(context.WithoutCancel(ctx))
		return fmt.Errorf("store claim response: %w", err)
	}

	if err := c.tx.Commit(ctx); err != nil {
		c.settled = true
		_ = c.tx.Rollback(context.WithoutCancel(ctx))
		return fmt.Errorf("commit claim: %w", err)
	}

	c.settled = true
	return nil
}

// Rollback aborts the claim, erasing the pending record and freeing the slot
// so a genuine retry re-executes from scratch. It is a no-op after Complete,
// which makes it safe to defer. The rollback runs even when ctx is already
// canceled: a disconnected client must still release waiters.
func (c *Claim) Rollback(ctx context.Context) error {
	if c.settled {
		return nil
	}
	c.settled = true
	if err := c.tx.Rollback(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("rollback claim: %w", err)
	}
	return nil
}
