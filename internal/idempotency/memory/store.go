package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/mailframe/newsletter-api/internal/idempotency"
)

type slotKey struct {
	userID uuid.UUID
	key    string
}

type record struct {
	completed bool
	snapshot  idempotency.ResponseSnapshot
}

// Store is an in-memory ClaimStore for local development and tests. It
// reproduces the contract the Postgres store gets from unique-index conflict
// handling: a placeholder insert that collides with another open transaction
// waits until that transaction settles, then sees either the committed record
// (conflict) or a free slot (the owner rolled back).
//
// The serialization here lives in one process only; it is not a substitute
// for the shared database when multiple instances handle requests.
type Store struct {
	mu      sync.Mutex
	records map[slotKey]record
	pending map[slotKey]chan struct{}
}

func NewStore() *Store {
	return &Store{
		records: make(map[slotKey]record),
		pending: make(map[slotKey]chan struct{}),
	}
}

func (s *Store) Begin(_ context.Context) (idempotency.Tx, error) {
	return &tx{store: s, staged: make(map[slotKey]idempotency.ResponseSnapshot)}, nil
}

func (s *Store) InsertPlaceholder(ctx context.Context, t idempotency.Tx, userID uuid.UUID, key idempotency.Key) (bool, error) {
	memTx, err := s.unwrap(t)
	if err != nil {
		return false, err
	}

	k := slotKey{userID: userID, key: key.String()}
	for {
		s.mu.Lock()
		if _, ok := s.records[k]; ok {
			s.mu.Unlock()
			return false, nil
		}

		wait, held := s.pending[k]
		if !held {
			s.pending[k] = make(chan struct{})
			s.mu.Unlock()
			memTx.claimed = append(memTx.claimed, k)
			return true, nil
		}
		s.mu.Unlock()

		// Another open transaction holds the slot. Block until it settles,
		// then re-evaluate; the wait may be as long as the owner's side
		// effects take.
		select {
		case <-wait:
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
}

func (s *Store) ReadCompleted(_ context.Context, userID uuid.UUID, key idempotency.Key) (*idempotency.ResponseSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[slotKey{userID: userID, key: key.String()}]
	if !ok || !rec.completed {
		return nil, idempotency.ErrIncompleteClaim
	}

	snapshot := rec.snapshot
	snapshot.Headers = append([]idempotency.HeaderPair(nil), rec.snapshot.Headers...)
	snapshot.Body = append([]byte(nil), rec.snapshot.Body...)
	return &snapshot, nil
}

func (s *Store) Complete(_ context.Context, t idempotency.Tx, userID uuid.UUID, key idempotency.Key, snapshot idempotency.ResponseSnapshot) error {
	memTx, err := s.unwrap(t)
	if err != nil {
		return err
	}

	k := slotKey{userID: userID, key: key.String()}
	for _, claimed := range memTx.claimed {
		if claimed == k {
			memTx.staged[k] = snapshot
			return nil
		}
	}
	return fmt.Errorf("no pending idempotency record for key %q", key)
}

func (s *Store) unwrap(t idempotency.Tx) (*tx, error) {
	memTx, ok := t.(*tx)
	if !ok {
		return nil, fmt.Errorf("transaction is %T, expected memory transaction", t)
	}
	if memTx.store != s {
		return nil, fmt.Errorf("transaction belongs to a different store")
	}
	if memTx.settled {
		return nil, fmt.Errorf("transaction already settled")
	}
	return memTx, nil
}

type tx struct {
	store   *Store
	settled bool
	claimed []slotKey
	staged  map[slotKey]idempotency.ResponseSnapshot
}

func (t *tx) Commit(_ context.Context) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	if t.settled {
		return fmt.Errorf("transaction already settled")
	}
	t.settled = true

	for _, k := range t.claimed {
		if snapshot, ok := t.staged[k]; ok {
			t.store.records[k] = record{completed: true, snapshot: snapshot}
		} else {
			t.store.records[k] = record{}
		}
		t.release(k)
	}
	return nil
}

func (t *tx) Rollback(_ context.Context) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	if t.settled {
		return nil
	}
	t.settled = true

	for _, k := range t.claimed {
		t.release(k)
	}
	return nil
}

// release wakes waiters blocked on the slot. Caller holds store.mu.
func (t *tx) release(k slotKey) {
	if ch, ok := t.store.pending[k]; ok {
		close(ch)
		delete(t.store.pending, k)
	}
}
