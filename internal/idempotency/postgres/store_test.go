//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mailframe/newsletter-api/internal/database"
	"github.com/mailframe/newsletter-api/internal/idempotency"
	"github.com/mailframe/newsletter-api/internal/idempotency/postgres"
	testpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := testpostgres.Run(ctx,
		"postgres:16-alpine",
		testpostgres.WithDatabase("test"),
		testpostgres.WithUsername("test"),
		testpostgres.WithPassword("test"),
		testpostgres.BasicWaitStrategies(),
		testpostgres.WithWaitStrategy(wait.ForLog("database system is ready to accept connections").WithOccurrence(2)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	projectRoot := findProjectRoot(t)
	migrationsPath := filepath.Join(projectRoot, "migrations")

	if err := database.RunMigrations(connStr, migrationsPath); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	pool, err := database.NewPool(ctx, connStr)
	if err != nil {
		t.Fatalf("failed to create pool: %v", err)
	}

	t.Cleanup(func() {
		pool.Close()
	})

	return pool
}

func findProjectRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find project root (go.mod)")
		}
		dir = parent
	}
}

func mustKey(t *testing.T, raw string) idempotency.Key {
	t.Helper()
	key, err := idempotency.ParseKey(raw)
	if err != nil {
		t.Fatalf("failed to parse key %q: %v", raw, err)
	}
	return key
}

func TestStoreClaimAndReplay(t *testing.T) {
	pool := setupTestDB(t)
	store := postgres.NewStore(pool)
	ctx := context.Background()
	userID := uuid.New()
	key := mustKey(t, "claim-and-replay")

	snapshot := idempotency.ResponseSnapshot{
		StatusCode: http.StatusSeeOther,
		Body:       []byte(`issue published`),
	}.Header("Location", "/admin/newsletter")

	tx, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("begin failed: %v", err)
	}

	inserted, err := store.InsertPlaceholder(ctx, tx, userID, key)
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if !inserted {
		t.Fatal("expected to claim a fresh slot")
	}

	if err := store.Complete(ctx, tx, userID, key, snapshot); err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	saved, err := store.ReadCompleted(ctx, userID, key)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !saved.Equal(snapshot) {
		t.Errorf("expected snapshot %+v, got %+v", snapshot, saved)
	}
}

func TestStoreInsertConflictAfterCommit(t *testing.T) {
	pool := setupTestDB(t)
	store := postgres.NewStore(pool)
	ctx := context.Background()
	userID := uuid.New()
	key := mustKey(t, "conflict")

	tx, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	if _, err := store.InsertPlaceholder(ctx, tx, userID, key); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := store.Complete(ctx, tx, userID, key, idempotency.ResponseSnapshot{StatusCode: http.StatusOK}); err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	tx2, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("second begin failed: %v", err)
	}
	defer func() { _ = tx2.Rollback(ctx) }()

	inserted, err := store.InsertPlaceholder(ctx, tx2, userID, key)
	if err != nil {
		t.Fatalf("second insert failed: %v", err)
	}
	if inserted {
		t.Error("expected conflict against committed record")
	}
}

func TestStoreConflictingInsertBlocksUntilCommit(t *testing.T) {
	pool := setupTestDB(t)
	store := postgres.NewStore(pool)
	ctx := context.Background()
	userID := uuid.New()
	key := mustKey(t, "blocking")

	owner, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("owner begin failed: %v", err)
	}
	if _, err := store.InsertPlaceholder(ctx, owner, userID, key); err != nil {
		t.Fatalf("owner insert failed: %v", err)
	}

	type result struct {
		inserted bool
		waited   time.Duration
		err      error
	}
	resolved := make(chan result, 1)
	go func() {
		waiter, err := store.Begin(ctx)
		if err != nil {
			resolved <- result{err: err}
			return
		}
		defer func() { _ = waiter.Rollback(ctx) }()

		start := time.Now()
		inserted, err := store.InsertPlaceholder(ctx, waiter, userID, key)
		resolved <- result{inserted: inserted, waited: time.Since(start), err: err}
	}()

	// Hold the slot for the duration of simulated side effects; the waiter
	// must stay blocked inside Postgres for the whole window.
	const holdFor = 2 * time.Second
	time.Sleep(holdFor)

	snapshot := idempotency.ResponseSnapshot{StatusCode: http.StatusSeeOther}.
		Header("Location", "/admin/newsletter")
	if err := store.Complete(ctx, owner, userID, key, snapshot); err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if err := owner.Commit(ctx); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	select {
	case r := <-resolved:
		if r.err != nil {
			t.Fatalf("waiter failed: %v", r.err)
		}
		if r.inserted {
			t.Error("expected waiter to lose the race after the owner committed")
		}
		if r.waited < holdFor-100*time.Millisecond {
			t.Errorf("waiter resolved after %v, before the owner committed", r.waited)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("waiter never resolved")
	}

	// The waiter observed a committed row, so the snapshot must be complete.
	saved, err := store.ReadCompleted(ctx, userID, key)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !saved.Equal(snapshot) {
		t.Errorf("expected snapshot %+v, got %+v", snapshot, saved)
	}
}

func TestStoreRollbackLeavesNoTrace(t *testing.T) {
	pool := setupTestDB(t)
	store := postgres.NewStore(pool)
	ctx := context.Background()
	userID := uuid.New()
	key := mustKey(t, "rollback")

	tx, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	if _, err := store.InsertPlaceholder(ctx, tx, userID, key); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := tx.Rollback(ctx); err != nil {
		t.Fatalf("rollback failed: %v", err)
	}

	if _, err := store.ReadCompleted(ctx, userID, key); !errors.Is(err, idempotency.ErrIncompleteClaim) {
		t.Fatalf("expected ErrIncompleteClaim after rollback, got: %v", err)
	}

	tx2, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("retry begin failed: %v", err)
	}
	defer func() { _ = tx2.Rollback(ctx) }()

	inserted, err := store.InsertPlaceholder(ctx, tx2, userID, key)
	if err != nil {
		t.Fatalf("retry insert failed: %v", err)
	}
	if !inserted {
		t.Error("expected the slot to be free after rollback")
	}
}

func TestStoreSameKeyDifferentUsers(t *testing.T) {
	pool := setupTestDB(t)
	store := postgres.NewStore(pool)
	ctx := context.Background()
	key := mustKey(t, "shared-key")

	txA, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	defer func() { _ = txA.Rollback(ctx) }()
	if _, err := store.InsertPlaceholder(ctx, txA, uuid.New(), key); err != nil {
		t.Fatalf("first user insert failed: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		txB, err := store.Begin(ctx)
		if err != nil {
			done <- err
			return
		}
		defer func() { _ = txB.Rollback(ctx) }()
		_, err = store.InsertPlaceholder(ctx, txB, uuid.New(), key)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("second user insert failed: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("second user blocked on a slot owned by a different user")
	}
}
