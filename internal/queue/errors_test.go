package queue_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"crawlqueue/internal/queue"
)

func newMockStore(t *testing.T) (*queue.Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	store, err := queue.NewWithDB(sqlx.NewDb(db, "sqlmock"), queue.Options{Driver: queue.DriverSQLite})
	if err != nil {
		t.Fatalf("NewWithDB: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store, mock
}

func TestStorageErrorsPropagateWithKind(t *testing.T) {
	store, mock := newMockStore(t)
	driverErr := errors.New("connection refused")
	mock.ExpectQuery(`SELECT COUNT\(1\) FROM crawler_queue`).WillReturnError(driverErr)

	_, err := store.CountAll(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	var storageErr *queue.StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("expected StorageError, got %T: %v", err, err)
	}
	if storageErr.Op != "count all entries" {
		t.Fatalf("unexpected op %q", storageErr.Op)
	}
	if !errors.Is(err, driverErr) {
		t.Fatalf("expected wrapped driver error, got %v", err)
	}
	if queue.Kind(err) != "storage" {
		t.Fatalf("expected storage kind, got %q", queue.Kind(err))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAssignmentStorageFailureReturnsNoCount(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(`UPDATE crawler_queue`).WillReturnError(errors.New("disk full"))

	n, err := store.UpdateProcessIDAndSchedulerForQueueIDs(context.Background(), []int64{1, 2}, "worker")
	if n != 0 || queue.Kind(err) != "storage" {
		t.Fatalf("expected storage failure with zero count, got %d, %v", n, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAssignmentExpandsIDList(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(`UPDATE crawler_queue\s+SET process_id = \?, process_scheduled = \?\s+WHERE qid IN \(\?, \?, \?\)`).
		WithArgs("worker", sqlmock.AnyArg(), int64(4), int64(8), int64(12), "worker").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := store.UpdateProcessIDAndSchedulerForQueueIDs(context.Background(), []int64{4, 8, 12}, "worker")
	if err != nil {
		t.Fatalf("UpdateProcessIDAndSchedulerForQueueIDs failed: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3, got %d", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMarkExecutedOnMissingEntryIsNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(`UPDATE crawler_queue`).WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.MarkExecuted(context.Background(), 99, "worker", "")
	if !errors.Is(err, queue.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEmptyInputsSkipTheDatabase(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	if n, err := store.UpdateProcessIDAndSchedulerForQueueIDs(ctx, nil, "worker"); err != nil || n != 0 {
		t.Fatalf("expected no-op assignment, got %d, %v", n, err)
	}
	if n, err := store.UnsetProcessScheduledAndProcessIDForQueueEntries(ctx, nil); err != nil || n != 0 {
		t.Fatalf("expected no-op release, got %d, %v", n, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unexpected database calls: %v", err)
	}
}

func TestNewWithDBRejectsNilHandle(t *testing.T) {
	if _, err := queue.NewWithDB(nil, queue.Options{Driver: queue.DriverSQLite}); !errors.Is(err, queue.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}
