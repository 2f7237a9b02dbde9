package testsupport

import (
	"context"
	"testing"
	"time"

	"crawlqueue/internal/config"
	"crawlqueue/internal/queue"
)

// FixedNow is the clock MustOpenStore pins stores to. It sits far beyond every
// fixture timestamp so cleanup treats all fixture executions as expired.
var FixedNow = time.Unix(1_700_000_000, 0)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	store, err := queue.OpenWithOptions(context.Background(), queue.Options{
		Driver:    cfg.Store.Driver,
		Path:      cfg.StorePath(),
		DSN:       cfg.Store.DSN,
		Retention: cfg.Retention(),
		Clock:     func() time.Time { return FixedNow },
	})
	if err != nil {
		t.Fatalf("queue.OpenWithOptions: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// Enqueue adds a pending entry for tests using the provided store.
func Enqueue(t testing.TB, store *queue.Store, pageID int64, configuration string) *queue.Entry {
	t.Helper()

	entry, err := store.Enqueue(context.Background(), queue.NewEntry{
		PageID:            pageID,
		ConfigurationName: configuration,
	})
	if err != nil {
		t.Fatalf("store.Enqueue: %v", err)
	}
	return entry
}
