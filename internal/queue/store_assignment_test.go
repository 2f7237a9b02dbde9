package queue_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"crawlqueue/internal/queue"
)

func TestAssignmentSkipsEntriesOwnedByOtherProcess(t *testing.T) {
	_, store := openFixtureStore(t)
	ctx := context.Background()
	ids := []int64{4, 8, 15, 18}

	assigned, err := store.UpdateProcessIDAndSchedulerForQueueIDs(ctx, ids, "2000")
	if err != nil {
		t.Fatalf("UpdateProcessIDAndSchedulerForQueueIDs failed: %v", err)
	}
	if assigned != 2 {
		t.Fatalf("expected 2 assigned entries, got %d", assigned)
	}

	released, err := store.UnsetProcessScheduledAndProcessIDForQueueEntries(ctx, []string{"1007"})
	if err != nil {
		t.Fatalf("UnsetProcessScheduledAndProcessIDForQueueEntries failed: %v", err)
	}
	if released != 2 {
		t.Fatalf("expected 2 released entries, got %d", released)
	}

	assigned, err = store.UpdateProcessIDAndSchedulerForQueueIDs(ctx, ids, "2000")
	if err != nil {
		t.Fatalf("UpdateProcessIDAndSchedulerForQueueIDs failed: %v", err)
	}
	if assigned != 4 {
		t.Fatalf("expected 4 assigned entries after release, got %d", assigned)
	}

	entry, err := store.FindByQueueID(ctx, 15)
	if err != nil {
		t.Fatalf("FindByQueueID failed: %v", err)
	}
	if entry.AssignedProcessID != "2000" || entry.ProcessScheduledAt == 0 {
		t.Fatalf("unexpected assignment %#v", entry)
	}
}

func TestAssignmentIgnoresExecutedEntries(t *testing.T) {
	_, store := openFixtureStore(t)

	assigned, err := store.UpdateProcessIDAndSchedulerForQueueIDs(context.Background(), []int64{2, 3, 5}, "2000")
	if err != nil {
		t.Fatalf("UpdateProcessIDAndSchedulerForQueueIDs failed: %v", err)
	}
	if assigned != 0 {
		t.Fatalf("expected executed entries to stay untouched, got %d", assigned)
	}
}

func TestAssignmentRequiresProcessID(t *testing.T) {
	_, store := openFixtureStore(t)

	_, err := store.UpdateProcessIDAndSchedulerForQueueIDs(context.Background(), []int64{4}, " ")
	if !errors.Is(err, queue.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestConcurrentAssignmentHasOneWinner(t *testing.T) {
	_, store := openFixtureStore(t)
	ctx := context.Background()

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int64
	)
	for _, processID := range []string{"a", "b", "c", "d"} {
		wg.Add(1)
		go func(processID string) {
			defer wg.Done()
			n, err := store.UpdateProcessIDAndSchedulerForQueueIDs(ctx, []int64{4, 8, 12, 13}, processID)
			if err != nil {
				t.Errorf("assign for %s failed: %v", processID, err)
				return
			}
			mu.Lock()
			total += n
			mu.Unlock()
		}(processID)
	}
	wg.Wait()

	if total != 4 {
		t.Fatalf("expected each entry to be won exactly once, got %d wins", total)
	}
	unassigned, err := store.CountAllUnassignedPendingItems(ctx)
	if err != nil {
		t.Fatalf("CountAllUnassignedPendingItems failed: %v", err)
	}
	if unassigned != 0 {
		t.Fatalf("expected no unassigned entries, got %d", unassigned)
	}
}

func TestUnsetIsIdempotent(t *testing.T) {
	_, store := openFixtureStore(t)
	ctx := context.Background()

	if _, err := store.UnsetProcessScheduledAndProcessIDForQueueEntries(ctx, []string{"1007"}); err != nil {
		t.Fatalf("first unset failed: %v", err)
	}
	released, err := store.UnsetProcessScheduledAndProcessIDForQueueEntries(ctx, []string{"1007"})
	if err != nil {
		t.Fatalf("second unset failed: %v", err)
	}
	if released != 0 {
		t.Fatalf("expected second unset to release nothing, got %d", released)
	}
	unassigned, err := store.CountAllUnassignedPendingItems(ctx)
	if err != nil {
		t.Fatalf("CountAllUnassignedPendingItems failed: %v", err)
	}
	if unassigned != 6 {
		t.Fatalf("expected 6 unassigned entries, got %d", unassigned)
	}
	pending, err := store.CountNonExecutedItemsByProcess(ctx, queue.Process{ProcessID: "1007"})
	if err != nil {
		t.Fatalf("CountNonExecutedItemsByProcess failed: %v", err)
	}
	if pending != 0 {
		t.Fatalf("expected no pending entries for released process, got %d", pending)
	}
}

func TestProcessEntryLookups(t *testing.T) {
	_, store := openFixtureStore(t)
	ctx := context.Background()
	qwerty := queue.Process{ProcessID: "qwerty"}

	youngest, err := store.FindYoungestEntryForProcess(ctx, qwerty)
	if err != nil {
		t.Fatalf("FindYoungestEntryForProcess failed: %v", err)
	}
	if youngest == nil || youngest.ID != 2 {
		t.Fatalf("expected youngest qid 2, got %#v", youngest)
	}

	oldest, err := store.FindOldestEntryForProcess(ctx, qwerty)
	if err != nil {
		t.Fatalf("FindOldestEntryForProcess failed: %v", err)
	}
	if oldest == nil || oldest.ID != 3 {
		t.Fatalf("expected oldest qid 3, got %#v", oldest)
	}

	missing, err := store.FindYoungestEntryForProcess(ctx, queue.Process{ProcessID: "nobody"})
	if err != nil {
		t.Fatalf("FindYoungestEntryForProcess failed: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for unknown process, got %#v", missing)
	}

	executed, err := store.CountExecutedItemsByProcess(ctx, qwerty)
	if err != nil {
		t.Fatalf("CountExecutedItemsByProcess failed: %v", err)
	}
	if executed != 2 {
		t.Fatalf("expected 2 executed entries, got %d", executed)
	}

	pending, err := store.CountNonExecutedItemsByProcess(ctx, queue.Process{ProcessID: "1007"})
	if err != nil {
		t.Fatalf("CountNonExecutedItemsByProcess failed: %v", err)
	}
	if pending != 2 {
		t.Fatalf("expected 2 pending entries for 1007, got %d", pending)
	}
}
