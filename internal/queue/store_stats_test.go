package queue_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"crawlqueue/internal/queue"
)

func TestCountsOverFixture(t *testing.T) {
	_, store := openFixtureStore(t)
	ctx := context.Background()

	checks := []struct {
		name string
		fn   func(context.Context) (int, error)
		want int
	}{
		{"CountAll", store.CountAll, 14},
		{"CountUnprocessedItems", store.CountUnprocessedItems, 7},
		{"CountAllPendingItems", store.CountAllPendingItems, 7},
		{"CountAllAssignedPendingItems", store.CountAllAssignedPendingItems, 3},
		{"CountAllUnassignedPendingItems", store.CountAllUnassignedPendingItems, 4},
	}
	for _, check := range checks {
		got, err := check.fn(ctx)
		if err != nil {
			t.Fatalf("%s failed: %v", check.name, err)
		}
		if got != check.want {
			t.Fatalf("%s = %d, want %d", check.name, got, check.want)
		}
	}

	counts, err := store.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts failed: %v", err)
	}
	want := queue.Counts{Total: 14, Pending: 7, AssignedPending: 3, UnassignedPending: 4}
	if counts != want {
		t.Fatalf("Counts = %+v, want %+v", counts, want)
	}
}

func TestCountPendingItemsGroupedByConfiguration(t *testing.T) {
	_, store := openFixtureStore(t)

	rows, err := store.CountPendingItemsGroupedByConfiguration(context.Background())
	if err != nil {
		t.Fatalf("CountPendingItemsGroupedByConfiguration failed: %v", err)
	}
	want := []queue.ConfigurationCount{
		{ConfigurationName: "FirstConfiguration", Unprocessed: 2, AssignedButUnprocessed: 0},
		{ConfigurationName: "SecondConfiguration", Unprocessed: 3, AssignedButUnprocessed: 1},
		{ConfigurationName: "ThirdConfiguration", Unprocessed: 2, AssignedButUnprocessed: 2},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("grouped counts = %+v, want %+v", rows, want)
	}
}

func TestSetIDsWithUnprocessedEntries(t *testing.T) {
	_, store := openFixtureStore(t)

	ids, err := store.SetIDsWithUnprocessedEntries(context.Background())
	if err != nil {
		t.Fatalf("SetIDsWithUnprocessedEntries failed: %v", err)
	}
	if want := []int64{0, 123, 456, 789}; !reflect.DeepEqual(ids, want) {
		t.Fatalf("set ids = %v, want %v", ids, want)
	}
}

func TestTotalQueueEntriesByConfiguration(t *testing.T) {
	_, store := openFixtureStore(t)
	ctx := context.Background()

	totals, err := store.TotalQueueEntriesByConfiguration(ctx, []int64{123, 789})
	if err != nil {
		t.Fatalf("TotalQueueEntriesByConfiguration failed: %v", err)
	}
	if want := map[string]int{"SecondConfiguration": 2, "ThirdConfiguration": 1}; !reflect.DeepEqual(totals, want) {
		t.Fatalf("totals = %v, want %v", totals, want)
	}

	empty, err := store.TotalQueueEntriesByConfiguration(ctx, nil)
	if err != nil {
		t.Fatalf("TotalQueueEntriesByConfiguration(nil) failed: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected empty totals, got %v", empty)
	}
}

func TestAvailableSets(t *testing.T) {
	_, store := openFixtureStore(t)

	sets, err := store.AvailableSets(context.Background())
	if err != nil {
		t.Fatalf("AvailableSets failed: %v", err)
	}
	if len(sets) != 6 {
		t.Fatalf("expected 6 sets, got %d: %+v", len(sets), sets)
	}
	if sets[0] != (queue.SetSummary{SetID: 0, Count: 3, ScheduledAt: 0}) {
		t.Fatalf("unexpected first set %+v", sets[0])
	}
	for i := 1; i < len(sets); i++ {
		if sets[i-1].SetID >= sets[i].SetID {
			t.Fatalf("sets not ordered by id: %+v", sets)
		}
	}
}

func TestLastProcessedEntries(t *testing.T) {
	_, store := openFixtureStore(t)
	ctx := context.Background()

	timestamps, err := store.LastProcessedEntriesTimestamps(ctx, 3)
	if err != nil {
		t.Fatalf("LastProcessedEntriesTimestamps failed: %v", err)
	}
	if want := []int64{20, 20, 18}; !reflect.DeepEqual(timestamps, want) {
		t.Fatalf("timestamps = %v, want %v", timestamps, want)
	}

	entries, err := store.LastProcessedEntries(ctx, 2)
	if err != nil {
		t.Fatalf("LastProcessedEntries failed: %v", err)
	}
	if len(entries) != 2 || entries[0].ID != 17 || entries[1].ID != 3 {
		t.Fatalf("unexpected last processed entries %+v", entries)
	}

	if _, err := store.LastProcessedEntries(ctx, -1); !errors.Is(err, queue.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestPerformanceData(t *testing.T) {
	_, store := openFixtureStore(t)
	ctx := context.Background()

	data, err := store.PerformanceData(ctx, 9, 21)
	if err != nil {
		t.Fatalf("PerformanceData failed: %v", err)
	}
	want := map[string]queue.ProcessPerformance{
		"asdfgh": {ProcessID: "asdfgh", Start: 10, End: 18, URLCount: 3},
		"qwerty": {ProcessID: "qwerty", Start: 10, End: 20, URLCount: 2},
		"dvorak": {ProcessID: "dvorak", Start: 10, End: 20, URLCount: 2},
	}
	if !reflect.DeepEqual(data, want) {
		t.Fatalf("performance = %+v, want %+v", data, want)
	}

	narrow, err := store.PerformanceData(ctx, 16, 19)
	if err != nil {
		t.Fatalf("PerformanceData failed: %v", err)
	}
	if len(narrow) != 1 || narrow["asdfgh"].URLCount != 1 {
		t.Fatalf("unexpected narrow window %+v", narrow)
	}

	if _, err := store.PerformanceData(ctx, 21, 9); !errors.Is(err, queue.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for inverted window, got %v", err)
	}
}
