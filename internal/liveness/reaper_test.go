package liveness_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"crawlqueue/internal/liveness"
	"crawlqueue/internal/registry"
	"crawlqueue/internal/testsupport"
)

func TestSweepReleasesEntriesOfExpiredProcesses(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.SeedFixture(t, cfg)

	mr := miniredis.RunT(t)
	reg := registry.New(redis.NewClient(&redis.Options{Addr: mr.Addr()}), registry.Options{TTL: time.Minute})
	defer reg.Close()

	ctx := context.Background()
	for _, id := range []string{"1007", "1008"} {
		if err := reg.Register(ctx, id); err != nil {
			t.Fatalf("Register %s: %v", id, err)
		}
	}
	mr.FastForward(40 * time.Second)
	if err := reg.Heartbeat(ctx, "1008"); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}
	mr.FastForward(40 * time.Second)

	reaper := liveness.NewReaper(reg, store, nil)
	result, err := reaper.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if len(result.Expired) != 1 || result.Expired[0] != "1007" {
		t.Fatalf("unexpected expired processes %v", result.Expired)
	}
	if result.Released != 2 {
		t.Fatalf("expected 2 released entries, got %d", result.Released)
	}

	unassigned, err := store.CountAllUnassignedPendingItems(ctx)
	if err != nil {
		t.Fatalf("CountAllUnassignedPendingItems failed: %v", err)
	}
	if unassigned != 6 {
		t.Fatalf("expected 6 unassigned entries, got %d", unassigned)
	}

	second, err := reaper.Sweep(ctx)
	if err != nil {
		t.Fatalf("second Sweep failed: %v", err)
	}
	if len(second.Expired) != 0 || second.Released != 0 {
		t.Fatalf("expected empty second sweep, got %+v", second)
	}
}

type stubSource struct {
	calls atomic.Int32
	err   error
}

func (s *stubSource) Expired(context.Context) ([]string, error) {
	s.calls.Add(1)
	return nil, s.err
}

func (s *stubSource) Acknowledge(_ context.Context, ids []string) ([]string, error) {
	return ids, nil
}

type stubReleaser struct{}

func (stubReleaser) UnsetProcessScheduledAndProcessIDForQueueEntries(context.Context, []string) (int64, error) {
	return 0, nil
}

// flakyReleaser fails its first call and delegates afterwards.
type flakyReleaser struct {
	next  liveness.Releaser
	calls atomic.Int32
}

func (f *flakyReleaser) UnsetProcessScheduledAndProcessIDForQueueEntries(ctx context.Context, ids []string) (int64, error) {
	if f.calls.Add(1) == 1 {
		return 0, errors.New("database is locked")
	}
	return f.next.UnsetProcessScheduledAndProcessIDForQueueEntries(ctx, ids)
}

func TestSweepRetriesProcessesAfterFailedRelease(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.SeedFixture(t, cfg)

	mr := miniredis.RunT(t)
	reg := registry.New(redis.NewClient(&redis.Options{Addr: mr.Addr()}), registry.Options{TTL: time.Minute})
	defer reg.Close()

	ctx := context.Background()
	if err := reg.Register(ctx, "1007"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	mr.FastForward(2 * time.Minute)

	releaser := &flakyReleaser{next: store}
	reaper := liveness.NewReaper(reg, releaser, nil)

	if _, err := reaper.Sweep(ctx); err == nil {
		t.Fatal("expected first sweep to fail")
	}

	result, err := reaper.Sweep(ctx)
	if err != nil {
		t.Fatalf("second Sweep failed: %v", err)
	}
	if len(result.Expired) != 1 || result.Expired[0] != "1007" {
		t.Fatalf("expected 1007 to be offered again, got %v", result.Expired)
	}
	if result.Released != 2 {
		t.Fatalf("expected 2 released entries, got %d", result.Released)
	}
	if releaser.calls.Load() != 2 {
		t.Fatalf("expected 2 release attempts, got %d", releaser.calls.Load())
	}

	third, err := reaper.Sweep(ctx)
	if err != nil {
		t.Fatalf("third Sweep failed: %v", err)
	}
	if len(third.Expired) != 0 {
		t.Fatalf("expected acknowledged process to be skipped, got %v", third.Expired)
	}
}

func TestSweepPropagatesSourceError(t *testing.T) {
	source := &stubSource{err: errors.New("redis down")}
	reaper := liveness.NewReaper(source, stubReleaser{}, nil)

	if _, err := reaper.Sweep(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	source := &stubSource{err: errors.New("redis down")}
	reaper := liveness.NewReaper(source, stubReleaser{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- reaper.Run(ctx, 5*time.Millisecond) }()

	deadline := time.After(2 * time.Second)
	for source.calls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("reaper did not keep sweeping after failures")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestRunRejectsZeroInterval(t *testing.T) {
	reaper := liveness.NewReaper(&stubSource{}, stubReleaser{}, nil)
	if err := reaper.Run(context.Background(), 0); err == nil {
		t.Fatal("expected error for zero interval")
	}
}
