package scheduler_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hazz-dev/cratecheck/internal/checker"
	"github.com/hazz-dev/cratecheck/internal/scheduler"
	"github.com/hazz-dev/cratecheck/internal/storage"
)

// mockChecker returns a fixed availability for every name.
type mockChecker struct {
	availability checker.Availability
	err          error
	calls        atomic.Int32
}

func (m *mockChecker) Check(_ context.Context, name string) (checker.Result, error) {
	m.calls.Add(1)
	if m.err != nil {
		return checker.Result{}, m.err
	}
	return checker.Result{Name: name, Availability: m.availability, CheckedAt: time.Now()}, nil
}

// mockStore records inserted checks.
type mockStore struct {
	mu     sync.Mutex
	checks []checker.Result
	latest map[string]*storage.Check
	err    error
}

func (m *mockStore) InsertCheck(_ context.Context, r checker.Result) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	m.checks = append(m.checks, r)
	m.mu.Unlock()
	return nil
}

func (m *mockStore) LatestCheck(_ context.Context, name string) (*storage.Check, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.latest != nil {
		return m.latest[name], nil
	}
	return nil, nil
}

func (m *mockStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.checks)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestScheduler_RunsCheckImmediately(t *testing.T) {
	store := &mockStore{}
	mc := &mockChecker{availability: checker.Unavailable}
	sched := scheduler.New([]string{"serde"}, time.Hour, store, mc, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched.Start(ctx)
	waitFor(t, func() bool { return store.count() >= 1 })

	if store.count() < 1 {
		t.Error("expected at least one check to run immediately")
	}
}

func TestScheduler_RunsPeriodicChecks(t *testing.T) {
	store := &mockStore{}
	mc := &mockChecker{availability: checker.Unavailable}
	sched := scheduler.New([]string{"serde"}, 50*time.Millisecond, store, mc, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	sched.Start(ctx)
	<-ctx.Done()
	sched.Wait()

	// 1 immediate + ~5 ticks.
	if n := store.count(); n < 3 {
		t.Errorf("expected at least 3 checks in 300ms, got %d", n)
	}
}

func TestScheduler_ContextCancellation(t *testing.T) {
	store := &mockStore{}
	mc := &mockChecker{availability: checker.Unavailable}
	sched := scheduler.New([]string{"serde"}, time.Hour, store, mc, nil)

	ctx, cancel := context.WithCancel(context.Background())
	sched.Start(ctx)

	time.Sleep(50 * time.Millisecond)
	cancel()

	done := make(chan struct{})
	go func() {
		sched.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Error("Wait() did not return within 2s after context cancel")
	}
}

func TestScheduler_OnResultReceivesPreviousAvailability(t *testing.T) {
	store := &mockStore{
		latest: map[string]*storage.Check{
			"my-crate": {Name: "my-crate", Availability: checker.Unavailable},
		},
	}
	mc := &mockChecker{availability: checker.Available}

	type call struct {
		result checker.Result
		prev   *checker.Availability
	}
	var mu sync.Mutex
	var calls []call

	sched := scheduler.New([]string{"my-crate", "fresh"}, time.Hour, store, mc, nil)
	sched.SetOnResult(func(r checker.Result, prev *checker.Availability) {
		mu.Lock()
		calls = append(calls, call{r, prev})
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	sched.Start(ctx)
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(calls) >= 2
	})
	cancel()
	sched.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(calls) < 2 {
		t.Fatalf("expected 2 callbacks, got %d", len(calls))
	}
	for _, c := range calls {
		switch c.result.Name {
		case "my-crate":
			if c.prev == nil || *c.prev != checker.Unavailable {
				t.Errorf("my-crate: expected previous Unavailable, got %v", c.prev)
			}
		case "fresh":
			if c.prev != nil {
				t.Errorf("fresh: expected nil previous availability, got %v", *c.prev)
			}
		default:
			t.Errorf("unexpected name %q", c.result.Name)
		}
		if c.result.Availability != checker.Available {
			t.Errorf("expected Available, got %v", c.result.Availability)
		}
	}
}

func TestScheduler_CheckErrorSkipsStore(t *testing.T) {
	store := &mockStore{}
	mc := &mockChecker{err: checker.ErrEmptyName}
	var callbacks atomic.Int32
	sched := scheduler.New([]string{""}, time.Hour, store, mc, nil)
	sched.SetOnResult(func(checker.Result, *checker.Availability) { callbacks.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	sched.Start(ctx)
	waitFor(t, func() bool { return mc.calls.Load() >= 1 })
	cancel()
	sched.Wait()

	if store.count() != 0 {
		t.Errorf("expected no stored checks, got %d", store.count())
	}
	if callbacks.Load() != 0 {
		t.Errorf("expected no callbacks, got %d", callbacks.Load())
	}
}

func TestScheduler_StoreErrorDoesNotCrash(t *testing.T) {
	store := &mockStore{err: errors.New("disk full")}
	mc := &mockChecker{availability: checker.Unavailable}
	sched := scheduler.New([]string{"serde"}, time.Hour, store, mc, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	sched.Start(ctx)
	<-ctx.Done()
	sched.Wait()
}

func TestScheduler_MultipleNames(t *testing.T) {
	store := &mockStore{}
	mc := &mockChecker{availability: checker.Available}
	sched := scheduler.New([]string{"a-crate", "b-crate"}, time.Hour, store, mc, nil)

	ctx, cancel := context.WithCancel(context.Background())
	sched.Start(ctx)
	waitFor(t, func() bool { return store.count() >= 2 })
	cancel()
	sched.Wait()

	if n := store.count(); n < 2 {
		t.Errorf("expected at least 2 checks (one per name), got %d", n)
	}
}

// blockingChecker stalls until the lookup context ends, then reports Unknown
// the way the registry checker does for a cancelled request.
type blockingChecker struct {
	started chan struct{}
	once    sync.Once
}

func (b *blockingChecker) Check(ctx context.Context, name string) (checker.Result, error) {
	b.once.Do(func() { close(b.started) })
	<-ctx.Done()
	return checker.Result{Name: name, Availability: checker.Unknown, Error: ctx.Err().Error(), CheckedAt: time.Now()}, nil
}

func TestScheduler_CancelledLookupNotReported(t *testing.T) {
	prev := &storage.Check{Name: "serde", Availability: checker.Unavailable}
	store := &mockStore{latest: map[string]*storage.Check{"serde": prev}}
	bc := &blockingChecker{started: make(chan struct{})}
	sched := scheduler.New([]string{"serde"}, time.Hour, store, bc, nil)

	var called atomic.Int32
	sched.SetOnResult(func(checker.Result, *checker.Availability) {
		called.Add(1)
	})

	ctx, cancel := context.WithCancel(context.Background())
	sched.Start(ctx)

	select {
	case <-bc.started:
	case <-time.After(2 * time.Second):
		t.Fatal("lookup never started")
	}
	cancel()
	sched.Wait()

	if n := called.Load(); n != 0 {
		t.Errorf("expected no callback for interrupted lookup, got %d", n)
	}
	if n := store.count(); n != 0 {
		t.Errorf("expected nothing stored for interrupted lookup, got %d", n)
	}
}
