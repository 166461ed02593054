package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hazz-dev/cratecheck/internal/checker"
	"github.com/hazz-dev/cratecheck/internal/storage"
)

// Store defines the storage operations required by the scheduler.
type Store interface {
	InsertCheck(ctx context.Context, r checker.Result) error
	LatestCheck(ctx context.Context, name string) (*storage.Check, error)
}

// Checker looks up a single name.
type Checker interface {
	Check(ctx context.Context, name string) (checker.Result, error)
}

// Scheduler re-checks each watched name in its own goroutine.
type Scheduler struct {
	names    []string
	interval time.Duration
	store    Store
	checker  Checker
	onResult func(checker.Result, *checker.Availability)
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// New creates a new Scheduler. Pass nil logger to use the default logger.
func New(names []string, interval time.Duration, store Store, c Checker, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		names:    names,
		interval: interval,
		store:    store,
		checker:  c,
		logger:   logger,
	}
}

// SetOnResult sets the callback invoked after each lookup.
// result is the current lookup; prev is the previously stored availability (nil on first check).
func (s *Scheduler) SetOnResult(fn func(checker.Result, *checker.Availability)) {
	s.onResult = fn
}

// Start spawns one goroutine per name. It is non-blocking.
func (s *Scheduler) Start(ctx context.Context) {
	for _, name := range s.names {
		s.wg.Add(1)
		go s.watch(ctx, name)
	}
}

// Wait blocks until all watch goroutines have exited.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) watch(ctx context.Context, name string) {
	defer s.wg.Done()

	// Run immediately.
	s.runCheck(ctx, name)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runCheck(ctx, name)
		}
	}
}

func (s *Scheduler) runCheck(ctx context.Context, name string) {
	// Fetch previous availability before running the lookup.
	prev, err := s.store.LatestCheck(ctx, name)
	if err != nil {
		s.logger.Warn("fetching previous check", "name", name, "error", err)
	}

	result, err := s.checker.Check(ctx, name)
	if err != nil {
		s.logger.Error("checking name", "name", name, "error", err)
		return
	}
	// A lookup cut short by shutdown says nothing about the name.
	if ctx.Err() != nil {
		s.logger.Debug("check interrupted", "name", name)
		return
	}

	s.logger.Info("check result",
		"name", name,
		"availability", result.Availability,
		"status_code", result.StatusCode,
		"response_time", result.ResponseTime,
		"error", result.Error,
	)

	if err := s.store.InsertCheck(ctx, result); err != nil {
		s.logger.Error("storing check result", "name", name, "error", err)
	}

	if s.onResult != nil {
		var prevAvailability *checker.Availability
		if prev != nil {
			a := prev.Availability
			prevAvailability = &a
		}
		s.onResult(result, prevAvailability)
	}
}
