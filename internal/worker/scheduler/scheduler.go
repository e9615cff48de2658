// Package scheduler runs the background jobs: recurring tasks on a
// cron schedule plus fire-and-forget one-shot dispatches.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler owns the lifecycle of all background work. Recurring tasks
// are driven by cron; one-shot tasks run on their own goroutine. Every
// task receives a context that is cancelled by Stop, and Stop waits for
// in-flight work before returning.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu      sync.Mutex
	started bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a Scheduler. Recurring tasks are skipped while their
// previous run is still in flight, and panics are contained per task.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}

	cronLogger := &cronSlog{logger: s.logger}
	s.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cronLogger),
		cron.Recover(cronLogger),
	))

	s.baseCtx, s.cancel = context.WithCancel(context.Background())
	return s
}

// RunRecurring registers task to run every interval once Start is
// called.
func (s *Scheduler) RunRecurring(name string, interval time.Duration, task func(ctx context.Context) error) error {
	if interval <= 0 {
		return fmt.Errorf("schedule %s: interval must be positive", name)
	}
	spec := fmt.Sprintf("@every %s", interval)
	_, err := s.cron.AddFunc(spec, func() {
		if err := task(s.baseCtx); err != nil {
			s.logger.Error("recurring task failed",
				"task", name,
				"error", err,
			)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	s.logger.Info("recurring task scheduled",
		"task", name,
		"interval", interval,
	)
	return nil
}

// RunOnce dispatches task once in the background. Dispatch never
// blocks; failures and panics are logged, not returned.
func (s *Scheduler) RunOnce(name string, task func(ctx context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("one-shot task panicked",
					"task", name,
					"panic", r,
				)
			}
		}()
		if err := task(s.baseCtx); err != nil {
			s.logger.Error("one-shot task failed",
				"task", name,
				"error", err,
			)
		}
	}()
}

// Start begins executing recurring tasks. One-shot dispatches work
// before Start as well.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.cron.Start()
	s.started = true
	s.logger.Info("scheduler started")
}

// Stop cancels the task context and waits for running tasks to finish,
// bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.started = false
	s.mu.Unlock()

	s.cancel()
	cronDone := s.cron.Stop().Done()

	done := make(chan struct{})
	go func() {
		<-cronDone
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler shutdown: %w", ctx.Err())
	}
}

// cronSlog adapts slog to the cron.Logger interface. Cron's own info
// lines (wake-ups, schedule registration) go to debug.
type cronSlog struct {
	logger *slog.Logger
}

func (l *cronSlog) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l *cronSlog) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
