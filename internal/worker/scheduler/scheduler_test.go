package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunOnce_ExecutesTask(t *testing.T) {
	s := New()
	defer s.Stop(context.Background())

	done := make(chan struct{})
	s.RunOnce("test-task", func(ctx context.Context) error {
		close(done)
		return nil
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("one-shot task did not run")
	}
}

func TestRunOnce_TaskErrorIsSwallowed(t *testing.T) {
	s := New()
	defer s.Stop(context.Background())

	done := make(chan struct{})
	s.RunOnce("failing-task", func(ctx context.Context) error {
		defer close(done)
		return errors.New("boom")
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("failing task did not run")
	}
}

func TestRunOnce_PanicIsContained(t *testing.T) {
	s := New()
	defer s.Stop(context.Background())

	panicked := make(chan struct{})
	s.RunOnce("panicking-task", func(ctx context.Context) error {
		defer close(panicked)
		panic("broken task")
	})

	select {
	case <-panicked:
	case <-time.After(2 * time.Second):
		t.Fatal("panicking task did not run")
	}

	// The scheduler must survive the panic.
	ran := make(chan struct{})
	s.RunOnce("follow-up", func(ctx context.Context) error {
		close(ran)
		return nil
	})

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler stopped dispatching after a panic")
	}
}

func TestRunRecurring_RejectsNonPositiveInterval(t *testing.T) {
	s := New()
	defer s.Stop(context.Background())

	err := s.RunRecurring("bad", 0, func(ctx context.Context) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "interval must be positive")
}

func TestRunRecurring_ExecutesOnSchedule(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping slow scheduler test in short mode")
	}

	s := New()

	var runs atomic.Int32
	ticked := make(chan struct{}, 8)
	err := s.RunRecurring("sweep", time.Second, func(ctx context.Context) error {
		runs.Add(1)
		select {
		case ticked <- struct{}{}:
		default:
		}
		return nil
	})
	require.NoError(t, err)

	s.Start()
	defer s.Stop(context.Background())

	select {
	case <-ticked:
	case <-time.After(5 * time.Second):
		t.Fatal("recurring task never ran")
	}
	assert.GreaterOrEqual(t, runs.Load(), int32(1))
}

func TestStop_CancelsRunningTasks(t *testing.T) {
	s := New()

	sawCancel := make(chan struct{})
	started := make(chan struct{})
	s.RunOnce("long-task", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		close(sawCancel)
		return ctx.Err()
	})

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("task never started")
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(stopCtx))

	select {
	case <-sawCancel:
	case <-time.After(time.Second):
		t.Fatal("task never observed cancellation")
	}
}

func TestStop_ReturnsErrorWhenTasksIgnoreCancellation(t *testing.T) {
	s := New()

	release := make(chan struct{})
	started := make(chan struct{})
	s.RunOnce("stuck-task", func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	})

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("task never started")
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := s.Stop(stopCtx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
}

func TestStart_IsIdempotent(t *testing.T) {
	s := New()
	s.Start()
	s.Start()
	require.NoError(t, s.Stop(context.Background()))
}
