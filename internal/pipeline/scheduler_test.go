package pipeline

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func waitDone(t *testing.T, task *Task) {
	t.Helper()
	select {
	case <-task.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("task %s did not finish", task.Name)
	}
}

// waitUntil polls cond until it holds or a second has passed.
func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestScheduler_RunsAfterDelay(t *testing.T) {
	s := NewScheduler(zerolog.Nop())
	defer s.Stop()

	start := time.Now()
	var ranAt atomic.Int64
	task := s.Schedule("t", 20*time.Millisecond, func(ctx context.Context) {
		ranAt.Store(int64(time.Since(start)))
	})
	if got := s.Pending(); got != 1 {
		t.Errorf("Pending() = %d, want 1", got)
	}

	waitDone(t, task)
	if got := time.Duration(ranAt.Load()); got < 20*time.Millisecond {
		t.Errorf("ran after %v, want >= 20ms", got)
	}
	if got := s.Pending(); got != 0 {
		t.Errorf("Pending() after run = %d, want 0", got)
	}
}

func TestScheduler_Cancel(t *testing.T) {
	s := NewScheduler(zerolog.Nop())
	defer s.Stop()

	var ran atomic.Bool
	task := s.Schedule("t", time.Hour, func(ctx context.Context) { ran.Store(true) })

	if !task.Cancel() {
		t.Error("first Cancel() = false, want true")
	}
	if task.Cancel() {
		t.Error("second Cancel() = true, want false")
	}
	waitDone(t, task)
	if ran.Load() {
		t.Error("cancelled task ran")
	}
	if got := s.Pending(); got != 0 {
		t.Errorf("Pending() = %d, want 0", got)
	}
}

func TestScheduler_CancelAfterStartFails(t *testing.T) {
	s := NewScheduler(zerolog.Nop())
	defer s.Stop()

	started := make(chan struct{})
	release := make(chan struct{})
	task := s.Schedule("t", 0, func(ctx context.Context) {
		close(started)
		<-release
	})
	<-started
	if task.Cancel() {
		t.Error("Cancel() on a running task = true, want false")
	}
	close(release)
	waitDone(t, task)
}

func TestScheduler_PanicRecovered(t *testing.T) {
	s := NewScheduler(zerolog.Nop())
	defer s.Stop()

	task := s.Schedule("boom", 0, func(ctx context.Context) { panic("boom") })
	waitDone(t, task)

	var ran atomic.Bool
	next := s.Schedule("after", 0, func(ctx context.Context) { ran.Store(true) })
	waitDone(t, next)
	if !ran.Load() {
		t.Error("task after a panic did not run")
	}
}

func TestScheduler_StopCancelsPendingAndWaitsForRunning(t *testing.T) {
	s := NewScheduler(zerolog.Nop())

	var pendingRan atomic.Bool
	pending := s.Schedule("pending", time.Hour, func(ctx context.Context) { pendingRan.Store(true) })

	started := make(chan struct{})
	var sawCancel atomic.Bool
	running := s.Schedule("running", 0, func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		sawCancel.Store(true)
	})
	<-started

	s.Stop()

	waitDone(t, pending)
	waitDone(t, running)
	if pendingRan.Load() {
		t.Error("pending task ran after Stop")
	}
	if !sawCancel.Load() {
		t.Error("running task did not see its context cancelled")
	}

	late := s.Schedule("late", 0, func(ctx context.Context) { t.Error("ran after Stop") })
	select {
	case <-late.Done():
	default:
		t.Fatal("task scheduled after Stop should be done immediately")
	}
}
