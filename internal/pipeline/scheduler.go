package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Scheduler runs named functions after a delay. Pending tasks can be
// cancelled individually; Stop cancels everything and waits for running
// tasks to return.
type Scheduler struct {
	mu      sync.Mutex
	tasks   map[uint64]*Task
	nextID  uint64
	stopped bool
	wg      sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
	log    zerolog.Logger
}

// Task is a scheduled function.
type Task struct {
	id    uint64
	Name  string
	RunAt time.Time

	s       *Scheduler
	timer   *time.Timer
	started atomic.Bool
	done    chan struct{}
}

// NewScheduler creates an empty scheduler.
func NewScheduler(log zerolog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		tasks:  make(map[uint64]*Task),
		ctx:    ctx,
		cancel: cancel,
		log:    log.With().Str("component", "scheduler").Logger(),
	}
}

// Schedule runs fn after delay. The context passed to fn is cancelled by
// Stop. Panics in fn are logged. After Stop the task is returned already
// done and fn never runs.
func (s *Scheduler) Schedule(name string, delay time.Duration, fn func(ctx context.Context)) *Task {
	t := &Task{
		Name:  name,
		RunAt: time.Now().Add(delay),
		s:     s,
		done:  make(chan struct{}),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		close(t.done)
		return t
	}
	s.nextID++
	t.id = s.nextID
	s.tasks[t.id] = t
	s.wg.Add(1)
	t.timer = time.AfterFunc(delay, func() { s.run(t, fn) })

	s.log.Debug().Str("task", name).Dur("delay", delay).Msg("task scheduled")
	return t
}

func (s *Scheduler) run(t *Task, fn func(ctx context.Context)) {
	defer s.wg.Done()
	defer close(t.done)

	s.mu.Lock()
	_, live := s.tasks[t.id]
	if live {
		t.started.Store(true)
	}
	s.mu.Unlock()
	if !live {
		return
	}

	defer func() {
		s.mu.Lock()
		delete(s.tasks, t.id)
		s.mu.Unlock()
		if r := recover(); r != nil {
			s.log.Error().Str("task", t.Name).Interface("panic", r).Msg("scheduled task panicked")
		}
	}()
	fn(s.ctx)
}

// Cancel prevents the task from running. It reports false if the task has
// already started or was cancelled before.
func (t *Task) Cancel() bool {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[t.id]; !ok || t.started.Load() {
		return false
	}
	delete(s.tasks, t.id)
	if t.timer.Stop() {
		// The timer func will never run; settle its bookkeeping here.
		s.wg.Done()
		close(t.done)
	}
	return true
}

// Done is closed once the task has finished running or will never run.
func (t *Task) Done() <-chan struct{} { return t.done }

// Pending returns the number of tasks scheduled but not yet finished.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Stop cancels pending tasks, cancels the context of running ones and waits
// for them to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	var cancelled int
	for id, t := range s.tasks {
		if t.started.Load() {
			continue
		}
		delete(s.tasks, id)
		if t.timer.Stop() {
			s.wg.Done()
			close(t.done)
		}
		cancelled++
	}
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	s.log.Info().Int("cancelled", cancelled).Msg("scheduler stopped")
}
