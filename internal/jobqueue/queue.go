package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/snarg/lecture-pipeline/internal/metrics"
)

// MaxAttempts is the number of times a job is tried before it fails for good.
const MaxAttempts = 3

// defaultFailedRetention caps how many failed jobs are kept for inspection.
const defaultFailedRetention = 100

// ErrStopped is returned by Enqueue after Stop.
var ErrStopped = errors.New("job queue stopped")

// JobStatus is the lifecycle state of a transcript job.
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Job is one unit of transcript work. Only the queue mutates jobs; callers
// receive copies.
type Job struct {
	ID          string    `json:"id"`
	VideoID     string    `json:"video_id"`
	MediaRef    string    `json:"media_ref"`
	Priority    int       `json:"priority"`
	CreatedAt   time.Time `json:"created_at"`
	Attempts    int       `json:"attempts"`
	MaxAttempts int       `json:"max_attempts"`
	Status      JobStatus `json:"status"`
	LastError   string    `json:"last_error,omitempty"`
	FinishedAt  time.Time `json:"finished_at"`

	seq uint64 // arrival order, breaks priority ties
}

// ProcessFunc does the work for one job attempt.
type ProcessFunc func(ctx context.Context, job Job) error

// Options configures a Queue.
type Options struct {
	Process         ProcessFunc
	BackoffBase     time.Duration // delay before retry k is 2^k * BackoffBase
	JobDelay        time.Duration // pause after each successful job
	FailedRetention int           // failed jobs kept for ClearFailed/Jobs; 0 means default
	OnComplete      func(Job)
	OnFailed        func(Job, error)
	Log             zerolog.Logger
}

// Stats is the queue's operational snapshot.
type Stats struct {
	Pending    int   `json:"pending"`
	Processing int   `json:"processing"`
	Total      int   `json:"total"`
	Failed     int   `json:"failed"`
	Completed  int64 `json:"completed"`
}

// Queue is an in-process, priority-ordered transcript job queue drained by a
// single worker. The worker starts on Enqueue when idle and exits when no
// active jobs remain.
type Queue struct {
	mu      sync.Mutex
	active  []*Job // pending and processing, sorted by priority desc then seq
	failed  []Job
	running bool
	stopped bool
	seq     uint64

	opts   Options
	log    zerolog.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	completed atomic.Int64

	// sleep waits for d or until ctx is done. Replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a queue. The worker is not started until the first Enqueue.
func New(opts Options) *Queue {
	if opts.FailedRetention <= 0 {
		opts.FailedRetention = defaultFailedRetention
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		opts:   opts,
		log:    opts.Log.With().Str("component", "jobqueue").Logger(),
		ctx:    ctx,
		cancel: cancel,
		sleep:  sleepCtx,
	}
}

// Enqueue adds a pending job for videoID and starts the worker if idle.
// Duplicate enqueues create additional jobs.
func (q *Queue) Enqueue(videoID, mediaRef string, priority int) (Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped {
		return Job{}, ErrStopped
	}

	q.seq++
	j := &Job{
		ID:          uuid.NewString(),
		VideoID:     videoID,
		MediaRef:    mediaRef,
		Priority:    priority,
		CreatedAt:   time.Now(),
		MaxAttempts: MaxAttempts,
		Status:      StatusPending,
		seq:         q.seq,
	}
	q.active = append(q.active, j)
	sort.SliceStable(q.active, func(a, b int) bool {
		if q.active[a].Priority != q.active[b].Priority {
			return q.active[a].Priority > q.active[b].Priority
		}
		return q.active[a].seq < q.active[b].seq
	})

	q.log.Info().
		Str("job_id", j.ID).
		Str("video_id", videoID).
		Int("priority", priority).
		Int("queued", len(q.active)).
		Msg("transcript job enqueued")

	if !q.running {
		q.running = true
		q.wg.Add(1)
		go q.worker()
	}
	return *j, nil
}

// Backoff returns the delay before the retry that follows attempt number
// attempts: 2^attempts * BackoffBase.
func (q *Queue) Backoff(attempts int) time.Duration {
	return time.Duration(math.Pow(2, float64(attempts))) * q.opts.BackoffBase
}

// Status returns current queue counts.
func (q *Queue) Status() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	s := Stats{
		Total:     len(q.active),
		Failed:    len(q.failed),
		Completed: q.completed.Load(),
	}
	for _, j := range q.active {
		switch j.Status {
		case StatusPending:
			s.Pending++
		case StatusProcessing:
			s.Processing++
		}
	}
	return s
}

// Pending returns the number of pending jobs.
func (q *Queue) Pending() int { return q.Status().Pending }

// Processing returns the number of in-flight jobs (0 or 1).
func (q *Queue) Processing() int { return q.Status().Processing }

// FailedRetained returns the number of failed jobs kept in history.
func (q *Queue) FailedRetained() int { return q.Status().Failed }

// Jobs returns copies of the active jobs in selection order followed by the
// retained failed jobs, most recent last.
func (q *Queue) Jobs() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Job, 0, len(q.active)+len(q.failed))
	for _, j := range q.active {
		out = append(out, *j)
	}
	return append(out, q.failed...)
}

// ClearFailed drops all failed jobs from history and returns how many were removed.
func (q *Queue) ClearFailed() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.failed)
	q.failed = nil
	if n > 0 {
		q.log.Info().Int("cleared", n).Msg("failed transcript jobs cleared")
	}
	return n
}

// Stop rejects new jobs, interrupts any wait, and blocks until the worker exits.
// A provider call in flight sees its context cancelled.
func (q *Queue) Stop() {
	q.mu.Lock()
	q.stopped = true
	q.mu.Unlock()

	q.cancel()
	q.wg.Wait()

	st := q.Status()
	q.log.Info().
		Int("abandoned", st.Total).
		Int64("completed", st.Completed).
		Int("failed", st.Failed).
		Msg("transcript queue stopped")
}

func (q *Queue) worker() {
	defer q.wg.Done()

	for {
		j := q.next()
		if j == nil {
			return
		}

		err := q.run(j)
		if err == nil {
			q.finish(j)
			if q.sleep(q.ctx, q.opts.JobDelay) != nil {
				q.idle()
				return
			}
			continue
		}

		if q.retryOrFail(j, err) {
			if q.sleep(q.ctx, q.Backoff(j.Attempts)) != nil {
				q.idle()
				return
			}
		}
	}
}

// next marks the highest-priority pending job processing and returns a copy.
// Returns nil and marks the worker idle when there is nothing to do.
func (q *Queue) next() *Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.ctx.Err() == nil {
		for _, j := range q.active {
			if j.Status == StatusPending {
				j.Status = StatusProcessing
				j.Attempts++
				cp := *j
				return &cp
			}
		}
	}
	q.running = false
	return nil
}

func (q *Queue) idle() {
	q.mu.Lock()
	q.running = false
	q.mu.Unlock()
}

// run invokes the processor, converting panics into errors.
func (q *Queue) run(j *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	q.log.Info().
		Str("job_id", j.ID).
		Str("video_id", j.VideoID).
		Int("attempt", j.Attempts).
		Msg("processing transcript job")

	if q.opts.Process == nil {
		return errors.New("no processor configured")
	}
	return q.opts.Process(q.ctx, *j)
}

func (q *Queue) finish(j *Job) {
	q.mu.Lock()
	q.remove(j.ID)
	q.mu.Unlock()

	j.Status = StatusCompleted
	j.FinishedAt = time.Now()
	q.completed.Add(1)
	metrics.TranscriptJobAttemptsTotal.WithLabelValues("ok").Inc()
	metrics.TranscriptJobsTotal.WithLabelValues("completed").Inc()

	q.log.Info().
		Str("job_id", j.ID).
		Str("video_id", j.VideoID).
		Int("attempt", j.Attempts).
		Msg("transcript job completed")

	if q.opts.OnComplete != nil {
		q.callback(func() { q.opts.OnComplete(*j) })
	}
}

// retryOrFail records a failed attempt. It reports true when the job went
// back to pending and the worker should back off.
func (q *Queue) retryOrFail(j *Job, err error) bool {
	metrics.TranscriptJobAttemptsTotal.WithLabelValues("error").Inc()

	q.mu.Lock()
	live := q.find(j.ID)
	if live == nil {
		q.mu.Unlock()
		return false
	}
	live.LastError = err.Error()

	if live.Attempts < live.MaxAttempts {
		live.Status = StatusPending
		q.mu.Unlock()
		q.log.Warn().Err(err).
			Str("job_id", j.ID).
			Str("video_id", j.VideoID).
			Int("attempt", j.Attempts).
			Dur("backoff", q.Backoff(j.Attempts)).
			Msg("transcript job failed, will retry")
		return true
	}

	live.Status = StatusFailed
	live.FinishedAt = time.Now()
	final := *live
	q.remove(j.ID)
	q.failed = append(q.failed, final)
	if over := len(q.failed) - q.opts.FailedRetention; over > 0 {
		q.failed = append([]Job(nil), q.failed[over:]...)
	}
	q.mu.Unlock()

	metrics.TranscriptJobsTotal.WithLabelValues("failed").Inc()
	q.log.Error().Err(err).
		Str("job_id", j.ID).
		Str("video_id", j.VideoID).
		Int("attempts", final.Attempts).
		Msg("transcript job failed permanently")

	if q.opts.OnFailed != nil {
		q.callback(func() { q.opts.OnFailed(final, err) })
	}
	return false
}

// callback runs a completion hook, keeping its panics out of the worker.
func (q *Queue) callback(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Error().Interface("panic", r).Msg("job callback panicked")
		}
	}()
	fn()
}

func (q *Queue) find(id string) *Job {
	for _, j := range q.active {
		if j.ID == id {
			return j
		}
	}
	return nil
}

func (q *Queue) remove(id string) {
	for i, j := range q.active {
		if j.ID == id {
			q.active = append(q.active[:i], q.active[i+1:]...)
			return
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
