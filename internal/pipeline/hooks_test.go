package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/lecture-pipeline/internal/database"
	"github.com/snarg/lecture-pipeline/internal/events"
	"github.com/snarg/lecture-pipeline/internal/jobqueue"
	"github.com/snarg/lecture-pipeline/internal/quiz"
)

type enqueued struct {
	videoID  string
	mediaRef string
	priority int
}

type fakeQueue struct {
	mu   sync.Mutex
	jobs []enqueued
	err  error
}

func (q *fakeQueue) Enqueue(videoID, mediaRef string, priority int) (jobqueue.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return jobqueue.Job{}, q.err
	}
	q.jobs = append(q.jobs, enqueued{videoID, mediaRef, priority})
	return jobqueue.Job{ID: "job-" + videoID, VideoID: videoID, MediaRef: mediaRef, Priority: priority}, nil
}

type fakeQuiz struct {
	mu    sync.Mutex
	calls []string
	err   error
	done  chan string
}

func newFakeQuiz() *fakeQuiz { return &fakeQuiz{done: make(chan string, 16)} }

func (f *fakeQuiz) GenerateWithOutcome(_ context.Context, videoID string) (*quiz.Outcome, error) {
	f.mu.Lock()
	f.calls = append(f.calls, videoID)
	f.mu.Unlock()
	defer func() { f.done <- videoID }()
	if f.err != nil {
		return nil, f.err
	}
	return &quiz.Outcome{Tier: quiz.TierTopic, Questions: make([]quiz.Question, 8)}, nil
}

func (f *fakeQuiz) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeQuiz) waitFor(t *testing.T, videoID string) {
	t.Helper()
	select {
	case got := <-f.done:
		if got != videoID {
			t.Fatalf("quiz generated for %s, want %s", got, videoID)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("quiz for %s not generated", videoID)
	}
}

type fakeVideos map[string]*database.VideoContext

func (f fakeVideos) GetVideoContext(_ context.Context, id string) (*database.VideoContext, error) {
	if v, ok := f[id]; ok {
		return v, nil
	}
	return nil, database.ErrNotFound
}

type testHooks struct {
	*Hooks
	queue *fakeQueue
	quiz  *fakeQuiz
	bus   *events.Bus
	sched *Scheduler
}

func newTestHooks(t *testing.T, settle, fallback time.Duration) *testHooks {
	t.Helper()
	th := &testHooks{
		queue: &fakeQueue{},
		quiz:  newFakeQuiz(),
		bus:   events.NewBus(64),
		sched: NewScheduler(zerolog.Nop()),
	}
	th.Hooks = NewHooks(HooksOptions{
		Queue:         th.queue,
		Quiz:          th.quiz,
		Videos:        fakeVideos{"vid-1": {ID: "vid-1", MediaRef: "lectures/vid-1.mp4"}},
		Events:        th.bus,
		Scheduler:     th.sched,
		SettleDelay:   settle,
		FallbackDelay: fallback,
		Log:           zerolog.Nop(),
	})
	t.Cleanup(th.sched.Stop)
	return th
}

func eventTypes(bus *events.Bus) []string {
	var out []string
	for _, e := range bus.ReplaySince("", events.Filter{}) {
		out = append(out, e.Type)
	}
	return out
}

func hasEvent(bus *events.Bus, typ string) bool {
	for _, got := range eventTypes(bus) {
		if got == typ {
			return true
		}
	}
	return false
}

func TestHooks_UploadWithTranscriptDefersQuiz(t *testing.T) {
	h := newTestHooks(t, time.Millisecond, time.Millisecond)

	res := h.OnVideoUploaded(context.Background(), "vid-1", UploadOptions{GenerateTranscript: true, GenerateQuiz: true, Priority: 3})

	if res.JobID != "job-vid-1" {
		t.Errorf("JobID = %q, want %q", res.JobID, "job-vid-1")
	}
	if !res.QuizDeferred || res.QuizScheduled {
		t.Errorf("result = %+v, want deferred and not scheduled", res)
	}
	if len(h.queue.jobs) != 1 {
		t.Fatalf("jobs = %d, want 1", len(h.queue.jobs))
	}
	if want := (enqueued{"vid-1", "lectures/vid-1.mp4", 3}); h.queue.jobs[0] != want {
		t.Errorf("job = %+v, want %+v", h.queue.jobs[0], want)
	}
	if got := h.PendingQuizzes(); got != 0 {
		t.Errorf("PendingQuizzes() = %d, want 0", got)
	}

	time.Sleep(20 * time.Millisecond)
	if got := h.quiz.callCount(); got != 0 {
		t.Fatalf("quiz ran %d times before the transcript, want 0", got)
	}

	h.TranscriptJobCompleted(jobqueue.Job{ID: "job-vid-1", VideoID: "vid-1", Attempts: 1})
	h.quiz.waitFor(t, "vid-1")

	for _, typ := range []string{events.TypeTranscriptQueued, events.TypeTranscriptCompleted} {
		if !hasEvent(h.bus, typ) {
			t.Errorf("missing %s event", typ)
		}
	}
	waitUntil(t, "quiz_generated event", func() bool { return hasEvent(h.bus, events.TypeQuizGenerated) })
}

func TestHooks_UploadUsesMediaRefOverride(t *testing.T) {
	h := newTestHooks(t, time.Millisecond, time.Millisecond)

	h.OnVideoUploaded(context.Background(), "unknown", UploadOptions{GenerateTranscript: true, MediaRef: "https://cdn.example/u.mp4"})

	if len(h.queue.jobs) != 1 {
		t.Fatalf("jobs = %d, want 1", len(h.queue.jobs))
	}
	if got := h.queue.jobs[0].mediaRef; got != "https://cdn.example/u.mp4" {
		t.Errorf("mediaRef = %q, want override", got)
	}
}

func TestHooks_CompletedTranscriptIsNotRequeued(t *testing.T) {
	t.Run("with_quiz", func(t *testing.T) {
		h := newTestHooks(t, 10*time.Millisecond, time.Hour)
		opts := UploadOptions{GenerateTranscript: true, GenerateQuiz: true}

		res := h.OnVideoUploaded(context.Background(), "vid-done", opts)
		h.OnVideoUploaded(context.Background(), "vid-done", opts)

		if len(h.queue.jobs) != 0 {
			t.Errorf("jobs = %d, want 0", len(h.queue.jobs))
		}
		if res.JobID != "" || res.QuizDeferred {
			t.Errorf("result = %+v, want no job and no deferred quiz", res)
		}
		if !res.TranscriptExists || !res.QuizScheduled {
			t.Errorf("result = %+v, want transcript_exists and quiz_scheduled", res)
		}
		if got := h.PendingQuizzes(); got != 1 {
			t.Errorf("PendingQuizzes() = %d, want 1", got)
		}
		// Settle delay, not the hour-long fallback.
		h.quiz.waitFor(t, "vid-done")
		if hasEvent(h.bus, events.TypeTranscriptQueued) {
			t.Error("transcript_queued published for a completed transcript")
		}
	})

	t.Run("media_ref_override", func(t *testing.T) {
		h := newTestHooks(t, time.Hour, time.Hour)

		res := h.OnVideoUploaded(context.Background(), "vid-done", UploadOptions{GenerateTranscript: true, MediaRef: "other.mp4"})

		if len(h.queue.jobs) != 0 {
			t.Errorf("jobs = %d, want 0", len(h.queue.jobs))
		}
		if !res.TranscriptExists || res.QuizScheduled {
			t.Errorf("result = %+v, want transcript_exists without a quiz", res)
		}
	})

	t.Run("failed_transcript_is_retried", func(t *testing.T) {
		h := newTestHooks(t, time.Hour, time.Hour)

		res := h.OnVideoUploaded(context.Background(), "vid-failed", UploadOptions{GenerateTranscript: true})

		if len(h.queue.jobs) != 1 || res.JobID != "job-vid-failed" {
			t.Errorf("jobs = %d, JobID = %q, want one job", len(h.queue.jobs), res.JobID)
		}
	})
}

func TestHooks_QuizOnlyUploadSchedulesTopicQuiz(t *testing.T) {
	h := newTestHooks(t, time.Hour, 10*time.Millisecond)

	res := h.OnVideoUploaded(context.Background(), "vid-1", UploadOptions{GenerateQuiz: true})

	if !res.QuizScheduled || res.JobID != "" {
		t.Errorf("result = %+v, want quiz scheduled without a job", res)
	}
	if len(h.queue.jobs) != 0 {
		t.Errorf("jobs = %d, want 0", len(h.queue.jobs))
	}
	if got := h.PendingQuizzes(); got != 1 {
		t.Errorf("PendingQuizzes() = %d, want 1", got)
	}

	h.quiz.waitFor(t, "vid-1")
	waitUntil(t, "pending quiz cleared", func() bool { return h.PendingQuizzes() == 0 })
}

func TestHooks_TranscriptOnlyUploadSkipsQuiz(t *testing.T) {
	h := newTestHooks(t, time.Millisecond, time.Millisecond)

	h.OnVideoUploaded(context.Background(), "vid-1", UploadOptions{GenerateTranscript: true})
	h.TranscriptJobCompleted(jobqueue.Job{VideoID: "vid-1"})

	time.Sleep(20 * time.Millisecond)
	if got := h.quiz.callCount(); got != 0 {
		t.Errorf("quiz calls = %d, want 0", got)
	}
}

func TestHooks_FailedTranscriptFallsBackToTopicQuiz(t *testing.T) {
	h := newTestHooks(t, time.Hour, time.Millisecond)

	h.OnVideoUploaded(context.Background(), "vid-1", UploadOptions{GenerateTranscript: true, GenerateQuiz: true})
	h.TranscriptJobFailed(jobqueue.Job{VideoID: "vid-1", Attempts: 3}, errors.New("quota"))

	h.quiz.waitFor(t, "vid-1")
	if !hasEvent(h.bus, events.TypeTranscriptFailed) {
		t.Error("missing transcript_failed event")
	}
}

func TestHooks_EnqueueFailureStillSchedulesQuiz(t *testing.T) {
	h := newTestHooks(t, time.Hour, time.Millisecond)
	h.queue.err = jobqueue.ErrStopped

	res := h.OnVideoUploaded(context.Background(), "vid-1", UploadOptions{GenerateTranscript: true, GenerateQuiz: true})

	if res.JobID != "" || !res.QuizScheduled {
		t.Errorf("result = %+v, want quiz scheduled without a job", res)
	}
	h.quiz.waitFor(t, "vid-1")
}

func TestHooks_MissingVideoIsLoggedNotPanicked(t *testing.T) {
	h := newTestHooks(t, time.Hour, time.Hour)

	res := h.OnVideoUploaded(context.Background(), "ghost", UploadOptions{GenerateTranscript: true})

	if res.JobID != "" {
		t.Errorf("JobID = %q, want empty", res.JobID)
	}
	if len(h.queue.jobs) != 0 {
		t.Errorf("jobs = %d, want 0", len(h.queue.jobs))
	}
}

func TestHooks_QuizErrorIsPublishedNotPropagated(t *testing.T) {
	h := newTestHooks(t, time.Millisecond, time.Millisecond)
	h.quiz.err = &quiz.GenerationError{VideoID: "vid-1", TopicErr: errors.New("no json")}

	h.OnTranscriptCompleted("vid-1")
	h.quiz.waitFor(t, "vid-1")

	waitUntil(t, "quiz_failed event", func() bool { return hasEvent(h.bus, events.TypeQuizFailed) })
}

func TestHooks_RescheduleReplacesPendingQuiz(t *testing.T) {
	h := newTestHooks(t, 30*time.Millisecond, time.Hour)

	h.OnTranscriptCompleted("vid-1")
	h.OnTranscriptCompleted("vid-1")
	h.OnTranscriptCompleted("vid-1")
	if got := h.PendingQuizzes(); got != 1 {
		t.Errorf("PendingQuizzes() = %d, want 1", got)
	}

	h.quiz.waitFor(t, "vid-1")
	time.Sleep(50 * time.Millisecond)
	if got := h.quiz.callCount(); got != 1 {
		t.Errorf("quiz calls = %d, want 1", got)
	}
}

// Upload, queue worker, transcript completion, quiz; with a real queue.
func TestHooks_EndToEndWithQueue(t *testing.T) {
	qz := newFakeQuiz()
	bus := events.NewBus(64)
	sched := NewScheduler(zerolog.Nop())
	defer sched.Stop()

	var hooks *Hooks
	var attempts int
	queue := jobqueue.New(jobqueue.Options{
		Process: func(ctx context.Context, j jobqueue.Job) error {
			attempts++
			if attempts < 2 {
				return errors.New("transient")
			}
			return nil
		},
		BackoffBase: time.Millisecond,
		OnComplete:  func(j jobqueue.Job) { hooks.TranscriptJobCompleted(j) },
		OnFailed:    func(j jobqueue.Job, err error) { hooks.TranscriptJobFailed(j, err) },
		Log:         zerolog.Nop(),
	})
	defer queue.Stop()

	hooks = NewHooks(HooksOptions{
		Queue:         queue,
		Quiz:          qz,
		Videos:        fakeVideos{"vid-1": {ID: "vid-1", MediaRef: "a.mp4"}},
		Events:        bus,
		Scheduler:     sched,
		SettleDelay:   time.Millisecond,
		FallbackDelay: time.Hour,
		Log:           zerolog.Nop(),
	})

	hooks.OnVideoUploaded(context.Background(), "vid-1", UploadOptions{GenerateTranscript: true, GenerateQuiz: true})
	qz.waitFor(t, "vid-1")

	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
	if got := queue.Status().Completed; got != 1 {
		t.Errorf("Completed = %d, want 1", got)
	}
}
