package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/lecture-pipeline/internal/database"
	"github.com/snarg/lecture-pipeline/internal/events"
	"github.com/snarg/lecture-pipeline/internal/jobqueue"
	"github.com/snarg/lecture-pipeline/internal/quiz"
)

// TranscriptQueue accepts transcript jobs. *jobqueue.Queue satisfies it.
type TranscriptQueue interface {
	Enqueue(videoID, mediaRef string, priority int) (jobqueue.Job, error)
}

// QuizGenerator builds and stores a video's quiz. *quiz.Generator satisfies it.
type QuizGenerator interface {
	GenerateWithOutcome(ctx context.Context, videoID string) (*quiz.Outcome, error)
}

// VideoReader resolves a video's media reference.
type VideoReader interface {
	GetVideoContext(ctx context.Context, videoID string) (*database.VideoContext, error)
}

// Publisher receives pipeline events. *events.Bus satisfies it.
type Publisher interface {
	Publish(eventType, videoID string, payload any)
}

// UploadOptions says what to derive from a freshly uploaded video.
type UploadOptions struct {
	GenerateTranscript bool
	GenerateQuiz       bool
	Priority           int
	MediaRef           string // "" looks the reference up on the video
}

// UploadResult reports what OnVideoUploaded set in motion.
type UploadResult struct {
	JobID         string `json:"job_id,omitempty"`
	QuizScheduled bool   `json:"quiz_scheduled"`
	QuizDeferred  bool   `json:"quiz_deferred"` // waits for the transcript

	TranscriptExists bool `json:"transcript_exists,omitempty"`
}

// HooksOptions configures Hooks.
type HooksOptions struct {
	Queue         TranscriptQueue
	Quiz          QuizGenerator
	Videos        VideoReader
	Events        Publisher
	Scheduler     *Scheduler
	SettleDelay   time.Duration // transcript completed -> quiz
	FallbackDelay time.Duration // upload or failed transcript -> topic quiz
	Log           zerolog.Logger
}

// Hooks sequences transcript and quiz generation in response to upload and
// transcript-completion events. Nothing here blocks the caller on generation,
// and failures are logged and published rather than returned.
type Hooks struct {
	opts HooksOptions
	log  zerolog.Logger

	mu         sync.Mutex
	quizWanted map[string]bool  // videos whose transcript job should be followed by a quiz
	quizTasks  map[string]*Task // one pending quiz task per video
}

// NewHooks creates the pipeline hooks.
func NewHooks(opts HooksOptions) *Hooks {
	if opts.Events == nil {
		opts.Events = nopPublisher{}
	}
	return &Hooks{
		opts:       opts,
		log:        opts.Log.With().Str("component", "hooks").Logger(),
		quizWanted: make(map[string]bool),
		quizTasks:  make(map[string]*Task),
	}
}

// OnVideoUploaded enqueues a transcript job when requested; the quiz then
// waits for that transcript. A video that already has a COMPLETED transcript
// gets no job, and its quiz follows after the settle delay. A quiz without a
// transcript is scheduled after the fallback delay and will be topic-grounded.
func (h *Hooks) OnVideoUploaded(ctx context.Context, videoID string, opts UploadOptions) UploadResult {
	var res UploadResult
	log := h.log.With().Str("video_id", videoID).Logger()

	if opts.GenerateTranscript {
		job, err := h.enqueue(ctx, videoID, opts)
		if errors.Is(err, errTranscriptExists) {
			log.Info().Msg("transcript already completed, skipping job")
			res.TranscriptExists = true
			if opts.GenerateQuiz {
				h.scheduleQuiz(videoID, h.opts.SettleDelay, "transcript_exists")
				res.QuizScheduled = true
			}
			return res
		}
		if err == nil {
			res.JobID = job.ID
			if opts.GenerateQuiz {
				h.mu.Lock()
				h.quizWanted[videoID] = true
				h.mu.Unlock()
				res.QuizDeferred = true
			}
			h.opts.Events.Publish(events.TypeTranscriptQueued, videoID, map[string]any{
				"job_id":   job.ID,
				"priority": job.Priority,
			})
			return res
		}
		log.Error().Err(err).Msg("could not enqueue transcript job")
		if !opts.GenerateQuiz {
			return res
		}
		// No transcript is coming; the quiz falls back to topic grounding.
	}

	if opts.GenerateQuiz {
		h.scheduleQuiz(videoID, h.opts.FallbackDelay, "upload")
		res.QuizScheduled = true
	}
	return res
}

// OnTranscriptCompleted schedules quiz generation after the settle delay.
func (h *Hooks) OnTranscriptCompleted(videoID string) {
	h.scheduleQuiz(videoID, h.opts.SettleDelay, "transcript_completed")
}

// TranscriptJobCompleted is the queue's completion callback.
func (h *Hooks) TranscriptJobCompleted(job jobqueue.Job) {
	h.opts.Events.Publish(events.TypeTranscriptCompleted, job.VideoID, map[string]any{
		"job_id":   job.ID,
		"attempts": job.Attempts,
	})
	if h.takeQuizWanted(job.VideoID) {
		h.OnTranscriptCompleted(job.VideoID)
	}
}

// TranscriptJobFailed is the queue's terminal-failure callback. A quiz that
// was waiting on the transcript is generated from the topic instead.
func (h *Hooks) TranscriptJobFailed(job jobqueue.Job, err error) {
	h.opts.Events.Publish(events.TypeTranscriptFailed, job.VideoID, map[string]any{
		"job_id":   job.ID,
		"attempts": job.Attempts,
		"error":    err.Error(),
	})
	if h.takeQuizWanted(job.VideoID) {
		h.scheduleQuiz(job.VideoID, h.opts.FallbackDelay, "transcript_failed")
	}
}

// PendingQuizzes returns the number of quiz tasks waiting to run.
func (h *Hooks) PendingQuizzes() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.quizTasks)
}

var errTranscriptExists = errors.New("transcript already completed")

// enqueue submits a transcript job unless the video already has a COMPLETED
// transcript. An explicit media reference is used even when the video
// cannot be looked up.
func (h *Hooks) enqueue(ctx context.Context, videoID string, opts UploadOptions) (jobqueue.Job, error) {
	mediaRef := opts.MediaRef
	if h.opts.Videos != nil {
		v, err := h.opts.Videos.GetVideoContext(ctx, videoID)
		switch {
		case err == nil:
			if v.Transcript != nil && v.Transcript.Status == database.TranscriptCompleted {
				return jobqueue.Job{}, errTranscriptExists
			}
			if mediaRef == "" {
				mediaRef = v.MediaRef
			}
		case mediaRef == "":
			return jobqueue.Job{}, fmt.Errorf("look up media: %w", err)
		}
	} else if mediaRef == "" {
		return jobqueue.Job{}, errors.New("no media reference and no video store")
	}
	if mediaRef == "" {
		return jobqueue.Job{}, errors.New("video has no media reference")
	}
	return h.opts.Queue.Enqueue(videoID, mediaRef, opts.Priority)
}

func (h *Hooks) takeQuizWanted(videoID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	wanted := h.quizWanted[videoID]
	delete(h.quizWanted, videoID)
	return wanted
}

// scheduleQuiz replaces any pending quiz task for the video.
func (h *Hooks) scheduleQuiz(videoID string, delay time.Duration, reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if prev, ok := h.quizTasks[videoID]; ok {
		prev.Cancel()
	}
	var task *Task
	task = h.opts.Scheduler.Schedule("quiz:"+videoID, delay, func(ctx context.Context) {
		h.mu.Lock()
		if h.quizTasks[videoID] == task {
			delete(h.quizTasks, videoID)
		}
		h.mu.Unlock()
		h.runQuiz(ctx, videoID)
	})
	h.quizTasks[videoID] = task

	h.log.Info().
		Str("video_id", videoID).
		Str("reason", reason).
		Dur("delay", delay).
		Msg("quiz generation scheduled")
}

func (h *Hooks) runQuiz(ctx context.Context, videoID string) {
	out, err := h.opts.Quiz.GenerateWithOutcome(ctx, videoID)
	if err != nil {
		h.log.Error().Err(err).Str("video_id", videoID).Msg("quiz generation failed")
		h.opts.Events.Publish(events.TypeQuizFailed, videoID, map[string]any{"error": err.Error()})
		return
	}
	h.opts.Events.Publish(events.TypeQuizGenerated, videoID, map[string]any{
		"tier":      out.Tier,
		"questions": len(out.Questions),
		"dropped":   out.Dropped,
	})
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, string, any) {}
