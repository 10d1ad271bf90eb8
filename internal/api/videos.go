package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"
	"github.com/snarg/lecture-pipeline/internal/database"
	"github.com/snarg/lecture-pipeline/internal/pipeline"
	"github.com/snarg/lecture-pipeline/internal/quiz"
)

// PipelineHooks receives video lifecycle events. *pipeline.Hooks satisfies it.
type PipelineHooks interface {
	OnVideoUploaded(ctx context.Context, videoID string, opts pipeline.UploadOptions) pipeline.UploadResult
	OnTranscriptCompleted(videoID string)
}

// QuizService regenerates a quiz synchronously. *quiz.Generator satisfies it.
type QuizService interface {
	GenerateWithOutcome(ctx context.Context, videoID string) (*quiz.Outcome, error)
}

// ContentStore reads generated artifacts. *database.DB satisfies it.
type ContentStore interface {
	GetTranscript(ctx context.Context, videoID string) (*database.TranscriptRow, error)
	ListQuestions(ctx context.Context, videoID string) ([]database.QuestionRow, error)
}

type VideosHandler struct {
	hooks PipelineHooks
	quiz  QuizService
	store ContentStore
}

func NewVideosHandler(hooks PipelineHooks, quiz QuizService, store ContentStore) *VideosHandler {
	return &VideosHandler{hooks: hooks, quiz: quiz, store: store}
}

func (h *VideosHandler) Routes(r chi.Router) {
	r.Post("/videos/{id}/uploaded", h.Uploaded)
	r.Post("/videos/{id}/transcript-completed", h.TranscriptCompleted)
	r.Get("/videos/{id}/transcript", h.GetTranscript)
	r.Get("/videos/{id}/quiz", h.GetQuiz)
	r.Post("/videos/{id}/quiz", h.RegenerateQuiz)
}

// Uploaded is the webhook form of the upload-completed event. The body is
// optional; omitted flags default to true.
func (h *VideosHandler) Uploaded(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	var msg pipeline.EventMessage
	if err := DecodeOptionalJSON(r, &msg); err != nil {
		WriteErrorDetail(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	opts := msg.UploadOptions()
	if !opts.GenerateTranscript && !opts.GenerateQuiz {
		WriteError(w, http.StatusBadRequest, "nothing to generate")
		return
	}

	res := h.hooks.OnVideoUploaded(r.Context(), id, opts)
	if opts.GenerateTranscript && res.JobID == "" && !res.TranscriptExists && !res.QuizScheduled {
		WriteError(w, http.StatusUnprocessableEntity, "could not enqueue transcript job")
		return
	}
	hlog.FromRequest(r).Info().
		Str("video_id", id).
		Str("job_id", res.JobID).
		Bool("quiz_scheduled", res.QuizScheduled).
		Msg("upload event accepted")
	WriteJSON(w, http.StatusAccepted, res)
}

// TranscriptCompleted reports a transcript produced outside this service.
func (h *VideosHandler) TranscriptCompleted(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.hooks.OnTranscriptCompleted(id)
	WriteJSON(w, http.StatusAccepted, map[string]any{"video_id": id, "quiz_scheduled": true})
}

// GetTranscript returns the stored transcript for a video.
func (h *VideosHandler) GetTranscript(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	t, err := h.store.GetTranscript(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		WriteError(w, http.StatusNotFound, "no transcript found")
		return
	}
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to load transcript")
		return
	}
	WriteJSON(w, http.StatusOK, t)
}

// GetQuiz returns the stored questions in position order.
func (h *VideosHandler) GetQuiz(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	questions, err := h.store.ListQuestions(r.Context(), id)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to list questions")
		return
	}
	if questions == nil {
		questions = []database.QuestionRow{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"questions": questions,
		"total":     len(questions),
	})
}

// RegenerateQuiz runs quiz generation inline and replaces the stored set.
func (h *VideosHandler) RegenerateQuiz(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := h.quiz.GenerateWithOutcome(r.Context(), id)
	switch {
	case err == nil:
		WriteJSON(w, http.StatusOK, out)
	case errors.Is(err, database.ErrNotFound):
		WriteError(w, http.StatusNotFound, "video not found")
	case quiz.IsGenerationError(err):
		WriteErrorDetail(w, http.StatusBadGateway, "quiz generation failed", err.Error())
	default:
		hlog.FromRequest(r).Error().Err(err).Str("video_id", id).Msg("quiz regeneration failed")
		WriteError(w, http.StatusInternalServerError, "quiz generation failed")
	}
}
