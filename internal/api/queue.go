package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"
	"github.com/snarg/lecture-pipeline/internal/jobqueue"
)

// QueueService is the transcript queue surface. *jobqueue.Queue satisfies it.
type QueueService interface {
	Status() jobqueue.Stats
	Jobs() []jobqueue.Job
	ClearFailed() int
}

type QueueHandler struct {
	queue QueueService
}

func NewQueueHandler(queue QueueService) *QueueHandler {
	return &QueueHandler{queue: queue}
}

// Routes registers read-only queue routes.
func (h *QueueHandler) Routes(r chi.Router) {
	r.Get("/transcripts/queue", h.GetQueue)
}

// AdminRoutes registers routes that discard state.
func (h *QueueHandler) AdminRoutes(r chi.Router) {
	r.Delete("/transcripts/queue/failed", h.ClearFailed)
}

// GetQueue returns queue counters and job snapshots. ?status= narrows the
// jobs to one lifecycle state.
func (h *QueueHandler) GetQueue(w http.ResponseWriter, r *http.Request) {
	jobs := h.queue.Jobs()
	if st, ok := QueryString(r, "status"); ok {
		filtered := make([]jobqueue.Job, 0, len(jobs))
		for _, j := range jobs {
			if string(j.Status) == st {
				filtered = append(filtered, j)
			}
		}
		jobs = filtered
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"stats": h.queue.Status(),
		"jobs":  jobs,
		"total": len(jobs),
	})
}

// ClearFailed purges retained failed jobs.
func (h *QueueHandler) ClearFailed(w http.ResponseWriter, r *http.Request) {
	n := h.queue.ClearFailed()
	hlog.FromRequest(r).Info().Int("purged", n).Msg("failed transcript jobs cleared")
	WriteJSON(w, http.StatusOK, map[string]int{"purged": n})
}
