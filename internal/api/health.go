package api

import (
	"context"
	"net/http"
	"time"

	"github.com/snarg/lecture-pipeline/internal/jobqueue"
)

type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Checks        map[string]string `json:"checks"`
	Queue         *jobqueue.Stats   `json:"queue,omitempty"`
	STTProvider   string            `json:"stt_provider,omitempty"`
	LLMProvider   string            `json:"llm_provider,omitempty"`
	MediaStore    string            `json:"media_store,omitempty"`
}

// Pinger reports database reachability. *database.DB satisfies it.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// ConnStatus reports broker connectivity. *mqttclient.Client satisfies it.
type ConnStatus interface {
	IsConnected() bool
}

type HealthHandler struct {
	db        Pinger
	mqtt      ConnStatus
	queue     QueueService
	version   string
	startTime time.Time

	stt, llm, media string
}

func NewHealthHandler(db Pinger, mqtt ConnStatus, queue QueueService, version string, startTime time.Time) *HealthHandler {
	return &HealthHandler{
		db:        db,
		mqtt:      mqtt,
		queue:     queue,
		version:   version,
		startTime: startTime,
	}
}

// SetProviders records the configured backends for the health report.
func (h *HealthHandler) SetProviders(stt, llm, media string) {
	h.stt, h.llm, h.media = stt, llm, media
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status := "healthy"
	httpStatus := http.StatusOK

	// Database check
	if h.db == nil {
		checks["database"] = "not_configured"
	} else if err := h.db.HealthCheck(r.Context()); err != nil {
		checks["database"] = "error"
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	// MQTT check
	if h.mqtt != nil {
		if h.mqtt.IsConnected() {
			checks["mqtt"] = "ok"
		} else {
			checks["mqtt"] = "disconnected"
			if status == "healthy" {
				status = "degraded"
			}
		}
	} else {
		checks["mqtt"] = "not_configured"
	}

	resp := HealthResponse{
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Checks:        checks,
		STTProvider:   h.stt,
		LLMProvider:   h.llm,
		MediaStore:    h.media,
	}

	if h.queue != nil {
		st := h.queue.Status()
		resp.Queue = &st
		checks["transcript_queue"] = "ok"
		if st.Failed > 0 {
			checks["transcript_queue"] = "has_failures"
		}
	}

	WriteJSON(w, httpStatus, resp)
}
