package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/snarg/lecture-pipeline/internal/config"
	"github.com/snarg/lecture-pipeline/internal/metrics"
)

// ServerOptions carries the server's dependencies. Nil MQTT means the broker
// is not configured.
type ServerOptions struct {
	Config    *config.Config
	DB        Pinger
	Store     ContentStore
	MQTT      ConnStatus
	Queue     QueueService
	Hooks     PipelineHooks
	Quiz      QuizService
	Events    EventSource
	Version   string
	StartTime time.Time
	Log       zerolog.Logger

	// Reported by the health endpoint.
	STTProvider string
	LLMProvider string
	MediaStore  string
}

type Server struct {
	http *http.Server
	log  zerolog.Logger
}

func NewServer(opts ServerOptions) *Server {
	cfg := opts.Config
	return &Server{
		http: &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      NewRouter(opts),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		log: opts.Log,
	}
}

// NewRouter builds the HTTP handler tree.
func NewRouter(opts ServerOptions) http.Handler {
	cfg := opts.Config
	r := chi.NewRouter()

	// Global middleware
	r.Use(RequestID)
	r.Use(Recoverer)
	r.Use(Logger(opts.Log))
	r.Use(CORSWithOrigins(cfg.CORSOrigins))
	r.Use(metrics.InstrumentHandler)

	// Metrics endpoint, no auth
	health := NewHealthHandler(opts.DB, opts.MQTT, opts.Queue, opts.Version, opts.StartTime)
	health.SetProviders(opts.STTProvider, opts.LLMProvider, opts.MediaStore)
	r.Handle("/metrics", promhttp.Handler())

	queue := NewQueueHandler(opts.Queue)
	videos := NewVideosHandler(opts.Hooks, opts.Quiz, opts.Store)
	events := NewEventsHandler(opts.Events)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", health.ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(BearerAuth(cfg.AuthToken))
			queue.Routes(r)
			videos.Routes(r)
			events.Routes(r)
		})
		r.Group(func(r chi.Router) {
			r.Use(RequireAuth(cfg.AuthToken))
			r.Use(BearerAuth(cfg.AuthToken))
			queue.AdminRoutes(r)
		})
	})

	return r
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("http server starting")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	return s.http.Shutdown(ctx)
}
