package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	lecturepipeline "github.com/snarg/lecture-pipeline"
	"github.com/snarg/lecture-pipeline/internal/api"
	"github.com/snarg/lecture-pipeline/internal/config"
	"github.com/snarg/lecture-pipeline/internal/database"
	"github.com/snarg/lecture-pipeline/internal/events"
	"github.com/snarg/lecture-pipeline/internal/jobqueue"
	"github.com/snarg/lecture-pipeline/internal/llm"
	"github.com/snarg/lecture-pipeline/internal/metrics"
	"github.com/snarg/lecture-pipeline/internal/mqttclient"
	"github.com/snarg/lecture-pipeline/internal/pipeline"
	"github.com/snarg/lecture-pipeline/internal/quiz"
	"github.com/snarg/lecture-pipeline/internal/storage"
	"github.com/snarg/lecture-pipeline/internal/transcribe"
)

var version = "dev"

func main() {
	startTime := time.Now()

	// Flags
	var overrides config.Overrides
	flag.StringVar(&overrides.EnvFile, "env-file", "", "path to .env file (default .env)")
	flag.StringVar(&overrides.HTTPAddr, "listen", "", "HTTP listen address")
	flag.StringVar(&overrides.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	flag.StringVar(&overrides.DatabaseURL, "database-url", "", "PostgreSQL connection URL")
	flag.StringVar(&overrides.MediaDir, "media-dir", "", "local media directory")
	flag.StringVar(&overrides.STTProvider, "stt-provider", "", "speech-to-text provider")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	// Config
	cfg, err := config.Load(overrides)
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}

	// Logger
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
	log.Info().Str("version", version).Msg("lecture-pipeline starting")

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database
	dbLog := log.With().Str("component", "database").Logger()
	db, err := database.Connect(ctx, cfg.DatabaseURL, dbLog)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if cfg.DBInitSchema {
		if err := db.InitSchema(ctx, lecturepipeline.SchemaSQL); err != nil {
			log.Fatal().Err(err).Msg("failed to initialize schema")
		}
	}
	if err := db.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to apply migrations")
	}

	// Media
	media, err := storage.New(cfg, log.With().Str("component", "storage").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize media store")
	}

	// Speech-to-text
	provider, err := transcribe.NewProvider(cfg.STT)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to configure speech-to-text provider")
	}
	transcripts := transcribe.NewGenerator(transcribe.GeneratorOptions{
		Provider: provider,
		Media:    media,
		Store:    db,
		Language: cfg.STT.Language,
		Hotwords: cfg.STT.Hotwords,
		Log:      log,
	})

	// Language model
	model, err := llm.New(cfg.LLM)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to configure language model")
	}
	quizzes := quiz.NewGenerator(quiz.GeneratorOptions{
		LLM:    model,
		Videos: db,
		Store:  db,
		Log:    log,
	})

	// Pipeline
	bus := events.NewBus(256)
	scheduler := pipeline.NewScheduler(log)

	var hooks *pipeline.Hooks
	queue := jobqueue.New(jobqueue.Options{
		Process: func(ctx context.Context, job jobqueue.Job) error {
			_, err := transcripts.Generate(ctx, job.VideoID, job.MediaRef)
			return err
		},
		BackoffBase: cfg.Pipeline.BackoffBase,
		JobDelay:    cfg.Pipeline.JobDelay,
		OnComplete:  func(job jobqueue.Job) { hooks.TranscriptJobCompleted(job) },
		OnFailed:    func(job jobqueue.Job, err error) { hooks.TranscriptJobFailed(job, err) },
		Log:         log,
	})
	hooks = pipeline.NewHooks(pipeline.HooksOptions{
		Queue:         queue,
		Quiz:          quizzes,
		Videos:        db,
		Events:        bus,
		Scheduler:     scheduler,
		SettleDelay:   cfg.Pipeline.QuizSettleDelay,
		FallbackDelay: cfg.Pipeline.QuizFallbackDelay,
		Log:           log,
	})

	prometheus.MustRegister(metrics.NewCollector(db.Pool, queue, bus))

	// MQTT (optional)
	var broker api.ConnStatus
	var mqtt *mqttclient.Client
	if cfg.MQTTBrokerURL != "" {
		mqtt, err = mqttclient.Connect(mqttclient.Options{
			BrokerURL: cfg.MQTTBrokerURL,
			ClientID:  cfg.MQTTClientID,
			Topics:    pipeline.SubscriptionTopics(cfg.MQTTTopicPrefix),
			QoS:       1,
			Username:  cfg.MQTTUsername,
			Password:  cfg.MQTTPassword,
			Log:       log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to mqtt broker")
		}
		defer mqtt.Close()

		router := pipeline.NewEventRouter(hooks, log)
		mqtt.SetMessageHandler(router.HandleMessage)
		go pipeline.ForwardEvents(ctx, bus, mqtt, cfg.MQTTTopicPrefix, log)
		broker = mqtt
	} else {
		log.Info().Msg("MQTT_BROKER_URL not set, upload events accepted over HTTP only")
	}

	// HTTP Server
	httpLog := log.With().Str("component", "http").Logger()
	srv := api.NewServer(api.ServerOptions{
		Config:      cfg,
		DB:          db,
		Store:       db,
		MQTT:        broker,
		Queue:       queue,
		Hooks:       hooks,
		Quiz:        quizzes,
		Events:      bus,
		Version:     version,
		StartTime:   startTime,
		Log:         httpLog,
		STTProvider: provider.Name(),
		LLMProvider: model.Name(),
		MediaStore:  media.Type(),
	})

	// Start HTTP server in background
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	log.Info().
		Str("stt_provider", provider.Name()).
		Str("stt_model", provider.Model()).
		Str("llm_provider", model.Name()).
		Str("llm_model", model.Model()).
		Str("media_store", media.Type()).
		Msg("pipeline ready")

	// Wait for shutdown signal or server error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server error")
		}
	}

	// Graceful shutdown with 10s timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}
	scheduler.Stop()
	queue.Stop()

	st := queue.Status()
	log.Info().
		Int("pending_dropped", st.Pending).
		Int("failed_retained", st.Failed).
		Int64("completed", st.Completed).
		Msg("lecture-pipeline stopped")
}
