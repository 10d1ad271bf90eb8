package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL  string `env:"DATABASE_URL,required"`
	DBInitSchema bool   `env:"DB_INIT_SCHEMA" envDefault:"false"`

	MQTTBrokerURL   string `env:"MQTT_BROKER_URL"`
	MQTTTopicPrefix string `env:"MQTT_TOPIC_PREFIX" envDefault:"courses"`
	MQTTClientID    string `env:"MQTT_CLIENT_ID" envDefault:"lecture-pipeline"`
	MQTTUsername    string `env:"MQTT_USERNAME"`
	MQTTPassword    string `env:"MQTT_PASSWORD"`

	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"120s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`

	AuthToken   string   `env:"AUTH_TOKEN"`
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:","`
	LogLevel    string   `env:"LOG_LEVEL" envDefault:"info"`

	// Media
	MediaDir        string   `env:"MEDIA_DIR" envDefault:"./media"`
	MediaAudioParam string   `env:"MEDIA_AUDIO_PARAM" envDefault:"format=mp3"`
	S3              S3Config `envPrefix:"S3_"`

	STT STTConfig
	LLM LLMConfig

	Pipeline PipelineConfig
}

// S3Config holds object storage settings for lecture media.
type S3Config struct {
	Bucket        string        `env:"BUCKET"`
	Endpoint      string        `env:"ENDPOINT"`
	Region        string        `env:"REGION" envDefault:"us-east-1"`
	AccessKey     string        `env:"ACCESS_KEY"`
	SecretKey     string        `env:"SECRET_KEY"`
	Prefix        string        `env:"PREFIX"`
	PresignExpiry time.Duration `env:"PRESIGN_EXPIRY" envDefault:"1h"`
}

// Enabled reports whether S3 storage is configured.
func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

// STTConfig selects and configures the speech-to-text provider.
type STTConfig struct {
	Provider string        `env:"STT_PROVIDER" envDefault:"whisper"`
	Timeout  time.Duration `env:"STT_TIMEOUT" envDefault:"300s"`
	Language string        `env:"STT_LANGUAGE"`
	Hotwords string        `env:"STT_HOTWORDS"` // comma-separated boost terms for every job

	WhisperURL    string `env:"WHISPER_URL" envDefault:"https://api.openai.com/v1/audio/transcriptions"`
	WhisperAPIKey string `env:"WHISPER_API_KEY"`
	WhisperModel  string `env:"WHISPER_MODEL" envDefault:"whisper-1"`

	DeepInfraAPIKey string `env:"DEEPINFRA_API_KEY"`
	DeepInfraModel  string `env:"DEEPINFRA_MODEL" envDefault:"openai/whisper-large-v3-turbo"`

	ElevenLabsAPIKey   string `env:"ELEVENLABS_API_KEY"`
	ElevenLabsModel    string `env:"ELEVENLABS_MODEL" envDefault:"scribe_v1"`
	ElevenLabsKeyterms string `env:"ELEVENLABS_KEYTERMS"`

	AssemblyAIAPIKey       string        `env:"ASSEMBLYAI_API_KEY"`
	AssemblyAIBaseURL      string        `env:"ASSEMBLYAI_BASE_URL" envDefault:"https://api.assemblyai.com"`
	AssemblyAIModel        string        `env:"ASSEMBLYAI_MODEL" envDefault:"best"`
	AssemblyAIPollInterval time.Duration `env:"ASSEMBLYAI_POLL_INTERVAL" envDefault:"5s"`
}

// LLMConfig selects and configures the language model used for quizzes.
type LLMConfig struct {
	Provider    string        `env:"LLM_PROVIDER" envDefault:"openai"`
	URL         string        `env:"LLM_URL"`
	APIKey      string        `env:"LLM_API_KEY"`
	Model       string        `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`
	Temperature float64       `env:"LLM_TEMPERATURE" envDefault:"0.7"`
	MaxTokens   int           `env:"LLM_MAX_TOKENS" envDefault:"4000"`
	Timeout     time.Duration `env:"LLM_TIMEOUT" envDefault:"120s"`
}

// PipelineConfig holds queue and hook timings.
type PipelineConfig struct {
	BackoffBase       time.Duration `env:"QUEUE_BACKOFF_BASE" envDefault:"2500ms"`
	JobDelay          time.Duration `env:"QUEUE_JOB_DELAY" envDefault:"2s"`
	QuizSettleDelay   time.Duration `env:"QUIZ_SETTLE_DELAY" envDefault:"5s"`
	QuizFallbackDelay time.Duration `env:"QUIZ_FALLBACK_DELAY" envDefault:"30s"`
}

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile     string
	HTTPAddr    string
	LogLevel    string
	DatabaseURL string
	MediaDir    string
	STTProvider string
}

var (
	sttProviders = map[string]bool{"whisper": true, "deepinfra": true, "elevenlabs": true, "assemblyai": true}
	llmProviders = map[string]bool{"openai": true, "anthropic": true}
)

// Load reads configuration from .env file, environment variables, and CLI overrides.
// Priority: CLI flags > environment variables > .env file > struct defaults.
func Load(overrides Overrides) (*Config, error) {
	// Load .env file (silent if missing)
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if overrides.HTTPAddr != "" {
		cfg.HTTPAddr = overrides.HTTPAddr
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.DatabaseURL != "" {
		cfg.DatabaseURL = overrides.DatabaseURL
	}
	if overrides.MediaDir != "" {
		cfg.MediaDir = overrides.MediaDir
	}
	if overrides.STTProvider != "" {
		cfg.STT.Provider = overrides.STTProvider
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks provider names and pipeline timings.
func (c *Config) Validate() error {
	if !sttProviders[c.STT.Provider] {
		return fmt.Errorf("invalid STT_PROVIDER %q: must be one of whisper, deepinfra, elevenlabs, assemblyai", c.STT.Provider)
	}
	if !llmProviders[c.LLM.Provider] {
		return fmt.Errorf("invalid LLM_PROVIDER %q: must be openai or anthropic", c.LLM.Provider)
	}
	if c.STT.AssemblyAIPollInterval <= 0 {
		return fmt.Errorf("ASSEMBLYAI_POLL_INTERVAL must be positive")
	}
	if c.Pipeline.BackoffBase <= 0 {
		return fmt.Errorf("QUEUE_BACKOFF_BASE must be positive")
	}
	if c.Pipeline.JobDelay < 0 || c.Pipeline.QuizSettleDelay < 0 || c.Pipeline.QuizFallbackDelay < 0 {
		return fmt.Errorf("pipeline delays must not be negative")
	}
	return nil
}
