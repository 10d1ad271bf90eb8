package transcribe

import (
	"context"
	"fmt"

	"github.com/snarg/lecture-pipeline/internal/config"
)

// Provider is the interface for speech-to-text backends.
type Provider interface {
	Transcribe(ctx context.Context, audioLocator string, opts TranscribeOpts) (*Response, error)
	Name() string  // "whisper", "deepinfra", "elevenlabs", "assemblyai"
	Model() string // model identifier for DB/logs
}

// TranscribeOpts are per-request options. Zero-value fields are omitted from
// vendor requests.
type TranscribeOpts struct {
	Temperature float64
	Language    string // ISO-639-1; "" lets the provider detect
	Prompt      string // domain vocabulary / course context
	Hotwords    string // comma-separated boost terms
}

// Response is the raw transcription result from any provider, before
// normalization. Vendors fill whichever of Words/Segments they support.
type Response struct {
	Text       string
	Language   string
	Duration   float64  // audio duration in seconds
	Confidence *float64 // overall confidence if the vendor reports one
	Words      []Word
	Segments   []Segment
}

// Word is a timestamped word from any STT provider.
type Word struct {
	Word       string
	Start      float64 // seconds
	End        float64 // seconds
	Confidence *float64
}

// NewProvider builds the configured speech-to-text provider.
func NewProvider(cfg config.STTConfig) (Provider, error) {
	switch cfg.Provider {
	case "whisper":
		if cfg.WhisperURL == "" {
			return nil, &UnsupportedProviderError{Provider: cfg.Provider, Reason: "WHISPER_URL is empty"}
		}
		return NewWhisperClient(cfg.WhisperURL, cfg.WhisperAPIKey, cfg.WhisperModel, cfg.Timeout), nil
	case "deepinfra":
		if cfg.DeepInfraAPIKey == "" {
			return nil, &UnsupportedProviderError{Provider: cfg.Provider, Reason: "DEEPINFRA_API_KEY is empty"}
		}
		return NewDeepInfraClient(cfg.DeepInfraAPIKey, cfg.DeepInfraModel, cfg.Timeout), nil
	case "elevenlabs":
		if cfg.ElevenLabsAPIKey == "" {
			return nil, &UnsupportedProviderError{Provider: cfg.Provider, Reason: "ELEVENLABS_API_KEY is empty"}
		}
		return NewElevenLabsClient(cfg.ElevenLabsAPIKey, cfg.ElevenLabsModel, cfg.ElevenLabsKeyterms, cfg.Timeout), nil
	case "assemblyai":
		if cfg.AssemblyAIAPIKey == "" {
			return nil, &UnsupportedProviderError{Provider: cfg.Provider, Reason: "ASSEMBLYAI_API_KEY is empty"}
		}
		return NewAssemblyAIClient(cfg.AssemblyAIBaseURL, cfg.AssemblyAIAPIKey, cfg.AssemblyAIModel, cfg.AssemblyAIPollInterval, cfg.Timeout), nil
	default:
		return nil, &UnsupportedProviderError{Provider: cfg.Provider, Reason: "unknown provider"}
	}
}

// ProviderError is a failed call to a speech-to-text vendor (network, auth,
// quota, malformed response). Retried by the job queue.
type ProviderError struct {
	Provider   string
	StatusCode int // 0 when no HTTP response was received
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// UnsupportedProviderError means the provider is unknown or missing
// credentials.
type UnsupportedProviderError struct {
	Provider string
	Reason   string
}

func (e *UnsupportedProviderError) Error() string {
	return fmt.Sprintf("unsupported transcription provider %q: %s", e.Provider, e.Reason)
}
