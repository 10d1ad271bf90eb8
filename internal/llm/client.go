package llm

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/snarg/lecture-pipeline/internal/config"
	"github.com/snarg/lecture-pipeline/internal/metrics"
)

// Client is a text-completion backend.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Name() string  // "openai", "anthropic"
	Model() string // model identifier for logs
}

// Options are shared by all clients.
type Options struct {
	URL         string // endpoint override; "" uses the vendor default
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// New builds the configured language-model client.
func New(cfg config.LLMConfig) (Client, error) {
	opts := Options{
		URL:         cfg.URL,
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Timeout:     cfg.Timeout,
	}
	switch cfg.Provider {
	case "openai":
		return NewOpenAIClient(opts), nil
	case "anthropic":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("LLM_API_KEY is required for anthropic")
		}
		return NewAnthropicClient(opts), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}

// ProviderError is a failed language-model call (network, auth, quota, or an
// unusable response).
type ProviderError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// post sends req and returns the body of a 2xx response, recording the call
// duration.
func post(client *http.Client, req *http.Request, provider string) ([]byte, error) {
	start := time.Now()
	body, err := do(client, req, provider)
	metrics.ObserveProvider("llm", provider, start, err)
	return body, err
}

func do(client *http.Client, req *http.Request, provider string) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: provider, Err: fmt.Errorf("request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{Provider: provider, StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := string(body)
		if len(msg) > 512 {
			msg = msg[:512] + "..."
		}
		return nil, &ProviderError{Provider: provider, StatusCode: resp.StatusCode, Err: fmt.Errorf("API error: %s", msg)}
	}
	return body, nil
}
