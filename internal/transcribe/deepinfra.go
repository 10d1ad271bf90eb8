package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"time"
)

const deepInfraBaseURL = "https://api.deepinfra.com/v1/inference/"

// DeepInfraClient calls DeepInfra's native inference API for Whisper models.
// Implements the Provider interface as a synchronous single-call provider.
type DeepInfraClient struct {
	apiKey  string
	model   string // e.g. "openai/whisper-large-v3-turbo"
	baseURL string
	timeout time.Duration
	client  *http.Client
}

// deepInfraResponse is the JSON response from the DeepInfra inference API.
type deepInfraResponse struct {
	Text     string             `json:"text"`
	Language string             `json:"language"`
	Duration float64            `json:"duration"`
	Words    []deepInfraWord    `json:"words"`
	Segments []deepInfraSegment `json:"segments"`
}

// deepInfraWord is a word with timestamps from DeepInfra.
// Note: DeepInfra uses "text" for the word field, not "word" like OpenAI.
type deepInfraWord struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type deepInfraSegment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// NewDeepInfraClient creates a new DeepInfra inference client.
func NewDeepInfraClient(apiKey, model string, timeout time.Duration) *DeepInfraClient {
	return &DeepInfraClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: deepInfraBaseURL,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}
}

// Name returns the provider name.
func (di *DeepInfraClient) Name() string { return "deepinfra" }

// Model returns the configured model identifier.
func (di *DeepInfraClient) Model() string { return di.model }

// Transcribe sends the audio to DeepInfra's inference API and returns the result.
// Uses multipart/form-data with field name "audio" (DeepInfra's convention).
func (di *DeepInfraClient) Transcribe(ctx context.Context, audioLocator string, opts TranscribeOpts) (*Response, error) {
	body, contentType, err := audioForm(ctx, di.client, audioLocator, "audio", func(w *multipart.Writer) {
		if opts.Language != "" {
			w.WriteField("language", opts.Language)
		}
		if opts.Prompt != "" {
			w.WriteField("initial_prompt", opts.Prompt)
		}
	})
	if err != nil {
		return nil, err
	}

	// Endpoint: https://api.deepinfra.com/v1/inference/{model}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, di.baseURL+di.model, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+di.apiKey)

	raw, err := doRequest(di.client, req, di.Name())
	if err != nil {
		return nil, err
	}

	var result deepInfraResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, &ProviderError{Provider: di.Name(), Err: fmt.Errorf("decode response: %w", err)}
	}

	// Word-level when available; segments are kept either way and take
	// precedence during normalization.
	resp := &Response{
		Text:     result.Text,
		Language: result.Language,
		Duration: result.Duration,
	}
	for _, dw := range result.Words {
		resp.Words = append(resp.Words, Word{Word: dw.Text, Start: dw.Start, End: dw.End})
	}
	for _, ds := range result.Segments {
		resp.Segments = append(resp.Segments, Segment{Start: ds.Start, End: ds.End, Text: ds.Text})
	}
	return resp, nil
}
