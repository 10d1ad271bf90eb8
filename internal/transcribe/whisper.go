package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"mime/multipart"
	"net/http"
	"time"
)

// WhisperClient calls an OpenAI-compatible /v1/audio/transcriptions endpoint.
// Implements the Provider interface as a synchronous single-call provider.
type WhisperClient struct {
	url     string
	apiKey  string
	model   string
	timeout time.Duration
	client  *http.Client
}

// whisperResponse is the parsed response from the Whisper API (verbose_json format).
type whisperResponse struct {
	Text     string           `json:"text"`
	Language string           `json:"language"`
	Duration float64          `json:"duration"`
	Words    []whisperWord    `json:"words"`
	Segments []whisperSegment `json:"segments"`
}

type whisperWord struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type whisperSegment struct {
	Text       string   `json:"text"`
	Start      float64  `json:"start"`
	End        float64  `json:"end"`
	AvgLogprob *float64 `json:"avg_logprob"`
}

// NewWhisperClient creates a new Whisper HTTP client. apiKey may be empty for
// self-hosted servers.
func NewWhisperClient(url, apiKey, model string, timeout time.Duration) *WhisperClient {
	return &WhisperClient{
		url:     url,
		apiKey:  apiKey,
		model:   model,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}
}

// Name returns the provider name.
func (wc *WhisperClient) Name() string { return "whisper" }

// Model returns the configured model identifier.
func (wc *WhisperClient) Model() string { return wc.model }

// Transcribe sends the audio to the Whisper API and returns the result.
// Only non-default parameters are sent, so this works with any
// OpenAI-compatible endpoint.
func (wc *WhisperClient) Transcribe(ctx context.Context, audioLocator string, opts TranscribeOpts) (*Response, error) {
	body, contentType, err := audioForm(ctx, wc.client, audioLocator, "file", func(w *multipart.Writer) {
		if wc.model != "" {
			w.WriteField("model", wc.model)
		}
		if opts.Language != "" {
			w.WriteField("language", opts.Language)
		}
		w.WriteField("temperature", fmt.Sprintf("%.2f", opts.Temperature))

		// verbose_json for segment and word-level timestamps
		w.WriteField("response_format", "verbose_json")
		w.WriteField("timestamp_granularities[]", "word")
		w.WriteField("timestamp_granularities[]", "segment")

		if opts.Prompt != "" {
			w.WriteField("prompt", opts.Prompt)
		}
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wc.url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if wc.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+wc.apiKey)
	}

	raw, err := doRequest(wc.client, req, wc.Name())
	if err != nil {
		return nil, err
	}

	var result whisperResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, &ProviderError{Provider: wc.Name(), Err: fmt.Errorf("decode response: %w", err)}
	}

	resp := &Response{
		Text:     result.Text,
		Language: result.Language,
		Duration: result.Duration,
	}
	for _, ww := range result.Words {
		resp.Words = append(resp.Words, Word{Word: ww.Word, Start: ww.Start, End: ww.End})
	}
	for _, ws := range result.Segments {
		seg := Segment{Start: ws.Start, End: ws.End, Text: ws.Text}
		if ws.AvgLogprob != nil {
			// avg_logprob is a mean token log-probability; exp() maps it to (0,1].
			conf := math.Exp(*ws.AvgLogprob)
			seg.Confidence = &conf
		}
		resp.Segments = append(resp.Segments, seg)
	}
	return resp, nil
}
