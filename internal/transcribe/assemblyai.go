package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/snarg/lecture-pipeline/internal/audio"
)

// AssemblyAIClient is a submit-then-poll provider: the audio is uploaded (or
// referenced by URL), a transcript job is created, and the job is polled at a
// fixed interval until it reaches a terminal status. There is no overall
// deadline here; the caller's context and the job queue's retry envelope
// bound it.
type AssemblyAIClient struct {
	baseURL      string
	apiKey       string
	model        string // speech_model: "best", "nano", "universal"
	pollInterval time.Duration
	client       *http.Client
}

type assemblyUploadResponse struct {
	UploadURL string `json:"upload_url"`
}

type assemblySubmitRequest struct {
	AudioURL          string   `json:"audio_url"`
	SpeechModel       string   `json:"speech_model,omitempty"`
	LanguageCode      string   `json:"language_code,omitempty"`
	LanguageDetection bool     `json:"language_detection,omitempty"`
	WordBoost         []string `json:"word_boost,omitempty"`
}

type assemblyTranscript struct {
	ID            string         `json:"id"`
	Status        string         `json:"status"` // queued, processing, completed, error
	Error         string         `json:"error"`
	Text          string         `json:"text"`
	LanguageCode  string         `json:"language_code"`
	Confidence    *float64       `json:"confidence"`
	AudioDuration float64        `json:"audio_duration"`
	Words         []assemblyWord `json:"words"`
}

// assemblyWord timestamps are milliseconds.
type assemblyWord struct {
	Text       string  `json:"text"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence"`
}

// NewAssemblyAIClient creates a new AssemblyAI client. timeout bounds each
// individual HTTP request, not the whole transcription.
func NewAssemblyAIClient(baseURL, apiKey, model string, pollInterval, timeout time.Duration) *AssemblyAIClient {
	return &AssemblyAIClient{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		apiKey:       apiKey,
		model:        model,
		pollInterval: pollInterval,
		client:       &http.Client{Timeout: timeout},
	}
}

// Name returns the provider name.
func (a *AssemblyAIClient) Name() string { return "assemblyai" }

// Model returns the configured model identifier.
func (a *AssemblyAIClient) Model() string { return a.model }

// Transcribe uploads (when needed), submits, and polls until completion.
func (a *AssemblyAIClient) Transcribe(ctx context.Context, audioLocator string, opts TranscribeOpts) (*Response, error) {
	audioURL := audioLocator
	if !audio.IsRemote(audioLocator) {
		uploaded, err := a.upload(ctx, audioLocator)
		if err != nil {
			return nil, err
		}
		audioURL = uploaded
	}

	id, err := a.submit(ctx, audioURL, opts)
	if err != nil {
		return nil, err
	}

	t, err := a.poll(ctx, id)
	if err != nil {
		return nil, err
	}

	words := make([]Word, 0, len(t.Words))
	for _, w := range t.Words {
		c := w.Confidence
		words = append(words, Word{
			Word:       w.Text,
			Start:      w.Start / 1000.0,
			End:        w.End / 1000.0,
			Confidence: &c,
		})
	}

	return &Response{
		Text:       t.Text,
		Language:   t.LanguageCode,
		Duration:   t.AudioDuration,
		Confidence: t.Confidence,
		Words:      words,
	}, nil
}

func (a *AssemblyAIClient) upload(ctx context.Context, path string) (string, error) {
	src, _, err := audio.Open(ctx, a.client, path)
	if err != nil {
		return "", err
	}
	defer src.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v2/upload", src)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Authorization", a.apiKey)

	raw, err := doRequest(a.client, req, a.Name())
	if err != nil {
		return "", err
	}
	var up assemblyUploadResponse
	if err := json.Unmarshal(raw, &up); err != nil || up.UploadURL == "" {
		return "", &ProviderError{Provider: a.Name(), Err: fmt.Errorf("decode upload response: %s", truncate(string(raw), 256))}
	}
	return up.UploadURL, nil
}

func (a *AssemblyAIClient) submit(ctx context.Context, audioURL string, opts TranscribeOpts) (string, error) {
	body := assemblySubmitRequest{
		AudioURL:    audioURL,
		SpeechModel: a.model,
	}
	if opts.Language != "" {
		body.LanguageCode = opts.Language
	} else {
		body.LanguageDetection = true
	}
	for _, t := range strings.Split(opts.Hotwords, ",") {
		if t = strings.TrimSpace(t); t != "" {
			body.WordBoost = append(body.WordBoost, t)
		}
	}

	b, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal submit request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v2/transcript", bytes.NewReader(b))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", a.apiKey)

	raw, err := doRequest(a.client, req, a.Name())
	if err != nil {
		return "", err
	}
	var t assemblyTranscript
	if err := json.Unmarshal(raw, &t); err != nil || t.ID == "" {
		return "", &ProviderError{Provider: a.Name(), Err: fmt.Errorf("decode submit response: %s", truncate(string(raw), 256))}
	}
	return t.ID, nil
}

// poll fetches the transcript until status is completed or error, waiting
// pollInterval between requests.
func (a *AssemblyAIClient) poll(ctx context.Context, id string) (*assemblyTranscript, error) {
	endpoint := a.baseURL + "/v2/transcript/" + id
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Authorization", a.apiKey)

		raw, err := doRequest(a.client, req, a.Name())
		if err != nil {
			return nil, err
		}
		var t assemblyTranscript
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, &ProviderError{Provider: a.Name(), Err: fmt.Errorf("decode poll response: %w", err)}
		}

		switch t.Status {
		case "completed":
			return &t, nil
		case "error":
			return nil, &ProviderError{Provider: a.Name(), Err: errors.New("transcript " + id + " failed: " + t.Error)}
		}

		timer := time.NewTimer(a.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, &ProviderError{Provider: a.Name(), Err: ctx.Err()}
		case <-timer.C:
		}
	}
}
