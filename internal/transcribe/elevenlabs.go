package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const elevenLabsSTTEndpoint = "https://api.elevenlabs.io/v1/speech-to-text"

// ElevenLabsClient calls the ElevenLabs Speech-to-Text API.
// Implements the Provider interface as a synchronous single-call provider.
type ElevenLabsClient struct {
	apiKey   string
	model    string // "scribe_v1" or "scribe_v2"
	keyterms string // comma-separated boost terms
	endpoint string
	timeout  time.Duration
	client   *http.Client
}

// elevenlabsResponse is the JSON response from the ElevenLabs STT API.
type elevenlabsResponse struct {
	LanguageCode        string           `json:"language_code"`
	LanguageProbability float64          `json:"language_probability"`
	Text                string           `json:"text"`
	Words               []elevenlabsWord `json:"words"`
}

// elevenlabsWord is a word or spacing entry from ElevenLabs.
type elevenlabsWord struct {
	Text    string   `json:"text"`
	Type    string   `json:"type"` // "word", "spacing", or "audio_event"
	Start   float64  `json:"start"`
	End     float64  `json:"end"`
	Logprob *float64 `json:"logprob"`
}

// NewElevenLabsClient creates a new ElevenLabs STT client.
func NewElevenLabsClient(apiKey, model, keyterms string, timeout time.Duration) *ElevenLabsClient {
	return &ElevenLabsClient{
		apiKey:   apiKey,
		model:    model,
		keyterms: keyterms,
		endpoint: elevenLabsSTTEndpoint,
		timeout:  timeout,
		client:   &http.Client{Timeout: timeout},
	}
}

// Name returns the provider name.
func (el *ElevenLabsClient) Name() string { return "elevenlabs" }

// Model returns the configured model identifier.
func (el *ElevenLabsClient) Model() string { return el.model }

// Transcribe sends the audio to the ElevenLabs STT API and returns the result.
func (el *ElevenLabsClient) Transcribe(ctx context.Context, audioLocator string, opts TranscribeOpts) (*Response, error) {
	body, contentType, err := audioForm(ctx, el.client, audioLocator, "file", func(w *multipart.Writer) {
		w.WriteField("model_id", el.model)
		if opts.Language != "" {
			w.WriteField("language_code", opts.Language)
		}
		w.WriteField("timestamps_granularity", "word")
		if keyterms := el.buildKeyterms(opts.Hotwords); keyterms != "" {
			w.WriteField("keyterms", keyterms)
		}
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, el.endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("xi-api-key", el.apiKey)

	raw, err := doRequest(el.client, req, el.Name())
	if err != nil {
		return nil, err
	}

	var result elevenlabsResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, &ProviderError{Provider: el.Name(), Err: fmt.Errorf("decode response: %w", err)}
	}

	// Convert to common Word type, filtering out spacing and audio events
	var words []Word
	for _, ew := range result.Words {
		if ew.Type != "word" {
			continue
		}
		w := Word{Word: ew.Text, Start: ew.Start, End: ew.End}
		if ew.Logprob != nil {
			c := math.Exp(*ew.Logprob)
			w.Confidence = &c
		}
		words = append(words, w)
	}

	return &Response{
		Text:     result.Text,
		Language: result.LanguageCode,
		Words:    words,
	}, nil
}

// buildKeyterms merges config-level keyterms with per-request hotwords into a
// JSON array of {"text": "term"} objects for the ElevenLabs API.
func (el *ElevenLabsClient) buildKeyterms(hotwords string) string {
	var terms []string
	for _, src := range []string{el.keyterms, hotwords} {
		for _, t := range strings.Split(src, ",") {
			t = strings.TrimSpace(t)
			if t != "" {
				terms = append(terms, t)
			}
		}
	}
	if len(terms) == 0 {
		return ""
	}

	type keyterm struct {
		Text string `json:"text"`
	}
	arr := make([]keyterm, len(terms))
	for i, t := range terms {
		arr[i] = keyterm{Text: t}
	}
	b, _ := json.Marshal(arr)
	return string(b)
}
