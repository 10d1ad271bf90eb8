package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/snarg/lecture-pipeline/internal/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.LLMConfig
		wantName string
		wantErr  bool
	}{
		{"openai", config.LLMConfig{Provider: "openai", Model: "gpt-4o-mini"}, "openai", false},
		{"anthropic", config.LLMConfig{Provider: "anthropic", APIKey: "k", Model: "claude"}, "anthropic", false},
		{"anthropic_without_key", config.LLMConfig{Provider: "anthropic"}, "", true},
		{"unknown", config.LLMConfig{Provider: "eliza"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if c.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", c.Name(), tt.wantName)
			}
			if c.Model() != tt.cfg.Model {
				t.Errorf("Model() = %q, want %q", c.Model(), tt.cfg.Model)
			}
		})
	}
}

func TestOpenAIClient_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.Model != "gpt-4o-mini" || len(req.Messages) != 1 || req.Messages[0].Content != "quiz me" {
			t.Errorf("request = %+v", req)
		}
		if req.Temperature != 0.7 || req.MaxTokens != 4000 {
			t.Errorf("temperature/max_tokens = %v/%d", req.Temperature, req.MaxTokens)
		}
		io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"[1,2]"},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	c := NewOpenAIClient(Options{URL: srv.URL, APIKey: "sk-test", Model: "gpt-4o-mini", Temperature: 0.7, MaxTokens: 4000, Timeout: 5 * time.Second})
	got, err := c.Complete(context.Background(), "quiz me")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "[1,2]" {
		t.Errorf("Complete() = %q, want [1,2]", got)
	}
}

func TestOpenAIClient_Errors(t *testing.T) {
	t.Run("http_status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
		}))
		defer srv.Close()

		c := NewOpenAIClient(Options{URL: srv.URL, Model: "m", Timeout: 5 * time.Second})
		_, err := c.Complete(context.Background(), "x")
		var pe *ProviderError
		if !errors.As(err, &pe) {
			t.Fatalf("err = %v, want *ProviderError", err)
		}
		if pe.StatusCode != http.StatusTooManyRequests {
			t.Errorf("StatusCode = %d, want 429", pe.StatusCode)
		}
	})

	t.Run("no_choices", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"choices":[]}`)
		}))
		defer srv.Close()

		c := NewOpenAIClient(Options{URL: srv.URL, Model: "m", Timeout: 5 * time.Second})
		_, err := c.Complete(context.Background(), "x")
		var pe *ProviderError
		if !errors.As(err, &pe) {
			t.Fatalf("err = %v, want *ProviderError", err)
		}
	})
}

func TestAnthropicClient_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-api-key"); got != "ak" {
			t.Errorf("x-api-key = %q", got)
		}
		if got := r.Header.Get("anthropic-version"); got != anthropicVersion {
			t.Errorf("anthropic-version = %q", got)
		}
		var req anthropicRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.MaxTokens != 4000 {
			t.Errorf("max_tokens = %d, want default 4000", req.MaxTokens)
		}
		io.WriteString(w, `{"content":[{"type":"text","text":"Here: "},{"type":"text","text":"[]"}],"stop_reason":"end_turn"}`)
	}))
	defer srv.Close()

	c := NewAnthropicClient(Options{URL: srv.URL, APIKey: "ak", Model: "claude", Timeout: 5 * time.Second})
	got, err := c.Complete(context.Background(), "quiz me")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "Here: []" {
		t.Errorf("Complete() = %q, want %q", got, "Here: []")
	}
}
