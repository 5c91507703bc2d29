package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
)

func TestPerplexityProvider_Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openai.ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != DefaultPerplexityModel {
			t.Errorf("Expected model %s, got %s", DefaultPerplexityModel, req.Model)
		}
		if req.Temperature != 0.2 {
			t.Errorf("Expected temperature 0.2, got %v", req.Temperature)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != openai.ChatMessageRoleSystem {
			t.Errorf("Expected system + user messages, got %+v", req.Messages)
		}
		if req.ResponseFormat == nil || req.ResponseFormat.Type != openai.ChatCompletionResponseFormatTypeJSONSchema {
			t.Errorf("Expected json_schema response format, got %+v", req.ResponseFormat)
		}

		_ = json.NewEncoder(w).Encode(chatResponse(`{"verified": true, "verdict": "Verified", "explanation": "ok", "sources": []}`))
	}))
	defer server.Close()

	provider, err := NewPerplexityProvider(Config{APIKey: "pplx-key", BaseURL: server.URL, Timeout: 5})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	resp, err := provider.Search(context.Background(), SearchRequest{
		System:      "You are a fact checker",
		Query:       "Market size is $4.2B",
		Temperature: 0.2,
		Schema:      json.RawMessage(`{"type":"object"}`),
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if resp.Content == "" {
		t.Error("Expected content")
	}
}

func TestPerplexityProvider_EmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(chatResponse("  "))
	}))
	defer server.Close()

	provider, _ := NewPerplexityProvider(Config{APIKey: "pplx-key", BaseURL: server.URL, Timeout: 5})
	if _, err := provider.Search(context.Background(), SearchRequest{Query: "x"}); err == nil {
		t.Fatal("Expected error for empty content")
	}
}

func TestNewSearchProvider(t *testing.T) {
	p, err := NewSearchProvider(Config{Provider: "perplexity"})
	if err != nil || p != nil {
		t.Errorf("Expected nil provider without key, got %v, %v", p, err)
	}

	p, err = NewSearchProvider(Config{Provider: "perplexity", APIKey: "k"})
	if err != nil || p == nil || p.Name() != "perplexity" {
		t.Errorf("Expected perplexity provider, got %v, %v", p, err)
	}

	if _, err := NewSearchProvider(Config{Provider: "bing"}); !IsConfigError(err) {
		t.Errorf("Expected config error for unknown provider, got %v", err)
	}
}

func TestPerplexityProvider_RateLimitRetryAfter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "12")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "Too many requests", "type": "rate_limit_exceeded"}}`))
	}))
	defer server.Close()

	provider, _ := NewPerplexityProvider(Config{APIKey: "pplx-key", BaseURL: server.URL, Timeout: 5})

	_, err := provider.Search(context.Background(), SearchRequest{System: "s", Query: "q"})
	if !IsRateLimit(err) {
		t.Fatalf("Expected rate limit error, got %v", err)
	}
	if d, ok := RetryAfter(err); !ok || d != 12*time.Second {
		t.Errorf("Expected Retry-After 12s, got %v (ok=%v)", d, ok)
	}
}
