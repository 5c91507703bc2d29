package llm

import (
	"context"
	"encoding/json"
	"strings"
)

// Provider defines the interface for LLM completion backends
type Provider interface {
	// Name returns the provider name
	Name() string

	// Complete sends a single-turn request and returns the model's text
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// CompletionRequest is a single-turn, optionally multimodal, request
type CompletionRequest struct {
	// Model overrides the provider's configured model
	Model string

	// System is an optional system instruction
	System string

	// Prompt is the user message text
	Prompt string

	// ImageBase64 is an optional image attachment (raw base64, no data URL prefix)
	ImageBase64 string

	// ImageMediaType defaults to image/png
	ImageMediaType string

	// MaxTokens limits the response length
	MaxTokens int

	// Temperature is passed through when > 0
	Temperature float64

	// JSON asks providers that support it for a JSON-only response
	JSON bool
}

// CompletionResponse carries the model's free-form text
type CompletionResponse struct {
	Text       string
	Model      string
	TokensUsed int
}

// SearchProvider is a search-augmented backend that answers directly in JSON
type SearchProvider interface {
	Name() string
	Search(ctx context.Context, req SearchRequest) (*SearchResponse, error)
}

// SearchRequest asks a search-augmented model a question under a system instruction
type SearchRequest struct {
	System      string
	Query       string
	Temperature float32

	// Schema, when set, requests structured output matching it
	Schema json.RawMessage
}

// SearchResponse is the raw JSON content returned by the search backend
type SearchResponse struct {
	Content string
	Model   string
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "anthropic", "openai", "ollama", "perplexity"
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for hosted providers
	APIKey string

	// BaseURL for custom endpoints (tests, proxies, Ollama)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// MaxTokens for response generation
	MaxTokens int

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:  "anthropic",
		Timeout:   60,
		MaxTokens: 1024,
	}
}

// imageMediaType returns the request's media type, defaulting to PNG
func (r CompletionRequest) imageMediaType() string {
	if r.ImageMediaType != "" {
		return r.ImageMediaType
	}
	return "image/png"
}

// StripDataURL removes a "data:image/...;base64," prefix and returns the
// payload and its media type (empty when there was no prefix)
func StripDataURL(s string) (data, mediaType string) {
	if !strings.HasPrefix(s, "data:") {
		return s, ""
	}
	comma := strings.Index(s, ",")
	if comma < 0 {
		return s, ""
	}
	meta := s[len("data:"):comma]
	mediaType = strings.TrimSuffix(meta, ";base64")
	return s[comma+1:], mediaType
}

func resolveModel(reqModel, configModel, fallback string) string {
	if reqModel != "" {
		return reqModel
	}
	if configModel != "" {
		return configModel
	}
	return fallback
}

func resolveMaxTokens(reqMax, configMax int) int {
	if reqMax > 0 {
		return reqMax
	}
	if configMax > 0 {
		return configMax
	}
	return 1024
}
