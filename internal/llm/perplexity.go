package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

const (
	// DefaultPerplexityModel is Perplexity's search-grounded chat model
	DefaultPerplexityModel = "sonar"

	perplexityBaseURL = "https://api.perplexity.ai"
)

// PerplexityProvider is a SearchProvider backed by Perplexity's
// OpenAI-compatible chat completions API
type PerplexityProvider struct {
	client *openai.Client
	config Config
}

// NewPerplexityProvider creates a Perplexity search backend
func NewPerplexityProvider(config Config) (*PerplexityProvider, error) {
	if config.APIKey == "" {
		return nil, &ConfigError{Setting: "PERPLEXITY_API_KEY", Reason: "search-backed verification disabled"}
	}
	if config.BaseURL == "" {
		config.BaseURL = perplexityBaseURL
	}

	return &PerplexityProvider{
		client: newOpenAIClient(config),
		config: config,
	}, nil
}

// Name returns the provider name
func (p *PerplexityProvider) Name() string {
	return "perplexity"
}

// Search asks the search-grounded model and returns its JSON content
func (p *PerplexityProvider) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	model := resolveModel("", p.config.Model, DefaultPerplexityModel)

	chatReq := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.Query},
		},
		Temperature: req.Temperature,
	}
	if len(req.Schema) > 0 {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "verification",
				Schema: req.Schema,
			},
		}
	}

	ctx, hint := withRetryHint(ctx)
	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, classifyOpenAIError(p.Name(), err, hint.after)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from Perplexity")
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return nil, fmt.Errorf("empty content from Perplexity")
	}

	return &SearchResponse{Content: content, Model: resp.Model}, nil
}
