package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/ppiankov/deckcheck/internal/util"
)

// OpenAIProvider implements the Provider interface for OpenAI models
type OpenAIProvider struct {
	client *openai.Client
	config Config
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(config Config) (*OpenAIProvider, error) {
	if config.APIKey == "" {
		return nil, &ConfigError{Setting: "OPENAI_API_KEY", Reason: "set it in the environment or .env.local"}
	}

	return &OpenAIProvider{
		client: newOpenAIClient(config),
		config: config,
	}, nil
}

// newOpenAIClient builds a go-openai client; shared with OpenAI-compatible search backends
func newOpenAIClient(config Config) *openai.Client {
	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(config.BaseURL, "/")
	}

	timeout := time.Duration(config.Timeout) * time.Second
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	clientConfig.HTTPClient = &http.Client{
		Timeout: timeout,
		Transport: &retryHintTransport{base: &http.Transport{
			Proxy: util.NewProxyFunc(config.HTTPProxy, config.HTTPSProxy, config.NoProxy),
		}},
	}

	return openai.NewClientWithConfig(clientConfig)
}

// go-openai drops response headers from its errors, so a 429's Retry-After
// is captured at the transport into a hint carried by the request context.
type retryHint struct {
	after time.Duration
}

type retryHintKey struct{}

func withRetryHint(ctx context.Context) (context.Context, *retryHint) {
	hint := &retryHint{}
	return context.WithValue(ctx, retryHintKey{}, hint), hint
}

type retryHintTransport struct {
	base http.RoundTripper
}

func (t *retryHintTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return resp, err
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		if hint, ok := req.Context().Value(retryHintKey{}).(*retryHint); ok {
			hint.after = parseRetryAfter(resp.Header)
		}
	}
	return resp, nil
}

// Name returns the provider name
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Complete generates a response using OpenAI's Chat Completions API
func (p *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	model := resolveModel(req.Model, p.config.Model, openai.GPT4oMini)

	user := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
	if req.ImageBase64 != "" {
		user.MultiContent = []openai.ChatMessagePart{
			{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    "data:" + req.imageMediaType() + ";base64," + req.ImageBase64,
					Detail: openai.ImageURLDetailAuto,
				},
			},
			{
				Type: openai.ChatMessagePartTypeText,
				Text: req.Prompt,
			},
		}
	} else {
		user.Content = req.Prompt
	}

	var messages []openai.ChatCompletionMessage
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, user)

	chatReq := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   resolveMaxTokens(req.MaxTokens, p.config.MaxTokens),
		Temperature: float32(req.Temperature),
	}
	if req.JSON {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	ctx, hint := withRetryHint(ctx)
	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, classifyOpenAIError(p.Name(), err, hint.after)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from OpenAI")
	}

	return &CompletionResponse{
		Text:       strings.TrimSpace(resp.Choices[0].Message.Content),
		Model:      resp.Model,
		TokensUsed: resp.Usage.TotalTokens,
	}, nil
}

// classifyOpenAIError maps go-openai errors onto the package's error taxonomy.
// retryAfter is the server's Retry-After hint, zero when absent.
func classifyOpenAIError(provider string, err error, retryAfter time.Duration) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests || isRateLimitBody(apiErr.Type) || isRateLimitBody(fmt.Sprint(apiErr.Code)) {
			return &RateLimitError{Provider: provider, RetryAfter: retryAfter, Err: err}
		}
		return &StatusError{Provider: provider, StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == http.StatusTooManyRequests || isRateLimitBody(string(reqErr.Body)) {
			return &RateLimitError{Provider: provider, RetryAfter: retryAfter, Err: err}
		}
		return &StatusError{Provider: provider, StatusCode: reqErr.HTTPStatusCode, Body: truncate(string(reqErr.Body), 500)}
	}

	return fmt.Errorf("%s request: %w", provider, err)
}
