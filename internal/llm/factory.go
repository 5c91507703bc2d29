package llm

import (
	"fmt"
	"strings"

	"github.com/ppiankov/deckcheck/internal/model"
)

// NewProvider creates the completion provider named by config
func NewProvider(config Config) (Provider, error) {
	switch strings.ToLower(config.Provider) {
	case "anthropic", "claude":
		return NewAnthropicProvider(config)

	case "openai":
		return NewOpenAIProvider(config)

	case "ollama":
		return NewOllamaProvider(config)

	case "":
		return nil, &ConfigError{Setting: "llm.provider", Reason: "no provider configured"}

	default:
		return nil, &ConfigError{
			Setting: "llm.provider",
			Reason:  fmt.Sprintf("unknown provider %q (supported: anthropic, openai, ollama)", config.Provider),
		}
	}
}

// NewSearchProvider creates the search-augmented backend named by config.
// It returns nil, nil when search is disabled or has no API key, so callers
// fall back to the completion provider alone.
func NewSearchProvider(config Config) (SearchProvider, error) {
	switch strings.ToLower(config.Provider) {
	case "", "none":
		return nil, nil

	case "perplexity":
		if config.APIKey == "" {
			return nil, nil
		}
		return NewPerplexityProvider(config)

	default:
		return nil, &ConfigError{
			Setting: "search.provider",
			Reason:  fmt.Sprintf("unknown provider %q (supported: perplexity)", config.Provider),
		}
	}
}

// ConfigFromModel converts the LLM section of the application config
func ConfigFromModel(c model.LLMConfig, h model.HTTPConfig) Config {
	return Config{
		Provider:   c.Provider,
		Model:      c.Model,
		APIKey:     c.APIKey,
		BaseURL:    c.BaseURL,
		Timeout:    c.Timeout,
		MaxTokens:  c.MaxTokens,
		HTTPProxy:  h.HTTPProxy,
		HTTPSProxy: h.HTTPSProxy,
		NoProxy:    h.NoProxy,
	}
}

// SearchConfigFromModel converts the search section of the application config
func SearchConfigFromModel(c model.SearchConfig, h model.HTTPConfig) Config {
	return Config{
		Provider:   c.Provider,
		Model:      c.Model,
		APIKey:     c.APIKey,
		BaseURL:    c.BaseURL,
		Timeout:    c.Timeout,
		HTTPProxy:  h.HTTPProxy,
		HTTPSProxy: h.HTTPSProxy,
		NoProxy:    h.NoProxy,
	}
}
