package model

import "time"

// Config is the complete deckcheck configuration
type Config struct {
	LLM          LLMConfig          `yaml:"llm" mapstructure:"llm"`
	Search       SearchConfig       `yaml:"search" mapstructure:"search"`
	Pipeline     PipelineConfig     `yaml:"pipeline" mapstructure:"pipeline"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	Sources      SourcesConfig      `yaml:"sources" mapstructure:"sources"`
	Concurrency  ConcurrencyConfig  `yaml:"concurrency" mapstructure:"concurrency"`
	Server       ServerConfig       `yaml:"server" mapstructure:"server"`
	HTTP         HTTPConfig         `yaml:"http" mapstructure:"http"`
	Log          LogConfig          `yaml:"log" mapstructure:"log"`
}

// LLMConfig configures the completion backend used for extraction,
// fallback verification and question synthesis
type LLMConfig struct {
	Provider  string `yaml:"provider" mapstructure:"provider"` // anthropic, openai, ollama
	Model     string `yaml:"model" mapstructure:"model"`
	APIKey    string `yaml:"-" mapstructure:"api_key"` // Never written to disk
	BaseURL   string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout   int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// SearchConfig configures the search-augmented verification backend
type SearchConfig struct {
	Provider    string  `yaml:"provider" mapstructure:"provider"` // perplexity, "" disables
	Model       string  `yaml:"model" mapstructure:"model"`
	APIKey      string  `yaml:"-" mapstructure:"api_key"`
	BaseURL     string  `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout     int     `yaml:"timeout" mapstructure:"timeout"` // seconds
	Temperature float32 `yaml:"temperature" mapstructure:"temperature"`
}

// PipelineConfig controls pacing and prompt sizing
type PipelineConfig struct {
	VerifyDelay       time.Duration `yaml:"verify_delay" mapstructure:"verify_delay"`         // Between verification calls within a slide
	SlideDelay        time.Duration `yaml:"slide_delay" mapstructure:"slide_delay"`           // Between slides in batch mode
	RetryWait         time.Duration `yaml:"retry_wait" mapstructure:"retry_wait"`             // Used when a rate limit carries no hint
	MaxRetries        int           `yaml:"max_retries" mapstructure:"max_retries"`           // Per slide, in RunDeck
	SlideTextLimit    int           `yaml:"slide_text_limit" mapstructure:"slide_text_limit"` // Runes of slide text sent to question synthesis
	QuestionMaxTokens int           `yaml:"question_max_tokens" mapstructure:"question_max_tokens"`
}

// RateLimitingConfig configures the optional client-side quota limiter
type RateLimitingConfig struct {
	RequestsPerMinute float64 `yaml:"requests_per_minute" mapstructure:"requests_per_minute"` // 0 disables
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// CacheConfig configures the verification cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// SourcesConfig configures source validation
type SourcesConfig struct {
	Validate         bool          `yaml:"validate" mapstructure:"validate"`
	Timeout          time.Duration `yaml:"timeout" mapstructure:"timeout"`
	Workers          int           `yaml:"workers" mapstructure:"workers"`
	FetchTitles      bool          `yaml:"fetch_titles" mapstructure:"fetch_titles"`
	PrimaryDomains   []string      `yaml:"primary_domains" mapstructure:"primary_domains"`
	SecondaryDomains []string      `yaml:"secondary_domains" mapstructure:"secondary_domains"`
}

// ConcurrencyConfig controls the batch worker pool
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Addr           string   `yaml:"addr" mapstructure:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	MaxUploadBytes int64    `yaml:"max_upload_bytes" mapstructure:"max_upload_bytes"`
}

// HTTPConfig holds outbound HTTP settings
type HTTPConfig struct {
	UserAgent    string        `yaml:"user_agent" mapstructure:"user_agent"`
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`               // Deck downloads
	MaxDeckBytes int64         `yaml:"max_deck_bytes" mapstructure:"max_deck_bytes"` // Download size cap
	HTTPProxy    string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy   string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy      string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// LogConfig configures structured logging
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // json, console
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:  "anthropic",
			Model:     "claude-haiku-4-5-20251001",
			Timeout:   60,
			MaxTokens: 1024,
		},
		Search: SearchConfig{
			Provider:    "perplexity",
			Model:       "sonar",
			Timeout:     60,
			Temperature: 0.2,
		},
		Pipeline: PipelineConfig{
			VerifyDelay:       13 * time.Second, // 5 requests/min free tier
			SlideDelay:        time.Second,
			RetryWait:         60 * time.Second,
			MaxRetries:        3,
			SlideTextLimit:    500,
			QuestionMaxTokens: 2048,
		},
		RateLimiting: RateLimitingConfig{
			RequestsPerMinute: 0,
			BurstSize:         1,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       ".deckcheck-cache",
			MemoryTTL: time.Hour,
			DiskTTL:   7 * 24 * time.Hour,
		},
		Sources: SourcesConfig{
			Validate:    false,
			Timeout:     10 * time.Second,
			Workers:     8,
			FetchTitles: true,
			PrimaryDomains: []string{
				"sec.gov", "census.gov", "bls.gov", "europa.eu", "worldbank.org",
				"imf.org", "oecd.org", "who.int",
			},
			SecondaryDomains: []string{
				"reuters.com", "bloomberg.com", "ft.com", "wsj.com", "statista.com",
				"gartner.com", "mckinsey.com", "techcrunch.com", "crunchbase.com",
				"wikipedia.org",
			},
		},
		Concurrency: ConcurrencyConfig{
			Workers: 2,
		},
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"*"},
			MaxUploadBytes: 50 << 20,
		},
		HTTP: HTTPConfig{
			UserAgent:    "deckcheck/0.1 (+https://github.com/ppiankov/deckcheck)",
			Timeout:      60 * time.Second,
			MaxDeckBytes: 50 << 20,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
