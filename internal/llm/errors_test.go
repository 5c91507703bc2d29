package llm

import (
	"fmt"
	"net/http"
	"testing"
	"time"
	"unicode/utf8"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		header    http.Header
		rateLimit bool
		retry     time.Duration
	}{
		{"429 with seconds", 429, "slow down", http.Header{"Retry-After": []string{"12"}}, true, 12 * time.Second},
		{"429 without hint", 429, "", nil, true, 0},
		{"rate limit body on 400", 400, `{"error":{"type":"rate_limit_error"}}`, nil, true, 0},
		{"server error", 503, "unavailable", nil, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyStatus("test", tt.status, tt.header, tt.body)
			if IsRateLimit(err) != tt.rateLimit {
				t.Fatalf("IsRateLimit = %v, want %v (%v)", IsRateLimit(err), tt.rateLimit, err)
			}
			d, _ := RetryAfter(err)
			if d != tt.retry {
				t.Errorf("RetryAfter = %v, want %v", d, tt.retry)
			}
		})
	}
}

func TestRateLimitSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("verify claim: %w", &RateLimitError{Provider: "anthropic", RetryAfter: time.Minute})
	if !IsRateLimit(err) {
		t.Fatal("wrapped rate limit not detected")
	}
	if d, ok := RetryAfter(err); !ok || d != time.Minute {
		t.Errorf("RetryAfter = %v, %v", d, ok)
	}
}

func TestStripDataURL(t *testing.T) {
	data, mt := StripDataURL("data:image/jpeg;base64,/9j/4AAQ")
	if data != "/9j/4AAQ" || mt != "image/jpeg" {
		t.Errorf("got %q %q", data, mt)
	}
	data, mt = StripDataURL("iVBORw0KGgo=")
	if data != "iVBORw0KGgo=" || mt != "" {
		t.Errorf("got %q %q", data, mt)
	}
}

func TestNewProvider(t *testing.T) {
	if p, err := NewProvider(Config{Provider: "Claude", APIKey: "k"}); err != nil || p.Name() != "anthropic" {
		t.Errorf("claude alias: %v %v", p, err)
	}
	if _, err := NewProvider(Config{Provider: "anthropic"}); !IsConfigError(err) {
		t.Errorf("missing key should be a config error, got %v", err)
	}
	if _, err := NewProvider(Config{Provider: "gemini", APIKey: "k"}); !IsConfigError(err) {
		t.Errorf("unknown provider should be a config error, got %v", err)
	}
	if _, err := NewProvider(Config{}); !IsConfigError(err) {
		t.Errorf("empty provider should be a config error, got %v", err)
	}
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	s := "Рынок €4.2B 市场规模"
	got := truncate(s, 7)
	if !utf8.ValidString(got) {
		t.Fatalf("truncate produced invalid UTF-8: %q", got)
	}
	if got != "Рынок €..." {
		t.Errorf("Expected %q, got %q", "Рынок €...", got)
	}

	if got := truncate("short", 10); got != "short" {
		t.Errorf("Expected untouched string, got %q", got)
	}
}
