package llm

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// ConfigError reports a missing credential or an unusable provider setting.
// It is fatal for a run and never retried.
type ConfigError struct {
	Setting string
	Reason  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s not configured: %s", e.Setting, e.Reason)
}

// RateLimitError reports an exhausted backend quota. It is retryable;
// RetryAfter is zero when the backend gave no hint.
type RateLimitError struct {
	Provider   string
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	msg := fmt.Sprintf("%s rate limit exceeded", e.Provider)
	if e.RetryAfter > 0 {
		msg += fmt.Sprintf(" (retry after %s)", e.RetryAfter)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// StatusError is a non-2xx response that is not a rate limit
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API error (%d): %s", e.Provider, e.StatusCode, e.Body)
}

// IsRateLimit reports whether err carries a RateLimitError
func IsRateLimit(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

// IsConfigError reports whether err carries a ConfigError
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// RetryAfter returns the backend's retry hint, if err is a rate limit that carries one
func RetryAfter(err error) (time.Duration, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) && rl.RetryAfter > 0 {
		return rl.RetryAfter, true
	}
	return 0, false
}

// isRateLimitBody matches structured rate-limit error bodies
// (Anthropic "rate_limit_error", OpenAI "rate_limit_exceeded")
func isRateLimitBody(body string) bool {
	s := strings.ToLower(body)
	return strings.Contains(s, "rate_limit_error") || strings.Contains(s, "rate_limit_exceeded")
}

// classifyStatus turns a failed HTTP exchange into a typed error
func classifyStatus(provider string, statusCode int, header http.Header, body string) error {
	if statusCode == http.StatusTooManyRequests || isRateLimitBody(body) {
		return &RateLimitError{
			Provider:   provider,
			RetryAfter: parseRetryAfter(header),
			Err:        fmt.Errorf("status %d: %s", statusCode, truncate(body, 200)),
		}
	}
	return &StatusError{Provider: provider, StatusCode: statusCode, Body: truncate(body, 500)}
}

// parseRetryAfter reads Retry-After as seconds or an HTTP date
func parseRetryAfter(header http.Header) time.Duration {
	if header == nil {
		return 0
	}
	v := strings.TrimSpace(header.Get("Retry-After"))
	if v == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil && secs > 0 {
		return time.Duration(secs * float64(time.Second))
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// truncate caps s at n runes so multi-byte text is never split
func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
