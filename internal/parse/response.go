// Package parse recovers structured payloads from free-form model output.
//
// Models are asked for pure JSON but regularly wrap it in prose or markdown
// fences. Extract tries a fixed sequence of strategies and never panics;
// failure is reported as a value so callers can fall back to defaults.
package parse

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Strategy identifies which step recovered the payload
type Strategy string

const (
	StrategyObject   Strategy = "object"   // First '{' to last '}'
	StrategyArray    Strategy = "array"    // First '[' to last ']', wrapped under the default key
	StrategyWhole    Strategy = "whole"    // Entire trimmed text
	StrategyFenced   Strategy = "fenced"   // Contents of a ``` code block
	StrategyFallback Strategy = "fallback" // Nothing parsed, caller default returned
)

var (
	objectRe = regexp.MustCompile(`(?s)\{.*\}`)
	arrayRe  = regexp.MustCompile(`(?s)\[.*\]`)
	fencedRe = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*([\\[{].*?[\\]}])\\s*```")
)

// ErrNoPayload is returned when no strategy produced a JSON object
var ErrNoPayload = errors.New("no JSON payload found in response")

// Extract parses text into a JSON object.
// A bare array is wrapped as {defaultKey: array}. When every strategy fails
// the returned map is nil, strategy is StrategyFallback and err says why.
func Extract(text, defaultKey string) (map[string]any, Strategy, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, StrategyFallback, fmt.Errorf("empty response: %w", ErrNoPayload)
	}

	if m := objectRe.FindString(text); m != "" {
		if obj, ok := decodeObject(m, defaultKey); ok {
			return obj, StrategyObject, nil
		}
	}

	if m := arrayRe.FindString(text); m != "" {
		var arr []any
		if err := json.Unmarshal([]byte(m), &arr); err == nil {
			return map[string]any{defaultKey: arr}, StrategyArray, nil
		}
	}

	if obj, ok := decodeObject(text, defaultKey); ok {
		return obj, StrategyWhole, nil
	}

	if m := fencedRe.FindStringSubmatch(text); len(m) == 2 {
		if obj, ok := decodeObject(m[1], defaultKey); ok {
			return obj, StrategyFenced, nil
		}
	}

	return nil, StrategyFallback, fmt.Errorf("%w (response starts %q)", ErrNoPayload, preview(text, 80))
}

// decodeObject accepts a JSON object, or an array which it wraps
func decodeObject(s, defaultKey string) (map[string]any, bool) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	switch val := v.(type) {
	case map[string]any:
		return val, true
	case []any:
		if defaultKey == "" {
			return nil, false
		}
		return map[string]any{defaultKey: val}, true
	default:
		return nil, false
	}
}

// Strings returns the first key present in obj holding a list, keeping
// non-empty string items in order. Missing keys or non-list values yield
// an empty slice.
func Strings(obj map[string]any, keys ...string) []string {
	out := []string{}
	for _, key := range keys {
		raw, ok := obj[key]
		if !ok || raw == nil {
			continue
		}
		items, ok := raw.([]any)
		if !ok {
			return out
		}
		for _, item := range items {
			s, ok := item.(string)
			if !ok {
				continue
			}
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return out
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
