package verify

import (
	"net/url"
	"strings"

	"github.com/ppiankov/deckcheck/internal/model"
)

// NormalizeSources converts the loosely typed sources list a model returns
// into Sources. Items may be {title, url} objects or bare URL strings.
// Non-web schemes are dropped and duplicate URLs collapse to the first.
func NormalizeSources(raw []any) []model.Source {
	out := []model.Source{}
	seen := make(map[string]bool)

	for _, item := range raw {
		var src model.Source
		switch v := item.(type) {
		case string:
			src.URL = strings.TrimSpace(v)
		case map[string]any:
			src.Title = stringField(v, "title", "name")
			src.URL = stringField(v, "url", "link", "href")
		default:
			continue
		}

		if src.URL != "" {
			normalized, ok := cleanURL(src.URL)
			if !ok {
				continue
			}
			src.URL = normalized
		}
		if src.URL == "" && src.Title == "" {
			continue
		}

		key := strings.ToLower(src.URL)
		if key != "" {
			if seen[key] {
				continue
			}
			seen[key] = true
		}
		out = append(out, src)
	}

	return out
}

func stringField(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// cleanURL keeps http(s) URLs, adding a scheme to bare hosts
func cleanURL(raw string) (string, bool) {
	lower := strings.ToLower(raw)
	if strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "mailto:") {
		return "", false
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	u.Fragment = ""
	return u.String(), true
}
