package validate

import (
	"net"
	"net/url"
	"strings"

	"github.com/ppiankov/deckcheck/internal/model"
)

// authoritativeTLDs mark primary sources regardless of configuration
var authoritativeTLDs = []string{".gov", ".edu", ".mil", ".int"}

// AuthorityClassifier classifies source URLs into authority tiers
type AuthorityClassifier struct {
	primary   map[string]bool
	secondary map[string]bool
}

// NewAuthorityClassifier creates a classifier from configured domain lists
func NewAuthorityClassifier(primaryDomains, secondaryDomains []string) *AuthorityClassifier {
	c := &AuthorityClassifier{
		primary:   make(map[string]bool),
		secondary: make(map[string]bool),
	}
	for _, d := range primaryDomains {
		c.primary[normalizeDomain(d)] = true
	}
	for _, d := range secondaryDomains {
		c.secondary[normalizeDomain(d)] = true
	}
	return c
}

// Classify classifies a URL into an authority tier. Subdomains inherit
// their parent's tier.
func (a *AuthorityClassifier) Classify(rawURL string) model.AuthorityTier {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return model.TierTertiary
	}

	host := normalizeDomain(parsed.Host)

	if matchDomain(host, a.primary) {
		return model.TierPrimary
	}
	if matchDomain(host, a.secondary) {
		return model.TierSecondary
	}

	for _, tld := range authoritativeTLDs {
		if strings.HasSuffix(host, tld) || strings.Contains(host, tld+".") {
			return model.TierPrimary
		}
	}

	return model.TierTertiary
}

// matchDomain checks host and each parent domain against set
func matchDomain(host string, set map[string]bool) bool {
	for h := host; h != ""; {
		if set[h] {
			return true
		}
		dot := strings.Index(h, ".")
		if dot < 0 {
			break
		}
		h = h[dot+1:]
	}
	return false
}

func normalizeDomain(d string) string {
	d = strings.ToLower(strings.TrimSpace(d))
	if host, _, err := net.SplitHostPort(d); err == nil {
		d = host
	}
	return strings.TrimPrefix(strings.TrimSuffix(d, "."), "www.")
}
