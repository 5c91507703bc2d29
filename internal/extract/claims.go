// Package extract turns slide content into externally verifiable claims.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/deckcheck/internal/llm"
	"github.com/ppiankov/deckcheck/internal/model"
	"github.com/ppiankov/deckcheck/internal/parse"
)

// claimsSchema accepts either list key; items must be strings
var claimsSchema = parse.MustCompileSchema("claims", `{
  "type": "object",
  "properties": {
    "claims": {"type": "array", "items": {"type": "string"}},
    "claim":  {"type": "array", "items": {"type": "string"}}
  }
}`)

// ClaimExtractor asks a completion backend for the verifiable claims on a slide
type ClaimExtractor struct {
	provider  llm.Provider
	model     string
	maxTokens int
	now       func() time.Time
	logger    *zap.Logger
}

// Option configures a ClaimExtractor
type Option func(*ClaimExtractor)

// WithModel overrides the provider's configured model
func WithModel(model string) Option {
	return func(e *ClaimExtractor) { e.model = model }
}

// WithMaxTokens caps the extraction response
func WithMaxTokens(n int) Option {
	return func(e *ClaimExtractor) { e.maxTokens = n }
}

// WithClock sets the clock used to date-anchor the prompt
func WithClock(now func() time.Time) Option {
	return func(e *ClaimExtractor) { e.now = now }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(e *ClaimExtractor) { e.logger = logger }
}

// NewClaimExtractor creates a new claim extractor
func NewClaimExtractor(provider llm.Provider, opts ...Option) *ClaimExtractor {
	e := &ClaimExtractor{
		provider:  provider,
		maxTokens: 1024,
		now:       time.Now,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	return e
}

// Extract returns the claims found on a slide, in the order the backend
// listed them. When an image is present it is the primary source and the
// text is passed along as a hint. Unparseable responses and ordinary backend
// failures yield an empty list; rate limits, configuration errors and
// cancellation are returned.
func (e *ClaimExtractor) Extract(ctx context.Context, text, imageBase64 string) ([]model.Claim, error) {
	if e.provider == nil {
		return nil, &llm.ConfigError{Setting: "llm.provider", Reason: "claim extraction needs a completion backend"}
	}

	req := llm.CompletionRequest{
		Model:     e.model,
		Prompt:    BuildPrompt(e.now(), text, imageBase64 != ""),
		MaxTokens: e.maxTokens,
		JSON:      true,
	}
	if imageBase64 != "" {
		// Slides are rasterized as PNG regardless of the declared prefix
		req.ImageBase64, _ = llm.StripDataURL(imageBase64)
		req.ImageMediaType = "image/png"
	}

	resp, err := e.provider.Complete(ctx, req)
	if err != nil {
		if isFatal(ctx, err) {
			return nil, err
		}
		e.logger.Warn("claim extraction failed, treating slide as claim-free",
			zap.String("provider", e.provider.Name()),
			zap.Error(err))
		return []model.Claim{}, nil
	}

	obj, strategy, err := parse.Extract(resp.Text, "claims")
	if err != nil {
		e.logger.Warn("claim extraction response unparseable",
			zap.Error(err))
		return []model.Claim{}, nil
	}
	if err := claimsSchema.Validate(obj); err != nil {
		e.logger.Debug("claim payload failed schema, keeping string items",
			zap.String("strategy", string(strategy)),
			zap.Error(err))
	}

	claims := parse.Strings(obj, "claims", "claim")
	e.logger.Debug("claims extracted",
		zap.Int("count", len(claims)),
		zap.String("strategy", string(strategy)))

	return claims, nil
}

// isFatal reports errors that must stop the slide rather than degrade it
func isFatal(ctx context.Context, err error) bool {
	if llm.IsRateLimit(err) || llm.IsConfigError(err) {
		return true
	}
	if ctx.Err() != nil {
		return true
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// BuildPrompt creates the extraction prompt, anchored to now
func BuildPrompt(now time.Time, text string, hasImage bool) string {
	date := now.Format("Monday, January 2, 2006")
	clock := now.Format("03:04 PM MST")

	var b strings.Builder
	b.WriteString(`Extract verifiable claims from this pitch deck slide. Focus on:
- Numbers, statistics, market data
- Financial figures
- Market size claims
- User/customer numbers
- Growth percentages
- Pricing information
- Any factual claims that can be verified

IMPORTANT - IGNORE THE FOLLOWING:
- Contact information: addresses, phone numbers, email addresses, website URLs, company contact details
- Author/presenter information: author names, presenter names, creator information
- Presentation metadata: slide numbers, page numbers, presentation titles, deck metadata
- Formatting elements: headers, footers, decorative text, navigation elements
- Copyright notices, disclaimers, legal text
- Company logos and branding text (unless it's part of a verifiable claim)
- Business model information: revenue models, monetization strategies, pricing models, commission structures, operational processes
- Only extract substantive claims about external facts that can be fact-checked (not internal business plans)

`)
	fmt.Fprintf(&b, "CRITICAL: Interpret all facts as present-day claims. The current date and time is %s at %s.\n", date, clock)
	fmt.Fprintf(&b, "- If a claim doesn't specify a time period, assume it refers to %s\n", date)
	b.WriteString(`- Frame claims as present-day statements (e.g. "Market size is $4.2B", not "Market size was $4.2B")

Return ONLY valid JSON, nothing else. No explanations, no markdown.

Return a JSON object with a "claims" array of claim strings. Example: {"claims": ["Market size: $4.2B", "Medallions cost ~$500k"]}`)

	if text = strings.TrimSpace(text); text != "" {
		if hasImage {
			b.WriteString("\n\nExtracted text (may be garbled, use the image above as the primary source):\n")
		} else {
			b.WriteString("\n\nSlide text:\n")
		}
		b.WriteString(text)
	}

	return b.String()
}
