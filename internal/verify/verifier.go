// Package verify checks extracted claims against a search-augmented backend,
// falling back to a plain completion backend.
package verify

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

// Explanations used when no backend produced a usable answer
const (
	ExplainDefault     = "Unable to verify this claim."
	ExplainUnparseable = "Unable to parse verification response."
	ExplainNoBackend   = "No verification backend configured."
)

// responseSchema is sent to the search backend as its structured output
// format. Missing fields are tolerated on decode and filled with defaults.
var responseSchema = parse.MustCompileSchema("verification-response", `{
  "type": "object",
  "properties": {
    "verified":    {"type": "boolean"},
    "verdict":     {"type": "string", "enum": ["Verified", "Partially Verified", "Cannot Verify"]},
    "explanation": {"type": "string"},
    "sources": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "title": {"type": "string"},
          "url":   {"type": "string"}
        },
        "required": ["title", "url"]
      }
    }
  },
  "required": ["verified", "verdict", "explanation", "sources"]
}`)

// payloadSchema is the lenient shape accepted from either backend
var payloadSchema = parse.MustCompileSchema("verification", `{
  "type": "object",
  "properties": {
    "verified":    {"type": ["boolean", "string", "null"]},
    "verdict":     {"type": ["string", "null"]},
    "explanation": {"type": ["string", "null"]},
    "sources":     {"type": ["array", "null"]}
  }
}`)

var errUnparseable = errors.New("verification response unparseable")

// payload is the wire shape of a verification answer
type payload struct {
	Verdict     *string `json:"verdict"`
	Explanation *string `json:"explanation"`
	Sources     []any   `json:"sources"`
}

// Verifier verifies one claim at a time
type Verifier struct {
	search      llm.SearchProvider
	fallback    llm.Provider
	model       string
	maxTokens   int
	temperature float32
	now         func() time.Time
	logger      *zap.Logger
}

// Option configures a Verifier
type Option func(*Verifier)

// WithSearch sets the primary search-augmented backend
func WithSearch(s llm.SearchProvider) Option {
	return func(v *Verifier) { v.search = s }
}

// WithFallback sets the completion backend used when search is absent or fails
func WithFallback(p llm.Provider) Option {
	return func(v *Verifier) { v.fallback = p }
}

// WithModel overrides the fallback provider's model
func WithModel(model string) Option {
	return func(v *Verifier) { v.model = model }
}

// WithTemperature sets the search backend temperature
func WithTemperature(t float32) Option {
	return func(v *Verifier) { v.temperature = t }
}

// WithClock sets the clock used to date-anchor prompts
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) { v.now = now }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(v *Verifier) { v.logger = logger }
}

// New creates a verifier. With neither backend configured every claim
// resolves to Cannot Verify.
func New(opts ...Option) *Verifier {
	v := &Verifier{
		maxTokens:   1024,
		temperature: 0.2,
		now:         time.Now,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.logger == nil {
		v.logger = zap.NewNop()
	}
	return v
}

// Backends names the configured backends in the order they are tried
func (v *Verifier) Backends() []string {
	var names []string
	if v.search != nil {
		names = append(names, v.search.Name())
	}
	if v.fallback != nil {
		names = append(names, v.fallback.Name())
	}
	return names
}

// Verify checks a single claim. A returned error means the last backend
// tried failed outright; a rate limit is reported as *llm.RateLimitError.
// Everything else, including unparseable answers, resolves to a Verification.
func (v *Verifier) Verify(ctx context.Context, claim model.Claim) (model.Verification, error) {
	claim = strings.TrimSpace(claim)

	if v.search == nil && v.fallback == nil {
		return cannotVerify(ExplainNoBackend), nil
	}

	if v.search != nil {
		result, err := v.verifyWithSearch(ctx, claim)
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			return model.Verification{}, ctx.Err()
		}
		if v.fallback == nil {
			if errors.Is(err, errUnparseable) {
				return cannotVerify(ExplainUnparseable), nil
			}
			return model.Verification{}, err
		}
		v.logger.Warn("search verification failed, using fallback",
			zap.String("search", v.search.Name()),
			zap.String("fallback", v.fallback.Name()),
			zap.Bool("rate_limited", llm.IsRateLimit(err)),
			zap.Error(err))
	}

	return v.verifyWithLLM(ctx, claim)
}

func (v *Verifier) verifyWithSearch(ctx context.Context, claim string) (model.Verification, error) {
	now := v.now()
	resp, err := v.search.Search(ctx, llm.SearchRequest{
		System:      BuildSearchSystemPrompt(now),
		Query:       BuildSearchQuery(now, claim),
		Temperature: v.temperature,
		Schema:      responseSchema.Raw(),
	})
	if err != nil {
		return model.Verification{}, err
	}

	result := parse.Decode(resp.Content, payloadSchema, "", payload{})
	if !result.OK() {
		return model.Verification{}, fmt.Errorf("%w: %v", errUnparseable, result.Err)
	}
	return result.Value.toVerification(v.search.Name()), nil
}

func (v *Verifier) verifyWithLLM(ctx context.Context, claim string) (model.Verification, error) {
	resp, err := v.fallback.Complete(ctx, llm.CompletionRequest{
		Model:     v.model,
		Prompt:    BuildPrompt(v.now(), claim),
		MaxTokens: v.maxTokens,
		JSON:      true,
	})
	if err != nil {
		return model.Verification{}, err
	}

	result := parse.Decode(resp.Text, payloadSchema, "", payload{})
	if !result.OK() {
		v.logger.Warn("verification response unparseable",
			zap.String("provider", v.fallback.Name()),
			zap.String("strategy", string(result.Strategy)),
			zap.Error(result.Err))
		return cannotVerify(ExplainUnparseable), nil
	}
	return result.Value.toVerification(v.fallback.Name()), nil
}

// toVerification applies defaults for missing fields. Verified is derived
// from the verdict so the two can never disagree.
func (p payload) toVerification(backend string) model.Verification {
	verdict := model.VerdictCannotVerify
	if p.Verdict != nil {
		verdict = model.ParseVerdict(*p.Verdict)
	}

	explanation := ExplainDefault
	if p.Explanation != nil && strings.TrimSpace(*p.Explanation) != "" {
		explanation = strings.TrimSpace(*p.Explanation)
	}

	return model.Verification{
		Verified:    verdict == model.VerdictVerified,
		Verdict:     verdict,
		Explanation: explanation,
		Sources:     NormalizeSources(p.Sources),
		Backend:     backend,
	}
}

// cannotVerify is a built-in result; its empty Backend keeps it out of the cache
func cannotVerify(explanation string) model.Verification {
	return model.Verification{
		Verified:    false,
		Verdict:     model.VerdictCannotVerify,
		Explanation: explanation,
		Sources:     []model.Source{},
	}
}
