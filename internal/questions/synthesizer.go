// Package questions synthesizes investor due-diligence questions from a
// verified deck.
package questions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/deckcheck/internal/llm"
	"github.com/ppiankov/deckcheck/internal/model"
	"github.com/ppiankov/deckcheck/internal/parse"
)

const (
	// DefaultTextLimit is the number of runes of slide text included per slide
	DefaultTextLimit = 500

	// DefaultMaxTokens caps the synthesis response
	DefaultMaxTokens = 2048
)

// Categories are the areas every question set should cover
var Categories = []string{
	"Competition and competitive advantage",
	"Monetization strategy and revenue model",
	"Exit strategy and potential acquirers",
	"Market validation and traction",
	"Team and execution capability",
	"Financial projections and unit economics",
	"Go-to-market strategy",
	"Risks and challenges",
	"Product-market fit evidence",
	"Scalability and growth plans",
}

// Synthesizer turns processed slides into investor questions
type Synthesizer struct {
	provider  llm.Provider
	model     string
	textLimit int
	maxTokens int
	now       func() time.Time
	logger    *zap.Logger
}

// Option configures a Synthesizer
type Option func(*Synthesizer)

// WithModel overrides the provider's configured model
func WithModel(model string) Option {
	return func(s *Synthesizer) { s.model = model }
}

// WithTextLimit sets how many runes of each slide's text are sent
func WithTextLimit(n int) Option {
	return func(s *Synthesizer) {
		if n > 0 {
			s.textLimit = n
		}
	}
}

// WithMaxTokens caps the synthesis response
func WithMaxTokens(n int) Option {
	return func(s *Synthesizer) {
		if n > 0 {
			s.maxTokens = n
		}
	}
}

// WithClock sets the clock used to date-anchor the prompt
func WithClock(now func() time.Time) Option {
	return func(s *Synthesizer) { s.now = now }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Synthesizer) { s.logger = logger }
}

// New creates a question synthesizer
func New(provider llm.Provider, opts ...Option) *Synthesizer {
	s := &Synthesizer{
		provider:  provider,
		textLimit: DefaultTextLimit,
		maxTokens: DefaultMaxTokens,
		now:       time.Now,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Synthesize asks for 8-12 investor questions about the deck. An
// unparseable answer yields an empty list; backend failures are returned.
func (s *Synthesizer) Synthesize(ctx context.Context, slides []model.Slide) ([]string, error) {
	if s.provider == nil {
		return nil, &llm.ConfigError{Setting: "llm.provider", Reason: "question synthesis needs a completion backend"}
	}
	if len(slides) == 0 {
		return []string{}, nil
	}

	resp, err := s.provider.Complete(ctx, llm.CompletionRequest{
		Model:     s.model,
		Prompt:    BuildPrompt(s.now(), slides, s.textLimit),
		MaxTokens: s.maxTokens,
		JSON:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("synthesize questions: %w", err)
	}

	obj, strategy, err := parse.Extract(resp.Text, "questions")
	if err != nil {
		s.logger.Warn("question response unparseable", zap.Error(err))
		return []string{}, nil
	}

	questions := parse.Strings(obj, "questions", "question")
	s.logger.Debug("questions synthesized",
		zap.Int("count", len(questions)),
		zap.String("strategy", string(strategy)))
	return questions, nil
}

// BuildPrompt renders the synthesis prompt for the given slides
func BuildPrompt(now time.Time, slides []model.Slide, textLimit int) string {
	var b strings.Builder

	b.WriteString("You are a venture capitalist reviewing a pitch deck. Based on the pitch deck content and verified facts below, generate 8-12 critical questions that an investor should ask the founder.\n\nFocus on questions about:\n")
	for _, c := range Categories {
		b.WriteString("- ")
		b.WriteString(c)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\nCurrent date: %s - consider this when asking about timelines, market conditions, etc.\n\n", now.Format("Monday, January 2, 2006"))
	b.WriteString(`Return ONLY valid JSON, nothing else. No explanations, no markdown.

Return a JSON object with a "questions" array of question strings. Each question should be specific, actionable, and based on the pitch deck content.

Example format: {"questions": ["What is your competitive moat and how defensible is it?", "What is your customer acquisition cost (CAC) and lifetime value (LTV)?"]}

Pitch Deck Content:
`)
	b.WriteString(Summarize(slides, textLimit))

	return b.String()
}

// Summarize renders each slide as its truncated text followed by its
// facts, one "- claim (verdict)" line each
func Summarize(slides []model.Slide, textLimit int) string {
	parts := make([]string, 0, len(slides))
	for _, slide := range slides {
		var facts []string
		for _, f := range slide.Facts {
			facts = append(facts, fmt.Sprintf("- %s (%s)", f.Claim, f.Verdict))
		}
		factText := "None"
		if len(facts) > 0 {
			factText = strings.Join(facts, "\n")
		}
		parts = append(parts, fmt.Sprintf("Slide %d:\n%s\n\nVerified Facts:\n%s",
			slide.SlideNumber, truncateRunes(slide.Text, textLimit), factText))
	}
	return strings.Join(parts, "\n\n---\n\n")
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
