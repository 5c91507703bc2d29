package questions

import (
	"context"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/deckcheck/internal/llm"
	"github.com/ppiankov/deckcheck/internal/llm/llmtest"
	"github.com/ppiankov/deckcheck/internal/model"
)

func testSlides() []model.Slide {
	return []model.Slide{
		{
			SlideNumber: 1,
			Text:        "Taxi medallions",
			Facts: []model.Fact{
				model.NewFact("Market size: $4.2B", model.Verification{Verdict: model.VerdictVerified, Verified: true}),
				model.NewFact("Medallions cost ~$500k", model.Verification{Verdict: model.VerdictPartiallyVerified}),
			},
		},
		{SlideNumber: 2, Text: "Team", Facts: []model.Fact{}},
	}
}

func TestSynthesizer_Synthesize(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     []string
	}{
		{"questions object", `{"questions": ["What is your moat?", "Who acquires you?"]}`, []string{"What is your moat?", "Who acquires you?"}},
		{"singular alias", `{"question": ["What is your CAC?"]}`, []string{"What is your CAC?"}},
		{"bare array", `["What is your burn rate?"]`, []string{"What is your burn rate?"}},
		{"malformed", "Here are some thoughts about the deck.", []string{}},
		{"wrong type", `{"questions": "What is your moat?"}`, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &llmtest.Provider{Replies: []llmtest.Reply{{Text: tt.response}}}
			got, err := New(p).Synthesize(context.Background(), testSlides())
			if err != nil {
				t.Fatalf("Synthesize failed: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Synthesize = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSynthesizer_RequestShape(t *testing.T) {
	p := &llmtest.Provider{Replies: []llmtest.Reply{{Text: `{"questions": []}`}}}
	now := time.Date(2026, time.October, 19, 0, 0, 0, 0, time.UTC)

	_, _ = New(p, WithClock(func() time.Time { return now })).Synthesize(context.Background(), testSlides())

	req := p.Requests()[0]
	if req.MaxTokens != DefaultMaxTokens {
		t.Errorf("Expected max tokens %d, got %d", DefaultMaxTokens, req.MaxTokens)
	}
	for _, want := range []string{
		"- Market size: $4.2B (Verified)",
		"- Medallions cost ~$500k (Partially Verified)",
		"Slide 2:\nTeam\n\nVerified Facts:\nNone",
		"Current date: Monday, October 19, 2026",
		"8-12",
		"Exit strategy and potential acquirers",
	} {
		if !strings.Contains(req.Prompt, want) {
			t.Errorf("Expected prompt to contain %q", want)
		}
	}
}

func TestSummarize_TruncatesRunes(t *testing.T) {
	text := strings.Repeat("é", 600)
	out := Summarize([]model.Slide{{SlideNumber: 1, Text: text}}, DefaultTextLimit)

	if strings.Count(out, "é") != DefaultTextLimit {
		t.Errorf("Expected %d runes of slide text, got %d", DefaultTextLimit, strings.Count(out, "é"))
	}
}

func TestSynthesizer_Errors(t *testing.T) {
	p := &llmtest.Provider{Replies: []llmtest.Reply{{Err: &llm.RateLimitError{Provider: "anthropic"}}}}
	if _, err := New(p).Synthesize(context.Background(), testSlides()); !llm.IsRateLimit(err) {
		t.Fatalf("Expected rate limit, got %v", err)
	}

	p = &llmtest.Provider{Replies: []llmtest.Reply{{Err: &llm.StatusError{Provider: "anthropic", StatusCode: 500}}}}
	_, err := New(p).Synthesize(context.Background(), testSlides())
	if err == nil || llm.IsRateLimit(err) {
		t.Fatalf("Expected transport error, got %v", err)
	}

	if _, err := New(nil).Synthesize(context.Background(), testSlides()); !llm.IsConfigError(err) {
		t.Fatalf("Expected config error, got %v", err)
	}
}

func TestSynthesizer_NoSlides(t *testing.T) {
	p := &llmtest.Provider{}
	got, err := New(p).Synthesize(context.Background(), nil)
	if err != nil || len(got) != 0 {
		t.Fatalf("Expected empty result, got %v, %v", got, err)
	}
	if p.Calls() != 0 {
		t.Error("Expected no backend call without slides")
	}
}
