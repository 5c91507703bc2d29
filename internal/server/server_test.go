package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ppiankov/deckcheck/internal/extract"
	"github.com/ppiankov/deckcheck/internal/llm"
	"github.com/ppiankov/deckcheck/internal/llm/llmtest"
	"github.com/ppiankov/deckcheck/internal/model"
	"github.com/ppiankov/deckcheck/internal/pipeline"
	"github.com/ppiankov/deckcheck/internal/slides/slidestest"
	"github.com/ppiankov/deckcheck/internal/verify"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeRunner struct {
	slide     model.Slide
	slides    []model.Slide
	questions []string
	err       error
	gotDeck   []model.SlideInput
}

func (f *fakeRunner) ProcessSlide(ctx context.Context, in model.SlideInput) (model.Slide, error) {
	s := f.slide
	s.SlideNumber = in.SlideNumber
	return s, f.err
}

func (f *fakeRunner) ProcessDeck(ctx context.Context, inputs []model.SlideInput) ([]model.Slide, error) {
	f.gotDeck = inputs
	return f.slides, f.err
}

func (f *fakeRunner) SynthesizeQuestions(ctx context.Context, slides []model.Slide) ([]string, error) {
	return f.questions, f.err
}

func (f *fakeRunner) Backends() []string {
	return []string{"perplexity", "anthropic"}
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid JSON body %q: %v", w.Body.String(), err)
	}
	return out
}

func TestHealth(t *testing.T) {
	s := New(&fakeRunner{}, Options{})
	w := do(t, s, http.MethodGet, "/api/health", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := decode(t, w)
	if body["status"] != "ok" {
		t.Errorf("status field = %v", body["status"])
	}
	backends, _ := body["verification_backends"].([]any)
	if len(backends) != 2 || backends[0] != "perplexity" {
		t.Errorf("backends = %v", body["verification_backends"])
	}
	if _, err := uuid.Parse(w.Header().Get("X-Request-ID")); err != nil {
		t.Errorf("X-Request-ID not a uuid: %q", w.Header().Get("X-Request-ID"))
	}
}

func TestRequestIDReused(t *testing.T) {
	s := New(&fakeRunner{}, Options{})
	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", id)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != id {
		t.Errorf("X-Request-ID = %q, want %q", got, id)
	}
}

func TestVerifySlide(t *testing.T) {
	runner := &fakeRunner{slide: model.Slide{
		Text: "Market size: $4.2B",
		Facts: []model.Fact{model.NewFact("Market size: $4.2B", model.Verification{
			Verdict: model.VerdictVerified, Verified: true,
		})},
	}}
	s := New(runner, Options{})

	w := do(t, s, http.MethodPost, "/api/verify-slide", `{"slideNumber": 3, "text": "Market size: $4.2B"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var slide model.Slide
	if err := json.Unmarshal(w.Body.Bytes(), &slide); err != nil {
		t.Fatal(err)
	}
	if slide.SlideNumber != 3 || len(slide.Facts) != 1 || slide.Facts[0].Verdict != model.VerdictVerified {
		t.Errorf("slide = %+v", slide)
	}
}

func TestVerifySlide_BadInput(t *testing.T) {
	tests := []struct {
		name string
		err  error
		body string
		want string
	}{
		{"malformed", nil, `{`, "Invalid request body"},
		{"no number", &pipeline.InputError{Err: pipeline.ErrInvalidSlideNumber}, `{"text": "x"}`, "Slide number is required"},
		{"empty", &pipeline.InputError{SlideNumber: 1, Err: pipeline.ErrEmptySlide}, `{"slideNumber": 1}`, "Either image or text is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(&fakeRunner{err: tt.err}, Options{})
			w := do(t, s, http.MethodPost, "/api/verify-slide", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
			if got := decode(t, w)["error"]; got != tt.want {
				t.Errorf("error = %v, want %q", got, tt.want)
			}
		})
	}
}

func TestVerifySlide_RateLimitReturnsPartialSlide(t *testing.T) {
	// Claims c1..c3; the third verification is rate limited
	provider := &llmtest.Provider{Handler: func(req llm.CompletionRequest) (string, error) {
		if strings.Contains(req.Prompt, "Extract verifiable claims") {
			return `{"claims": ["c1", "c2", "c3"]}`, nil
		}
		if strings.Contains(req.Prompt, `"c3"`) {
			return "", &llm.RateLimitError{Provider: "fake", RetryAfter: 7 * time.Second}
		}
		return `{"verdict": "Verified", "explanation": "ok", "sources": []}`, nil
	}}
	orch := newOrchestrator(provider)
	s := New(orch, Options{})

	w := do(t, s, http.MethodPost, "/api/verify-slide", `{"slideNumber": 1, "text": "deck text"}`)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429: %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Retry-After"); got != "7" {
		t.Errorf("Retry-After = %q, want 7", got)
	}

	var slide model.Slide
	if err := json.Unmarshal(w.Body.Bytes(), &slide); err != nil {
		t.Fatal(err)
	}
	if len(slide.Facts) != 2 || slide.Facts[0].Claim != "c1" || slide.Facts[1].Claim != "c2" {
		t.Errorf("facts = %+v, want c1, c2", slide.Facts)
	}
	if slide.Error != pipeline.MsgVerifyRateLimit {
		t.Errorf("error = %q", slide.Error)
	}
}

func TestVerifyDeck(t *testing.T) {
	done := []model.Slide{{SlideNumber: 1, Facts: []model.Fact{}}}

	t.Run("ok", func(t *testing.T) {
		runner := &fakeRunner{slides: done}
		s := New(runner, Options{})
		w := do(t, s, http.MethodPost, "/api/verify", `{"slides": [{"slideNumber": 1, "text": "a"}, {"slideNumber": 2, "text": "b"}]}`)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		if len(runner.gotDeck) != 2 {
			t.Errorf("runner got %d inputs, want 2", len(runner.gotDeck))
		}
	})

	t.Run("empty", func(t *testing.T) {
		s := New(&fakeRunner{}, Options{})
		w := do(t, s, http.MethodPost, "/api/verify", `{"slides": []}`)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", w.Code)
		}
		if got := decode(t, w)["error"]; got != "No slides provided" {
			t.Errorf("error = %v", got)
		}
	})

	t.Run("rate limited", func(t *testing.T) {
		runner := &fakeRunner{slides: done, err: &llm.RateLimitError{Provider: "fake"}}
		s := New(runner, Options{RetryAfter: 90 * time.Second})
		w := do(t, s, http.MethodPost, "/api/verify", `{"slides": [{"slideNumber": 1, "text": "a"}, {"slideNumber": 2, "text": "b"}]}`)
		if w.Code != http.StatusTooManyRequests {
			t.Fatalf("status = %d, want 429", w.Code)
		}
		if got := w.Header().Get("Retry-After"); got != "90" {
			t.Errorf("Retry-After = %q, want 90", got)
		}
		body := decode(t, w)
		if got, _ := body["slides"].([]any); len(got) != 1 {
			t.Errorf("slides = %v, want the one completed slide", body["slides"])
		}
	})

	t.Run("config error", func(t *testing.T) {
		runner := &fakeRunner{err: &llm.ConfigError{Setting: "PERPLEXITY_API_KEY", Reason: "missing"}}
		s := New(runner, Options{})
		w := do(t, s, http.MethodPost, "/api/verify", `{"slides": [{"slideNumber": 1, "text": "a"}]}`)
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d, want 500", w.Code)
		}
		if got, _ := decode(t, w)["error"].(string); !strings.Contains(got, "PERPLEXITY_API_KEY") {
			t.Errorf("error = %q", got)
		}
	})
}

func TestVerifyDeck_BlankPageFromUpload(t *testing.T) {
	provider := &llmtest.Provider{Handler: func(req llm.CompletionRequest) (string, error) {
		if strings.Contains(req.Prompt, "Extract verifiable claims") {
			return `{"claims": ["Users: 50,000"]}`, nil
		}
		return `{"verdict": "Verified", "explanation": "ok", "sources": []}`, nil
	}}
	s := New(newOrchestrator(provider), Options{})

	// Same shape /api/slides returns for a deck with an image-only middle page
	w := do(t, s, http.MethodPost, "/api/verify", `{"slides": [{"slideNumber": 1, "text": "a"}, {"slideNumber": 2, "text": ""}, {"slideNumber": 3, "text": "b"}]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var out struct {
		Slides []model.Slide `json:"slides"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if len(out.Slides) != 3 || len(out.Slides[1].Facts) != 0 || len(out.Slides[2].Facts) != 1 {
		t.Errorf("slides = %+v", out.Slides)
	}
	// Two extractions and two verifications; nothing for the blank page
	if provider.Calls() != 4 {
		t.Errorf("provider calls = %d, want 4", provider.Calls())
	}
}

func TestGenerateQuestions(t *testing.T) {
	slidesBody := `{"slides": [{"slideNumber": 1, "text": "a", "facts": []}]}`

	t.Run("ok", func(t *testing.T) {
		s := New(&fakeRunner{questions: []string{"Q1?", "Q2?"}}, Options{})
		w := do(t, s, http.MethodPost, "/api/generate-questions", slidesBody)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		if got, _ := decode(t, w)["questions"].([]any); len(got) != 2 {
			t.Errorf("questions = %v", got)
		}
	})

	t.Run("missing slides", func(t *testing.T) {
		s := New(&fakeRunner{}, Options{})
		w := do(t, s, http.MethodPost, "/api/generate-questions", `{}`)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", w.Code)
		}
	})

	t.Run("rate limited", func(t *testing.T) {
		s := New(&fakeRunner{err: &llm.RateLimitError{Provider: "fake"}}, Options{})
		w := do(t, s, http.MethodPost, "/api/generate-questions", slidesBody)
		if w.Code != http.StatusTooManyRequests {
			t.Fatalf("status = %d, want 429", w.Code)
		}
		if got := w.Header().Get("Retry-After"); got != "60" {
			t.Errorf("Retry-After = %q, want 60", got)
		}
	})

	t.Run("backend failure hides detail", func(t *testing.T) {
		s := New(&fakeRunner{err: errors.New("upstream exploded")}, Options{})
		w := do(t, s, http.MethodPost, "/api/generate-questions", slidesBody)
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d, want 500", w.Code)
		}
		if got := decode(t, w)["error"]; got != "Internal server error" {
			t.Errorf("error = %v", got)
		}
	})
}

func TestMisconfiguredServer(t *testing.T) {
	cfgErr := &llm.ConfigError{Setting: "ANTHROPIC_API_KEY", Reason: "set it in the environment or .env.local"}
	s := New(nil, Options{ConfigErr: cfgErr})

	w := do(t, s, http.MethodPost, "/api/verify-slide", `{"slideNumber": 1, "text": "a"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("verify-slide status = %d, want 500", w.Code)
	}
	if got, _ := decode(t, w)["error"].(string); !strings.Contains(got, "ANTHROPIC_API_KEY") {
		t.Errorf("error = %q", got)
	}

	w = do(t, s, http.MethodGet, "/api/health", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("health status = %d, want 503", w.Code)
	}
}

func TestExtractSlides(t *testing.T) {
	upload := func(t *testing.T, s *Server, data []byte) *httptest.ResponseRecorder {
		t.Helper()
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("file", "deck.pdf")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write(data); err != nil {
			t.Fatal(err)
		}
		if err := mw.Close(); err != nil {
			t.Fatal(err)
		}

		req := httptest.NewRequest(http.MethodPost, "/api/slides", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req)
		return w
	}

	t.Run("pdf", func(t *testing.T) {
		s := New(&fakeRunner{}, Options{})
		w := upload(t, s, slidestest.BuildPDF("Market size: $4.2B", "Users: 50,000"))
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", w.Code, w.Body.String())
		}
		var out struct {
			Slides []model.SlideInput `json:"slides"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatal(err)
		}
		if len(out.Slides) != 2 || out.Slides[1].SlideNumber != 2 || !strings.Contains(out.Slides[0].Text, "4.2B") {
			t.Errorf("slides = %+v", out.Slides)
		}
	})

	t.Run("not a pdf", func(t *testing.T) {
		s := New(&fakeRunner{}, Options{})
		w := upload(t, s, []byte("hello"))
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", w.Code)
		}
	})

	t.Run("too large", func(t *testing.T) {
		s := New(&fakeRunner{}, Options{MaxUploadBytes: 64})
		w := upload(t, s, slidestest.BuildPDF("Market size: $4.2B"))
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", w.Code)
		}
	})
}

func TestCORS(t *testing.T) {
	s := New(&fakeRunner{}, Options{AllowedOrigins: []string{"https://app.example.com"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/verify", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("Allow-Origin = %q", got)
	}
}

func newOrchestrator(provider llm.Provider) *pipeline.Orchestrator {
	return pipeline.New(
		extract.NewClaimExtractor(provider),
		verify.New(verify.WithFallback(provider)),
		nil,
		pipeline.Options{},
	)
}
