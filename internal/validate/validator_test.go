package validate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/deckcheck/internal/model"
)

func init() {
	// Disable retry sleep in all tests for fast execution
	validateSleepFunc = func(context.Context, time.Duration) error { return nil }
}

func newTestValidator(fetchTitles bool) *Validator {
	return NewValidator(model.SourcesConfig{
		Timeout:        5 * time.Second,
		Workers:        4,
		FetchTitles:    fetchTitles,
		PrimaryDomains: []string{"census.gov"},
	}, model.HTTPConfig{UserAgent: "deckcheck-test/1.0"}, nil)
}

func slideWithSources(urls ...string) *model.Slide {
	var sources []model.Source
	for _, u := range urls {
		sources = append(sources, model.Source{URL: u})
	}
	return &model.Slide{
		SlideNumber: 1,
		Facts: []model.Fact{
			model.NewFact("Market size is $4.2B", model.Verification{Verdict: model.VerdictVerified, Sources: sources}),
		},
	}
}

func TestValidator_AccessibleWithTitle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/robots.txt":
			w.WriteHeader(http.StatusNotFound)
		default:
			if ua := r.Header.Get("User-Agent"); ua != "deckcheck-test/1.0" {
				t.Errorf("unexpected user agent %q", ua)
			}
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte("<html><head><title>  Taxi Market\n Report 2026 </title></head><body>x</body></html>"))
		}
	}))
	defer server.Close()

	slide := slideWithSources(server.URL + "/report")
	newTestValidator(true).EnrichSlide(context.Background(), slide)

	src := slide.Facts[0].Sources[0]
	if src.Accessible == nil || !*src.Accessible {
		t.Fatalf("Expected accessible source, got %+v", src)
	}
	if src.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", src.StatusCode)
	}
	if src.Title != "Taxi Market Report 2026" {
		t.Errorf("Expected fetched title, got %q", src.Title)
	}
	if src.Authority != model.TierTertiary {
		t.Errorf("Expected tertiary for loopback host, got %s", src.Authority)
	}
}

func TestValidator_RespectsRobotsForTitles(t *testing.T) {
	var gets int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = w.Write([]byte("User-agent: *\nDisallow: /\n"))
			return
		}
		if r.Method == http.MethodGet {
			atomic.AddInt32(&gets, 1)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	slide := slideWithSources(server.URL + "/page")
	newTestValidator(true).EnrichSlide(context.Background(), slide)

	if n := atomic.LoadInt32(&gets); n != 0 {
		t.Errorf("Expected no page GET when robots.txt disallows, got %d", n)
	}
	if src := slide.Facts[0].Sources[0]; src.Accessible == nil || !*src.Accessible {
		t.Errorf("HEAD result should still be recorded, got %+v", src)
	}
}

func TestValidator_DeadLink(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	slide := slideWithSources(server.URL + "/gone")
	newTestValidator(false).EnrichSlide(context.Background(), slide)

	src := slide.Facts[0].Sources[0]
	if src.Accessible == nil || *src.Accessible {
		t.Errorf("Expected inaccessible source, got %+v", src)
	}
	if src.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", src.StatusCode)
	}
}

func TestValidator_RetriesServerErrors(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	slide := slideWithSources(server.URL + "/flaky")
	newTestValidator(false).EnrichSlide(context.Background(), slide)

	if n := atomic.LoadInt32(&attempts); n != 3 {
		t.Errorf("Expected 3 attempts, got %d", n)
	}
	if src := slide.Facts[0].Sources[0]; src.Accessible == nil || !*src.Accessible {
		t.Errorf("Expected success after retries, got %+v", src)
	}
}

func TestValidator_HeadRefusedFallsBackToGet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	slide := slideWithSources(server.URL + "/nohead")
	newTestValidator(false).EnrichSlide(context.Background(), slide)

	if src := slide.Facts[0].Sources[0]; src.StatusCode != http.StatusOK {
		t.Errorf("Expected GET fallback status 200, got %d", src.StatusCode)
	}
}

func TestValidator_SharedURLCheckedOnce(t *testing.T) {
	var heads int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			atomic.AddInt32(&heads, 1)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	u := server.URL + "/shared"
	slide := slideWithSources(u)
	slide.Facts = append(slide.Facts, model.NewFact("Second claim", model.Verification{Sources: []model.Source{{URL: u}}}))

	newTestValidator(false).EnrichSlide(context.Background(), slide)

	if n := atomic.LoadInt32(&heads); n != 1 {
		t.Errorf("Expected one HEAD for a shared URL, got %d", n)
	}
	if slide.Facts[1].Sources[0].Accessible == nil {
		t.Error("Expected second fact's source annotated")
	}
}

func TestValidator_NoSources(t *testing.T) {
	slide := &model.Slide{SlideNumber: 1, Facts: []model.Fact{model.NewFact("c", model.Verification{})}}
	newTestValidator(true).EnrichSlide(context.Background(), slide)
	if len(slide.Facts[0].Sources) != 0 {
		t.Error("Expected no sources added")
	}
}
