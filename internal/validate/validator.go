// Package validate enriches verification sources: reachability, authority
// tier, and missing titles.
package validate

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/deckcheck/internal/model"
	"github.com/ppiankov/deckcheck/internal/util"
	"github.com/ppiankov/deckcheck/internal/worker"
)

const validateMaxRetries = 3

// validateSleepFunc waits between retries (injectable for tests)
var validateSleepFunc = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// check is the outcome of probing one URL
type check struct {
	statusCode int
	accessible bool
	title      string
	err        string
}

// Validator checks verification sources concurrently
type Validator struct {
	httpClient  *http.Client
	maxWorkers  int
	authority   *AuthorityClassifier
	robots      *util.RobotsChecker
	hosts       *worker.Limiter
	userAgent   string
	fetchTitles bool
	logger      *zap.Logger
}

// NewValidator creates a validator from the sources and HTTP config
func NewValidator(cfg model.SourcesConfig, httpCfg model.HTTPConfig, logger *zap.Logger) *Validator {
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	userAgent := httpCfg.UserAgent
	if userAgent == "" {
		userAgent = "deckcheck"
	}

	client := &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			Proxy: util.NewProxyFunc(httpCfg.HTTPProxy, httpCfg.HTTPSProxy, httpCfg.NoProxy),
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("stopped after 5 redirects")
			}
			return nil
		},
	}

	return &Validator{
		httpClient:  client,
		maxWorkers:  cfg.Workers,
		authority:   NewAuthorityClassifier(cfg.PrimaryDomains, cfg.SecondaryDomains),
		robots:      util.NewRobotsChecker(userAgent, client),
		hosts:       worker.NewLimiter(600, 5), // Politeness per host
		userAgent:   userAgent,
		fetchTitles: cfg.FetchTitles,
		logger:      logger,
	}
}

// EnrichSlide annotates every source on the slide's facts in place
func (v *Validator) EnrichSlide(ctx context.Context, slide *model.Slide) {
	var urls []string
	seen := make(map[string]bool)
	for _, f := range slide.Facts {
		for _, s := range f.Sources {
			if s.URL != "" && !seen[s.URL] {
				seen[s.URL] = true
				urls = append(urls, s.URL)
			}
		}
	}
	if len(urls) == 0 {
		return
	}

	checks := v.checkAll(ctx, urls)

	for i := range slide.Facts {
		for j := range slide.Facts[i].Sources {
			src := &slide.Facts[i].Sources[j]
			if src.URL == "" {
				continue
			}
			src.Authority = v.authority.Classify(src.URL)
			c, ok := checks[src.URL]
			if !ok {
				continue
			}
			accessible := c.accessible
			src.Accessible = &accessible
			src.StatusCode = c.statusCode
			if src.Title == "" && c.title != "" {
				src.Title = c.title
			}
		}
	}

	v.logger.Debug("sources validated",
		zap.Int("slide", slide.SlideNumber),
		zap.Int("urls", len(urls)))
}

// checkAll probes urls with at most maxWorkers in flight
func (v *Validator) checkAll(ctx context.Context, urls []string) map[string]check {
	results := make(map[string]check, len(urls))
	var mu sync.Mutex
	var wg sync.WaitGroup

	semaphore := make(chan struct{}, v.maxWorkers)

	for _, u := range urls {
		wg.Add(1)
		go func(rawURL string) {
			defer wg.Done()

			select {
			case <-ctx.Done():
				return
			case semaphore <- struct{}{}:
			}
			defer func() { <-semaphore }()

			c := v.checkWithRetry(ctx, rawURL)

			mu.Lock()
			results[rawURL] = c
			mu.Unlock()
		}(u)
	}

	wg.Wait()
	return results
}

// checkWithRetry retries transient failures with exponential backoff
func (v *Validator) checkWithRetry(ctx context.Context, rawURL string) check {
	var c check
	for attempt := 0; attempt < validateMaxRetries; attempt++ {
		c = v.checkOne(ctx, rawURL)
		if !isRetryable(c) {
			return c
		}
		if attempt < validateMaxRetries-1 {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			if err := validateSleepFunc(ctx, backoff); err != nil {
				return c
			}
		}
	}
	return c
}

// checkOne issues HEAD, falling back to GET when HEAD is refused or a
// title is wanted and robots.txt allows fetching the page
func (v *Validator) checkOne(ctx context.Context, rawURL string) check {
	if err := v.hosts.WaitURL(ctx, rawURL); err != nil {
		return check{err: fmt.Sprintf("rate limit wait: %v", err)}
	}

	c := v.probe(ctx, http.MethodHead, rawURL)
	wantTitle := v.fetchTitles && c.accessible
	headRefused := c.statusCode == http.StatusMethodNotAllowed || c.statusCode == http.StatusNotImplemented

	if (wantTitle || headRefused) && v.robots.IsAllowed(ctx, rawURL) {
		if g := v.probe(ctx, http.MethodGet, rawURL); g.err == "" || headRefused {
			return g
		}
	}
	return c
}

func (v *Validator) probe(ctx context.Context, method, rawURL string) check {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return check{err: fmt.Sprintf("create request: %v", err)}
	}
	req.Header.Set("User-Agent", v.userAgent)
	if method == http.MethodGet {
		req.Header.Set("Accept", "text/html")
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return check{err: fmt.Sprintf("request failed: %v", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	c := check{
		statusCode: resp.StatusCode,
		accessible: resp.StatusCode >= 200 && resp.StatusCode < 400,
	}
	if method == http.MethodGet && c.accessible && strings.Contains(resp.Header.Get("Content-Type"), "html") {
		c.title = extractTitle(resp.Body)
	}
	return c
}

// isRetryable returns true for results that indicate transient failures
func isRetryable(c check) bool {
	if c.statusCode >= 500 || c.statusCode == http.StatusTooManyRequests {
		return true
	}
	s := strings.ToLower(c.err)
	return strings.Contains(s, "timeout") ||
		strings.Contains(s, "connection refused") ||
		strings.Contains(s, "connection reset")
}
