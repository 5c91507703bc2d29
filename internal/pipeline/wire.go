package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/ppiankov/deckcheck/internal/cache"
	"github.com/ppiankov/deckcheck/internal/extract"
	"github.com/ppiankov/deckcheck/internal/llm"
	"github.com/ppiankov/deckcheck/internal/model"
	"github.com/ppiankov/deckcheck/internal/questions"
	"github.com/ppiankov/deckcheck/internal/slides"
	"github.com/ppiankov/deckcheck/internal/validate"
	"github.com/ppiankov/deckcheck/internal/verify"
	"github.com/ppiankov/deckcheck/internal/worker"
)

// Pipeline is an Orchestrator built from configuration, plus the deck
// loading needed to run files and URLs
type Pipeline struct {
	*Orchestrator
	fetcher  *Fetcher
	renderer *Renderer
	logger   *zap.Logger
}

// NewFromConfig wires providers, cache and validator from cfg. A missing
// completion backend credential is a *llm.ConfigError; a missing search
// credential silently leaves verification LLM-only.
func NewFromConfig(cfg *model.Config, logger *zap.Logger, observer Observer) (*Pipeline, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	provider, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM, cfg.HTTP))
	if err != nil {
		return nil, err
	}
	search, err := llm.NewSearchProvider(llm.SearchConfigFromModel(cfg.Search, cfg.HTTP))
	if err != nil {
		return nil, err
	}

	limiter := worker.NewLimiter(cfg.RateLimiting.RequestsPerMinute, cfg.RateLimiting.BurstSize)
	provider = Throttle(provider, limiter)
	search = ThrottleSearch(search, limiter)

	extractor := extract.NewClaimExtractor(provider,
		extract.WithMaxTokens(cfg.LLM.MaxTokens),
		extract.WithLogger(logger.Named("extract")))

	verifierOpts := []verify.Option{
		verify.WithFallback(provider),
		verify.WithTemperature(cfg.Search.Temperature),
		verify.WithLogger(logger.Named("verify")),
	}
	if search != nil {
		verifierOpts = append(verifierOpts, verify.WithSearch(search))
	}
	verifier := verify.New(verifierOpts...)

	synth := questions.New(provider,
		questions.WithTextLimit(cfg.Pipeline.SlideTextLimit),
		questions.WithMaxTokens(cfg.Pipeline.QuestionMaxTokens),
		questions.WithLogger(logger.Named("questions")))

	opts := Options{
		VerifyDelay: cfg.Pipeline.VerifyDelay,
		SlideDelay:  cfg.Pipeline.SlideDelay,
		RetryWait:   cfg.Pipeline.RetryWait,
		MaxRetries:  cfg.Pipeline.MaxRetries,
		Cache:       cache.FromConfig(cfg.Cache),
		Observer:    observer,
		Logger:      logger.Named("pipeline"),
	}
	if cfg.Sources.Validate {
		opts.Enricher = validate.NewValidator(cfg.Sources, cfg.HTTP, logger.Named("validate"))
	}

	logger.Debug("pipeline configured",
		zap.String("provider", provider.Name()),
		zap.Strings("verification_backends", verifier.Backends()),
		zap.Bool("cache", opts.Cache != nil),
		zap.Bool("validate_sources", cfg.Sources.Validate),
		zap.Bool("quota_limiter", limiter.Enabled()))

	return &Pipeline{
		Orchestrator: New(extractor, verifier, synth, opts),
		fetcher:      NewFetcher(cfg.HTTP),
		renderer:     NewRenderer(),
		logger:       logger,
	}, nil
}

// Renderer returns the report renderer
func (p *Pipeline) Renderer() *Renderer {
	return p.renderer
}

// LoadDeck reads slide inputs from a local PDF or an http(s) URL and
// returns them with a display name for reports. Pages without text are
// dropped; their numbers are kept on the remaining slides.
func (p *Pipeline) LoadDeck(ctx context.Context, ref string) (string, []model.SlideInput, error) {
	var name string
	var pages []model.SlideInput
	var err error

	if IsRemote(ref) {
		var res *FetchResult
		res, err = p.fetcher.FetchWithRetry(ctx, ref)
		if err != nil {
			return "", nil, fmt.Errorf("download %s: %w", ref, err)
		}
		name = res.Name
		pages, err = slides.FromBytes(res.Data)
	} else {
		if _, statErr := os.Stat(ref); statErr != nil {
			return "", nil, fmt.Errorf("deck %s: %w", ref, statErr)
		}
		name = filepath.Base(ref)
		pages, err = slides.FromFile(ref)
	}
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", name, err)
	}

	inputs := make([]model.SlideInput, 0, len(pages))
	for _, page := range pages {
		if !page.HasContent() {
			p.logger.Info("skipping page without text layer", zap.String("deck", name), zap.Int("page", page.SlideNumber))
			continue
		}
		inputs = append(inputs, page)
	}
	if len(inputs) == 0 {
		return name, nil, fmt.Errorf("%s: no slide text found (image-only decks need pre-rendered slide images)", name)
	}

	return name, inputs, nil
}

// RunFile loads and runs a deck; it satisfies worker.DeckRunner
func (p *Pipeline) RunFile(ctx context.Context, ref string) (*model.Report, error) {
	name, inputs, err := p.LoadDeck(ctx, ref)
	if err != nil {
		return nil, err
	}
	return p.RunDeck(ctx, name, inputs)
}
