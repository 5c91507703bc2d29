// Package pipeline drives a deck through claim extraction, verification and
// question synthesis while staying inside backend rate limits.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/deckcheck/internal/cache"
	"github.com/ppiankov/deckcheck/internal/llm"
	"github.com/ppiankov/deckcheck/internal/model"
	"github.com/ppiankov/deckcheck/internal/score"
)

// Slide error messages surfaced to callers
const (
	MsgVerifyRateLimit  = "Rate limit exceeded. Please wait a moment and continue with the next slide."
	MsgExtractRateLimit = "Rate limit exceeded. Please wait a moment and try again."
)

// ErrEmptySlide rejects a slide with neither text nor image
var ErrEmptySlide = errors.New("either image or text is required")

// ErrInvalidSlideNumber rejects a slide numbered below 1
var ErrInvalidSlideNumber = errors.New("slide number is required")

// InputError is a rejected slide input. It is returned before any backend call.
type InputError struct {
	SlideNumber int
	Err         error
}

func (e *InputError) Error() string {
	if e.SlideNumber == 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("slide %d: %v", e.SlideNumber, e.Err)
}

func (e *InputError) Unwrap() error {
	return e.Err
}

// IsInputError reports whether err is a rejected input
func IsInputError(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}

// Extractor finds claims on a slide
type Extractor interface {
	Extract(ctx context.Context, text, imageBase64 string) ([]model.Claim, error)
}

// Verifier checks a single claim
type Verifier interface {
	Verify(ctx context.Context, claim model.Claim) (model.Verification, error)
}

// QuestionSynthesizer writes investor questions for processed slides
type QuestionSynthesizer interface {
	Synthesize(ctx context.Context, slides []model.Slide) ([]string, error)
}

// SourceEnricher annotates a slide's sources in place
type SourceEnricher interface {
	EnrichSlide(ctx context.Context, slide *model.Slide)
}

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// ContextSleep is the production SleepFunc
func ContextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Options tune an Orchestrator. Zero durations disable the corresponding wait.
type Options struct {
	VerifyDelay time.Duration // Before each verification call after the first in a slide
	SlideDelay  time.Duration // Between slides in ProcessDeck and RunDeck
	RetryWait   time.Duration // RunDeck wait when a rate limit carries no hint
	MaxRetries  int           // RunDeck retries per slide

	Sleep    SleepFunc
	Cache    *cache.Verifications
	Enricher SourceEnricher
	Observer Observer
	Logger   *zap.Logger
	Now      func() time.Time
}

// Orchestrator runs the per-slide pipeline. It holds no per-run state and
// may be shared by concurrent runs.
type Orchestrator struct {
	extractor Extractor
	verifier  Verifier
	questions QuestionSynthesizer
	scorer    *score.Scorer
	opts      Options
}

// New creates an orchestrator. questions may be nil when only slide
// processing is needed.
func New(extractor Extractor, verifier Verifier, questions QuestionSynthesizer, opts Options) *Orchestrator {
	if opts.Sleep == nil {
		opts.Sleep = ContextSleep
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}

	return &Orchestrator{
		extractor: extractor,
		verifier:  verifier,
		questions: questions,
		scorer:    score.NewScorer(),
		opts:      opts,
	}
}

// Backends lists the verification backends in the order they are tried
func (o *Orchestrator) Backends() []string {
	if b, ok := o.verifier.(interface{ Backends() []string }); ok {
		return b.Backends()
	}
	return nil
}

// ProcessSlide runs one slide (single-slide mode). On a rate limit the
// returned slide holds the facts verified so far, its Error is set, and the
// error satisfies llm.IsRateLimit.
func (o *Orchestrator) ProcessSlide(ctx context.Context, in model.SlideInput) (model.Slide, error) {
	if err := validateInput(in); err != nil {
		return model.NewSlide(in), err
	}
	return o.processSlide(ctx, in, 1, 1)
}

// ProcessDeck runs every slide in order (batch mode). Blank slides complete
// with no facts. A rate limit aborts the batch; the slides completed before
// it are returned with the error.
func (o *Orchestrator) ProcessDeck(ctx context.Context, inputs []model.SlideInput) ([]model.Slide, error) {
	if err := validateInputs(inputs); err != nil {
		return []model.Slide{}, err
	}
	o.notify(Progress{State: StateIdle, SlideCount: len(inputs)})

	slides := make([]model.Slide, 0, len(inputs))
	for i, in := range inputs {
		if i > 0 {
			if err := o.opts.Sleep(ctx, o.opts.SlideDelay); err != nil {
				return slides, err
			}
		}

		slide, err := o.processSlide(ctx, in, i+1, len(inputs))
		if err != nil {
			return slides, err
		}
		slides = append(slides, slide)
	}

	o.notify(Progress{State: StateAllSlidesComplete, SlideCount: len(inputs)})
	return slides, nil
}

// RunDeck is the canonical driver: slides are processed one at a time,
// a rate-limited slide is retried after the backend's hint (or RetryWait),
// then questions are synthesized from everything processed.
func (o *Orchestrator) RunDeck(ctx context.Context, source string, inputs []model.SlideInput) (*model.Report, error) {
	if err := validateInputs(inputs); err != nil {
		return nil, err
	}
	o.notify(Progress{State: StateIdle, SlideCount: len(inputs)})

	slides := make([]model.Slide, 0, len(inputs))
	for i, in := range inputs {
		if i > 0 {
			if err := o.opts.Sleep(ctx, o.opts.SlideDelay); err != nil {
				return o.report(source, slides, nil, nil), err
			}
		}

		slide, err := o.processWithRetry(ctx, in, i+1, len(inputs))
		slides = append(slides, slide)
		if err != nil {
			return o.report(source, slides, nil, nil), err
		}
	}
	o.notify(Progress{State: StateAllSlidesComplete, SlideCount: len(inputs)})

	var questions []string
	var qErr error
	if len(slides) > 0 {
		questions, qErr = o.SynthesizeQuestions(ctx, slides)
		if qErr != nil {
			if llm.IsConfigError(qErr) || ctx.Err() != nil {
				return o.report(source, slides, nil, qErr), qErr
			}
			o.opts.Logger.Warn("question synthesis failed", zap.Error(qErr))
		}
	}

	o.notify(Progress{State: StateDone, SlideCount: len(inputs)})
	return o.report(source, slides, questions, qErr), nil
}

// SynthesizeQuestions generates investor questions for processed slides
func (o *Orchestrator) SynthesizeQuestions(ctx context.Context, slides []model.Slide) ([]string, error) {
	if o.questions == nil {
		return nil, &llm.ConfigError{Setting: "llm.provider", Reason: "question synthesis needs a completion backend"}
	}

	o.notify(Progress{State: StateSynthesizingQuestions, SlideCount: len(slides)})
	questions, err := o.questions.Synthesize(ctx, slides)
	if err != nil {
		if llm.IsRateLimit(err) {
			o.notify(Progress{State: StateAbortedOnRateLimit, Err: err})
		}
		return []string{}, err
	}
	if questions == nil {
		questions = []string{}
	}
	return questions, nil
}

func (o *Orchestrator) processWithRetry(ctx context.Context, in model.SlideInput, index, total int) (model.Slide, error) {
	for attempt := 0; ; attempt++ {
		slide, err := o.processSlide(ctx, in, index, total)
		if err == nil || !llm.IsRateLimit(err) || attempt >= o.opts.MaxRetries {
			return slide, err
		}

		wait, ok := llm.RetryAfter(err)
		if !ok {
			wait = o.opts.RetryWait
		}
		o.opts.Logger.Info("rate limited, retrying slide",
			zap.Int("slide", in.SlideNumber),
			zap.Int("attempt", attempt+1),
			zap.Duration("wait", wait))
		o.notify(Progress{State: StateWaitingRetry, SlideNumber: in.SlideNumber, SlideIndex: index, SlideCount: total, Wait: wait, Err: err})

		if err := o.opts.Sleep(ctx, wait); err != nil {
			return slide, err
		}
	}
}

// processSlide is the per-slide core shared by every mode
func (o *Orchestrator) processSlide(ctx context.Context, in model.SlideInput, index, total int) (model.Slide, error) {
	slide := model.NewSlide(in)
	log := o.opts.Logger.With(zap.Int("slide", in.SlideNumber))
	progress := Progress{SlideNumber: in.SlideNumber, SlideIndex: index, SlideCount: total}

	// Blank pages (image-only slides without a rendered image) have nothing to extract
	if !in.HasContent() {
		log.Debug("blank slide, no claims")
		progress.State = StateSlideComplete
		o.notify(progress)
		return slide, nil
	}

	progress.State = StateExtractingClaims
	o.notify(progress)

	claims, err := o.extractor.Extract(ctx, in.Text, in.ImageBase64)
	if err != nil {
		if llm.IsRateLimit(err) {
			slide.Error = MsgExtractRateLimit
			o.notify(Progress{State: StateAbortedOnRateLimit, SlideNumber: in.SlideNumber, SlideIndex: index, SlideCount: total, Err: err})
			return slide, fmt.Errorf("slide %d: extract claims: %w", in.SlideNumber, err)
		}
		if llm.IsConfigError(err) || ctx.Err() != nil {
			return slide, err
		}
		log.Warn("claim extraction failed", zap.Error(err))
		slide.Error = err.Error()
		progress.State = StateSlideComplete
		o.notify(progress)
		return slide, nil
	}

	progress.State = StateVerifyingClaims
	progress.ClaimCount = len(claims)

	called := false
	for i, claim := range claims {
		progress.Claim = i + 1
		o.notify(progress)

		if v, ok := o.opts.Cache.Lookup(claim); ok {
			log.Debug("verification cache hit", zap.String("claim", claim))
			slide.Facts = append(slide.Facts, model.NewFact(claim, v))
			continue
		}

		if called {
			if err := o.opts.Sleep(ctx, o.opts.VerifyDelay); err != nil {
				return slide, err
			}
		}
		called = true

		v, err := o.verifier.Verify(ctx, claim)
		if err != nil {
			if llm.IsRateLimit(err) {
				log.Warn("rate limit hit while verifying claims",
					zap.Int("verified", len(slide.Facts)),
					zap.Int("claims", len(claims)))
				slide.Error = MsgVerifyRateLimit
				o.enrich(ctx, &slide)
				o.notify(Progress{State: StateAbortedOnRateLimit, SlideNumber: in.SlideNumber, SlideIndex: index, SlideCount: total, Err: err})
				return slide, fmt.Errorf("slide %d: verify claim %d: %w", in.SlideNumber, i+1, err)
			}
			if llm.IsConfigError(err) || ctx.Err() != nil {
				return slide, err
			}
			log.Warn("claim verification failed, skipping",
				zap.String("claim", claim),
				zap.Error(err))
			continue
		}

		if err := o.opts.Cache.Store(claim, v); err != nil {
			log.Debug("verification not cached", zap.Error(err))
		}
		slide.Facts = append(slide.Facts, model.NewFact(claim, v))
	}

	o.enrich(ctx, &slide)
	progress.State = StateSlideComplete
	o.notify(progress)
	return slide, nil
}

func (o *Orchestrator) enrich(ctx context.Context, slide *model.Slide) {
	if o.opts.Enricher != nil && len(slide.Facts) > 0 {
		o.opts.Enricher.EnrichSlide(ctx, slide)
	}
}

func (o *Orchestrator) notify(p Progress) {
	if o.opts.Observer != nil {
		o.opts.Observer(p)
	}
}

// report assembles a Report for the slides processed so far
func (o *Orchestrator) report(source string, slides []model.Slide, questions []string, questionsErr error) *model.Report {
	if questions == nil {
		questions = []string{}
	}
	r := &model.Report{
		Source:      source,
		GeneratedAt: o.opts.Now().UTC(),
		Slides:      slides,
		Questions:   questions,
		Summary:     o.scorer.Calculate(slides),
	}
	if questionsErr != nil && len(slides) > 0 {
		r.QuestionsError = questionsErr.Error()
		if llm.IsRateLimit(questionsErr) {
			r.QuestionsRateLimited = true
			if wait, ok := llm.RetryAfter(questionsErr); ok {
				r.QuestionsRetryAfter = int(math.Ceil(wait.Seconds()))
			}
		}
	}
	return r
}

func validateInput(in model.SlideInput) error {
	if in.SlideNumber < 1 {
		return &InputError{SlideNumber: in.SlideNumber, Err: ErrInvalidSlideNumber}
	}
	if !in.HasContent() {
		return &InputError{SlideNumber: in.SlideNumber, Err: ErrEmptySlide}
	}
	return nil
}

// validateInputs checks a deck. Only numbering is enforced; a blank slide
// completes with no facts.
func validateInputs(inputs []model.SlideInput) error {
	if len(inputs) == 0 {
		return &InputError{Err: errors.New("no slides provided")}
	}
	for _, in := range inputs {
		if in.SlideNumber < 1 {
			return &InputError{SlideNumber: in.SlideNumber, Err: ErrInvalidSlideNumber}
		}
	}
	return nil
}
