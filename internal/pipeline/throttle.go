package pipeline

import (
	"context"

	"github.com/ppiankov/deckcheck/internal/llm"
	"github.com/ppiankov/deckcheck/internal/worker"
)

// throttledProvider waits on the quota limiter before each completion
type throttledProvider struct {
	llm.Provider
	limiter *worker.Limiter
}

func (t *throttledProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if err := t.limiter.Wait(ctx, t.Name()); err != nil {
		return nil, err
	}
	return t.Provider.Complete(ctx, req)
}

type throttledSearch struct {
	llm.SearchProvider
	limiter *worker.Limiter
}

func (t *throttledSearch) Search(ctx context.Context, req llm.SearchRequest) (*llm.SearchResponse, error) {
	if err := t.limiter.Wait(ctx, t.Name()); err != nil {
		return nil, err
	}
	return t.SearchProvider.Search(ctx, req)
}

// Throttle applies the client-side quota to a completion provider, keyed
// by provider name. A disabled limiter leaves the provider unwrapped.
func Throttle(p llm.Provider, limiter *worker.Limiter) llm.Provider {
	if p == nil || limiter == nil || !limiter.Enabled() {
		return p
	}
	return &throttledProvider{Provider: p, limiter: limiter}
}

// ThrottleSearch applies the client-side quota to a search provider
func ThrottleSearch(s llm.SearchProvider, limiter *worker.Limiter) llm.SearchProvider {
	if s == nil || limiter == nil || !limiter.Enabled() {
		return s
	}
	return &throttledSearch{SearchProvider: s, limiter: limiter}
}
