// Package llmtest provides scripted providers for tests
package llmtest

import (
	"context"
	"sync"

	"github.com/ppiankov/deckcheck/internal/llm"
)

// Reply is one scripted provider outcome
type Reply struct {
	Text string
	Err  error
}

// Provider is a scripted llm.Provider. Replies are consumed in order; once
// exhausted, the last reply repeats. Handler, when set, takes precedence.
type Provider struct {
	ProviderName string
	Replies      []Reply
	Handler      func(req llm.CompletionRequest) (string, error)

	mu       sync.Mutex
	requests []llm.CompletionRequest
}

// Name implements llm.Provider
func (p *Provider) Name() string {
	if p.ProviderName == "" {
		return "fake"
	}
	return p.ProviderName
}

// Complete implements llm.Provider
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	n := len(p.requests)
	p.requests = append(p.requests, req)
	p.mu.Unlock()

	var text string
	var err error
	switch {
	case p.Handler != nil:
		text, err = p.Handler(req)
	case len(p.Replies) > 0:
		r := p.Replies[min(n, len(p.Replies)-1)]
		text, err = r.Text, r.Err
	}
	if err != nil {
		return nil, err
	}
	return &llm.CompletionResponse{Text: text, Model: "fake-model"}, nil
}

// Requests returns every request received so far
func (p *Provider) Requests() []llm.CompletionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]llm.CompletionRequest(nil), p.requests...)
}

// Calls returns the number of requests received
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

// Search is a scripted llm.SearchProvider
type Search struct {
	Handler func(req llm.SearchRequest) (string, error)

	mu       sync.Mutex
	requests []llm.SearchRequest
}

// Name implements llm.SearchProvider
func (s *Search) Name() string {
	return "fake-search"
}

// Search implements llm.SearchProvider
func (s *Search) Search(ctx context.Context, req llm.SearchRequest) (*llm.SearchResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	content, err := s.Handler(req)
	if err != nil {
		return nil, err
	}
	return &llm.SearchResponse{Content: content, Model: "fake-search-model"}, nil
}

// Calls returns the number of searches received
func (s *Search) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}
