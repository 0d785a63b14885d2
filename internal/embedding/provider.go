// Package embedding resolves embedding vectors for text through a set
// of pluggable providers, falling back to a deterministic local
// generator whenever a remote provider is unavailable or fails.
package embedding

import (
	"context"
	"log"
	"time"

	"github.com/oak-labs/corpora/internal/domain"
)

// embedTimeout bounds a single remote provider call. A provider that
// has not answered by then is treated like any other failure and the
// resolver degrades to the deterministic fallback.
const embedTimeout = 15 * time.Second

// Provider produces an embedding vector for a single input text.
type Provider interface {
	Embed(ctx context.Context, model string, text string) ([]float32, error)
	Name() domain.ProviderName
}

// Result carries the resolved vector and whether it came from the
// deterministic fallback instead of the requested provider.
type Result struct {
	Vector   []float32
	Degraded bool
}

// Resolver selects a provider from the model catalog entry and shields
// callers from provider failures: embedding never fails, it degrades.
type Resolver struct {
	providers map[domain.ProviderName]Provider
	mock      *MockProvider
	timeout   time.Duration
}

// NewResolver builds a resolver over the given remote providers. A nil
// or absent provider for a model's catalog entry routes to the mock.
func NewResolver(providers ...Provider) *Resolver {
	r := &Resolver{
		providers: make(map[domain.ProviderName]Provider),
		mock:      NewMockProvider(),
		timeout:   embedTimeout,
	}
	for _, p := range providers {
		if p != nil {
			r.providers[p.Name()] = p
		}
	}
	return r
}

// Embed resolves a vector for text under the given catalog model. Input
// longer than the model's approximate character budget is truncated
// before the provider call. A missing credential, an unknown provider,
// a provider failure, or a call that outlives the per-call timeout all
// yield the deterministic fallback vector and a degraded flag; none of
// them is an error.
func (r *Resolver) Embed(ctx context.Context, model domain.EmbeddingModel, text string) Result {
	if limit := model.ApproxMaxInputChars(); limit > 0 {
		runes := []rune(text)
		if len(runes) > limit {
			log.Printf("embedding: truncating input for model %s (%d chars over %d limit)", model.ID, len(runes)-limit, limit)
			text = string(runes[:limit])
		}
	}

	provider, ok := r.providers[model.Provider]
	if !ok || model.Provider == domain.ProviderMock {
		if model.Provider != domain.ProviderMock {
			log.Printf("embedding: no provider configured for %s, using deterministic fallback", model.Provider)
		}
		return Result{Vector: r.mock.Generate(text, model.Dimensions), Degraded: model.Provider != domain.ProviderMock}
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	vector, err := provider.Embed(callCtx, model.ID, text)
	if err != nil {
		log.Printf("embedding: provider %s failed for model %s, using deterministic fallback: %v", model.Provider, model.ID, err)
		return Result{Vector: r.mock.Generate(text, model.Dimensions), Degraded: true}
	}
	return Result{Vector: vector}
}
