package embedding

import (
	"context"
	"math"
	"unicode/utf16"

	"github.com/oak-labs/corpora/internal/domain"
)

// LCG constants (numerical recipes); the generator must stay stable so
// equal text always yields an identical vector.
const (
	lcgMultiplier = 1664525
	lcgIncrement  = 1013904223
)

// MockProvider generates deterministic pseudo-embeddings from the input
// text alone. Used as the universal fallback and for offline testing.
type MockProvider struct{}

// NewMockProvider creates a MockProvider.
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

func (p *MockProvider) Name() domain.ProviderName {
	return domain.ProviderMock
}

// Embed satisfies Provider; the model id is ignored beyond its catalog
// dimensionality, which the resolver passes through Generate instead.
func (p *MockProvider) Embed(_ context.Context, model string, text string) ([]float32, error) {
	dims := domain.DefaultMockDimensions
	if m, ok := domain.LookupModel(model); ok {
		dims = m.Dimensions
	}
	return p.Generate(text, dims), nil
}

// Generate produces an L2-normalized vector of the given dimensionality,
// seeded from a rolling hash of the text and expanded with a linear
// congruential generator. Values before normalization lie in [-1, 1).
func (p *MockProvider) Generate(text string, dimensions int) []float32 {
	if dimensions <= 0 {
		dimensions = domain.DefaultMockDimensions
	}

	state := uint32(textSeed(text))
	vector := make([]float32, dimensions)
	var sumSquares float64
	for i := range vector {
		state = state*lcgMultiplier + lcgIncrement
		v := float64(state)/float64(1<<31) - 1
		vector[i] = float32(v)
		sumSquares += v * v
	}

	norm := math.Sqrt(sumSquares)
	if norm == 0 {
		return vector
	}
	for i := range vector {
		vector[i] = float32(float64(vector[i]) / norm)
	}
	return vector
}

// textSeed computes the 32-bit rolling hash hash = hash*31 + unit
// (written as (hash<<5)-hash to match the historical formulation) over
// the UTF-16 code units of the text.
func textSeed(text string) int32 {
	var hash int32
	for _, unit := range utf16.Encode([]rune(text)) {
		hash = (hash<<5 - hash) + int32(unit)
	}
	return hash
}
