package embedding

import (
	"context"
	"math"
	"math/rand"
	"strings"
	"sync"
)

// MockModel is the model identifier recorded for mock-generated embeddings.
const MockModel = "mock-unit-vector"

// MockGenerator produces uniformly-random unit vectors from a seeded source.
// With a fixed seed the output sequence is fully deterministic, which makes
// search rankings reproducible in tests.
type MockGenerator struct {
	dimension int

	mu  sync.Mutex
	rng *rand.Rand
}

// NewMockGenerator creates a mock generator producing vectors of the given
// dimension, drawing from a source seeded with seed.
func NewMockGenerator(dimension int, seed int64) *MockGenerator {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &MockGenerator{
		dimension: dimension,
		rng:       rand.New(rand.NewSource(seed)),
	}
}

// Embed returns the next unit vector from the seeded stream. The text is
// validated but otherwise ignored; identity of output depends only on the
// seed and call order.
func (g *MockGenerator) Embed(_ context.Context, text string) ([]float64, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	return unitVector(g.rng, g.dimension), nil
}

// Model returns the mock model identifier.
func (g *MockGenerator) Model() string { return MockModel }

// Dimension returns the configured vector length.
func (g *MockGenerator) Dimension() int { return g.dimension }

// MockVector returns a single random unit vector of the given dimension drawn
// from a source seeded with seed. Repeated calls with the same seed produce
// the same vector, so test fixtures can share "identical" embeddings.
func MockVector(dimension int, seed int64) []float64 {
	return unitVector(rand.New(rand.NewSource(seed)), dimension)
}

// unitVector draws dimension independent standard-normal values and
// normalizes them by the Euclidean norm.
func unitVector(rng *rand.Rand, dimension int) []float64 {
	v := make([]float64, dimension)
	var norm float64
	for i := range v {
		v[i] = rng.NormFloat64()
		norm += v[i] * v[i]
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		// Astronomically unlikely; retry rather than return a degenerate vector.
		return unitVector(rng, dimension)
	}
	for i := range v {
		v[i] /= norm
	}
	return v
}

var _ Generator = (*MockGenerator)(nil)
