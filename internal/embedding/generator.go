// Package embedding provides text-to-vector generation and vector similarity
// for the semantic memory system.
//
// Two generator implementations exist: an OpenAI-backed client for live use
// and a seeded mock for tests and offline operation. Both produce vectors of
// a fixed dimensionality per model; similarity between vectors of different
// dimensionality is a typed error, never silent garbage.
package embedding

import (
	"context"
	"errors"
)

var (
	// ErrEmptyInput is returned when the text to embed is empty or
	// whitespace-only.
	ErrEmptyInput = errors.New("cannot embed empty text")

	// ErrUnavailable is returned after the provider has been retried up to
	// the configured bound and still failed.
	ErrUnavailable = errors.New("embedding provider unavailable")

	// ErrDimensionMismatch is returned when two vectors of different lengths
	// are compared.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrZeroVector is returned when cosine similarity is requested for a
	// vector with zero Euclidean norm.
	ErrZeroVector = errors.New("zero-norm embedding vector")
)

// Generator turns text into a fixed-length embedding vector.
type Generator interface {
	// Embed returns the embedding for text. It fails with ErrEmptyInput for
	// blank input and ErrUnavailable once transient provider failures have
	// exhausted their retry budget.
	Embed(ctx context.Context, text string) ([]float64, error)

	// Model returns the identifier of the model producing the vectors.
	Model() string

	// Dimension returns the fixed vector length this generator produces.
	Dimension() int
}
