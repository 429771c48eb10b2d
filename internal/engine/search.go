package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/hans1329/whoomi-memory/internal/embedding"
	"github.com/hans1329/whoomi-memory/internal/storage"
	"github.com/hans1329/whoomi-memory/pkg/types"
)

const (
	// DefaultTopK bounds result sets when the caller does not say otherwise.
	DefaultTopK = 5

	// MaxTopK is the hard cap on requested result counts.
	MaxTopK = 100
)

// SearchRequest describes one similarity search.
type SearchRequest struct {
	QueryText string
	Scope     storage.ScopeFilter

	// TopK is the maximum number of results. Values below 1 fall back to
	// DefaultTopK; values above MaxTopK are capped.
	TopK int

	// Threshold is the minimum cosine similarity for a match, in [-1, 1].
	// Candidates scoring strictly below it are excluded.
	Threshold float64

	// UseMock embeds the query with the seeded mock generator instead of the
	// live provider. MockSeed controls the draw.
	UseMock  bool
	MockSeed int64
}

// Normalize applies defaults and caps to the request.
func (r *SearchRequest) Normalize() error {
	if r.TopK < 1 {
		r.TopK = DefaultTopK
	}
	if r.TopK > MaxTopK {
		r.TopK = MaxTopK
	}
	if r.Threshold < -1 || r.Threshold > 1 {
		return fmt.Errorf("%w: threshold must be within [-1, 1], got %v", types.ErrValidation, r.Threshold)
	}
	return nil
}

// SearchEngine ranks stored memories by cosine similarity to a query.
//
// Every search is a full scan over the embedded memories in scope. The cost
// is linear in the number of candidates; there is no approximate index.
type SearchEngine struct {
	store     storage.MemoryStore
	generator embedding.Generator
}

// NewSearchEngine creates a search engine over the given store and live
// generator.
func NewSearchEngine(store storage.MemoryStore, generator embedding.Generator) (*SearchEngine, error) {
	if store == nil {
		return nil, fmt.Errorf("memory store is required")
	}
	if generator == nil {
		return nil, fmt.Errorf("embedding generator is required")
	}
	return &SearchEngine{store: store, generator: generator}, nil
}

// Search embeds the query, scores every embedded memory in scope, and
// returns up to TopK results at or above the threshold, best first. Ties in
// similarity break by memory timestamp, newest first.
//
// A failing embedding provider degrades to an empty result with a warning
// rather than an error: recall is best-effort and the caller cannot do
// anything useful with a provider failure mid-conversation.
// Empty query text is still a validation error.
func (s *SearchEngine) Search(ctx context.Context, req SearchRequest) ([]types.ScoredMemory, error) {
	if err := req.Normalize(); err != nil {
		return nil, err
	}

	generator := s.generator
	if req.UseMock {
		generator = embedding.NewMockGenerator(s.generator.Dimension(), req.MockSeed)
	}

	query, err := generator.Embed(ctx, req.QueryText)
	if err != nil {
		if errors.Is(err, embedding.ErrEmptyInput) {
			return nil, fmt.Errorf("%w: query text is required", types.ErrValidation)
		}
		log.Printf("engine: query embedding failed (returning no results): %v", err)
		return []types.ScoredMemory{}, nil
	}

	candidates, err := s.store.ScanCandidates(ctx, req.Scope)
	if err != nil {
		return nil, fmt.Errorf("failed to scan candidates: %w", err)
	}

	scored := make([]types.ScoredMemory, 0, len(candidates))
	for _, c := range candidates {
		sim, err := embedding.CosineSimilarity(query, c.Vector)
		if err != nil {
			// Mixed-dimension or degenerate stored vectors are skipped, not
			// fatal: one bad row must not break recall for the rest.
			log.Printf("engine: skipping candidate %s: %v", c.Memory.ID, err)
			continue
		}
		if sim < req.Threshold {
			continue
		}
		scored = append(scored, types.ScoredMemory{Memory: c.Memory, Similarity: sim})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Similarity != scored[j].Similarity {
			return scored[i].Similarity > scored[j].Similarity
		}
		return scored[i].Memory.Timestamp.After(scored[j].Memory.Timestamp)
	})

	if len(scored) > req.TopK {
		scored = scored[:req.TopK]
	}
	return scored, nil
}
