// Package storage defines the durable store contract for memories, their
// embeddings, and the closed tag vocabularies.
//
// The interface is deliberately narrow: exact-filter queries, a full-scan
// candidate feed for similarity search, and tag aggregation. There is no
// vector index; similarity ranking happens in the engine over the scanned
// candidates, and the documented cost model is O(N) in embedded memories
// within scope.
package storage

import (
	"context"

	"github.com/hans1329/whoomi-memory/pkg/types"
)

// Candidate is one unit of the similarity-search scan: a memory together
// with its stored embedding vector. Only memories that have an embedding are
// ever emitted as candidates.
type Candidate struct {
	Memory types.Memory
	Vector []float64
	Model  string
}

// RoleCounts holds per-role memory totals for a scope.
type RoleCounts struct {
	Total  int
	User   int
	Dopple int
}

// MemoryStore is the durable record of memories, tags, and embeddings.
type MemoryStore interface {
	// Create persists a new memory with its tag memberships. Tag names not
	// present in the corresponding vocabulary are silently dropped, keeping
	// statistics and filters over a closed set. The memory's ID and
	// Timestamp must already be assigned by the caller.
	Create(ctx context.Context, memory *types.Memory) error

	// Get retrieves a memory by ID, including its tag names.
	// Returns ErrNotFound if the memory doesn't exist.
	Get(ctx context.Context, id string) (*types.Memory, error)

	// Delete removes a memory. The deletion cascades to its embedding and
	// detaches all tag associations; the vocabularies persist.
	// Returns ErrNotFound if the memory doesn't exist.
	Delete(ctx context.Context, id string) error

	// AttachEmbedding stores the one embedding for a memory. A second attach
	// to the same memory fails with ErrDuplicateEmbedding. Embeddings are
	// never overwritten in place, and the uniqueness constraint lives in the
	// store so concurrent attachers race safely.
	AttachEmbedding(ctx context.Context, memoryID string, vector []float64, model string) error

	// GetEmbedding returns the embedding for a memory, or ErrNotFound when
	// the memory has none.
	GetEmbedding(ctx context.Context, memoryID string) (*types.Embedding, error)

	// ScanCandidates returns every memory within scope that has an
	// embedding, paired with its vector. Memories without embeddings are
	// skipped, not errored on.
	ScanCandidates(ctx context.Context, scope ScopeFilter) ([]Candidate, error)

	// FilterByMetadata returns memories matching every provided filter
	// (conjunctive), ordered by creation timestamp descending with ID
	// descending as the deterministic tie-break. An offset beyond the result
	// count yields an empty slice.
	FilterByMetadata(ctx context.Context, filter MetadataFilter) ([]types.Memory, error)

	// AggregateTagCounts returns the topN most frequent tags of the given
	// kind across in-scope memories, ordered by count descending with name
	// ascending as the tie-break.
	AggregateTagCounts(ctx context.Context, scope ScopeFilter, kind types.TagKind, topN int) ([]types.TagCount, error)

	// CountByRole returns total and per-role memory counts for the scope,
	// regardless of embedding presence.
	CountByRole(ctx context.Context, scope ScopeFilter) (RoleCounts, error)

	// SeedVocabularies inserts the fixed tag catalogs, skipping names that
	// already exist. Safe to call repeatedly.
	SeedVocabularies(ctx context.Context) error

	// VocabularyNames lists the allowed tag names for a kind.
	VocabularyNames(ctx context.Context, kind types.TagKind) ([]string, error)

	// Close releases any resources held by the store.
	Close() error
}
