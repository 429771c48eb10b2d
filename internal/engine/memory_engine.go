// Package engine orchestrates memory creation, similarity search, and stats
// aggregation over the storage and embedding layers.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/hans1329/whoomi-memory/internal/embedding"
	"github.com/hans1329/whoomi-memory/internal/storage"
	"github.com/hans1329/whoomi-memory/internal/tagger"
	"github.com/hans1329/whoomi-memory/pkg/types"
)

// RememberRequest carries everything needed to store one memory.
type RememberRequest struct {
	DoppleID string
	UserID   string
	Text     string
	Role     types.Role

	// Importance of 0 means unset; the annotator's score or the default is
	// used instead.
	Importance int
	Metadata   map[string]interface{}

	// Manually supplied tags. When any are present, AutoTag is ignored for
	// that kind and the names are used as-is (subject to the store's
	// vocabulary membership filter).
	Emotions []string
	Topics   []string
	Traits   []string

	// AutoTag runs the annotator over the text to fill missing tags and,
	// when Importance is unset, the importance score.
	AutoTag bool

	// MockTag makes AutoTag use the annotator's local variant instead of
	// any remote one, so a single store call can opt out of LLM tagging.
	MockTag bool

	// SkipEmbedding stores the memory without generating a vector. Such
	// memories never appear in similarity search but are still counted in
	// stats and reachable by metadata search.
	SkipEmbedding bool
}

// RememberResult reports what was persisted, with Embedded false when the
// memory was stored in the degraded no-embedding state.
type RememberResult struct {
	Memory   *types.Memory
	Embedded bool
}

// MemoryEngine coordinates tagging, persistence, and embedding for new
// memories.
type MemoryEngine struct {
	store     storage.MemoryStore
	generator embedding.Generator
	annotator tagger.Annotator

	// onMemoryCreated fires after a successful Remember, embedding outcome
	// included. Used by the server to feed the activity stream.
	onMemoryCreated func(result RememberResult)
}

// NewMemoryEngine creates a memory engine. The annotator may be nil, which
// disables auto-tagging.
func NewMemoryEngine(store storage.MemoryStore, generator embedding.Generator, annotator tagger.Annotator) (*MemoryEngine, error) {
	if store == nil {
		return nil, fmt.Errorf("memory store is required")
	}
	if generator == nil {
		return nil, fmt.Errorf("embedding generator is required")
	}
	return &MemoryEngine{store: store, generator: generator, annotator: annotator}, nil
}

// OnMemoryCreated registers a callback invoked synchronously after each
// successful Remember.
func (e *MemoryEngine) OnMemoryCreated(fn func(result RememberResult)) {
	e.onMemoryCreated = fn
}

// Remember validates, tags, persists, and embeds a memory.
//
// Embedding failure is a degraded outcome, not an error: the memory is kept
// without a vector and the result reports Embedded false. Validation and
// storage failures abort the whole operation.
func (e *MemoryEngine) Remember(ctx context.Context, req RememberRequest) (*RememberResult, error) {
	memory := &types.Memory{
		ID:         uuid.NewString(),
		DoppleID:   req.DoppleID,
		UserID:     req.UserID,
		Text:       req.Text,
		Role:       req.Role,
		Timestamp:  time.Now().UTC(),
		Importance: req.Importance,
		Metadata:   req.Metadata,
		Emotions:   req.Emotions,
		Topics:     req.Topics,
		Traits:     req.Traits,
	}
	if err := memory.Validate(); err != nil {
		return nil, err
	}

	if req.AutoTag && e.annotator != nil {
		annotator := e.annotator
		if req.MockTag {
			annotator = tagger.MockOf(annotator)
		}
		annotation, err := annotator.Tag(ctx, req.Text)
		if err != nil {
			// Tagging never blocks memory creation.
			log.Printf("engine: annotator failed (storing untagged): %v", err)
		} else {
			if len(memory.Emotions) == 0 {
				memory.Emotions = annotation.Emotions
			}
			if len(memory.Topics) == 0 {
				memory.Topics = annotation.Topics
			}
			if len(memory.Traits) == 0 {
				memory.Traits = annotation.Traits
			}
			if memory.Importance == 0 {
				memory.Importance = annotation.Importance
			}
		}
	}
	if memory.Importance == 0 {
		memory.Importance = types.DefaultImportance
	}

	if err := e.store.Create(ctx, memory); err != nil {
		return nil, fmt.Errorf("failed to store memory: %w", err)
	}

	result := &RememberResult{Memory: memory}

	if !req.SkipEmbedding {
		vector, err := e.generator.Embed(ctx, memory.Text)
		if err != nil {
			log.Printf("engine: embedding failed for memory %s (stored without vector): %v", memory.ID, err)
		} else if err := e.store.AttachEmbedding(ctx, memory.ID, vector, e.generator.Model()); err != nil {
			if errors.Is(err, storage.ErrDuplicateEmbedding) {
				return nil, err
			}
			log.Printf("engine: failed to attach embedding for memory %s: %v", memory.ID, err)
		} else {
			result.Embedded = true
		}
	}

	if e.onMemoryCreated != nil {
		e.onMemoryCreated(*result)
	}
	return result, nil
}

// Get returns a stored memory by ID.
func (e *MemoryEngine) Get(ctx context.Context, id string) (*types.Memory, error) {
	return e.store.Get(ctx, id)
}

// Forget deletes a memory along with its embedding and tag memberships.
func (e *MemoryEngine) Forget(ctx context.Context, id string) error {
	return e.store.Delete(ctx, id)
}

// Embed retries attaching an embedding to a memory stored in the degraded
// state. The one-embedding invariant still holds: a memory that already has
// a vector yields ErrDuplicateEmbedding.
func (e *MemoryEngine) Embed(ctx context.Context, memoryID string) error {
	memory, err := e.store.Get(ctx, memoryID)
	if err != nil {
		return err
	}

	vector, err := e.generator.Embed(ctx, memory.Text)
	if err != nil {
		return fmt.Errorf("failed to embed memory %s: %w", memoryID, err)
	}
	return e.store.AttachEmbedding(ctx, memoryID, vector, e.generator.Model())
}

// Initialize applies the vocabulary seed catalogs. Safe to call repeatedly.
func (e *MemoryEngine) Initialize(ctx context.Context) error {
	if err := e.store.SeedVocabularies(ctx); err != nil {
		return fmt.Errorf("failed to seed vocabularies: %w", err)
	}
	return nil
}

// FilterByMetadata exposes metadata search over the store.
func (e *MemoryEngine) FilterByMetadata(ctx context.Context, filter storage.MetadataFilter) ([]types.Memory, error) {
	return e.store.FilterByMetadata(ctx, filter)
}
