package engine

import (
	"context"
	"fmt"

	"github.com/hans1329/whoomi-memory/internal/storage"
	"github.com/hans1329/whoomi-memory/pkg/types"
)

// topTagCount is the number of tags reported per kind in stats.
const topTagCount = 5

// StatsEngine aggregates memory counts and tag frequencies.
type StatsEngine struct {
	store storage.MemoryStore
}

// NewStatsEngine creates a stats engine over the given store.
func NewStatsEngine(store storage.MemoryStore) (*StatsEngine, error) {
	if store == nil {
		return nil, fmt.Errorf("memory store is required")
	}
	return &StatsEngine{store: store}, nil
}

// Stats computes totals, per-role counts, and top-5 tags per kind for the
// scope. Every stored memory counts regardless of whether it has an
// embedding. An empty scope covers the whole store.
func (s *StatsEngine) Stats(ctx context.Context, doppleID, userID string) (*types.MemoryStats, error) {
	scope := storage.ScopeFilter{DoppleID: doppleID, UserID: userID}

	counts, err := s.store.CountByRole(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to count memories: %w", err)
	}

	stats := &types.MemoryStats{
		TotalMemories:  counts.Total,
		UserMemories:   counts.User,
		DoppleMemories: counts.Dopple,
	}

	if stats.TopEmotions, err = s.store.AggregateTagCounts(ctx, scope, types.TagEmotion, topTagCount); err != nil {
		return nil, fmt.Errorf("failed to aggregate emotions: %w", err)
	}
	if stats.TopTopics, err = s.store.AggregateTagCounts(ctx, scope, types.TagTopic, topTagCount); err != nil {
		return nil, fmt.Errorf("failed to aggregate topics: %w", err)
	}
	if stats.TopTraits, err = s.store.AggregateTagCounts(ctx, scope, types.TagTrait, topTagCount); err != nil {
		return nil, fmt.Errorf("failed to aggregate traits: %w", err)
	}

	return stats, nil
}
