package tagger

import (
	"context"
	"log"
	"sort"
	"time"

	"github.com/hans1329/whoomi-memory/pkg/types"
)

// topConversationTags caps how many names per kind an analysis reports.
const topConversationTags = 3

// ConversationMessage is one turn of a conversation submitted for analysis.
type ConversationMessage struct {
	Text string `json:"text"`
	Role string `json:"role"`
}

// ConversationAnalysis summarizes tag frequency across a conversation: the
// most common emotions, topics, and traits over all messages, count
// descending with name ascending breaking ties.
type ConversationAnalysis struct {
	TopEmotions  []types.TagCount `json:"top_emotions"`
	TopTopics    []types.TagCount `json:"top_topics"`
	TopTraits    []types.TagCount `json:"top_traits"`
	MessageCount int              `json:"message_count"`
	Timestamp    string           `json:"timestamp"`
}

// AnalyzeConversation tags each message with the annotator and aggregates
// the per-message tags into the dominant names per kind. A message that
// fails to tag is skipped rather than failing the whole analysis; it still
// counts toward MessageCount.
func AnalyzeConversation(ctx context.Context, a Annotator, messages []ConversationMessage) ConversationAnalysis {
	var emotions, topics, traits []string
	for _, msg := range messages {
		annotation, err := a.Tag(ctx, msg.Text)
		if err != nil {
			log.Printf("tagger: failed to tag conversation message: %v", err)
			continue
		}
		emotions = append(emotions, annotation.Emotions...)
		topics = append(topics, annotation.Topics...)
		traits = append(traits, annotation.Traits...)
	}

	return ConversationAnalysis{
		TopEmotions:  topCounts(emotions, topConversationTags),
		TopTopics:    topCounts(topics, topConversationTags),
		TopTraits:    topCounts(traits, topConversationTags),
		MessageCount: len(messages),
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
	}
}

// topCounts tallies names and returns the n most frequent.
func topCounts(names []string, n int) []types.TagCount {
	counts := make(map[string]int, len(names))
	for _, name := range names {
		counts[name]++
	}

	out := make([]types.TagCount, 0, len(counts))
	for name, count := range counts {
		out = append(out, types.TagCount{Name: name, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
