// Package tagger annotates memory text with emotions, topics, and
// personality traits drawn from the closed vocabularies, plus an importance
// score. Annotators are pluggable: a deterministic heuristic for tests and
// offline use, and an LLM-backed annotator for live tagging.
package tagger

import (
	"context"

	"github.com/hans1329/whoomi-memory/pkg/types"
)

// Annotation is the result of tagging a piece of text. All names are
// constrained to the vocabulary catalogs; importance is clamped to the 1-10
// scale.
type Annotation struct {
	Emotions   []string `json:"emotions"`
	Topics     []string `json:"topics"`
	Traits     []string `json:"traits"`
	Importance int      `json:"importance"`
}

// Annotator extracts tags from text. Implementations must never assume their
// output is trusted: the store re-filters tag names against the vocabularies
// on persist.
type Annotator interface {
	Tag(ctx context.Context, text string) (Annotation, error)
}

// Vocabulary lists the allowed names per tag kind, used by annotators to
// constrain and filter their output.
type Vocabulary struct {
	Emotions []string
	Topics   []string
	Traits   []string
}

// Names returns the name list for the given kind.
func (v Vocabulary) Names(kind types.TagKind) []string {
	switch kind {
	case types.TagEmotion:
		return v.Emotions
	case types.TagTopic:
		return v.Topics
	case types.TagTrait:
		return v.Traits
	}
	return nil
}

// MockOf returns the local, no-network variant of an annotator: the
// heuristic fallback of an LLM-backed annotator, or the annotator itself
// when it is already local. Callers use it for per-request mock tagging.
func MockOf(a Annotator) Annotator {
	if m, ok := a.(interface{ Mock() Annotator }); ok {
		return m.Mock()
	}
	return a
}

// filterKnown drops names not present in allowed, preserving order. Unknown
// names are discarded silently: the vocabularies are closed so that filters
// and statistics operate over a fixed set.
func filterKnown(names, allowed []string) []string {
	if len(names) == 0 {
		return nil
	}
	set := make(map[string]bool, len(allowed))
	for _, a := range allowed {
		set[a] = true
	}
	var kept []string
	for _, n := range names {
		if set[n] {
			kept = append(kept, n)
		}
	}
	return kept
}

// sanitize filters an annotation against the vocabulary and clamps its
// importance. Shared by all annotator implementations.
func sanitize(a Annotation, vocab Vocabulary) Annotation {
	return Annotation{
		Emotions:   filterKnown(a.Emotions, vocab.Emotions),
		Topics:     filterKnown(a.Topics, vocab.Topics),
		Traits:     filterKnown(a.Traits, vocab.Traits),
		Importance: types.ClampImportance(a.Importance),
	}
}
