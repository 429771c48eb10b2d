package tagger

import (
	"context"
	"math/rand"
	"strings"
	"sync"
)

// HeuristicAnnotator tags text without any remote call. It first looks for
// literal vocabulary-name mentions in the text; when nothing matches it falls
// back to a seeded random sample, which keeps tagging usable in mock mode and
// deterministic under a fixed seed.
type HeuristicAnnotator struct {
	vocab Vocabulary

	mu  sync.Mutex
	rng *rand.Rand
}

// NewHeuristicAnnotator creates a heuristic annotator over the given
// vocabulary, drawing random fallbacks from a source seeded with seed.
func NewHeuristicAnnotator(vocab Vocabulary, seed int64) *HeuristicAnnotator {
	return &HeuristicAnnotator{
		vocab: vocab,
		rng:   rand.New(rand.NewSource(seed)),
	}
}

// Tag annotates text. It never fails; a heuristic with no network dependency
// has nothing transient to report.
func (h *HeuristicAnnotator) Tag(_ context.Context, text string) (Annotation, error) {
	lower := strings.ToLower(text)

	a := Annotation{
		Emotions: mentioned(lower, h.vocab.Emotions),
		Topics:   mentioned(lower, h.vocab.Topics),
		Traits:   mentioned(lower, h.vocab.Traits),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if len(a.Emotions) == 0 {
		a.Emotions = h.sample(h.vocab.Emotions, 1+h.rng.Intn(2))
	}
	if len(a.Topics) == 0 {
		a.Topics = h.sample(h.vocab.Topics, 1+h.rng.Intn(3))
	}
	if len(a.Traits) == 0 {
		a.Traits = h.sample(h.vocab.Traits, 1+h.rng.Intn(2))
	}
	a.Importance = 3 + h.rng.Intn(6) // 3-8, mid-band scores for untagged text

	return sanitize(a, h.vocab), nil
}

// mentioned returns the vocabulary names that literally appear in the text.
func mentioned(lowerText string, names []string) []string {
	var hits []string
	for _, n := range names {
		if strings.Contains(lowerText, n) {
			hits = append(hits, n)
		}
	}
	return hits
}

// sample picks n distinct names from the list. Caller holds h.mu.
func (h *HeuristicAnnotator) sample(names []string, n int) []string {
	if n >= len(names) {
		out := make([]string, len(names))
		copy(out, names)
		return out
	}
	idx := h.rng.Perm(len(names))[:n]
	out := make([]string, 0, n)
	for _, i := range idx {
		out = append(out, names[i])
	}
	return out
}

var _ Annotator = (*HeuristicAnnotator)(nil)
