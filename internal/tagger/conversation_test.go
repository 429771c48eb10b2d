package tagger

import (
	"context"
	"errors"
	"testing"

	"github.com/hans1329/whoomi-memory/pkg/types"
)

// scriptedAnnotator replays a fixed sequence of annotations.
type scriptedAnnotator struct {
	annotations []Annotation
	errOn       int // 1-based call index that fails; 0 disables
	calls       int
}

func (s *scriptedAnnotator) Tag(context.Context, string) (Annotation, error) {
	s.calls++
	if s.errOn != 0 && s.calls == s.errOn {
		return Annotation{}, errors.New("tagging failed")
	}
	return s.annotations[(s.calls-1)%len(s.annotations)], nil
}

func TestAnalyzeConversation(t *testing.T) {
	a := &scriptedAnnotator{annotations: []Annotation{
		{Emotions: []string{"happy", "angry"}, Topics: []string{"family"}, Traits: []string{"creative"}},
		{Emotions: []string{"happy", "sad"}, Topics: []string{"family"}, Traits: []string{"creative"}},
		{Emotions: []string{"happy", "sad"}, Topics: []string{"work"}, Traits: []string{"analytical"}},
		{Emotions: []string{"curious"}, Topics: []string{"family"}, Traits: nil},
	}}

	messages := []ConversationMessage{
		{Text: "one", Role: "user"},
		{Text: "two", Role: "dopple"},
		{Text: "three", Role: "user"},
		{Text: "four", Role: "user"},
	}

	got := AnalyzeConversation(context.Background(), a, messages)

	if got.MessageCount != 4 {
		t.Errorf("MessageCount = %d, want 4", got.MessageCount)
	}
	// happy=3, sad=2, then angry and curious tie at 1; name ascending
	// picks angry for the third slot.
	wantEmotions := []types.TagCount{{Name: "happy", Count: 3}, {Name: "sad", Count: 2}, {Name: "angry", Count: 1}}
	if len(got.TopEmotions) != len(wantEmotions) {
		t.Fatalf("TopEmotions = %v, want %v", got.TopEmotions, wantEmotions)
	}
	for i, want := range wantEmotions {
		if got.TopEmotions[i] != want {
			t.Errorf("TopEmotions[%d] = %v, want %v", i, got.TopEmotions[i], want)
		}
	}
	if got.TopTopics[0].Name != "family" || got.TopTopics[0].Count != 3 {
		t.Errorf("TopTopics[0] = %v, want family=3", got.TopTopics[0])
	}
	if got.Timestamp == "" {
		t.Error("Timestamp should be set")
	}
}

func TestAnalyzeConversationSkipsFailedMessages(t *testing.T) {
	a := &scriptedAnnotator{
		annotations: []Annotation{{Emotions: []string{"happy"}}},
		errOn:       2,
	}

	got := AnalyzeConversation(context.Background(), a, []ConversationMessage{
		{Text: "one", Role: "user"},
		{Text: "two", Role: "user"},
		{Text: "three", Role: "user"},
	})

	// The failed message still counts toward the total but contributes no
	// tags.
	if got.MessageCount != 3 {
		t.Errorf("MessageCount = %d, want 3", got.MessageCount)
	}
	if len(got.TopEmotions) != 1 || got.TopEmotions[0].Count != 2 {
		t.Errorf("TopEmotions = %v, want happy=2", got.TopEmotions)
	}
}

func TestAnalyzeConversationEmpty(t *testing.T) {
	got := AnalyzeConversation(context.Background(), NewHeuristicAnnotator(testVocab, 1), nil)

	if got.MessageCount != 0 {
		t.Errorf("MessageCount = %d, want 0", got.MessageCount)
	}
	if got.TopEmotions == nil || len(got.TopEmotions) != 0 {
		t.Errorf("TopEmotions = %v, want empty non-nil slice", got.TopEmotions)
	}
}
