package storage

import "github.com/hans1329/whoomi-memory/pkg/types"

// Fixed tag catalogs seeded at initialization. The vocabularies are closed:
// tagging may only reference these names, and unknown names are dropped when
// memberships are persisted.

// SeedEmotions is the emotion vocabulary catalog.
var SeedEmotions = []types.Tag{
	{Name: "happy", Description: "Feeling or showing pleasure or contentment", Intensity: 7},
	{Name: "sad", Description: "Feeling or showing sorrow; unhappy", Intensity: 6},
	{Name: "angry", Description: "Feeling or showing strong annoyance, displeasure, or hostility", Intensity: 8},
	{Name: "surprised", Description: "Feeling or showing surprise", Intensity: 5},
	{Name: "afraid", Description: "Feeling fear or anxiety", Intensity: 7},
	{Name: "disgusted", Description: "Feeling or showing strong dislike or disapproval", Intensity: 6},
	{Name: "neutral", Description: "Not feeling or showing any strong emotion", Intensity: 3},
	{Name: "curious", Description: "Eager to know or learn something", Intensity: 6},
	{Name: "excited", Description: "Very enthusiastic and eager", Intensity: 8},
	{Name: "thoughtful", Description: "Absorbed in or involving thought", Intensity: 5},
}

// SeedTopics is the topic vocabulary catalog. Topics carry no intensity.
var SeedTopics = []types.Tag{
	{Name: "personal", Description: "Personal information about the user or dopple"},
	{Name: "work", Description: "Discussion about work-related topics"},
	{Name: "family", Description: "Discussion about family members or family relations"},
	{Name: "relationships", Description: "Discussion about relationships"},
	{Name: "hobbies", Description: "Discussion about hobbies and interests"},
	{Name: "education", Description: "Discussion about education or learning"},
	{Name: "health", Description: "Discussion about health and wellness"},
	{Name: "entertainment", Description: "Discussion about movies, games, books, etc."},
	{Name: "technology", Description: "Discussion about technology topics"},
	{Name: "philosophy", Description: "Discussion about philosophical concepts"},
	{Name: "art", Description: "Discussion about art and creativity"},
	{Name: "science", Description: "Discussion about scientific topics"},
	{Name: "ethics", Description: "Discussion about ethical dilemmas and concepts"},
}

// SeedTraits is the personality-trait vocabulary catalog.
var SeedTraits = []types.Tag{
	{Name: "creative", Description: "Showing creativity and imagination", Intensity: 7},
	{Name: "analytical", Description: "Relating to or using analysis", Intensity: 6},
	{Name: "empathetic", Description: "Showing an ability to understand and share the feelings of another", Intensity: 8},
	{Name: "logical", Description: "Characterized by clear, sound reasoning", Intensity: 7},
	{Name: "decisive", Description: "Having or showing the ability to make decisions quickly and effectively", Intensity: 6},
	{Name: "adaptable", Description: "Able to adjust to new conditions or situations", Intensity: 7},
	{Name: "optimistic", Description: "Hopeful and confident about the future", Intensity: 6},
	{Name: "pessimistic", Description: "Tending to see the worst aspect of things", Intensity: 4},
	{Name: "curious", Description: "Eager to know or learn something", Intensity: 8},
	{Name: "cautious", Description: "Careful to avoid potential problems or dangers", Intensity: 5},
	{Name: "adventurous", Description: "Willing to take risks and try new experiences", Intensity: 7},
	{Name: "organized", Description: "Arranged in a systematic way", Intensity: 6},
	{Name: "spontaneous", Description: "Done or occurring as a result of a sudden impulse", Intensity: 7},
}

// SeedCatalog returns the seed tags for a vocabulary kind.
func SeedCatalog(kind types.TagKind) []types.Tag {
	switch kind {
	case types.TagEmotion:
		return SeedEmotions
	case types.TagTopic:
		return SeedTopics
	case types.TagTrait:
		return SeedTraits
	}
	return nil
}
