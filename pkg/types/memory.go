package types

import "time"

// Role identifies which side of a conversation a memory originated from.
type Role string

const (
	// RoleUser marks a memory spoken by the human user.
	RoleUser Role = "user"

	// RoleDopple marks a memory spoken by the dopple persona.
	RoleDopple Role = "dopple"
)

// Memory represents a single remembered conversation fragment belonging to a
// dopple/user pair. Tag slices hold vocabulary names only; the tag catalogs
// themselves live in the store.
type Memory struct {
	ID        string    `json:"id"`         // Unique identifier (UUID v4)
	DoppleID  string    `json:"dopple_id"`  // Owning dopple
	UserID    string    `json:"user_id"`    // Owning user
	Text      string    `json:"text"`       // Free-text body
	Role      Role      `json:"role"`       // "user" or "dopple"
	Timestamp time.Time `json:"timestamp"`  // Creation time, immutable after Create
	Importance int      `json:"importance"` // 1-10 scale, default 5

	// Tag memberships, always subsets of the seeded vocabularies.
	Emotions []string `json:"emotions"`
	Topics   []string `json:"topics"`
	Traits   []string `json:"traits"`

	// Arbitrary structured metadata; the store treats it as opaque JSON.
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Embedding is the vector representation of a memory's text. A memory has at
// most one embedding; the store enforces the one-to-one relation. Embeddings
// are never updated in place.
type Embedding struct {
	MemoryID string    `json:"memory_id"`
	Vector   []float64 `json:"vector"`
	Model    string    `json:"model"` // Embedding model that produced the vector
}

// TagKind selects one of the three closed tag vocabularies.
type TagKind string

const (
	TagEmotion TagKind = "emotion"
	TagTopic   TagKind = "topic"
	TagTrait   TagKind = "trait"
)

// Tag is an entry in one of the seeded vocabularies. Intensity is 1-10 when
// set; 0 means the vocabulary does not track intensity for this entry.
type Tag struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Intensity   int    `json:"intensity,omitempty"`
}

// TagCount pairs a tag name with how many in-scope memories carry it.
type TagCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// MemoryStats summarizes a dopple's (optionally user-scoped) memory corpus.
// Counts cover all memories in scope regardless of embedding presence.
type MemoryStats struct {
	TotalMemories  int        `json:"total_memories"`
	UserMemories   int        `json:"user_memories"`
	DoppleMemories int        `json:"dopple_memories"`
	TopEmotions    []TagCount `json:"top_emotions"`
	TopTopics      []TagCount `json:"top_topics"`
	TopTraits      []TagCount `json:"top_traits"`
}

// ScoredMemory is a similarity-search hit: the memory plus its cosine
// similarity to the query embedding.
type ScoredMemory struct {
	Memory     Memory  `json:"memory"`
	Similarity float64 `json:"similarity"`
}
