// Package sqlite provides the SQLite implementation of storage.MemoryStore.
package sqlite

// Schema contains the SQL statements to create the database schema.
//
// The embeddings table keys on memory_id, which is what enforces the
// one-embedding-per-memory invariant: a losing concurrent attach hits the
// primary-key constraint instead of silently overwriting. Tag memberships
// live in join tables keyed by (memory_id, tag id) and cascade with the
// memory; the tag catalogs themselves are never deleted.
const Schema = `
-- Memories table: conversation fragments owned by a dopple/user pair
CREATE TABLE IF NOT EXISTS memories (
    id TEXT PRIMARY KEY,
    dopple_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    text TEXT NOT NULL,
    role TEXT NOT NULL CHECK (role IN ('user', 'dopple')),
    timestamp TIMESTAMP NOT NULL,
    importance INTEGER NOT NULL DEFAULT 5 CHECK (importance BETWEEN 1 AND 10),
    metadata TEXT
);

CREATE INDEX IF NOT EXISTS idx_memories_dopple_id ON memories(dopple_id);
CREATE INDEX IF NOT EXISTS idx_memories_user_id ON memories(user_id);
CREATE INDEX IF NOT EXISTS idx_memories_timestamp ON memories(timestamp);

-- Embeddings table: at most one vector per memory
CREATE TABLE IF NOT EXISTS embeddings (
    memory_id TEXT PRIMARY KEY,
    vector BLOB NOT NULL,
    dimension INTEGER NOT NULL,
    model TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,

    FOREIGN KEY (memory_id) REFERENCES memories(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_embeddings_model ON embeddings(model);

-- Tag vocabulary tables: closed catalogs seeded once at initialization
CREATE TABLE IF NOT EXISTS emotions (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    description TEXT,
    intensity INTEGER
);

CREATE TABLE IF NOT EXISTS topics (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    description TEXT,
    intensity INTEGER
);

CREATE TABLE IF NOT EXISTS traits (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    description TEXT,
    intensity INTEGER
);

-- Membership join tables
CREATE TABLE IF NOT EXISTS memory_emotions (
    memory_id TEXT NOT NULL,
    emotion_id TEXT NOT NULL,
    PRIMARY KEY (memory_id, emotion_id),
    FOREIGN KEY (memory_id) REFERENCES memories(id) ON DELETE CASCADE,
    FOREIGN KEY (emotion_id) REFERENCES emotions(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS memory_topics (
    memory_id TEXT NOT NULL,
    topic_id TEXT NOT NULL,
    PRIMARY KEY (memory_id, topic_id),
    FOREIGN KEY (memory_id) REFERENCES memories(id) ON DELETE CASCADE,
    FOREIGN KEY (topic_id) REFERENCES topics(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS memory_traits (
    memory_id TEXT NOT NULL,
    trait_id TEXT NOT NULL,
    PRIMARY KEY (memory_id, trait_id),
    FOREIGN KEY (memory_id) REFERENCES memories(id) ON DELETE CASCADE,
    FOREIGN KEY (trait_id) REFERENCES traits(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_memory_emotions_tag ON memory_emotions(emotion_id);
CREATE INDEX IF NOT EXISTS idx_memory_topics_tag ON memory_topics(topic_id);
CREATE INDEX IF NOT EXISTS idx_memory_traits_tag ON memory_traits(trait_id);
`
