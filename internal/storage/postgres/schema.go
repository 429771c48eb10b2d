// Package postgres provides the PostgreSQL implementation of
// storage.MemoryStore.
package postgres

// Schema contains the SQL statements to create the database schema for
// PostgreSQL. All statements are idempotent.
const Schema = `
-- Memories table: conversation fragments owned by a dopple/user pair
CREATE TABLE IF NOT EXISTS memories (
    id TEXT PRIMARY KEY,
    dopple_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    text TEXT NOT NULL,
    role TEXT NOT NULL CHECK (role IN ('user', 'dopple')),
    timestamp TIMESTAMPTZ NOT NULL,
    importance INTEGER NOT NULL DEFAULT 5 CHECK (importance BETWEEN 1 AND 10),
    metadata JSONB
);

CREATE INDEX IF NOT EXISTS idx_memories_dopple_id ON memories(dopple_id);
CREATE INDEX IF NOT EXISTS idx_memories_user_id ON memories(user_id);
CREATE INDEX IF NOT EXISTS idx_memories_timestamp ON memories(timestamp);

-- Embeddings table: at most one vector per memory. The binary column is the
-- source of truth; embedding_vec is an optional pgvector mirror added by
-- MigrationPgvector when the extension is installed.
CREATE TABLE IF NOT EXISTS embeddings (
    memory_id TEXT PRIMARY KEY REFERENCES memories(id) ON DELETE CASCADE,
    vector BYTEA NOT NULL,
    dimension INTEGER NOT NULL,
    model TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
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
    memory_id TEXT NOT NULL REFERENCES memories(id) ON DELETE CASCADE,
    emotion_id TEXT NOT NULL REFERENCES emotions(id) ON DELETE CASCADE,
    PRIMARY KEY (memory_id, emotion_id)
);

CREATE TABLE IF NOT EXISTS memory_topics (
    memory_id TEXT NOT NULL REFERENCES memories(id) ON DELETE CASCADE,
    topic_id TEXT NOT NULL REFERENCES topics(id) ON DELETE CASCADE,
    PRIMARY KEY (memory_id, topic_id)
);

CREATE TABLE IF NOT EXISTS memory_traits (
    memory_id TEXT NOT NULL REFERENCES memories(id) ON DELETE CASCADE,
    trait_id TEXT NOT NULL REFERENCES traits(id) ON DELETE CASCADE,
    PRIMARY KEY (memory_id, trait_id)
);

CREATE INDEX IF NOT EXISTS idx_memory_emotions_tag ON memory_emotions(emotion_id);
CREATE INDEX IF NOT EXISTS idx_memory_topics_tag ON memory_topics(topic_id);
CREATE INDEX IF NOT EXISTS idx_memory_traits_tag ON memory_traits(trait_id);
`

// MigrationPgvector adds the pgvector mirror column and its cosine index.
// Applied only when CREATE EXTENSION vector succeeded.
const MigrationPgvector = `
ALTER TABLE embeddings ADD COLUMN IF NOT EXISTS embedding_vec vector(1536);

CREATE INDEX IF NOT EXISTS idx_embeddings_vec_cosine
    ON embeddings USING ivfflat (embedding_vec vector_cosine_ops)
    WITH (lists = 100);
`
