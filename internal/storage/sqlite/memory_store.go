package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/hans1329/whoomi-memory/internal/embedding"
	"github.com/hans1329/whoomi-memory/internal/storage"
	"github.com/hans1329/whoomi-memory/pkg/types"
)

// MemoryStore implements storage.MemoryStore using SQLite.
type MemoryStore struct {
	db *sql.DB
}

// NewMemoryStore opens a SQLite database, configures WAL mode, and creates
// the schema.
func NewMemoryStore(dsn string) (*MemoryStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one concurrent writer. A single open connection
	// serialises writes and avoids SQLITE_BUSY errors under concurrent load;
	// WAL mode lets readers proceed without blocking the writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &MemoryStore{db: db}, nil
}

// GetDB exposes the underlying connection for setup tooling.
func (s *MemoryStore) GetDB() *sql.DB { return s.db }

// Close releases the database connection.
func (s *MemoryStore) Close() error { return s.db.Close() }

// tagKindSQL maps a vocabulary kind to its table and join-table names. The
// names are compile-time constants, never caller input.
type tagKindSQL struct {
	table     string
	joinTable string
	joinCol   string
}

func kindSQL(kind types.TagKind) (tagKindSQL, error) {
	switch kind {
	case types.TagEmotion:
		return tagKindSQL{"emotions", "memory_emotions", "emotion_id"}, nil
	case types.TagTopic:
		return tagKindSQL{"topics", "memory_topics", "topic_id"}, nil
	case types.TagTrait:
		return tagKindSQL{"traits", "memory_traits", "trait_id"}, nil
	}
	return tagKindSQL{}, fmt.Errorf("%w: unknown tag kind %q", storage.ErrInvalidInput, kind)
}

// Create persists a memory and its tag memberships in one transaction.
// Tag names outside a vocabulary are dropped by the membership INSERT's
// SELECT filter rather than raised as errors.
func (s *MemoryStore) Create(ctx context.Context, memory *types.Memory) error {
	if memory == nil || memory.ID == "" {
		return fmt.Errorf("%w: memory with ID is required", storage.ErrInvalidInput)
	}
	if memory.Text == "" {
		return fmt.Errorf("%w: memory text is required", storage.ErrInvalidInput)
	}
	if !types.ValidRole(memory.Role) {
		return fmt.Errorf("%w: invalid role %q", storage.ErrInvalidInput, memory.Role)
	}
	if memory.Timestamp.IsZero() {
		memory.Timestamp = time.Now().UTC()
	}
	if memory.Importance == 0 {
		memory.Importance = types.DefaultImportance
	}

	var metadataJSON []byte
	if memory.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(memory.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO memories (id, dopple_id, user_id, text, role, timestamp, importance, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		memory.ID, memory.DoppleID, memory.UserID, memory.Text, string(memory.Role),
		memory.Timestamp, memory.Importance, nullableBytes(metadataJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to insert memory: %w", err)
	}

	memory.Emotions, err = attachTags(ctx, tx, memory.ID, types.TagEmotion, memory.Emotions)
	if err != nil {
		return err
	}
	memory.Topics, err = attachTags(ctx, tx, memory.ID, types.TagTopic, memory.Topics)
	if err != nil {
		return err
	}
	memory.Traits, err = attachTags(ctx, tx, memory.ID, types.TagTrait, memory.Traits)
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit memory: %w", err)
	}
	return nil
}

// attachTags inserts membership rows for the vocabulary entries whose names
// appear in names, and returns the names that were actually attached (the
// intersection with the vocabulary, in catalog order).
func attachTags(ctx context.Context, tx *sql.Tx, memoryID string, kind types.TagKind, names []string) ([]string, error) {
	if len(names) == 0 {
		return nil, nil
	}
	k, err := kindSQL(kind)
	if err != nil {
		return nil, err
	}

	placeholders, args := inArgs(names)
	insert := fmt.Sprintf(`
		INSERT OR IGNORE INTO %s (memory_id, %s)
		SELECT ?, id FROM %s WHERE name IN (%s)`,
		k.joinTable, k.joinCol, k.table, placeholders)

	if _, err := tx.ExecContext(ctx, insert, append([]interface{}{memoryID}, args...)...); err != nil {
		return nil, fmt.Errorf("failed to attach %s tags: %w", kind, err)
	}

	query := fmt.Sprintf(`
		SELECT t.name FROM %s j JOIN %s t ON t.id = j.%s
		WHERE j.memory_id = ? ORDER BY t.name`,
		k.joinTable, k.table, k.joinCol)

	rows, err := tx.QueryContext(ctx, query, memoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to read attached %s tags: %w", kind, err)
	}
	defer rows.Close()

	var kept []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		kept = append(kept, name)
	}
	return kept, rows.Err()
}

// Get retrieves a memory by ID including its tag names.
func (s *MemoryStore) Get(ctx context.Context, id string) (*types.Memory, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: memory ID is required", storage.ErrInvalidInput)
	}

	var (
		memory       types.Memory
		role         string
		metadataJSON sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, dopple_id, user_id, text, role, timestamp, importance, metadata
		FROM memories WHERE id = ?`, id).Scan(
		&memory.ID, &memory.DoppleID, &memory.UserID, &memory.Text,
		&role, &memory.Timestamp, &memory.Importance, &metadataJSON,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get memory: %w", err)
	}

	memory.Role = types.Role(role)
	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &memory.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	if err := s.loadTagNames(ctx, &memory); err != nil {
		return nil, err
	}
	return &memory, nil
}

// loadTagNames fills the three tag-name slices for a single memory.
func (s *MemoryStore) loadTagNames(ctx context.Context, memory *types.Memory) error {
	for _, kind := range []types.TagKind{types.TagEmotion, types.TagTopic, types.TagTrait} {
		k, err := kindSQL(kind)
		if err != nil {
			return err
		}
		query := fmt.Sprintf(`
			SELECT t.name FROM %s j JOIN %s t ON t.id = j.%s
			WHERE j.memory_id = ? ORDER BY t.name`,
			k.joinTable, k.table, k.joinCol)

		rows, err := s.db.QueryContext(ctx, query, memory.ID)
		if err != nil {
			return fmt.Errorf("failed to load %s tags: %w", kind, err)
		}

		var names []string
		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				rows.Close()
				return err
			}
			names = append(names, name)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()

		switch kind {
		case types.TagEmotion:
			memory.Emotions = names
		case types.TagTopic:
			memory.Topics = names
		case types.TagTrait:
			memory.Traits = names
		}
	}
	return nil
}

// Delete removes a memory. Foreign keys cascade to its embedding and tag
// memberships.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: memory ID is required", storage.ErrInvalidInput)
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete memory: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// AttachEmbedding stores the embedding for a memory. The primary key on
// embeddings.memory_id makes the second of two racing attachers fail with
// ErrDuplicateEmbedding instead of overwriting the first.
func (s *MemoryStore) AttachEmbedding(ctx context.Context, memoryID string, vector []float64, model string) error {
	if memoryID == "" {
		return fmt.Errorf("%w: memory ID is required", storage.ErrInvalidInput)
	}
	if len(vector) == 0 {
		return fmt.Errorf("%w: embedding vector cannot be empty", storage.ErrInvalidInput)
	}
	if model == "" {
		return fmt.Errorf("%w: model is required", storage.ErrInvalidInput)
	}

	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM memories WHERE id = ?`, memoryID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check memory: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO embeddings (memory_id, vector, dimension, model)
		VALUES (?, ?, ?, ?)`,
		memoryID, embedding.Encode(vector), len(vector), model,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrDuplicateEmbedding
		}
		return fmt.Errorf("failed to store embedding: %w", err)
	}
	return nil
}

// GetEmbedding returns the embedding for a memory.
func (s *MemoryStore) GetEmbedding(ctx context.Context, memoryID string) (*types.Embedding, error) {
	if memoryID == "" {
		return nil, fmt.Errorf("%w: memory ID is required", storage.ErrInvalidInput)
	}

	var (
		blob      []byte
		dimension int
		model     string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT vector, dimension, model FROM embeddings WHERE memory_id = ?`, memoryID).
		Scan(&blob, &dimension, &model)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get embedding: %w", err)
	}

	vector, err := embedding.Decode(blob)
	if err != nil {
		return nil, fmt.Errorf("failed to decode embedding: %w", err)
	}
	if len(vector) != dimension {
		return nil, fmt.Errorf("embedding for %s has %d values, recorded dimension %d",
			memoryID, len(vector), dimension)
	}

	return &types.Embedding{MemoryID: memoryID, Vector: vector, Model: model}, nil
}

// ScanCandidates returns every embedded memory within scope. Memories
// without an embedding never appear; they are searchable only by metadata.
func (s *MemoryStore) ScanCandidates(ctx context.Context, scope storage.ScopeFilter) ([]storage.Candidate, error) {
	query := `
		SELECT m.id, m.dopple_id, m.user_id, m.text, m.role, m.timestamp, m.importance, m.metadata,
		       e.vector, e.model
		FROM memories m
		JOIN embeddings e ON e.memory_id = m.id`

	conditions, args := scopeConditions(scope, "m")
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY m.timestamp DESC, m.id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to scan candidates: %w", err)
	}
	defer rows.Close()

	var candidates []storage.Candidate
	for rows.Next() {
		var (
			c            storage.Candidate
			role         string
			metadataJSON sql.NullString
			blob         []byte
		)
		err := rows.Scan(
			&c.Memory.ID, &c.Memory.DoppleID, &c.Memory.UserID, &c.Memory.Text,
			&role, &c.Memory.Timestamp, &c.Memory.Importance, &metadataJSON,
			&blob, &c.Model,
		)
		if err != nil {
			return nil, fmt.Errorf("scan candidate row: %w", err)
		}
		c.Memory.Role = types.Role(role)
		if metadataJSON.Valid && metadataJSON.String != "" {
			if err := json.Unmarshal([]byte(metadataJSON.String), &c.Memory.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal candidate metadata: %w", err)
			}
		}
		if c.Vector, err = embedding.Decode(blob); err != nil {
			return nil, fmt.Errorf("decode candidate embedding: %w", err)
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	for i := range candidates {
		if err := s.loadTagNames(ctx, &candidates[i].Memory); err != nil {
			return nil, err
		}
	}
	return candidates, nil
}

// FilterByMetadata returns memories matching all provided filters, newest
// first with ID descending as the tie-break.
func (s *MemoryStore) FilterByMetadata(ctx context.Context, filter storage.MetadataFilter) ([]types.Memory, error) {
	filter.Normalize()

	query := `
		SELECT m.id, m.dopple_id, m.user_id, m.text, m.role, m.timestamp, m.importance, m.metadata
		FROM memories m`

	conditions, args := scopeConditions(filter.Scope, "m")

	if filter.MinImportance > 0 {
		conditions = append(conditions, "m.importance >= ?")
		args = append(args, filter.MinImportance)
	}
	if !filter.Start.IsZero() {
		conditions = append(conditions, "m.timestamp >= ?")
		args = append(args, filter.Start)
	}
	if !filter.End.IsZero() {
		conditions = append(conditions, "m.timestamp <= ?")
		args = append(args, filter.End)
	}

	for kind, names := range map[types.TagKind][]string{
		types.TagEmotion: filter.Emotions,
		types.TagTopic:   filter.Topics,
		types.TagTrait:   filter.Traits,
	} {
		if len(names) == 0 {
			continue
		}
		k, err := kindSQL(kind)
		if err != nil {
			return nil, err
		}
		placeholders, tagArgs := inArgs(names)
		conditions = append(conditions, fmt.Sprintf(`EXISTS (
			SELECT 1 FROM %s j JOIN %s t ON t.id = j.%s
			WHERE j.memory_id = m.id AND t.name IN (%s))`,
			k.joinTable, k.table, k.joinCol, placeholders))
		args = append(args, tagArgs...)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY m.timestamp DESC, m.id DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to filter memories: %w", err)
	}
	defer rows.Close()

	var memories []types.Memory
	for rows.Next() {
		var (
			memory       types.Memory
			role         string
			metadataJSON sql.NullString
		)
		err := rows.Scan(
			&memory.ID, &memory.DoppleID, &memory.UserID, &memory.Text,
			&role, &memory.Timestamp, &memory.Importance, &metadataJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("scan memory row: %w", err)
		}
		memory.Role = types.Role(role)
		if metadataJSON.Valid && metadataJSON.String != "" {
			if err := json.Unmarshal([]byte(metadataJSON.String), &memory.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal metadata: %w", err)
			}
		}
		memories = append(memories, memory)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	for i := range memories {
		if err := s.loadTagNames(ctx, &memories[i]); err != nil {
			return nil, err
		}
	}
	return memories, nil
}

// AggregateTagCounts returns the topN most frequent tags of one kind within
// scope. Ties break by tag name ascending so rankings are deterministic.
func (s *MemoryStore) AggregateTagCounts(ctx context.Context, scope storage.ScopeFilter, kind types.TagKind, topN int) ([]types.TagCount, error) {
	if topN < 1 {
		topN = 5
	}
	k, err := kindSQL(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT t.name, COUNT(*) AS cnt
		FROM %s j
		JOIN %s t ON t.id = j.%s
		JOIN memories m ON m.id = j.memory_id`,
		k.joinTable, k.table, k.joinCol)

	conditions, args := scopeConditions(scope, "m")
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " GROUP BY t.name ORDER BY cnt DESC, t.name ASC LIMIT ?"
	args = append(args, topN)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate %s counts: %w", kind, err)
	}
	defer rows.Close()

	var counts []types.TagCount
	for rows.Next() {
		var tc types.TagCount
		if err := rows.Scan(&tc.Name, &tc.Count); err != nil {
			return nil, err
		}
		counts = append(counts, tc)
	}
	return counts, rows.Err()
}

// CountByRole returns total and per-role counts for the scope, independent
// of embedding presence.
func (s *MemoryStore) CountByRole(ctx context.Context, scope storage.ScopeFilter) (storage.RoleCounts, error) {
	query := `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN role = 'user' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN role = 'dopple' THEN 1 ELSE 0 END), 0)
		FROM memories m`

	conditions, args := scopeConditions(scope, "m")
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	var counts storage.RoleCounts
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&counts.Total, &counts.User, &counts.Dopple)
	if err != nil {
		return storage.RoleCounts{}, fmt.Errorf("failed to count memories: %w", err)
	}
	return counts, nil
}

// SeedVocabularies inserts the fixed catalogs, skipping names already
// present. Idempotent.
func (s *MemoryStore) SeedVocabularies(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, kind := range []types.TagKind{types.TagEmotion, types.TagTopic, types.TagTrait} {
		k, err := kindSQL(kind)
		if err != nil {
			return err
		}
		insert := fmt.Sprintf(`
			INSERT INTO %s (id, name, description, intensity)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(name) DO NOTHING`, k.table)

		for _, tag := range storage.SeedCatalog(kind) {
			var intensity interface{}
			if tag.Intensity > 0 {
				intensity = tag.Intensity
			}
			if _, err := tx.ExecContext(ctx, insert, uuid.NewString(), tag.Name, tag.Description, intensity); err != nil {
				return fmt.Errorf("failed to seed %s %q: %w", kind, tag.Name, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}
	return nil
}

// VocabularyNames lists the allowed tag names for a kind, sorted ascending.
func (s *MemoryStore) VocabularyNames(ctx context.Context, kind types.TagKind) ([]string, error) {
	k, err := kindSQL(kind)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT name FROM %s ORDER BY name`, k.table))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s vocabulary: %w", kind, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// scopeConditions builds the conjunctive WHERE fragments for a scope filter.
func scopeConditions(scope storage.ScopeFilter, alias string) ([]string, []interface{}) {
	var conditions []string
	var args []interface{}
	if scope.DoppleID != "" {
		conditions = append(conditions, alias+".dopple_id = ?")
		args = append(args, scope.DoppleID)
	}
	if scope.UserID != "" {
		conditions = append(conditions, alias+".user_id = ?")
		args = append(args, scope.UserID)
	}
	return conditions, args
}

// inArgs builds a "?, ?, ?" placeholder list and the matching args slice.
func inArgs(values []string) (string, []interface{}) {
	placeholders := make([]string, len(values))
	args := make([]interface{}, len(values))
	for i, v := range values {
		placeholders[i] = "?"
		args[i] = v
	}
	return strings.Join(placeholders, ", "), args
}

// isUniqueViolation reports whether err is a SQLite UNIQUE/PRIMARY KEY
// constraint failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func nullableBytes(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return b
}

var _ storage.MemoryStore = (*MemoryStore)(nil)
