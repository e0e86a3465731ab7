// Package postgres implements storage.Store on PostgreSQL. When the
// pgvector extension is available the store also serves as the
// vector-search index, so a Postgres deployment needs no separate
// embedded index.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/PandyaSumit/mini--AI-tutor-sub006/internal/storage"
	"github.com/PandyaSumit/mini--AI-tutor-sub006/internal/vector"
	"github.com/PandyaSumit/mini--AI-tutor-sub006/pkg/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS facts (
	id               TEXT PRIMARY KEY,
	user_id          TEXT NOT NULL,
	status           TEXT NOT NULL DEFAULT 'active',
	type             TEXT NOT NULL,
	category         TEXT NOT NULL DEFAULT '',
	topic            TEXT NOT NULL DEFAULT '',
	confidence       DOUBLE PRECISION NOT NULL DEFAULT 0,
	importance_score DOUBLE PRECISION NOT NULL DEFAULT 0.5,
	access_frequency INTEGER NOT NULL DEFAULT 0,
	created_at       TIMESTAMPTZ NOT NULL,
	last_accessed_at TIMESTAMPTZ,
	doc              JSONB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_facts_user_status ON facts(user_id, status);

CREATE TABLE IF NOT EXISTS profiles (
	user_id    TEXT PRIMARY KEY,
	doc        JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS turns (
	id              TEXT PRIMARY KEY,
	user_id         TEXT NOT NULL,
	conversation_id TEXT NOT NULL,
	role            TEXT NOT NULL,
	content         TEXT NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_turns_conversation ON turns(conversation_id, created_at);
`

// embeddingsSchema is applied only when the pgvector extension loads.
const embeddingsSchema = `
CREATE TABLE IF NOT EXISTS embeddings (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	embedding  vector NOT NULL,
	PRIMARY KEY (collection, id)
);
`

// Store implements storage.Store, and vector.Index when pgvector is
// present.
type Store struct {
	db                *sql.DB
	logger            *slog.Logger
	pgvectorAvailable bool
}

var (
	_ storage.Store = (*Store)(nil)
	_ vector.Index  = (*Store)(nil)
)

// Open connects to PostgreSQL and applies the schema. The pgvector
// extension is optional: without it vector search degrades to empty
// results and the engine falls back on the remaining memory tiers.
func Open(dsn string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: failed to ping database: %w", err)
	}

	s := &Store{db: db, logger: logger}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: failed to apply schema: %w", err)
	}

	if _, err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		logger.Warn("pgvector extension unavailable, vector search disabled", "error", err)
	} else if _, err := db.Exec(embeddingsSchema); err != nil {
		logger.Warn("failed to create embeddings table, vector search disabled", "error", err)
	} else {
		s.pgvectorAvailable = true
	}

	return s, nil
}

// VectorSearchAvailable reports whether this store can serve as the
// vector index.
func (s *Store) VectorSearchAvailable() bool { return s.pgvectorAvailable }

// Close closes the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// PutFact inserts a new fact.
func (s *Store) PutFact(ctx context.Context, fact *types.MemoryFact) error {
	if err := fact.Validate(); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}

	doc, err := json.Marshal(fact)
	if err != nil {
		return fmt.Errorf("postgres: failed to marshal fact: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO facts (id, user_id, status, type, category, topic,
			confidence, importance_score, access_frequency,
			created_at, last_accessed_at, doc)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		fact.ID, fact.UserID, string(fact.Status), string(fact.Type),
		fact.Namespace.Category, fact.Namespace.Topic,
		fact.Source.Confidence, fact.Importance.Score,
		fact.Importance.Factors.AccessFrequency,
		fact.Temporal.CreatedAt.UTC(), nullableTime(fact.Temporal.LastAccessedAt),
		string(doc))
	if err != nil {
		return fmt.Errorf("postgres: failed to insert fact: %w", err)
	}
	return nil
}

// GetFact retrieves a fact by ID.
func (s *Store) GetFact(ctx context.Context, id string) (*types.MemoryFact, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT doc, status, importance_score, access_frequency, last_accessed_at
		FROM facts WHERE id = $1`, id)
	fact, err := scanFact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	return fact, err
}

// UpdateFact replaces an existing fact.
func (s *Store) UpdateFact(ctx context.Context, fact *types.MemoryFact) error {
	if err := fact.Validate(); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}

	doc, err := json.Marshal(fact)
	if err != nil {
		return fmt.Errorf("postgres: failed to marshal fact: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE facts SET status = $1, type = $2, category = $3, topic = $4,
			confidence = $5, importance_score = $6, access_frequency = $7,
			last_accessed_at = $8, doc = $9
		WHERE id = $10`,
		string(fact.Status), string(fact.Type),
		fact.Namespace.Category, fact.Namespace.Topic,
		fact.Source.Confidence, fact.Importance.Score,
		fact.Importance.Factors.AccessFrequency,
		nullableTime(fact.Temporal.LastAccessedAt), string(doc),
		fact.ID)
	if err != nil {
		return fmt.Errorf("postgres: failed to update fact: %w", err)
	}
	return requireRow(result)
}

// ListFacts returns a user's facts ordered newest first.
func (s *Store) ListFacts(ctx context.Context, userID string, status types.FactStatus) ([]*types.MemoryFact, error) {
	query := `
		SELECT doc, status, importance_score, access_frequency, last_accessed_at
		FROM facts WHERE user_id = $1`
	args := []any{userID}
	if status != "" {
		query += " AND status = $2"
		args = append(args, string(status))
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to list facts: %w", err)
	}
	defer rows.Close()

	var facts []*types.MemoryFact
	for rows.Next() {
		fact, err := scanFact(rows)
		if err != nil {
			return nil, err
		}
		facts = append(facts, fact)
	}
	return facts, rows.Err()
}

// RecordAccess atomically bumps the access counter.
func (s *Store) RecordAccess(ctx context.Context, id string, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE facts
		SET access_frequency = access_frequency + 1,
			last_accessed_at = GREATEST(COALESCE(last_accessed_at, 'epoch'::timestamptz), $1)
		WHERE id = $2`, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("postgres: failed to record access: %w", err)
	}
	return requireRow(result)
}

// ListUserIDs returns the distinct fact owners.
func (s *Store) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM facts`)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to list users: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan user ID: %w", err)
		}
		users = append(users, id)
	}
	return users, rows.Err()
}

// FactStats aggregates per-user counters in a single query.
func (s *Store) FactStats(ctx context.Context, userID string) (storage.FactStats, error) {
	var stats storage.FactStats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'active' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'archived' THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(CASE WHEN status = 'active' THEN confidence END), 0),
			COALESCE(AVG(CASE WHEN status = 'active' THEN importance_score END), 0)
		FROM facts WHERE user_id = $1`, userID).Scan(
		&stats.Total, &stats.Active, &stats.Archived,
		&stats.AvgConfidence, &stats.AvgImportance)
	if err != nil {
		return storage.FactStats{}, fmt.Errorf("postgres: failed to aggregate stats: %w", err)
	}
	return stats, nil
}

// GetProfile returns the stored profile or ErrNotFound.
func (s *Store) GetProfile(ctx context.Context, userID string) (*types.UserProfile, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM profiles WHERE user_id = $1`, userID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to load profile: %w", err)
	}

	var profile types.UserProfile
	if err := json.Unmarshal(doc, &profile); err != nil {
		return nil, fmt.Errorf("postgres: failed to unmarshal profile: %w", err)
	}
	return &profile, nil
}

// PutProfile upserts the profile document.
func (s *Store) PutProfile(ctx context.Context, profile *types.UserProfile) error {
	if profile.UserID == "" {
		return fmt.Errorf("%w: profile user ID is required", storage.ErrInvalidInput)
	}

	doc, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("postgres: failed to marshal profile: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO profiles (user_id, doc, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			doc = EXCLUDED.doc,
			updated_at = EXCLUDED.updated_at`,
		profile.UserID, string(doc), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("postgres: failed to upsert profile: %w", err)
	}
	return nil
}

// AppendTurn appends one conversation turn.
func (s *Store) AppendTurn(ctx context.Context, turn *types.ConversationTurn) error {
	if turn.ID == "" || turn.UserID == "" || turn.ConversationID == "" {
		return fmt.Errorf("%w: turn ID, user ID and conversation ID are required", storage.ErrInvalidInput)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO turns (id, user_id, conversation_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		turn.ID, turn.UserID, turn.ConversationID,
		string(turn.Role), turn.Content, turn.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("postgres: failed to append turn: %w", err)
	}
	return nil
}

// ListTurns returns a conversation's turns in chronological order.
func (s *Store) ListTurns(ctx context.Context, conversationID string) ([]*types.ConversationTurn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, conversation_id, role, content, created_at
		FROM turns WHERE conversation_id = $1
		ORDER BY created_at ASC, id ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to list turns: %w", err)
	}
	defer rows.Close()

	var turns []*types.ConversationTurn
	for rows.Next() {
		var t types.ConversationTurn
		var role string
		if err := rows.Scan(&t.ID, &t.UserID, &t.ConversationID, &role, &t.Content, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan turn: %w", err)
		}
		t.Role = types.TurnRole(role)
		turns = append(turns, &t)
	}
	return turns, rows.Err()
}

// Upsert stores or replaces an embedding. Without pgvector this is a
// logged no-op so consolidation can proceed without vector support.
func (s *Store) Upsert(ctx context.Context, collection, id string, embedding []float32, _ map[string]string) error {
	if !s.pgvectorAvailable {
		s.logger.Debug("pgvector unavailable, skipping embedding upsert", "id", id)
		return nil
	}
	if id == "" || len(embedding) == 0 {
		return fmt.Errorf("%w: embedding ID and vector are required", storage.ErrInvalidInput)
	}

	vec := pgvector.NewVector(embedding)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO embeddings (collection, id, embedding) VALUES ($1, $2, $3)
		ON CONFLICT (collection, id) DO UPDATE SET embedding = EXCLUDED.embedding`,
		collection, id, vec)
	if err != nil {
		return fmt.Errorf("postgres: failed to upsert embedding: %w", err)
	}
	return nil
}

// Search returns the topK nearest neighbors by cosine similarity.
// Without pgvector it returns an empty result so retrieval degrades
// instead of failing.
func (s *Store) Search(ctx context.Context, collection string, query []float32, topK int) ([]vector.Match, error) {
	if !s.pgvectorAvailable || topK <= 0 {
		return nil, nil
	}

	vec := pgvector.NewVector(query)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, 1 - (embedding <=> $1) AS score
		FROM embeddings WHERE collection = $2
		ORDER BY embedding <=> $1
		LIMIT $3`, vec, collection, topK)
	if err != nil {
		return nil, fmt.Errorf("postgres: vector search failed: %w", err)
	}
	defer rows.Close()

	var matches []vector.Match
	for rows.Next() {
		var m vector.Match
		if err := rows.Scan(&m.ID, &m.Score); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFact(row scanner) (*types.MemoryFact, error) {
	var (
		doc          []byte
		status       string
		importance   float64
		accessCount  int
		lastAccessed sql.NullTime
	)
	if err := row.Scan(&doc, &status, &importance, &accessCount, &lastAccessed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("postgres: failed to scan fact: %w", err)
	}

	var fact types.MemoryFact
	if err := json.Unmarshal(doc, &fact); err != nil {
		return nil, fmt.Errorf("postgres: failed to unmarshal fact: %w", err)
	}

	fact.Status = types.FactStatus(status)
	fact.Importance.Score = importance
	fact.Importance.Factors.AccessFrequency = accessCount
	if lastAccessed.Valid {
		fact.Temporal.LastAccessedAt = lastAccessed.Time
	}
	return &fact, nil
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: failed to read rows affected: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}
