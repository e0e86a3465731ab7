// Package sqlite implements storage.Store on an embedded SQLite
// database via the CGo-free modernc.org/sqlite driver.
//
// Facts are stored as JSON documents alongside the scalar columns the
// query paths filter and aggregate on. The counter columns
// (access_frequency, last_accessed_at, status, importance_score) are
// authoritative and are overlaid onto the document on read, so the
// atomic access bump never has to rewrite the document blob.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/PandyaSumit/mini--AI-tutor-sub006/internal/storage"
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
	confidence       REAL NOT NULL DEFAULT 0,
	importance_score REAL NOT NULL DEFAULT 0.5,
	access_frequency INTEGER NOT NULL DEFAULT 0,
	created_at       TIMESTAMP NOT NULL,
	last_accessed_at TIMESTAMP,
	doc              TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_facts_user_status ON facts(user_id, status);

CREATE TABLE IF NOT EXISTS profiles (
	user_id    TEXT PRIMARY KEY,
	doc        TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS turns (
	id              TEXT PRIMARY KEY,
	user_id         TEXT NOT NULL,
	conversation_id TEXT NOT NULL,
	role            TEXT NOT NULL,
	content         TEXT NOT NULL,
	created_at      TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_turns_conversation ON turns(conversation_id, created_at);
`

// Store implements storage.Store on SQLite.
type Store struct {
	db *sql.DB
}

var _ storage.Store = (*Store)(nil)

// Open creates or opens the database under dataPath and applies the
// schema. The schema statements are idempotent.
func Open(dataPath string) (*Store, error) {
	if err := os.MkdirAll(dataPath, 0o755); err != nil {
		return nil, fmt.Errorf("sqlite: failed to create data dir: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dataPath, "memory.db"))
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open database: %w", err)
	}

	// WAL keeps background consolidation writes from blocking reads on
	// the interactive path.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to set busy timeout: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// PutFact inserts a new fact.
func (s *Store) PutFact(ctx context.Context, fact *types.MemoryFact) error {
	if err := fact.Validate(); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}

	doc, err := json.Marshal(fact)
	if err != nil {
		return fmt.Errorf("sqlite: failed to marshal fact: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO facts (id, user_id, status, type, category, topic,
			confidence, importance_score, access_frequency,
			created_at, last_accessed_at, doc)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		fact.ID, fact.UserID, string(fact.Status), string(fact.Type),
		fact.Namespace.Category, fact.Namespace.Topic,
		fact.Source.Confidence, fact.Importance.Score,
		fact.Importance.Factors.AccessFrequency,
		fact.Temporal.CreatedAt.UTC(), nullableTime(fact.Temporal.LastAccessedAt),
		string(doc))
	if err != nil {
		return fmt.Errorf("sqlite: failed to insert fact: %w", err)
	}
	return nil
}

// GetFact retrieves a fact by ID.
func (s *Store) GetFact(ctx context.Context, id string) (*types.MemoryFact, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT doc, status, importance_score, access_frequency, last_accessed_at
		FROM facts WHERE id = ?`, id)
	fact, err := scanFact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	return fact, err
}

// UpdateFact replaces an existing fact, document and columns both.
func (s *Store) UpdateFact(ctx context.Context, fact *types.MemoryFact) error {
	if err := fact.Validate(); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}

	doc, err := json.Marshal(fact)
	if err != nil {
		return fmt.Errorf("sqlite: failed to marshal fact: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE facts SET status = ?, type = ?, category = ?, topic = ?,
			confidence = ?, importance_score = ?, access_frequency = ?,
			last_accessed_at = ?, doc = ?
		WHERE id = ?`,
		string(fact.Status), string(fact.Type),
		fact.Namespace.Category, fact.Namespace.Topic,
		fact.Source.Confidence, fact.Importance.Score,
		fact.Importance.Factors.AccessFrequency,
		nullableTime(fact.Temporal.LastAccessedAt), string(doc),
		fact.ID)
	if err != nil {
		return fmt.Errorf("sqlite: failed to update fact: %w", err)
	}
	return requireRow(result)
}

// ListFacts returns a user's facts ordered newest first.
func (s *Store) ListFacts(ctx context.Context, userID string, status types.FactStatus) ([]*types.MemoryFact, error) {
	query := `
		SELECT doc, status, importance_score, access_frequency, last_accessed_at
		FROM facts WHERE user_id = ?`
	args := []any{userID}
	if status != "" {
		query += " AND status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list facts: %w", err)
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

// RecordAccess atomically bumps the access counter and stamps the
// access time.
func (s *Store) RecordAccess(ctx context.Context, id string, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE facts
		SET access_frequency = access_frequency + 1,
			last_accessed_at = ?
		WHERE id = ?`, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("sqlite: failed to record access: %w", err)
	}
	return requireRow(result)
}

// ListUserIDs returns the distinct fact owners.
func (s *Store) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM facts`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list users: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan user ID: %w", err)
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
		FROM facts WHERE user_id = ?`, userID).Scan(
		&stats.Total, &stats.Active, &stats.Archived,
		&stats.AvgConfidence, &stats.AvgImportance)
	if err != nil {
		return storage.FactStats{}, fmt.Errorf("sqlite: failed to aggregate stats: %w", err)
	}
	return stats, nil
}

// GetProfile returns the stored profile or ErrNotFound.
func (s *Store) GetProfile(ctx context.Context, userID string) (*types.UserProfile, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM profiles WHERE user_id = ?`, userID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to load profile: %w", err)
	}

	var profile types.UserProfile
	if err := json.Unmarshal([]byte(doc), &profile); err != nil {
		return nil, fmt.Errorf("sqlite: failed to unmarshal profile: %w", err)
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
		return fmt.Errorf("sqlite: failed to marshal profile: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO profiles (user_id, doc, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			doc = excluded.doc,
			updated_at = excluded.updated_at`,
		profile.UserID, string(doc), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("sqlite: failed to upsert profile: %w", err)
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
		VALUES (?, ?, ?, ?, ?, ?)`,
		turn.ID, turn.UserID, turn.ConversationID,
		string(turn.Role), turn.Content, turn.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("sqlite: failed to append turn: %w", err)
	}
	return nil
}

// ListTurns returns a conversation's turns in chronological order.
func (s *Store) ListTurns(ctx context.Context, conversationID string) ([]*types.ConversationTurn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, conversation_id, role, content, created_at
		FROM turns WHERE conversation_id = ?
		ORDER BY created_at ASC, id ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list turns: %w", err)
	}
	defer rows.Close()

	var turns []*types.ConversationTurn
	for rows.Next() {
		var t types.ConversationTurn
		var role string
		if err := rows.Scan(&t.ID, &t.UserID, &t.ConversationID, &role, &t.Content, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan turn: %w", err)
		}
		t.Role = types.TurnRole(role)
		turns = append(turns, &t)
	}
	return turns, rows.Err()
}

// scanner abstracts sql.Row and sql.Rows for scanFact.
type scanner interface {
	Scan(dest ...any) error
}

// scanFact decodes the JSON document and overlays the authoritative
// counter columns.
func scanFact(row scanner) (*types.MemoryFact, error) {
	var (
		doc          string
		status       string
		importance   float64
		accessCount  int
		lastAccessed sql.NullTime
	)
	if err := row.Scan(&doc, &status, &importance, &accessCount, &lastAccessed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("sqlite: failed to scan fact: %w", err)
	}

	var fact types.MemoryFact
	if err := json.Unmarshal([]byte(doc), &fact); err != nil {
		return nil, fmt.Errorf("sqlite: failed to unmarshal fact: %w", err)
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
		return fmt.Errorf("sqlite: failed to read rows affected: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}
