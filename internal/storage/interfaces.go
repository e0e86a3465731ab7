// Package storage provides the durable document store behind the
// memory core. The interfaces are small and composable; backends exist
// for SQLite (default, embedded) and PostgreSQL.
//
// The store exclusively owns persisted state. Every other component
// works on transient, request-scoped copies.
package storage

import (
	"context"
	"time"

	"github.com/PandyaSumit/mini--AI-tutor-sub006/pkg/types"
)

// FactStore persists individual memory facts.
type FactStore interface {
	// PutFact inserts a new fact. The fact must pass Validate.
	PutFact(ctx context.Context, fact *types.MemoryFact) error

	// GetFact retrieves a fact by ID. Returns ErrNotFound when absent.
	GetFact(ctx context.Context, id string) (*types.MemoryFact, error)

	// UpdateFact replaces an existing fact. Returns ErrNotFound when absent.
	UpdateFact(ctx context.Context, fact *types.MemoryFact) error

	// ListFacts returns a user's facts, optionally filtered by status.
	// An empty status returns every fact regardless of lifecycle state.
	ListFacts(ctx context.Context, userID string, status types.FactStatus) ([]*types.MemoryFact, error)

	// RecordAccess atomically increments the access counter and moves
	// last_accessed_at forward. Returns ErrNotFound when absent.
	RecordAccess(ctx context.Context, id string, at time.Time) error

	// ListUserIDs returns the distinct owners of stored facts, for the
	// background decay sweep.
	ListUserIDs(ctx context.Context) ([]string, error)

	// FactStats aggregates per-user storage and quality counters.
	FactStats(ctx context.Context, userID string) (FactStats, error)
}

// ProfileStore persists the per-user consolidated profile.
type ProfileStore interface {
	// GetProfile returns the user's profile or ErrNotFound.
	GetProfile(ctx context.Context, userID string) (*types.UserProfile, error)

	// PutProfile upserts the profile.
	PutProfile(ctx context.Context, profile *types.UserProfile) error
}

// ConversationStore persists the raw conversation log that feeds the
// short-term and working tiers and the consolidation pipeline.
type ConversationStore interface {
	// AppendTurn appends one turn to a conversation.
	AppendTurn(ctx context.Context, turn *types.ConversationTurn) error

	// ListTurns returns all turns of a conversation in chronological
	// order. An unknown conversation yields an empty slice.
	ListTurns(ctx context.Context, conversationID string) ([]*types.ConversationTurn, error)
}

// Store is the full durable backend consumed by the engine.
type Store interface {
	FactStore
	ProfileStore
	ConversationStore

	// Close releases backend resources.
	Close() error
}

// FactStats aggregates storage and quality signals for one user.
type FactStats struct {
	Total         int
	Active        int
	Archived      int
	AvgConfidence float64 // mean source confidence over active facts
	AvgImportance float64 // mean importance score over active facts
}
