// Package types defines the shared data model for the conversational
// memory core: durable memory facts, consolidated user profiles, and
// conversation turns.
package types

import (
	"fmt"
	"time"
)

// FactType classifies what kind of observation a fact records.
type FactType string

// Fact types.
const (
	TypeFact       FactType = "fact"
	TypePreference FactType = "preference"
	TypeGoal       FactType = "goal"
	TypeExperience FactType = "experience"
	TypeEntity     FactType = "entity"
)

// FactStatus is the lifecycle status of a fact. Archived facts are
// excluded from every retrieval path but are never physically deleted.
type FactStatus string

// Fact statuses.
const (
	StatusActive   FactStatus = "active"
	StatusArchived FactStatus = "archived"
)

// ExtractionMethod records how a fact entered the system.
type ExtractionMethod string

// Extraction methods.
const (
	ExtractionAutomatic     ExtractionMethod = "automatic"
	ExtractionUserConfirmed ExtractionMethod = "user_confirmed"
)

// PrivacyLevel gates which retrieval paths may expose a fact.
type PrivacyLevel string

// Privacy levels. Confidential facts never leave the store.
const (
	PrivacyPublic       PrivacyLevel = "public"
	PrivacyRestricted   PrivacyLevel = "restricted"
	PrivacyConfidential PrivacyLevel = "confidential"
)

// Namespace is the hierarchical classification of a fact, used for
// filtering and intent matching.
type Namespace struct {
	Category string `json:"category"`
	Topic    string `json:"topic"`
}

// FactSource records where a fact was extracted from.
type FactSource struct {
	ConversationID string `json:"conversation_id"`
	// MessageIDs is the ordered set of turn IDs that support this fact.
	MessageIDs       []string         `json:"message_ids,omitempty"`
	ExtractionMethod ExtractionMethod `json:"extraction_method"`
	Confidence       float64          `json:"confidence"` // [0,1]
}

// ImportanceFactors are the raw signals behind a fact's importance score.
type ImportanceFactors struct {
	// UserMarked pins a fact: the decay engine never auto-archives it.
	UserMarked      bool    `json:"user_marked"`
	AccessFrequency int     `json:"access_frequency"`
	Recency         float64 `json:"recency"`
	// EmotionalValence is in [-1,1]; scoring uses its magnitude.
	EmotionalValence float64 `json:"emotional_valence"`
}

// Importance is the maintained importance of a fact.
type Importance struct {
	Score   float64           `json:"score"` // [0,1]
	Factors ImportanceFactors `json:"factors"`
}

// Temporal tracks a fact's creation and last retrieval times.
type Temporal struct {
	CreatedAt      time.Time `json:"created_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
}

// Semantic links a fact to its entry in the external vector index.
type Semantic struct {
	// EmbeddingID is empty when no embedding has been stored yet, e.g.
	// because the embedding service was unavailable at consolidation time.
	EmbeddingID string `json:"embedding_id,omitempty"`
}

// Consent records whether the user has consented to usage of a fact's
// data category.
type Consent struct {
	Granted   bool       `json:"granted"`
	GrantedAt *time.Time `json:"granted_at,omitempty"`
}

// Privacy holds the data sensitivity classification of a fact.
type Privacy struct {
	Level        PrivacyLevel `json:"level"`
	DataCategory string       `json:"data_category,omitempty"`
	UserConsent  Consent      `json:"user_consent"`
}

// Revision is one entry in a fact's append-only content history.
type Revision struct {
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason"`
}

// MemoryFact is an atomic durable observation about a user. Facts are
// created by the consolidation pipeline (or explicit user action),
// mutated by decay and merge operations, and only ever touched by read
// paths through the access counters.
type MemoryFact struct {
	ID      string `json:"id"`
	UserID  string `json:"user_id"`
	Content string `json:"content"`

	Type      FactType  `json:"type"`
	Namespace Namespace `json:"namespace"`

	Source     FactSource `json:"source"`
	Importance Importance `json:"importance"`
	Temporal   Temporal   `json:"temporal"`
	Semantic   Semantic   `json:"semantic"`
	Privacy    Privacy    `json:"privacy"`

	Status FactStatus `json:"status"`

	// History is the append-only log of prior content values.
	History []Revision `json:"history,omitempty"`
}

// Validate checks the invariants that every persisted fact must satisfy.
func (f *MemoryFact) Validate() error {
	if f.ID == "" {
		return fmt.Errorf("fact ID is required")
	}
	if f.UserID == "" {
		return fmt.Errorf("fact user ID is required")
	}
	if f.Content == "" {
		return fmt.Errorf("fact content is required")
	}
	if f.Importance.Score < 0 || f.Importance.Score > 1 {
		return fmt.Errorf("importance score %f outside [0,1]", f.Importance.Score)
	}
	if v := f.Importance.Factors.EmotionalValence; v < -1 || v > 1 {
		return fmt.Errorf("emotional valence %f outside [-1,1]", v)
	}
	if f.Source.Confidence < 0 || f.Source.Confidence > 1 {
		return fmt.Errorf("source confidence %f outside [0,1]", f.Source.Confidence)
	}
	switch f.Status {
	case StatusActive, StatusArchived:
	default:
		return fmt.Errorf("unknown fact status %q", f.Status)
	}
	return nil
}

// AccessedAt returns the reference time for recency calculations:
// the last access when known, otherwise the creation time.
func (f *MemoryFact) AccessedAt() time.Time {
	if !f.Temporal.LastAccessedAt.IsZero() {
		return f.Temporal.LastAccessedAt
	}
	return f.Temporal.CreatedAt
}

// AgeInDays returns the age of the fact's last access relative to now,
// never negative.
func (f *MemoryFact) AgeInDays(now time.Time) float64 {
	days := now.Sub(f.AccessedAt()).Hours() / 24.0
	if days < 0 {
		return 0
	}
	return days
}

// Revise appends the current content to the history log and keeps the
// content unchanged. Merge operations call this before mutating counters
// so the prior value is always recoverable.
func (f *MemoryFact) Revise(reason string, at time.Time) {
	f.History = append(f.History, Revision{
		Content:   f.Content,
		Timestamp: at,
		Reason:    reason,
	})
}
