package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/PandyaSumit/mini--AI-tutor-sub006/internal/llm"
	"github.com/PandyaSumit/mini--AI-tutor-sub006/internal/storage"
	"github.com/PandyaSumit/mini--AI-tutor-sub006/internal/vector"
	"github.com/PandyaSumit/mini--AI-tutor-sub006/pkg/types"
)

// mergeSimilarityThreshold is the Jaccard word-set similarity above
// which two fact texts are considered the same observation.
const mergeSimilarityThreshold = 0.9

// ConsolidationResult summarizes one consolidation run.
type ConsolidationResult struct {
	UserID            string   `json:"user_id"`
	ConversationID    string   `json:"conversation_id"`
	ConsolidatedCount int      `json:"consolidated_count"`
	MergedCount       int      `json:"merged_count"`
	Reason            string   `json:"reason,omitempty"`
	FactIDs           []string `json:"fact_ids,omitempty"`
}

// ConsolidationPipeline turns finished conversations into durable
// facts and profile updates. It is safe to re-run on the same
// conversation: repeated candidates merge into their existing facts
// instead of duplicating them.
type ConsolidationPipeline struct {
	facts    storage.FactStore
	profiles storage.ProfileStore
	turns    storage.ConversationStore
	embedder llm.EmbeddingGenerator
	index    vector.Index
	logger   *slog.Logger
}

func NewConsolidationPipeline(facts storage.FactStore, profiles storage.ProfileStore, turns storage.ConversationStore, embedder llm.EmbeddingGenerator, index vector.Index, logger *slog.Logger) *ConsolidationPipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsolidationPipeline{
		facts:    facts,
		profiles: profiles,
		turns:    turns,
		embedder: embedder,
		index:    index,
		logger:   logger,
	}
}

// Consolidate extracts candidate facts from the conversation,
// deduplicates them against the user's existing memories, persists
// what is new, and folds everything into the profile. Failures on
// individual facts are logged and skipped so one bad candidate cannot
// lose the rest of the batch.
func (p *ConsolidationPipeline) Consolidate(ctx context.Context, userID, conversationID string) (ConsolidationResult, error) {
	result := ConsolidationResult{UserID: userID, ConversationID: conversationID}

	turns, err := p.turns.ListTurns(ctx, conversationID)
	if err != nil {
		return result, fmt.Errorf("consolidate: failed to load turns: %w", err)
	}
	if len(turns) == 0 {
		result.Reason = "no messages"
		return result, nil
	}

	candidates := ExtractCandidates(turns)
	if len(candidates) == 0 {
		result.Reason = "no extractable facts"
		return result, nil
	}

	existing, err := p.facts.ListFacts(ctx, userID, types.StatusActive)
	if err != nil {
		return result, fmt.Errorf("consolidate: failed to load existing facts: %w", err)
	}

	now := time.Now().UTC()
	for _, candidate := range candidates {
		fact, merged, err := p.persistCandidate(ctx, userID, conversationID, candidate, existing, now)
		if err != nil {
			p.logger.Warn("failed to consolidate candidate",
				"user_id", userID, "content", candidate.Content, "error", err)
			continue
		}
		if merged {
			result.MergedCount++
		} else {
			existing = append(existing, fact)
			result.ConsolidatedCount++
			result.FactIDs = append(result.FactIDs, fact.ID)
		}
	}

	if err := p.updateProfile(ctx, userID, candidates, now); err != nil {
		p.logger.Warn("failed to update profile after consolidation",
			"user_id", userID, "error", err)
	}

	p.logger.Info("consolidation complete",
		"user_id", userID,
		"conversation_id", conversationID,
		"new_facts", result.ConsolidatedCount,
		"merged", result.MergedCount)
	return result, nil
}

// persistCandidate either merges the candidate into a near-duplicate
// existing fact or creates a new one. The returned fact is the stored
// record either way.
func (p *ConsolidationPipeline) persistCandidate(ctx context.Context, userID, conversationID string, candidate Candidate, existing []*types.MemoryFact, now time.Time) (*types.MemoryFact, bool, error) {
	for _, fact := range existing {
		if JaccardSimilarity(fact.Content, candidate.Content) <= mergeSimilarityThreshold {
			continue
		}

		fact.Revise("consolidation", now)
		fact.Importance.Factors.AccessFrequency++
		fact.Temporal.LastAccessedAt = now
		fact.Source.MessageIDs = appendUnique(fact.Source.MessageIDs, candidate.MessageID)
		if err := p.facts.UpdateFact(ctx, fact); err != nil {
			return nil, false, fmt.Errorf("merge into %s: %w", fact.ID, err)
		}
		return fact, true, nil
	}

	fact := &types.MemoryFact{
		ID:        uuid.NewString(),
		UserID:    userID,
		Content:   candidate.Content,
		Type:      candidate.Type,
		Namespace: candidate.Namespace,
		Source: types.FactSource{
			ConversationID:   conversationID,
			MessageIDs:       []string{candidate.MessageID},
			ExtractionMethod: types.ExtractionAutomatic,
			Confidence:       extractionConfidence,
		},
		Importance: types.Importance{
			Score: 0.5,
			Factors: types.ImportanceFactors{
				EmotionalValence: candidate.Valence,
			},
		},
		Temporal: types.Temporal{CreatedAt: now},
		Privacy: types.Privacy{
			Level:        types.PrivacyPublic,
			DataCategory: candidate.Namespace.Category,
		},
		Status: types.StatusActive,
	}

	// Embedding failures leave Semantic.EmbeddingID empty. The fact is
	// still persisted and retrievable through non-semantic paths.
	if embedding, err := p.embedder.Embed(ctx, fact.Content); err != nil {
		p.logger.Warn("failed to embed fact, storing without embedding",
			"fact_id", fact.ID, "error", err)
	} else if err := p.index.Upsert(ctx, userID, fact.ID, embedding, map[string]string{
		"category": fact.Namespace.Category,
		"topic":    fact.Namespace.Topic,
	}); err != nil {
		p.logger.Warn("failed to index fact embedding",
			"fact_id", fact.ID, "error", err)
	} else {
		fact.Semantic.EmbeddingID = fact.ID
	}

	if err := p.facts.PutFact(ctx, fact); err != nil {
		return nil, false, fmt.Errorf("persist %s: %w", fact.ID, err)
	}
	return fact, false, nil
}

func (p *ConsolidationPipeline) updateProfile(ctx context.Context, userID string, candidates []Candidate, now time.Time) error {
	profile, err := p.profiles.GetProfile(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		profile = types.NewUserProfile(userID)
	} else if err != nil {
		return err
	}

	for _, candidate := range candidates {
		candidate.ApplyToProfile(profile, now)
	}

	stats, err := p.facts.FactStats(ctx, userID)
	if err == nil {
		profile.Meta.TotalMemories = stats.Active
	}
	profile.Meta.ProfileCompleteness = profile.Completeness()
	profile.Touch(now)

	return p.profiles.PutProfile(ctx, profile)
}

// JaccardSimilarity is |A∩B| / |A∪B| over lowercased word sets.
func JaccardSimilarity(a, b string) float64 {
	setA := wordSet(a)
	setB := wordSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for word := range setA {
		if setB[word] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

func wordSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?;:'\"")
		if word != "" {
			set[word] = true
		}
	}
	return set
}

func appendUnique(ids []string, id string) []string {
	if id == "" {
		return ids
	}
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
