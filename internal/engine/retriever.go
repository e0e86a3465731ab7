package engine

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/PandyaSumit/mini--AI-tutor-sub006/internal/llm"
	"github.com/PandyaSumit/mini--AI-tutor-sub006/internal/storage"
	"github.com/PandyaSumit/mini--AI-tutor-sub006/internal/vector"
	"github.com/PandyaSumit/mini--AI-tutor-sub006/pkg/types"
)

// DefaultRetrievalTopK is how many long-term facts make it into the
// assembled context.
const DefaultRetrievalTopK = 5

// LongTermRetriever answers "what do we know that is relevant to this
// query" over the persistent fact store. Every failure mode degrades
// to an empty result: a tutoring turn without long-term memories is
// acceptable, an errored turn is not.
type LongTermRetriever struct {
	store    storage.FactStore
	index    vector.Index
	embedder llm.EmbeddingGenerator
	topK     int
	onAccess func(factID string)
	logger   *slog.Logger
}

func NewLongTermRetriever(store storage.FactStore, index vector.Index, embedder llm.EmbeddingGenerator, topK int, onAccess func(factID string), logger *slog.Logger) *LongTermRetriever {
	if topK <= 0 {
		topK = DefaultRetrievalTopK
	}
	if onAccess == nil {
		onAccess = func(string) {}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LongTermRetriever{
		store:    store,
		index:    index,
		embedder: embedder,
		topK:     topK,
		onAccess: onAccess,
		logger:   logger,
	}
}

// Retrieve embeds the query, over-fetches candidates from the vector
// index, hydrates and re-scores them with the full multi-factor
// relevance model, and returns the topK. Retrieved facts get an access
// bump through the onAccess callback so frequency scoring reflects
// actual use.
func (r *LongTermRetriever) Retrieve(ctx context.Context, userID, query, intentTopic string, now time.Time) []ScoredFact {
	if query == "" {
		return nil
	}

	embedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		r.logger.Warn("query embedding failed, skipping long-term retrieval",
			"user_id", userID, "error", err)
		return nil
	}

	// Over-fetch so facts the index liked but the scorer demotes still
	// leave room for better candidates.
	matches, err := r.index.Search(ctx, userID, embedding, r.topK*2)
	if err != nil {
		r.logger.Warn("vector search failed, skipping long-term retrieval",
			"user_id", userID, "error", err)
		return nil
	}
	if len(matches) == 0 {
		return nil
	}

	scored := make([]ScoredFact, 0, len(matches))
	for _, match := range matches {
		fact, err := r.store.GetFact(ctx, match.ID)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				r.logger.Warn("failed to hydrate fact", "fact_id", match.ID, "error", err)
			}
			continue
		}
		if fact.Status != types.StatusActive {
			continue
		}
		scored = append(scored, ScoreFact(fact, match.Score, intentTopic, now))
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > r.topK {
		scored = scored[:r.topK]
	}

	for _, sf := range scored {
		r.onAccess(sf.Fact.ID)
	}
	return scored
}
