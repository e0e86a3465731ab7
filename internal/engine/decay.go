package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/PandyaSumit/mini--AI-tutor-sub006/internal/storage"
	"github.com/PandyaSumit/mini--AI-tutor-sub006/pkg/types"
)

// Decay weights are the relevance weights without the semantic factor,
// renormalized to sum to 1. Decay runs without a query so similarity
// has nothing to compare against.
const (
	decayWeightRecency    = 0.357
	decayWeightFrequency  = 0.286
	decayWeightImportance = 0.214
	decayWeightEmotional  = 0.143

	// DefaultForgettingThreshold is the retention score below which an
	// unmarked fact is archived.
	DefaultForgettingThreshold = 0.25
)

// DecayManager periodically re-scores facts and archives the ones that
// have faded below the forgetting threshold. Archival is one-way;
// restoring a fact is an explicit user action, not something decay
// undoes.
type DecayManager struct {
	store     storage.FactStore
	threshold float64
	logger    *slog.Logger
}

// DecayReport summarizes one decay sweep for a user.
type DecayReport struct {
	UserID    string    `json:"user_id"`
	Evaluated int       `json:"evaluated"`
	Archived  int       `json:"archived"`
	Protected int       `json:"protected"`
	RanAt     time.Time `json:"ran_at"`
}

func NewDecayManager(store storage.FactStore, threshold float64, logger *slog.Logger) *DecayManager {
	if threshold <= 0 {
		threshold = DefaultForgettingThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DecayManager{store: store, threshold: threshold, logger: logger}
}

// RetentionScore is the query-independent worth of keeping a fact
// active.
func RetentionScore(fact *types.MemoryFact, now time.Time) float64 {
	score := decayWeightRecency*RecencyScore(fact, now) +
		decayWeightFrequency*FrequencyScore(fact.Importance.Factors.AccessFrequency) +
		decayWeightImportance*clamp01(fact.Importance.Score) +
		decayWeightEmotional*math.Abs(fact.Importance.Factors.EmotionalValence)
	return clamp01(score)
}

// Run re-scores every active fact for a user, persists the recomputed
// importance, and archives facts that fell below the threshold.
// User-marked facts are re-scored but never archived. Failures on
// individual facts are logged and skipped so one bad row cannot stall
// the sweep.
func (d *DecayManager) Run(ctx context.Context, userID string, now time.Time) (DecayReport, error) {
	report := DecayReport{UserID: userID, RanAt: now}

	facts, err := d.store.ListFacts(ctx, userID, types.StatusActive)
	if err != nil {
		return report, fmt.Errorf("decay: failed to list facts for %s: %w", userID, err)
	}

	for _, fact := range facts {
		report.Evaluated++

		score := RetentionScore(fact, now)
		fact.Importance.Score = score
		fact.Importance.Factors.Recency = RecencyScore(fact, now)

		if score < d.threshold {
			if fact.Importance.Factors.UserMarked {
				report.Protected++
			} else {
				fact.Status = types.StatusArchived
				fact.Revise(fmt.Sprintf("archived by decay, retention %.3f below %.2f", score, d.threshold), now)
			}
		}

		if err := d.store.UpdateFact(ctx, fact); err != nil {
			d.logger.Warn("failed to persist decayed fact",
				"fact_id", fact.ID, "user_id", userID, "error", err)
			continue
		}
		if fact.Status == types.StatusArchived {
			report.Archived++
		}
	}

	d.logger.Info("decay sweep complete",
		"user_id", userID,
		"evaluated", report.Evaluated,
		"archived", report.Archived,
		"protected", report.Protected)
	return report, nil
}
