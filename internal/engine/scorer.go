package engine

import (
	"math"
	"strings"
	"time"

	"github.com/PandyaSumit/mini--AI-tutor-sub006/pkg/types"
)

// Relevance weights. Semantic similarity dominates, recency and
// frequency keep recently useful memories ahead of stale ones.
const (
	weightRecency    = 0.25
	weightFrequency  = 0.20
	weightSemantic   = 0.30
	weightImportance = 0.15
	weightEmotional  = 0.10

	intentBonus = 0.2

	recencyDecayRate = 0.05
)

// ScoreBreakdown carries the per-factor components of a relevance
// score, mainly for diagnostics.
type ScoreBreakdown struct {
	Recency    float64 `json:"recency"`
	Frequency  float64 `json:"frequency"`
	Semantic   float64 `json:"semantic"`
	Importance float64 `json:"importance"`
	Emotional  float64 `json:"emotional"`
	Intent     float64 `json:"intent"`
	Total      float64 `json:"total"`
}

// ScoredFact pairs a fact with its relevance against a query.
type ScoredFact struct {
	Fact      *types.MemoryFact
	Score     float64
	Breakdown ScoreBreakdown
}

// RecencyScore maps age to (0, 1] on an exponential curve. A fact
// accessed now scores 1.0; one untouched for 30 days scores about
// 0.22.
func RecencyScore(fact *types.MemoryFact, now time.Time) float64 {
	return math.Exp(-recencyDecayRate * fact.AgeInDays(now))
}

// FrequencyScore maps the access counter to [0, 1] logarithmically so
// heavy reuse saturates instead of dominating. 99 accesses hit 1.0.
func FrequencyScore(accessCount int) float64 {
	if accessCount < 0 {
		accessCount = 0
	}
	return math.Min(math.Log10(float64(accessCount)+1)/2, 1)
}

// ScoreFact computes the multi-factor relevance of a fact against the
// current query. semanticSim is the cosine similarity from the vector
// index, or 0 when no embedding is available. intentTopic, when
// non-empty, grants a bonus to facts whose namespace topic mentions
// it.
func ScoreFact(fact *types.MemoryFact, semanticSim float64, intentTopic string, now time.Time) ScoredFact {
	b := ScoreBreakdown{
		Recency:    RecencyScore(fact, now),
		Frequency:  FrequencyScore(fact.Importance.Factors.AccessFrequency),
		Semantic:   clamp01(semanticSim),
		Importance: clamp01(fact.Importance.Score),
		Emotional:  math.Abs(fact.Importance.Factors.EmotionalValence),
	}

	score := weightRecency*b.Recency +
		weightFrequency*b.Frequency +
		weightSemantic*b.Semantic +
		weightImportance*b.Importance +
		weightEmotional*b.Emotional

	if intentTopic != "" && matchesIntent(fact, intentTopic) {
		b.Intent = intentBonus
		score += intentBonus
	}

	b.Total = clamp01(score)
	return ScoredFact{Fact: fact, Score: b.Total, Breakdown: b}
}

func matchesIntent(fact *types.MemoryFact, topic string) bool {
	needle := strings.ToLower(topic)
	return strings.Contains(strings.ToLower(fact.Namespace.Topic), needle)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
