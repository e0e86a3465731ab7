package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PandyaSumit/mini--AI-tutor-sub006/internal/cache"
	"github.com/PandyaSumit/mini--AI-tutor-sub006/internal/llm"
	"github.com/PandyaSumit/mini--AI-tutor-sub006/pkg/types"
)

const (
	// DefaultWorkingMemoryThreshold is the turn count past which older
	// turns are compressed into a summary.
	DefaultWorkingMemoryThreshold = 10

	// DefaultWorkingMemoryTTL bounds how long a cached summary stays
	// valid.
	DefaultWorkingMemoryTTL = 2 * time.Hour
)

const summaryPrompt = `Summarize the following tutoring conversation in 3-5 sentences.
Preserve: topics discussed, questions the student asked, facts the student
shared about themselves, and any unresolved threads. Write in third person.

Conversation:
%s

Summary:`

// WorkingMemorySummarizer compresses the older portion of a long
// conversation into a short summary. Summaries are cached per
// (conversation, split point) so the same prefix is never summarized
// twice, and the cache key changes as the conversation grows.
type WorkingMemorySummarizer struct {
	generator llm.TextGenerator
	cache     cache.Cache
	threshold int
	ttl       time.Duration
	logger    *slog.Logger
}

func NewWorkingMemorySummarizer(generator llm.TextGenerator, c cache.Cache, threshold int, ttl time.Duration, logger *slog.Logger) *WorkingMemorySummarizer {
	if threshold <= 0 {
		threshold = DefaultWorkingMemoryThreshold
	}
	if ttl <= 0 {
		ttl = DefaultWorkingMemoryTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkingMemorySummarizer{
		generator: generator,
		cache:     c,
		threshold: threshold,
		ttl:       ttl,
		logger:    logger,
	}
}

// Threshold reports the turn count that activates summarization.
func (s *WorkingMemorySummarizer) Threshold() int { return s.threshold }

// Summarize returns a summary of the given older turns, or "" when the
// conversation is still short enough that no summary is needed. An LLM
// failure also yields "" so context assembly degrades to the remaining
// tiers instead of failing the request.
func (s *WorkingMemorySummarizer) Summarize(ctx context.Context, conversationID string, olderTurns []*types.ConversationTurn, totalTurns int) string {
	if totalTurns <= s.threshold || len(olderTurns) == 0 {
		return ""
	}

	splitPoint := len(olderTurns)
	key := fmt.Sprintf("summary:%s:%d", conversationID, splitPoint)
	if cached, ok := s.cache.Get(ctx, key); ok {
		return string(cached)
	}

	var b strings.Builder
	for _, turn := range olderTurns {
		fmt.Fprintf(&b, "%s: %s\n", turn.Role, turn.Content)
	}

	summary, err := s.generator.Complete(ctx, fmt.Sprintf(summaryPrompt, b.String()))
	if err != nil {
		s.logger.Warn("working-memory summarization failed",
			"conversation_id", conversationID, "error", err)
		return ""
	}

	summary = strings.TrimSpace(summary)
	if summary != "" {
		s.cache.Set(ctx, key, []byte(summary), s.ttl)
	}
	return summary
}
