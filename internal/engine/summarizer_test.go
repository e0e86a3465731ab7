package engine

import (
	"context"
	"testing"
	"time"

	"github.com/PandyaSumit/mini--AI-tutor-sub006/internal/cache"
)

func TestSummarizeSkipsShortConversations(t *testing.T) {
	generator := &fakeGenerator{response: "a summary"}
	s := NewWorkingMemorySummarizer(generator, cache.NewLRU(16, time.Hour), 10, time.Hour, nil)

	got := s.Summarize(context.Background(), "c1", sampleTurns(3), 8)
	if got != "" {
		t.Errorf("summary for short conversation = %q, want empty", got)
	}
	if generator.calls != 0 {
		t.Errorf("LLM called %d times for short conversation", generator.calls)
	}
}

func TestSummarizeCachesBySplitPoint(t *testing.T) {
	generator := &fakeGenerator{response: "they covered goroutines"}
	s := NewWorkingMemorySummarizer(generator, cache.NewLRU(16, time.Hour), 10, time.Hour, nil)
	older := sampleTurns(7)

	first := s.Summarize(context.Background(), "c1", older, 12)
	second := s.Summarize(context.Background(), "c1", older, 12)

	if first != "they covered goroutines" || second != first {
		t.Errorf("summaries = %q, %q", first, second)
	}
	if generator.calls != 1 {
		t.Errorf("LLM called %d times, want 1 (second call cached)", generator.calls)
	}

	// A longer prefix is a different split point and must re-summarize.
	_ = s.Summarize(context.Background(), "c1", sampleTurns(9), 14)
	if generator.calls != 2 {
		t.Errorf("LLM called %d times after split point moved, want 2", generator.calls)
	}
}

func TestSummarizeDegradesOnLLMFailure(t *testing.T) {
	generator := &fakeGenerator{broken: true}
	s := NewWorkingMemorySummarizer(generator, cache.NewLRU(16, time.Hour), 10, time.Hour, nil)

	got := s.Summarize(context.Background(), "c1", sampleTurns(7), 12)
	if got != "" {
		t.Errorf("summary despite LLM failure = %q, want empty", got)
	}
}

func TestWindowRecentAndOlder(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 8; i++ {
		turn := userTurn("", "message")
		turn.ID = turn.ID + string(rune('a'+i))
		turn.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := store.AppendTurn(ctx, turn); err != nil {
			t.Fatalf("AppendTurn: %v", err)
		}
	}

	window := NewShortTermWindow(store, 5)

	recent, total, err := window.Recent(ctx, "c1")
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if total != 8 {
		t.Errorf("total = %d, want 8", total)
	}
	if len(recent) != 5 {
		t.Fatalf("recent window has %d turns, want 5", len(recent))
	}
	for i := 1; i < len(recent); i++ {
		if recent[i].CreatedAt.Before(recent[i-1].CreatedAt) {
			t.Error("recent turns out of chronological order")
		}
	}

	older, err := window.Older(ctx, "c1")
	if err != nil {
		t.Fatalf("Older: %v", err)
	}
	if len(older) != 3 {
		t.Errorf("older split has %d turns, want 3", len(older))
	}
	if len(older) > 0 && len(recent) > 0 && !older[len(older)-1].CreatedAt.Before(recent[0].CreatedAt) {
		t.Error("older turns overlap the recent window")
	}

	if _, tot, err := window.Recent(ctx, "unknown"); err != nil || tot != 0 {
		t.Errorf("unknown conversation: total=%d err=%v", tot, err)
	}
}
