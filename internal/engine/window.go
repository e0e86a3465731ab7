package engine

import (
	"context"
	"fmt"

	"github.com/PandyaSumit/mini--AI-tutor-sub006/internal/storage"
	"github.com/PandyaSumit/mini--AI-tutor-sub006/pkg/types"
)

// DefaultShortTermTurns is how many trailing turns are carried
// verbatim into the assembled context.
const DefaultShortTermTurns = 5

// ShortTermWindow serves the most recent turns of a conversation
// verbatim. Anything older belongs to working or long-term memory.
type ShortTermWindow struct {
	store storage.ConversationStore
	size  int
}

func NewShortTermWindow(store storage.ConversationStore, size int) *ShortTermWindow {
	if size <= 0 {
		size = DefaultShortTermTurns
	}
	return &ShortTermWindow{store: store, size: size}
}

// Recent returns up to size trailing turns in chronological order,
// plus the total turn count so callers can decide whether older turns
// need summarizing.
func (w *ShortTermWindow) Recent(ctx context.Context, conversationID string) ([]*types.ConversationTurn, int, error) {
	turns, err := w.store.ListTurns(ctx, conversationID)
	if err != nil {
		return nil, 0, fmt.Errorf("short-term window: %w", err)
	}

	total := len(turns)
	if total > w.size {
		turns = turns[total-w.size:]
	}
	return turns, total, nil
}

// Older returns the turns preceding the window, the candidates for
// working-memory summarization.
func (w *ShortTermWindow) Older(ctx context.Context, conversationID string) ([]*types.ConversationTurn, error) {
	turns, err := w.store.ListTurns(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("short-term window: %w", err)
	}
	if len(turns) <= w.size {
		return nil, nil
	}
	return turns[:len(turns)-w.size], nil
}
