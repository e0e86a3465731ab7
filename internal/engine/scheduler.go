package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultDecayInterval is how often the scheduler sweeps all users.
const DefaultDecayInterval = 24 * time.Hour

// Scheduler drives the periodic decay sweep and accepts
// conversation-end consolidation triggers. Both run off the request
// path.
type Scheduler struct {
	engine   *MemoryEngine
	interval time.Duration
	logger   *slog.Logger

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func NewScheduler(engine *MemoryEngine, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultDecayInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{engine: engine, interval: interval, logger: logger}
}

// Start launches the decay ticker.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.sweep(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
	s.logger.Info("scheduler started", "decay_interval", s.interval)
}

// Stop halts the ticker and waits for any in-flight sweep.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// ConversationEnded triggers consolidation for a finished conversation
// in the background.
func (s *Scheduler) ConversationEnded(userID, conversationID string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := s.engine.Consolidate(ctx, userID, conversationID); err != nil {
			s.logger.Warn("scheduled consolidation failed",
				"user_id", userID, "conversation_id", conversationID, "error", err)
		}
	}()
}

func (s *Scheduler) sweep(ctx context.Context) {
	users, err := s.engine.ListUserIDs(ctx)
	if err != nil {
		s.logger.Warn("decay sweep failed to list users", "error", err)
		return
	}
	for _, userID := range users {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.engine.ApplyDecay(ctx, userID); err != nil {
			s.logger.Warn("decay failed for user", "user_id", userID, "error", err)
		}
	}
}
