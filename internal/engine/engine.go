// Package engine implements the conversational memory core: tiered
// retrieval, relevance scoring, consolidation, decay and
// token-budgeted context assembly.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PandyaSumit/mini--AI-tutor-sub006/internal/cache"
	"github.com/PandyaSumit/mini--AI-tutor-sub006/internal/llm"
	"github.com/PandyaSumit/mini--AI-tutor-sub006/internal/storage"
	"github.com/PandyaSumit/mini--AI-tutor-sub006/internal/vector"
	"github.com/PandyaSumit/mini--AI-tutor-sub006/pkg/types"
)

const (
	// DefaultContextCacheTTL keeps assembled contexts hot across the
	// rapid-fire turns of an active conversation.
	DefaultContextCacheTTL = 30 * time.Second

	// DefaultRetrievalTimeout bounds how long one turn waits for the
	// long-term tier before degrading without it.
	DefaultRetrievalTimeout = 3 * time.Second

	accessQueueSize = 256
)

// Options tunes the engine. Zero values fall back to the defaults
// documented on the respective components.
type Options struct {
	ShortTermTurns         int
	WorkingMemoryThreshold int
	WorkingMemoryTTL       time.Duration
	ContextTokenBudget     int
	ContextCacheTTL        time.Duration
	RetrievalTopK          int
	RetrievalTimeout       time.Duration
	ForgettingThreshold    float64
}

// EventFunc receives engine lifecycle events for external observers
// such as the diagnostics websocket. Must not block.
type EventFunc func(event string, payload any)

// HealthReport is the read-only diagnostics view of one user's memory.
type HealthReport struct {
	UserID  string            `json:"user_id"`
	Storage storage.FactStats `json:"storage"`
	Usage   MetricsSnapshot   `json:"usage"`
	Profile struct {
		Completeness  float64   `json:"completeness"`
		TotalMemories int       `json:"total_memories"`
		LastUpdated   time.Time `json:"last_updated"`
	} `json:"profile"`
}

// MemoryEngine is the single entry point the chat-handling layer talks
// to. It owns the memory tiers, the consolidation and decay machinery,
// and the background access-bump worker.
type MemoryEngine struct {
	store      storage.Store
	retriever  *LongTermRetriever
	window     *ShortTermWindow
	summarizer *WorkingMemorySummarizer
	assembler  *ContextAssembler
	pipeline   *ConsolidationPipeline
	decay      *DecayManager
	cache      cache.Cache
	metrics    *Metrics
	logger     *slog.Logger

	cacheTTL         time.Duration
	retrievalTimeout time.Duration

	// userLocks serializes consolidation per user so concurrent
	// conversation-end events cannot race the dedup step.
	userLocks sync.Map

	accessQueue chan string
	onEvent     EventFunc

	wg   sync.WaitGroup
	done chan struct{}
}

// New wires a MemoryEngine from its collaborators.
func New(store storage.Store, index vector.Index, generator llm.TextGenerator, embedder llm.EmbeddingGenerator, c cache.Cache, opts Options, logger *slog.Logger) *MemoryEngine {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.ContextCacheTTL <= 0 {
		opts.ContextCacheTTL = DefaultContextCacheTTL
	}
	if opts.RetrievalTimeout <= 0 {
		opts.RetrievalTimeout = DefaultRetrievalTimeout
	}

	e := &MemoryEngine{
		store:            store,
		window:           NewShortTermWindow(store, opts.ShortTermTurns),
		summarizer:       NewWorkingMemorySummarizer(generator, c, opts.WorkingMemoryThreshold, opts.WorkingMemoryTTL, logger),
		assembler:        NewContextAssembler(opts.ContextTokenBudget),
		pipeline:         NewConsolidationPipeline(store, store, store, embedder, index, logger),
		decay:            NewDecayManager(store, opts.ForgettingThreshold, logger),
		cache:            c,
		metrics:          &Metrics{},
		logger:           logger,
		cacheTTL:         opts.ContextCacheTTL,
		retrievalTimeout: opts.RetrievalTimeout,
		accessQueue:      make(chan string, accessQueueSize),
		done:             make(chan struct{}),
	}
	e.retriever = NewLongTermRetriever(store, index, embedder, opts.RetrievalTopK, e.bumpAccess, logger)
	return e
}

// SetEventFunc registers an observer for engine events. Call before
// Start.
func (e *MemoryEngine) SetEventFunc(fn EventFunc) { e.onEvent = fn }

// Start launches the background access-bump worker.
func (e *MemoryEngine) Start() {
	e.wg.Add(1)
	go e.accessWorker()
	e.logger.Info("memory engine started")
}

// Shutdown stops background workers and flushes pending access bumps.
func (e *MemoryEngine) Shutdown(ctx context.Context) error {
	close(e.done)

	finished := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		e.logger.Info("memory engine stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("engine shutdown: %w", ctx.Err())
	}
}

// GetContextForTurn assembles the full memory context for one tutoring
// turn. The tiers are gathered in parallel; any tier that fails or
// times out is simply absent from the result.
func (e *MemoryEngine) GetContextForTurn(ctx context.Context, userID, conversationID, message, intent string) (AssembledContext, error) {
	if userID == "" || conversationID == "" {
		return AssembledContext{}, fmt.Errorf("%w: user id and conversation id are required", storage.ErrInvalidInput)
	}

	cacheKey := contextCacheKey(userID, conversationID)
	if cached, ok := e.cache.Get(ctx, cacheKey); ok {
		var assembled AssembledContext
		if err := json.Unmarshal(cached, &assembled); err == nil {
			e.metrics.RecordCacheHit()
			return assembled, nil
		}
	}
	e.metrics.RecordCacheMiss()

	now := time.Now().UTC()

	var (
		wg        sync.WaitGroup
		shortTerm []*types.ConversationTurn
		older     []*types.ConversationTurn
		total     int
		longTerm  []ScoredFact
		profile   *types.UserProfile
	)

	wg.Add(3)

	go func() {
		defer wg.Done()
		var err error
		shortTerm, total, err = e.window.Recent(ctx, conversationID)
		if err != nil {
			e.logger.Warn("short-term window unavailable",
				"conversation_id", conversationID, "error", err)
			return
		}
		if total > e.summarizer.Threshold() {
			older, err = e.window.Older(ctx, conversationID)
			if err != nil {
				e.logger.Warn("failed to load older turns",
					"conversation_id", conversationID, "error", err)
			}
		}
	}()

	go func() {
		defer wg.Done()
		retrievalCtx, cancel := context.WithTimeout(ctx, e.retrievalTimeout)
		defer cancel()
		longTerm = e.retriever.Retrieve(retrievalCtx, userID, message, intent, now)
		e.metrics.RecordRetrieval()
	}()

	go func() {
		defer wg.Done()
		var err error
		profile, err = e.store.GetProfile(ctx, userID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			e.logger.Warn("profile unavailable", "user_id", userID, "error", err)
		}
	}()

	wg.Wait()

	// Summarization depends on the older turns, so it runs after the
	// gather. The summary cache makes the common case a lookup.
	summary := e.summarizer.Summarize(ctx, conversationID, older, total)

	longTerm = FilterScored(longTerm, FilterOptions{})

	assembled := e.assembler.Assemble(AssemblyInput{
		Profile:        profile,
		LongTerm:       longTerm,
		WorkingSummary: summary,
		ShortTerm:      shortTerm,
		CurrentMessage: message,
	})

	if data, err := json.Marshal(assembled); err == nil {
		e.cache.Set(ctx, cacheKey, data, e.cacheTTL)
	}
	e.emit("context.assembled", map[string]any{
		"user_id":         userID,
		"conversation_id": conversationID,
		"tokens_used":     assembled.TokensUsed,
		"fact_count":      len(assembled.FactIDs),
	})
	return assembled, nil
}

// AppendTurn records one turn and invalidates the conversation's
// cached context.
func (e *MemoryEngine) AppendTurn(ctx context.Context, turn *types.ConversationTurn) error {
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	if err := e.store.AppendTurn(ctx, turn); err != nil {
		return err
	}
	e.cache.Delete(ctx, contextCacheKey(turn.UserID, turn.ConversationID))
	return nil
}

// Consolidate runs the consolidation pipeline for one conversation,
// serialized per user.
func (e *MemoryEngine) Consolidate(ctx context.Context, userID, conversationID string) (ConsolidationResult, error) {
	if userID == "" || conversationID == "" {
		return ConsolidationResult{}, fmt.Errorf("%w: user id and conversation id are required", storage.ErrInvalidInput)
	}

	mu := e.lockFor(userID)
	mu.Lock()
	defer mu.Unlock()

	result, err := e.pipeline.Consolidate(ctx, userID, conversationID)
	if err != nil {
		return result, err
	}

	e.metrics.RecordConsolidation()
	e.cache.Delete(ctx, contextCacheKey(userID, conversationID))
	e.emit("consolidation.finished", result)
	return result, nil
}

// ApplyDecay runs one decay sweep for the user.
func (e *MemoryEngine) ApplyDecay(ctx context.Context, userID string) (DecayReport, error) {
	if userID == "" {
		return DecayReport{}, fmt.Errorf("%w: user id is required", storage.ErrInvalidInput)
	}

	report, err := e.decay.Run(ctx, userID, time.Now().UTC())
	if err != nil {
		return report, err
	}
	e.metrics.RecordDecayRun()
	e.emit("decay.finished", report)
	return report, nil
}

// ListUserIDs exposes the known fact owners for schedulers.
func (e *MemoryEngine) ListUserIDs(ctx context.Context) ([]string, error) {
	return e.store.ListUserIDs(ctx)
}

// HealthMetrics reports storage, usage and profile diagnostics for one
// user.
func (e *MemoryEngine) HealthMetrics(ctx context.Context, userID string) (HealthReport, error) {
	report := HealthReport{UserID: userID}

	stats, err := e.store.FactStats(ctx, userID)
	if err != nil {
		return report, fmt.Errorf("health: %w", err)
	}
	report.Storage = stats
	report.Usage = e.metrics.Snapshot()

	profile, err := e.store.GetProfile(ctx, userID)
	if err == nil {
		report.Profile.Completeness = profile.Completeness()
		report.Profile.TotalMemories = profile.Meta.TotalMemories
		report.Profile.LastUpdated = profile.Meta.LastUpdated
	} else if !errors.Is(err, storage.ErrNotFound) {
		return report, fmt.Errorf("health: %w", err)
	}

	return report, nil
}

// bumpAccess queues an access-count update. The queue is best-effort:
// under pressure a bump is dropped rather than blocking retrieval.
func (e *MemoryEngine) bumpAccess(factID string) {
	select {
	case e.accessQueue <- factID:
	default:
		e.logger.Debug("access queue full, dropping bump", "fact_id", factID)
	}
}

func (e *MemoryEngine) accessWorker() {
	defer e.wg.Done()
	for {
		select {
		case factID := <-e.accessQueue:
			e.recordAccess(factID)
		case <-e.done:
			// Drain what is already queued before exiting.
			for {
				select {
				case factID := <-e.accessQueue:
					e.recordAccess(factID)
				default:
					return
				}
			}
		}
	}
}

func (e *MemoryEngine) recordAccess(factID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.store.RecordAccess(ctx, factID, time.Now().UTC()); err != nil && !errors.Is(err, storage.ErrNotFound) {
		e.logger.Warn("failed to record fact access", "fact_id", factID, "error", err)
	}
}

func (e *MemoryEngine) lockFor(userID string) *sync.Mutex {
	mu, _ := e.userLocks.LoadOrStore(userID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func (e *MemoryEngine) emit(event string, payload any) {
	if e.onEvent != nil {
		e.onEvent(event, payload)
	}
}

func contextCacheKey(userID, conversationID string) string {
	return "context:" + userID + ":" + conversationID
}
