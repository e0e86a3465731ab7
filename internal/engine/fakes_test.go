package engine

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/PandyaSumit/mini--AI-tutor-sub006/internal/storage"
	"github.com/PandyaSumit/mini--AI-tutor-sub006/internal/vector"
	"github.com/PandyaSumit/mini--AI-tutor-sub006/pkg/types"
)

// memStore is an in-memory storage.Store for engine tests.
type memStore struct {
	mu       sync.Mutex
	facts    map[string]*types.MemoryFact
	profiles map[string]*types.UserProfile
	turns    map[string][]*types.ConversationTurn
}

func newMemStore() *memStore {
	return &memStore{
		facts:    make(map[string]*types.MemoryFact),
		profiles: make(map[string]*types.UserProfile),
		turns:    make(map[string][]*types.ConversationTurn),
	}
}

func (s *memStore) PutFact(_ context.Context, fact *types.MemoryFact) error {
	if err := fact.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *fact
	s.facts[fact.ID] = &clone
	return nil
}

func (s *memStore) GetFact(_ context.Context, id string) (*types.MemoryFact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fact, ok := s.facts[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	clone := *fact
	return &clone, nil
}

func (s *memStore) UpdateFact(_ context.Context, fact *types.MemoryFact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.facts[fact.ID]; !ok {
		return storage.ErrNotFound
	}
	clone := *fact
	s.facts[fact.ID] = &clone
	return nil
}

func (s *memStore) ListFacts(_ context.Context, userID string, status types.FactStatus) ([]*types.MemoryFact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*types.MemoryFact
	for _, fact := range s.facts {
		if fact.UserID != userID {
			continue
		}
		if status != "" && fact.Status != status {
			continue
		}
		clone := *fact
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Temporal.CreatedAt.After(out[j].Temporal.CreatedAt)
	})
	return out, nil
}

func (s *memStore) RecordAccess(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fact, ok := s.facts[id]
	if !ok {
		return storage.ErrNotFound
	}
	fact.Importance.Factors.AccessFrequency++
	fact.Temporal.LastAccessedAt = at
	return nil
}

func (s *memStore) ListUserIDs(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for _, fact := range s.facts {
		if !seen[fact.UserID] {
			seen[fact.UserID] = true
			out = append(out, fact.UserID)
		}
	}
	return out, nil
}

func (s *memStore) FactStats(_ context.Context, userID string) (storage.FactStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var stats storage.FactStats
	var confSum, impSum float64
	for _, fact := range s.facts {
		if fact.UserID != userID {
			continue
		}
		stats.Total++
		switch fact.Status {
		case types.StatusActive:
			stats.Active++
			confSum += fact.Source.Confidence
			impSum += fact.Importance.Score
		case types.StatusArchived:
			stats.Archived++
		}
	}
	if stats.Active > 0 {
		stats.AvgConfidence = confSum / float64(stats.Active)
		stats.AvgImportance = impSum / float64(stats.Active)
	}
	return stats, nil
}

func (s *memStore) GetProfile(_ context.Context, userID string) (*types.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	profile, ok := s.profiles[userID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	clone := *profile
	return &clone, nil
}

func (s *memStore) PutProfile(_ context.Context, profile *types.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *profile
	s.profiles[profile.UserID] = &clone
	return nil
}

func (s *memStore) AppendTurn(_ context.Context, turn *types.ConversationTurn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *turn
	s.turns[turn.ConversationID] = append(s.turns[turn.ConversationID], &clone)
	return nil
}

func (s *memStore) ListTurns(_ context.Context, conversationID string) ([]*types.ConversationTurn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*types.ConversationTurn(nil), s.turns[conversationID]...), nil
}

func (s *memStore) Close() error { return nil }

// fakeEmbedder returns a constant vector, or fails when broken.
type fakeEmbedder struct {
	broken bool
	calls  int
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	f.calls++
	if f.broken {
		return nil, errors.New("embedding service down")
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := f.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Model() string { return "fake-embedder" }

// fakeIndex records upserts and serves canned matches.
type fakeIndex struct {
	mu      sync.Mutex
	upserts map[string][]string // collection -> ids
	matches []vector.Match
	fail    bool
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{upserts: make(map[string][]string)}
}

func (f *fakeIndex) Upsert(_ context.Context, collection, id string, _ []float32, _ map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts[collection] = append(f.upserts[collection], id)
	return nil
}

func (f *fakeIndex) Search(_ context.Context, _ string, _ []float32, _ int) ([]vector.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errors.New("vector search down")
	}
	return append([]vector.Match(nil), f.matches...), nil
}

// fakeGenerator returns a fixed completion, or fails when broken.
type fakeGenerator struct {
	response string
	broken   bool
	calls    int
}

func (f *fakeGenerator) Complete(_ context.Context, _ string) (string, error) {
	f.calls++
	if f.broken {
		return "", errors.New("llm down")
	}
	return f.response, nil
}

func (f *fakeGenerator) Model() string { return "fake-generator" }

func activeFact(id, userID, content string, createdAt time.Time) *types.MemoryFact {
	return &types.MemoryFact{
		ID:      id,
		UserID:  userID,
		Content: content,
		Type:    types.TypeFact,
		Namespace: types.Namespace{
			Category: "personal",
			Topic:    "identity",
		},
		Source: types.FactSource{
			ExtractionMethod: types.ExtractionAutomatic,
			Confidence:       0.8,
		},
		Importance: types.Importance{Score: 0.5},
		Temporal:   types.Temporal{CreatedAt: createdAt},
		Privacy:    types.Privacy{Level: types.PrivacyPublic},
		Status:     types.StatusActive,
	}
}
