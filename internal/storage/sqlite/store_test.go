package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/PandyaSumit/mini--AI-tutor-sub006/internal/storage"
	"github.com/PandyaSumit/mini--AI-tutor-sub006/pkg/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testFact(id, userID string, createdAt time.Time) *types.MemoryFact {
	return &types.MemoryFact{
		ID:      id,
		UserID:  userID,
		Content: "content of " + id,
		Type:    types.TypeFact,
		Namespace: types.Namespace{
			Category: "personal",
			Topic:    "identity",
		},
		Source: types.FactSource{
			ConversationID:   "c1",
			ExtractionMethod: types.ExtractionAutomatic,
			Confidence:       0.8,
		},
		Importance: types.Importance{Score: 0.5},
		Temporal:   types.Temporal{CreatedAt: createdAt},
		Privacy:    types.Privacy{Level: types.PrivacyPublic},
		Status:     types.StatusActive,
	}
}

func TestFactRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	now := time.Now().UTC().Truncate(time.Second)

	fact := testFact("f1", "u1", now)
	fact.History = []types.Revision{{Content: "older wording", Timestamp: now, Reason: "consolidation"}}
	if err := store.PutFact(ctx, fact); err != nil {
		t.Fatalf("PutFact: %v", err)
	}

	got, err := store.GetFact(ctx, "f1")
	if err != nil {
		t.Fatalf("GetFact: %v", err)
	}
	if got.Content != fact.Content || got.Namespace != fact.Namespace {
		t.Errorf("fact mismatch: %+v", got)
	}
	if len(got.History) != 1 || got.History[0].Reason != "consolidation" {
		t.Errorf("history not preserved: %+v", got.History)
	}
}

func TestGetFactNotFound(t *testing.T) {
	store := openTestStore(t)
	if _, err := store.GetFact(context.Background(), "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetFact on missing id: %v, want ErrNotFound", err)
	}
}

func TestPutFactRejectsInvalid(t *testing.T) {
	store := openTestStore(t)
	fact := testFact("", "u1", time.Now())
	if err := store.PutFact(context.Background(), fact); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("PutFact on invalid fact: %v, want ErrInvalidInput", err)
	}
}

func TestUpdateFact(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	now := time.Now().UTC()

	fact := testFact("f1", "u1", now)
	if err := store.PutFact(ctx, fact); err != nil {
		t.Fatalf("PutFact: %v", err)
	}

	fact.Status = types.StatusArchived
	fact.Importance.Score = 0.1
	if err := store.UpdateFact(ctx, fact); err != nil {
		t.Fatalf("UpdateFact: %v", err)
	}

	got, _ := store.GetFact(ctx, "f1")
	if got.Status != types.StatusArchived {
		t.Errorf("status = %s, want archived", got.Status)
	}
	if got.Importance.Score != 0.1 {
		t.Errorf("importance = %f, want 0.1", got.Importance.Score)
	}

	missing := testFact("ghost", "u1", now)
	if err := store.UpdateFact(ctx, missing); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("UpdateFact on missing fact: %v, want ErrNotFound", err)
	}
}

func TestListFactsFiltersByStatus(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	now := time.Now().UTC()

	active := testFact("a", "u1", now)
	archived := testFact("b", "u1", now.Add(-time.Hour))
	archived.Status = types.StatusArchived
	other := testFact("c", "u2", now)

	for _, fact := range []*types.MemoryFact{active, archived, other} {
		if err := store.PutFact(ctx, fact); err != nil {
			t.Fatalf("PutFact(%s): %v", fact.ID, err)
		}
	}

	actives, err := store.ListFacts(ctx, "u1", types.StatusActive)
	if err != nil {
		t.Fatalf("ListFacts: %v", err)
	}
	if len(actives) != 1 || actives[0].ID != "a" {
		t.Errorf("active facts = %v", factIDs(actives))
	}

	all, err := store.ListFacts(ctx, "u1", "")
	if err != nil {
		t.Fatalf("ListFacts all: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("all facts = %v, want 2", factIDs(all))
	}
	// Newest first.
	if all[0].ID != "a" {
		t.Errorf("ordering: first = %s, want a", all[0].ID)
	}
}

func TestRecordAccess(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	now := time.Now().UTC().Truncate(time.Second)

	if err := store.PutFact(ctx, testFact("f1", "u1", now.Add(-time.Hour))); err != nil {
		t.Fatalf("PutFact: %v", err)
	}

	if err := store.RecordAccess(ctx, "f1", now); err != nil {
		t.Fatalf("RecordAccess: %v", err)
	}
	if err := store.RecordAccess(ctx, "f1", now.Add(time.Minute)); err != nil {
		t.Fatalf("second RecordAccess: %v", err)
	}

	got, _ := store.GetFact(ctx, "f1")
	if got.Importance.Factors.AccessFrequency != 2 {
		t.Errorf("access frequency = %d, want 2", got.Importance.Factors.AccessFrequency)
	}
	if got.Temporal.LastAccessedAt.IsZero() {
		t.Error("last accessed not stamped")
	}

	if err := store.RecordAccess(ctx, "missing", now); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("RecordAccess on missing fact: %v, want ErrNotFound", err)
	}
}

func TestFactStats(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	now := time.Now().UTC()

	a := testFact("a", "u1", now)
	a.Importance.Score = 0.4
	b := testFact("b", "u1", now)
	b.Importance.Score = 0.6
	c := testFact("c", "u1", now)
	c.Status = types.StatusArchived

	for _, fact := range []*types.MemoryFact{a, b, c} {
		if err := store.PutFact(ctx, fact); err != nil {
			t.Fatalf("PutFact: %v", err)
		}
	}

	stats, err := store.FactStats(ctx, "u1")
	if err != nil {
		t.Fatalf("FactStats: %v", err)
	}
	if stats.Total != 3 || stats.Active != 2 || stats.Archived != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.AvgImportance != 0.5 {
		t.Errorf("avg importance = %f, want 0.5", stats.AvgImportance)
	}
	if stats.AvgConfidence != 0.8 {
		t.Errorf("avg confidence = %f, want 0.8", stats.AvgConfidence)
	}
}

func TestListUserIDs(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	now := time.Now().UTC()

	for i, userID := range []string{"u1", "u1", "u2"} {
		fact := testFact(string(rune('a'+i)), userID, now)
		if err := store.PutFact(ctx, fact); err != nil {
			t.Fatalf("PutFact: %v", err)
		}
	}

	users, err := store.ListUserIDs(ctx)
	if err != nil {
		t.Fatalf("ListUserIDs: %v", err)
	}
	if len(users) != 2 {
		t.Errorf("users = %v, want 2 distinct", users)
	}
}

func TestProfileUpsert(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	now := time.Now().UTC()

	if _, err := store.GetProfile(ctx, "u1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetProfile on missing user: %v, want ErrNotFound", err)
	}

	profile := types.NewUserProfile("u1")
	profile.Personal.Name.Set("Alex", 0.8, "conversation", now)
	if err := store.PutProfile(ctx, profile); err != nil {
		t.Fatalf("PutProfile: %v", err)
	}

	profile.Personal.Role.Set("engineer", 0.8, "conversation", now)
	if err := store.PutProfile(ctx, profile); err != nil {
		t.Fatalf("PutProfile upsert: %v", err)
	}

	got, err := store.GetProfile(ctx, "u1")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if got.Personal.Name.Value != "Alex" || got.Personal.Role.Value != "engineer" {
		t.Errorf("profile = %+v", got.Personal)
	}
}

func TestTurnsChronologicalOrder(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	base := time.Now().UTC().Add(-time.Hour)

	for i, content := range []string{"first", "second", "third"} {
		turn := &types.ConversationTurn{
			ID:             content,
			UserID:         "u1",
			ConversationID: "c1",
			Role:           types.RoleUser,
			Content:        content,
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.AppendTurn(ctx, turn); err != nil {
			t.Fatalf("AppendTurn: %v", err)
		}
	}

	turns, err := store.ListTurns(ctx, "c1")
	if err != nil {
		t.Fatalf("ListTurns: %v", err)
	}
	if len(turns) != 3 {
		t.Fatalf("%d turns, want 3", len(turns))
	}
	for i, want := range []string{"first", "second", "third"} {
		if turns[i].Content != want {
			t.Errorf("turn %d = %q, want %q", i, turns[i].Content, want)
		}
	}

	empty, err := store.ListTurns(ctx, "unknown")
	if err != nil {
		t.Fatalf("ListTurns unknown: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("unknown conversation has %d turns", len(empty))
	}
}

func factIDs(facts []*types.MemoryFact) []string {
	out := make([]string, len(facts))
	for i, fact := range facts {
		out[i] = fact.ID
	}
	return out
}
