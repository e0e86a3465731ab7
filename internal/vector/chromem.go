package vector

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	chromem "github.com/philippgille/chromem-go"
)

// ChromemIndex implements Index on chromem-go, a pure-Go embedded
// vector database. Each collection maps to one chromem collection so
// user fact sets stay isolated.
type ChromemIndex struct {
	db     *chromem.DB
	logger *slog.Logger

	mu          sync.RWMutex
	collections map[string]*chromem.Collection
}

// NewChromemIndex creates an in-process index. When path is non-empty
// the index is persisted there across restarts.
func NewChromemIndex(path string, logger *slog.Logger) (*ChromemIndex, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var db *chromem.DB
	if path == "" {
		db = chromem.NewDB()
	} else {
		var err error
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("vector: failed to open persistent index: %w", err)
		}
	}

	return &ChromemIndex{
		db:          db,
		logger:      logger,
		collections: make(map[string]*chromem.Collection),
	}, nil
}

// collection returns the chromem collection for the given name,
// creating it on first use.
func (x *ChromemIndex) collection(name string) (*chromem.Collection, error) {
	x.mu.RLock()
	col, ok := x.collections[name]
	x.mu.RUnlock()
	if ok {
		return col, nil
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	// Re-check after acquiring the write lock.
	if col, ok := x.collections[name]; ok {
		return col, nil
	}

	// Embeddings are always provided by the caller, so no embedding
	// function is configured; the default cosine distance applies.
	col, err := x.db.GetOrCreateCollection("facts_"+name, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("vector: failed to create collection %q: %w", name, err)
	}
	x.collections[name] = col
	return col, nil
}

// Upsert stores or replaces the embedding for id.
func (x *ChromemIndex) Upsert(ctx context.Context, collection, id string, embedding []float32, metadata map[string]string) error {
	if id == "" {
		return fmt.Errorf("vector: document ID is required")
	}
	if len(embedding) == 0 {
		return fmt.Errorf("vector: embedding is required")
	}

	col, err := x.collection(collection)
	if err != nil {
		return err
	}

	doc := chromem.Document{
		ID:        id,
		Embedding: embedding,
		Metadata:  metadata,
		// chromem requires non-empty content; the fact text lives in the
		// durable store, so the ID stands in here.
		Content: id,
	}
	if err := col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("vector: failed to upsert %s: %w", id, err)
	}
	return nil
}

// Search returns up to topK nearest neighbors. chromem rejects queries
// asking for more results than the collection holds, so topK is clamped
// to the current document count first.
func (x *ChromemIndex) Search(ctx context.Context, collection string, query []float32, topK int) ([]Match, error) {
	if topK <= 0 {
		return nil, nil
	}

	col, err := x.collection(collection)
	if err != nil {
		return nil, err
	}

	if n := col.Count(); n < topK {
		if n == 0 {
			return nil, nil
		}
		topK = n
	}

	results, err := col.QueryEmbedding(ctx, query, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("vector: query failed: %w", err)
	}

	matches := make([]Match, 0, len(results))
	for _, r := range results {
		matches = append(matches, Match{ID: r.ID, Score: float64(r.Similarity)})
	}
	x.logger.Debug("vector search", "collection", collection, "matches", len(matches))
	return matches, nil
}
