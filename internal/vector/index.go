// Package vector defines the external vector-search collaborator
// interface and an embedded chromem-go backend. The memory core treats
// the index as advisory: a failed or empty search degrades retrieval to
// an empty candidate set, never to an error on the chat path.
package vector

import "context"

// Match is one nearest-neighbor hit. Score is a similarity in [0,1],
// comparable across calls within the same collection.
type Match struct {
	ID    string
	Score float64
}

// Index is the vector-search service consumed by the retriever and the
// consolidation pipeline. Collections partition the index per user.
type Index interface {
	// Upsert stores or replaces the embedding for id in the collection.
	Upsert(ctx context.Context, collection, id string, embedding []float32, metadata map[string]string) error

	// Search returns up to topK nearest neighbors for the query vector.
	// An empty collection yields an empty result, not an error.
	Search(ctx context.Context, collection string, query []float32, topK int) ([]Match, error)
}
