// Package llm provides clients for the external embedding and
// completion services the memory core depends on. Both are treated as
// unreliable collaborators: every call goes through a circuit breaker
// and callers are expected to degrade gracefully when they fail.
package llm

import "context"

// TextGenerator produces a completion for a single prompt. The memory
// core uses it only for digesting older conversation turns into a
// working-memory summary.
type TextGenerator interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Model() string
}

// EmbeddingGenerator turns text into vectors for the external
// vector-search index. Embed must be idempotent and side-effect-free.
type EmbeddingGenerator interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}
