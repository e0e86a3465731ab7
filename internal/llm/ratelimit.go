package llm

import (
	"context"

	"golang.org/x/time/rate"
)

// ThrottledEmbedder wraps an EmbeddingGenerator with a token bucket so
// background consolidation cannot saturate the embedding service that
// the interactive retrieval path also depends on.
type ThrottledEmbedder struct {
	inner   EmbeddingGenerator
	limiter *rate.Limiter
}

// NewThrottledEmbedder caps calls at perSec requests per second with a
// burst of one; batch calls count as a single request.
func NewThrottledEmbedder(inner EmbeddingGenerator, perSec float64) *ThrottledEmbedder {
	if perSec <= 0 {
		perSec = 5
	}
	return &ThrottledEmbedder{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(perSec), 1),
	}
}

// Model returns the wrapped embedder's model name.
func (t *ThrottledEmbedder) Model() string { return t.inner.Model() }

// Embed waits for a token, then delegates.
func (t *ThrottledEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return t.inner.Embed(ctx, text)
}

// EmbedBatch waits for a token, then delegates.
func (t *ThrottledEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return t.inner.EmbedBatch(ctx, texts)
}
