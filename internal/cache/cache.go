// Package cache provides the TTL cache in front of the memory tiers.
// It follows the tiered-cache pattern: a Cache interface with concrete
// backends tried in order, fastest first. A miss is never an error.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key-value cache with per-entry TTL.
type Cache interface {
	// Get returns the cached value and true on a hit. Expired or missing
	// entries report a miss.
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set stores value under key for at most ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)

	// Delete removes key if present.
	Delete(ctx context.Context, key string)
}

// Tiered composes caches tried in order. Reads backfill earlier (faster)
// layers; writes go through to every layer.
type Tiered struct {
	layers []Cache
}

// NewTiered builds a tiered cache. At least one layer is expected; with
// zero layers every Get misses.
func NewTiered(layers ...Cache) *Tiered {
	return &Tiered{layers: layers}
}

// Get tries each layer in order and promotes hits into the layers that
// missed. The backfill uses a short TTL so a stale outer layer cannot
// pin an entry in the inner one for long.
func (t *Tiered) Get(ctx context.Context, key string) ([]byte, bool) {
	for i, layer := range t.layers {
		if value, ok := layer.Get(ctx, key); ok {
			for j := 0; j < i; j++ {
				t.layers[j].Set(ctx, key, value, 30*time.Second)
			}
			return value, true
		}
	}
	return nil, false
}

// Set writes through to all layers.
func (t *Tiered) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	for _, layer := range t.layers {
		layer.Set(ctx, key, value, ttl)
	}
}

// Delete removes the key from all layers.
func (t *Tiered) Delete(ctx context.Context, key string) {
	for _, layer := range t.layers {
		layer.Delete(ctx, key)
	}
}
