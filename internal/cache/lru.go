package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// entry carries the cached bytes plus the per-call deadline, since the
// underlying LRU only supports one TTL for the whole cache.
type entry struct {
	value     []byte
	expiresAt time.Time
}

// LRU is the in-process cache layer. The construction-time maxTTL is the
// upper bound enforced by the underlying expirable LRU; shorter per-call
// TTLs are honored by checking the entry deadline on Get.
type LRU struct {
	lru *expirable.LRU[string, entry]
}

// NewLRU creates an in-process cache holding up to size entries for at
// most maxTTL each.
func NewLRU(size int, maxTTL time.Duration) *LRU {
	if size <= 0 {
		size = 1024
	}
	return &LRU{
		lru: expirable.NewLRU[string, entry](size, nil, maxTTL),
	}
}

// Get returns the value for key when present and unexpired.
func (c *LRU) Get(_ context.Context, key string) ([]byte, bool) {
	e, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		c.lru.Remove(key)
		return nil, false
	}
	return e.value, true
}

// Set stores value under key for at most ttl.
func (c *LRU) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	c.lru.Add(key, entry{value: value, expiresAt: time.Now().Add(ttl)})
}

// Delete removes key if present.
func (c *LRU) Delete(_ context.Context, key string) {
	c.lru.Remove(key)
}
