package engine

import "sync/atomic"

// Metrics tracks engine activity counters. All methods are safe for
// concurrent use.
type Metrics struct {
	retrievals     atomic.Int64
	consolidations atomic.Int64
	decayRuns      atomic.Int64
	cacheHits      atomic.Int64
	cacheMisses    atomic.Int64
}

// MetricsSnapshot is a point-in-time read of the counters.
type MetricsSnapshot struct {
	Retrievals     int64   `json:"retrievals"`
	Consolidations int64   `json:"consolidations"`
	DecayRuns      int64   `json:"decay_runs"`
	CacheHits      int64   `json:"cache_hits"`
	CacheMisses    int64   `json:"cache_misses"`
	CacheHitRatio  float64 `json:"cache_hit_ratio"`
}

func (m *Metrics) RecordRetrieval()     { m.retrievals.Add(1) }
func (m *Metrics) RecordConsolidation() { m.consolidations.Add(1) }
func (m *Metrics) RecordDecayRun()      { m.decayRuns.Add(1) }
func (m *Metrics) RecordCacheHit()      { m.cacheHits.Add(1) }
func (m *Metrics) RecordCacheMiss()     { m.cacheMisses.Add(1) }

func (m *Metrics) Snapshot() MetricsSnapshot {
	hits := m.cacheHits.Load()
	misses := m.cacheMisses.Load()
	s := MetricsSnapshot{
		Retrievals:     m.retrievals.Load(),
		Consolidations: m.consolidations.Load(),
		DecayRuns:      m.decayRuns.Load(),
		CacheHits:      hits,
		CacheMisses:    misses,
	}
	if total := hits + misses; total > 0 {
		s.CacheHitRatio = float64(hits) / float64(total)
	}
	return s
}
