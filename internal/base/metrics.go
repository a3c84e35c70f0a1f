package base

import "sync/atomic"

// FilterMetricsTracker accumulates hit/miss counts atomically so it can be
// shared across concurrently-querying workers without external locking.
type FilterMetricsTracker struct {
	hits   atomic.Int64
	misses atomic.Int64
}

// Load returns a snapshot of the current counts.
func (t *FilterMetricsTracker) Load() FilterMetrics {
	return FilterMetrics{
		Hits:   t.hits.Load(),
		Misses: t.misses.Load(),
	}
}

// RecordSkip records that a lookup allowed the caller to avoid work.
func (t *FilterMetricsTracker) RecordSkip() {
	t.hits.Add(1)
}

// RecordLoad records that a lookup could not rule out a match.
func (t *FilterMetricsTracker) RecordLoad() {
	t.misses.Add(1)
}
