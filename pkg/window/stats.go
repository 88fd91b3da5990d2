package window

import "sync/atomic"

// Statistics tracks window activity with atomic counters. A Statistics
// value is always attached to a Window; Prometheus export is optional.
type Statistics struct {
	inserts  atomic.Int64
	replaces atomic.Int64
	evicts   atomic.Int64
	size     atomic.Int64
}

// NewStatistics creates an empty Statistics
func NewStatistics() *Statistics {
	return &Statistics{}
}

// Insert records a prepend of a new key
func (s *Statistics) Insert() { s.inserts.Add(1) }

// Replace records an in-place replacement of an existing key
func (s *Statistics) Replace() { s.replaces.Add(1) }

// Evict records the removal of the oldest item due to capacity
func (s *Statistics) Evict() { s.evicts.Add(1) }

// UpdateSize records the current window length
func (s *Statistics) UpdateSize(n int64) { s.size.Store(n) }

// Inserts returns the total number of new keys inserted
func (s *Statistics) Inserts() int64 { return s.inserts.Load() }

// Replaces returns the total number of in-place replacements
func (s *Statistics) Replaces() int64 { return s.replaces.Load() }

// Evicts returns the total number of evictions
func (s *Statistics) Evicts() int64 { return s.evicts.Load() }

// Size returns the last recorded window length
func (s *Statistics) Size() int64 { return s.size.Load() }
