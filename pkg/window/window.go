package window

import (
	"fmt"
	"sync"

	"github.com/agentreplay/agentreplay-sub002/errors"
)

// Window is a thread-safe, bounded, most-recent-first sequence of items
// keyed by identity. Upserting an item whose key is already present
// replaces it in place without changing its position; a new key is
// prepended and the oldest item is evicted once the capacity is
// exceeded. The length never exceeds the capacity.
type Window[T any] struct {
	mu      sync.RWMutex
	items   []T
	cap     int
	keyFn   func(T) string
	stats   *Statistics    // ALWAYS initialized for observability
	metrics *windowMetrics // Optional Prometheus metrics
}

// Option configures a Window
type Option[T any] func(*Window[T]) error

// New creates a Window holding at most capacity items, identified by
// keyFn. Returns an error if metrics registration fails when requested.
func New[T any](capacity int, keyFn func(T) string, opts ...Option[T]) (*Window[T], error) {
	if capacity <= 0 {
		capacity = 1 // Minimum capacity
	}
	if keyFn == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("key function is required"),
			"window", "New", "validate key function")
	}

	w := &Window[T]{
		items: make([]T, 0, capacity),
		cap:   capacity,
		keyFn: keyFn,
		stats: NewStatistics(), // ALWAYS present
	}

	for _, opt := range opts {
		if err := opt(w); err != nil {
			return nil, err
		}
	}

	return w, nil
}

// Upsert inserts or replaces an item by key. Returns true if an
// existing item was replaced in place, false if the item was prepended.
func (w *Window[T]) Upsert(item T) bool {
	key := w.keyFn(item)

	w.mu.Lock()
	defer w.mu.Unlock()

	for i := range w.items {
		if w.keyFn(w.items[i]) == key {
			w.items[i] = item

			w.stats.Replace()
			if w.metrics != nil {
				w.metrics.recordReplace()
			}
			return true
		}
	}

	// Prepend; capacity is small enough that the copy is cheap
	w.items = append(w.items, item)
	copy(w.items[1:], w.items)
	w.items[0] = item

	w.stats.Insert()
	if len(w.items) > w.cap {
		w.items = w.items[:w.cap]
		w.stats.Evict()
		if w.metrics != nil {
			w.metrics.recordEvict()
		}
	}

	w.stats.UpdateSize(int64(len(w.items)))
	if w.metrics != nil {
		w.metrics.recordInsert(len(w.items), w.cap)
	}
	return false
}

// Snapshot returns a copy of the current contents, most recent first.
func (w *Window[T]) Snapshot() []T {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]T, len(w.items))
	copy(out, w.items)
	return out
}

// Get returns the item with the given key, if present.
func (w *Window[T]) Get(key string) (T, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	for i := range w.items {
		if w.keyFn(w.items[i]) == key {
			return w.items[i], true
		}
	}
	var zero T
	return zero, false
}

// Len returns the current number of items.
func (w *Window[T]) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.items)
}

// Cap returns the maximum number of items the window can hold.
func (w *Window[T]) Cap() int {
	return w.cap // Immutable, no lock needed
}

// Clear removes all items.
func (w *Window[T]) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.items = w.items[:0]
	w.stats.UpdateSize(0)
	if w.metrics != nil {
		w.metrics.updateSize(0, w.cap)
	}
}

// Stats returns window statistics (always available for observability).
func (w *Window[T]) Stats() *Statistics {
	return w.stats
}
