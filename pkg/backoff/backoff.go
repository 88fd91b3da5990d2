package backoff

import (
	"math/rand"
	"sync"
	"time"
)

// Default bounds for reconnect scheduling.
const (
	DefaultMin        = 1 * time.Second
	DefaultMax        = 30 * time.Second
	DefaultMultiplier = 2.0
)

var (
	// Thread-safe random source for jitter
	randMu     sync.Mutex
	randSource = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// Backoff tracks the current reconnect delay. The delay starts at the
// minimum, doubles on every consecutive failure, is capped at the
// maximum, and resets to the minimum on a successful connect.
//
// All methods are safe for concurrent use.
type Backoff struct {
	mu         sync.Mutex
	min        time.Duration
	max        time.Duration
	multiplier float64
	jitter     bool
	current    time.Duration
}

// Option configures a Backoff
type Option func(*Backoff)

// WithMultiplier overrides the growth factor (default 2.0)
func WithMultiplier(m float64) Option {
	return func(b *Backoff) {
		if m > 1 {
			b.multiplier = m
		}
	}
}

// WithJitter adds up to 25% randomness to each delay to prevent
// thundering herd when many clients reconnect at once
func WithJitter() Option {
	return func(b *Backoff) {
		b.jitter = true
	}
}

// New creates a Backoff bounded between min and max. Zero or negative
// bounds fall back to the defaults.
func New(min, max time.Duration, opts ...Option) *Backoff {
	if min <= 0 {
		min = DefaultMin
	}
	if max <= 0 {
		max = DefaultMax
	}
	if max < min {
		max = min
	}

	b := &Backoff{
		min:        min,
		max:        max,
		multiplier: DefaultMultiplier,
		current:    min,
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Next returns the delay to use for the next reconnect attempt and
// advances the state, so the Nth consecutive call (after a Reset)
// yields min * multiplier^(N-1), capped at max.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	delay := b.current

	next := time.Duration(float64(b.current) * b.multiplier)
	if next > b.max || next < b.current {
		next = b.max
	}
	b.current = next

	if b.jitter {
		randMu.Lock()
		delay += time.Duration(randSource.Int63n(int64(delay / 4)))
		randMu.Unlock()
	}

	return delay
}

// Current returns the delay the next call to Next would schedule,
// without advancing the state.
func (b *Backoff) Current() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// Reset returns the delay to the configured minimum. Called on every
// successful connect.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = b.min
}
