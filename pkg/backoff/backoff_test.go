package backoff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoff_DoublesAndCaps(t *testing.T) {
	b := New(1*time.Second, 30*time.Second)

	// min * 2^(N-1), capped at max
	expected := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second,
		30 * time.Second,
	}

	for i, want := range expected {
		assert.Equal(t, want, b.Next(), "attempt %d", i+1)
	}
}

func TestBackoff_ResetReturnsToMin(t *testing.T) {
	b := New(1*time.Second, 30*time.Second)

	b.Next()
	b.Next()
	b.Next()
	assert.Equal(t, 8*time.Second, b.Current())

	b.Reset()
	assert.Equal(t, 1*time.Second, b.Current())
	assert.Equal(t, 1*time.Second, b.Next())
	assert.Equal(t, 2*time.Second, b.Next())
}

func TestBackoff_DefaultBounds(t *testing.T) {
	b := New(0, 0)
	assert.Equal(t, DefaultMin, b.Current())

	// Walk far enough to hit the cap
	var last time.Duration
	for i := 0; i < 10; i++ {
		last = b.Next()
	}
	assert.Equal(t, DefaultMax, last)
}

func TestBackoff_MaxBelowMinClamped(t *testing.T) {
	b := New(5*time.Second, 1*time.Second)
	assert.Equal(t, 5*time.Second, b.Next())
	assert.Equal(t, 5*time.Second, b.Next())
}

func TestBackoff_Multiplier(t *testing.T) {
	b := New(100*time.Millisecond, 10*time.Second, WithMultiplier(3))

	assert.Equal(t, 100*time.Millisecond, b.Next())
	assert.Equal(t, 300*time.Millisecond, b.Next())
	assert.Equal(t, 900*time.Millisecond, b.Next())
}

func TestBackoff_JitterStaysBounded(t *testing.T) {
	b := New(1*time.Second, 30*time.Second, WithJitter())

	d := b.Next()
	assert.GreaterOrEqual(t, d, 1*time.Second)
	assert.Less(t, d, 1250*time.Millisecond)
}
