package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAllowConsumesCapacity(t *testing.T) {
	l := New()

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("k", 3, 0), "request %d should pass", i)
	}
	assert.False(t, l.Allow("k", 3, 0), "bucket should be empty")
}

func TestKeysAreIndependent(t *testing.T) {
	l := New()

	assert.True(t, l.Allow("a", 1, 0))
	assert.False(t, l.Allow("a", 1, 0))
	assert.True(t, l.Allow("b", 1, 0))
}

func TestSweepResetsIdleBuckets(t *testing.T) {
	l := New()

	assert.True(t, l.Allow("k", 1, 0))
	assert.False(t, l.Allow("k", 1, 0))

	l.Sweep(-time.Millisecond)

	assert.True(t, l.Allow("k", 1, 0), "swept bucket starts fresh")
}
