package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAllowWithinBudget(t *testing.T) {
	l := New(5, 10*time.Second)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		assert.True(t, l.Allow(base), "event %d should be allowed", i)
	}
}

func TestAllowDeniesOverBudget(t *testing.T) {
	l := New(5, 10*time.Second)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		l.Allow(base)
	}
	assert.False(t, l.Allow(base.Add(time.Millisecond)))
}

func TestAllowResetsAfterWindow(t *testing.T) {
	l := New(2, 10*time.Second)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.Allow(base)
	l.Allow(base)
	assert.False(t, l.Allow(base.Add(time.Second)))

	assert.True(t, l.Allow(base.Add(11*time.Second)))
}
