package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock is a manually advanced time source, so expiry needs no real waits.
type fakeClock struct {
	current time.Time
}

func (c *fakeClock) Now() time.Time          { return c.current }
func (c *fakeClock) Advance(d time.Duration) { c.current = c.current.Add(d) }

func TestCacheHitWithinTTL(t *testing.T) {
	clock := &fakeClock{current: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
	cache := NewCache[int](5*time.Minute, clock.Now)

	cache.Set("points", 42)

	clock.Advance(4 * time.Minute)
	got, ok := cache.Get("points")
	assert.True(t, ok)
	assert.Equal(t, 42, got)
}

func TestCacheExpiresAfterTTL(t *testing.T) {
	clock := &fakeClock{current: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
	cache := NewCache[string](5*time.Minute, clock.Now)

	cache.Set("replies", "cached")

	clock.Advance(5*time.Minute + time.Second)
	_, ok := cache.Get("replies")
	assert.False(t, ok)

	// A fresh Set after expiry works as usual.
	cache.Set("replies", "fresh")
	got, ok := cache.Get("replies")
	assert.True(t, ok)
	assert.Equal(t, "fresh", got)
}

func TestCacheMissOnUnknownKey(t *testing.T) {
	clock := &fakeClock{current: time.Now()}
	cache := NewCache[[]Cast](time.Minute, clock.Now)

	_, ok := cache.Get("never-set")
	assert.False(t, ok)
}
