package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)

	_, ok := c.Get("a")
	assert.True(t, ok)

	c.Set("c", 3)

	_, ok = c.Get("b")
	assert.False(t, ok, "b was least recently used")
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 2, c.Size())
}

func TestLRUExpiresEntries(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewLRUCache[string](10, time.Minute)
	c.now = func() time.Time { return now }

	c.Set("k", "v")
	c.Set("other", "x")

	now = now.Add(30 * time.Second)
	v, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	now = now.Add(time.Minute)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Size(), "other is expired but still stored")
}

func TestLRUFullCacheDropsExpiredBeforeLive(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewLRUCache[int](2, time.Minute)
	c.now = func() time.Time { return now }

	c.Set("stale", 1)
	now = now.Add(2 * time.Minute)
	c.Set("live", 2)
	_, _ = c.Get("stale")
	c.Set("stale", 1)
	now = now.Add(30 * time.Second)
	c.Set("fresh", 3)

	// live is least recently used but still valid; nothing expired, so it goes.
	_, ok := c.Get("live")
	assert.False(t, ok)

	now = now.Add(45 * time.Second)
	c.Set("newest", 4)

	// stale (refreshed at +2m) expired at +3m; fresh is still live and kept.
	_, ok = c.Get("stale")
	assert.False(t, ok)
	v, ok := c.Get("fresh")
	assert.True(t, ok)
	assert.Equal(t, 3, v)
	assert.Equal(t, 2, c.Size())
}

func TestLRUOverwriteDeleteAndPurge(t *testing.T) {
	c := NewLRUCache[int](3, time.Minute)
	c.Set("a", 1)
	c.Set("a", 10)
	v, _ := c.Get("a")
	assert.Equal(t, 10, v)
	assert.Equal(t, 1, c.Size())

	c.Set("b", 2)
	c.Delete("a")
	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Purge()
	assert.Equal(t, 0, c.Size())
	c.Set("c", 3)
	v, ok = c.Get("c")
	assert.True(t, ok)
	assert.Equal(t, 3, v)
}
