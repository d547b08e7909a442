package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContainer(t *testing.T, frequency float64) *SignalContainer {
	t.Helper()
	c, err := NewSignalContainer([][]float64{{1, 2, 3}, {0.5, 1, 1.5}, {0, 0, 0}}, frequency)
	require.NoError(t, err)
	return c
}

func TestContainerCache(t *testing.T) {
	cache := NewContainerCache(10, time.Minute)

	_, ok := cache.Get("a")
	assert.False(t, ok, "expected cache miss")

	c := testContainer(t, 5)
	cache.Put("a", c)

	got, ok := cache.Get("a")
	require.True(t, ok, "expected cache hit")
	assert.Same(t, c, got)
}

func TestContainerCacheTTL(t *testing.T) {
	cache := NewContainerCache(10, 50*time.Millisecond)
	cache.Put("a", testContainer(t, 5))

	_, ok := cache.Get("a")
	require.True(t, ok)

	time.Sleep(100 * time.Millisecond)

	_, ok = cache.Get("a")
	assert.False(t, ok, "expected entry to expire")
}

func TestContainerCacheLRUEviction(t *testing.T) {
	cache := NewContainerCache(2, time.Minute)
	cache.Put("a", testContainer(t, 1))
	cache.Put("b", testContainer(t, 2))

	// Touch a so that b becomes the oldest
	_, ok := cache.Get("a")
	require.True(t, ok)

	cache.Put("c", testContainer(t, 3))

	_, ok = cache.Get("b")
	assert.False(t, ok, "b should have been evicted")
	_, ok = cache.Get("a")
	assert.True(t, ok)
	_, ok = cache.Get("c")
	assert.True(t, ok)
}

func TestCacheStats(t *testing.T) {
	cache := NewContainerCache(4, 0)
	cache.Put("a", testContainer(t, 1))

	cache.Get("a")
	cache.Get("a")
	cache.Get("missing")

	stats := cache.Stats()
	assert.Equal(t, 1, stats.Size)
	assert.Equal(t, 4, stats.Capacity)
	assert.Equal(t, uint64(2), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.InDelta(t, 66.67, stats.HitRate(), 0.01)

	cache.Clear()
	assert.Equal(t, 0, cache.Stats().Size)
}
