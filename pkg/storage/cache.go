package storage

import (
	"container/list"
	"fmt"
	"os"
	"sync"
	"time"
)

// ContainerCache is a size-bounded LRU cache for loaded SignalContainers.
// Keys include the file's modification time and size, so a rewritten file
// is never served from a stale entry.
type ContainerCache struct {
	capacity int
	ttl      time.Duration
	mu       sync.Mutex
	cache    map[string]*cacheEntry
	lru      *list.List
	hits     uint64
	misses   uint64
}

// cacheEntry represents a cached container
type cacheEntry struct {
	key       string
	container *SignalContainer
	timestamp time.Time
	element   *list.Element
}

// NewContainerCache creates a new cache. A non-positive ttl disables expiry.
func NewContainerCache(capacity int, ttl time.Duration) *ContainerCache {
	return &ContainerCache{
		capacity: capacity,
		ttl:      ttl,
		cache:    make(map[string]*cacheEntry),
		lru:      list.New(),
	}
}

// Get retrieves a cached container
func (cc *ContainerCache) Get(key string) (*SignalContainer, bool) {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	entry, exists := cc.cache[key]
	if !exists {
		cc.misses++
		return nil, false
	}

	if cc.ttl > 0 && time.Since(entry.timestamp) > cc.ttl {
		cc.removeLocked(key)
		cc.misses++
		return nil, false
	}

	cc.lru.MoveToFront(entry.element)
	cc.hits++
	return entry.container, true
}

// Put stores a container in the cache
func (cc *ContainerCache) Put(key string, container *SignalContainer) {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	if entry, exists := cc.cache[key]; exists {
		entry.container = container
		entry.timestamp = time.Now()
		cc.lru.MoveToFront(entry.element)
		return
	}

	entry := &cacheEntry{
		key:       key,
		container: container,
		timestamp: time.Now(),
	}
	entry.element = cc.lru.PushFront(entry)
	cc.cache[key] = entry

	// Evict oldest entry if cache is full
	if cc.lru.Len() > cc.capacity {
		if oldest := cc.lru.Back(); oldest != nil {
			cc.removeLocked(oldest.Value.(*cacheEntry).key)
		}
	}
}

// removeLocked removes an entry from the cache (must hold lock)
func (cc *ContainerCache) removeLocked(key string) {
	if entry, exists := cc.cache[key]; exists {
		cc.lru.Remove(entry.element)
		delete(cc.cache, key)
	}
}

// Clear clears all cache entries
func (cc *ContainerCache) Clear() {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	cc.cache = make(map[string]*cacheEntry)
	cc.lru = list.New()
}

// Stats returns cache statistics
func (cc *ContainerCache) Stats() CacheStats {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	return CacheStats{
		Size:     len(cc.cache),
		Capacity: cc.capacity,
		Hits:     cc.hits,
		Misses:   cc.misses,
	}
}

// CacheStats contains cache statistics
type CacheStats struct {
	Size     int
	Capacity int
	Hits     uint64
	Misses   uint64
}

// HitRate returns the cache hit rate as a percentage
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0.0
	}
	return float64(s.Hits) / float64(total) * 100.0
}

// cacheKey identifies a file version.
func cacheKey(path string, info os.FileInfo) string {
	return fmt.Sprintf("%s|%d|%d", path, info.ModTime().UnixNano(), info.Size())
}
