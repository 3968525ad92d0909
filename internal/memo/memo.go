// Package memo provides a small thread-safe memoization cache with a soft
// entry limit. It exists for render-time results that repeat heavily,
// such as aperture flash geometry stamped thousands of times across a
// board.
package memo

import "sync"

// Cache memoizes values by key. When the cache grows past its soft limit
// the least recently touched quarter of the entries is dropped.
//
// Cache is safe for concurrent use and must not be copied.
type Cache[K comparable, V any] struct {
	mu        sync.Mutex
	entries   map[K]*entry[V]
	softLimit int
	tick      int64
}

type entry[V any] struct {
	value V
	atime int64
}

// New creates a cache. A softLimit of 0 means unlimited.
func New[K comparable, V any](softLimit int) *Cache[K, V] {
	return &Cache[K, V]{
		entries:   make(map[K]*entry[V]),
		softLimit: softLimit,
	}
}

// Get retrieves a memoized value.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.tick++
	e.atime = c.tick
	return e.value, true
}

// GetOrCreate returns the memoized value for key, calling create on a
// miss. A failed create is not cached, so a later call retries. The
// create function runs under the cache lock; it must not call back into
// the cache.
func (c *Cache[K, V]) GetOrCreate(key K, create func() (V, error)) (V, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		c.tick++
		e.atime = c.tick
		return e.value, nil
	}

	value, err := create()
	if err != nil {
		return value, err
	}

	c.tick++
	c.entries[key] = &entry[V]{value: value, atime: c.tick}
	if c.softLimit > 0 && len(c.entries) > c.softLimit {
		c.evict()
	}
	return value, nil
}

// Len returns the number of memoized entries.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear drops all entries.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[K]*entry[V])
	c.tick = 0
}

// evict drops the oldest entries until the cache is at three quarters of
// the soft limit. Caller holds c.mu.
func (c *Cache[K, V]) evict() {
	target := c.softLimit * 3 / 4
	if target < 1 {
		target = 1
	}
	for len(c.entries) > target {
		var oldest K
		var oldestTick int64 = -1
		for k, e := range c.entries {
			if oldestTick < 0 || e.atime < oldestTick {
				oldest = k
				oldestTick = e.atime
			}
		}
		delete(c.entries, oldest)
	}
}
