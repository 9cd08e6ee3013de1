// Package cache is a small read-through LRU with TTL. Concurrent misses for
// the same key share one load.
package cache

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/ikkim/cpportal-backend/internal/metrics"
	"golang.org/x/sync/singleflight"
)

type Cache[V any] struct {
	name  string
	lru   *expirable.LRU[string, V]
	group singleflight.Group

	// gens is bumped by Invalidate; a load only lands if its key's
	// generation did not move while it ran.
	mu   sync.Mutex
	gens map[string]uint64
}

// New creates a cache holding at most size entries, each for ttl.
// name labels the hit/miss metrics.
func New[V any](name string, size int, ttl time.Duration) *Cache[V] {
	if size <= 0 {
		size = 1
	}
	return &Cache[V]{
		name: name,
		lru:  expirable.NewLRU[string, V](size, nil, ttl),
		gens: make(map[string]uint64),
	}
}

func (c *Cache[V]) Get(key string) (V, bool) {
	v, ok := c.lru.Get(key)
	if ok {
		metrics.CacheHits.WithLabelValues(c.name).Inc()
	} else {
		metrics.CacheMisses.WithLabelValues(c.name).Inc()
	}
	return v, ok
}

func (c *Cache[V]) Set(key string, v V) {
	c.lru.Add(key, v)
}

// GetOrLoad returns the cached value or calls load once for all concurrent
// callers of key. Failed loads are not cached, and neither is a load that
// overlapped an Invalidate of the same key.
func (c *Cache[V]) GetOrLoad(key string, load func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	res, err, _ := c.group.Do(key, func() (interface{}, error) {
		gen := c.generation(key)
		v, err := load()
		if err != nil {
			return v, err
		}
		c.mu.Lock()
		if c.gens[key] == gen {
			c.lru.Add(key, v)
		}
		c.mu.Unlock()
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return res.(V), nil
}

func (c *Cache[V]) generation(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[key]
}

// Invalidate drops the given keys. Loads already running for them finish
// but are not stored.
func (c *Cache[V]) Invalidate(keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		c.gens[k]++
		c.lru.Remove(k)
		c.group.Forget(k)
	}
}

func (c *Cache[V]) Len() int {
	return c.lru.Len()
}
