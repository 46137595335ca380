package cache

import (
	"container/list"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	DefaultMaxSize = 1000
	DefaultTTL     = 300 * time.Second
)

type item[V any] struct {
	entry Entry[V]
	// elem is the key's position in insertion order
	elem *list.Element
}

// TTLCache is a bounded in-process key/value store with per-entry expiration.
//
// Expired entries are never returned: Get deletes them lazily, and Cleanup
// sweeps the ones nobody reads. When the cache is full, inserting a new key
// evicts the earliest-inserted key still present. Reads do not refresh TTLs or
// eviction order.
//
// It is safe for concurrent use. State is local to the process.
type TTLCache[V any] struct {
	mu    sync.Mutex
	items map[string]*item[V]
	order *list.List
	cfg   config

	flights singleflight.Group
	// loads maps a key to the token of its in-flight Fetch load. Set, Delete
	// and Clear drop the token, so a load that raced with them is not stored.
	loads map[string]uint64
	seq   uint64
}

// New creates an empty cache.
func New[V any](opts ...Option) *TTLCache[V] {
	cfg := config{
		maxSize:    DefaultMaxSize,
		defaultTTL: DefaultTTL,
		now:        time.Now,
		metrics:    NoopMetrics{},
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	return &TTLCache[V]{
		items: make(map[string]*item[V]),
		order: list.New(),
		cfg:   cfg,
		loads: make(map[string]uint64),
	}
}

// Set stores value under key for ttl, or for the default TTL when ttl <= 0.
// An existing entry is overwritten and its creation time reset.
func (c *TTLCache[V]) Set(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.cfg.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.loads, key)
	c.set(key, value, ttl)
}

// set must be called with c.mu held and ttl > 0.
func (c *TTLCache[V]) set(key string, value V, ttl time.Duration) {
	entry := Entry[V]{Value: value, CreatedAt: c.cfg.now(), TTL: ttl}

	if it, ok := c.items[key]; ok {
		it.entry = entry
		return
	}

	if len(c.items) >= c.cfg.maxSize {
		c.evictOldest()
	}

	c.items[key] = &item[V]{
		entry: entry,
		elem:  c.order.PushBack(key),
	}
}

// Get returns the live value for key.
func (c *TTLCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V

	it, ok := c.items[key]
	if !ok {
		c.cfg.metrics.Miss()
		return zero, false
	}

	if it.entry.Expired(c.cfg.now()) {
		c.remove(key, it)
		c.cfg.metrics.Expire()
		c.cfg.metrics.Miss()
		return zero, false
	}

	c.cfg.metrics.Hit()

	return it.entry.Value, true
}

// Fetch returns the cached value for key, or calls load, caches its result for
// ttl and returns it. Concurrent misses on one key share a single load call.
// Load errors are returned and never cached. A result is not cached when key
// was set, deleted or cleared while load was running.
func (c *TTLCache[V]) Fetch(key string, ttl time.Duration, load func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	if ttl <= 0 {
		ttl = c.cfg.defaultTTL
	}

	res, err, _ := c.flights.Do(key, func() (any, error) {
		c.mu.Lock()
		// a previous flight may have stored key after our Get missed
		if it, ok := c.items[key]; ok && !it.entry.Expired(c.cfg.now()) {
			c.mu.Unlock()
			return it.entry.Value, nil
		}
		c.seq++
		token := c.seq
		c.loads[key] = token
		c.mu.Unlock()

		v, err := load()

		c.mu.Lock()
		defer c.mu.Unlock()

		if c.loads[key] != token {
			return v, err
		}
		delete(c.loads, key)

		if err != nil {
			return nil, err
		}

		c.set(key, v, ttl)

		return v, nil
	})

	if err != nil {
		var zero V
		return zero, err
	}

	v, _ := res.(V)

	return v, nil
}

// Delete removes key if present.
func (c *TTLCache[V]) Delete(key string) {
	c.mu.Lock()
	delete(c.loads, key)
	if it, ok := c.items[key]; ok {
		c.remove(key, it)
	}
	c.mu.Unlock()

	// later misses start a fresh load instead of joining a stale one
	c.flights.Forget(key)
}

// Clear removes all entries.
func (c *TTLCache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*item[V])
	c.order.Init()
	clear(c.loads)
}

// Cleanup deletes every expired entry and returns how many it removed.
func (c *TTLCache[V]) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.cfg.now()
	removed := 0
	for key, it := range c.items {
		if it.entry.Expired(now) {
			c.remove(key, it)
			c.cfg.metrics.Expire()
			removed++
		}
	}

	return removed
}

// Len returns the number of stored entries, expired or not.
func (c *TTLCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.items)
}

// evictOldest must be called with c.mu held.
func (c *TTLCache[V]) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}

	key := front.Value.(string)
	c.remove(key, c.items[key])
	c.cfg.metrics.Eviction()
}

func (c *TTLCache[V]) remove(key string, it *item[V]) {
	c.order.Remove(it.elem)
	delete(c.items, key)
}
