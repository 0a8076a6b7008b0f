// ABOUTME: Thread-safe TTL cache that replays completed results for repeated keys
// ABOUTME: Used by the gateway so a retried Idempotency-Key does not generate twice

package dedupe

import (
	"container/list"
	"context"
	"errors"
	"sync"
	"time"
)

var errPanicked = errors.New("dedupe: function panicked")

// cacheEntry holds one key's result. ready is closed once the owner finishes.
type cacheEntry[V any] struct {
	value     V
	ok        bool
	ready     chan struct{}
	timestamp time.Time
	element   *list.Element
}

func (e *cacheEntry[V]) done() bool {
	select {
	case <-e.ready:
		return true
	default:
		return false
	}
}

// Cache is a thread-safe, TTL-based, size-limited store of completed
// results keyed by string. Concurrent calls to Do with the same key run the
// function once; the others wait and receive its result. Failed results are
// not kept. Uses a doubly-linked list to maintain insertion order for O(1)
// eviction.
type Cache[V any] struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry[V]
	order   *list.List // List of keys in insertion order (oldest at front)
	ttl     time.Duration
	maxSize int
	done    chan struct{}
	closed  bool
}

// New creates a new cache with the specified TTL and maximum size.
// A background goroutine periodically cleans up expired entries.
func New[V any](ttl time.Duration, maxSize int) *Cache[V] {
	if maxSize < 1 {
		maxSize = 1
	}
	c := &Cache[V]{
		entries: make(map[string]*cacheEntry[V]),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	go c.cleanup()
	return c
}

// Get returns the completed, unexpired value for key.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok || !entry.done() || !entry.ok || c.expired(entry, time.Now()) {
		var zero V
		return zero, false
	}
	return entry.value, true
}

// Do returns the cached value for key when there is one, reporting
// replayed=true. Otherwise it runs fn and caches a successful result. If
// another caller is already running fn for key, Do waits for it. An empty
// key bypasses the cache.
func (c *Cache[V]) Do(ctx context.Context, key string, fn func() (V, error)) (v V, replayed bool, err error) {
	if key == "" {
		v, err = fn()
		return v, false, err
	}

	for {
		c.mu.Lock()
		entry, exists := c.entries[key]
		if exists && entry.done() && c.expired(entry, time.Now()) {
			c.removeLocked(key, entry)
			exists = false
		}
		if !exists {
			entry = c.insertLocked(key)
			c.mu.Unlock()
			return c.run(key, entry, fn)
		}
		c.mu.Unlock()

		select {
		case <-entry.ready:
		case <-ctx.Done():
			var zero V
			return zero, false, ctx.Err()
		}
		if entry.ok {
			return entry.value, true, nil
		}
		// The owner failed and removed its entry; try again.
	}
}

// run executes fn for an entry this caller owns.
func (c *Cache[V]) run(key string, entry *cacheEntry[V], fn func() (V, error)) (v V, replayed bool, err error) {
	defer func() {
		c.mu.Lock()
		if err == nil {
			entry.value = v
			entry.ok = true
			entry.timestamp = time.Now()
		} else {
			c.removeLocked(key, entry)
		}
		close(entry.ready)
		c.mu.Unlock()
	}()

	// err stays set if fn panics, so the entry is dropped.
	err = errPanicked
	v, err = fn()
	return v, false, err
}

// insertLocked adds a pending entry for key. Must be called with mu held.
func (c *Cache[V]) insertLocked(key string) *cacheEntry[V] {
	// Evict oldest if at capacity
	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	entry := &cacheEntry[V]{
		ready:     make(chan struct{}),
		timestamp: time.Now(),
	}
	entry.element = c.order.PushBack(key)
	c.entries[key] = entry
	return entry
}

// removeLocked deletes key if it still maps to entry. Must be called with mu held.
func (c *Cache[V]) removeLocked(key string, entry *cacheEntry[V]) {
	if cur, ok := c.entries[key]; ok && cur == entry {
		c.order.Remove(entry.element)
		delete(c.entries, key)
	}
}

// evictOldest removes the oldest entry from the cache.
// Must be called with mu held. O(1) operation using linked list.
func (c *Cache[V]) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}

	key, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.entries, key)
}

func (c *Cache[V]) expired(entry *cacheEntry[V], now time.Time) bool {
	return now.Sub(entry.timestamp) >= c.ttl
}

// Len returns the number of entries, pending ones included.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// cleanup runs in a background goroutine, periodically removing expired entries.
func (c *Cache[V]) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.runCleanup()
		case <-c.done:
			return
		}
	}
}

// runCleanup removes all expired, completed entries from the cache.
func (c *Cache[V]) runCleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, entry := range c.entries {
		if entry.done() && c.expired(entry, now) {
			c.order.Remove(entry.element)
			delete(c.entries, key)
		}
	}
}

// Close stops the background cleanup goroutine. It is safe to call multiple times.
func (c *Cache[V]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
