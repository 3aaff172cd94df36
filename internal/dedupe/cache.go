// ABOUTME: Thread-safe TTL cache for one-time values such as OAuth codes and state nonces.
// ABOUTME: Size-limited with insertion-order eviction and a background sweeper.

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

// entry stores a cached value with its insertion time and list position.
type entry[V any] struct {
	value    V
	storedAt time.Time
	element  *list.Element
}

// Cache is a thread-safe, TTL-based, size-limited map.
// Uses a doubly-linked list to maintain insertion order for O(1) eviction.
type Cache[V any] struct {
	mu      sync.Mutex
	items   map[string]*entry[V]
	order   *list.List // keys in insertion order (oldest at front)
	ttl     time.Duration
	maxSize int
	now     func() time.Time
	done    chan struct{}
	closed  bool
}

// New creates a cache with the specified TTL and maximum size.
// A background goroutine periodically removes expired entries until Close.
func New[V any](ttl time.Duration, maxSize int) *Cache[V] {
	c := &Cache[V]{
		items:   make(map[string]*entry[V]),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go c.sweep(sweepInterval(ttl))
	return c
}

// NewSet creates a cache used purely for membership.
func NewSet(ttl time.Duration, maxSize int) *Cache[struct{}] {
	return New[struct{}](ttl, maxSize)
}

func sweepInterval(ttl time.Duration) time.Duration {
	if ttl < time.Minute {
		return ttl
	}
	return time.Minute
}

// Claim atomically records key and reports whether this caller was first.
// A second Claim of the same unexpired key returns false.
func (c *Cache[V]) Claim(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.items[key]; ok && c.live(e) {
		return false
	}
	var zero V
	c.putLocked(key, zero)
	return true
}

// Put stores value under key, replacing any previous value.
func (c *Cache[V]) Put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.putLocked(key, value)
}

// Take removes key and returns its value if it was present and unexpired.
func (c *Cache[V]) Take(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.items[key]
	if !ok {
		return zero, false
	}
	c.removeLocked(key, e)
	if !c.live(e) {
		return zero, false
	}
	return e.value, true
}

// Len returns the number of stored entries, including expired ones not yet swept.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *Cache[V]) live(e *entry[V]) bool {
	return c.now().Sub(e.storedAt) < c.ttl
}

// putLocked must be called with mu held.
func (c *Cache[V]) putLocked(key string, value V) {
	if e, exists := c.items[key]; exists {
		e.value = value
		e.storedAt = c.now()
		c.order.MoveToBack(e.element)
		return
	}

	if c.maxSize > 0 && len(c.items) >= c.maxSize {
		c.evictOldest()
	}

	c.items[key] = &entry[V]{
		value:    value,
		storedAt: c.now(),
		element:  c.order.PushBack(key),
	}
}

func (c *Cache[V]) removeLocked(key string, e *entry[V]) {
	c.order.Remove(e.element)
	delete(c.items, key)
}

// evictOldest must be called with mu held.
func (c *Cache[V]) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}
	key, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.items, key)
}

func (c *Cache[V]) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-c.done:
			return
		}
	}
}

// removeExpired walks from the oldest entry and stops at the first live one.
func (c *Cache[V]) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for front := c.order.Front(); front != nil; front = c.order.Front() {
		key, _ := front.Value.(string)
		e := c.items[key]
		if c.live(e) {
			return
		}
		c.removeLocked(key, e)
	}
}

// Close stops the background sweeper. It is safe to call multiple times.
func (c *Cache[V]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
