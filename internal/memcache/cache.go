// Package memcache implements the bounded, TTL-expiring in-memory cache
// substrate used by the chat store (§5 "Shared resources"): a 100-entry, 30-minute-TTL LRU, grounded on the teacher's own
// MemoryCache (chat store repository) but generalized over any value type
// and backed by a real doubly-linked list instead of a hand-rolled one.
package memcache

import (
	"sync"
	"time"

	list "github.com/bahlo/generic-list-go"
)

// DefaultCapacity and DefaultTTL match the teacher's original chat memory
// cache sizing (100 chats, 30 minutes).
const (
	DefaultCapacity = 100
	DefaultTTL      = 30 * time.Minute
)

type entry[V any] struct {
	key      string
	value    V
	expiresAt time.Time
}

// Cache is a capacity-bounded, TTL-expiring least-recently-used cache. The
// zero value is not usable; construct with New.
type Cache[V any] struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	order    *list.List[*entry[V]]
	index    map[string]*list.Element[*entry[V]]
}

// New creates a Cache with the given capacity and TTL. A non-positive
// capacity or ttl falls back to DefaultCapacity/DefaultTTL.
func New[V any](capacity int, ttl time.Duration) *Cache[V] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache[V]{
		capacity: capacity,
		ttl:      ttl,
		order:    list.New[*entry[V]](),
		index:    make(map[string]*list.Element[*entry[V]]),
	}
}

// Get returns the cached value for key if present and not expired. An
// expired entry is evicted on read, matching the teacher's "check elapsed
// on get, never proactively sweep" behavior.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.index[key]
	if !ok {
		var zero V
		return zero, false
	}
	if time.Now().After(el.Value.expiresAt) {
		c.order.Remove(el)
		delete(c.index, key)
		var zero V
		return zero, false
	}

	c.order.MoveToFront(el)
	return el.Value.value, true
}

// Set inserts or updates key's value, refreshing its TTL and LRU position.
// When the cache is at capacity and key is new, the least-recently-used
// entry (by elapsed time since insertion/last use, as the teacher's
// min_by_key(elapsed) scan did) is evicted first.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := time.Now().Add(c.ttl)

	if el, ok := c.index[key]; ok {
		el.Value.value = value
		el.Value.expiresAt = expiresAt
		c.order.MoveToFront(el)
		return
	}

	if len(c.index) >= c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.index, oldest.Value.key)
		}
	}

	el := c.order.PushFront(&entry[V]{key: key, value: value, expiresAt: expiresAt})
	c.index[key] = el
}

// Remove evicts key if present.
func (c *Cache[V]) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.index[key]; ok {
		c.order.Remove(el)
		delete(c.index, key)
	}
}

// Clear evicts every entry.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	c.index = make(map[string]*list.Element[*entry[V]])
}

// Len reports the number of live entries, including any not-yet-evicted
// expired ones.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}
