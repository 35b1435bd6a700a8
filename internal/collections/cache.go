package collections

import (
	"container/list"
	"strings"
	"sync"
	"time"
)

// Cache is the keyed store the access layer reads and writes. Only this
// package writes collection-prefixed keys; consumers observe them through
// the List/Get operations.
type Cache interface {
	Get(key string) (any, bool)

	Set(key string, value any)

	// SetIfAbsent stores the value only when no entry exists for the key,
	// returning true when it stored. Prefill relies on it never overwriting.
	SetIfAbsent(key string, value any) bool

	// InvalidatePrefix drops every entry whose key starts with prefix.
	InvalidatePrefix(prefix string)
}

// cacheEntry holds a cached value with its expiry and eviction-list element.
type cacheEntry struct {
	key       string
	value     any
	expiresAt time.Time
	element   *list.Element
}

// TTLCache is an LRU cache with TTL expiry and prefix invalidation. It is the
// default Cache implementation used by the CLI; tests may substitute simpler
// fakes through the Cache interface.
type TTLCache struct {
	capacity  int
	ttl       time.Duration
	entries   map[string]*cacheEntry
	evictList *list.List
	mu        sync.Mutex
}

// NewTTLCache creates a cache holding at most capacity entries, each fresh
// for ttl after its last write.
func NewTTLCache(capacity int, ttl time.Duration) *TTLCache {
	if capacity < 1 {
		capacity = 1
	}
	return &TTLCache{
		capacity:  capacity,
		ttl:       ttl,
		entries:   make(map[string]*cacheEntry),
		evictList: list.New(),
	}
}

// Get retrieves a value, treating expired entries as absent.
func (c *TTLCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		c.removeEntry(e)
		return nil, false
	}

	c.evictList.MoveToFront(e.element)
	return e.value, true
}

// Set adds or replaces a value.
func (c *TTLCache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(key, value)
}

// SetIfAbsent stores the value only when the key has no live entry.
func (c *TTLCache) SetIfAbsent(key string, value any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok && !time.Now().After(e.expiresAt) {
		return false
	}
	c.setLocked(key, value)
	return true
}

func (c *TTLCache) setLocked(key string, value any) {
	if e, ok := c.entries[key]; ok {
		e.value = value
		e.expiresAt = time.Now().Add(c.ttl)
		c.evictList.MoveToFront(e.element)
		return
	}

	e := &cacheEntry{
		key:       key,
		value:     value,
		expiresAt: time.Now().Add(c.ttl),
	}
	e.element = c.evictList.PushFront(e)
	c.entries[key] = e

	for c.evictList.Len() > c.capacity {
		oldest := c.evictList.Back()
		if oldest == nil {
			break
		}
		c.removeEntry(oldest.Value.(*cacheEntry))
	}
}

// InvalidatePrefix drops every entry whose key starts with prefix.
func (c *TTLCache) InvalidatePrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, e := range c.entries {
		if strings.HasPrefix(key, prefix) {
			c.removeEntry(e)
		}
	}
}

// Len returns the number of entries, expired ones included.
func (c *TTLCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *TTLCache) removeEntry(e *cacheEntry) {
	c.evictList.Remove(e.element)
	delete(c.entries, e.key)
}
