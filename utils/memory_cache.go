package utils

import (
	"strings"
	"sync"
	"time"
)

// CacheItem represents a cached item with expiration
type CacheItem struct {
	Value      interface{}
	Expiration time.Time
}

// MemoryCache provides in-memory caching with sliding expiration. It backs the
// session-scoped browser storage, so nothing is ever written to disk.
type MemoryCache struct {
	items map[string]*CacheItem
	mu    sync.RWMutex
	ttl   time.Duration
	now   func() time.Time
	stop  chan struct{}
	once  sync.Once
}

// NewMemoryCache creates a new memory cache whose entries expire after ttl of
// inactivity. A cleanup goroutine runs until Close is called.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	cache := &MemoryCache{
		items: make(map[string]*CacheItem),
		ttl:   ttl,
		now:   time.Now,
		stop:  make(chan struct{}),
	}

	go cache.cleanupLoop()

	return cache
}

// Set stores a value in cache using the default ttl
func (c *MemoryCache) Set(key string, value interface{}) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores a value in cache with an explicit expiration
func (c *MemoryCache) SetWithTTL(key string, value interface{}, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = &CacheItem{
		Value:      value,
		Expiration: c.now().Add(ttl),
	}
}

// Get retrieves a value from cache
func (c *MemoryCache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	item, exists := c.items[key]
	var value interface{}
	expired := false
	if exists {
		value = item.Value
		expired = c.now().After(item.Expiration)
	}
	c.mu.RUnlock()

	if !exists {
		return nil, false
	}
	if expired {
		c.deleteExpired(key)
		return nil, false
	}
	return value, true
}

// deleteExpired removes key only if it is still expired, so a concurrent Set
// is not lost
func (c *MemoryCache) deleteExpired(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if item, ok := c.items[key]; ok && c.now().After(item.Expiration) {
		delete(c.items, key)
	}
}

// Touch extends the expiration of every live entry under prefix. Reading a
// tab's markers keeps them alive while the tab is in use.
func (c *MemoryCache) Touch(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	expiration := now.Add(c.ttl)
	for key, item := range c.items {
		if strings.HasPrefix(key, prefix) && !now.After(item.Expiration) {
			item.Expiration = expiration
		}
	}
}

// Delete removes an item from cache
func (c *MemoryCache) Delete(key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

// DeletePrefix removes every item whose key starts with prefix
func (c *MemoryCache) DeletePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.items {
		if strings.HasPrefix(key, prefix) {
			delete(c.items, key)
			removed++
		}
	}
	return removed
}

// Close stops the cleanup goroutine
func (c *MemoryCache) Close() {
	c.once.Do(func() { close(c.stop) })
}

func (c *MemoryCache) cleanupLoop() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.stop:
			return
		}
	}
}

// cleanup removes expired items
func (c *MemoryCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, item := range c.items {
		if now.After(item.Expiration) {
			delete(c.items, key)
		}
	}
}

// Keys returns the live keys starting with prefix
func (c *MemoryCache) Keys(prefix string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	keys := make([]string, 0, len(c.items))
	for key, item := range c.items {
		if strings.HasPrefix(key, prefix) && !now.After(item.Expiration) {
			keys = append(keys, key)
		}
	}
	return keys
}
