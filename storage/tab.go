package storage

import (
	"bulkmail/utils"
)

// TabStorage keeps session-scoped per-tab values in memory. Entries disappear
// when the tab stays idle past the cache ttl, the equivalent of a browser
// clearing session storage when the tab closes.
type TabStorage struct {
	cache *utils.MemoryCache
}

// NewTabStorage wraps a memory cache
func NewTabStorage(cache *utils.MemoryCache) *TabStorage {
	return &TabStorage{cache: cache}
}

// KV returns the key/value view of a single tab and refreshes its idle timer
func (s *TabStorage) KV(tabID string) *TabKV {
	prefix := tabID + "/"
	s.cache.Touch(prefix)
	return &TabKV{cache: s.cache, prefix: prefix}
}

// TabKV is the session-scoped storage namespace of one tab
type TabKV struct {
	cache  *utils.MemoryCache
	prefix string
}

// Get returns the stored value for key. Any read keeps the whole tab alive.
func (kv *TabKV) Get(key string) (string, bool) {
	kv.cache.Touch(kv.prefix)
	v, ok := kv.cache.Get(kv.prefix + key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Set stores value under key
func (kv *TabKV) Set(key, value string) error {
	kv.cache.Set(kv.prefix+key, value)
	return nil
}

// Delete removes key
func (kv *TabKV) Delete(key string) error {
	kv.cache.Delete(kv.prefix + key)
	return nil
}
