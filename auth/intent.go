package auth

import (
	"strings"
	"sync"
)

// IntentStore remembers where a visitor was heading when a guard redirected
// them. Each saved route is consumed at most once.
type IntentStore struct {
	mu sync.Mutex
	kv KV
}

// NewIntentStore wraps a session-scoped kv
func NewIntentStore(kv KV) *IntentStore {
	return &IntentStore{kv: kv}
}

// Save records path under key, replacing any earlier value
func (s *IntentStore) Save(key, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kv.Set(key, path)
}

// Peek returns the saved route without consuming it
func (s *IntentStore) Peek(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, ok := s.kv.Get(key)
	return path, ok && path != ""
}

// Consume returns the saved route and removes it
func (s *IntentStore) Consume(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, ok := s.kv.Get(key)
	if !ok || path == "" {
		return "", false
	}
	_ = s.kv.Delete(key)
	return path, true
}

// Resume consumes the saved route for key and returns it, or fallback when
// nothing was saved or the saved route falls under one of deny. Deny entries
// match the path component and anything below it.
func (s *IntentStore) Resume(key, fallback string, deny ...string) string {
	path, ok := s.Consume(key)
	if !ok {
		return fallback
	}
	route := path
	if i := strings.IndexAny(route, "?#"); i >= 0 {
		route = route[:i]
	}
	route = "/" + strings.Trim(route, "/")
	for _, d := range deny {
		d = "/" + strings.Trim(d, "/")
		if route == d || strings.HasPrefix(route, d+"/") {
			return fallback
		}
	}
	return path
}
