package auth

import (
	"strings"
	"sync"
)

// SessionEvent is published to every subscriber when the session changes
type SessionEvent struct {
	Authenticated bool   `json:"authenticated"`
	Epoch         uint64 `json:"-"`
}

// SessionStore holds the durable mail-sending token of one device.
//
// Every mutation bumps an epoch. Validators capture the epoch before calling
// the remote service and only act on the result if it is unchanged, so a
// logout racing with an in-flight validation always wins.
type SessionStore struct {
	mu            sync.Mutex
	kv            KV
	authenticated bool
	epoch         uint64
	subs          map[int]chan SessionEvent
	nextSub       int
}

// NewSessionStore loads the session state from kv
func NewSessionStore(kv KV) *SessionStore {
	_, ok := kv.Get(KeyAuthToken)
	return &SessionStore{
		kv:            kv,
		authenticated: ok,
		subs:          make(map[int]chan SessionEvent),
	}
}

// Login persists token and marks the session authenticated
func (s *SessionStore) Login(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrEmptyToken
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Set(KeyAuthToken, token); err != nil {
		return err
	}
	s.transition(true)
	return nil
}

// Logout clears the token and marks the session unauthenticated
func (s *SessionStore) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Delete(KeyAuthToken); err != nil {
		return err
	}
	s.transition(false)
	return nil
}

// IsAuthenticated reports the cached authentication flag
func (s *SessionStore) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated
}

// HasCredential reports whether a token is present in storage
func (s *SessionStore) HasCredential() bool {
	_, _, ok := s.Token()
	return ok
}

// Token returns the stored token together with the current epoch
func (s *SessionStore) Token() (string, uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.kv.Get(KeyAuthToken)
	return token, s.epoch, ok && token != ""
}

// Current reports whether the session is still authenticated at epoch
func (s *SessionStore) Current(epoch uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch == epoch && s.authenticated
}

// Invalidate clears the token if nothing changed since epoch. It returns
// false when a newer login or logout already superseded the caller.
func (s *SessionStore) Invalidate(epoch uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.epoch != epoch {
		return false
	}
	if err := s.kv.Delete(KeyAuthToken); err != nil {
		return false
	}
	s.transition(false)
	return true
}

// Sync re-reads durable storage and publishes a change if another process
// or an operator modified the token behind this store's back
func (s *SessionStore) Sync() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.kv.Get(KeyAuthToken)
	if ok == s.authenticated {
		return false
	}
	s.transition(ok)
	return true
}

// Subscribe registers for change notifications. The returned function
// unsubscribes and closes the channel.
func (s *SessionStore) Subscribe() (<-chan SessionEvent, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan SessionEvent, 4)
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(ch)
		})
	}
}

// transition must be called with s.mu held
func (s *SessionStore) transition(authenticated bool) {
	s.authenticated = authenticated
	s.epoch++

	event := SessionEvent{Authenticated: authenticated, Epoch: s.epoch}
	for _, ch := range s.subs {
		select {
		case ch <- event:
		default:
			// slow subscriber, it will catch up on the next event
		}
	}
}
