package auth

import (
	"strings"
	"sync"
)

// Kind selects which ephemeral marker Grant sets
type Kind int

const (
	KindPasskey Kind = iota + 1
	KindAdmin
)

func (k Kind) String() string {
	switch k {
	case KindPasskey:
		return "passkey"
	case KindAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// AccessSnapshot is a consistent read of an AccessStore
type AccessSnapshot struct {
	Passkey    string
	AdminToken string
	Epoch      uint64
}

// Has reports whether either marker is present
func (a AccessSnapshot) Has() bool {
	return a.Passkey != "" || a.AdminToken != ""
}

// AccessStore holds the session-scoped SMTP area markers of one tab. Either
// a passkey or the admin marker grants access; they are independent.
type AccessStore struct {
	mu    sync.Mutex
	kv    KV
	epoch uint64
}

// NewAccessStore wraps a session-scoped kv
func NewAccessStore(kv KV) *AccessStore {
	return &AccessStore{kv: kv}
}

// Grant stores a marker of the given kind
func (a *AccessStore) Grant(kind Kind, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return ErrEmptyToken
	}

	var key string
	switch kind {
	case KindPasskey:
		key = KeyPasskey
	case KindAdmin:
		key = KeyAdminToken
	default:
		return ErrUnknownKind
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.kv.Set(key, value); err != nil {
		return err
	}
	a.epoch++
	return nil
}

// Revoke clears both markers
func (a *AccessStore) Revoke() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.revoke()
}

func (a *AccessStore) revoke() {
	_ = a.kv.Delete(KeyPasskey)
	_ = a.kv.Delete(KeyAdminToken)
	a.epoch++
}

// HasAccess reports whether either marker is present
func (a *AccessStore) HasAccess() bool {
	return a.Snapshot().Has()
}

// HasCredential lets the store act as a guard credential source
func (a *AccessStore) HasCredential() bool {
	return a.HasAccess()
}

// IsAdmin reports whether the admin marker is present
func (a *AccessStore) IsAdmin() bool {
	return a.Snapshot().AdminToken != ""
}

// Passkey returns the passkey marker, empty when absent
func (a *AccessStore) Passkey() string {
	return a.Snapshot().Passkey
}

// AdminToken returns the admin marker, empty when absent
func (a *AccessStore) AdminToken() string {
	return a.Snapshot().AdminToken
}

// Snapshot reads both markers and the epoch atomically
func (a *AccessStore) Snapshot() AccessSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	passkey, _ := a.kv.Get(KeyPasskey)
	admin, _ := a.kv.Get(KeyAdminToken)
	return AccessSnapshot{Passkey: passkey, AdminToken: admin, Epoch: a.epoch}
}

// Current reports whether access still holds at epoch
func (a *AccessStore) Current(epoch uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.epoch != epoch {
		return false
	}
	passkey, _ := a.kv.Get(KeyPasskey)
	admin, _ := a.kv.Get(KeyAdminToken)
	return passkey != "" || admin != ""
}

// Invalidate revokes access if nothing changed since epoch
func (a *AccessStore) Invalidate(epoch uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.epoch != epoch {
		return false
	}
	a.revoke()
	return true
}
