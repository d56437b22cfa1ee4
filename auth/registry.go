package auth

import (
	"strings"
	"sync"
	"time"

	"bulkmail/utils"
)

const (
	sessionPrefix = "session:"
	accessPrefix  = "access:"
	intentPrefix  = "intent:"
)

// Registry hands out the store objects of each browser. Requests from the
// same device (or tab) share one store instance, which is what makes the
// epoch checks and change notifications meaningful. It is constructed once
// at start-up and lives for the whole process.
type Registry struct {
	mu      sync.Mutex
	durable func(deviceID string) KV
	tab     func(tabID string) KV
	objects *utils.MemoryCache
}

// NewRegistry creates a registry. Idle store objects are dropped after
// idle; they are rebuilt from storage on the next request.
func NewRegistry(durable func(deviceID string) KV, tab func(tabID string) KV, idle time.Duration) *Registry {
	return &Registry{
		durable: durable,
		tab:     tab,
		objects: utils.NewMemoryCache(idle),
	}
}

// Session returns the session store of a device
func (r *Registry) Session(deviceID string) *SessionStore {
	return r.load(sessionPrefix+deviceID, func() interface{} {
		return NewSessionStore(r.durable(deviceID))
	}).(*SessionStore)
}

// Access returns the SMTP access store of a tab
func (r *Registry) Access(tabID string) *AccessStore {
	return r.load(accessPrefix+tabID, func() interface{} {
		return NewAccessStore(r.tab(tabID))
	}).(*AccessStore)
}

// Intents returns the intended-route store of a tab
func (r *Registry) Intents(tabID string) *IntentStore {
	return r.load(intentPrefix+tabID, func() interface{} {
		return NewIntentStore(r.tab(tabID))
	}).(*IntentStore)
}

// Sessions returns every live session store
func (r *Registry) Sessions() []*SessionStore {
	keys := r.objects.Keys(sessionPrefix)
	stores := make([]*SessionStore, 0, len(keys))
	for _, key := range keys {
		if v, ok := r.objects.Get(key); ok {
			stores = append(stores, v.(*SessionStore))
		}
	}
	return stores
}

// Close stops background cleanup
func (r *Registry) Close() {
	r.objects.Close()
}

func (r *Registry) load(key string, build func() interface{}) interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()

	if v, ok := r.objects.Get(key); ok {
		r.objects.Set(key, v)
		return v
	}
	v := build()
	r.objects.Set(key, v)
	utils.Log.Debug("Registered %s store", strings.SplitN(key, ":", 2)[0])
	return v
}
