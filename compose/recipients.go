package compose

import (
	"strings"

	"golang.org/x/net/idna"
)

// Recipients is the deduplicated address list of the composer. Entries keep
// the form and order in which they were first typed.
type Recipients struct {
	list []string
	keys map[string]struct{}
}

// NewRecipients creates a list pre-filled from text
func NewRecipients(text ...string) *Recipients {
	r := &Recipients{keys: make(map[string]struct{})}
	for _, t := range text {
		r.Insert(t)
	}
	return r
}

// Insert splits text on whitespace and adds every address not already
// present. It returns the addresses that were added.
func (r *Recipients) Insert(text string) []string {
	var added []string
	for _, field := range strings.Fields(text) {
		key := canonical(field)
		if _, ok := r.keys[key]; ok {
			continue
		}
		r.keys[key] = struct{}{}
		r.list = append(r.list, field)
		added = append(added, field)
	}
	return added
}

// Remove drops addr and reports whether it was present
func (r *Recipients) Remove(addr string) bool {
	key := canonical(strings.TrimSpace(addr))
	if _, ok := r.keys[key]; !ok {
		return false
	}
	delete(r.keys, key)
	for i, existing := range r.list {
		if canonical(existing) == key {
			r.list = append(r.list[:i], r.list[i+1:]...)
			break
		}
	}
	return true
}

// List returns the addresses in insertion order
func (r *Recipients) List() []string {
	out := make([]string, len(r.list))
	copy(out, r.list)
	return out
}

// Len returns the number of addresses
func (r *Recipients) Len() int {
	return len(r.list)
}

// Reset empties the list
func (r *Recipients) Reset() {
	r.list = nil
	r.keys = make(map[string]struct{})
}

// canonical is the dedupe key of an address: lower case with the domain in
// its ASCII (punycode) form, so "a@Bücher.example" and "a@xn--bcher-kva.example"
// collide
func canonical(addr string) string {
	addr = strings.ToLower(addr)
	at := strings.LastIndex(addr, "@")
	if at < 0 {
		return addr
	}
	domain, err := idna.Lookup.ToASCII(addr[at+1:])
	if err != nil {
		return addr
	}
	return addr[:at+1] + domain
}
