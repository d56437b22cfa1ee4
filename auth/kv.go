// Package auth holds the per-browser session and authorization state: the
// durable session token, the session-scoped SMTP access markers, the route a
// visitor was heading to before a redirect, and the guard that decides
// whether a navigation may proceed.
package auth

// KV is a string key/value namespace belonging to one browser
type KV interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Delete(key string) error
}

// Storage keys
const (
	KeyAuthToken      = "auth_token"
	KeyPasskey        = "current_passkey"
	KeyAdminToken     = "admin_smtp_token"
	KeyRedirectLogin  = "redirect_after_login"
	KeyRedirectAccess = "redirect_after_passkey"
)
