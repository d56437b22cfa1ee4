package auth

import (
	"context"

	"bulkmail/utils"

	"golang.org/x/crypto/bcrypt"
)

// Validator confirms that locally held credentials are still accepted.
// Implementations fail closed: any error is a false.
type Validator interface {
	Validate(ctx context.Context) bool
}

// TokenVerifier is the remote check behind a mail-sending token
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) error
}

// PasskeyVerifier is the remote check behind an SMTP passkey
type PasskeyVerifier interface {
	VerifyPasskey(ctx context.Context, passkey string) error
}

// TokenValidator revalidates a SessionStore against the mail service
type TokenValidator struct {
	store    *SessionStore
	verifier TokenVerifier
}

// NewTokenValidator creates a validator for store
func NewTokenValidator(store *SessionStore, verifier TokenVerifier) *TokenValidator {
	return &TokenValidator{store: store, verifier: verifier}
}

// Validate returns true only if the token is accepted and no logout or new
// login happened while the check was in flight. A rejection clears the token.
func (v *TokenValidator) Validate(ctx context.Context) bool {
	token, epoch, ok := v.store.Token()
	if !ok {
		return false
	}

	if err := v.verifier.VerifyToken(ctx, token); err != nil {
		if ctx.Err() != nil {
			return false
		}
		utils.Log.WithField("token", utils.Mask(token)).Warn("Token rejected: %v", err)
		v.store.Invalidate(epoch)
		return false
	}

	return v.store.Current(epoch)
}

// AccessValidator revalidates an AccessStore. A passkey is checked with the
// config service; the admin marker is checked against a bcrypt hash.
type AccessValidator struct {
	store     *AccessStore
	verifier  PasskeyVerifier
	adminHash string
}

// NewAccessValidator creates a validator for store
func NewAccessValidator(store *AccessStore, verifier PasskeyVerifier, adminHash string) *AccessValidator {
	return &AccessValidator{store: store, verifier: verifier, adminHash: adminHash}
}

// Validate mirrors TokenValidator: fail closed, epoch guarded
func (v *AccessValidator) Validate(ctx context.Context) bool {
	snap := v.store.Snapshot()
	if !snap.Has() {
		return false
	}

	if snap.Passkey != "" {
		err := v.verifier.VerifyPasskey(ctx, snap.Passkey)
		if err == nil {
			return v.store.Current(snap.Epoch)
		}
		if ctx.Err() != nil {
			return false
		}
		utils.Log.WithField("passkey", utils.Mask(snap.Passkey)).Warn("Passkey rejected: %v", err)
	}

	if snap.AdminToken != "" && MatchAdminToken(v.adminHash, snap.AdminToken) {
		return v.store.Current(snap.Epoch)
	}

	v.store.Invalidate(snap.Epoch)
	return false
}

// MatchAdminToken compares a candidate admin token with the configured
// bcrypt hash. An unset hash disables admin access.
func MatchAdminToken(hash, token string) bool {
	if hash == "" || token == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)) == nil
}
