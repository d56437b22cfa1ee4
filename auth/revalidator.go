package auth

import (
	"context"
	"time"

	"bulkmail/utils"
)

// Revalidator periodically re-checks every live session token so a token
// revoked upstream is dropped even while the browser is idle
type Revalidator struct {
	registry *Registry
	verifier TokenVerifier
	interval time.Duration
}

// NewRevalidator creates a revalidator
func NewRevalidator(registry *Registry, verifier TokenVerifier, interval time.Duration) *Revalidator {
	return &Revalidator{registry: registry, verifier: verifier, interval: interval}
}

// Run blocks until ctx is done. A non-positive interval disables it.
func (r *Revalidator) Run(ctx context.Context) {
	if r.interval <= 0 {
		return
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce validates every authenticated session and returns how many were dropped
func (r *Revalidator) RunOnce(ctx context.Context) int {
	dropped := 0
	for _, store := range r.registry.Sessions() {
		store.Sync()
		if !store.IsAuthenticated() {
			continue
		}
		if !NewTokenValidator(store, r.verifier).Validate(ctx) && !store.IsAuthenticated() {
			dropped++
		}
		if ctx.Err() != nil {
			break
		}
	}
	if dropped > 0 {
		utils.Log.Info("Revalidation dropped %d session(s)", dropped)
	}
	return dropped
}
