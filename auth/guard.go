package auth

import (
	"context"
	"fmt"

	"bulkmail/utils"
)

// State is the position of one guarded navigation
type State int

const (
	Validating State = iota
	Authorized
	Redirecting
	// Abandoned means the request went away before validation resolved;
	// nothing was written on its behalf.
	Abandoned
)

func (s State) String() string {
	switch s {
	case Validating:
		return "validating"
	case Authorized:
		return "authorized"
	case Redirecting:
		return "redirecting"
	case Abandoned:
		return "abandoned"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Credential is the synchronous presence check that precedes validation
type Credential interface {
	HasCredential() bool
}

// GuardConfig parameterises the shared guard state machine
type GuardConfig struct {
	Name      string // used in logs
	Fallback  string // redirect target when access is denied
	IntentKey string // where the intended route is remembered
}

// Subject is the per-browser state a guard decides on
type Subject struct {
	Credential Credential
	Validator  Validator
	Intents    *IntentStore
}

// Decision is the terminal state of a guarded navigation
type Decision struct {
	State    State
	Redirect string
}

// Guard decides whether a navigation may render protected content
type Guard struct {
	cfg GuardConfig
	log *utils.Logger
}

// NewGuard creates a guard
func NewGuard(cfg GuardConfig) *Guard {
	return &Guard{
		cfg: cfg,
		log: utils.Log.WithField("guard", cfg.Name),
	}
}

// Config returns the guard configuration
func (g *Guard) Config() GuardConfig {
	return g.cfg
}

// Check runs Validating -> {Authorized, Redirecting}. A panic in the
// credential source or validator is treated as a failed validation.
func (g *Guard) Check(ctx context.Context, path string, subject Subject) (decision Decision) {
	defer func() {
		if r := recover(); r != nil {
			g.log.Error("Validation panicked for %s: %v", path, r)
			decision = g.redirect(path, subject.Intents)
		}
	}()

	if subject.Credential == nil || !subject.Credential.HasCredential() {
		g.log.Debug("No credential for %s", path)
		return g.redirect(path, subject.Intents)
	}

	valid := subject.Validator.Validate(ctx)

	if ctx.Err() != nil {
		g.log.Debug("Request for %s abandoned during validation", path)
		return Decision{State: Abandoned}
	}

	if !valid {
		return g.redirect(path, subject.Intents)
	}

	return Decision{State: Authorized}
}

func (g *Guard) redirect(path string, intents *IntentStore) Decision {
	if intents != nil && path != "" && path != g.cfg.Fallback {
		if err := intents.Save(g.cfg.IntentKey, path); err != nil {
			g.log.Warn("Failed to remember %s: %v", path, err)
		}
	}
	g.log.Debug("Redirecting %s to %s", path, g.cfg.Fallback)
	return Decision{State: Redirecting, Redirect: g.cfg.Fallback}
}
