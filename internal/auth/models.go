package auth

import (
	"domino-community/internal/profile"
)

type State int

const (
	StateUnresolved State = iota
	StateResolving
	StateAuthenticated
	StateAnonymous
)

func (s State) String() string {
	switch s {
	case StateUnresolved:
		return "unresolved"
	case StateResolving:
		return "resolving"
	case StateAuthenticated:
		return "authenticated"
	case StateAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// Snapshot is a read-only view of the session store.
type Snapshot struct {
	State    State
	Identity *profile.Identity
	// Loading is set until the session resolves and while a sign-in,
	// sign-up or sign-out call is in flight.
	Loading bool
}

func (s Snapshot) Authenticated() bool {
	return s.State == StateAuthenticated && s.Identity != nil
}

const (
	msgMissingFields  = "Please fill in all fields"
	msgConfirmEmail   = "Check your email to confirm your account"
	msgSignInRequired = "You must be signed in"
	msgAccountCreated = "Account created"

	metadataName = "name"
	metadataRole = "role"
)
