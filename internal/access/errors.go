package access

import "errors"

// Classification of the resolver's current outcome. None of these is shown to
// the user; every failure ends in a navigation.
var (
	// ErrSessionUnavailable: no session once loading finished. Not retried.
	ErrSessionUnavailable = errors.New("session unavailable")
	// ErrRoleIndeterminate: session known, role still loading. Held for the grace period.
	ErrRoleIndeterminate = errors.New("role indeterminate")
	// ErrRoleLookupFailed: role still undefined when the grace period expired.
	ErrRoleLookupFailed = errors.New("role lookup failed")
	// ErrRoleMismatch: role known but not the one the page requires.
	ErrRoleMismatch = errors.New("role mismatch")
)
