package domain

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Role is the profile attribute that gates dashboards.
// RoleUndefined means the lookup has not completed yet, not "no role".
type Role string

const (
	RoleUndefined  Role = ""
	RoleSenior     Role = "senior"
	RoleSpecialist Role = "specialist"
	RoleAdmin      Role = "admin"
)

// Defined reports whether r is one of the terminal roles.
func (r Role) Defined() bool {
	switch r {
	case RoleSenior, RoleSpecialist, RoleAdmin:
		return true
	}
	return false
}

func (r Role) String() string {
	if r == RoleUndefined {
		return "undefined"
	}
	return string(r)
}

// ParseRole converts a stored or submitted role value.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Defined() {
		return RoleUndefined, fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
	return r, nil
}

// SelfAssignable reports whether a user may pick r at signup. Admins are
// promoted through admin tooling only.
func (r Role) SelfAssignable() bool {
	return r == RoleSenior || r == RoleSpecialist
}

// RoleCache is a short-lived cache in front of the profile store.
type RoleCache interface {
	Get(ctx context.Context, userID uuid.UUID) (Role, bool, error)
	Set(ctx context.Context, userID uuid.UUID, role Role) error
	Invalidate(ctx context.Context, userID uuid.UUID) error
}

// RoleEvents carries "role resolved" signals across instances.
type RoleEvents interface {
	PublishRoleResolved(ctx context.Context, userID uuid.UUID, role Role) error
	// Watch returns a channel receiving every role resolved for userID until
	// the returned cancel func is called.
	Watch(userID uuid.UUID) (<-chan Role, func())
}

// RoleSource resolves a user's current role. A missing profile yields
// RoleUndefined with a nil error.
type RoleSource interface {
	LookupRole(ctx context.Context, userID uuid.UUID) (Role, error)
	WatchRole(userID uuid.UUID) (<-chan Role, func())
}
