package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Abdulah-eng/newhitsapp-sub002/internal/domain"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// RoleLookup resolves profile roles through the role cache and fans out
// role-resolved events. It implements domain.RoleSource for the access guard.
type RoleLookup struct {
	profiles domain.ProfileRepository
	cache    domain.RoleCache
	events   domain.RoleEvents
	group    singleflight.Group
}

var _ domain.RoleSource = (*RoleLookup)(nil)

// NewRoleLookup creates a lookup. cache and events may be nil.
func NewRoleLookup(profiles domain.ProfileRepository, cache domain.RoleCache, events domain.RoleEvents) *RoleLookup {
	return &RoleLookup{profiles: profiles, cache: cache, events: events}
}

// LookupRole returns the stored role of userID. A user without a profile
// has RoleUndefined and no error: onboarding may still be in flight.
func (l *RoleLookup) LookupRole(ctx context.Context, userID uuid.UUID) (domain.Role, error) {
	if l.cache != nil {
		role, ok, err := l.cache.Get(ctx, userID)
		if err != nil {
			slog.WarnContext(ctx, "Role cache read failed, falling back to database", "user_id", userID, "error", err)
		} else if ok && role.Defined() {
			return role, nil
		}
	}

	v, err, _ := l.group.Do(userID.String(), func() (any, error) {
		role, err := l.profiles.GetRole(ctx, userID)
		if errors.Is(err, domain.ErrProfileNotFound) {
			return domain.RoleUndefined, nil
		}
		if err != nil {
			return domain.RoleUndefined, err
		}

		if l.cache != nil {
			if err := l.cache.Set(ctx, userID, role); err != nil {
				slog.WarnContext(ctx, "Failed to cache role", "user_id", userID, "error", err)
			}
		}
		return role, nil
	})
	if err != nil {
		return domain.RoleUndefined, fmt.Errorf("lookup role: %w", err)
	}
	return v.(domain.Role), nil
}

// WatchRole subscribes to role-resolved events for userID.
func (l *RoleLookup) WatchRole(userID uuid.UUID) (<-chan domain.Role, func()) {
	if l.events == nil {
		return nil, func() {}
	}
	return l.events.Watch(userID)
}

// Announce records a newly assigned role and tells waiting guards on every
// instance about it. Publishing is best effort; the grace period covers a lost
// event.
func (l *RoleLookup) Announce(ctx context.Context, userID uuid.UUID, role domain.Role) {
	if l.cache != nil {
		if err := l.cache.Set(ctx, userID, role); err != nil {
			slog.WarnContext(ctx, "Failed to cache role", "user_id", userID, "error", err)
		}
	}
	if l.events != nil {
		if err := l.events.PublishRoleResolved(ctx, userID, role); err != nil {
			slog.WarnContext(ctx, "Failed to publish role resolved", "user_id", userID, "role", role.String(), "error", err)
		}
	}
}
