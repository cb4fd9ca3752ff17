package access

import "github.com/Abdulah-eng/newhitsapp-sub002/internal/domain"

const (
	LoginPath               = "/login"
	SeniorDashboardPath     = "/senior/dashboard"
	SpecialistDashboardPath = "/specialist/dashboard"
	AdminDashboardPath      = "/admin/dashboard"
)

// DashboardPath returns the landing page of role, or LoginPath when the role
// is not known.
func DashboardPath(role domain.Role) string {
	switch role {
	case domain.RoleSenior:
		return SeniorDashboardPath
	case domain.RoleSpecialist:
		return SpecialistDashboardPath
	case domain.RoleAdmin:
		return AdminDashboardPath
	default:
		return LoginPath
	}
}

// Target is where a user with the given session and role belongs.
// It is recomputed on every evaluation and never stored.
func Target(session *domain.Identity, role domain.Role) string {
	if session == nil {
		return LoginPath
	}
	return DashboardPath(role)
}
