package shared

// Role names as the backend reports them.
const (
	RoleSuperAdmin = "super_admin"
	RoleAdmin      = "admin"
	RoleManager    = "manager"
	RoleEngineer   = "engineer"
	RoleUser       = "user"
)

// ConsoleRoles lists the roles in display order.
func ConsoleRoles() []string {
	return []string{RoleSuperAdmin, RoleAdmin, RoleManager, RoleEngineer, RoleUser}
}

// AdminRoles may open the user and role management views.
func AdminRoles() []string {
	return []string{RoleAdmin, RoleSuperAdmin}
}

// IsKnownRole reports whether role is one of ConsoleRoles.
func IsKnownRole(role string) bool {
	for _, r := range ConsoleRoles() {
		if r == role {
			return true
		}
	}
	return false
}
