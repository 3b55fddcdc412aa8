package accounts

// Role is the account's role
type Role = string

const (
	// RoleUser is a regular account, active once the email is verified
	RoleUser Role = "USER"
	// RolePractitioner is a domain expert that requires administrative vetting
	RolePractitioner Role = "PRACTITIONER"
	// RoleSuperAdmin manages practitioners and account activation
	RoleSuperAdmin Role = "SUPER_ADMIN"
)

// IsValidRole checks if the role is one of the predefined roles
func IsValidRole(r Role) bool {
	switch r {
	case RoleUser, RolePractitioner, RoleSuperAdmin:
		return true
	default:
		return false
	}
}

// IsRegistrableRole reports whether the role can be chosen on self
// registration. Administrators are provisioned out of band.
func IsRegistrableRole(r Role) bool {
	switch r {
	case RoleUser, RolePractitioner:
		return true
	default:
		return false
	}
}

// RegistrableRoles returns the roles accepted by the registration endpoint
func RegistrableRoles() []any {
	return []any{RoleUser, RolePractitioner}
}

// GetAllRoles returns all predefined roles
func GetAllRoles() []Role {
	return []Role{
		RoleUser,
		RolePractitioner,
		RoleSuperAdmin,
	}
}

// ParseRole safely parses a string into a Role
func ParseRole(roleStr string) (Role, bool) {
	return roleStr, IsValidRole(roleStr)
}

// HasAnyRole reports whether role matches one of allowed
func HasAnyRole(role Role, allowed ...Role) bool {
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}
