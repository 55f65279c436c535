package models

type UserRole string

const (
	RoleViewer     UserRole = "viewer"
	RoleEditor     UserRole = "editor"
	RoleAdmin      UserRole = "admin"
	RoleSuperAdmin UserRole = "super_admin"
)

var roleTier = map[UserRole]int{
	RoleViewer:     1,
	RoleEditor:     2,
	RoleAdmin:      3,
	RoleSuperAdmin: 4,
}

func IsValidRole(role UserRole) bool {
	_, ok := roleTier[role]
	return ok
}

func IsValidRoleList(roles []UserRole) bool {
	if len(roles) == 0 {
		return false
	}
	for _, role := range roles {
		if !IsValidRole(role) {
			return false
		}
	}
	return true
}

// NormalizeRoles removes duplicates and invalid entries, preserving order.
func NormalizeRoles(roles []UserRole) []UserRole {
	seen := make(map[UserRole]struct{}, len(roles))
	normalized := make([]UserRole, 0, len(roles))
	for _, role := range roles {
		if !IsValidRole(role) {
			continue
		}
		if _, dup := seen[role]; dup {
			continue
		}
		seen[role] = struct{}{}
		normalized = append(normalized, role)
	}
	return normalized
}

// EnsureDefaultRole guarantees the list is non-empty, falling back to viewer.
func EnsureDefaultRole(roles []UserRole) []UserRole {
	if len(roles) == 0 {
		return []UserRole{RoleViewer}
	}
	return roles
}

// HighestRole returns the highest-tier role in the list, viewer when empty.
func HighestRole(roles []UserRole) UserRole {
	highest := RoleViewer
	for _, role := range roles {
		if roleTier[role] > roleTier[highest] {
			highest = role
		}
	}
	return highest
}

// HasAtLeast reports whether any role in the list meets the required tier.
func HasAtLeast(roles []UserRole, required UserRole) bool {
	need := roleTier[required]
	for _, role := range roles {
		if roleTier[role] >= need {
			return true
		}
	}
	return false
}
