package authroles

import (
	"slices"

	domainauth "github.com/senpy/sen-dashboard/internal/domain/auth"
)

// StaticRoleMapper maps identity-provider groups by simple membership rules
// onto the dashboard's integer roles.
type StaticRoleMapper struct {
	AdminGroup  string
	DefaultRole domainauth.Role
}

// Map returns RoleAdmin when groups contain AdminGroup, otherwise DefaultRole
// (RoleUser when unset).
func (m StaticRoleMapper) Map(groups []string) domainauth.Role {
	if m.AdminGroup != "" && slices.Contains(groups, m.AdminGroup) {
		return domainauth.RoleAdmin
	}
	if m.DefaultRole != 0 {
		return m.DefaultRole
	}
	return domainauth.RoleUser
}
