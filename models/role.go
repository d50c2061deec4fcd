package models

import (
	"errors"
	"fmt"
	"strings"
)

// Role is a tier in the camp staff hierarchy
type Role string

const (
	RoleParent     Role = "parent"
	RoleStaff      Role = "staff"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

// ErrInvalidRole is returned when a role string is not part of the hierarchy
var ErrInvalidRole = errors.New("invalid role")

var roleLevels = map[Role]int{
	RoleParent:     1,
	RoleStaff:      2,
	RoleAdmin:      3,
	RoleSuperAdmin: 4,
}

// AllRoles returns every role from lowest to highest tier
func AllRoles() []Role {
	return []Role{RoleParent, RoleStaff, RoleAdmin, RoleSuperAdmin}
}

// ParseRole parses a role name. An empty value yields the base tier.
func ParseRole(s string) (Role, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return RoleParent, nil
	}
	r := Role(s)
	if !r.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
	return r, nil
}

// Level returns the rank of the role in the hierarchy, or 0 for unknown roles
func (r Role) Level() int {
	return roleLevels[r]
}

// IsValid reports whether r is one of the known roles
func (r Role) IsValid() bool {
	_, ok := roleLevels[r]
	return ok
}

func (r Role) String() string {
	return string(r)
}
