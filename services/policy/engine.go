// Package policy decides whether a principal satisfies a route's role requirement.
//
// Two styles are supported and kept distinct: an exact allow-list of roles,
// and a minimum tier in the role hierarchy. Every function here is pure.
package policy

import (
	"fmt"
	"strings"

	"github.com/campabbey/camp-api/models"
	"github.com/campabbey/camp-api/services"
)

// Kind distinguishes the two requirement styles
type Kind int

const (
	KindAllowList Kind = iota + 1
	KindMinimum
)

// Requirement is a route's authorization rule
type Requirement struct {
	Kind    Kind
	Allowed []models.Role
	Minimum models.Role
}

// AllowRoles builds an exact-membership requirement
func AllowRoles(roles ...models.Role) Requirement {
	allowed := make([]models.Role, len(roles))
	copy(allowed, roles)
	return Requirement{Kind: KindAllowList, Allowed: allowed}
}

// MinimumRole builds a hierarchy requirement
func MinimumRole(role models.Role) Requirement {
	return Requirement{Kind: KindMinimum, Minimum: role}
}

// Route guards used by the API
var (
	Parent     = AllowRoles(models.RoleParent)
	Staff      = AllowRoles(models.RoleStaff, models.RoleAdmin, models.RoleSuperAdmin)
	Admin      = AllowRoles(models.RoleAdmin, models.RoleSuperAdmin)
	SuperAdmin = AllowRoles(models.RoleSuperAdmin)
)

func (r Requirement) String() string {
	switch r.Kind {
	case KindAllowList:
		names := make([]string, len(r.Allowed))
		for i, role := range r.Allowed {
			names[i] = string(role)
		}
		return "one of [" + strings.Join(names, ", ") + "]"
	case KindMinimum:
		return "at least " + string(r.Minimum)
	default:
		return "unknown requirement"
	}
}

// Authorize reports whether the principal satisfies the requirement.
// An unauthenticated principal never does.
func Authorize(principal *models.Principal, req Requirement) bool {
	if principal == nil || !principal.Role.IsValid() {
		return false
	}
	switch req.Kind {
	case KindAllowList:
		return HasAnyRole(principal.Role, req.Allowed...)
	case KindMinimum:
		return AtLeast(principal.Role, req.Minimum)
	default:
		return false
	}
}

// HasAnyRole reports whether role is a member of allowed
func HasAnyRole(role models.Role, allowed ...models.Role) bool {
	if !role.IsValid() {
		return false
	}
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}

// AtLeast reports whether role ranks at or above min
func AtLeast(role, min models.Role) bool {
	if !role.IsValid() || !min.IsValid() {
		return false
	}
	return role.Level() >= min.Level()
}

// CanAssignRole checks whether an actor may grant newRole to another account.
// Admin tier is required, and only a superadmin may grant superadmin.
func CanAssignRole(actorRole, newRole models.Role) error {
	if !newRole.IsValid() {
		return services.ErrValidation.WithMessage(fmt.Sprintf("invalid role: %q", newRole))
	}
	if !AtLeast(actorRole, models.RoleAdmin) {
		return services.ErrInsufficientRole
	}
	if newRole == models.RoleSuperAdmin && actorRole != models.RoleSuperAdmin {
		return services.ErrEscalationDenied
	}
	return nil
}
