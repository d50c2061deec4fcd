package policy

import (
	"fmt"
	"testing"

	"github.com/campabbey/camp-api/models"
	"github.com/campabbey/camp-api/services"
	"github.com/stretchr/testify/assert"
)

func TestAuthorize_MinimumRoleGrid(t *testing.T) {
	roles := models.AllRoles()

	for i, have := range roles {
		for j, need := range roles {
			t.Run(fmt.Sprintf("%s needs %s", have, need), func(t *testing.T) {
				principal := &models.Principal{ID: "p", Role: have}
				expected := i >= j
				assert.Equal(t, expected, Authorize(principal, MinimumRole(need)))
				assert.Equal(t, expected, AtLeast(have, need))
			})
		}
	}
}

func TestAuthorize_AllowList(t *testing.T) {
	tests := []struct {
		name    string
		req     Requirement
		allowed []models.Role
	}{
		{"parent", Parent, []models.Role{models.RoleParent}},
		{"staff", Staff, []models.Role{models.RoleStaff, models.RoleAdmin, models.RoleSuperAdmin}},
		{"admin", Admin, []models.Role{models.RoleAdmin, models.RoleSuperAdmin}},
		{"superadmin", SuperAdmin, []models.Role{models.RoleSuperAdmin}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, role := range models.AllRoles() {
				principal := &models.Principal{ID: "p", Role: role}
				expected := false
				for _, a := range tt.allowed {
					if a == role {
						expected = true
					}
				}
				assert.Equal(t, expected, Authorize(principal, tt.req), "role %s", role)
			}
		})
	}
}

func TestAuthorize_AllowListIsNotHierarchical(t *testing.T) {
	// A superadmin is not a member of the parent-only list.
	principal := &models.Principal{ID: "p", Role: models.RoleSuperAdmin}
	assert.False(t, Authorize(principal, Parent))
	assert.True(t, Authorize(principal, MinimumRole(models.RoleParent)))
}

func TestAuthorize_Unauthenticated(t *testing.T) {
	for _, req := range []Requirement{Parent, Staff, Admin, SuperAdmin, MinimumRole(models.RoleParent)} {
		assert.False(t, Authorize(nil, req), req.String())
	}
}

func TestAuthorize_InvalidRoleOrRequirement(t *testing.T) {
	principal := &models.Principal{ID: "p", Role: models.Role("owner")}
	assert.False(t, Authorize(principal, MinimumRole(models.RoleParent)))
	assert.False(t, Authorize(principal, AllowRoles(models.Role("owner"))))

	valid := &models.Principal{ID: "p", Role: models.RoleAdmin}
	assert.False(t, Authorize(valid, Requirement{}))
	assert.False(t, Authorize(valid, MinimumRole(models.Role("owner"))))
}

func TestAllowRoles_CopiesInput(t *testing.T) {
	roles := []models.Role{models.RoleStaff}
	req := AllowRoles(roles...)
	roles[0] = models.RoleSuperAdmin
	assert.Equal(t, models.RoleStaff, req.Allowed[0])
}

func TestRequirement_String(t *testing.T) {
	assert.Equal(t, "one of [admin, superadmin]", Admin.String())
	assert.Equal(t, "at least staff", MinimumRole(models.RoleStaff).String())
}

func TestCanAssignRole(t *testing.T) {
	tests := []struct {
		actor   models.Role
		target  models.Role
		wantErr error
	}{
		{models.RoleParent, models.RoleStaff, services.ErrInsufficientRole},
		{models.RoleStaff, models.RoleParent, services.ErrInsufficientRole},
		{models.RoleAdmin, models.RoleStaff, nil},
		{models.RoleAdmin, models.RoleAdmin, nil},
		{models.RoleAdmin, models.RoleSuperAdmin, services.ErrEscalationDenied},
		{models.RoleSuperAdmin, models.RoleSuperAdmin, nil},
		{models.RoleSuperAdmin, models.Role("owner"), services.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s grants %s", tt.actor, tt.target), func(t *testing.T) {
			err := CanAssignRole(tt.actor, tt.target)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
