package account

import (
	"context"
	"errors"

	"github.com/campabbey/camp-api/models"
	"github.com/campabbey/camp-api/repositories"
	"github.com/campabbey/camp-api/services"
	"github.com/campabbey/camp-api/services/identity"
	"go.uber.org/zap"
)

// AssignRoleInput is the payload of an external role assignment
type AssignRoleInput struct {
	TargetID string `json:"targetId" validate:"required,max=128"`
	Role     string `json:"role" validate:"required,oneof=parent staff admin superadmin"`
}

// ExternalRegistration is the result of RegisterExternal
type ExternalRegistration struct {
	Identity *identity.ExternalIdentity `json:"identity"`
	User     *models.User               `json:"user"`
}

// RegisterExternal creates a parent identity in the external provider and a
// linked local record. If the local record cannot be created the provider
// identity is deleted again.
func (s *Service) RegisterExternal(ctx context.Context, input RegisterInput) (*ExternalRegistration, error) {
	if s.identities == nil {
		return nil, services.ErrProviderConfig
	}

	user := models.NewUser(input.Email, input.FirstName, input.LastName, models.RoleParent)

	ext, err := s.identities.CreateWithRole(ctx, user.Email, input.Password, models.RoleParent, user.DisplayName())
	if err != nil {
		return nil, err
	}
	user.ExternalID = &ext.ID

	if !ext.RoleAssigned {
		if err := s.identities.EnsureRole(ctx, ext.ID, models.RoleParent); err != nil {
			s.logger.Warn("role claim retry failed, identity keeps the provider default",
				zap.String("uid", ext.ID),
				zap.Error(err))
		} else {
			ext.Role = models.RoleParent
			ext.RoleAssigned = true
		}
	}

	if err := s.users.Create(ctx, user); err != nil {
		// The caller may already be gone; the compensation must still run.
		if delErr := s.identities.Delete(context.WithoutCancel(ctx), ext.ID); delErr != nil {
			s.logger.Error("failed to remove external identity after local record failure",
				zap.String("uid", ext.ID),
				zap.Error(delErr))
		}
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, services.ErrDuplicateAccount
		}
		return nil, services.WrapInternal("failed to create account", err)
	}

	s.logger.Info("external account registered",
		zap.String("user_id", user.ID.String()),
		zap.String("uid", ext.ID),
		zap.Bool("role_assigned", ext.RoleAssigned))
	s.audit.Record(ctx, models.AuditActionExternalAccountCreated, ext.ID, user.ID.String(), map[string]interface{}{
		"uid":          ext.ID,
		"roleAssigned": ext.RoleAssigned,
	})

	return &ExternalRegistration{Identity: ext, User: user}, nil
}

// AssignExternalRole assigns a role in the provider and mirrors it on the
// linked local record, revoking the record's local tokens.
func (s *Service) AssignExternalRole(ctx context.Context, actor *models.Principal, input AssignRoleInput) (*identity.RoleAssignment, error) {
	if s.identities == nil {
		return nil, services.ErrProviderConfig
	}

	role, err := models.ParseRole(input.Role)
	if err != nil {
		return nil, services.ErrValidation.WithDetail("role", "must be one of parent, staff, admin, superadmin")
	}

	assignment, err := s.identities.AssignRole(ctx, input.TargetID, role, actor)
	if err != nil {
		return nil, err
	}

	linked, err := s.users.GetByExternalID(ctx, input.TargetID)
	switch {
	case err == nil:
		if err := s.users.SetRole(ctx, linked.ID, role); err != nil {
			return nil, services.WrapInternal("failed to update linked account role", err)
		}
		if err := s.tokens.Revoke(ctx, linked.ID.String()); err != nil {
			return nil, services.WrapInternal("failed to revoke tokens", err)
		}
	case errors.Is(err, repositories.ErrNotFound):
	default:
		return nil, services.WrapInternal("failed to look up linked account", err)
	}

	s.audit.Record(ctx, models.AuditActionExternalRoleAssigned, actor.ID, input.TargetID, map[string]string{"role": string(role)})
	return assignment, nil
}

// LinkedAccount returns the local record linked to an external identity, or
// nil when there is none.
func (s *Service) LinkedAccount(ctx context.Context, externalID string) (*models.User, error) {
	user, err := s.users.GetByExternalID(ctx, externalID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, nil
		}
		return nil, services.WrapInternal("failed to look up linked account", err)
	}
	return user, nil
}
