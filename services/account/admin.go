package account

import (
	"context"
	"errors"

	"github.com/campabbey/camp-api/models"
	"github.com/campabbey/camp-api/repositories"
	"github.com/campabbey/camp-api/services"
	"github.com/campabbey/camp-api/services/policy"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ListUsers returns accounts matching the filter
func (s *Service) ListUsers(ctx context.Context, filter repositories.UserFilter) ([]*models.User, error) {
	users, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, services.WrapInternal("failed to list users", err)
	}
	return users, nil
}

// Deactivate blocks an account and revokes its outstanding tokens
func (s *Service) Deactivate(ctx context.Context, actor *models.Principal, id uuid.UUID) (*models.User, error) {
	return s.setDeactivated(ctx, actor, id, true)
}

// Activate re-enables an account. Tokens issued before deactivation stay revoked.
func (s *Service) Activate(ctx context.Context, actor *models.Principal, id uuid.UUID) (*models.User, error) {
	return s.setDeactivated(ctx, actor, id, false)
}

func (s *Service) setDeactivated(ctx context.Context, actor *models.Principal, id uuid.UUID, deactivated bool) (*models.User, error) {
	if deactivated && actor.ID == id.String() {
		return nil, services.ErrValidation.WithMessage("you cannot deactivate your own account")
	}

	if err := s.users.SetDeactivated(ctx, id, deactivated); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrUserNotFound
		}
		return nil, services.WrapInternal("failed to update account status", err)
	}
	if err := s.tokens.Revoke(ctx, id.String()); err != nil {
		return nil, services.WrapInternal("failed to revoke tokens", err)
	}

	user, err := s.getUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if deactivated {
		if err := s.revokeExternalSessions(ctx, user); err != nil {
			return nil, err
		}
	}

	action := models.AuditActionAccountActivated
	if deactivated {
		action = models.AuditActionAccountDeactivated
	}
	s.logger.Info("account status changed",
		zap.String("user_id", id.String()),
		zap.Bool("deactivated", deactivated),
		zap.String("actor_id", actor.ID))
	s.audit.Record(ctx, action, actor.ID, id.String(), nil)

	return user, nil
}

// ChangeRole sets the role of an account and revokes its outstanding tokens
func (s *Service) ChangeRole(ctx context.Context, actor *models.Principal, id uuid.UUID, role models.Role) (*models.User, error) {
	if err := policy.CanAssignRole(actor.Role, role); err != nil {
		return nil, err
	}

	user, err := s.getUser(ctx, id)
	if err != nil {
		return nil, err
	}
	previous := user.Role

	// The provider claim is set first so a provider failure leaves both sides unchanged.
	if user.IsExternal() {
		if s.identities == nil {
			return nil, services.ErrProviderConfig
		}
		if err := s.identities.EnsureRole(ctx, *user.ExternalID, role); err != nil {
			return nil, err
		}
	}

	if err := s.users.SetRole(ctx, id, role); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrUserNotFound
		}
		return nil, services.WrapInternal("failed to change role", err)
	}
	if err := s.tokens.Revoke(ctx, id.String()); err != nil {
		return nil, services.WrapInternal("failed to revoke tokens", err)
	}
	user.Role = role
	if err := s.revokeExternalSessions(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("role changed",
		zap.String("user_id", id.String()),
		zap.String("from", string(previous)),
		zap.String("to", string(role)),
		zap.String("actor_id", actor.ID))
	s.audit.Record(ctx, models.AuditActionRoleChanged, actor.ID, id.String(), map[string]string{
		"from": string(previous),
		"to":   string(role),
	})
	return user, nil
}

// Delete removes an account. The deletion and its audit entry are written in
// one transaction unless audit logs live in a separate database, in which case
// the entry is written before the deletion commits. Outstanding tokens, local
// and provider, are revoked afterwards.
func (s *Service) Delete(ctx context.Context, actor *models.Principal, id uuid.UUID) error {
	if actor.ID == id.String() {
		return services.ErrValidation.WithMessage("you cannot delete your own account")
	}

	user, err := s.getUser(ctx, id)
	if err != nil {
		return err
	}

	entry := models.NewAuditLog(models.AuditActionAccountDeleted).
		WithActor(actor.ID).
		WithSubject(id.String()).
		WithDetails(map[string]string{"email": user.Email, "role": string(user.Role)})

	err = services.WithTransaction(ctx, s.txMgr, func(ctx context.Context, tx repositories.Transaction) error {
		if err := s.users.Delete(ctx, id); err != nil {
			return err
		}
		return s.auditLogs.Insert(ctx, entry)
	})
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return services.ErrUserNotFound
		}
		return services.WrapInternal("failed to delete account", err)
	}

	if err := s.tokens.Revoke(ctx, id.String()); err != nil {
		return services.WrapInternal("failed to revoke tokens", err)
	}

	revokeErr := s.revokeExternalSessions(ctx, user)
	if user.IsExternal() && s.identities != nil {
		if err := s.identities.Delete(ctx, *user.ExternalID); err != nil {
			s.logger.Warn("failed to delete linked external identity",
				zap.String("user_id", id.String()),
				zap.String("uid", *user.ExternalID),
				zap.Error(err))
		}
	}

	s.logger.Info("account deleted", zap.String("user_id", id.String()), zap.String("actor_id", actor.ID))
	return revokeErr
}

// revokeExternalSessions invalidates the provider tokens of a linked account.
// Local-only accounts are left alone.
func (s *Service) revokeExternalSessions(ctx context.Context, user *models.User) error {
	if !user.IsExternal() {
		return nil
	}
	if s.identities == nil {
		s.logger.Warn("linked account has no provider to revoke against",
			zap.String("user_id", user.ID.String()),
			zap.String("uid", *user.ExternalID))
		return nil
	}
	if _, err := s.identities.RevokeSessions(ctx, *user.ExternalID); err != nil {
		return err
	}
	return nil
}
