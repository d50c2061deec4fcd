package account

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/campabbey/camp-api/models"
	"github.com/campabbey/camp-api/repositories"
	"github.com/campabbey/camp-api/services"
	"github.com/campabbey/camp-api/services/token"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// resetTokenBytes is the entropy of a password reset token
const resetTokenBytes = 32

// ChangePasswordInput is the payload of a password change
type ChangePasswordInput struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	Password        string `json:"password" validate:"required,min=6,max=72"`
}

// ResetRequestInput is the payload of a password reset request
type ResetRequestInput struct {
	Email string `json:"email" validate:"required,email"`
}

// SetPasswordInput completes a password reset
type SetPasswordInput struct {
	Email    string `json:"email" validate:"required,email"`
	Token    string `json:"token" validate:"required,hexadecimal,len=64"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// AssignPasswordInput is the payload of a superadmin password assignment
type AssignPasswordInput struct {
	Email       string `json:"email" validate:"required,email"`
	NewPassword string `json:"newPassword" validate:"required,min=6,max=72"`
}

// ChangePassword replaces the caller's password after verifying the current one.
// Outstanding tokens are revoked and a fresh token is returned.
func (s *Service) ChangePassword(ctx context.Context, id uuid.UUID, input ChangePasswordInput) (*token.IssuedToken, error) {
	user, err := s.getUser(ctx, id)
	if err != nil {
		return nil, err
	}

	ok := false
	if user.HasLocalPassword() {
		ok, _ = s.hasher.Verify(input.CurrentPassword, user.PasswordHash)
	}
	if !ok {
		s.logger.Info("password change rejected: current password incorrect", zap.String("user_id", id.String()))
		return nil, services.ErrCurrentPasswordIncorrect
	}

	hash, err := s.hashSecret(input.Password)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Revocation is idempotent, so it runs first and a failure leaves the old password in place.
	if err := s.tokens.Revoke(ctx, id.String()); err != nil {
		return nil, services.WrapInternal("failed to revoke tokens", err)
	}
	if err := s.users.UpdatePassword(ctx, id, hash); err != nil {
		return nil, services.WrapInternal("failed to update password", err)
	}

	issued, err := s.tokens.Issue(ctx, id.String(), user.Role, 0)
	if err != nil {
		return nil, services.WrapInternal("failed to issue token", err)
	}

	s.logger.Info("password changed", zap.String("user_id", id.String()))
	s.audit.Record(ctx, models.AuditActionPasswordChanged, id.String(), id.String(), nil)
	return issued, nil
}

// RequestReset issues a reset grant when an eligible account exists. The
// result is the same whether or not the email is registered.
func (s *Service) RequestReset(ctx context.Context, input ResetRequestInput) error {
	email := models.NormalizeEmail(input.Email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			s.logger.Info("password reset requested for unknown email", zap.String("email", email))
			return nil
		}
		return services.WrapInternal("failed to look up account", err)
	}
	if user.Deactivated || !user.HasLocalPassword() {
		s.logger.Info("password reset requested for ineligible account", zap.String("user_id", user.ID.String()))
		return nil
	}

	plain, digest, err := newResetToken()
	if err != nil {
		return services.WrapInternal("failed to generate reset token", err)
	}
	expiresAt := s.now().UTC().Add(s.resetTTL)

	if err := s.users.SetResetToken(ctx, email, digest, expiresAt); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil
		}
		return services.WrapInternal("failed to store reset token", err)
	}

	if err := s.notifier.NotifyReset(ctx, user, plain, expiresAt); err != nil {
		s.logger.Error("failed to deliver password reset", zap.String("user_id", user.ID.String()), zap.Error(err))
	}

	s.audit.Record(ctx, models.AuditActionPasswordResetRequested, "", user.ID.String(), nil)
	return nil
}

// CompleteReset consumes a reset grant and sets the new password. A
// mismatched or expired token leaves the stored hash unchanged.
func (s *Service) CompleteReset(ctx context.Context, input SetPasswordInput) error {
	hash, err := s.hashSecret(input.Password)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	email := models.NormalizeEmail(input.Email)
	user, err := s.users.CompleteReset(ctx, email, digestResetToken(input.Token), hash, s.now().UTC())
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			s.logger.Info("password reset rejected: invalid or expired token", zap.String("email", email))
			return services.ErrInvalidResetToken
		}
		return services.WrapInternal("failed to complete password reset", err)
	}

	// The grant is consumed before the account is known, so revocation cannot run first.
	if err := s.tokens.Revoke(ctx, user.ID.String()); err != nil {
		s.logger.Error("password reset stored but outstanding tokens were not revoked",
			zap.String("user_id", user.ID.String()),
			zap.Error(err))
		return services.WrapInternal("failed to revoke tokens", err)
	}

	s.logger.Info("password reset completed", zap.String("user_id", user.ID.String()))
	s.audit.Record(ctx, models.AuditActionPasswordResetCompleted, user.ID.String(), user.ID.String(), nil)
	return nil
}

// AssignPassword sets the password of any account. Outstanding tokens of the
// account are revoked.
func (s *Service) AssignPassword(ctx context.Context, actor *models.Principal, input AssignPasswordInput) error {
	email := models.NormalizeEmail(input.Email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			s.logger.Warn("assign password failed: user not found", zap.String("email", email))
			return services.ErrUserNotFound
		}
		return services.WrapInternal("failed to look up account", err)
	}

	hash, err := s.hashSecret(input.NewPassword)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.tokens.Revoke(ctx, user.ID.String()); err != nil {
		return services.WrapInternal("failed to revoke tokens", err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return services.WrapInternal("failed to update password", err)
	}

	s.logger.Info("password assigned",
		zap.String("user_id", user.ID.String()),
		zap.String("actor_id", actor.ID))
	s.audit.Record(ctx, models.AuditActionPasswordAssigned, actor.ID, user.ID.String(), nil)
	return nil
}

// newResetToken returns a random hex token and the digest that is stored
func newResetToken() (string, string, error) {
	buf := make([]byte, resetTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	plain := hex.EncodeToString(buf)
	return plain, digestResetToken(plain), nil
}

func digestResetToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}
