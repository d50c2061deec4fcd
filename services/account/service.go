// Package account implements the account flows behind the local token family:
// registration, login, profile and password management, and administration.
package account

import (
	"context"
	"errors"
	"time"

	"github.com/campabbey/camp-api/models"
	"github.com/campabbey/camp-api/repositories"
	"github.com/campabbey/camp-api/services"
	"github.com/campabbey/camp-api/services/identity"
	"github.com/campabbey/camp-api/services/token"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// DefaultResetTTL is how long a password reset grant stays valid
const DefaultResetTTL = time.Hour

// PasswordHasher hashes and verifies account secrets
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hashed string) (bool, error)
	NeedsRehash(hashed string) bool
	VerifyDummy(plain string)
}

// TokenIssuer issues and revokes local bearer tokens
type TokenIssuer interface {
	Issue(ctx context.Context, subjectID string, role models.Role, ttl time.Duration) (*token.IssuedToken, error)
	Revoke(ctx context.Context, subjectID string) error
}

// AuditRecorder records account events asynchronously
type AuditRecorder interface {
	Record(ctx context.Context, action models.AuditAction, actorID, subjectID string, details interface{})
}

// ExternalIdentities manages identities in the external provider
type ExternalIdentities interface {
	CreateWithRole(ctx context.Context, email, secret string, role models.Role, displayName string) (*identity.ExternalIdentity, error)
	AssignRole(ctx context.Context, targetID string, role models.Role, actor *models.Principal) (*identity.RoleAssignment, error)
	EnsureRole(ctx context.Context, id string, role models.Role) error
	RevokeSessions(ctx context.Context, id string) (time.Time, error)
	Delete(ctx context.Context, id string) error
}

// Deps holds the collaborators of the account service
type Deps struct {
	Users      repositories.UserRepository
	AuditLogs  repositories.AuditRepository
	TxManager  repositories.TransactionManager
	Hasher     PasswordHasher
	Tokens     TokenIssuer
	Audit      AuditRecorder
	Identities ExternalIdentities // nil when no provider is configured
	Notifier   ResetNotifier
}

// Config holds account service settings
type Config struct {
	ResetTTL time.Duration
}

// Service implements the account flows
type Service struct {
	users      repositories.UserRepository
	auditLogs  repositories.AuditRepository
	txMgr      repositories.TransactionManager
	hasher     PasswordHasher
	tokens     TokenIssuer
	audit      AuditRecorder
	identities ExternalIdentities
	notifier   ResetNotifier
	resetTTL   time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

// NewService creates a new account service
func NewService(deps Deps, cfg Config, logger *zap.Logger) *Service {
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = DefaultResetTTL
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = NewLogNotifier(logger, false)
	}
	return &Service{
		users:      deps.Users,
		auditLogs:  deps.AuditLogs,
		txMgr:      deps.TxManager,
		hasher:     deps.Hasher,
		tokens:     deps.Tokens,
		audit:      deps.Audit,
		identities: deps.Identities,
		notifier:   notifier,
		resetTTL:   cfg.ResetTTL,
		logger:     logger,
		now:        time.Now,
	}
}

// RegisterInput is the payload of a parent self-registration
type RegisterInput struct {
	FirstName string `json:"firstName" validate:"required,max=100"`
	LastName  string `json:"lastName" validate:"required,max=100"`
	Email     string `json:"email" validate:"required,email,max=255"`
	Password  string `json:"password" validate:"required,min=6,max=72"`
}

// LoginInput is the payload of a login
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ProfileUpdate holds the profile fields a user may change. Nil fields are left unchanged.
type ProfileUpdate struct {
	FirstName *string `json:"firstName,omitempty" validate:"omitempty,min=1,max=100"`
	LastName  *string `json:"lastName,omitempty" validate:"omitempty,min=1,max=100"`
	Email     *string `json:"email,omitempty" validate:"omitempty,email,max=255"`
	Phone     *string `json:"phone,omitempty" validate:"omitempty,max=32"`
}

// AuthResult is returned by register and login
type AuthResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *models.User `json:"user"`
}

// Register creates a parent account and signs it in
func (s *Service) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	user := models.NewUser(input.Email, input.FirstName, input.LastName, models.RoleParent)

	hash, err := s.hashSecret(input.Password)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = hash

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			s.logger.Info("registration rejected: email already registered", zap.String("email", user.Email))
			return nil, services.ErrDuplicateAccount
		}
		return nil, services.WrapInternal("failed to create account", err)
	}

	issued, err := s.tokens.Issue(ctx, user.ID.String(), user.Role, 0)
	if err != nil {
		return nil, services.WrapInternal("failed to issue token", err)
	}

	s.logger.Info("account registered",
		zap.String("user_id", user.ID.String()),
		zap.String("role", string(user.Role)))
	s.audit.Record(ctx, models.AuditActionAccountRegistered, user.ID.String(), user.ID.String(), nil)

	return &AuthResult{Token: issued.Token, ExpiresAt: issued.ExpiresAt, User: user}, nil
}

// Login verifies an email and password. Unknown emails, wrong passwords and
// deactivated accounts all return ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	email := models.NormalizeEmail(input.Email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			return nil, services.WrapInternal("failed to look up account", err)
		}
		s.hasher.VerifyDummy(input.Password)
		s.loginFailed(ctx, "", "unknown_email", zap.String("email", email))
		return nil, services.ErrInvalidCredentials
	}

	if !user.HasLocalPassword() {
		s.hasher.VerifyDummy(input.Password)
		s.loginFailed(ctx, user.ID.String(), "external_account")
		return nil, services.ErrInvalidCredentials
	}

	ok, err := s.hasher.Verify(input.Password, user.PasswordHash)
	if err != nil {
		s.logger.Error("stored password hash could not be verified",
			zap.String("user_id", user.ID.String()),
			zap.Error(err))
	}
	if !ok {
		s.loginFailed(ctx, user.ID.String(), "wrong_password")
		return nil, services.ErrInvalidCredentials
	}

	if user.Deactivated {
		s.loginFailed(ctx, user.ID.String(), "deactivated")
		return nil, services.ErrInvalidCredentials
	}

	if s.hasher.NeedsRehash(user.PasswordHash) {
		s.rehash(ctx, user, input.Password)
	}

	issued, err := s.tokens.Issue(ctx, user.ID.String(), user.Role, 0)
	if err != nil {
		return nil, services.WrapInternal("failed to issue token", err)
	}

	s.logger.Info("login succeeded", zap.String("user_id", user.ID.String()))
	s.audit.Record(ctx, models.AuditActionLoginSucceeded, user.ID.String(), user.ID.String(), nil)

	return &AuthResult{Token: issued.Token, ExpiresAt: issued.ExpiresAt, User: user}, nil
}

// GetProfile returns the account with the given id
func (s *Service) GetProfile(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.getUser(ctx, id)
}

// UpdateProfile applies a profile update and returns the updated account
func (s *Service) UpdateProfile(ctx context.Context, id uuid.UUID, update ProfileUpdate) (*models.User, error) {
	user, err := s.getUser(ctx, id)
	if err != nil {
		return nil, err
	}

	changed := []string{}
	if update.FirstName != nil {
		user.FirstName = *update.FirstName
		changed = append(changed, "firstName")
	}
	if update.LastName != nil {
		user.LastName = *update.LastName
		changed = append(changed, "lastName")
	}
	if update.Email != nil {
		user.Email = models.NormalizeEmail(*update.Email)
		changed = append(changed, "email")
	}
	if update.Phone != nil {
		user.Phone = *update.Phone
		changed = append(changed, "phone")
	}
	if len(changed) == 0 {
		return user, nil
	}
	user.UpdatedAt = s.now().UTC()

	if err := s.users.Update(ctx, user); err != nil {
		switch {
		case errors.Is(err, repositories.ErrDuplicate):
			return nil, services.ErrDuplicateAccount
		case errors.Is(err, repositories.ErrNotFound):
			return nil, services.ErrUserNotFound
		}
		return nil, services.WrapInternal("failed to update profile", err)
	}

	s.audit.Record(ctx, models.AuditActionProfileUpdated, id.String(), id.String(), map[string]interface{}{"fields": changed})
	return user, nil
}

func (s *Service) getUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrUserNotFound
		}
		return nil, services.WrapInternal("failed to get user", err)
	}
	return user, nil
}

func (s *Service) hashSecret(plain string) (string, error) {
	hash, err := s.hasher.Hash(plain)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", services.ErrValidation.WithDetail("password", "password must be at most 72 bytes")
		}
		return "", services.WrapInternal("failed to hash password", err)
	}
	return hash, nil
}

// rehash upgrades a hash produced by a previous algorithm. Failures are logged only.
func (s *Service) rehash(ctx context.Context, user *models.User, plain string) {
	hash, err := s.hasher.Hash(plain)
	if err == nil {
		err = s.users.UpdatePassword(ctx, user.ID, hash)
	}
	if err != nil {
		s.logger.Warn("password rehash failed", zap.String("user_id", user.ID.String()), zap.Error(err))
		return
	}
	user.PasswordHash = hash
}

func (s *Service) loginFailed(ctx context.Context, subjectID, reason string, fields ...zap.Field) {
	fields = append(fields, zap.String("reason", reason), zap.String("user_id", subjectID))
	s.logger.Info("login failed", fields...)
	s.audit.Record(ctx, models.AuditActionLoginFailed, "", subjectID, map[string]string{"reason": reason})
}
