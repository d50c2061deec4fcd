// Package identity bridges the external identity provider into the local role model.
package identity

import (
	"context"
	"errors"
	"time"

	"github.com/campabbey/camp-api/cognito"
	"github.com/campabbey/camp-api/models"
	"github.com/campabbey/camp-api/services"
	"github.com/campabbey/camp-api/services/policy"
	"github.com/campabbey/camp-api/services/revocation"
	"go.uber.org/zap"
)

// DefaultTimeout bounds every call to the provider
const DefaultTimeout = 10 * time.Second

// TokenValidator verifies provider-issued tokens
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*cognito.ParsedClaims, error)
}

// Provider performs privileged operations against the provider's user directory
type Provider interface {
	CreateUser(ctx context.Context, email, password, displayName string) (*cognito.ProviderUser, error)
	GetUser(ctx context.Context, id string) (*cognito.ProviderUser, error)
	SetRole(ctx context.Context, id, role string) error
	SignOut(ctx context.Context, id string) error
	DeleteUser(ctx context.Context, id string) error
}

// ExternalIdentity is an identity created in the provider
type ExternalIdentity struct {
	ID           string      `json:"uid"`
	Username     string      `json:"username"`
	Email        string      `json:"email"`
	Role         models.Role `json:"role"`
	RoleAssigned bool        `json:"roleAssigned"`
}

// RoleAssignment is the outcome of AssignRole
type RoleAssignment struct {
	TargetID  string      `json:"uid"`
	Role      models.Role `json:"role"`
	RevokedAt time.Time   `json:"revokedAt"`
}

// Bridge verifies provider tokens and manages provider identities
type Bridge struct {
	validator TokenValidator
	provider  Provider
	cutoffs   revocation.Cutoffs
	timeout   time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewBridge creates a new Bridge. provider may be nil when only token
// verification is available.
func NewBridge(validator TokenValidator, provider Provider, cutoffs revocation.Cutoffs, timeout time.Duration, logger *zap.Logger) *Bridge {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Bridge{
		validator: validator,
		provider:  provider,
		cutoffs:   cutoffs,
		timeout:   timeout,
		logger:    logger,
		now:       time.Now,
	}
}

// Verify resolves a provider token to a principal
func (b *Bridge) Verify(ctx context.Context, raw string) (*models.Principal, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	claims, err := b.validator.ValidateToken(ctx, raw)
	if err != nil {
		return nil, classifyTokenError(ctx, err)
	}

	role, err := models.ParseRole(claims.Role)
	if err != nil {
		return nil, services.ErrExternalTokenInvalid.Wrap(err)
	}

	cutoff, revoked, err := b.cutoffs.RevokedAt(ctx, claims.Sub)
	if err != nil {
		return nil, services.WrapInternal("failed to check token revocation", err)
	}
	if revoked && revocation.IssuedBeforeCutoff(claims.IssuedAt, cutoff) {
		return nil, services.ErrTokenRevoked
	}

	return &models.Principal{
		ID:        claims.Sub,
		Email:     claims.Email,
		Role:      role,
		Source:    models.PrincipalSourceExternal,
		Claims:    claims.Custom(),
		IssuedAt:  claims.IssuedAt,
		ExpiresAt: claims.ExpiresAt,
	}, nil
}

// CreateWithRole creates a provider identity and assigns its role.
// A failed role assignment leaves the identity at the default role and is
// reported through RoleAssigned rather than an error; EnsureRole repairs it.
func (b *Bridge) CreateWithRole(ctx context.Context, email, secret string, role models.Role, displayName string) (*ExternalIdentity, error) {
	if !role.IsValid() {
		return nil, services.ErrValidation.WithMessage("invalid role").WithDetail("role", "must be one of parent, staff, admin, superadmin")
	}
	if b.provider == nil {
		return nil, services.ErrProviderConfig
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	user, err := b.provider.CreateUser(ctx, email, secret, displayName)
	if err != nil {
		return nil, classifyProviderError(ctx, err)
	}

	identity := &ExternalIdentity{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
		Role:     models.RoleParent,
	}

	if err := b.provider.SetRole(ctx, user.ID, string(role)); err != nil {
		b.logger.Warn("role assignment failed after identity creation",
			zap.String("uid", user.ID),
			zap.String("role", string(role)),
			zap.Error(err),
		)
		return identity, nil
	}

	identity.Role = role
	identity.RoleAssigned = true
	return identity, nil
}

// EnsureRole sets the role claim again. Safe to repeat.
func (b *Bridge) EnsureRole(ctx context.Context, id string, role models.Role) error {
	if !role.IsValid() {
		return services.ErrValidation.WithMessage("invalid role")
	}
	if b.provider == nil {
		return services.ErrProviderConfig
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	if err := b.provider.SetRole(ctx, id, string(role)); err != nil {
		return classifyProviderError(ctx, err)
	}
	return nil
}

// AssignRole changes a target's role on behalf of actor and invalidates the
// target's outstanding sessions.
func (b *Bridge) AssignRole(ctx context.Context, targetID string, role models.Role, actor *models.Principal) (*RoleAssignment, error) {
	if actor == nil {
		return nil, services.ErrInsufficientRole
	}
	if err := policy.CanAssignRole(actor.Role, role); err != nil {
		return nil, err
	}
	if b.provider == nil {
		return nil, services.ErrProviderConfig
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	if err := b.provider.SetRole(ctx, targetID, string(role)); err != nil {
		return nil, classifyProviderError(ctx, err)
	}

	revokedAt, err := b.revokeSessions(ctx, targetID)
	if err != nil {
		return nil, err
	}

	b.logger.Info("external role assigned",
		zap.String("uid", targetID),
		zap.String("role", string(role)),
		zap.String("actor_id", actor.ID),
	)

	return &RoleAssignment{TargetID: targetID, Role: role, RevokedAt: revokedAt}, nil
}

// RevokeSessions rejects every provider token of id issued up to now and
// signs the identity out of the provider. Without an admin client only the
// cutoff is recorded.
func (b *Bridge) RevokeSessions(ctx context.Context, id string) (time.Time, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	return b.revokeSessions(ctx, id)
}

func (b *Bridge) revokeSessions(ctx context.Context, id string) (time.Time, error) {
	revokedAt := b.now()
	if err := b.cutoffs.Revoke(ctx, id, revokedAt); err != nil {
		return time.Time{}, services.WrapInternal("failed to revoke outstanding tokens", err)
	}
	if b.provider == nil {
		b.logger.Warn("provider sign-out skipped, admin client not configured", zap.String("uid", id))
		return revokedAt, nil
	}
	if err := b.provider.SignOut(ctx, id); err != nil && !errors.Is(err, cognito.ErrUserNotFound) {
		return time.Time{}, classifyProviderError(ctx, err)
	}
	return revokedAt, nil
}

// Claims returns the provider-side custom claims of an identity
func (b *Bridge) Claims(ctx context.Context, id string) (map[string]any, error) {
	if b.provider == nil {
		return nil, services.ErrProviderConfig
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	user, err := b.provider.GetUser(ctx, id)
	if err != nil {
		return nil, classifyProviderError(ctx, err)
	}

	role, err := models.ParseRole(user.Role)
	if err != nil {
		role = models.RoleParent
	}
	return map[string]any{"role": string(role)}, nil
}

// Delete removes an identity from the provider
func (b *Bridge) Delete(ctx context.Context, id string) error {
	if b.provider == nil {
		return services.ErrProviderConfig
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	if err := b.provider.DeleteUser(ctx, id); err != nil {
		return classifyProviderError(ctx, err)
	}
	return nil
}

func classifyTokenError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, cognito.ErrNotConfigured),
		errors.Is(err, cognito.ErrJWKSFetchFailed),
		errors.Is(err, context.DeadlineExceeded),
		ctx.Err() != nil:
		return services.ErrProviderConfig.Wrap(err)
	case errors.Is(err, cognito.ErrTokenExpired):
		return services.ErrExternalTokenExpired
	default:
		return services.ErrExternalTokenInvalid.Wrap(err)
	}
}

func classifyProviderError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, cognito.ErrUserExists):
		return services.ErrDuplicateAccount.Wrap(err)
	case errors.Is(err, cognito.ErrInvalidUserInput):
		return services.ErrValidation.WithMessage("identity provider rejected the request").Wrap(err)
	case errors.Is(err, cognito.ErrUserNotFound):
		return services.ErrUserNotFound.Wrap(err)
	case errors.Is(err, cognito.ErrProviderUnavailable),
		errors.Is(err, cognito.ErrNotConfigured),
		errors.Is(err, context.DeadlineExceeded),
		ctx.Err() != nil:
		return services.ErrProviderConfig.Wrap(err)
	default:
		return services.WrapInternal("identity provider request failed", err)
	}
}
