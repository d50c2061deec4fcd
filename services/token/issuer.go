// Package token issues and verifies the API's own bearer tokens.
package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/campabbey/camp-api/models"
	"github.com/campabbey/camp-api/services"
	"github.com/campabbey/camp-api/services/revocation"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// MinSecretLength is the shortest HS256 signing secret accepted at startup
const MinSecretLength = 32

// DefaultTTL is the token lifetime used when none is configured
const DefaultTTL = 7 * 24 * time.Hour

var (
	// ErrMissingSigningSecret is returned when no signing secret is configured
	ErrMissingSigningSecret = errors.New("token signing secret is not configured")

	// ErrWeakSigningSecret is returned when the signing secret is too short
	ErrWeakSigningSecret = fmt.Errorf("token signing secret must be at least %d bytes", MinSecretLength)
)

// Config holds issuer configuration
type Config struct {
	Secret string
	Issuer string
	TTL    time.Duration
}

// Claims is the payload of a local bearer token
type Claims struct {
	Role       string `json:"role"`
	Generation int64  `json:"gen"`
	jwt.RegisteredClaims
}

// IssuedToken is a signed token and its metadata
type IssuedToken struct {
	Token     string    `json:"token"`
	ID        string    `json:"-"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Issuer signs and verifies HS256 bearer tokens
type Issuer struct {
	secret      []byte
	issuer      string
	ttl         time.Duration
	generations revocation.Generations
	now         func() time.Time
}

// Option configures an Issuer
type Option func(*Issuer)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) {
		i.now = now
	}
}

// NewIssuer creates an issuer. It fails when the signing secret is missing or weak.
func NewIssuer(cfg Config, generations revocation.Generations, opts ...Option) (*Issuer, error) {
	if cfg.Secret == "" {
		return nil, ErrMissingSigningSecret
	}
	if len(cfg.Secret) < MinSecretLength {
		return nil, ErrWeakSigningSecret
	}
	if generations == nil {
		return nil, errors.New("token issuer requires a revocation store")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}

	i := &Issuer{
		secret:      []byte(cfg.Secret),
		issuer:      cfg.Issuer,
		ttl:         cfg.TTL,
		generations: generations,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Issue signs a token for the subject. A zero ttl uses the configured default.
func (i *Issuer) Issue(ctx context.Context, subjectID string, role models.Role, ttl time.Duration) (*IssuedToken, error) {
	if subjectID == "" {
		return nil, errors.New("token subject is required")
	}
	if !role.IsValid() {
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidRole, role)
	}
	if ttl <= 0 {
		ttl = i.ttl
	}

	gen, err := i.generations.Current(ctx, subjectID)
	if err != nil {
		return nil, services.WrapInternal("failed to read token generation", err)
	}

	now := i.now()
	expiresAt := now.Add(ttl)
	claims := Claims{
		Role:       string(role),
		Generation: gen,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			Issuer:    i.issuer,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return nil, services.WrapInternal("failed to sign token", err)
	}

	return &IssuedToken{
		Token:     signed,
		ID:        claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Verify checks the signature first, then expiry and revocation, and returns the
// principal carried in the payload. The credential store is not consulted.
func (i *Issuer) Verify(ctx context.Context, tokenString string) (*models.Principal, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	)

	claims := &Claims{}
	_, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return i.secret, nil
	})
	if err != nil {
		return nil, classifyParseError(err)
	}

	if i.issuer != "" && claims.Issuer != i.issuer {
		return nil, services.ErrMalformedToken.Wrap(fmt.Errorf("unexpected issuer %q", claims.Issuer))
	}
	if claims.Subject == "" {
		return nil, services.ErrMalformedToken.Wrap(errors.New("token has no subject"))
	}
	role, err := models.ParseRole(claims.Role)
	if err != nil {
		return nil, services.ErrMalformedToken.Wrap(err)
	}

	current, err := i.generations.Current(ctx, claims.Subject)
	if err != nil {
		return nil, services.WrapInternal("failed to read token generation", err)
	}
	if claims.Generation < current {
		return nil, services.ErrTokenRevoked
	}

	principal := &models.Principal{
		ID:     claims.Subject,
		Role:   role,
		Source: models.PrincipalSourceLocal,
	}
	if claims.IssuedAt != nil {
		principal.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		principal.ExpiresAt = claims.ExpiresAt.Time
	}
	return principal, nil
}

// Revoke invalidates every token previously issued to the subject
func (i *Issuer) Revoke(ctx context.Context, subjectID string) error {
	if _, err := i.generations.Advance(ctx, subjectID); err != nil {
		return services.WrapInternal("failed to revoke tokens", err)
	}
	return nil
}

func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return services.ErrMalformedToken.Wrap(err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return services.ErrBadSignature.Wrap(err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return services.ErrTokenExpired.Wrap(err)
	default:
		return services.ErrMalformedToken.Wrap(err)
	}
}
