package cognito

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingClaim is returned when a required claim is missing
	ErrMissingClaim = errors.New("missing required claim")
)

// RoleAttribute is the user pool attribute that carries the camp role
const RoleAttribute = "custom:role"

// Claims represents the JWT claims issued by a Cognito user pool
type Claims struct {
	Email         string   `json:"email,omitempty"`
	EmailVerified bool     `json:"email_verified,omitempty"`
	TokenUse      string   `json:"token_use"`
	AuthTime      int64    `json:"auth_time,omitempty"`
	Username      string   `json:"cognito:username,omitempty"`
	Groups        []string `json:"cognito:groups,omitempty"`
	Role          string   `json:"custom:role,omitempty"`
	Name          string   `json:"name,omitempty"`
	ClientID      string   `json:"client_id,omitempty"`
	jwt.RegisteredClaims
}

// ParsedClaims holds the subset of claims the API relies on
type ParsedClaims struct {
	Sub           string
	Email         string
	EmailVerified bool
	Username      string
	Name          string
	Role          string // raw custom:role value; empty when unassigned
	Groups        []string
	TokenUse      string
	IssuedAt      time.Time
	ExpiresAt     time.Time
}

// Custom returns the provider-specific claims exposed to handlers
func (p *ParsedClaims) Custom() map[string]any {
	custom := map[string]any{
		"token_use":      p.TokenUse,
		"email_verified": p.EmailVerified,
	}
	if p.Username != "" {
		custom["cognito:username"] = p.Username
	}
	if p.Name != "" {
		custom["name"] = p.Name
	}
	if p.Role != "" {
		custom[RoleAttribute] = p.Role
	}
	if len(p.Groups) > 0 {
		custom["cognito:groups"] = p.Groups
	}
	return custom
}

// ExtractClaims extracts claims from a JWT without verifying it.
// Only use this on tokens that were already validated.
func ExtractClaims(tokenString string) (*ParsedClaims, error) {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())

	claims := &Claims{}
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	return parseClaims(claims)
}

// parseClaims converts Claims to ParsedClaims
func parseClaims(claims *Claims) (*ParsedClaims, error) {
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: sub", ErrMissingClaim)
	}

	parsed := &ParsedClaims{
		Sub:           claims.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Username:      claims.Username,
		Name:          claims.Name,
		Role:          claims.Role,
		Groups:        claims.Groups,
		TokenUse:      claims.TokenUse,
	}

	if claims.IssuedAt != nil {
		parsed.IssuedAt = claims.IssuedAt.Time
	} else if claims.AuthTime > 0 {
		parsed.IssuedAt = time.Unix(claims.AuthTime, 0)
	}
	if claims.ExpiresAt != nil {
		parsed.ExpiresAt = claims.ExpiresAt.Time
	}

	return parsed, nil
}
