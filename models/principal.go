package models

import "time"

// PrincipalSource identifies which identity scheme resolved a principal
type PrincipalSource string

const (
	PrincipalSourceLocal    PrincipalSource = "local"
	PrincipalSourceExternal PrincipalSource = "external"
)

// Principal is the authenticated identity attached to a request
type Principal struct {
	ID        string          `json:"id"`
	Email     string          `json:"email,omitempty"`
	Role      Role            `json:"role"`
	Source    PrincipalSource `json:"source"`
	Claims    map[string]any  `json:"claims,omitempty"`
	IssuedAt  time.Time       `json:"issuedAt"`
	ExpiresAt time.Time       `json:"expiresAt"`
}
