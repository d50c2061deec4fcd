package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// User is a credential record for a parent or staff account
type User struct {
	ID                  uuid.UUID  `json:"id" db:"id"`
	Email               string     `json:"email" db:"email"`
	PasswordHash        string     `json:"-" db:"password_hash"` // empty for externally managed accounts
	Role                Role       `json:"role" db:"role"`
	FirstName           string     `json:"firstName" db:"first_name"`
	LastName            string     `json:"lastName" db:"last_name"`
	Phone               string     `json:"phone,omitempty" db:"phone"`
	AvatarURL           string     `json:"avatarUrl,omitempty" db:"avatar_url"`
	Deactivated         bool       `json:"deactivated" db:"deactivated"`
	ResetTokenHash      *string    `json:"-" db:"reset_token_hash"`
	ResetTokenExpiresAt *time.Time `json:"-" db:"reset_token_expires_at"`
	ExternalID          *string    `json:"externalId,omitempty" db:"external_id"`
	CreatedAt           time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt           time.Time  `json:"updatedAt" db:"updated_at"`
}

// TableName returns the table name for the User model
func (User) TableName() string {
	return "users"
}

// NewUser creates a new User with a normalized email
func NewUser(email, firstName, lastName string, role Role) *User {
	now := time.Now().UTC()
	return &User{
		ID:        uuid.New(),
		Email:     NormalizeEmail(email),
		FirstName: strings.TrimSpace(firstName),
		LastName:  strings.TrimSpace(lastName),
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NormalizeEmail trims and lower-cases an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsActive returns true unless the account has been deactivated
func (u *User) IsActive() bool {
	return !u.Deactivated
}

// HasLocalPassword reports whether the record can pass local verification
func (u *User) HasLocalPassword() bool {
	return u.PasswordHash != ""
}

// IsExternal returns true when the account is managed by the external identity provider
func (u *User) IsExternal() bool {
	return u.ExternalID != nil && *u.ExternalID != ""
}

// DisplayName returns "First Last", falling back to the email
func (u *User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}
