package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/campabbey/camp-api/models"
	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a record does not exist
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned when a unique constraint is violated
	ErrDuplicate = errors.New("record already exists")
)

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction
	// Automatically commits if function succeeds, rolls back on error
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns the transaction context
	Context() context.Context
}

// UserFilter narrows a user listing
type UserFilter struct {
	Role        *models.Role
	Deactivated *bool
	Limit       int
	Offset      int
}

// UserRepository handles credential record operations
type UserRepository interface {
	// Create creates a new user; ErrDuplicate when the email is taken
	Create(ctx context.Context, user *models.User) error

	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)

	// GetByEmail retrieves a user by normalized email
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// GetByExternalID retrieves a user linked to an external identity
	GetByExternalID(ctx context.Context, externalID string) (*models.User, error)

	// List retrieves users ordered by creation time, newest first
	List(ctx context.Context, filter UserFilter) ([]*models.User, error)

	// Update updates profile fields (email, names, phone, avatar)
	Update(ctx context.Context, user *models.User) error

	// UpdatePassword replaces the stored hash and clears any reset grant
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error

	// SetRole changes the role of a user
	SetRole(ctx context.Context, id uuid.UUID, role models.Role) error

	// SetDeactivated sets the deactivation flag
	SetDeactivated(ctx context.Context, id uuid.UUID, deactivated bool) error

	// SetResetToken stores a reset grant for the account with the given email
	SetResetToken(ctx context.Context, email, tokenHash string, expiresAt time.Time) error

	// CompleteReset atomically consumes a valid reset grant and stores the new hash.
	// Returns ErrNotFound when no unexpired grant matches.
	CompleteReset(ctx context.Context, email, tokenHash, passwordHash string, now time.Time) (*models.User, error)

	// Delete deletes a user
	Delete(ctx context.Context, id uuid.UUID) error
}

// AuditFilter narrows an audit log listing
type AuditFilter struct {
	SubjectID string
	ActorID   string
	Action    models.AuditAction
	Since     *time.Time
	Limit     int
	Offset    int
}

// AuditRepository handles audit log data operations
type AuditRepository interface {
	// Insert inserts a new audit log entry
	Insert(ctx context.Context, log *models.AuditLog) error

	// GetByID retrieves an audit log by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.AuditLog, error)

	// List retrieves audit logs, newest first
	List(ctx context.Context, filter AuditFilter) ([]*models.AuditLog, error)

	// GetByRequestID retrieves audit logs by request ID
	GetByRequestID(ctx context.Context, requestID string) ([]*models.AuditLog, error)
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Users     UserRepository
	AuditLogs AuditRepository
}
