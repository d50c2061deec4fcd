package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/campabbey/camp-api/models"
	"github.com/campabbey/camp-api/repositories"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

const userColumns = `id, email, password_hash, role, first_name, last_name, phone, avatar_url,
		       deactivated, reset_token_hash, reset_token_expires_at, external_id, created_at, updated_at`

// uniqueViolation is the PostgreSQL error code for unique constraint violations
const uniqueViolation = "23505"

// UserRepository implements the repositories.UserRepository interface
type UserRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB, logger *zap.Logger) repositories.UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	var (
		resetHash    sql.NullString
		resetExpires sql.NullTime
		externalID   sql.NullString
	)

	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.FirstName,
		&user.LastName,
		&user.Phone,
		&user.AvatarURL,
		&user.Deactivated,
		&resetHash,
		&resetExpires,
		&externalID,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if resetHash.Valid {
		user.ResetTokenHash = &resetHash.String
	}
	if resetExpires.Valid {
		user.ResetTokenExpiresAt = &resetExpires.Time
	}
	if externalID.Valid {
		user.ExternalID = &externalID.String
	}
	return user, nil
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, email, password_hash, role, first_name, last_name, phone, avatar_url,
		                   deactivated, external_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.FirstName,
		user.LastName,
		user.Phone,
		user.AvatarURL,
		user.Deactivated,
		user.ExternalID,
		user.CreatedAt,
		user.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("failed to create user: %w", repositories.ErrDuplicate)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	r.logger.Debug("user created", zap.String("id", user.ID.String()), zap.String("role", string(user.Role)))
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.getOne(ctx, query, models.NormalizeEmail(email))
}

// GetByExternalID retrieves a user by external identity id
func (r *UserRepository) GetByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE external_id = $1`
	return r.getOne(ctx, query, externalID)
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg interface{}) (*models.User, error) {
	executor := GetExecutor(ctx, r.db)

	user, err := scanUser(executor.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user not found: %w", repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// List retrieves users matching the filter, newest first
func (r *UserRepository) List(ctx context.Context, filter repositories.UserFilter) ([]*models.User, error) {
	var (
		conditions []string
		args       []interface{}
	)
	if filter.Role != nil {
		args = append(args, *filter.Role)
		conditions = append(conditions, fmt.Sprintf("role = $%d", len(args)))
	}
	if filter.Deactivated != nil {
		args = append(args, *filter.Deactivated)
		conditions = append(conditions, fmt.Sprintf("deactivated = $%d", len(args)))
	}

	query := `SELECT ` + userColumns + ` FROM users`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit, filter.Offset)
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	users := []*models.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user rows: %w", err)
	}

	return users, nil
}

// Update updates profile fields of a user
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users
		SET email = $2,
		    first_name = $3,
		    last_name = $4,
		    phone = $5,
		    avatar_url = $6,
		    updated_at = $7
		WHERE id = $1
	`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.FirstName,
		user.LastName,
		user.Phone,
		user.AvatarURL,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("failed to update user: %w", repositories.ErrDuplicate)
		}
		return fmt.Errorf("failed to update user: %w", err)
	}

	if err := expectOneRow(result, user.ID); err != nil {
		return err
	}

	r.logger.Debug("user updated", zap.String("id", user.ID.String()))
	return nil
}

// UpdatePassword replaces the password hash and clears any pending reset grant
func (r *UserRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	query := `
		UPDATE users
		SET password_hash = $2,
		    reset_token_hash = NULL,
		    reset_token_expires_at = NULL,
		    updated_at = $3
		WHERE id = $1
	`
	return r.exec(ctx, "update password", query, id, id, passwordHash, time.Now().UTC())
}

// SetRole changes the role of a user
func (r *UserRepository) SetRole(ctx context.Context, id uuid.UUID, role models.Role) error {
	query := `UPDATE users SET role = $2, updated_at = $3 WHERE id = $1`
	return r.exec(ctx, "set role", query, id, id, role, time.Now().UTC())
}

// SetDeactivated sets the deactivation flag of a user
func (r *UserRepository) SetDeactivated(ctx context.Context, id uuid.UUID, deactivated bool) error {
	query := `UPDATE users SET deactivated = $2, updated_at = $3 WHERE id = $1`
	return r.exec(ctx, "set deactivated", query, id, id, deactivated, time.Now().UTC())
}

// SetResetToken stores a hashed reset token and its expiry
func (r *UserRepository) SetResetToken(ctx context.Context, email, tokenHash string, expiresAt time.Time) error {
	query := `
		UPDATE users
		SET reset_token_hash = $2,
		    reset_token_expires_at = $3,
		    updated_at = $4
		WHERE email = $1
	`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, models.NormalizeEmail(email), tokenHash, expiresAt, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to set reset token: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user not found: %w", repositories.ErrNotFound)
	}
	return nil
}

// CompleteReset consumes a matching unexpired reset grant and stores the new hash
// in a single statement, so a grant can only be used once.
func (r *UserRepository) CompleteReset(ctx context.Context, email, tokenHash, passwordHash string, now time.Time) (*models.User, error) {
	query := `
		UPDATE users
		SET password_hash = $3,
		    reset_token_hash = NULL,
		    reset_token_expires_at = NULL,
		    updated_at = $4
		WHERE email = $1
		  AND reset_token_hash = $2
		  AND reset_token_expires_at > $4
		RETURNING ` + userColumns

	executor := GetExecutor(ctx, r.db)
	user, err := scanUser(executor.QueryRowContext(ctx, query, models.NormalizeEmail(email), tokenHash, passwordHash, now))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("reset grant not found: %w", repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to complete reset: %w", err)
	}

	r.logger.Debug("password reset completed", zap.String("id", user.ID.String()))
	return user, nil
}

// Delete deletes a user
func (r *UserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM users WHERE id = $1`
	if err := r.exec(ctx, "delete user", query, id, id); err != nil {
		return err
	}

	r.logger.Debug("user deleted", zap.String("id", id.String()))
	return nil
}

func (r *UserRepository) exec(ctx context.Context, op, query string, id uuid.UUID, args ...interface{}) error {
	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	return expectOneRow(result, id)
}

func expectOneRow(result sql.Result, id uuid.UUID) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user %s: %w", id, repositories.ErrNotFound)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
