package routes

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/campabbey/camp-api/models"
	"github.com/campabbey/camp-api/repositories"
	"github.com/google/uuid"
)

// memUsers is an in-memory UserRepository for router tests
type memUsers struct {
	mu    sync.Mutex
	users map[uuid.UUID]models.User
}

func newMemUsers() *memUsers {
	return &memUsers{users: make(map[uuid.UUID]models.User)}
}

func (m *memUsers) Create(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return repositories.ErrDuplicate
		}
	}
	m.users[user.ID] = *user
	return nil
}

func (m *memUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &u, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == models.NormalizeEmail(email) {
			return &u, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (m *memUsers) GetByExternalID(_ context.Context, externalID string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ExternalID != nil && *u.ExternalID == externalID {
			return &u, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (m *memUsers) List(_ context.Context, filter repositories.UserFilter) ([]*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.User, 0, len(m.users))
	for _, u := range m.users {
		if filter.Role != nil && u.Role != *filter.Role {
			continue
		}
		if filter.Deactivated != nil && u.Deactivated != *filter.Deactivated {
			continue
		}
		u := u
		out = append(out, &u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memUsers) Update(_ context.Context, user *models.User) error {
	return m.mutate(user.ID, func(u *models.User) {
		u.Email = user.Email
		u.FirstName = user.FirstName
		u.LastName = user.LastName
		u.Phone = user.Phone
		u.AvatarURL = user.AvatarURL
	})
}

func (m *memUsers) UpdatePassword(_ context.Context, id uuid.UUID, passwordHash string) error {
	return m.mutate(id, func(u *models.User) {
		u.PasswordHash = passwordHash
		u.ResetTokenHash = nil
		u.ResetTokenExpiresAt = nil
	})
}

func (m *memUsers) SetRole(_ context.Context, id uuid.UUID, role models.Role) error {
	return m.mutate(id, func(u *models.User) { u.Role = role })
}

func (m *memUsers) SetDeactivated(_ context.Context, id uuid.UUID, deactivated bool) error {
	return m.mutate(id, func(u *models.User) { u.Deactivated = deactivated })
}

func (m *memUsers) SetResetToken(ctx context.Context, email, tokenHash string, expiresAt time.Time) error {
	user, err := m.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	return m.mutate(user.ID, func(u *models.User) {
		u.ResetTokenHash = &tokenHash
		u.ResetTokenExpiresAt = &expiresAt
	})
}

func (m *memUsers) CompleteReset(_ context.Context, email, tokenHash, passwordHash string, now time.Time) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, u := range m.users {
		if u.Email != models.NormalizeEmail(email) {
			continue
		}
		if u.ResetTokenHash == nil || *u.ResetTokenHash != tokenHash || !u.ResetTokenExpiresAt.After(now) {
			return nil, repositories.ErrNotFound
		}
		u.PasswordHash = passwordHash
		u.ResetTokenHash = nil
		u.ResetTokenExpiresAt = nil
		m.users[id] = u
		return &u, nil
	}
	return nil, repositories.ErrNotFound
}

func (m *memUsers) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *memUsers) mutate(id uuid.UUID, fn func(u *models.User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return repositories.ErrNotFound
	}
	fn(&u)
	u.UpdatedAt = time.Now().UTC()
	m.users[id] = u
	return nil
}

// memAudit is an in-memory AuditRepository
type memAudit struct {
	mu   sync.Mutex
	logs []*models.AuditLog
}

func (m *memAudit) Insert(_ context.Context, log *models.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, log)
	return nil
}

func (m *memAudit) GetByID(_ context.Context, id uuid.UUID) (*models.AuditLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.logs {
		if l.ID == id {
			return l, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (m *memAudit) List(_ context.Context, _ repositories.AuditFilter) ([]*models.AuditLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.AuditLog(nil), m.logs...), nil
}

func (m *memAudit) GetByRequestID(_ context.Context, requestID string) ([]*models.AuditLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.AuditLog
	for _, l := range m.logs {
		if l.RequestID == requestID {
			out = append(out, l)
		}
	}
	return out, nil
}

// memTx runs transaction bodies directly
type memTx struct{ ctx context.Context }

func (t memTx) Commit() error            { return nil }
func (t memTx) Rollback() error          { return nil }
func (t memTx) Context() context.Context { return t.ctx }

type memTxManager struct{}

func (memTxManager) Begin(ctx context.Context) (repositories.Transaction, error) {
	return memTx{ctx: ctx}, nil
}

func (memTxManager) InTransaction(ctx context.Context, fn func(ctx context.Context, tx repositories.Transaction) error) error {
	return fn(ctx, memTx{ctx: ctx})
}
