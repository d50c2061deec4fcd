package account

import (
	"context"
	"sync"
	"time"

	"github.com/campabbey/camp-api/models"
	"github.com/campabbey/camp-api/repositories"
	"github.com/campabbey/camp-api/services/identity"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockUserRepository is a mock implementation of UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if user := args.Get(0); user != nil {
		return user.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if user := args.Get(0); user != nil {
		return user.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserRepository) GetByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	args := m.Called(ctx, externalID)
	if user := args.Get(0); user != nil {
		return user.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserRepository) List(ctx context.Context, filter repositories.UserFilter) ([]*models.User, error) {
	args := m.Called(ctx, filter)
	if users := args.Get(0); users != nil {
		return users.([]*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserRepository) Update(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	args := m.Called(ctx, id, passwordHash)
	return args.Error(0)
}

func (m *MockUserRepository) SetRole(ctx context.Context, id uuid.UUID, role models.Role) error {
	args := m.Called(ctx, id, role)
	return args.Error(0)
}

func (m *MockUserRepository) SetDeactivated(ctx context.Context, id uuid.UUID, deactivated bool) error {
	args := m.Called(ctx, id, deactivated)
	return args.Error(0)
}

func (m *MockUserRepository) SetResetToken(ctx context.Context, email, tokenHash string, expiresAt time.Time) error {
	args := m.Called(ctx, email, tokenHash, expiresAt)
	return args.Error(0)
}

func (m *MockUserRepository) CompleteReset(ctx context.Context, email, tokenHash, passwordHash string, now time.Time) (*models.User, error) {
	args := m.Called(ctx, email, tokenHash, passwordHash, now)
	if user := args.Get(0); user != nil {
		return user.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}


// MockAuditRepository is a mock implementation of AuditRepository
type MockAuditRepository struct {
	mock.Mock
}

func (m *MockAuditRepository) Insert(ctx context.Context, log *models.AuditLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func (m *MockAuditRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.AuditLog, error) {
	args := m.Called(ctx, id)
	return nil, args.Error(1)
}

func (m *MockAuditRepository) List(ctx context.Context, filter repositories.AuditFilter) ([]*models.AuditLog, error) {
	args := m.Called(ctx, filter)
	return nil, args.Error(1)
}

func (m *MockAuditRepository) GetByRequestID(ctx context.Context, requestID string) ([]*models.AuditLog, error) {
	args := m.Called(ctx, requestID)
	return nil, args.Error(1)
}


// MockIdentities is a mock implementation of ExternalIdentities
type MockIdentities struct {
	mock.Mock
}

func (m *MockIdentities) CreateWithRole(ctx context.Context, email, secret string, role models.Role, displayName string) (*identity.ExternalIdentity, error) {
	args := m.Called(ctx, email, secret, role, displayName)
	if ext := args.Get(0); ext != nil {
		return ext.(*identity.ExternalIdentity), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockIdentities) AssignRole(ctx context.Context, targetID string, role models.Role, actor *models.Principal) (*identity.RoleAssignment, error) {
	args := m.Called(ctx, targetID, role, actor)
	if a := args.Get(0); a != nil {
		return a.(*identity.RoleAssignment), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockIdentities) EnsureRole(ctx context.Context, id string, role models.Role) error {
	args := m.Called(ctx, id, role)
	return args.Error(0)
}

func (m *MockIdentities) RevokeSessions(ctx context.Context, id string) (time.Time, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(time.Time), args.Error(1)
}

func (m *MockIdentities) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// fakeTx records how a transaction ended
type fakeTx struct {
	ctx        context.Context
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit() error            { t.committed = true; return nil }
func (t *fakeTx) Rollback() error          { t.rolledBack = true; return nil }
func (t *fakeTx) Context() context.Context { return t.ctx }

type fakeTxManager struct {
	last *fakeTx
}

func (m *fakeTxManager) Begin(ctx context.Context) (repositories.Transaction, error) {
	m.last = &fakeTx{ctx: ctx}
	return m.last, nil
}

func (m *fakeTxManager) InTransaction(ctx context.Context, fn func(ctx context.Context, tx repositories.Transaction) error) error {
	tx, _ := m.Begin(ctx)
	if err := fn(tx.Context(), tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

type recordedEvent struct {
	Action    models.AuditAction
	ActorID   string
	SubjectID string
}

// recordingAudit captures audit events in memory
type recordingAudit struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recordingAudit) Record(_ context.Context, action models.AuditAction, actorID, subjectID string, _ interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{Action: action, ActorID: actorID, SubjectID: subjectID})
}

func (r *recordingAudit) actions() []models.AuditAction {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.AuditAction, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Action)
	}
	return out
}

// capturingNotifier keeps the last reset token it was asked to deliver
type capturingNotifier struct {
	user      *models.User
	token     string
	expiresAt time.Time
}

func (n *capturingNotifier) NotifyReset(_ context.Context, user *models.User, token string, expiresAt time.Time) error {
	n.user = user
	n.token = token
	n.expiresAt = expiresAt
	return nil
}
