package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/campabbey/camp-api/middleware"
	"github.com/campabbey/camp-api/models"
	"github.com/campabbey/camp-api/repositories"
	"github.com/campabbey/camp-api/services/account"
	"github.com/campabbey/camp-api/services/identity"
	"github.com/campabbey/camp-api/services/token"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockAccountService is a mock implementation of AccountService and AdminService
type MockAccountService struct {
	mock.Mock
}

func (m *MockAccountService) Register(ctx context.Context, input account.RegisterInput) (*account.AuthResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.AuthResult), args.Error(1)
}

func (m *MockAccountService) Login(ctx context.Context, input account.LoginInput) (*account.AuthResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.AuthResult), args.Error(1)
}

func (m *MockAccountService) GetProfile(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockAccountService) UpdateProfile(ctx context.Context, id uuid.UUID, update account.ProfileUpdate) (*models.User, error) {
	args := m.Called(ctx, id, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockAccountService) ChangePassword(ctx context.Context, id uuid.UUID, input account.ChangePasswordInput) (*token.IssuedToken, error) {
	args := m.Called(ctx, id, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*token.IssuedToken), args.Error(1)
}

func (m *MockAccountService) RequestReset(ctx context.Context, input account.ResetRequestInput) error {
	return m.Called(ctx, input).Error(0)
}

func (m *MockAccountService) CompleteReset(ctx context.Context, input account.SetPasswordInput) error {
	return m.Called(ctx, input).Error(0)
}

func (m *MockAccountService) AssignPassword(ctx context.Context, actor *models.Principal, input account.AssignPasswordInput) error {
	return m.Called(ctx, actor, input).Error(0)
}

func (m *MockAccountService) ListUsers(ctx context.Context, filter repositories.UserFilter) ([]*models.User, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.User), args.Error(1)
}

func (m *MockAccountService) Deactivate(ctx context.Context, actor *models.Principal, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, actor, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockAccountService) Activate(ctx context.Context, actor *models.Principal, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, actor, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockAccountService) ChangeRole(ctx context.Context, actor *models.Principal, id uuid.UUID, role models.Role) (*models.User, error) {
	args := m.Called(ctx, actor, id, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockAccountService) Delete(ctx context.Context, actor *models.Principal, id uuid.UUID) error {
	return m.Called(ctx, actor, id).Error(0)
}

func (m *MockAccountService) RegisterExternal(ctx context.Context, input account.RegisterInput) (*account.ExternalRegistration, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.ExternalRegistration), args.Error(1)
}

func (m *MockAccountService) AssignExternalRole(ctx context.Context, actor *models.Principal, input account.AssignRoleInput) (*identity.RoleAssignment, error) {
	args := m.Called(ctx, actor, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.RoleAssignment), args.Error(1)
}

func (m *MockAccountService) LinkedAccount(ctx context.Context, externalID string) (*models.User, error) {
	args := m.Called(ctx, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

// MockIdentityProvider is a mock implementation of IdentityProvider
type MockIdentityProvider struct {
	mock.Mock
}

func (m *MockIdentityProvider) Verify(ctx context.Context, token string) (*models.Principal, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Principal), args.Error(1)
}

func (m *MockIdentityProvider) Claims(ctx context.Context, id string) (map[string]any, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]any), args.Error(1)
}

// newRequest builds a request with an optional JSON body and principal
func newRequest(t *testing.T, method, target string, body interface{}, principal *models.Principal) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if principal != nil {
		req = req.WithContext(middleware.WithPrincipal(req.Context(), principal))
	}
	return req
}
