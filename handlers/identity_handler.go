package handlers

import (
	"context"
	"net/http"

	"github.com/campabbey/camp-api/models"
	"github.com/campabbey/camp-api/services"
	"github.com/campabbey/camp-api/services/account"
	"github.com/campabbey/camp-api/services/identity"
	"github.com/campabbey/camp-api/services/policy"
	"github.com/campabbey/camp-api/utils"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ExternalAccountService defines the account operations behind /api/identity
type ExternalAccountService interface {
	RegisterExternal(ctx context.Context, input account.RegisterInput) (*account.ExternalRegistration, error)
	AssignExternalRole(ctx context.Context, actor *models.Principal, input account.AssignRoleInput) (*identity.RoleAssignment, error)
	LinkedAccount(ctx context.Context, externalID string) (*models.User, error)
}

// IdentityProvider verifies provider tokens and reads provider claims
type IdentityProvider interface {
	Verify(ctx context.Context, token string) (*models.Principal, error)
	Claims(ctx context.Context, id string) (map[string]any, error)
}

// VerifyTokenRequest is the body of POST /api/identity/verify-token
type VerifyTokenRequest struct {
	IDToken string `json:"idToken" validate:"required"`
}

// VerifyTokenResponse reports the identity behind a valid provider token
type VerifyTokenResponse struct {
	Valid bool        `json:"valid"`
	UID   string      `json:"uid"`
	Email string      `json:"email,omitempty"`
	Role  models.Role `json:"role"`
}

// ClaimsResponse holds the provider-side claims of an identity
type ClaimsResponse struct {
	UID    string         `json:"uid"`
	Claims map[string]any `json:"claims"`
}

// ProfileResponse pairs the provider principal with its linked local record
type ProfileResponse struct {
	Principal *models.Principal `json:"principal"`
	Account   *models.User      `json:"account"`
}

// IdentityHandler handles the external identity routes
type IdentityHandler struct {
	accounts ExternalAccountService
	provider IdentityProvider
	logger   *zap.Logger
}

// NewIdentityHandler creates a new IdentityHandler
func NewIdentityHandler(accounts ExternalAccountService, provider IdentityProvider, logger *zap.Logger) *IdentityHandler {
	return &IdentityHandler{
		accounts: accounts,
		provider: provider,
		logger:   logger,
	}
}

// HandleRegister handles POST /api/identity/register
func (h *IdentityHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req account.RegisterInput
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	registration, err := h.accounts.RegisterExternal(r.Context(), req)
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	_ = utils.WriteCreated(w, registration)
}

// HandleAssignRole handles POST /api/identity/assign-role
func (h *IdentityHandler) HandleAssignRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentPrincipal(w, r, h.logger)
	if !ok {
		return
	}

	var req account.AssignRoleInput
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	assignment, err := h.accounts.AssignExternalRole(r.Context(), actor, req)
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, assignment)
}

// HandleClaims handles GET /api/identity/claims/{id}. Callers may read their
// own claims; admins may read anyone's.
func (h *IdentityHandler) HandleClaims(w http.ResponseWriter, r *http.Request) {
	principal, ok := currentPrincipal(w, r, h.logger)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if id != principal.ID && !policy.AtLeast(principal.Role, models.RoleAdmin) {
		HandleServiceError(w, r, services.ErrInsufficientRole.WithDetail("required", policy.MinimumRole(models.RoleAdmin).String()), h.logger)
		return
	}

	claims, err := h.provider.Claims(r.Context(), id)
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, ClaimsResponse{UID: id, Claims: claims})
}

// HandleProfile handles GET /api/identity/profile
func (h *IdentityHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	principal, ok := currentPrincipal(w, r, h.logger)
	if !ok {
		return
	}

	linked, err := h.accounts.LinkedAccount(r.Context(), principal.ID)
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, ProfileResponse{Principal: principal, Account: linked})
}

// HandleVerifyToken handles POST /api/identity/verify-token
func (h *IdentityHandler) HandleVerifyToken(w http.ResponseWriter, r *http.Request) {
	var req VerifyTokenRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	principal, err := h.provider.Verify(r.Context(), req.IDToken)
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, VerifyTokenResponse{
		Valid: true,
		UID:   principal.ID,
		Email: principal.Email,
		Role:  principal.Role,
	})
}
