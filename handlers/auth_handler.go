package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/campabbey/camp-api/models"
	"github.com/campabbey/camp-api/services/account"
	"github.com/campabbey/camp-api/services/token"
	"github.com/campabbey/camp-api/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AccountService defines the account operations behind /api/auth
type AccountService interface {
	Register(ctx context.Context, input account.RegisterInput) (*account.AuthResult, error)
	Login(ctx context.Context, input account.LoginInput) (*account.AuthResult, error)
	GetProfile(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, update account.ProfileUpdate) (*models.User, error)
	ChangePassword(ctx context.Context, id uuid.UUID, input account.ChangePasswordInput) (*token.IssuedToken, error)
	RequestReset(ctx context.Context, input account.ResetRequestInput) error
	CompleteReset(ctx context.Context, input account.SetPasswordInput) error
	AssignPassword(ctx context.Context, actor *models.Principal, input account.AssignPasswordInput) error
}

// TokenResponse carries a freshly issued local token
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// resetRequestedMessage is returned whether or not the email is known
const resetRequestedMessage = "If an account exists for that email, a password reset link has been sent"

// AuthHandler handles the local token routes
type AuthHandler struct {
	accounts AccountService
	logger   *zap.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(accounts AccountService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		accounts: accounts,
		logger:   logger,
	}
}

// HandleRegister handles POST /api/auth/register
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req account.RegisterInput
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	result, err := h.accounts.Register(r.Context(), req)
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	_ = utils.WriteCreated(w, result)
}

// HandleLogin handles POST /api/auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req account.LoginInput
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	result, err := h.accounts.Login(r.Context(), req)
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, result)
}

// HandleGetProfile handles GET /api/auth/me
func (h *AuthHandler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	id, _, ok := localUserID(w, r, h.logger)
	if !ok {
		return
	}

	user, err := h.accounts.GetProfile(r.Context(), id)
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, user)
}

// HandleUpdateProfile handles PUT /api/auth/me
func (h *AuthHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	id, _, ok := localUserID(w, r, h.logger)
	if !ok {
		return
	}

	var req account.ProfileUpdate
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	user, err := h.accounts.UpdateProfile(r.Context(), id, req)
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, user)
}

// HandleChangePassword handles POST /api/auth/change-password
func (h *AuthHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	id, _, ok := localUserID(w, r, h.logger)
	if !ok {
		return
	}

	var req account.ChangePasswordInput
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	issued, err := h.accounts.ChangePassword(r.Context(), id, req)
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, TokenResponse{Token: issued.Token, ExpiresAt: issued.ExpiresAt})
}

// HandleRequestReset handles POST /api/auth/request-password-reset.
// The response does not reveal whether the email is registered.
func (h *AuthHandler) HandleRequestReset(w http.ResponseWriter, r *http.Request) {
	var req account.ResetRequestInput
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	if err := h.accounts.RequestReset(r.Context(), req); err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	_ = utils.WriteMessage(w, resetRequestedMessage)
}

// HandleSetPassword handles POST /api/auth/set-password
func (h *AuthHandler) HandleSetPassword(w http.ResponseWriter, r *http.Request) {
	var req account.SetPasswordInput
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	if err := h.accounts.CompleteReset(r.Context(), req); err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	_ = utils.WriteMessage(w, "Password has been reset")
}

// HandleAssignPassword handles POST /api/auth/assign-password
func (h *AuthHandler) HandleAssignPassword(w http.ResponseWriter, r *http.Request) {
	principal, ok := currentPrincipal(w, r, h.logger)
	if !ok {
		return
	}

	var req account.AssignPasswordInput
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	if err := h.accounts.AssignPassword(r.Context(), principal, req); err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	_ = utils.WriteMessage(w, "Password assigned")
}
