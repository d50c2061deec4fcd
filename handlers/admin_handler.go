package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/campabbey/camp-api/models"
	"github.com/campabbey/camp-api/repositories"
	"github.com/campabbey/camp-api/services"
	"github.com/campabbey/camp-api/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// AdminService defines the account management operations behind /api/admin
type AdminService interface {
	ListUsers(ctx context.Context, filter repositories.UserFilter) ([]*models.User, error)
	Deactivate(ctx context.Context, actor *models.Principal, id uuid.UUID) (*models.User, error)
	Activate(ctx context.Context, actor *models.Principal, id uuid.UUID) (*models.User, error)
	ChangeRole(ctx context.Context, actor *models.Principal, id uuid.UUID, role models.Role) (*models.User, error)
	Delete(ctx context.Context, actor *models.Principal, id uuid.UUID) error
}

// ChangeRoleRequest is the body of PATCH /api/admin/users/{id}/role
type ChangeRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=parent staff admin superadmin"`
}

// AdminHandler handles account administration requests
type AdminHandler struct {
	accounts AdminService
	logger   *zap.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(accounts AdminService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		accounts: accounts,
		logger:   logger,
	}
}

// HandleListUsers handles GET /api/admin/users
func (h *AdminHandler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	filter, err := parseUserFilter(r)
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	users, err := h.accounts.ListUsers(r.Context(), filter)
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	h.logger.Debug("listed users",
		zap.String("request_id", requestID(r)),
		zap.Int("count", len(users)))

	_ = utils.WriteOK(w, users)
}

// HandleDeactivate handles PATCH /api/admin/users/{id}/deactivate
func (h *AdminHandler) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	h.updateStatus(w, r, h.accounts.Deactivate)
}

// HandleActivate handles PATCH /api/admin/users/{id}/activate
func (h *AdminHandler) HandleActivate(w http.ResponseWriter, r *http.Request) {
	h.updateStatus(w, r, h.accounts.Activate)
}

func (h *AdminHandler) updateStatus(w http.ResponseWriter, r *http.Request, op func(context.Context, *models.Principal, uuid.UUID) (*models.User, error)) {
	actor, ok := currentPrincipal(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id", h.logger)
	if !ok {
		return
	}

	user, err := op(r.Context(), actor, id)
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, user)
}

// HandleChangeRole handles PATCH /api/admin/users/{id}/role
func (h *AdminHandler) HandleChangeRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentPrincipal(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id", h.logger)
	if !ok {
		return
	}

	var req ChangeRoleRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}
	role, err := models.ParseRole(req.Role)
	if err != nil {
		HandleServiceError(w, r, services.ErrValidation.WithDetail("role", err.Error()), h.logger)
		return
	}

	user, err := h.accounts.ChangeRole(r.Context(), actor, id, role)
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, user)
}

// HandleDeleteUser handles DELETE /api/admin/users/{id}
func (h *AdminHandler) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentPrincipal(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id", h.logger)
	if !ok {
		return
	}

	if err := h.accounts.Delete(r.Context(), actor, id); err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	utils.WriteNoContent(w)
}

func parseUserFilter(r *http.Request) (repositories.UserFilter, error) {
	query := r.URL.Query()
	filter := repositories.UserFilter{Limit: defaultListLimit}

	if v := query.Get("role"); v != "" {
		role, err := models.ParseRole(v)
		if err != nil {
			return filter, services.ErrValidation.WithDetail("role", "must be one of parent, staff, admin, superadmin")
		}
		filter.Role = &role
	}
	if v := query.Get("deactivated"); v != "" {
		deactivated, err := strconv.ParseBool(v)
		if err != nil {
			return filter, services.ErrValidation.WithDetail("deactivated", "must be true or false")
		}
		filter.Deactivated = &deactivated
	}
	if v := query.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			return filter, services.ErrValidation.WithDetail("limit", "must be a positive integer")
		}
		filter.Limit = min(limit, maxListLimit)
	}
	if v := query.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			return filter, services.ErrValidation.WithDetail("offset", "must not be negative")
		}
		filter.Offset = offset
	}
	return filter, nil
}
