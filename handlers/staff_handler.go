package handlers

import (
	"net/http"

	"github.com/campabbey/camp-api/utils"
	"go.uber.org/zap"
)

// StaffHandler handles the staff portal routes
type StaffHandler struct {
	logger *zap.Logger
}

// NewStaffHandler creates a new StaffHandler
func NewStaffHandler(logger *zap.Logger) *StaffHandler {
	return &StaffHandler{logger: logger}
}

// HandleMe handles GET /api/staff/me and returns the resolved principal
func (h *StaffHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	principal, ok := currentPrincipal(w, r, h.logger)
	if !ok {
		return
	}
	_ = utils.WriteOK(w, principal)
}
