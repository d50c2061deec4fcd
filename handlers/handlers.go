// Package handlers implements the HTTP surface of the camp API. Handlers stay
// thin: they decode and validate input, call a service and map its errors.
package handlers

import (
	"net/http"

	"github.com/campabbey/camp-api/middleware"
	"github.com/campabbey/camp-api/models"
	"github.com/campabbey/camp-api/services"
	"github.com/campabbey/camp-api/utils"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// decodeRequest decodes and validates a JSON body, writing the 400 response
// itself when either step fails.
func decodeRequest(w http.ResponseWriter, r *http.Request, dst interface{}, logger *zap.Logger) bool {
	if err := utils.DecodeJSON(w, r, dst); err != nil {
		logger.Debug("failed to parse request body",
			zap.String("request_id", requestID(r)),
			zap.Error(err))
		HandleValidationError(w, err, logger)
		return false
	}

	if err := utils.ValidateStruct(dst); err != nil {
		logger.Debug("request validation failed",
			zap.String("request_id", requestID(r)),
			zap.Error(err))
		HandleValidationError(w, err, logger)
		return false
	}
	return true
}

// currentPrincipal returns the authenticated principal, writing a 401 when
// the route was mounted without authentication.
func currentPrincipal(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (*models.Principal, bool) {
	principal := middleware.PrincipalFromContext(r.Context())
	if principal == nil {
		HandleServiceError(w, r, services.ErrMissingCredential, logger)
		return nil, false
	}
	return principal, true
}

// localUserID returns the account id of a local principal
func localUserID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, *models.Principal, bool) {
	principal, ok := currentPrincipal(w, r, logger)
	if !ok {
		return uuid.Nil, nil, false
	}
	id, err := uuid.Parse(principal.ID)
	if err != nil {
		HandleServiceError(w, r, services.ErrPrincipalNotFound, logger)
		return uuid.Nil, nil, false
	}
	return id, principal, true
}

// pathUUID parses a UUID route parameter
func pathUUID(w http.ResponseWriter, r *http.Request, name string, logger *zap.Logger) (uuid.UUID, bool) {
	id, err := utils.ParseUUID(chi.URLParam(r, name))
	if err != nil {
		HandleServiceError(w, r, services.ErrValidation.WithDetail(name, "must be a valid UUID"), logger)
		return uuid.Nil, false
	}
	return id, true
}

func requestID(r *http.Request) string {
	return middleware.GetRequestIDFromContext(r.Context())
}
