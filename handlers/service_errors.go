package handlers

import (
	"net/http"

	"github.com/campabbey/camp-api/services"
	"github.com/campabbey/camp-api/utils"
	"go.uber.org/zap"
)

// HandleServiceError maps domain errors to HTTP responses
func HandleServiceError(w http.ResponseWriter, r *http.Request, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	status := services.HTTPStatus(err)
	code := services.GetErrorCode(err)
	message := services.GetErrorMessage(err)
	details := services.GetErrorDetails(err)

	if status >= http.StatusInternalServerError {
		// Log internal errors but return a generic message
		logger.Error("request failed",
			zap.String("request_id", requestID(r)),
			zap.String("code", code),
			zap.Error(err))
		if services.IsInternalError(err) || services.GetErrorType(err) == "" {
			code, message, details = services.CodeInternal, services.ErrInternal.Message, nil
		}
	} else {
		logger.Debug("handled service error",
			zap.String("request_id", requestID(r)),
			zap.String("code", code),
			zap.Any("details", details))
	}

	if err := utils.WriteError(w, status, code, message, details); err != nil {
		logger.Error("failed to write error response", zap.Error(err))
	}
}

// HandleValidationError handles validation errors from request parsing
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if utils.IsValidationError(err) {
		fields := utils.GetValidationFields(err)
		details := make(map[string]interface{}, len(fields))
		for k, v := range fields {
			details[k] = v
		}
		if err := utils.WriteBadRequest(w, services.CodeValidation, services.ErrValidation.Message, details); err != nil {
			logger.Error("failed to write validation error response", zap.Error(err))
		}
		return
	}

	// Malformed body
	if err := utils.WriteBadRequest(w, services.CodeValidation, err.Error(), nil); err != nil {
		logger.Error("failed to write validation error response", zap.Error(err))
	}
}
