package services

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeNotFound       ErrorType = "not_found"
	ErrorTypeValidation     ErrorType = "validation"
	ErrorTypeUnauthorized   ErrorType = "unauthorized"
	ErrorTypeForbidden      ErrorType = "forbidden"
	ErrorTypeRateLimit      ErrorType = "rate_limit"
	ErrorTypeInternal       ErrorType = "internal"
	ErrorTypeProviderConfig ErrorType = "provider_config"
)

// Stable error codes returned to clients
const (
	CodeMissingCredential        = "missing_or_malformed_credential"
	CodeMalformedToken           = "malformed_token"
	CodeBadSignature             = "bad_signature"
	CodeExpired                  = "expired"
	CodeTokenRevoked             = "token_revoked"
	CodePrincipalNotFound        = "principal_not_found"
	CodeAccountDeactivated       = "account_deactivated"
	CodeExternalTokenExpired     = "external_token_expired"
	CodeExternalTokenInvalid     = "external_token_invalid"
	CodeInsufficientRole         = "insufficient_role"
	CodeEscalationDenied         = "escalation_denied"
	CodeInvalidCredentials       = "invalid_credentials"
	CodeDuplicateAccount         = "duplicate_account"
	CodeValidation               = "validation_error"
	CodeInvalidResetToken        = "invalid_reset_token"
	CodeCurrentPasswordIncorrect = "current_password_incorrect"
	CodeNotFound                 = "not_found"
	CodeRateLimited              = "rate_limited"
	CodeProviderConfig           = "provider_config_error"
	CodeInternal                 = "internal_error"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Code    string
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches on type, and on code when the target carries one
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	if e.Type != t.Type {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

// Wrap returns a copy of the error carrying cause as its wrapped error
func (e *DomainError) Wrap(cause error) *DomainError {
	c := e.clone()
	c.Err = cause
	return c
}

// WithMessage returns a copy of the error with a different client message
func (e *DomainError) WithMessage(message string) *DomainError {
	c := e.clone()
	c.Message = message
	return c
}

// WithDetail returns a copy of the error with an extra detail entry
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	c := e.clone()
	c.Details[key] = value
	return c
}

func (e *DomainError) clone() *DomainError {
	details := make(map[string]interface{}, len(e.Details))
	for k, v := range e.Details {
		details[k] = v
	}
	return &DomainError{
		Type:    e.Type,
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: details,
	}
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, code, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Code:    code,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Domain error variables

var (
	// Credential and token errors
	ErrMissingCredential    = NewDomainError(ErrorTypeUnauthorized, CodeMissingCredential, "missing or malformed authorization header", nil)
	ErrMalformedToken       = NewDomainError(ErrorTypeUnauthorized, CodeMalformedToken, "malformed token", nil)
	ErrBadSignature         = NewDomainError(ErrorTypeUnauthorized, CodeBadSignature, "token signature is invalid", nil)
	ErrTokenExpired         = NewDomainError(ErrorTypeUnauthorized, CodeExpired, "token has expired", nil)
	ErrTokenRevoked         = NewDomainError(ErrorTypeUnauthorized, CodeTokenRevoked, "token has been revoked", nil)
	ErrPrincipalNotFound    = NewDomainError(ErrorTypeUnauthorized, CodePrincipalNotFound, "account no longer exists", nil)
	ErrAccountDeactivated   = NewDomainError(ErrorTypeUnauthorized, CodeAccountDeactivated, "account is deactivated", nil)
	ErrExternalTokenExpired = NewDomainError(ErrorTypeUnauthorized, CodeExternalTokenExpired, "identity token has expired", nil)
	ErrExternalTokenInvalid = NewDomainError(ErrorTypeUnauthorized, CodeExternalTokenInvalid, "identity token is invalid", nil)

	// Permission errors
	ErrInsufficientRole = NewDomainError(ErrorTypeForbidden, CodeInsufficientRole, "insufficient role for this resource", nil)
	ErrEscalationDenied = NewDomainError(ErrorTypeForbidden, CodeEscalationDenied, "only a superadmin can grant the superadmin role", nil)

	// Validation errors
	ErrInvalidCredentials       = NewDomainError(ErrorTypeValidation, CodeInvalidCredentials, "invalid email or password", nil)
	ErrDuplicateAccount         = NewDomainError(ErrorTypeValidation, CodeDuplicateAccount, "an account with this email already exists", nil)
	ErrValidation               = NewDomainError(ErrorTypeValidation, CodeValidation, "validation failed", nil)
	ErrInvalidResetToken        = NewDomainError(ErrorTypeValidation, CodeInvalidResetToken, "reset token is invalid or has expired", nil)
	ErrCurrentPasswordIncorrect = NewDomainError(ErrorTypeValidation, CodeCurrentPasswordIncorrect, "current password is incorrect", nil)

	// Not found
	ErrUserNotFound = NewDomainError(ErrorTypeNotFound, CodeNotFound, "user not found", nil)

	// Rate limiting
	ErrRateLimited = NewDomainError(ErrorTypeRateLimit, CodeRateLimited, "too many requests, please try again later", nil)

	// Provider and internal errors
	ErrProviderConfig = NewDomainError(ErrorTypeProviderConfig, CodeProviderConfig, "identity provider is not available", nil)
	ErrInternal       = NewDomainError(ErrorTypeInternal, CodeInternal, "internal server error", nil)
)

// Error type checking helper functions

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	return GetErrorType(err) == ErrorTypeNotFound
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return GetErrorType(err) == ErrorTypeValidation
}

// IsUnauthorizedError checks if an error is an unauthorized error
func IsUnauthorizedError(err error) bool {
	return GetErrorType(err) == ErrorTypeUnauthorized
}

// IsForbiddenError checks if an error is a forbidden error
func IsForbiddenError(err error) bool {
	return GetErrorType(err) == ErrorTypeForbidden
}

// IsRateLimitError checks if an error is a rate limit error
func IsRateLimitError(err error) bool {
	return GetErrorType(err) == ErrorTypeRateLimit
}

// IsProviderConfigError checks if an error comes from a misconfigured or unreachable identity provider
func IsProviderConfigError(err error) bool {
	return GetErrorType(err) == ErrorTypeProviderConfig
}

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool {
	return GetErrorType(err) == ErrorTypeInternal
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorCode returns the client-facing code of a domain error, or internal_error
func GetErrorCode(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return CodeInternal
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		if len(domainErr.Details) == 0 {
			return nil
		}
		return domainErr.Details
	}
	return nil
}

// GetErrorMessage returns the client-facing message of a domain error
func GetErrorMessage(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	return ErrInternal.Message
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, CodeInternal, message, err)
}

// WrapProviderConfig wraps an identity provider failure
func WrapProviderConfig(err error) error {
	return ErrProviderConfig.Wrap(err)
}

// HTTPStatus maps an error to the status code returned to clients.
// Errors outside the taxonomy are internal.
func HTTPStatus(err error) int {
	switch GetErrorType(err) {
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeUnauthorized:
		return http.StatusUnauthorized
	case ErrorTypeForbidden:
		return http.StatusForbidden
	case ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
