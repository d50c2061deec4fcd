package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/campabbey/camp-api/models"
	"github.com/campabbey/camp-api/repositories"
	"github.com/campabbey/camp-api/services"
	"github.com/campabbey/camp-api/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Authentication schemes, one per route family
const (
	SchemeLocal    = "local"
	SchemeExternal = "external"
)

// Decision outcomes reported to metrics
const (
	outcomeAuthenticated = "authenticated"
	outcomeActive        = "active"
	outcomeAuthorized    = "authorized"
	outcomeRejected      = "rejected"
)

// IdentityVerifier resolves a bearer credential to a principal
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (*models.Principal, error)
}

// PrincipalLookup fetches the credential record behind a principal
type PrincipalLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByExternalID(ctx context.Context, externalID string) (*models.User, error)
}

// DecisionRecorder counts middleware decisions
type DecisionRecorder interface {
	RecordAuthDecision(scheme, outcome, code string)
}

// AuthMiddleware authenticates and authorizes requests of one route family
type AuthMiddleware struct {
	scheme   string
	verifier IdentityVerifier
	lookup   PrincipalLookup
	metrics  DecisionRecorder
	logger   *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware. lookup is only needed for
// RequireActiveAccount and metrics may be nil.
func NewAuthMiddleware(scheme string, verifier IdentityVerifier, lookup PrincipalLookup, metrics DecisionRecorder, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		scheme:   scheme,
		verifier: verifier,
		lookup:   lookup,
		metrics:  metrics,
		logger:   logger,
	}
}

// Scheme returns the authentication scheme of this middleware
func (m *AuthMiddleware) Scheme() string {
	return m.scheme
}

// RequireAuth is a middleware that requires a valid bearer token
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		token := extractBearerToken(r)
		if token == "" {
			m.reject(w, r, "no_credential", "", services.ErrMissingCredential)
			return
		}

		principal, err := m.verifier.Verify(ctx, token)
		if err != nil {
			m.reject(w, r, "credential_extracted", "", err)
			return
		}

		m.allow(r, "principal_resolved", outcomeAuthenticated, principal)
		next.ServeHTTP(w, r.WithContext(WithPrincipal(ctx, principal)))
	})
}

// RequireActiveAccount re-checks the credential record of the principal. It
// must run after RequireAuth. Missing records and deactivated accounts are
// rejected; a local principal's role and email are refreshed from the record.
func (m *AuthMiddleware) RequireActiveAccount(next http.Handler) http.Handler {
	return m.activeAccount(next, false)
}

// RequireActiveLink is RequireActiveAccount for provider principals that may
// have no local record. Unlinked principals pass; linked ones must be active.
func (m *AuthMiddleware) RequireActiveLink(next http.Handler) http.Handler {
	return m.activeAccount(next, true)
}

func (m *AuthMiddleware) activeAccount(next http.Handler, allowUnlinked bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		principal := PrincipalFromContext(ctx)
		if principal == nil {
			m.reject(w, r, "no_credential", "", services.ErrMissingCredential)
			return
		}

		user, err := m.lookupRecord(ctx, principal)
		if err != nil {
			if allowUnlinked && principal.Source == models.PrincipalSourceExternal && errors.Is(err, services.ErrPrincipalNotFound) {
				next.ServeHTTP(w, r)
				return
			}
			m.reject(w, r, "principal_resolved", principal.ID, err)
			return
		}
		if user.Deactivated {
			m.reject(w, r, "principal_resolved", principal.ID, services.ErrAccountDeactivated)
			return
		}

		refreshed := *principal
		if principal.Source == models.PrincipalSourceLocal {
			refreshed.Role = user.Role
			refreshed.Email = user.Email
		} else if refreshed.Email == "" {
			refreshed.Email = user.Email
		}

		m.allow(r, "principal_resolved", outcomeActive, &refreshed)
		next.ServeHTTP(w, r.WithContext(WithPrincipal(ctx, &refreshed)))
	})
}

func (m *AuthMiddleware) lookupRecord(ctx context.Context, principal *models.Principal) (*models.User, error) {
	if m.lookup == nil {
		return nil, services.WrapInternal("principal lookup is not configured", nil)
	}

	var (
		user *models.User
		err  error
	)
	if principal.Source == models.PrincipalSourceExternal {
		user, err = m.lookup.GetByExternalID(ctx, principal.ID)
	} else {
		id, parseErr := uuid.Parse(principal.ID)
		if parseErr != nil {
			return nil, services.ErrPrincipalNotFound
		}
		user, err = m.lookup.GetByID(ctx, id)
	}
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrPrincipalNotFound
		}
		return nil, services.WrapInternal("failed to load principal", err)
	}
	return user, nil
}

func (m *AuthMiddleware) allow(r *http.Request, state, outcome string, principal *models.Principal) {
	m.logger.Debug("auth decision",
		zap.String("request_id", GetRequestIDFromContext(r.Context())),
		zap.String("scheme", m.scheme),
		zap.String("state", state),
		zap.String("subject", principal.ID),
		zap.String("role", string(principal.Role)),
		zap.String("outcome", outcome))
	if m.metrics != nil {
		m.metrics.RecordAuthDecision(m.scheme, outcome, "")
	}
}

// reject writes the error response for a failed transition. The raw
// credential is never logged.
func (m *AuthMiddleware) reject(w http.ResponseWriter, r *http.Request, state, subject string, err error) {
	code := services.GetErrorCode(err)
	status := services.HTTPStatus(err)
	fields := []zap.Field{
		zap.String("request_id", GetRequestIDFromContext(r.Context())),
		zap.String("scheme", m.scheme),
		zap.String("state", state),
		zap.String("subject", subject),
		zap.String("outcome", outcomeRejected),
		zap.String("code", code),
		zap.String("path", r.URL.Path),
	}
	if status >= http.StatusInternalServerError {
		m.logger.Error("auth decision", append(fields, zap.Error(err))...)
	} else {
		m.logger.Info("auth decision", fields...)
	}
	if m.metrics != nil {
		m.metrics.RecordAuthDecision(m.scheme, outcomeRejected, code)
	}

	message := services.GetErrorMessage(err)
	details := services.GetErrorDetails(err)
	if services.IsInternalError(err) {
		message, details = services.ErrInternal.Message, nil
	}
	if writeErr := utils.WriteError(w, status, code, message, details); writeErr != nil {
		m.logger.Error("failed to write auth error response", zap.Error(writeErr))
	}
}

// extractBearerToken extracts the Bearer token from the Authorization header.
// The scheme is matched case-insensitively.
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
