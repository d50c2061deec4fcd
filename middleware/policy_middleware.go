package middleware

import (
	"net/http"

	"github.com/campabbey/camp-api/models"
	"github.com/campabbey/camp-api/services"
	"github.com/campabbey/camp-api/services/policy"
)

// Require is a middleware that authorizes the principal against a role
// requirement. It must run after RequireAuth.
func (m *AuthMiddleware) Require(req policy.Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := PrincipalFromContext(r.Context())
			if principal == nil {
				m.reject(w, r, "no_credential", "", services.ErrMissingCredential)
				return
			}

			if !policy.Authorize(principal, req) {
				m.reject(w, r, "principal_resolved", principal.ID,
					services.ErrInsufficientRole.WithDetail("required", req.String()))
				return
			}

			m.allow(r, "authorized", outcomeAuthorized, principal)
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole requires the principal's role to be one of roles exactly
func (m *AuthMiddleware) RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return m.Require(policy.AllowRoles(roles...))
}

// RequireMinimumRole requires the principal's role to rank at or above role
func (m *AuthMiddleware) RequireMinimumRole(role models.Role) func(http.Handler) http.Handler {
	return m.Require(policy.MinimumRole(role))
}
