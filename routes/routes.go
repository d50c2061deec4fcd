package routes

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/campabbey/camp-api/app"
	"github.com/campabbey/camp-api/config"
	"github.com/campabbey/camp-api/handlers"
	"github.com/campabbey/camp-api/middleware"
	"github.com/campabbey/camp-api/models"
	"github.com/campabbey/camp-api/services/policy"
	"github.com/campabbey/camp-api/utils"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"
	"go.uber.org/zap"
)

// requestTimeout bounds the handling time of every request
const requestTimeout = 60 * time.Second

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	cfg := deps.Config
	logger := deps.Logger

	r := chi.NewRouter()

	// Core middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.AuditContext)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(requestTimeout))
	r.Use(deps.Metrics.Middleware)
	r.Use(securityHeaders(cfg))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authHandler := handlers.NewAuthHandler(deps.Accounts, logger)
	adminHandler := handlers.NewAdminHandler(deps.Accounts, logger)
	staffHandler := handlers.NewStaffHandler(logger)
	identityHandler := handlers.NewIdentityHandler(deps.Accounts, deps.Bridge, logger)

	var db *sql.DB
	if deps.DB != nil {
		db = deps.DB.DB
	}
	healthHandler := handlers.NewHealthHandler(db, deps.Revocation, logger)

	sensitive := rateLimiter(cfg.RateLimit, logger)
	local := deps.LocalAuth
	external := deps.ExternalAuth

	// Operational endpoints
	r.Get("/healthz", healthHandler.HandleHealth)
	r.Get("/readyz", healthHandler.HandleReadiness)
	if cfg.Observability.MetricsEnabled {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	// Local token family
	r.Route("/api/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(sensitive)
			r.Post("/register", authHandler.HandleRegister)
			r.Post("/login", authHandler.HandleLogin)
			r.Post("/request-password-reset", authHandler.HandleRequestReset)
			r.Post("/set-password", authHandler.HandleSetPassword)
		})

		r.Group(func(r chi.Router) {
			r.Use(local.RequireAuth)
			r.Use(local.RequireActiveAccount)
			r.Get("/me", authHandler.HandleGetProfile)
			r.Put("/me", authHandler.HandleUpdateProfile)
			r.Post("/change-password", authHandler.HandleChangePassword)
			r.With(local.Require(policy.SuperAdmin)).Post("/assign-password", authHandler.HandleAssignPassword)
		})
	})

	// Account administration
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(local.RequireAuth)
		r.Use(local.RequireActiveAccount)
		r.Use(local.Require(policy.SuperAdmin))
		r.Get("/users", adminHandler.HandleListUsers)
		r.Patch("/users/{id}/deactivate", adminHandler.HandleDeactivate)
		r.Patch("/users/{id}/activate", adminHandler.HandleActivate)
		r.Patch("/users/{id}/role", adminHandler.HandleChangeRole)
		r.Delete("/users/{id}", adminHandler.HandleDeleteUser)
	})

	// Staff portal
	r.Route("/api/staff", func(r chi.Router) {
		r.Use(local.RequireAuth)
		r.Use(local.RequireMinimumRole(models.RoleStaff))
		r.Get("/me", staffHandler.HandleMe)
	})

	// External identity family
	r.Route("/api/identity", func(r chi.Router) {
		r.With(sensitive).Post("/register", identityHandler.HandleRegister)
		r.Post("/verify-token", identityHandler.HandleVerifyToken)

		r.Group(func(r chi.Router) {
			r.Use(external.RequireAuth)
			r.Use(external.RequireActiveLink)
			r.Get("/claims/{id}", identityHandler.HandleClaims)
			r.Get("/profile", identityHandler.HandleProfile)
			r.With(external.Require(policy.Admin)).Post("/assign-role", identityHandler.HandleAssignRole)
		})
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "endpoint not found")
	})

	return r
}

// securityHeaders sets the standard response hardening headers
func securityHeaders(cfg *config.Config) func(http.Handler) http.Handler {
	return secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		SSLRedirect:           cfg.IsProduction(),
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
		IsDevelopment:         !cfg.IsProduction(),
	}).Handler
}

// rateLimiter limits sensitive unauthenticated routes per client IP
func rateLimiter(cfg config.RateLimitConfig, logger *zap.Logger) func(http.Handler) http.Handler {
	if !cfg.Enabled {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(cfg.Requests, cfg.Window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			logger.Info("rate limit exceeded",
				zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
				zap.String("path", r.URL.Path))
			_ = utils.WriteTooManyRequests(w, "too many requests, please try again later")
		}),
	)
}
