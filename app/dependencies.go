package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/campabbey/camp-api/cognito"
	"github.com/campabbey/camp-api/config"
	"github.com/campabbey/camp-api/internal/observability"
	"github.com/campabbey/camp-api/middleware"
	"github.com/campabbey/camp-api/repositories"
	"github.com/campabbey/camp-api/repositories/postgres"
	"github.com/campabbey/camp-api/services/account"
	"github.com/campabbey/camp-api/services/audit"
	"github.com/campabbey/camp-api/services/identity"
	"github.com/campabbey/camp-api/services/password"
	"github.com/campabbey/camp-api/services/revocation"
	"github.com/campabbey/camp-api/services/token"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// auditStopTimeout bounds how long shutdown waits for pending audit events
const auditStopTimeout = 5 * time.Second

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Redis  *redis.Client
	Logger *zap.Logger

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Users     repositories.UserRepository
	AuditLogs repositories.AuditRepository
	TxManager repositories.TransactionManager

	// Revocation of outstanding tokens
	Revocation revocation.Store

	// External provider adapters and reset delivery. Values set before Wire are kept.
	ExternalValidator identity.TokenValidator
	ExternalProvider  identity.Provider
	Notifier          account.ResetNotifier

	// Services
	Hasher   *password.MultiHasher
	Tokens   *token.Issuer
	Bridge   *identity.Bridge
	Audit    *audit.AuditService
	Accounts *account.Service
	Metrics  *observability.Metrics

	// Auth, one middleware per route family
	LocalAuth    *middleware.AuthMiddleware
	ExternalAuth *middleware.AuthMiddleware
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	// Initialize PostgreSQL
	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Initialize repositories
	deps.initRepositories()

	// Initialize the revocation store
	if err := deps.initRevocation(ctx, cfg); err != nil {
		_ = deps.Close(ctx)
		return nil, fmt.Errorf("failed to initialize revocation store: %w", err)
	}

	if err := deps.Wire(ctx); err != nil {
		_ = deps.Close(ctx)
		return nil, err
	}

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// Wire builds services and middleware on top of the storage layer.
// Config, Logger, Users, AuditLogs, TxManager and Revocation must be set.
func (d *Dependencies) Wire(ctx context.Context) error {
	if d.Users == nil || d.AuditLogs == nil || d.TxManager == nil || d.Revocation == nil {
		return errors.New("storage layer is not initialized")
	}

	if err := d.initTokens(d.Config); err != nil {
		return fmt.Errorf("failed to initialize token issuer: %w", err)
	}
	d.initIdentity(ctx, d.Config)

	if d.Notifier == nil {
		d.Notifier = account.NewLogNotifier(d.Logger, !d.Config.IsProduction())
	}

	d.Audit = audit.NewAuditService(d.AuditLogs, d.Logger, audit.DefaultConfig())
	if err := d.Audit.Start(); err != nil {
		return fmt.Errorf("failed to start audit service: %w", err)
	}

	d.Accounts = account.NewService(account.Deps{
		Users:      d.Users,
		AuditLogs:  d.AuditLogs,
		TxManager:  d.TxManager,
		Hasher:     d.Hasher,
		Tokens:     d.Tokens,
		Audit:      d.Audit,
		Identities: d.Bridge,
		Notifier:   d.Notifier,
	}, account.Config{ResetTTL: d.Config.Password.ResetTTL}, d.Logger)

	d.initMiddleware(d.Config)
	return nil
}

// initDatabase initializes the PostgreSQL database connection and factory
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	factory, err := postgres.NewRepositoryFactory(cfg, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create repository factory: %w", err)
	}

	d.RepoFactory = factory
	d.DB = factory.GetDB()

	if err := factory.InitSchema(ctx); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// initRepositories initializes all repository instances
func (d *Dependencies) initRepositories() {
	repos := d.RepoFactory.NewRepositories()

	d.Users = repos.Users
	d.AuditLogs = repos.AuditLogs
	d.TxManager = d.RepoFactory.GetTransactionManager()

	d.Logger.Info("repositories initialized")
}

// initRevocation selects Redis or the in-process store
func (d *Dependencies) initRevocation(ctx context.Context, cfg *config.Config) error {
	if !cfg.Redis.Enabled {
		d.Logger.Warn("redis disabled, token revocation is held in process memory")
		d.Revocation = revocation.NewMemoryStore(cfg.Redis.CutoffTTL)
		return nil
	}

	client, err := revocation.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return err
	}
	d.Redis = client
	d.Revocation = revocation.NewRedisStore(client, cfg.Redis.CutoffTTL)
	d.Logger.Info("redis revocation store connected", zap.String("addr", cfg.Redis.Addr))
	return nil
}

// initTokens creates the secret hasher and the local token issuer
func (d *Dependencies) initTokens(cfg *config.Config) error {
	hasher, err := password.New(cfg.Password.Algorithm, cfg.Password.BcryptCost)
	if err != nil {
		return err
	}
	d.Hasher = hasher

	issuer, err := token.NewIssuer(token.Config{
		Secret: cfg.JWT.Secret,
		Issuer: cfg.JWT.Issuer,
		TTL:    cfg.JWT.TTL,
	}, d.Revocation)
	if err != nil {
		return err
	}
	d.Tokens = issuer
	return nil
}

// initIdentity wires the Cognito adapters into the identity bridge. Without a
// configured pool the bridge answers provider_config_error.
func (d *Dependencies) initIdentity(ctx context.Context, cfg *config.Config) {
	if d.ExternalValidator == nil {
		d.ExternalValidator = cognito.NewCognitoValidator(cognito.Config{
			Region:      cfg.Cognito.Region,
			UserPoolID:  cfg.Cognito.UserPoolID,
			ClientID:    cfg.Cognito.ClientID,
			JWKSURL:     cfg.Cognito.JWKSURL,
			CacheTTL:    cfg.Cognito.CacheTTL,
			HTTPTimeout: cfg.Cognito.Timeout,
		})
	}

	if d.ExternalProvider == nil {
		switch {
		case cfg.Cognito.Demo:
			d.Logger.Warn("cognito not configured, external identity routes run in demo mode")
		default:
			admin, err := cognito.NewAdminClient(ctx, cognito.AdminOptions{
				Region:          cfg.Cognito.Region,
				UserPoolID:      cfg.Cognito.UserPoolID,
				Endpoint:        cfg.Cognito.Endpoint,
				AccessKeyID:     cfg.Cognito.AccessKeyID,
				SecretAccessKey: cfg.Cognito.SecretAccessKey,
				SessionToken:    cfg.Cognito.SessionToken,
				HTTPTimeout:     cfg.Cognito.Timeout,
			})
			if err != nil {
				d.Logger.Warn("cognito admin client unavailable, identity management disabled", zap.Error(err))
			} else {
				d.ExternalProvider = admin
			}
		}
	}

	d.Bridge = identity.NewBridge(d.ExternalValidator, d.ExternalProvider, d.Revocation, cfg.Cognito.Timeout, d.Logger)
	d.Logger.Info("identity bridge initialized",
		zap.Bool("demo", cfg.Cognito.Demo),
		zap.Bool("admin_api", d.ExternalProvider != nil))
}

// initMiddleware creates metrics and the auth middleware of each route family
func (d *Dependencies) initMiddleware(cfg *config.Config) {
	var recorder middleware.DecisionRecorder
	if cfg.Observability.MetricsEnabled {
		d.Metrics = observability.NewMetrics()
		recorder = d.Metrics
	}

	d.LocalAuth = middleware.NewAuthMiddleware(middleware.SchemeLocal, d.Tokens, d.Users, recorder, d.Logger)
	d.ExternalAuth = middleware.NewAuthMiddleware(middleware.SchemeExternal, d.Bridge, d.Users, recorder, d.Logger)
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.Audit != nil {
		if err := d.Audit.Stop(auditStopTimeout); err != nil && !errors.Is(err, audit.ErrNotRunning) {
			errs = append(errs, fmt.Errorf("failed to stop audit service: %w", err))
		}
	}

	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis: %w", err))
		}
	}

	// Close database connection
	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	// Sync logger
	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	return errors.Join(errs...)
}
