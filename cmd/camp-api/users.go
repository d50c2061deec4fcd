package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/campabbey/camp-api/app"
	"github.com/campabbey/camp-api/config"
	"github.com/campabbey/camp-api/models"
	"github.com/campabbey/camp-api/repositories"
	"github.com/spf13/cobra"
)

// cliActorID identifies changes made from the command line in the audit trail
const cliActorID = "camp-api-cli"

const (
	minPasswordLength = 6
	maxPasswordLength = 72
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage camp accounts.",
}

var (
	bootstrapEmail          string
	bootstrapFirstName      string
	bootstrapLastName       string
	bootstrapPassword       string
	bootstrapPasswordStdin  bool
	bootstrapGeneratePasswd bool
)

var bootstrapAdminCmd = &cobra.Command{
	Use:   "bootstrap-admin",
	Short: "Create the first superadmin (does nothing if a superadmin already exists).",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		email := models.NormalizeEmail(bootstrapEmail)
		if email == "" {
			return errors.New("--email is required")
		}

		password, generated, err := resolvePassword(cmd.InOrStdin())
		if err != nil {
			return err
		}

		return withDependencies(cmd.Context(), func(ctx context.Context, deps *app.Dependencies) error {
			role := models.RoleSuperAdmin
			existing, err := deps.Users.List(ctx, repositories.UserFilter{Role: &role, Limit: 1})
			if err != nil {
				return err
			}
			if len(existing) > 0 {
				cmd.Println("superadmin already exists; nothing to do")
				return nil
			}

			if _, err := deps.Users.GetByEmail(ctx, email); err == nil {
				return fmt.Errorf("user already exists: %s", email)
			} else if !errors.Is(err, repositories.ErrNotFound) {
				return err
			}

			hash, err := deps.Hasher.Hash(password)
			if err != nil {
				return err
			}
			user := models.NewUser(email, bootstrapFirstName, bootstrapLastName, models.RoleSuperAdmin)
			user.PasswordHash = hash
			if err := deps.Users.Create(ctx, user); err != nil {
				return err
			}
			deps.Audit.Record(ctx, models.AuditActionAccountRegistered, cliActorID, user.ID.String(),
				map[string]string{"role": string(user.Role)})

			cmd.Printf("created superadmin: %s\n", email)
			if generated {
				cmd.Printf("generated password: %s\n", password)
			}
			return nil
		})
	},
}

var setRoleCmd = &cobra.Command{
	Use:   "set-role <email> <role>",
	Short: "Change the role of an account and revoke its outstanding tokens.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		email := models.NormalizeEmail(args[0])
		role, err := models.ParseRole(args[1])
		if err != nil || strings.TrimSpace(args[1]) == "" {
			return fmt.Errorf("role must be one of parent, staff, admin, superadmin: %q", args[1])
		}

		return withDependencies(cmd.Context(), func(ctx context.Context, deps *app.Dependencies) error {
			if err := requireSharedRevocation(deps); err != nil {
				return err
			}

			user, err := deps.Users.GetByEmail(ctx, email)
			if err != nil {
				if errors.Is(err, repositories.ErrNotFound) {
					return fmt.Errorf("user not found: %s", email)
				}
				return err
			}

			if _, err := deps.Accounts.ChangeRole(ctx, cliActor(), user.ID, role); err != nil {
				return err
			}
			cmd.Printf("%s is now %s\n", email, role)
			return nil
		})
	},
}

var issueTokenTTL time.Duration

var issueTokenCmd = &cobra.Command{
	Use:   "issue-token <email>",
	Short: "Print a local bearer token for an active account.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		email := models.NormalizeEmail(args[0])
		if issueTokenTTL < 0 {
			return errors.New("--ttl must not be negative")
		}

		return withDependencies(cmd.Context(), func(ctx context.Context, deps *app.Dependencies) error {
			user, err := deps.Users.GetByEmail(ctx, email)
			if err != nil {
				if errors.Is(err, repositories.ErrNotFound) {
					return fmt.Errorf("user not found: %s", email)
				}
				return err
			}
			if user.Deactivated {
				return fmt.Errorf("account is deactivated: %s", email)
			}

			issued, err := deps.Tokens.Issue(ctx, user.ID.String(), user.Role, issueTokenTTL)
			if err != nil {
				return err
			}
			deps.Audit.Record(ctx, models.AuditActionLoginSucceeded, cliActorID, user.ID.String(),
				map[string]string{"via": "cli"})

			cmd.Println(issued.Token)
			return nil
		})
	},
}

func init() {
	bootstrapAdminCmd.Flags().StringVar(&bootstrapEmail, "email", "", "Email of the superadmin account")
	bootstrapAdminCmd.Flags().StringVar(&bootstrapFirstName, "first-name", "Camp", "First name")
	bootstrapAdminCmd.Flags().StringVar(&bootstrapLastName, "last-name", "Director", "Last name")
	bootstrapAdminCmd.Flags().StringVar(&bootstrapPassword, "password", "", "Password (prefer --password-stdin)")
	bootstrapAdminCmd.Flags().BoolVar(&bootstrapPasswordStdin, "password-stdin", false, "Read the password from stdin")
	bootstrapAdminCmd.Flags().BoolVar(&bootstrapGeneratePasswd, "generate-password", false, "Generate a random password and print it")

	issueTokenCmd.Flags().DurationVar(&issueTokenTTL, "ttl", 0, "Token lifetime (defaults to JWT_TTL)")

	usersCmd.AddCommand(bootstrapAdminCmd, setRoleCmd, issueTokenCmd)
}

// cliActor is the principal recorded for command line changes
func cliActor() *models.Principal {
	return &models.Principal{
		ID:     cliActorID,
		Role:   models.RoleSuperAdmin,
		Source: models.PrincipalSourceLocal,
	}
}

// withDependencies loads configuration, wires the application and runs fn
func withDependencies(parent context.Context, fn func(ctx context.Context, deps *app.Dependencies) error) error {
	ctx, cancel := context.WithTimeout(parent, 30*time.Second)
	defer cancel()

	cfg, err := config.New(ctx)
	if err != nil {
		return err
	}
	logger, err := initLogger(cfg)
	if err != nil {
		return err
	}

	deps, err := app.NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close(context.Background())

	return fn(ctx, deps)
}

// requireSharedRevocation rejects commands whose revocations would only land
// in this process's memory
func requireSharedRevocation(deps *app.Dependencies) error {
	if deps.Redis == nil {
		return errors.New("revocation store is process-local; set REDIS_ENABLED=true so the running server sees revoked tokens")
	}
	return nil
}

func resolvePassword(stdin io.Reader) (string, bool, error) {
	sources := 0
	for _, set := range []bool{bootstrapPassword != "", bootstrapPasswordStdin, bootstrapGeneratePasswd} {
		if set {
			sources++
		}
	}
	if sources == 0 {
		return "", false, errors.New("no password provided (use --password, --password-stdin, or --generate-password)")
	}
	if sources > 1 {
		return "", false, errors.New("--password, --password-stdin and --generate-password are mutually exclusive")
	}

	var password string
	switch {
	case bootstrapGeneratePasswd:
		generated, err := generatePassword(24)
		if err != nil {
			return "", false, err
		}
		return generated, true, nil
	case bootstrapPasswordStdin:
		raw, err := io.ReadAll(stdin)
		if err != nil {
			return "", false, err
		}
		password = strings.TrimRight(string(raw), "\r\n")
	default:
		password = bootstrapPassword
	}

	if len(password) < minPasswordLength || len(password) > maxPasswordLength {
		return "", false, fmt.Errorf("password must be between %d and %d characters", minPasswordLength, maxPasswordLength)
	}
	return password, false, nil
}

func generatePassword(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf)[:n], nil
}
