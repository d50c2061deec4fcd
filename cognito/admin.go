package cognito

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
)

const defaultAdminHTTPTimeout = 15 * time.Second

var (
	// ErrUserExists is returned when the pool already holds the username
	ErrUserExists = errors.New("external user already exists")

	// ErrInvalidUserInput is returned when the pool rejects supplied attributes or password
	ErrInvalidUserInput = errors.New("external user input rejected")

	// ErrUserNotFound is returned when the pool has no such user
	ErrUserNotFound = errors.New("external user not found")

	// ErrProviderUnavailable is returned for configuration, permission and throttling failures
	ErrProviderUnavailable = errors.New("identity provider unavailable")
)

// AdminOptions configure the user pool admin client
type AdminOptions struct {
	Region          string
	UserPoolID      string
	Endpoint        string // custom endpoint, e.g. a local emulator
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	HTTPTimeout     time.Duration
}

// ProviderUser is a user as stored in the pool
type ProviderUser struct {
	ID       string // the pool's immutable sub
	Username string
	Email    string
	Name     string
	Role     string
	Enabled  bool
}

type adminAPI interface {
	AdminCreateUser(context.Context, *cip.AdminCreateUserInput, ...func(*cip.Options)) (*cip.AdminCreateUserOutput, error)
	AdminSetUserPassword(context.Context, *cip.AdminSetUserPasswordInput, ...func(*cip.Options)) (*cip.AdminSetUserPasswordOutput, error)
	AdminGetUser(context.Context, *cip.AdminGetUserInput, ...func(*cip.Options)) (*cip.AdminGetUserOutput, error)
	AdminUpdateUserAttributes(context.Context, *cip.AdminUpdateUserAttributesInput, ...func(*cip.Options)) (*cip.AdminUpdateUserAttributesOutput, error)
	AdminUserGlobalSignOut(context.Context, *cip.AdminUserGlobalSignOutInput, ...func(*cip.Options)) (*cip.AdminUserGlobalSignOutOutput, error)
	AdminDeleteUser(context.Context, *cip.AdminDeleteUserInput, ...func(*cip.Options)) (*cip.AdminDeleteUserOutput, error)
}

// AdminClient performs privileged user pool operations
type AdminClient struct {
	userPoolID string
	api        adminAPI
}

// NewAdminClient creates a new AdminClient from static or default-chain credentials
func NewAdminClient(ctx context.Context, opts AdminOptions) (*AdminClient, error) {
	region := strings.TrimSpace(opts.Region)
	if region == "" {
		return nil, errors.New("cognito region is required")
	}
	if strings.TrimSpace(opts.UserPoolID) == "" {
		return nil, ErrNotConfigured
	}

	timeout := opts.HTTPTimeout
	if timeout == 0 {
		timeout = defaultAdminHTTPTimeout
	}

	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
		config.WithHTTPClient(&http.Client{Timeout: timeout}),
	}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			strings.TrimSpace(opts.AccessKeyID),
			strings.TrimSpace(opts.SecretAccessKey),
			strings.TrimSpace(opts.SessionToken),
		)))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := cip.NewFromConfig(cfg, func(o *cip.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	})
	return newAdminClientWithAPI(opts.UserPoolID, client), nil
}

func newAdminClientWithAPI(userPoolID string, api adminAPI) *AdminClient {
	return &AdminClient{userPoolID: strings.TrimSpace(userPoolID), api: api}
}

// CreateUser creates a confirmed user with a permanent password.
// The user is removed again if the password cannot be set.
func (c *AdminClient) CreateUser(ctx context.Context, email, password, displayName string) (*ProviderUser, error) {
	attrs := []types.AttributeType{
		{Name: aws.String("email"), Value: aws.String(email)},
		{Name: aws.String("email_verified"), Value: aws.String("true")},
	}
	if displayName != "" {
		attrs = append(attrs, types.AttributeType{Name: aws.String("name"), Value: aws.String(displayName)})
	}

	out, err := c.api.AdminCreateUser(ctx, &cip.AdminCreateUserInput{
		UserPoolId:     aws.String(c.userPoolID),
		Username:       aws.String(email),
		MessageAction:  types.MessageActionTypeSuppress,
		UserAttributes: attrs,
	})
	if err != nil {
		return nil, classify("create user", err)
	}
	if out.User == nil {
		return nil, fmt.Errorf("create user: %w: empty response", ErrProviderUnavailable)
	}

	user := userFromAttributes(aws.ToString(out.User.Username), out.User.Attributes)
	user.Enabled = out.User.Enabled

	_, err = c.api.AdminSetUserPassword(ctx, &cip.AdminSetUserPasswordInput{
		UserPoolId: aws.String(c.userPoolID),
		Username:   aws.String(user.Username),
		Password:   aws.String(password),
		Permanent:  true,
	})
	if err != nil {
		if delErr := c.DeleteUser(ctx, user.Username); delErr != nil {
			return nil, errors.Join(classify("set password", err), delErr)
		}
		return nil, classify("set password", err)
	}

	return user, nil
}

// GetUser fetches a user by username or sub
func (c *AdminClient) GetUser(ctx context.Context, username string) (*ProviderUser, error) {
	out, err := c.api.AdminGetUser(ctx, &cip.AdminGetUserInput{
		UserPoolId: aws.String(c.userPoolID),
		Username:   aws.String(username),
	})
	if err != nil {
		return nil, classify("get user", err)
	}

	user := userFromAttributes(aws.ToString(out.Username), out.UserAttributes)
	user.Enabled = out.Enabled
	return user, nil
}

// SetRole writes the role attribute on a user
func (c *AdminClient) SetRole(ctx context.Context, username, role string) error {
	_, err := c.api.AdminUpdateUserAttributes(ctx, &cip.AdminUpdateUserAttributesInput{
		UserPoolId: aws.String(c.userPoolID),
		Username:   aws.String(username),
		UserAttributes: []types.AttributeType{
			{Name: aws.String(RoleAttribute), Value: aws.String(role)},
		},
	})
	if err != nil {
		return classify("set role", err)
	}
	return nil
}

// SignOut invalidates every refresh token the pool issued for a user
func (c *AdminClient) SignOut(ctx context.Context, username string) error {
	_, err := c.api.AdminUserGlobalSignOut(ctx, &cip.AdminUserGlobalSignOutInput{
		UserPoolId: aws.String(c.userPoolID),
		Username:   aws.String(username),
	})
	if err != nil {
		return classify("sign out", err)
	}
	return nil
}

// DeleteUser removes a user from the pool
func (c *AdminClient) DeleteUser(ctx context.Context, username string) error {
	_, err := c.api.AdminDeleteUser(ctx, &cip.AdminDeleteUserInput{
		UserPoolId: aws.String(c.userPoolID),
		Username:   aws.String(username),
	})
	if err != nil {
		return classify("delete user", err)
	}
	return nil
}

func userFromAttributes(username string, attrs []types.AttributeType) *ProviderUser {
	user := &ProviderUser{Username: username}
	for _, attr := range attrs {
		value := aws.ToString(attr.Value)
		switch aws.ToString(attr.Name) {
		case "sub":
			user.ID = value
		case "email":
			user.Email = value
		case "name":
			user.Name = value
		case RoleAttribute:
			user.Role = value
		}
	}
	if user.ID == "" {
		user.ID = username
	}
	return user
}

func classify(op string, err error) error {
	var (
		exists      *types.UsernameExistsException
		badPassword *types.InvalidPasswordException
		badParam    *types.InvalidParameterException
		notFound    *types.UserNotFoundException
		noPool      *types.ResourceNotFoundException
		denied      *types.NotAuthorizedException
		throttled   *types.TooManyRequestsException
	)

	switch {
	case errors.As(err, &exists):
		return fmt.Errorf("%s: %w: %v", op, ErrUserExists, err)
	case errors.As(err, &badPassword), errors.As(err, &badParam):
		return fmt.Errorf("%s: %w: %v", op, ErrInvalidUserInput, err)
	case errors.As(err, &notFound):
		return fmt.Errorf("%s: %w: %v", op, ErrUserNotFound, err)
	case errors.As(err, &noPool), errors.As(err, &denied), errors.As(err, &throttled):
		return fmt.Errorf("%s: %w: %v", op, ErrProviderUnavailable, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
