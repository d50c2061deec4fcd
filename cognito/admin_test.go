package cognito

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAdminAPI struct {
	createErr   error
	passwordErr error
	updateErr   error
	deleted     []string
	signedOut   []string
	attributes  map[string][]types.AttributeType
}

func newFakeAdminAPI() *fakeAdminAPI {
	return &fakeAdminAPI{attributes: map[string][]types.AttributeType{}}
}

func (f *fakeAdminAPI) AdminCreateUser(_ context.Context, in *cip.AdminCreateUserInput, _ ...func(*cip.Options)) (*cip.AdminCreateUserOutput, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	attrs := append([]types.AttributeType{{Name: aws.String("sub"), Value: aws.String("sub-" + aws.ToString(in.Username))}}, in.UserAttributes...)
	f.attributes[aws.ToString(in.Username)] = attrs
	return &cip.AdminCreateUserOutput{User: &types.UserType{
		Username:   in.Username,
		Attributes: attrs,
		Enabled:    true,
	}}, nil
}

func (f *fakeAdminAPI) AdminSetUserPassword(context.Context, *cip.AdminSetUserPasswordInput, ...func(*cip.Options)) (*cip.AdminSetUserPasswordOutput, error) {
	if f.passwordErr != nil {
		return nil, f.passwordErr
	}
	return &cip.AdminSetUserPasswordOutput{}, nil
}

func (f *fakeAdminAPI) AdminGetUser(_ context.Context, in *cip.AdminGetUserInput, _ ...func(*cip.Options)) (*cip.AdminGetUserOutput, error) {
	attrs, ok := f.attributes[aws.ToString(in.Username)]
	if !ok {
		return nil, &types.UserNotFoundException{Message: aws.String("User does not exist.")}
	}
	return &cip.AdminGetUserOutput{Username: in.Username, UserAttributes: attrs, Enabled: true}, nil
}

func (f *fakeAdminAPI) AdminUpdateUserAttributes(_ context.Context, in *cip.AdminUpdateUserAttributesInput, _ ...func(*cip.Options)) (*cip.AdminUpdateUserAttributesOutput, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	name := aws.ToString(in.Username)
	f.attributes[name] = append(f.attributes[name], in.UserAttributes...)
	return &cip.AdminUpdateUserAttributesOutput{}, nil
}

func (f *fakeAdminAPI) AdminUserGlobalSignOut(_ context.Context, in *cip.AdminUserGlobalSignOutInput, _ ...func(*cip.Options)) (*cip.AdminUserGlobalSignOutOutput, error) {
	f.signedOut = append(f.signedOut, aws.ToString(in.Username))
	return &cip.AdminUserGlobalSignOutOutput{}, nil
}

func (f *fakeAdminAPI) AdminDeleteUser(_ context.Context, in *cip.AdminDeleteUserInput, _ ...func(*cip.Options)) (*cip.AdminDeleteUserOutput, error) {
	f.deleted = append(f.deleted, aws.ToString(in.Username))
	delete(f.attributes, aws.ToString(in.Username))
	return &cip.AdminDeleteUserOutput{}, nil
}

func TestAdminClient_CreateUser(t *testing.T) {
	api := newFakeAdminAPI()
	client := newAdminClientWithAPI("pool", api)

	user, err := client.CreateUser(context.Background(), "nurse@example.com", "Secret123!", "Camp Nurse")
	require.NoError(t, err)
	assert.Equal(t, "sub-nurse@example.com", user.ID)
	assert.Equal(t, "nurse@example.com", user.Email)
	assert.Equal(t, "Camp Nurse", user.Name)
	assert.True(t, user.Enabled)
}

func TestAdminClient_CreateUser_RemovesUserWhenPasswordRejected(t *testing.T) {
	api := newFakeAdminAPI()
	api.passwordErr = &types.InvalidPasswordException{Message: aws.String("too weak")}
	client := newAdminClientWithAPI("pool", api)

	_, err := client.CreateUser(context.Background(), "nurse@example.com", "weak", "")
	assert.ErrorIs(t, err, ErrInvalidUserInput)
	assert.Equal(t, []string{"nurse@example.com"}, api.deleted)
}

func TestAdminClient_RoleAndSignOut(t *testing.T) {
	api := newFakeAdminAPI()
	client := newAdminClientWithAPI("pool", api)
	ctx := context.Background()

	_, err := client.CreateUser(ctx, "lead@example.com", "Secret123!", "")
	require.NoError(t, err)

	require.NoError(t, client.SetRole(ctx, "lead@example.com", "admin"))
	require.NoError(t, client.SignOut(ctx, "lead@example.com"))

	user, err := client.GetUser(ctx, "lead@example.com")
	require.NoError(t, err)
	assert.Equal(t, "admin", user.Role)
	assert.Equal(t, []string{"lead@example.com"}, api.signedOut)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"exists", &types.UsernameExistsException{}, ErrUserExists},
		{"bad password", &types.InvalidPasswordException{}, ErrInvalidUserInput},
		{"bad parameter", &types.InvalidParameterException{}, ErrInvalidUserInput},
		{"not found", &types.UserNotFoundException{}, ErrUserNotFound},
		{"no pool", &types.ResourceNotFoundException{}, ErrProviderUnavailable},
		{"denied", &types.NotAuthorizedException{}, ErrProviderUnavailable},
		{"throttled", &types.TooManyRequestsException{}, ErrProviderUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, classify("op", tt.err), tt.want)
		})
	}

	plain := errors.New("network")
	assert.ErrorIs(t, classify("op", plain), plain)
}

func TestAdminClient_GetUserNotFound(t *testing.T) {
	client := newAdminClientWithAPI("pool", newFakeAdminAPI())
	_, err := client.GetUser(context.Background(), "ghost@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
}
