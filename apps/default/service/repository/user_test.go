package repository_test

import (
	"testing"

	"github.com/antinvestor/service-login-consent/apps/default/service/models"
	"github.com/antinvestor/service-login-consent/apps/default/service/repository"
	"github.com/antinvestor/service-login-consent/apps/default/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type UserRepositoryTestSuite struct {
	tests.BaseTestSuite
}

func (suite *UserRepositoryTestSuite) TestGetByUsernameOrEmail() {
	t := suite.T()
	ctx := t.Context()
	userRepo := repository.NewUserRepository(suite)

	user := &models.User{Username: "pilot", Email: "pilot@example.com", PasswordHash: "hash"}
	require.NoError(t, userRepo.Save(ctx, user))
	require.NotEmpty(t, user.ID)

	testCases := []struct {
		name       string
		literal    string
		shouldFind bool
	}{
		{name: "by username", literal: "pilot", shouldFind: true},
		{name: "by email", literal: "pilot@example.com", shouldFind: true},
		{name: "unknown", literal: "nobody", shouldFind: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			found, err := userRepo.GetByUsernameOrEmail(ctx, tc.literal, tc.literal)
			require.NoError(t, err)
			if tc.shouldFind {
				require.NotNil(t, found)
				assert.Equal(t, user.ID, found.ID)
			} else {
				assert.Nil(t, found)
			}
		})
	}
}

func (suite *UserRepositoryTestSuite) TestGetByID() {
	t := suite.T()
	ctx := t.Context()
	userRepo := repository.NewUserRepository(suite)

	steamID := "7656119"
	user := &models.User{Username: "linked", Email: "linked@example.com", SteamID: &steamID}
	require.NoError(t, userRepo.Save(ctx, user))

	found, err := userRepo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.True(t, found.HasLinkedPlatform())

	missing, err := userRepo.GetByID(ctx, "missing-id")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func (suite *UserRepositoryTestSuite) TestGetPermissions() {
	t := suite.T()
	ctx := t.Context()
	userRepo := repository.NewUserRepository(suite)

	user := &models.User{Username: "moderator", Email: "mod@example.com"}
	require.NoError(t, userRepo.Save(ctx, user))

	for _, permission := range []string{"WRITE_MAP", "READ_AUDIT_LOG"} {
		require.NoError(t, userRepo.SavePermission(ctx, &models.UserPermission{UserID: user.ID, Permission: permission}))
	}
	require.NoError(t, userRepo.SavePermission(ctx, &models.UserPermission{UserID: "someone-else", Permission: "ADMIN"}))

	permissions, err := userRepo.GetPermissions(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"READ_AUDIT_LOG", "WRITE_MAP"}, permissions)

	none, err := userRepo.GetPermissions(ctx, "no-permissions")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestUserRepository(t *testing.T) {
	suite.Run(t, new(UserRepositoryTestSuite))
}
