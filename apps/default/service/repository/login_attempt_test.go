package repository_test

import (
	"testing"
	"time"

	"github.com/antinvestor/service-login-consent/apps/default/service/models"
	"github.com/antinvestor/service-login-consent/apps/default/service/repository"
	"github.com/antinvestor/service-login-consent/apps/default/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type LoginAttemptRepositoryTestSuite struct {
	tests.BaseTestSuite
}

func (suite *LoginAttemptRepositoryTestSuite) TestSummarizeFailuresByIP() {
	t := suite.T()
	ctx := t.Context()
	attemptRepo := repository.NewLoginAttemptRepository(suite)

	now := time.Now().UTC().Truncate(time.Second)
	attempts := []*models.LoginAttempt{
		{OriginIP: "10.0.0.1", SubjectID: "user-a", AttemptedAt: now.Add(-30 * time.Minute), Outcome: models.AttemptOutcomeBadPassword},
		{OriginIP: "10.0.0.1", SubjectID: "user-a", AttemptedAt: now.Add(-20 * time.Minute), Outcome: models.AttemptOutcomeBadPassword},
		{OriginIP: "10.0.0.1", SubjectID: "user-b", AttemptedAt: now.Add(-10 * time.Minute), Outcome: models.AttemptOutcomeBadPassword},
		{OriginIP: "10.0.0.1", AttemptedAt: now.Add(-5 * time.Minute), Outcome: models.AttemptOutcomeUnknownUser},
		{OriginIP: "10.0.0.1", SubjectID: "user-a", AttemptedAt: now.Add(-time.Minute), Success: true, Outcome: models.AttemptOutcomeSuccess},
		{OriginIP: "10.0.0.1", SubjectID: "user-c", AttemptedAt: now.Add(-72 * time.Hour), Outcome: models.AttemptOutcomeBadPassword},
		{OriginIP: "10.0.0.2", SubjectID: "user-a", AttemptedAt: now.Add(-time.Minute), Outcome: models.AttemptOutcomeBadPassword},
	}
	for _, attempt := range attempts {
		require.NoError(t, attemptRepo.Append(ctx, attempt))
		require.NotEmpty(t, attempt.ID)
	}

	summary, err := attemptRepo.SummarizeFailuresByIP(ctx, "10.0.0.1", now.Add(-24*time.Hour))
	require.NoError(t, err)

	require.NotNil(t, summary.FailedCount)
	assert.EqualValues(t, 4, *summary.FailedCount)
	require.NotNil(t, summary.AccountsAffected)
	assert.EqualValues(t, 2, *summary.AccountsAffected)
	require.NotNil(t, summary.FirstFailureAt)
	assert.True(t, now.Add(-30*time.Minute).Equal(*summary.FirstFailureAt))
	require.NotNil(t, summary.LastFailureAt)
	assert.True(t, now.Add(-5*time.Minute).Equal(*summary.LastFailureAt))
}

func (suite *LoginAttemptRepositoryTestSuite) TestSummarizeWithoutFailures() {
	t := suite.T()
	ctx := t.Context()
	attemptRepo := repository.NewLoginAttemptRepository(suite)

	require.NoError(t, attemptRepo.Append(ctx, &models.LoginAttempt{
		OriginIP: "10.0.0.9", SubjectID: "user-a", Success: true, Outcome: models.AttemptOutcomeSuccess,
	}))

	summary, err := attemptRepo.SummarizeFailuresByIP(ctx, "10.0.0.9", time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.Nil(t, summary.FailedCount)
	assert.Nil(t, summary.AccountsAffected)
	assert.Nil(t, summary.FirstFailureAt)
	assert.Nil(t, summary.LastFailureAt)
	assert.Zero(t, summary.Failures())
}

func TestLoginAttemptRepository(t *testing.T) {
	suite.Run(t, new(LoginAttemptRepositoryTestSuite))
}
