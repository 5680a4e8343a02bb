package business_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/antinvestor/service-login-consent/apps/default/service/hydra"
	"github.com/antinvestor/service-login-consent/apps/default/service/models"
)

// callLog records collaborator calls in the order they happen.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (c *callLog) add(call string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, call)
}

func (c *callLog) All() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

func (c *callLog) Count(call string) int {
	count := 0
	for _, recorded := range c.All() {
		if recorded == call {
			count++
		}
	}
	return count
}

func (c *callLog) Index(call string) int {
	for i, recorded := range c.All() {
		if recorded == call {
			return i
		}
	}
	return -1
}

const (
	callGetLogin       = "provider.GetLoginRequest"
	callAcceptLogin    = "provider.AcceptLoginRequest"
	callRejectLogin    = "provider.RejectLoginRequest"
	callGetConsent     = "provider.GetConsentRequest"
	callAcceptConsent  = "provider.AcceptConsentRequest"
	callRejectConsent  = "provider.RejectConsentRequest"
	callGetLogout      = "provider.GetLogoutRequest"
	callAcceptLogout   = "provider.AcceptLogoutRequest"
	callSummarize      = "attempts.SummarizeFailuresByIP"
	callAppend         = "attempts.Append"
	callFindUser       = "users.GetByUsernameOrEmail"
	callGetUser        = "users.GetByID"
	callGetPermissions = "users.GetPermissions"
	callGetBans        = "bans.GetBySubject"
	callVerify         = "verifier.Matches"
)

const (
	acceptLoginRedirect   = "https://auth.example.com/oauth2/auth?login_verifier=accepted"
	rejectLoginRedirect   = "https://auth.example.com/oauth2/auth?login_verifier=rejected"
	acceptConsentRedirect = "https://auth.example.com/oauth2/auth?consent_verifier=accepted"
	rejectConsentRedirect = "https://auth.example.com/oauth2/auth?consent_verifier=rejected"
	logoutRedirect        = "https://game.example.com/logged-out"
)

type fakeProvider struct {
	log        *callLog
	challenges map[string]*models.Challenge

	acceptedLogin   *hydra.AcceptLoginRequestParams
	rejectedLogin   *hydra.RejectRequestParams
	acceptedConsent *hydra.AcceptConsentRequestParams
	rejectedConsent *hydra.RejectRequestParams
	acceptErr       error
}

func (p *fakeProvider) challenge(id string) (*models.Challenge, error) {
	challenge, ok := p.challenges[id]
	if !ok {
		return nil, fmt.Errorf("%w: challenge %s is unknown", hydra.ErrProviderProtocol, id)
	}
	copied := *challenge
	return &copied, nil
}

func (p *fakeProvider) GetLoginRequest(_ context.Context, loginChallenge string) (*models.Challenge, error) {
	p.log.add(callGetLogin)
	return p.challenge(loginChallenge)
}

func (p *fakeProvider) AcceptLoginRequest(_ context.Context, params *hydra.AcceptLoginRequestParams) (string, error) {
	p.log.add(callAcceptLogin)
	if p.acceptErr != nil {
		return "", p.acceptErr
	}
	p.acceptedLogin = params
	return acceptLoginRedirect, nil
}

func (p *fakeProvider) RejectLoginRequest(_ context.Context, params *hydra.RejectRequestParams) (string, error) {
	p.log.add(callRejectLogin)
	p.rejectedLogin = params
	return rejectLoginRedirect, nil
}

func (p *fakeProvider) GetConsentRequest(_ context.Context, consentChallenge string) (*models.Challenge, error) {
	p.log.add(callGetConsent)
	return p.challenge(consentChallenge)
}

func (p *fakeProvider) AcceptConsentRequest(_ context.Context, params *hydra.AcceptConsentRequestParams) (string, error) {
	p.log.add(callAcceptConsent)
	p.acceptedConsent = params
	return acceptConsentRedirect, nil
}

func (p *fakeProvider) RejectConsentRequest(_ context.Context, params *hydra.RejectRequestParams) (string, error) {
	p.log.add(callRejectConsent)
	p.rejectedConsent = params
	return rejectConsentRedirect, nil
}

func (p *fakeProvider) GetLogoutRequest(_ context.Context, logoutChallenge string) (*models.Challenge, error) {
	p.log.add(callGetLogout)
	return p.challenge(logoutChallenge)
}

func (p *fakeProvider) AcceptLogoutRequest(_ context.Context, _ *hydra.AcceptLogoutRequestParams) (string, error) {
	p.log.add(callAcceptLogout)
	return logoutRedirect, nil
}

type fakeUsers struct {
	log         *callLog
	users       []*models.User
	permissions map[string][]string
	err         error
}

func (u *fakeUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	u.log.add(callGetUser)
	if u.err != nil {
		return nil, u.err
	}
	for _, user := range u.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, nil
}

func (u *fakeUsers) GetByUsernameOrEmail(_ context.Context, username, email string) (*models.User, error) {
	u.log.add(callFindUser)
	if u.err != nil {
		return nil, u.err
	}
	for _, user := range u.users {
		if user.Username == username || user.Email == email {
			return user, nil
		}
	}
	return nil, nil
}

func (u *fakeUsers) GetPermissions(_ context.Context, userID string) ([]string, error) {
	u.log.add(callGetPermissions)
	if u.err != nil {
		return nil, u.err
	}
	return u.permissions[userID], nil
}

func (u *fakeUsers) Save(_ context.Context, user *models.User) error {
	u.users = append(u.users, user)
	return nil
}

func (u *fakeUsers) SavePermission(_ context.Context, permission *models.UserPermission) error {
	u.permissions[permission.UserID] = append(u.permissions[permission.UserID], permission.Permission)
	return nil
}

type fakeBans struct {
	log  *callLog
	bans []*models.Ban
	err  error

	levels []models.BanLevel
}

func (b *fakeBans) GetBySubject(_ context.Context, subjectID string, level models.BanLevel) ([]*models.Ban, error) {
	b.log.add(callGetBans)
	b.levels = append(b.levels, level)
	if b.err != nil {
		return nil, b.err
	}

	var bans []*models.Ban
	for _, ban := range b.bans {
		if ban.SubjectID == subjectID && (level == models.BanLevelAny || ban.Level == level) {
			bans = append(bans, ban)
		}
	}
	return bans, nil
}

func (b *fakeBans) Save(_ context.Context, ban *models.Ban) error {
	b.bans = append(b.bans, ban)
	return nil
}

type fakeAttempts struct {
	log        *callLog
	summary    *models.FailedAttemptsSummary
	summaryErr error
	appendErr  error

	since    []time.Time
	recorded []*models.LoginAttempt
}

func (a *fakeAttempts) Append(_ context.Context, attempt *models.LoginAttempt) error {
	a.log.add(callAppend)
	if a.appendErr != nil {
		return a.appendErr
	}
	a.recorded = append(a.recorded, attempt)
	return nil
}

func (a *fakeAttempts) SummarizeFailuresByIP(
	_ context.Context,
	_ string,
	since time.Time,
) (*models.FailedAttemptsSummary, error) {
	a.log.add(callSummarize)
	a.since = append(a.since, since)
	if a.summaryErr != nil {
		return nil, a.summaryErr
	}
	if a.summary == nil {
		return &models.FailedAttemptsSummary{}, nil
	}
	return a.summary, nil
}

// fakeVerifier treats "plain:<secret>" as the stored hash of secret.
type fakeVerifier struct {
	log *callLog
}

func (v *fakeVerifier) Matches(_ context.Context, secret, storedHash string) bool {
	v.log.add(callVerify)
	return storedHash != "" && strings.TrimPrefix(storedHash, "plain:") == secret
}

func int64Ptr(v int64) *int64 {
	return &v
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func stringPtr(s string) *string {
	return &s
}
