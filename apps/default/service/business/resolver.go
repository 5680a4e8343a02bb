package business

import (
	"context"
	"fmt"
	"time"

	"github.com/antinvestor/service-login-consent/apps/default/config"
	"github.com/antinvestor/service-login-consent/apps/default/service/hydra"
	"github.com/antinvestor/service-login-consent/apps/default/service/models"
	"github.com/antinvestor/service-login-consent/apps/default/service/repository"
	"github.com/antinvestor/service-login-consent/apps/default/utils"
	"github.com/pitabwire/util"
)

const (
	MessageInvalidCredentials = "invalid credentials"
	MessageThrottled          = "too many failed attempts, please try again later"
	MessageLinkRequired       = "link a steam or gog account to access the lobby"

	rejectError = "access_denied"

	// ClaimRoles carries the subject's permissions in the access and id tokens.
	ClaimRoles = "roles"
)

// CredentialVerifier compares a submitted secret against a stored hash.
type CredentialVerifier interface {
	Matches(ctx context.Context, secret, storedHash string) bool
}

// Outcome is what the HTTP layer relays to the browser. Message is set only when the attempt was refused.
type Outcome struct {
	RedirectTo string `json:"redirect_to"`
	Message    string `json:"message,omitempty"`
}

func (o *Outcome) Refused() bool {
	return o.Message != ""
}

type LoginRequest struct {
	Challenge string
	Username  string
	Password  string
	OriginIP  string
}

// LoginDescription is returned for a login challenge before credentials are posted. Outcome is set when
// the provider allowed the login to be skipped and it has been accepted already.
type LoginDescription struct {
	Challenge *models.Challenge `json:"challenge"`
	Outcome   *Outcome          `json:"outcome,omitempty"`
}

type ConsentDescription struct {
	Challenge *models.Challenge `json:"challenge"`
	User      *models.User      `json:"user,omitempty"`
}

type ConsentDecision string

const (
	ConsentPermit ConsentDecision = "permit"
	ConsentDeny   ConsentDecision = "deny"
)

func ParseConsentDecision(value string) (ConsentDecision, error) {
	switch ConsentDecision(value) {
	case ConsentPermit, ConsentDeny:
		return ConsentDecision(value), nil
	default:
		return "", fmt.Errorf("unknown consent decision %q", value)
	}
}

type ResolverSettings struct {
	LobbyScope       string
	AccountLinkURL   string
	RememberDuration int64
}

func ResolverSettingsFromConfig(cfg *config.LoginConsentConfig) ResolverSettings {
	return ResolverSettings{
		LobbyScope:       cfg.LobbyScope,
		AccountLinkURL:   cfg.AccountLinkURL,
		RememberDuration: cfg.SessionRememberDuration,
	}
}

type ResolverOption func(*ChallengeResolver)

// WithClock replaces time.Now as the source of the current time.
func WithClock(clock func() time.Time) ResolverOption {
	return func(r *ChallengeResolver) {
		r.clock = clock
	}
}

func WithMetrics(metrics *DecisionMetrics) ResolverOption {
	return func(r *ChallengeResolver) {
		r.metrics = metrics
	}
}

// ChallengeResolver turns login, consent and logout challenges into accept or reject calls on the
// authorization server. It keeps no per request state and is safe for concurrent use.
type ChallengeResolver struct {
	provider hydra.Client
	users    repository.UserRepository
	attempts repository.LoginAttemptRepository
	verifier CredentialVerifier
	throttle *ThrottleGuard
	bans     *BanEvaluator
	settings ResolverSettings
	metrics  *DecisionMetrics
	clock    func() time.Time
}

func NewChallengeResolver(
	provider hydra.Client,
	users repository.UserRepository,
	bans repository.BanRepository,
	attempts repository.LoginAttemptRepository,
	verifier CredentialVerifier,
	policy ThrottlePolicy,
	settings ResolverSettings,
	opts ...ResolverOption,
) *ChallengeResolver {
	r := &ChallengeResolver{
		provider: provider,
		users:    users,
		attempts: attempts,
		verifier: verifier,
		throttle: NewThrottleGuard(attempts, policy),
		bans:     NewBanEvaluator(bans),
		settings: settings,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DescribeLogin fetches a login challenge. Challenges the provider marks as skippable are accepted
// straight away for the subject already on the challenge.
func (r *ChallengeResolver) DescribeLogin(ctx context.Context, challengeID string) (*LoginDescription, error) {
	challenge, err := r.provider.GetLoginRequest(ctx, challengeID)
	if err != nil {
		return nil, err
	}

	description := &LoginDescription{Challenge: challenge}
	if challenge.Skip {
		description.Outcome, err = r.acceptSkippedLogin(ctx, challenge)
		if err != nil {
			return nil, err
		}
	}
	return description, nil
}

// ResolveLogin runs a credential submission through throttling, identity, credential, ban and lobby
// link checks in that order. Each submission records one attempt and ends in exactly one accept or
// reject call; refusals come back as an Outcome carrying a message, not as an error.
func (r *ChallengeResolver) ResolveLogin(ctx context.Context, req LoginRequest) (*Outcome, error) {
	now := r.clock().UTC()
	logger := util.Log(ctx).WithFields(map[string]any{
		"login_challenge": req.Challenge,
		"origin_ip":       req.OriginIP,
		"username_prefix": usernamePrefix(req.Username),
	})

	challenge, err := r.provider.GetLoginRequest(ctx, req.Challenge)
	if err != nil {
		return nil, err
	}

	if challenge.Skip {
		return r.acceptSkippedLogin(ctx, challenge)
	}

	attempt := r.newAttempt(ctx, challenge, req.OriginIP, now)

	throttle, err := r.throttle.Evaluate(ctx, req.OriginIP, now)
	if err != nil {
		return nil, err
	}
	if throttle.Throttled {
		return r.refuseLogin(ctx, challenge, attempt, models.AttemptOutcomeThrottled, false, MessageThrottled)
	}

	user, err := r.users.GetByUsernameOrEmail(ctx, req.Username, req.Username)
	if err != nil {
		logger.WithError(err).Error("identity lookup failed")
		return nil, collaboratorError("identity lookup", err)
	}
	if user == nil {
		logger.Debug("no account matches the submitted username")
		return r.refuseLogin(ctx, challenge, attempt, models.AttemptOutcomeUnknownUser, false, MessageInvalidCredentials)
	}

	attempt.SubjectID = user.ID

	if !r.verifier.Matches(ctx, req.Password, user.PasswordHash) {
		logger.WithField("subject_id", user.ID).Debug("submitted password does not match")
		return r.refuseLogin(ctx, challenge, attempt, models.AttemptOutcomeBadPassword, false, MessageInvalidCredentials)
	}

	ban, err := r.bans.Evaluate(ctx, user.ID, now)
	if err != nil {
		return nil, err
	}
	if ban.Blocked {
		return r.refuseLogin(ctx, challenge, attempt, models.AttemptOutcomeBanned, true, banMessage(ban))
	}

	if r.settings.LobbyScope != "" && challenge.RequestsScope(r.settings.LobbyScope) && !user.HasLinkedPlatform() {
		return r.requireAccountLink(ctx, challenge, attempt)
	}

	attempt.Success = true
	attempt.Outcome = models.AttemptOutcomeSuccess
	if err = r.recordAttempt(ctx, attempt); err != nil {
		return nil, err
	}

	redirectTo, err := r.provider.AcceptLoginRequest(ctx, &hydra.AcceptLoginRequestParams{
		LoginChallenge:   challenge.ID,
		SubjectID:        user.ID,
		Remember:         r.settings.RememberDuration > 0,
		RememberDuration: r.settings.RememberDuration,
	})
	if err != nil {
		return nil, err
	}

	r.metrics.Observe(FlowLogin, string(models.AttemptOutcomeSuccess))
	logger.WithField("subject_id", user.ID).Info("login accepted")

	return &Outcome{RedirectTo: redirectTo}, nil
}

// DescribeConsent returns the consent challenge with the subject's account for display. Nothing is
// reported to the authorization server.
func (r *ChallengeResolver) DescribeConsent(ctx context.Context, challengeID string) (*ConsentDescription, error) {
	challenge, err := r.provider.GetConsentRequest(ctx, challengeID)
	if err != nil {
		return nil, err
	}

	user, err := r.users.GetByID(ctx, challenge.Subject)
	if err != nil {
		return nil, collaboratorError("subject lookup", err)
	}

	return &ConsentDescription{Challenge: challenge, User: user}, nil
}

// ResolveConsent permits or denies a consent challenge. A permit grants the requested scopes the caller
// agreed to, all of them when the caller names none, and copies the subject's permissions into the
// roles claim. A deny never touches the permission store.
func (r *ChallengeResolver) ResolveConsent(
	ctx context.Context,
	challengeID string,
	decision ConsentDecision,
	scopes []string,
) (*Outcome, error) {
	logger := util.Log(ctx).WithFields(map[string]any{
		"consent_challenge": challengeID,
		"decision":          decision,
	})

	challenge, err := r.provider.GetConsentRequest(ctx, challengeID)
	if err != nil {
		return nil, err
	}

	if decision != ConsentPermit {
		redirectTo, rejectErr := r.provider.RejectConsentRequest(ctx, &hydra.RejectRequestParams{
			Challenge:        challenge.ID,
			Error:            rejectError,
			ErrorDescription: "consent_denied",
		})
		if rejectErr != nil {
			return nil, rejectErr
		}

		r.metrics.Observe(FlowConsent, string(ConsentDeny))
		logger.Info("consent denied")
		return &Outcome{RedirectTo: redirectTo}, nil
	}

	permissions, err := r.users.GetPermissions(ctx, challenge.Subject)
	if err != nil {
		logger.WithError(err).Error("permission lookup failed")
		return nil, collaboratorError("permission lookup", err)
	}

	roles := make([]string, 0, len(permissions))
	roles = append(roles, permissions...)
	claims := map[string]any{ClaimRoles: roles}

	granted := grantableScopes(challenge.RequestedScopes, scopes)
	redirectTo, err := r.provider.AcceptConsentRequest(ctx, &hydra.AcceptConsentRequestParams{
		ConsentChallenge:  challenge.ID,
		GrantScope:        granted,
		GrantAudience:     challenge.RequestedAudience,
		Remember:          r.settings.RememberDuration > 0,
		RememberDuration:  r.settings.RememberDuration,
		AccessTokenExtras: claims,
		IDTokenExtras:     claims,
	})
	if err != nil {
		return nil, err
	}

	r.metrics.Observe(FlowConsent, string(ConsentPermit))
	logger.WithFields(map[string]any{
		"subject_id":  challenge.Subject,
		"grant_scope": granted,
		"roles":       roles,
	}).Info("consent granted")

	return &Outcome{RedirectTo: redirectTo}, nil
}

// ResolveLogout accepts a logout challenge.
func (r *ChallengeResolver) ResolveLogout(ctx context.Context, challengeID string) (*Outcome, error) {
	challenge, err := r.provider.GetLogoutRequest(ctx, challengeID)
	if err != nil {
		return nil, err
	}

	redirectTo, err := r.provider.AcceptLogoutRequest(ctx, &hydra.AcceptLogoutRequestParams{LogoutChallenge: challenge.ID})
	if err != nil {
		return nil, err
	}

	r.metrics.Observe(FlowLogout, "accepted")
	return &Outcome{RedirectTo: redirectTo}, nil
}

func (r *ChallengeResolver) acceptSkippedLogin(ctx context.Context, challenge *models.Challenge) (*Outcome, error) {
	redirectTo, err := r.provider.AcceptLoginRequest(ctx, &hydra.AcceptLoginRequestParams{
		LoginChallenge:   challenge.ID,
		SubjectID:        challenge.Subject,
		Remember:         r.settings.RememberDuration > 0,
		RememberDuration: r.settings.RememberDuration,
	})
	if err != nil {
		return nil, err
	}

	r.metrics.Observe(FlowLogin, "skipped")
	util.Log(ctx).WithFields(map[string]any{
		"login_challenge": challenge.ID,
		"subject_id":      challenge.Subject,
	}).Debug("login skipped by the authorization server")

	return &Outcome{RedirectTo: redirectTo}, nil
}

// refuseLogin records the attempt and rejects the challenge. credentialsValid marks refusals that
// happen after the password matched, those do not count towards throttling.
func (r *ChallengeResolver) refuseLogin(
	ctx context.Context,
	challenge *models.Challenge,
	attempt *models.LoginAttempt,
	outcome models.AttemptOutcome,
	credentialsValid bool,
	message string,
) (*Outcome, error) {
	attempt.Success = credentialsValid
	attempt.Outcome = outcome
	if err := r.recordAttempt(ctx, attempt); err != nil {
		return nil, err
	}

	redirectTo, err := r.provider.RejectLoginRequest(ctx, &hydra.RejectRequestParams{
		Challenge:        challenge.ID,
		Error:            rejectError,
		ErrorDescription: string(outcome),
	})
	if err != nil {
		return nil, err
	}

	r.metrics.Observe(FlowLogin, string(outcome))
	util.Log(ctx).WithFields(map[string]any{
		"login_challenge": challenge.ID,
		"subject_id":      attempt.SubjectID,
		"outcome":         outcome,
	}).Info("login refused")

	return &Outcome{RedirectTo: redirectTo, Message: message}, nil
}

// requireAccountLink rejects the challenge and sends the caller to the account linking page. The
// provider redirect is used when no linking page is configured.
func (r *ChallengeResolver) requireAccountLink(
	ctx context.Context,
	challenge *models.Challenge,
	attempt *models.LoginAttempt,
) (*Outcome, error) {
	outcome, err := r.refuseLogin(ctx, challenge, attempt, models.AttemptOutcomeLinkRequired, true, MessageLinkRequired)
	if err != nil {
		return nil, err
	}

	if r.settings.AccountLinkURL != "" {
		outcome.RedirectTo = r.settings.AccountLinkURL
	}
	return outcome, nil
}

func (r *ChallengeResolver) newAttempt(
	ctx context.Context,
	challenge *models.Challenge,
	originIP string,
	now time.Time,
) *models.LoginAttempt {
	properties := map[string]any{
		"login_challenge": challenge.ID,
		"client_id":       challenge.ClientID,
	}
	if userAgent := utils.UserAgentFromContext(ctx); userAgent != "" {
		properties["user_agent"] = userAgent
	}
	if deviceID := utils.DeviceIDFromContext(ctx); deviceID != "" {
		properties["device_id"] = deviceID
	}

	return &models.LoginAttempt{
		OriginIP:    originIP,
		AttemptedAt: now,
		Properties:  properties,
	}
}

func (r *ChallengeResolver) recordAttempt(ctx context.Context, attempt *models.LoginAttempt) error {
	if err := r.attempts.Append(ctx, attempt); err != nil {
		util.Log(ctx).WithError(err).WithField("outcome", attempt.Outcome).Error("could not record login attempt")
		return collaboratorError("record login attempt", err)
	}
	return nil
}

func banMessage(ban BanDecision) string {
	message := "account is banned permanently"
	if !ban.Permanent() {
		message = fmt.Sprintf("account is banned until %s", ban.Until.UTC().Format(time.RFC3339))
	}
	if ban.Reason != "" {
		message = fmt.Sprintf("%s: %s", message, ban.Reason)
	}
	return message
}

// grantableScopes keeps the chosen scopes the challenge asked for, in the challenge's order.
func grantableScopes(requested, chosen []string) []string {
	if len(chosen) == 0 {
		return append([]string{}, requested...)
	}

	wanted := make(map[string]struct{}, len(chosen))
	for _, scope := range chosen {
		wanted[scope] = struct{}{}
	}

	granted := make([]string, 0, len(chosen))
	for _, scope := range requested {
		if _, ok := wanted[scope]; ok {
			granted = append(granted, scope)
		}
	}
	return granted
}

func usernamePrefix(username string) string {
	if len(username) > 3 {
		return username[:3] + "***"
	}
	return "***"
}
