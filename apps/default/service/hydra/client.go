package hydra

import (
	"context"
	"fmt"
	"net/http"

	"github.com/antinvestor/service-login-consent/apps/default/service/models"
	hydraclientgo "github.com/ory/hydra-client-go/v2"
	"github.com/pitabwire/util"
	"github.com/pkg/errors"
)

// ErrProviderProtocol marks failures talking to the authorization server: transport errors, non 2xx answers,
// unknown challenges and malformed payloads. Challenges are single use so callers must not retry.
var ErrProviderProtocol = errors.New("authorization provider protocol error")

type (
	AcceptLoginRequestParams struct {
		LoginChallenge string
		SubjectID      string

		Remember         bool
		RememberDuration int64
	}
	AcceptConsentRequestParams struct {
		ConsentChallenge string
		GrantScope       []string
		GrantAudience    []string

		Remember         bool
		RememberDuration int64

		AccessTokenExtras map[string]any
		IDTokenExtras     map[string]any
	}
	RejectRequestParams struct {
		Challenge        string
		Error            string
		ErrorDescription string
		StatusCode       int64
	}
	AcceptLogoutRequestParams struct {
		LogoutChallenge string
	}

	// Client is the part of the hydra admin API the login and consent flows depend on.
	Client interface {
		GetLoginRequest(ctx context.Context, loginChallenge string) (*models.Challenge, error)
		AcceptLoginRequest(ctx context.Context, params *AcceptLoginRequestParams) (string, error)
		RejectLoginRequest(ctx context.Context, params *RejectRequestParams) (string, error)
		GetConsentRequest(ctx context.Context, consentChallenge string) (*models.Challenge, error)
		AcceptConsentRequest(ctx context.Context, params *AcceptConsentRequestParams) (string, error)
		RejectConsentRequest(ctx context.Context, params *RejectRequestParams) (string, error)
		GetLogoutRequest(ctx context.Context, logoutChallenge string) (*models.Challenge, error)
		AcceptLogoutRequest(ctx context.Context, params *AcceptLogoutRequestParams) (string, error)
	}
	DefaultHydra struct {
		cli      *hydraclientgo.APIClient
		adminURL string
	}
)

// NewDefaultHydra builds an admin API client. Unless keepAdminPrefix is set, requests go to
// /oauth2/auth/requests/... instead of the /admin/oauth2/auth/requests/... routes hydra-client-go targets.
func NewDefaultHydra(httpClient *http.Client, adminURL string, keepAdminPrefix bool) *DefaultHydra {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if !keepAdminPrefix {
		httpClient = withLegacyAdminPaths(httpClient)
	}

	configuration := hydraclientgo.NewConfiguration()
	configuration.Servers = hydraclientgo.ServerConfigurations{
		{
			URL: adminURL,
		},
	}
	configuration.HTTPClient = httpClient
	apiClient := hydraclientgo.NewAPIClient(configuration)

	return &DefaultHydra{
		cli:      apiClient,
		adminURL: adminURL,
	}
}

func GetLoginChallengeID(r *http.Request) (string, error) {
	return getChallengeID(r, "login_challenge")
}

func GetLogoutChallengeID(r *http.Request) (string, error) {
	return getChallengeID(r, "logout_challenge")
}

func GetConsentChallengeID(r *http.Request) (string, error) {
	return getChallengeID(r, "consent_challenge")
}

// getChallengeID reads the challenge from the query string, falling back to the posted form.
func getChallengeID(r *http.Request, query string) (string, error) {
	challenge := r.URL.Query().Get(query)
	if challenge == "" {
		challenge = r.PostFormValue(query)
	}

	if challenge == "" {
		return "", fmt.Errorf("%s parameter is missing or empty", query)
	}

	return challenge, nil
}

func (h *DefaultHydra) Cli() hydraclientgo.OAuth2API {
	return h.cli.OAuth2API
}

func statusCode(httpResp *http.Response) int {
	if httpResp != nil {
		return httpResp.StatusCode
	}
	return 0
}

func providerError(operation string, err error) error {
	return errors.WithStack(fmt.Errorf("%w: %s: %w", ErrProviderProtocol, operation, err))
}

func (h *DefaultHydra) GetLoginRequest(ctx context.Context, loginChallenge string) (*models.Challenge, error) {
	logger := util.Log(ctx).WithFields(map[string]any{
		"operation":       "GetLoginRequest",
		"admin_url":       h.adminURL,
		"login_challenge": loginChallenge,
	})

	if loginChallenge == "" {
		return nil, providerError("get login request", errors.New("login challenge is required"))
	}

	hlr, httpResp, err := h.Cli().GetOAuth2LoginRequest(ctx).LoginChallenge(loginChallenge).Execute()
	if err != nil {
		logger.WithError(err).WithField("status_code", statusCode(httpResp)).
			Error("hydra login request retrieval failed")
		return nil, providerError("get login request", err)
	}

	if hlr == nil {
		return nil, providerError("get login request", errors.New("hydra returned empty login request"))
	}

	client := hlr.GetClient()
	challenge := &models.Challenge{
		ID:                hlr.GetChallenge(),
		ClientID:          client.GetClientId(),
		RequestURL:        hlr.GetRequestUrl(),
		RequestedAudience: hlr.GetRequestedAccessTokenAudience(),
		RequestedScopes:   hlr.GetRequestedScope(),
		Subject:           hlr.GetSubject(),
		Skip:              hlr.GetSkip(),
	}
	if challenge.ID == "" {
		challenge.ID = loginChallenge
	}

	logger.WithFields(map[string]any{
		"client_id": challenge.ClientID,
		"skip":      challenge.Skip,
		"subject":   challenge.Subject,
	}).Debug("login request retrieved successfully")

	return challenge, nil
}

func (h *DefaultHydra) AcceptLoginRequest(ctx context.Context, params *AcceptLoginRequestParams) (string, error) {
	logger := util.Log(ctx).WithFields(map[string]any{
		"operation":       "AcceptLoginRequest",
		"login_challenge": params.LoginChallenge,
		"subject_id":      params.SubjectID,
	})

	if params.LoginChallenge == "" {
		return "", providerError("accept login request", errors.New("login challenge is required"))
	}
	if params.SubjectID == "" {
		return "", providerError("accept login request", errors.New("subject ID is required"))
	}

	alr := hydraclientgo.NewAcceptOAuth2LoginRequest(params.SubjectID)
	alr.SetRemember(params.Remember)
	alr.SetRememberFor(params.RememberDuration)
	alr.Amr = []string{"pwd"}

	resp, httpResp, err := h.Cli().AcceptOAuth2LoginRequest(ctx).
		LoginChallenge(params.LoginChallenge).AcceptOAuth2LoginRequest(*alr).Execute()
	if err != nil {
		logger.WithError(err).WithField("status_code", statusCode(httpResp)).
			Error("hydra login acceptance failed")
		return "", providerError("accept login request", err)
	}

	if resp == nil {
		return "", providerError("accept login request", errors.New("hydra returned empty response"))
	}

	logger.WithField("redirect_to", resp.RedirectTo).Debug("login request accepted")
	return resp.RedirectTo, nil
}

func (h *DefaultHydra) RejectLoginRequest(ctx context.Context, params *RejectRequestParams) (string, error) {
	logger := util.Log(ctx).WithFields(map[string]any{
		"operation":       "RejectLoginRequest",
		"login_challenge": params.Challenge,
		"error":           params.Error,
		"description":     params.ErrorDescription,
	})

	if params.Challenge == "" {
		return "", providerError("reject login request", errors.New("login challenge is required"))
	}

	resp, httpResp, err := h.Cli().RejectOAuth2LoginRequest(ctx).
		LoginChallenge(params.Challenge).RejectOAuth2Request(*rejection(params)).Execute()
	if err != nil {
		logger.WithError(err).WithField("status_code", statusCode(httpResp)).
			Error("hydra login rejection failed")
		return "", providerError("reject login request", err)
	}

	if resp == nil {
		return "", providerError("reject login request", errors.New("hydra returned empty response"))
	}

	logger.WithField("redirect_to", resp.RedirectTo).Debug("login request rejected")
	return resp.RedirectTo, nil
}

func (h *DefaultHydra) GetConsentRequest(ctx context.Context, consentChallenge string) (*models.Challenge, error) {
	logger := util.Log(ctx).WithFields(map[string]any{
		"operation":         "GetConsentRequest",
		"admin_url":         h.adminURL,
		"consent_challenge": consentChallenge,
	})

	if consentChallenge == "" {
		return nil, providerError("get consent request", errors.New("consent challenge is required"))
	}

	hcr, httpResp, err := h.Cli().GetOAuth2ConsentRequest(ctx).ConsentChallenge(consentChallenge).Execute()
	if err != nil {
		logger.WithError(err).WithField("status_code", statusCode(httpResp)).
			Error("hydra consent request retrieval failed")
		return nil, providerError("get consent request", err)
	}

	if hcr == nil {
		return nil, providerError("get consent request", errors.New("hydra returned empty consent request"))
	}

	client := hcr.GetClient()
	challenge := &models.Challenge{
		ID:                hcr.GetChallenge(),
		ClientID:          client.GetClientId(),
		RequestURL:        hcr.GetRequestUrl(),
		RequestedAudience: hcr.GetRequestedAccessTokenAudience(),
		RequestedScopes:   hcr.GetRequestedScope(),
		Subject:           hcr.GetSubject(),
		Skip:              hcr.GetSkip(),
	}
	if challenge.ID == "" {
		challenge.ID = consentChallenge
	}

	logger.WithFields(map[string]any{
		"client_id":          challenge.ClientID,
		"subject":            challenge.Subject,
		"requested_scope":    challenge.RequestedScopes,
		"requested_audience": challenge.RequestedAudience,
	}).Debug("consent request retrieved successfully")

	return challenge, nil
}

func (h *DefaultHydra) AcceptConsentRequest(ctx context.Context, params *AcceptConsentRequestParams) (string, error) {
	logger := util.Log(ctx).WithFields(map[string]any{
		"operation":         "AcceptConsentRequest",
		"consent_challenge": params.ConsentChallenge,
		"grant_scope":       params.GrantScope,
	})

	if params.ConsentChallenge == "" {
		return "", providerError("accept consent request", errors.New("consent challenge is required"))
	}

	sessionData := hydraclientgo.AcceptOAuth2ConsentRequestSession{
		AccessToken: params.AccessTokenExtras,
		IdToken:     params.IDTokenExtras,
	}

	acr := hydraclientgo.NewAcceptOAuth2ConsentRequest()
	acr.SetGrantScope(params.GrantScope)
	acr.SetGrantAccessTokenAudience(params.GrantAudience)
	acr.SetRemember(params.Remember)
	acr.SetRememberFor(params.RememberDuration)
	acr.SetSession(sessionData)

	resp, httpResp, err := h.Cli().AcceptOAuth2ConsentRequest(ctx).
		ConsentChallenge(params.ConsentChallenge).AcceptOAuth2ConsentRequest(*acr).Execute()
	if err != nil {
		logger.WithError(err).WithField("status_code", statusCode(httpResp)).
			Error("hydra consent acceptance failed")
		return "", providerError("accept consent request", err)
	}

	if resp == nil {
		return "", providerError("accept consent request", errors.New("hydra returned empty response"))
	}

	logger.WithField("redirect_to", resp.RedirectTo).Debug("consent request accepted")
	return resp.RedirectTo, nil
}

func (h *DefaultHydra) RejectConsentRequest(ctx context.Context, params *RejectRequestParams) (string, error) {
	logger := util.Log(ctx).WithFields(map[string]any{
		"operation":         "RejectConsentRequest",
		"consent_challenge": params.Challenge,
		"error":             params.Error,
	})

	if params.Challenge == "" {
		return "", providerError("reject consent request", errors.New("consent challenge is required"))
	}

	resp, httpResp, err := h.Cli().RejectOAuth2ConsentRequest(ctx).
		ConsentChallenge(params.Challenge).RejectOAuth2Request(*rejection(params)).Execute()
	if err != nil {
		logger.WithError(err).WithField("status_code", statusCode(httpResp)).
			Error("hydra consent rejection failed")
		return "", providerError("reject consent request", err)
	}

	if resp == nil {
		return "", providerError("reject consent request", errors.New("hydra returned empty response"))
	}

	logger.WithField("redirect_to", resp.RedirectTo).Debug("consent request rejected")
	return resp.RedirectTo, nil
}

func (h *DefaultHydra) GetLogoutRequest(ctx context.Context, logoutChallenge string) (*models.Challenge, error) {
	logger := util.Log(ctx).WithFields(map[string]any{
		"operation":        "GetLogoutRequest",
		"logout_challenge": logoutChallenge,
	})

	if logoutChallenge == "" {
		return nil, providerError("get logout request", errors.New("logout challenge is required"))
	}

	hlr, httpResp, err := h.Cli().GetOAuth2LogoutRequest(ctx).LogoutChallenge(logoutChallenge).Execute()
	if err != nil {
		logger.WithError(err).WithField("status_code", statusCode(httpResp)).
			Error("hydra logout request retrieval failed")
		return nil, providerError("get logout request", err)
	}

	if hlr == nil {
		return nil, providerError("get logout request", errors.New("hydra returned empty logout request"))
	}

	client := hlr.GetClient()
	return &models.Challenge{
		ID:         logoutChallenge,
		ClientID:   client.GetClientId(),
		RequestURL: hlr.GetRequestUrl(),
		Subject:    hlr.GetSubject(),
	}, nil
}

func (h *DefaultHydra) AcceptLogoutRequest(ctx context.Context, params *AcceptLogoutRequestParams) (string, error) {
	logger := util.Log(ctx).WithFields(map[string]any{
		"operation":        "AcceptLogoutRequest",
		"logout_challenge": params.LogoutChallenge,
	})

	if params.LogoutChallenge == "" {
		return "", providerError("accept logout request", errors.New("logout challenge is required"))
	}

	resp, httpResp, err := h.Cli().AcceptOAuth2LogoutRequest(ctx).LogoutChallenge(params.LogoutChallenge).Execute()
	if err != nil {
		logger.WithError(err).WithField("status_code", statusCode(httpResp)).
			Error("hydra logout acceptance failed")
		return "", providerError("accept logout request", err)
	}

	if resp == nil {
		return "", providerError("accept logout request", errors.New("hydra returned empty response"))
	}

	logger.WithField("redirect_to", resp.RedirectTo).Debug("logout request accepted")
	return resp.RedirectTo, nil
}

func rejection(params *RejectRequestParams) *hydraclientgo.RejectOAuth2Request {
	rr := hydraclientgo.NewRejectOAuth2Request()
	rr.SetError(params.Error)
	rr.SetErrorDescription(params.ErrorDescription)
	if params.StatusCode > 0 {
		rr.SetStatusCode(params.StatusCode)
	}
	return rr
}
