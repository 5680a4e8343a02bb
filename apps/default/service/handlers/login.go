package handlers

import (
	"net/http"

	"github.com/antinvestor/service-login-consent/apps/default/service/business"
	"github.com/antinvestor/service-login-consent/apps/default/service/hydra"
	"github.com/antinvestor/service-login-consent/apps/default/utils"
	"github.com/gorilla/csrf"
	"github.com/pitabwire/util"
)

type loginPage struct {
	*business.LoginDescription
	CsrfToken string `json:"csrf_token,omitempty"`
}

// ShowLoginEndpoint describes a login challenge to the login page. Challenges hydra lets us skip are
// accepted and redirected at once.
func (h *AuthServer) ShowLoginEndpoint(rw http.ResponseWriter, req *http.Request) error {
	ctx := req.Context()
	log := util.Log(ctx).WithField("endpoint", "ShowLoginEndpoint")

	loginChallenge, err := hydra.GetLoginChallengeID(req)
	if err != nil {
		log.WithError(err).Info("couldn't get a valid login challenge")
		h.writeBadRequest(ctx, rw, err)
		return nil
	}

	description, err := h.resolver.DescribeLogin(ctx, loginChallenge)
	if err != nil {
		return err
	}

	if description.Outcome != nil {
		h.writeOutcome(rw, req, description.Outcome)
		return nil
	}

	h.writeJSON(ctx, rw, http.StatusOK, &loginPage{
		LoginDescription: description,
		CsrfToken:        csrf.Token(req),
	})
	return nil
}

// SubmitLoginEndpoint resolves a posted username and password against the login challenge.
func (h *AuthServer) SubmitLoginEndpoint(rw http.ResponseWriter, req *http.Request) error {
	ctx := req.Context()
	log := util.Log(ctx).WithField("endpoint", "SubmitLoginEndpoint")

	loginChallenge, err := hydra.GetLoginChallengeID(req)
	if err != nil {
		log.WithError(err).Info("couldn't get a valid login challenge")
		h.writeBadRequest(ctx, rw, err)
		return nil
	}

	outcome, err := h.resolver.ResolveLogin(ctx, business.LoginRequest{
		Challenge: loginChallenge,
		Username:  req.PostFormValue("username"),
		Password:  req.PostFormValue("password"),
		OriginIP:  utils.ClientIP(req),
	})
	if err != nil {
		return err
	}

	h.writeOutcome(rw, req, outcome)
	return nil
}
