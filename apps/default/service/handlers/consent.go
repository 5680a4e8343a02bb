package handlers

import (
	"net/http"

	"github.com/antinvestor/service-login-consent/apps/default/service/business"
	"github.com/antinvestor/service-login-consent/apps/default/service/hydra"
	"github.com/gorilla/csrf"
	"github.com/pitabwire/util"
)

type consentPage struct {
	*business.ConsentDescription
	CsrfToken string `json:"csrf_token,omitempty"`
}

// ShowConsentEndpoint returns the consent challenge and the account it is for. Nothing is decided here.
func (h *AuthServer) ShowConsentEndpoint(rw http.ResponseWriter, req *http.Request) error {
	ctx := req.Context()
	log := util.Log(ctx).WithField("endpoint", "ShowConsentEndpoint")

	consentChallenge, err := hydra.GetConsentChallengeID(req)
	if err != nil {
		log.WithError(err).Warn("missing or invalid consent_challenge parameter")
		h.writeBadRequest(ctx, rw, err)
		return nil
	}

	description, err := h.resolver.DescribeConsent(ctx, consentChallenge)
	if err != nil {
		return err
	}

	h.writeJSON(ctx, rw, http.StatusOK, &consentPage{
		ConsentDescription: description,
		CsrfToken:          csrf.Token(req),
	})
	return nil
}

// SubmitConsentEndpoint applies the posted decision. Repeated scope fields narrow what is granted.
func (h *AuthServer) SubmitConsentEndpoint(rw http.ResponseWriter, req *http.Request) error {
	ctx := req.Context()
	log := util.Log(ctx).WithField("endpoint", "SubmitConsentEndpoint")

	consentChallenge, err := hydra.GetConsentChallengeID(req)
	if err != nil {
		log.WithError(err).Warn("missing or invalid consent_challenge parameter")
		h.writeBadRequest(ctx, rw, err)
		return nil
	}

	decision, err := business.ParseConsentDecision(req.PostFormValue("decision"))
	if err != nil {
		log.WithError(err).Warn("invalid consent decision")
		h.writeBadRequest(ctx, rw, err)
		return nil
	}

	outcome, err := h.resolver.ResolveConsent(ctx, consentChallenge, decision, req.PostForm["scope"])
	if err != nil {
		return err
	}

	h.writeOutcome(rw, req, outcome)
	return nil
}
