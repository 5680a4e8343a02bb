package handlers

import (
	"net/http"

	"github.com/antinvestor/service-login-consent/apps/default/service/hydra"
	"github.com/pitabwire/util"
)

func (h *AuthServer) ShowLogoutEndpoint(rw http.ResponseWriter, req *http.Request) error {
	ctx := req.Context()
	logger := util.Log(ctx).WithField("endpoint", "ShowLogoutEndpoint")

	logoutChallenge, err := hydra.GetLogoutChallengeID(req)
	if err != nil {
		logger.WithError(err).Info("couldn't get a valid logout challenge")
		h.writeBadRequest(ctx, rw, err)
		return nil
	}

	outcome, err := h.resolver.ResolveLogout(ctx, logoutChallenge)
	if err != nil {
		return err
	}

	http.Redirect(rw, req, outcome.RedirectTo, http.StatusSeeOther)
	return nil
}
