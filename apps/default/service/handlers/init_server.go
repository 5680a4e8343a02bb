package handlers

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/antinvestor/service-login-consent/apps/default/config"
	"github.com/antinvestor/service-login-consent/apps/default/service/business"
	"github.com/antinvestor/service-login-consent/apps/default/utils"
	"github.com/gorilla/mux"
	"github.com/gorilla/securecookie"
	"github.com/pitabwire/util"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	SessionKeyDeviceStorageName = "device_storage"
	SessionKeyDeviceIDKey       = "link_id"

	deviceCookieMaxAge = 473040000 // 15 years
)

// ChallengeResolver is the decision engine behind the login, consent and logout pages.
type ChallengeResolver interface {
	DescribeLogin(ctx context.Context, challengeID string) (*business.LoginDescription, error)
	ResolveLogin(ctx context.Context, req business.LoginRequest) (*business.Outcome, error)
	DescribeConsent(ctx context.Context, challengeID string) (*business.ConsentDescription, error)
	ResolveConsent(
		ctx context.Context,
		challengeID string,
		decision business.ConsentDecision,
		scopes []string,
	) (*business.Outcome, error)
	ResolveLogout(ctx context.Context, challengeID string) (*business.Outcome, error)
}

type AuthServer struct {
	config           *config.LoginConsentConfig
	resolver         ChallengeResolver
	gatherer         prometheus.Gatherer
	loginCookieCodec []securecookie.Codec
}

func NewAuthServer(
	ctx context.Context,
	cfg *config.LoginConsentConfig,
	resolver ChallengeResolver,
	gatherer prometheus.Gatherer,
) (*AuthServer, error) {
	h := &AuthServer{
		config:   cfg,
		resolver: resolver,
		gatherer: gatherer,
	}

	err := h.setupCookieCodecs(cfg)
	if err != nil {
		util.Log(ctx).WithError(err).Error("failed to setup cookie codecs")
		return nil, err
	}

	return h, nil
}

func (h *AuthServer) Config() *config.LoginConsentConfig {
	return h.config
}

func (h *AuthServer) setupCookieCodecs(cfg *config.LoginConsentConfig) error {
	hashKey, err := hex.DecodeString(cfg.SecureCookieHashKey)
	if err != nil {
		return errors.Wrap(err, "failed to decode secure cookie hash key")
	}

	blockKey, err := hex.DecodeString(cfg.SecureCookieBlockKey)
	if err != nil {
		return errors.Wrap(err, "failed to decode secure cookie block key")
	}

	h.loginCookieCodec = securecookie.CodecsFromPairs(hashKey, blockKey)
	return nil
}

type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (h *AuthServer) writeJSON(ctx context.Context, w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	err := json.NewEncoder(w).Encode(payload)
	if err != nil {
		util.Log(ctx).WithError(err).Error("could not write response")
	}
}

func (h *AuthServer) writeError(ctx context.Context, w http.ResponseWriter, err error, code int, msg string) {
	log := util.Log(ctx).
		WithField("code", code).
		WithField("message", msg).WithError(err)
	log.Error("internal service error")

	message := msg
	if h.config.ExposeErrors {
		message = fmt.Sprintf("%s: %s", msg, err)
	}

	h.writeJSON(ctx, w, code, &ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// writeOutcome redirects when the challenge was resolved in the caller's favour. Refusals are answered
// with the provider redirect and the message so the page can show why.
func (h *AuthServer) writeOutcome(w http.ResponseWriter, req *http.Request, outcome *business.Outcome) {
	if !outcome.Refused() {
		http.Redirect(w, req, outcome.RedirectTo, http.StatusSeeOther)
		return
	}

	h.writeJSON(req.Context(), w, http.StatusOK, outcome)
}

// deviceIDMiddleware keeps a signed device id cookie on the browser and puts the device id and user
// agent on the request context for the attempt log.
func (h *AuthServer) deviceIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var deviceID string
		deviceCookie, err := r.Cookie(SessionKeyDeviceStorageName)
		if err == nil {
			decodeErr := securecookie.DecodeMulti(SessionKeyDeviceIDKey, deviceCookie.Value, &deviceID, h.loginCookieCodec...)
			if decodeErr != nil {
				deviceID = ""
			}
		}

		if deviceID == "" {
			deviceID = util.IDString()

			encoded, encodeErr := securecookie.EncodeMulti(SessionKeyDeviceIDKey, deviceID, h.loginCookieCodec...)
			if encodeErr != nil {
				h.writeError(ctx, w, encodeErr, http.StatusInternalServerError, "failed to encode device cookie")
				return
			}

			http.SetCookie(w, &http.Cookie{
				Name:     SessionKeyDeviceStorageName,
				Value:    encoded,
				Path:     "/",
				MaxAge:   deviceCookieMaxAge,
				Secure:   true,
				HttpOnly: true,
				SameSite: http.SameSiteStrictMode,
				Expires:  time.Now().Add(deviceCookieMaxAge * time.Second),
			})
		}

		ctx = utils.DeviceIDToContext(ctx, deviceID)
		ctx = utils.UserAgentToContext(ctx, r.UserAgent())

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *AuthServer) addHandler(router *mux.Router,
	f func(w http.ResponseWriter, r *http.Request) error, path string, name string, method string) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := f(w, r)
		if err != nil {
			util.Log(r.Context()).WithError(err).WithField("path", path).WithField("name", name).Error("handler error")
			h.writeError(r.Context(), w, err, http.StatusInternalServerError, "could not process request")
		}
	})

	router.Path(path).
		Name(name).
		Handler(handler).
		Methods(method)
}
