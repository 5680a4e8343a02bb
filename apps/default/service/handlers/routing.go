package handlers

import (
	"context"
	"encoding/hex"
	"net/http"

	"github.com/antinvestor/service-login-consent/apps/default/utils"
	"github.com/gorilla/csrf"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var ErrMissingCsrfSecret = errors.New("csrf is enabled but no csrf secret is configured")

// SetupRouterV1 builds the public router. Pages under /s carry the device cookie and, unless disabled,
// csrf protection on their form posts.
func (h *AuthServer) SetupRouterV1(ctx context.Context) (http.Handler, error) {
	router := mux.NewRouter().StrictSlash(true)

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		h.writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	if h.gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	h.addHandler(router, h.ErrorEndpoint, "/error", "ErrorEndpoint", http.MethodGet)

	sRouter := router.PathPrefix("/s").Subrouter()

	if h.config.CsrfEnabled {
		if h.config.CsrfSecret == "" {
			return nil, ErrMissingCsrfSecret
		}
		csrfSecret, err := hex.DecodeString(h.config.CsrfSecret)
		if err != nil {
			return nil, errors.Wrap(err, "failed to decode csrf secret")
		}
		sRouter.Use(csrf.Protect(csrfSecret, csrf.Secure(true), csrf.Path("/s")))
	}

	sRouter.Use(h.deviceIDMiddleware)

	h.addHandler(sRouter, h.ShowLoginEndpoint, "/login", "ShowLoginEndpoint", http.MethodGet)
	h.addHandler(sRouter, h.SubmitLoginEndpoint, "/login", "SubmitLoginEndpoint", http.MethodPost)
	h.addHandler(sRouter, h.ShowConsentEndpoint, "/consent", "ShowConsentEndpoint", http.MethodGet)
	h.addHandler(sRouter, h.SubmitConsentEndpoint, "/consent", "SubmitConsentEndpoint", http.MethodPost)
	h.addHandler(sRouter, h.ShowLogoutEndpoint, "/logout", "ShowLogoutEndpoint", http.MethodGet)

	trusted, err := utils.ParseTrustedProxies(h.config.TrustedProxies)
	if err != nil {
		return nil, err
	}

	return trustedProxyHeaders(trusted, router), nil
}

// trustedProxyHeaders applies the forwarding headers only to requests arriving from a trusted proxy.
// X-Forwarded-For is cut down to the nearest untrusted hop before ProxyHeaders reads it, since
// ProxyHeaders takes the leftmost entry.
func trustedProxyHeaders(trusted utils.TrustedProxies, next http.Handler) http.Handler {
	proxied := handlers.ProxyHeaders(next)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(trusted) == 0 || !trusted.Contains(utils.ClientIP(r)) {
			next.ServeHTTP(w, r)
			return
		}

		if clientIP := trusted.ForwardedClientIP(r.Header.Values("X-Forwarded-For")); clientIP != "" {
			r.Header.Set("X-Forwarded-For", clientIP)
		}
		proxied.ServeHTTP(w, r)
	})
}
