package hydra

import (
	"net/http"
	"strings"
)

const (
	prefixedAdminPath = "/admin/oauth2/"
	legacyAdminPath   = "/oauth2/"
)

// legacyAdminPathTransport rewrites /admin/oauth2/... to /oauth2/... before the request leaves the process.
type legacyAdminPathTransport struct {
	next http.RoundTripper
}

func (t *legacyAdminPathTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !strings.Contains(req.URL.Path, prefixedAdminPath) {
		return t.next.RoundTrip(req)
	}

	rewritten := req.Clone(req.Context())
	rewritten.URL.Path = strings.Replace(req.URL.Path, prefixedAdminPath, legacyAdminPath, 1)
	rewritten.URL.RawPath = ""
	return t.next.RoundTrip(rewritten)
}

func withLegacyAdminPaths(httpClient *http.Client) *http.Client {
	next := httpClient.Transport
	if next == nil {
		next = http.DefaultTransport
	}

	client := *httpClient
	client.Transport = &legacyAdminPathTransport{next: next}
	return &client
}
