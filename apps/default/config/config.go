package config

import (
	"time"

	"github.com/pitabwire/frame/config"
)

type LoginConsentConfig struct {
	config.ConfigurationDefault

	// ExposeErrors returns detailed error messages in 500 responses; keep it off outside development.
	ExposeErrors bool `envDefault:"false" env:"EXPOSE_ERRORS"`

	SessionRememberDuration int64 `envDefault:"7776000" env:"SESSION_REMEMBER_DURATION"`

	// Login throttling, evaluated against the login attempt log per origin IP.
	FailedLoginAccountThreshold  int `envDefault:"5"  env:"FAILED_LOGIN_ACCOUNT_THRESHOLD"`
	FailedLoginAttemptThreshold  int `envDefault:"10" env:"FAILED_LOGIN_ATTEMPT_THRESHOLD"`
	FailedLoginThrottlingMinutes int `envDefault:"5"  env:"FAILED_LOGIN_THROTTLING_MINUTES"`
	FailedLoginDaysToCheck       int `envDefault:"1"  env:"FAILED_LOGIN_DAYS_TO_CHECK"`

	// Clients asking for LobbyScope need an account with a linked game platform.
	LobbyScope     string `envDefault:"lobby" env:"LOBBY_SCOPE"`
	AccountLinkURL string `envDefault:""      env:"ACCOUNT_LINK_URL"`

	// HydraAdminPathPrefix keeps the /admin prefix hydra-client-go puts on admin routes.
	// Leave false for admin APIs serving /oauth2/auth/requests/... at the root.
	HydraAdminPathPrefix       bool `envDefault:"false" env:"HYDRA_ADMIN_PATH_PREFIX"`
	HydraRequestTimeoutSeconds int  `envDefault:"10"    env:"HYDRA_REQUEST_TIMEOUT_SECONDS"`

	// TrustedProxies lists the CIDR ranges or addresses whose forwarding headers name the client.
	// Headers from any other peer are ignored and the socket address keys login throttling.
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`

	// CsrfEnabled guards the form posts under /s. Only tests turn it off.
	// CsrfSecret is a hex encoded 32 byte key and has to be set whenever csrf is enabled.
	CsrfEnabled          bool   `envDefault:"true" env:"CSRF_ENABLED"`
	CsrfSecret           string `envDefault:""     env:"CSRF_SECRET"`
	SecureCookieHashKey  string `envDefault:"d1f4f1a3b8d84f79e6d4b8b5c3f04725a8a7d6b4c2f9a987d5e4f3a2b1c086d1" env:"SECURE_COOKIE_HASH_KEY"`
	SecureCookieBlockKey string `envDefault:"a7e7b4f8d2e5a3c1f0b6d9d4f3a5c20798d1c1e7c4f6a3e4b0e5c2f4a7d6b301" env:"SECURE_COOKIE_BLOCK_KEY"`
}

func (c *LoginConsentConfig) ThrottlingCooldown() time.Duration {
	return time.Duration(c.FailedLoginThrottlingMinutes) * time.Minute
}

func (c *LoginConsentConfig) FailureLookback() time.Duration {
	return time.Duration(c.FailedLoginDaysToCheck) * 24 * time.Hour
}

func (c *LoginConsentConfig) HydraRequestTimeout() time.Duration {
	return time.Duration(c.HydraRequestTimeoutSeconds) * time.Second
}
