package config

import "time"

// SessionConfig groups session lifecycle and cookie configuration.
//
// The gateway keeps one durable record per browser session (access token,
// refresh token, cached profile) and mirrors the access token into a
// short-lived cookie for cheap reads.
type SessionConfig struct {
	// CookieName is the name of the gateway session ID cookie.
	CookieName string `env:"SESSION_COOKIE_NAME" envDefault:"sid"`

	// TokenCookieName is the name of the access-token mirror cookie.
	TokenCookieName string `env:"SESSION_TOKEN_COOKIE_NAME" envDefault:"token"`

	// TTL is the lifetime of the session record and both cookies.
	TTL time.Duration `env:"SESSION_TTL" envDefault:"168h"`

	// RevalidateInterval is how often the background revalidator sweeps
	// stored sessions for expired access tokens.
	RevalidateInterval time.Duration `env:"SESSION_REVALIDATE_INTERVAL" envDefault:"60s"`

	// CookieSecure marks session cookies Secure. Disable only for local dev.
	CookieSecure bool `env:"SESSION_COOKIE_SECURE" envDefault:"true"`

	// CookieDomain is the domain for session cookies.
	// Leave empty to use the request domain.
	CookieDomain string `env:"SESSION_COOKIE_DOMAIN" envDefault:""`
}

// Sanitize applies guardrails to session configuration values.
func (s *SessionConfig) Sanitize() {
	if s.CookieName == "" {
		s.CookieName = "sid"
	}
	if s.TokenCookieName == "" {
		s.TokenCookieName = "token"
	}
	if s.TTL < time.Minute {
		s.TTL = 168 * time.Hour
	}
	if s.RevalidateInterval < time.Second {
		s.RevalidateInterval = 60 * time.Second
	}
}
