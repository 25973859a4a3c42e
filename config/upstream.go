package config

import (
	"strings"
	"time"
)

// UpstreamConfig contains configuration for the upstream commerce REST API.
// A single base URL selects the API origin; the gateway is not otherwise
// parameterized on the upstream.
type UpstreamConfig struct {
	// BaseURL is the origin of the commerce API (e.g. "https://api.example.com/api/v1").
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:5000/api/v1"`

	// Timeout bounds each upstream request, including the refresh-and-replay path.
	Timeout time.Duration `env:"TIMEOUT" envDefault:"30s"`

	// UserAgent is sent on every upstream request.
	UserAgent string `env:"USER_AGENT" envDefault:"storefront-gateway"`
}

// Sanitize applies guardrails to upstream API configuration values.
func (u *UpstreamConfig) Sanitize() {
	u.BaseURL = strings.TrimRight(strings.TrimSpace(u.BaseURL), "/")
	if u.Timeout <= 0 {
		u.Timeout = 30 * time.Second
	}
	if u.UserAgent == "" {
		u.UserAgent = "storefront-gateway"
	}
}
