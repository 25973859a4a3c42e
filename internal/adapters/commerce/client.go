// Package commerce is the HTTP client for the upstream commerce API. Token
// endpoints (login, logout, refresh) go through a plain client so their
// failures reach the calling flow directly; resource endpoints go through
// the bearer transport and get refresh-on-401 for free.
package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	domainsession "github.com/brightcart/storefront/internal/domain/session"
	apperrors "github.com/brightcart/storefront/internal/errors"
	"github.com/brightcart/storefront/internal/observability/statsd"
	"github.com/brightcart/storefront/internal/ports"
	jmespath "github.com/jmespath-community/go-jmespath"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/oauth2"
)

// userIDExpr resolves the upstream user identifier, which appears as either
// `_id` (Mongo-style) or `id` depending on the upstream version.
const userIDExpr = "_id || id"

// Options groups construction parameters for Client.
type Options struct {
	// BaseURL is the upstream API root, e.g. http://localhost:5000/api/v1.
	BaseURL string

	// Transport handles resource calls; normally the bearer transport.
	// Token endpoints never go through it.
	Transport http.RoundTripper

	UserAgent string
	Timeout   time.Duration
	Logger    *slog.Logger
	Metrics   statsd.Sink
}

// Client calls the upstream commerce API.
type Client struct {
	baseURL   string
	userAgent string

	resources *http.Client
	auth      *http.Client

	logger  *slog.Logger
	metrics statsd.Sink
}

var _ ports.UpstreamAuth = (*Client)(nil)

// New creates an upstream API client.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = "storefront-gateway"
	}

	// Some upstream deployments set auxiliary cookies alongside the token
	// response; a proper jar keeps those scoped correctly.
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("build cookie jar: %w", err)
	}

	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	return &Client{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		userAgent: userAgent,
		resources: &http.Client{Transport: transport, Jar: jar, Timeout: timeout},
		auth:      &http.Client{Jar: jar, Timeout: timeout},
		logger:    logger,
		metrics:   opts.Metrics,
	}, nil
}

// envelope is the upstream response wrapper.
type envelope struct {
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) do(ctx context.Context, client *http.Client, method, path string, body any, extraHeader http.Header) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range extraHeader {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := client.Do(req)
	c.timing("upstream.request", time.Since(start), map[string]string{"path": path})
	if err != nil {
		// The bearer transport surfaces invalidated sessions as app errors;
		// pass those through instead of reclassifying as connectivity.
		if apperrors.IsAuthExpired(err) {
			return nil, err
		}
		return nil, apperrors.Network("upstream request failed", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, apperrors.Network("read upstream response", err)
	}

	var env envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil && resp.StatusCode < 300 {
			return nil, apperrors.Decodef("malformed upstream response for %s %s", method, path)
		}
	}

	if resp.StatusCode >= 300 {
		msg := env.Message
		if msg == "" {
			msg = fmt.Sprintf("upstream returned %s", resp.Status)
		}
		return nil, apperrors.Upstream(resp.StatusCode, msg)
	}
	if env.Success != nil && !*env.Success {
		msg := env.Message
		if msg == "" {
			msg = "upstream reported failure"
		}
		return nil, apperrors.Upstream(resp.StatusCode, msg)
	}

	if env.Data != nil {
		return env.Data, nil
	}
	return raw, nil
}

// Login exchanges credentials for a token pair and a canonicalized profile.
func (c *Client) Login(ctx context.Context, creds ports.Credentials) (ports.LoginResult, error) {
	data, err := c.do(ctx, c.auth, http.MethodPost, "/auth/login", map[string]string{
		"email":    creds.Email,
		"password": creds.Password,
	}, nil)
	if err != nil {
		c.count("upstream.login", map[string]string{"result": "failure"})
		return ports.LoginResult{}, err
	}

	result, err := parseLoginPayload(data)
	if err != nil {
		c.count("upstream.login", map[string]string{"result": "failure"})
		return ports.LoginResult{}, err
	}

	c.count("upstream.login", map[string]string{"result": "success"})
	return result, nil
}

// Logout invalidates the session server-side. Failures are reported but the
// caller is expected to tear down local state regardless.
func (c *Client) Logout(ctx context.Context, accessToken, refreshToken string) error {
	var body any
	if !domainsession.IsPlaceholderToken(refreshToken) {
		body = map[string]string{"refreshToken": refreshToken}
	}

	header := make(http.Header)
	if !domainsession.IsPlaceholderToken(accessToken) {
		header.Set("Authorization", "Bearer "+accessToken)
	}

	_, err := c.do(ctx, c.auth, http.MethodDelete, "/auth/logout", body, header)
	return err
}

// Refresh mints a new token pair from a refresh token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	data, err := c.do(ctx, c.auth, http.MethodPost, "/auth/refresh-token", map[string]string{
		"refreshToken": refreshToken,
	}, nil)
	if err != nil {
		return nil, err
	}

	var payload struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, apperrors.Decode("malformed refresh response")
	}
	if domainsession.IsPlaceholderToken(payload.AccessToken) {
		return nil, apperrors.MissingField("accessToken", "refresh response carried no access token")
	}

	return &oauth2.Token{
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
		TokenType:    "Bearer",
	}, nil
}

// parseLoginPayload canonicalizes the upstream login response: the user id
// may arrive as `_id` or `id`, and role/isVerified/isActive default
// permissively when the upstream omits them.
func parseLoginPayload(data json.RawMessage) (ports.LoginResult, error) {
	var generic map[string]any
	if err := json.Unmarshal(data, &generic); err != nil {
		return ports.LoginResult{}, apperrors.Decode("malformed login response")
	}

	idVal, err := jmespath.Search(userIDExpr, generic)
	if err != nil {
		return ports.LoginResult{}, apperrors.Decode("malformed login response")
	}
	id, _ := idVal.(string)
	if id == "" {
		return ports.LoginResult{}, apperrors.MissingField("_id", "login response carried no user id")
	}

	var payload struct {
		domainsession.UserProfile
		Token        string `json:"token"`
		RefreshToken string `json:"refreshToken"`
		IsVerified   *bool  `json:"isVerified"`
		IsActive     *bool  `json:"isActive"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return ports.LoginResult{}, apperrors.Decode("malformed login response")
	}

	user := payload.UserProfile
	user.ID = id
	if payload.IsVerified != nil {
		user.IsVerified = *payload.IsVerified
	}
	if payload.IsActive != nil {
		user.IsActive = *payload.IsActive
	}
	user.ApplyDefaults(payload.IsVerified != nil, payload.IsActive != nil)

	if domainsession.IsPlaceholderToken(payload.Token) {
		return ports.LoginResult{}, apperrors.MissingField("token", "login response carried no access token")
	}

	return ports.LoginResult{
		User: user,
		Token: &oauth2.Token{
			AccessToken:  payload.Token,
			RefreshToken: payload.RefreshToken,
			TokenType:    "Bearer",
		},
	}, nil
}

func (c *Client) count(name string, tags map[string]string) {
	if c.metrics != nil {
		c.metrics.Count(name, 1, tags)
	}
}

func (c *Client) timing(name string, d time.Duration, tags map[string]string) {
	if c.metrics != nil {
		c.metrics.Timing(name, d, tags)
	}
}
