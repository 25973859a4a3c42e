// Package transport implements the outbound HTTP transport for upstream
// commerce API calls: it attaches the session's bearer token and performs a
// single refresh-and-replay when the upstream answers 401.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	domainsession "github.com/brightcart/storefront/internal/domain/session"
	apperrors "github.com/brightcart/storefront/internal/errors"
	"github.com/brightcart/storefront/internal/observability/statsd"
	"github.com/brightcart/storefront/internal/ports"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

type contextKey struct{ name string }

var sessionIDKey = &contextKey{"session-id"}

// WithSessionID binds a session ID to the request context so the transport
// can look up the session's tokens.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

// SessionID extracts the session ID bound by WithSessionID, or "".
func SessionID(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDKey).(string)
	return id
}

// RefreshFunc mints a new token pair from a refresh token. It is injected
// rather than taken from ports.UpstreamAuth to keep the transport free of a
// dependency on the client that uses it.
type RefreshFunc func(ctx context.Context, refreshToken string) (*oauth2.Token, error)

// Options groups construction parameters for BearerTransport.
type Options struct {
	// Base is the underlying round tripper. Defaults to http.DefaultTransport.
	Base http.RoundTripper

	// Store resolves session IDs to token records. Required.
	Store ports.TokenStore

	// Refresh mints a replacement token pair on 401. Required.
	Refresh RefreshFunc

	// Events receives invalidation signals when a session cannot be
	// refreshed. The transport itself never navigates or redirects.
	Events ports.SessionEvents

	Logger  *slog.Logger
	Metrics statsd.Sink
}

// BearerTransport decorates an http.RoundTripper with bearer attachment and
// refresh-on-401. Each request is replayed at most once; concurrent 401s for
// the same session share a single refresh call.
type BearerTransport struct {
	base    http.RoundTripper
	store   ports.TokenStore
	refresh RefreshFunc
	events  ports.SessionEvents
	logger  *slog.Logger
	metrics statsd.Sink

	group singleflight.Group
}

var _ http.RoundTripper = (*BearerTransport)(nil)

// New creates a BearerTransport and validates required dependencies.
func New(opts Options) (*BearerTransport, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if opts.Refresh == nil {
		return nil, fmt.Errorf("refresh func is required")
	}

	base := opts.Base
	if base == nil {
		base = http.DefaultTransport
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &BearerTransport{
		base:    base,
		store:   opts.Store,
		refresh: opts.Refresh,
		events:  opts.Events,
		logger:  logger,
		metrics: opts.Metrics,
	}, nil
}

func (t *BearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	sid := SessionID(ctx)
	if sid == "" {
		return t.base.RoundTrip(req)
	}

	rec, err := t.store.Get(ctx, sid)
	if err != nil {
		if !errors.Is(err, ports.ErrNotFound) {
			// A broken store must not take the request down with it; the
			// upstream will answer 401 if auth was actually needed.
			t.logger.WarnContext(ctx, "token store read failed", "session_id", sid, "error", err)
		}
		return t.base.RoundTrip(req)
	}

	authReq := req.Clone(ctx)
	attached := false
	if access := rec.AccessToken(); !domainsession.IsPlaceholderToken(access) {
		authReq.Header.Set("Authorization", "Bearer "+access)
		attached = true
	}

	resp, err := t.base.RoundTrip(authReq)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || !attached {
		return resp, nil
	}

	// A request whose body cannot be rebuilt cannot be replayed; hand the
	// 401 back untouched rather than half-retry.
	if req.Body != nil && req.GetBody == nil {
		return resp, nil
	}

	io.Copy(io.Discard, resp.Body) //nolint:errcheck
	resp.Body.Close()              //nolint:errcheck

	access, err := t.refreshSession(ctx, sid)
	if err != nil {
		return nil, err
	}

	replay := req.Clone(ctx)
	if req.GetBody != nil {
		body, bodyErr := req.GetBody()
		if bodyErr != nil {
			return nil, fmt.Errorf("rebuild request body for replay: %w", bodyErr)
		}
		replay.Body = body
	}
	replay.Header.Set("Authorization", "Bearer "+access)

	t.count("transport.replay", nil)

	// One replay only: a second 401 propagates to the caller.
	return t.base.RoundTrip(replay)
}

// refreshSession performs the shared refresh for a session. Concurrent
// callers for the same session ID wait on one upstream refresh call and all
// receive the resulting access token.
func (t *BearerTransport) refreshSession(ctx context.Context, sid string) (string, error) {
	v, err, shared := t.group.Do(sid, func() (any, error) {
		rec, err := t.store.Get(ctx, sid)
		if errors.Is(err, ports.ErrNotFound) {
			return nil, t.invalidate(ctx, sid, "session record missing", nil)
		}
		if err != nil {
			// A flapping store is not an expired session; surface the error
			// without tearing anything down.
			return nil, fmt.Errorf("read session for refresh: %w", err)
		}

		refreshToken := rec.RefreshToken()
		if domainsession.IsPlaceholderToken(refreshToken) {
			return nil, t.invalidate(ctx, sid, "missing refresh token", nil)
		}

		tok, err := t.refresh(ctx, refreshToken)
		if err != nil {
			return nil, t.invalidate(ctx, sid, "refresh rejected", err)
		}
		if tok == nil || domainsession.IsPlaceholderToken(tok.AccessToken) {
			return nil, t.invalidate(ctx, sid, "refresh returned no token", nil)
		}

		// Some token endpoints omit the refresh token on rotation; keep
		// the previous one in that case.
		if tok.RefreshToken == "" {
			tok.RefreshToken = refreshToken
		}

		rec.Token = tok
		if saveErr := t.store.Save(ctx, rec); saveErr != nil {
			t.logger.ErrorContext(ctx, "persist refreshed token failed", "session_id", sid, "error", saveErr)
		}

		t.count("transport.refresh", map[string]string{"result": "success"})
		t.logger.DebugContext(ctx, "token refreshed", "session_id", sid)
		return tok.AccessToken, nil
	})
	if shared {
		t.count("transport.refresh", map[string]string{"result": "deduped"})
	}
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// invalidate tears down the session and emits the invalidation event. It
// returns the auth-expired error for the caller to propagate.
func (t *BearerTransport) invalidate(ctx context.Context, sid, reason string, cause error) error {
	if err := t.store.Delete(ctx, sid); err != nil {
		t.logger.WarnContext(ctx, "delete invalid session failed", "session_id", sid, "error", err)
	}
	if t.events != nil {
		t.events.SessionInvalidated(ctx, sid, reason)
	}
	t.count("transport.refresh", map[string]string{"result": "failure"})
	t.logger.InfoContext(ctx, "session invalidated", "session_id", sid, "reason", reason, "error", cause)

	appErr := apperrors.AuthExpired("session expired: " + reason)
	if cause != nil {
		appErr.Cause = cause
	}
	return appErr
}

func (t *BearerTransport) count(name string, tags map[string]string) {
	if t.metrics != nil {
		t.metrics.Count(name, 1, tags)
	}
}
