// Package ports defines interfaces (hexagonal ports) for session-related
// behavior. Implementations live in internal/adapters; orchestration in
// internal/service.
package ports

import (
	"context"
	"errors"

	domainsession "github.com/brightcart/storefront/internal/domain/session"
	"golang.org/x/oauth2"
)

// ErrNotFound is returned by TokenStore implementations when no record
// exists for the given session ID.
var ErrNotFound = errors.New("session record not found")

// TokenStore persists and retrieves per-session token records.
// Implementations must treat corrupt records as absent (fail closed).
type TokenStore interface {
	Save(ctx context.Context, rec domainsession.Record) error
	Get(ctx context.Context, id string) (domainsession.Record, error)
	Delete(ctx context.Context, id string) error

	// IDs lists the identifiers of currently stored sessions.
	// Used by the periodic revalidation sweep.
	IDs(ctx context.Context) ([]string, error)
}

// Credentials carries the login form input.
type Credentials struct {
	Email    string
	Password string
}

// LoginResult is the normalized outcome of a successful upstream login:
// a canonicalized profile and the bearer token pair.
type LoginResult struct {
	User  domainsession.UserProfile
	Token *oauth2.Token
}

// UpstreamAuth performs the bespoke token operations against the commerce API.
// These calls bypass the bearer-refresh transport: their failures belong to
// the calling flow, not the interceptor.
type UpstreamAuth interface {
	// Login exchanges credentials for a token pair and profile.
	Login(ctx context.Context, creds Credentials) (LoginResult, error)

	// Logout invalidates the session server-side. Callers treat failures as
	// best-effort: local teardown proceeds regardless.
	Logout(ctx context.Context, accessToken, refreshToken string) error

	// Refresh mints a new token pair from a refresh token.
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// NoticeLevel classifies one-time user-visible notifications.
type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

// Notice is a one-time user-visible notification, drained on next render.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
}

// Notifier queues one-time notices per session. Push is best-effort; a
// failed notice must never fail the operation that produced it.
type Notifier interface {
	Push(ctx context.Context, sessionID string, n Notice)
	Drain(ctx context.Context, sessionID string) []Notice
}

// SessionEvents receives session lifecycle signals emitted below the HTTP
// layer. The transport never navigates; it emits an invalidation event and
// the subscribing layer translates it into a redirect on the next request.
type SessionEvents interface {
	SessionInvalidated(ctx context.Context, sessionID, reason string)
}
