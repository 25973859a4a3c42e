// Package service contains the gateway's orchestration layer: the session
// service owns the login/logout lifecycle and the periodic revalidation
// sweep over stored sessions.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	domainsession "github.com/brightcart/storefront/internal/domain/session"
	"github.com/brightcart/storefront/internal/observability/statsd"
	"github.com/brightcart/storefront/internal/ports"
	"github.com/brightcart/storefront/internal/token"
	"github.com/google/uuid"
)

// SessionServiceOptions groups dependencies for SessionService.
type SessionServiceOptions struct {
	Store ports.TokenStore
	Auth  ports.UpstreamAuth

	// Optional.
	Notifier           ports.Notifier
	Logger             *slog.Logger
	Metrics            statsd.Sink
	RevalidateInterval time.Duration

	// TokenValid overrides the expiry check, for tests. Defaults to the
	// unverified exp-claim check in internal/token.
	TokenValid func(raw string) bool

	// NewID overrides session ID generation, for tests.
	NewID func() string
}

// SessionService owns the session lifecycle: exchanging credentials for a
// stored session, resolving the current state per request, tearing sessions
// down, and periodically revalidating what is stored.
type SessionService struct {
	store    ports.TokenStore
	auth     ports.UpstreamAuth
	notifier ports.Notifier
	logger   *slog.Logger
	metrics  statsd.Sink

	revalidateInterval time.Duration
	tokenValid         func(string) bool
	newID              func() string
}

// Session is the per-request view of a session: the stored record plus the
// derived authenticated state. State is always derived, never stored.
type Session struct {
	Record        domainsession.Record
	Authenticated bool
}

// User returns the cached profile, or nil for anonymous sessions.
func (s Session) User() *domainsession.UserProfile {
	if !s.Authenticated {
		return nil
	}
	return s.Record.User
}

// NewSessionService constructs a SessionService and validates required
// dependencies.
func NewSessionService(opts SessionServiceOptions) (*SessionService, error) {
	if opts.Store == nil {
		return nil, errors.New("token store is required")
	}
	if opts.Auth == nil {
		return nil, errors.New("upstream auth is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	interval := opts.RevalidateInterval
	if interval <= 0 {
		interval = time.Minute
	}
	tokenValid := opts.TokenValid
	if tokenValid == nil {
		tokenValid = token.Valid
	}
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}

	return &SessionService{
		store:              opts.Store,
		auth:               opts.Auth,
		notifier:           opts.Notifier,
		logger:             logger,
		metrics:            opts.Metrics,
		revalidateInterval: interval,
		tokenValid:         tokenValid,
		newID:              newID,
	}, nil
}

// Login exchanges credentials for a new stored session. Only a successful
// login displaces the previous session: a rejected login leaves stored
// state untouched, so a failed re-login never destroys the session the
// caller still holds.
func (s *SessionService) Login(ctx context.Context, previousSessionID string, creds ports.Credentials) (Session, error) {
	result, err := s.auth.Login(ctx, creds)
	if err != nil {
		s.count("session.login", map[string]string{"result": "failure"})
		return Session{}, err
	}

	if previousSessionID != "" {
		if err := s.store.Delete(ctx, previousSessionID); err != nil {
			s.logger.WarnContext(ctx, "discard previous session failed",
				"session_id", previousSessionID, "error", err)
		}
	}

	rec := domainsession.Record{
		ID:    s.newID(),
		Token: result.Token,
		User:  &result.User,
	}
	if err := s.store.Save(ctx, rec); err != nil {
		s.count("session.login", map[string]string{"result": "failure"})
		return Session{}, fmt.Errorf("save session: %w", err)
	}

	s.count("session.login", map[string]string{"result": "success"})
	s.logger.InfoContext(ctx, "user logged in", "session_id", rec.ID, "user_id", result.User.ID)

	return Session{Record: rec, Authenticated: rec.Authenticated(s.tokenValid)}, nil
}

// Logout tears the session down. The upstream call is best-effort: local
// state is always cleared, and calling Logout on an unknown session is a
// no-op.
func (s *SessionService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}

	rec, err := s.store.Get(ctx, sessionID)
	if err == nil && rec.Token != nil {
		if upErr := s.auth.Logout(ctx, rec.AccessToken(), rec.RefreshToken()); upErr != nil {
			s.logger.WarnContext(ctx, "upstream logout failed, clearing locally anyway",
				"session_id", sessionID, "error", upErr)
		}
	} else if err != nil && !errors.Is(err, ports.ErrNotFound) {
		s.logger.WarnContext(ctx, "read session during logout failed",
			"session_id", sessionID, "error", err)
	}

	if err := s.store.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	s.count("session.logout", nil)
	return nil
}

// Current resolves the session for a request. Unknown or expired sessions
// come back anonymous; a store failure is reported so callers can render a
// neutral pending state instead of treating the visitor as signed out.
func (s *SessionService) Current(ctx context.Context, sessionID string) (Session, error) {
	if sessionID == "" {
		return Session{}, nil
	}

	rec, err := s.store.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return Session{}, nil
		}
		return Session{}, fmt.Errorf("get session: %w", err)
	}

	return Session{Record: rec, Authenticated: rec.Authenticated(s.tokenValid)}, nil
}

// UpdateUser merges a profile patch into the cached profile. For anonymous
// sessions this is a no-op.
func (s *SessionService) UpdateUser(ctx context.Context, sessionID string, patch domainsession.ProfilePatch) (domainsession.UserProfile, error) {
	sess, err := s.Current(ctx, sessionID)
	if err != nil {
		return domainsession.UserProfile{}, err
	}
	if !sess.Authenticated || sess.Record.User == nil {
		return domainsession.UserProfile{}, nil
	}

	updated := sess.Record.User.Merge(patch)
	sess.Record.User = &updated
	if err := s.store.Save(ctx, sess.Record); err != nil {
		return domainsession.UserProfile{}, fmt.Errorf("save updated profile: %w", err)
	}
	return updated, nil
}

// Run executes the periodic revalidation sweep until the context is
// cancelled. Sessions holding an expired access token and no usable refresh
// token are force-logged-out; sessions with a refresh token are left for
// the transport to refresh on their next request.
func (s *SessionService) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "starting session revalidation sweep", "interval", s.revalidateInterval)

	ticker := time.NewTicker(s.revalidateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "session revalidation sweep stopped")
			return ctx.Err()
		case <-ticker.C:
			s.revalidateAll(ctx)
		}
	}
}

// expiredPurger is implemented by stores that can drop expired records in
// bulk (the postgres store); backends with native TTLs expire on their own.
type expiredPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

func (s *SessionService) revalidateAll(ctx context.Context) {
	if purger, ok := s.store.(expiredPurger); ok {
		if n, err := purger.PurgeExpired(ctx); err != nil {
			s.logger.WarnContext(ctx, "purge expired sessions failed", "error", err)
		} else if n > 0 {
			if s.metrics != nil {
				s.metrics.Count("session.purged", n, nil)
			}
		}
	}

	ids, err := s.store.IDs(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "list sessions for revalidation failed", "error", err)
		return
	}

	s.gauge("session.active", float64(len(ids)))

	for _, id := range ids {
		if ctx.Err() != nil {
			return
		}
		s.revalidate(ctx, id)
	}
}

func (s *SessionService) revalidate(ctx context.Context, sessionID string) {
	rec, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return // gone or unreadable; nothing to revalidate
	}
	if rec.User == nil {
		return // anonymous record, nothing to expire
	}

	access := rec.AccessToken()
	if !domainsession.IsPlaceholderToken(access) && s.tokenValid(access) {
		return
	}
	if !domainsession.IsPlaceholderToken(rec.RefreshToken()) {
		return // refreshable on next request
	}

	if err := s.store.Delete(ctx, sessionID); err != nil {
		s.logger.WarnContext(ctx, "forced logout delete failed", "session_id", sessionID, "error", err)
		return
	}
	if s.notifier != nil {
		s.notifier.Push(ctx, sessionID, ports.Notice{
			Level:   ports.NoticeWarning,
			Message: "Your session has expired. Please sign in again.",
		})
	}
	s.count("session.forced_logout", nil)
	s.logger.InfoContext(ctx, "session force-logged-out", "session_id", sessionID)
}

func (s *SessionService) count(name string, tags map[string]string) {
	if s.metrics != nil {
		s.metrics.Count(name, 1, tags)
	}
}

func (s *SessionService) gauge(name string, v float64) {
	if s.metrics != nil {
		s.metrics.Gauge(name, v, nil)
	}
}
