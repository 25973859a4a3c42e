// Package auth contains simple hand-written test doubles for the session
// ports. These are lightweight and suitable for unit tests without codegen.
package auth

import (
	"context"
	"sync"

	domainsession "github.com/brightcart/storefront/internal/domain/session"
	"github.com/brightcart/storefront/internal/ports"
	"golang.org/x/oauth2"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.UpstreamAuth  = (*MockUpstreamAuth)(nil)
	_ ports.Notifier      = (*RecordingNotifier)(nil)
	_ ports.SessionEvents = (*RecordingEvents)(nil)
)

// MockUpstreamAuth simulates the commerce auth endpoints with deterministic
// defaults. Function fields override individual behaviors per test.
type MockUpstreamAuth struct {
	LoginFunc   func(ctx context.Context, creds ports.Credentials) (ports.LoginResult, error)
	LogoutFunc  func(ctx context.Context, accessToken, refreshToken string) error
	RefreshFunc func(ctx context.Context, refreshToken string) (*oauth2.Token, error)

	// Defaults used when the function fields are nil.
	DefaultUser  domainsession.UserProfile
	DefaultToken *oauth2.Token

	mu           sync.Mutex
	LoginCalls   int
	LogoutCalls  int
	RefreshCalls int
}

// NewMockUpstreamAuth creates a MockUpstreamAuth with sensible defaults.
func NewMockUpstreamAuth() *MockUpstreamAuth {
	return &MockUpstreamAuth{
		DefaultUser: domainsession.UserProfile{
			ID:         "mock-user-1",
			Name:       "Mock User",
			Email:      "mock.user@example.com",
			Role:       domainsession.RoleUser,
			IsVerified: true,
			IsActive:   true,
		},
		DefaultToken: &oauth2.Token{
			AccessToken:  "mock-access",
			RefreshToken: "mock-refresh",
			TokenType:    "Bearer",
		},
	}
}

func (m *MockUpstreamAuth) Login(ctx context.Context, creds ports.Credentials) (ports.LoginResult, error) {
	m.mu.Lock()
	m.LoginCalls++
	m.mu.Unlock()

	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, creds)
	}

	tok := m.DefaultToken
	if tok == nil {
		tok = &oauth2.Token{AccessToken: "mock-access", RefreshToken: "mock-refresh"}
	}
	return ports.LoginResult{User: m.DefaultUser, Token: tok}, nil
}

func (m *MockUpstreamAuth) Logout(ctx context.Context, accessToken, refreshToken string) error {
	m.mu.Lock()
	m.LogoutCalls++
	m.mu.Unlock()

	if m.LogoutFunc != nil {
		return m.LogoutFunc(ctx, accessToken, refreshToken)
	}
	return nil
}

func (m *MockUpstreamAuth) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	m.mu.Lock()
	m.RefreshCalls++
	m.mu.Unlock()

	if m.RefreshFunc != nil {
		return m.RefreshFunc(ctx, refreshToken)
	}
	return &oauth2.Token{AccessToken: "refreshed-access", RefreshToken: refreshToken}, nil
}

// RecordingNotifier captures pushed notices per session and serves them
// back on Drain, mirroring the real notice queue semantics.
type RecordingNotifier struct {
	mu      sync.Mutex
	notices map[string][]ports.Notice
}

// NewRecordingNotifier creates an empty RecordingNotifier.
func NewRecordingNotifier() *RecordingNotifier {
	return &RecordingNotifier{notices: make(map[string][]ports.Notice)}
}

func (r *RecordingNotifier) Push(_ context.Context, sessionID string, n ports.Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices[sessionID] = append(r.notices[sessionID], n)
}

func (r *RecordingNotifier) Drain(_ context.Context, sessionID string) []ports.Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.notices[sessionID]
	delete(r.notices, sessionID)
	return out
}

// Peek returns pushed notices without draining them.
func (r *RecordingNotifier) Peek(sessionID string) []ports.Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ports.Notice(nil), r.notices[sessionID]...)
}

// RecordingEvents captures session invalidation events.
type RecordingEvents struct {
	mu     sync.Mutex
	events []InvalidationEvent
}

// InvalidationEvent is one captured SessionInvalidated call.
type InvalidationEvent struct {
	SessionID string
	Reason    string
}

func (r *RecordingEvents) SessionInvalidated(_ context.Context, sessionID, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, InvalidationEvent{SessionID: sessionID, Reason: reason})
}

// Events returns the captured invalidation events.
func (r *RecordingEvents) Events() []InvalidationEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]InvalidationEvent(nil), r.events...)
}
