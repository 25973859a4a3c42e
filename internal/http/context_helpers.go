package httpx

import (
	"context"

	"github.com/brightcart/storefront/internal/service"
)

// sessionKey is an unexported context key type to avoid collisions across packages.
// Centralized in this file so all handlers/middleware use the same key.
type sessionKey struct{}

// sessionState is what the hydration middleware stashes on the context: the
// resolved session plus whether resolution failed (pending).
type sessionState struct {
	ID      string
	Session service.Session
	Pending bool
}

// setSessionState returns a child context carrying the resolved session state.
func setSessionState(ctx context.Context, st sessionState) context.Context {
	return context.WithValue(ctx, sessionKey{}, st)
}

// getSessionState returns the session state and whether hydration ran at all.
func getSessionState(ctx context.Context) (sessionState, bool) {
	st, ok := ctx.Value(sessionKey{}).(sessionState)
	return st, ok
}

// CurrentSession returns the resolved session for the request, and whether
// the hydration middleware ran. Anonymous requests return a zero Session.
func CurrentSession(ctx context.Context) (service.Session, bool) {
	st, ok := getSessionState(ctx)
	return st.Session, ok
}

// SessionID returns the gateway session ID bound to the request, or "".
func SessionID(ctx context.Context) string {
	st, _ := getSessionState(ctx)
	return st.ID
}

// IsAuthenticated reports whether the request carries an authenticated session.
func IsAuthenticated(ctx context.Context) bool {
	st, _ := getSessionState(ctx)
	return st.Session.Authenticated
}
