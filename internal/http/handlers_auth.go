package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/brightcart/storefront/config"
	domainsession "github.com/brightcart/storefront/internal/domain/session"
	"github.com/brightcart/storefront/internal/ports"
	"github.com/brightcart/storefront/internal/service"
)

// SessionServiceInterface defines the session operations the handlers need.
type SessionServiceInterface interface {
	Login(ctx context.Context, previousSessionID string, creds ports.Credentials) (service.Session, error)
	Logout(ctx context.Context, sessionID string) error
	Current(ctx context.Context, sessionID string) (service.Session, error)
	UpdateUser(ctx context.Context, sessionID string, patch domainsession.ProfilePatch) (domainsession.UserProfile, error)
}

// AuthHandlers provides HTTP handlers for the session lifecycle.
type AuthHandlers struct {
	Svc      SessionServiceInterface
	Notifier ports.Notifier
	Config   config.SessionConfig
	Logger   *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// Login handles credential sign-in.
// POST /api/auth/login {email, password}.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !DecodeJSON(w, r, &body) {
		return
	}
	if body.Email == "" || body.Password == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "missing_credentials",
			Err:     errors.New("email and password are required"),
		})
		return
	}

	sess, err := h.Svc.Login(r.Context(), SessionID(r.Context()), ports.Credentials{
		Email:    body.Email,
		Password: body.Password,
	})
	if err != nil {
		h.logger().WarnContext(r.Context(), "login failed", "error", err)
		WriteAppError(w, err)
		return
	}

	http.SetCookie(w, SessionCookie(h.Config, sess.Record.ID))
	http.SetCookie(w, TokenCookie(h.Config, sess.Record.AccessToken()))

	WriteJSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{"user": sess.Record.User},
	})
}

// Logout tears the session down and clears both cookies. Always succeeds
// from the client's point of view, even when the upstream call fails.
// POST /api/auth/logout.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	sid := SessionID(r.Context())
	if err := h.Svc.Logout(r.Context(), sid); err != nil {
		// Local teardown failed; clear cookies regardless so the browser
		// does not keep presenting a dead session.
		h.logger().ErrorContext(r.Context(), "logout failed", "session_id", sid, "error", err)
	}

	http.SetCookie(w, expiredCookie(h.Config, h.Config.CookieName))
	http.SetCookie(w, expiredCookie(h.Config, h.Config.TokenCookieName))
	w.WriteHeader(http.StatusNoContent)
}

// Session reports the current session state plus any pending one-time
// notices. The frontend polls this on boot to hydrate.
// GET /api/auth/session.
func (h *AuthHandlers) Session(w http.ResponseWriter, r *http.Request) {
	st, ok := getSessionState(r.Context())
	if !ok {
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: "session_not_hydrated",
			Err:     errors.New("session middleware missing"),
		})
		return
	}
	if st.Pending {
		writePending(w, r)
		return
	}

	var notices []ports.Notice
	if h.Notifier != nil && st.ID != "" {
		notices = h.Notifier.Drain(r.Context(), st.ID)
	}
	if notices == nil {
		notices = []ports.Notice{}
	}

	payload := map[string]any{
		"authenticated": st.Session.Authenticated,
		"notices":       notices,
	}
	if st.Session.Authenticated {
		payload["user"] = st.Session.Record.User
	}
	WriteJSON(w, http.StatusOK, map[string]any{"data": payload})
}
