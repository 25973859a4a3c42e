package httpx

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"runtime/debug"
	"strings"
	"time"

	"github.com/brightcart/storefront/config"
	"github.com/brightcart/storefront/internal/observability/statsd"
	"github.com/brightcart/storefront/internal/ports"
	"github.com/brightcart/storefront/internal/service"
	"github.com/brightcart/storefront/internal/transport"
)

// Logging returns a middleware that logs HTTP requests and responses.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			const defaultHTTPStatus = 200
			ww := &respWriter{ResponseWriter: w, status: defaultHTTPStatus}
			next.ServeHTTP(ww, r)
			logger.Info("http",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

type respWriter struct {
	http.ResponseWriter
	status int
}

func (w *respWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Recover returns a middleware that recovers from panics and logs them.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic",
						slog.Any("error", err),
						slog.String("path", r.URL.Path),
						slog.String("method", r.Method),
						slog.String("stack", string(debug.Stack())))
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// SessionMiddlewareOptions groups dependencies for the session middleware.
type SessionMiddlewareOptions struct {
	Sessions *service.SessionService
	Config   config.SessionConfig
	Logger   *slog.Logger
}

// WithSession returns the hydration middleware: it resolves the session ID
// cookie into a session state, binds the session ID for the outbound bearer
// transport, and keeps the access-token mirror cookie consistent with the
// stored record. A store failure marks the request pending rather than
// anonymous, so a flapping backend never signs users out.
func WithSession(opts SessionMiddlewareOptions) func(http.Handler) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			st := sessionState{}
			if c, err := r.Cookie(opts.Config.CookieName); err == nil {
				st.ID = c.Value
			}

			if st.ID != "" {
				sess, err := opts.Sessions.Current(r.Context(), st.ID)
				if err != nil {
					logger.WarnContext(r.Context(), "session resolution failed",
						"session_id", st.ID, "error", err)
					st.Pending = true
				} else {
					st.Session = sess
				}
			}

			if !ownsSessionCookies(r) {
				syncTokenCookie(w, r, opts.Config, st)
			}

			ctx := setSessionState(r.Context(), st)
			if st.ID != "" {
				ctx = transport.WithSessionID(ctx, st.ID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ownsSessionCookies reports whether the route's handler issues session
// cookies itself. The login and logout flows set or expire both cookies;
// the middleware stays out of their responses so teardown and re-issue
// win unambiguously instead of racing a second Set-Cookie header.
func ownsSessionCookies(r *http.Request) bool {
	if r.Method != http.MethodPost {
		return false
	}
	switch r.URL.Path {
	case "/api/auth/login", "/api/auth/logout", "/login", "/logout":
		return true
	}
	return false
}

// syncTokenCookie keeps the access-token mirror cookie in line with the
// stored record: refreshed tokens propagate, and cookies from torn-down
// sessions are cleared. Nothing is touched while the store is unreadable.
func syncTokenCookie(w http.ResponseWriter, r *http.Request, cfg config.SessionConfig, st sessionState) {
	if st.Pending {
		return
	}

	var current string
	if c, err := r.Cookie(cfg.TokenCookieName); err == nil {
		current = c.Value
	}

	stored := st.Session.Record.AccessToken()
	if st.Session.Authenticated {
		if current != stored {
			http.SetCookie(w, TokenCookie(cfg, stored))
		}
		return
	}

	if current != "" {
		http.SetCookie(w, expiredCookie(cfg, cfg.TokenCookieName))
	}
	// A session cookie pointing at no stored record is stale state.
	if st.ID != "" && st.Session.Record.ID == "" {
		http.SetCookie(w, expiredCookie(cfg, cfg.CookieName))
	}
}

// SessionCookie builds the gateway session ID cookie.
func SessionCookie(cfg config.SessionConfig, sessionID string) *http.Cookie {
	return &http.Cookie{
		Name:     cfg.CookieName,
		Value:    sessionID,
		Path:     "/",
		Domain:   cfg.CookieDomain,
		MaxAge:   int(cfg.TTL / time.Second),
		HttpOnly: true,
		Secure:   cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

// TokenCookie builds the access-token mirror cookie. It is intentionally
// not HttpOnly: the storefront frontend reads it to short-circuit rendering
// decisions before any API round trip.
func TokenCookie(cfg config.SessionConfig, accessToken string) *http.Cookie {
	return &http.Cookie{
		Name:     cfg.TokenCookieName,
		Value:    accessToken,
		Path:     "/",
		Domain:   cfg.CookieDomain,
		MaxAge:   int(cfg.TTL / time.Second),
		Secure:   cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

func expiredCookie(cfg config.SessionConfig, name string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   cfg.CookieDomain,
		MaxAge:   -1,
		HttpOnly: name == cfg.CookieName,
		Secure:   cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

// GuardOptions groups dependencies for the route guards.
type GuardOptions struct {
	Notifier ports.Notifier
	Config   config.SessionConfig
	Logger   *slog.Logger
	Metrics  statsd.Sink
}

func (opts GuardOptions) count(name string, tags map[string]string) {
	if opts.Metrics != nil {
		opts.Metrics.Count(name, 1, tags)
	}
}

// RequireAuth returns the route guard for authenticated routes. Pending
// sessions get a neutral retry response; anonymous visitors get a one-time
// notice and a redirect to the login page with the original path preserved.
func RequireAuth(opts GuardOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
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

			if !st.Session.Authenticated {
				if opts.Notifier != nil && st.ID != "" {
					opts.Notifier.Push(r.Context(), st.ID, ports.Notice{
						Level:   ports.NoticeWarning,
						Message: "Please sign in to continue.",
					})
				}
				opts.count("guard.redirect", map[string]string{"reason": "anonymous"})
				redirectToLogin(w, r)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin returns the route guard for admin-only routes. It implies
// RequireAuth; authenticated non-admins are sent back to the home page with
// a notice rather than to the login form.
func RequireAdmin(opts GuardOptions) func(http.Handler) http.Handler {
	requireAuth := RequireAuth(opts)
	return func(next http.Handler) http.Handler {
		return requireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			st, _ := getSessionState(r.Context())
			user := st.Session.Record.User
			if user == nil || !user.IsAdmin() {
				if opts.Notifier != nil && st.ID != "" {
					opts.Notifier.Push(r.Context(), st.ID, ports.Notice{
						Level:   ports.NoticeError,
						Message: "You do not have permission to access that page.",
					})
				}
				opts.count("guard.redirect", map[string]string{"reason": "not_admin"})
				if wantsHTML(r) {
					http.Redirect(w, r, "/", http.StatusSeeOther)
					return
				}
				WriteError(w, ErrorParams{
					Code:    http.StatusForbidden,
					ErrCode: "insufficient_permissions",
					Err:     errors.New("insufficient permissions"),
				})
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}

// writePending renders the neutral "still resolving" response used while
// the session backend is unreachable. The client should retry, not treat
// the visitor as signed out.
func writePending(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Retry-After", "1")
	if wantsHTML(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("<!doctype html><title>One moment</title><p>Checking your session&hellip; please retry.</p>"))
		return
	}
	WriteError(w, ErrorParams{
		Code:    http.StatusServiceUnavailable,
		ErrCode: "session_pending",
		Err:     errors.New("session state is being resolved, retry shortly"),
	})
}

func redirectToLogin(w http.ResponseWriter, r *http.Request) {
	if !wantsHTML(r) {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "authentication_required",
			Err:     errors.New("authentication required"),
		})
		return
	}

	next := r.URL.Path
	if r.URL.RawQuery != "" {
		next += "?" + r.URL.RawQuery
	}
	http.Redirect(w, r, "/login?next="+url.QueryEscape(next), http.StatusSeeOther)
}

// wantsHTML reports whether the client is a browser navigation rather than
// an API consumer.
func wantsHTML(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return false
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

// SafeNextPath validates a post-login redirect target: relative paths only.
func SafeNextPath(next string) string {
	if next == "" {
		return "/"
	}
	u, err := url.Parse(next)
	if err != nil || u.IsAbs() || u.Host != "" || !strings.HasPrefix(u.Path, "/") || strings.HasPrefix(u.Path, "//") {
		return "/"
	}
	return next
}
