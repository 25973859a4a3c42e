package httpx

import (
	"html/template"
	"log/slog"
	"net/http"

	"github.com/brightcart/storefront/config"
	apperrors "github.com/brightcart/storefront/internal/errors"
	"github.com/brightcart/storefront/internal/ports"
)

var loginTmpl = template.Must(template.New("login").Parse(`<!doctype html>
<html lang="en">
<head><meta charset="utf-8"><title>Sign in</title></head>
<body>
{{range .Notices}}<p class="notice notice-{{.Level}}">{{.Message}}</p>{{end}}
{{if .Error}}<p class="notice notice-error">{{.Error}}</p>{{end}}
<form method="post" action="/login">
  <input type="hidden" name="next" value="{{.Next}}">
  <label>Email <input type="email" name="email" required></label>
  <label>Password <input type="password" name="password" required></label>
  <button type="submit">Sign in</button>
</form>
</body>
</html>
`))

// PageHandlers serves the minimal browser pages: the login form and the
// logout action. Everything else is the JSON API under /api/.
type PageHandlers struct {
	Svc      SessionServiceInterface
	Notifier ports.Notifier
	Config   config.SessionConfig
	Logger   *slog.Logger
}

func (h *PageHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

type loginPageData struct {
	Next    string
	Error   string
	Notices []ports.Notice
}

func (h *PageHandlers) renderLogin(w http.ResponseWriter, code int, data loginPageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	if err := loginTmpl.Execute(w, data); err != nil {
		h.logger().Error("render login page", "error", err)
	}
}

// LoginPage handles GET /login. One-time notices queued for this session
// (guard redirects, forced logouts) are drained and shown here.
func (h *PageHandlers) LoginPage(w http.ResponseWriter, r *http.Request) {
	data := loginPageData{Next: SafeNextPath(r.URL.Query().Get("next"))}
	if h.Notifier != nil {
		if sid := SessionID(r.Context()); sid != "" {
			data.Notices = h.Notifier.Drain(r.Context(), sid)
		}
	}
	h.renderLogin(w, http.StatusOK, data)
}

// LoginSubmit handles POST /login (form submission).
func (h *PageHandlers) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderLogin(w, http.StatusBadRequest, loginPageData{Next: "/", Error: "Invalid form submission."})
		return
	}

	next := SafeNextPath(r.PostFormValue("next"))
	email := r.PostFormValue("email")
	password := r.PostFormValue("password")
	if email == "" || password == "" {
		h.renderLogin(w, http.StatusBadRequest, loginPageData{Next: next, Error: "Email and password are required."})
		return
	}

	sess, err := h.Svc.Login(r.Context(), SessionID(r.Context()), ports.Credentials{
		Email:    email,
		Password: password,
	})
	if err != nil {
		h.logger().WarnContext(r.Context(), "browser login failed", "error", err)
		h.renderLogin(w, http.StatusUnauthorized, loginPageData{Next: next, Error: apperrors.UserMessage(err)})
		return
	}

	http.SetCookie(w, SessionCookie(h.Config, sess.Record.ID))
	http.SetCookie(w, TokenCookie(h.Config, sess.Record.AccessToken()))
	http.Redirect(w, r, next, http.StatusSeeOther)
}

// LogoutSubmit handles POST /logout.
func (h *PageHandlers) LogoutSubmit(w http.ResponseWriter, r *http.Request) {
	sid := SessionID(r.Context())
	if err := h.Svc.Logout(r.Context(), sid); err != nil {
		h.logger().ErrorContext(r.Context(), "logout failed", "session_id", sid, "error", err)
	}

	http.SetCookie(w, expiredCookie(h.Config, h.Config.CookieName))
	http.SetCookie(w, expiredCookie(h.Config, h.Config.TokenCookieName))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
