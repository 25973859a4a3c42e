package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/brightcart/storefront/config"
	"github.com/brightcart/storefront/internal/adapters/memstore"
	domainsession "github.com/brightcart/storefront/internal/domain/session"
	apperrors "github.com/brightcart/storefront/internal/errors"
	mockauth "github.com/brightcart/storefront/internal/mocks/auth"
	"github.com/brightcart/storefront/internal/ports"
	"github.com/brightcart/storefront/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	store    *memstore.TokenStore
	upstream *mockauth.MockUpstreamAuth
	notifier *mockauth.RecordingNotifier
	sessions *service.SessionService
	handler  http.Handler
	cfg      config.SessionConfig
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		store:    memstore.NewTokenStore(time.Hour),
		upstream: mockauth.NewMockUpstreamAuth(),
		notifier: mockauth.NewRecordingNotifier(),
	}
	env.cfg = config.SessionConfig{
		CookieName:      "sid",
		TokenCookieName: "token",
		TTL:             168 * time.Hour,
	}

	sessions, err := service.NewSessionService(service.SessionServiceOptions{
		Store:      env.store,
		Auth:       env.upstream,
		Notifier:   env.notifier,
		TokenValid: func(string) bool { return true },
	})
	require.NoError(t, err)
	env.sessions = sessions

	env.handler = NewRouter(RouterServices{
		Sessions: sessions,
		Catalog:  stubCatalog{},
		Account:  stubAccount{},
		Orders:   stubOrders{},
		Notifier: env.notifier,
		Config:   env.cfg,
	})
	return env
}

// login performs an API login and returns the session cookie.
func (env *testEnv) login(t *testing.T) *http.Cookie {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"email":"mock.user@example.com","password":"pw"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	for _, c := range rec.Result().Cookies() {
		if c.Name == "sid" {
			return c
		}
	}
	t.Fatal("no session cookie set on login")
	return nil
}

type stubCatalog struct{}

func (stubCatalog) Products(context.Context, url.Values) (json.RawMessage, error) {
	return json.RawMessage(`[{"name":"Widget"}]`), nil
}
func (stubCatalog) Product(_ context.Context, id string) (json.RawMessage, error) {
	return json.RawMessage(`{"id":"` + id + `"}`), nil
}
func (stubCatalog) Brands(context.Context) (json.RawMessage, error) {
	return json.RawMessage(`[]`), nil
}

type stubAccount struct{}

func (stubAccount) Me(context.Context) (json.RawMessage, error) {
	return json.RawMessage(`{"name":"Mock User"}`), nil
}
func (stubAccount) UpdateMe(_ context.Context, patch domainsession.ProfilePatch) (json.RawMessage, error) {
	return json.RawMessage(`{"name":"Updated"}`), nil
}

type stubOrders struct{}

func (stubOrders) MyOrders(context.Context) (json.RawMessage, error) {
	return json.RawMessage(`[{"order":"mine"}]`), nil
}
func (stubOrders) Orders(context.Context, url.Values) (json.RawMessage, error) {
	return json.RawMessage(`[{"order":"all"}]`), nil
}

func TestRouter_LoginSetsCookies(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"email":"mock.user@example.com","password":"pw"}`))
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	cookies := rec.Result().Cookies()
	var sid, token *http.Cookie
	for _, c := range cookies {
		switch c.Name {
		case "sid":
			sid = c
		case "token":
			token = c
		}
	}
	require.NotNil(t, sid)
	require.NotNil(t, token)
	assert.True(t, sid.HttpOnly)
	assert.False(t, token.HttpOnly)
	assert.Equal(t, "mock-access", token.Value)
	assert.Equal(t, int(168*time.Hour/time.Second), token.MaxAge)

	var body struct {
		Data struct {
			User domainsession.UserProfile `json:"user"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "mock-user-1", body.Data.User.ID)
}

func TestRouter_LoginRejectedSurfacesUpstreamMessage(t *testing.T) {
	env := newTestEnv(t)
	env.upstream.LoginFunc = func(context.Context, ports.Credentials) (ports.LoginResult, error) {
		return ports.LoginResult{}, apperrors.Upstream(http.StatusUnauthorized, "Invalid email or password")
	}

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"email":"a@b.c","password":"bad"}`))
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid email or password")
}

func TestRouter_SessionEndpoint(t *testing.T) {
	env := newTestEnv(t)
	sid := env.login(t)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	req.AddCookie(sid)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data struct {
			Authenticated bool                       `json:"authenticated"`
			User          *domainsession.UserProfile `json:"user"`
			Notices       []ports.Notice             `json:"notices"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Data.Authenticated)
	require.NotNil(t, body.Data.User)
	assert.Equal(t, "mock-user-1", body.Data.User.ID)
	assert.Empty(t, body.Data.Notices)
}

func TestRouter_SessionEndpointDrainsNotices(t *testing.T) {
	env := newTestEnv(t)
	sid := env.login(t)

	env.notifier.Push(context.Background(), sid.Value, ports.Notice{
		Level: ports.NoticeWarning, Message: "heads up",
	})

	req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	req.AddCookie(sid)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Contains(t, rec.Body.String(), "heads up")

	// drained: second read is empty
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	req.AddCookie(sid)
	env.handler.ServeHTTP(rec, req)
	assert.NotContains(t, rec.Body.String(), "heads up")
}

func TestRouter_LogoutClearsCookies(t *testing.T) {
	env := newTestEnv(t)
	sid := env.login(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.AddCookie(sid)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	for _, c := range rec.Result().Cookies() {
		assert.Equal(t, -1, c.MaxAge, "cookie %s should be expired", c.Name)
	}

	// session record is gone
	_, err := env.store.Get(context.Background(), sid.Value)
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestRouter_LogoutEmitsOneCookiePerName(t *testing.T) {
	env := newTestEnv(t)
	sid := env.login(t)

	// The mirror cookie is present and matches the stored token, the shape
	// that previously tempted the hydration middleware into re-issuing it
	// alongside the handler's expired cookie.
	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.AddCookie(sid)
	req.AddCookie(&http.Cookie{Name: "token", Value: "mock-access"})
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)

	seen := map[string]int{}
	for _, c := range rec.Result().Cookies() {
		seen[c.Name]++
		assert.Equal(t, -1, c.MaxAge, "cookie %s should be expired", c.Name)
	}
	assert.Equal(t, 1, seen["token"], "exactly one token cookie on the logout response")
	assert.Equal(t, 1, seen["sid"], "exactly one sid cookie on the logout response")
}

func TestRouter_GuardRedirectsAnonymousBrowser(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/account/me", nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "API requests get 401, not a redirect")

	// browser navigation outside /api/ redirects, preserving the path.
	// Use the orders page-style path via Accept header on an API route is
	// not applicable; exercise the redirect through a direct guard.
	guarded := RequireAuth(GuardOptions{Notifier: env.notifier, Config: env.cfg})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req = httptest.NewRequest(http.MethodGet, "/account?tab=orders", nil)
	req.Header.Set("Accept", "text/html")
	req = req.WithContext(setSessionState(req.Context(), sessionState{ID: "anon-sid"}))
	rec = httptest.NewRecorder()
	guarded.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/login", loc.Path)
	assert.Equal(t, "/account?tab=orders", loc.Query().Get("next"))

	notices := env.notifier.Peek("anon-sid")
	require.Len(t, notices, 1)
	assert.Equal(t, "Please sign in to continue.", notices[0].Message)
}

func TestRouter_AdminGuard(t *testing.T) {
	env := newTestEnv(t)
	sid := env.login(t) // default mock user has role "user"

	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	req.AddCookie(sid)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// same route passes for an admin
	env.upstream.DefaultUser.Role = domainsession.RoleAdmin
	adminSid := env.login(t)

	req = httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	req.AddCookie(adminSid)
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "all")
}

func TestRouter_PendingSessionGets503(t *testing.T) {
	env := newTestEnv(t)

	sessions, err := service.NewSessionService(service.SessionServiceOptions{
		Store:      brokenStore{},
		Auth:       env.upstream,
		TokenValid: func(string) bool { return true },
	})
	require.NoError(t, err)

	handler := NewRouter(RouterServices{
		Sessions: sessions,
		Account:  stubAccount{},
		Notifier: env.notifier,
		Config:   env.cfg,
	})

	req := httptest.NewRequest(http.MethodGet, "/api/account/me", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: "some-session"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	// pending must not clear cookies or push sign-in notices
	assert.Empty(t, rec.Result().Cookies())
	assert.Empty(t, env.notifier.Peek("some-session"))
}

func TestRouter_TokenCookieMirrorsRefreshedToken(t *testing.T) {
	env := newTestEnv(t)
	sid := env.login(t)

	// simulate the transport having rotated the stored pair
	rec0, err := env.store.Get(context.Background(), sid.Value)
	require.NoError(t, err)
	rec0.Token.AccessToken = "rotated-access"
	require.NoError(t, env.store.Save(context.Background(), rec0))

	req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	req.AddCookie(sid)
	req.AddCookie(&http.Cookie{Name: "token", Value: "mock-access"})
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	var refreshed *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "token" {
			refreshed = c
		}
	}
	require.NotNil(t, refreshed)
	assert.Equal(t, "rotated-access", refreshed.Value)
}

func TestRouter_StaleCookiesCleared(t *testing.T) {
	env := newTestEnv(t)

	// cookies referencing a session the store no longer has
	req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: "gone"})
	req.AddCookie(&http.Cookie{Name: "token", Value: "stale-token"})
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	expired := map[string]bool{}
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 {
			expired[c.Name] = true
		}
	}
	assert.True(t, expired["token"])
	assert.True(t, expired["sid"])
}

func TestRouter_PublicCatalogNeedsNoSession(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Widget")
}

func TestRouter_LoginPage(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/login?next=%2Faccount", nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="next" value="/account"`)
}

func TestRouter_BrowserLoginRedirectsToNext(t *testing.T) {
	env := newTestEnv(t)

	form := url.Values{
		"email":    {"mock.user@example.com"},
		"password": {"pw"},
		"next":     {"/account"},
	}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/account", rec.Header().Get("Location"))
}

func TestSafeNextPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "/"},
		{"/account", "/account"},
		{"/account?tab=orders", "/account?tab=orders"},
		{"https://evil.example.com/", "/"},
		{"//evil.example.com", "/"},
		{"account", "/"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SafeNextPath(tt.in), "input %q", tt.in)
	}
}

// brokenStore always errors, simulating an unreachable backend.
type brokenStore struct{}

func (brokenStore) Save(context.Context, domainsession.Record) error { return errors.New("down") }
func (brokenStore) Get(context.Context, string) (domainsession.Record, error) {
	return domainsession.Record{}, errors.New("down")
}
func (brokenStore) Delete(context.Context, string) error  { return errors.New("down") }
func (brokenStore) IDs(context.Context) ([]string, error) { return nil, errors.New("down") }
