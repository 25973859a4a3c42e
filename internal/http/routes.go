package httpx

import (
	"log/slog"
	"net/http"

	"github.com/brightcart/storefront/config"
	"github.com/brightcart/storefront/internal/observability/statsd"
	"github.com/brightcart/storefront/internal/ports"
	"github.com/brightcart/storefront/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Sessions *service.SessionService
	Catalog  CatalogAPI
	Account  AccountAPI
	Orders   OrdersAPI
	Notifier ports.Notifier

	Config  config.SessionConfig
	Logger  *slog.Logger
	Metrics statsd.Sink
}

// NewRouter creates and configures the gateway's HTTP router. Every route
// runs behind the session hydration middleware; the guards re-evaluate the
// session state on every request.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()

	guardOpts := GuardOptions{
		Notifier: services.Notifier,
		Config:   services.Config,
		Logger:   logger,
		Metrics:  services.Metrics,
	}
	requireAuth := RequireAuth(guardOpts)
	requireAdmin := RequireAdmin(guardOpts)

	authHandlers := &AuthHandlers{
		Svc:      services.Sessions,
		Notifier: services.Notifier,
		Config:   services.Config,
		Logger:   logger,
	}
	mux.HandleFunc("POST /api/auth/login", authHandlers.Login)
	mux.HandleFunc("POST /api/auth/logout", authHandlers.Logout)
	mux.HandleFunc("GET /api/auth/session", authHandlers.Session)

	pages := &PageHandlers{
		Svc:      services.Sessions,
		Notifier: services.Notifier,
		Config:   services.Config,
		Logger:   logger,
	}
	mux.HandleFunc("GET /login", pages.LoginPage)
	mux.HandleFunc("POST /login", pages.LoginSubmit)
	mux.HandleFunc("POST /logout", pages.LogoutSubmit)

	if services.Catalog != nil {
		catalog := &CatalogHandlers{API: services.Catalog}
		mux.HandleFunc("GET /api/products", catalog.Products)
		mux.HandleFunc("GET /api/products/{id}", catalog.Product)
		mux.HandleFunc("GET /api/brands", catalog.Brands)
	}

	if services.Account != nil {
		account := &AccountHandlers{API: services.Account, Sessions: services.Sessions, Logger: logger}
		mux.Handle("GET /api/account/me", requireAuth(http.HandlerFunc(account.Me)))
		mux.Handle("PATCH /api/account/me", requireAuth(http.HandlerFunc(account.UpdateMe)))
	}

	if services.Orders != nil {
		orders := &OrdersHandlers{API: services.Orders}
		mux.Handle("GET /api/orders/mine", requireAuth(http.HandlerFunc(orders.Mine)))
		mux.Handle("GET /api/orders", requireAdmin(http.HandlerFunc(orders.All)))
	}

	mux.HandleFunc("GET /healthz", healthHandler)
	mux.HandleFunc("HEAD /healthz", healthHandler)

	withSession := WithSession(SessionMiddlewareOptions{
		Sessions: services.Sessions,
		Config:   services.Config,
		Logger:   logger,
	})

	var handler http.Handler = withSession(mux)
	handler = Logging(logger)(handler)
	handler = Recover(logger)(handler)
	return handler
}
