package httpx

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"

	domainsession "github.com/brightcart/storefront/internal/domain/session"
)

// CatalogAPI is the catalog subset of the upstream client.
type CatalogAPI interface {
	Products(ctx context.Context, query url.Values) (json.RawMessage, error)
	Product(ctx context.Context, id string) (json.RawMessage, error)
	Brands(ctx context.Context) (json.RawMessage, error)
}

// AccountAPI is the account subset of the upstream client.
type AccountAPI interface {
	Me(ctx context.Context) (json.RawMessage, error)
	UpdateMe(ctx context.Context, patch domainsession.ProfilePatch) (json.RawMessage, error)
}

// OrdersAPI is the orders subset of the upstream client.
type OrdersAPI interface {
	MyOrders(ctx context.Context) (json.RawMessage, error)
	Orders(ctx context.Context, query url.Values) (json.RawMessage, error)
}

// CatalogHandlers relays public catalog reads. These still run behind the
// session middleware so a signed-in visitor's calls carry their bearer.
type CatalogHandlers struct {
	API CatalogAPI
}

// Products handles GET /api/products.
func (h *CatalogHandlers) Products(w http.ResponseWriter, r *http.Request) {
	data, err := h.API.Products(r.Context(), r.URL.Query())
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteRawJSON(w, http.StatusOK, data)
}

// Product handles GET /api/products/{id}.
func (h *CatalogHandlers) Product(w http.ResponseWriter, r *http.Request) {
	data, err := h.API.Product(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteRawJSON(w, http.StatusOK, data)
}

// Brands handles GET /api/brands.
func (h *CatalogHandlers) Brands(w http.ResponseWriter, r *http.Request) {
	data, err := h.API.Brands(r.Context())
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteRawJSON(w, http.StatusOK, data)
}

// AccountHandlers relays profile reads and writes for the signed-in user.
type AccountHandlers struct {
	API      AccountAPI
	Sessions SessionServiceInterface
	Logger   *slog.Logger
}

func (h *AccountHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// Me handles GET /api/account/me.
func (h *AccountHandlers) Me(w http.ResponseWriter, r *http.Request) {
	data, err := h.API.Me(r.Context())
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteRawJSON(w, http.StatusOK, data)
}

// UpdateMe handles PATCH /api/account/me: the patch is applied upstream
// first, then merged into the cached profile so subsequent session reads
// reflect it without another upstream round trip.
func (h *AccountHandlers) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var patch domainsession.ProfilePatch
	if !DecodeJSON(w, r, &patch) {
		return
	}

	data, err := h.API.UpdateMe(r.Context(), patch)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	if _, err := h.Sessions.UpdateUser(r.Context(), SessionID(r.Context()), patch); err != nil {
		// The upstream accepted the change; a stale cache self-heals on the
		// next login, so report success and log the miss.
		h.logger().WarnContext(r.Context(), "profile cache update failed", "error", err)
	}

	WriteRawJSON(w, http.StatusOK, data)
}

// OrdersHandlers relays order reads.
type OrdersHandlers struct {
	API OrdersAPI
}

// Mine handles GET /api/orders/mine.
func (h *OrdersHandlers) Mine(w http.ResponseWriter, r *http.Request) {
	data, err := h.API.MyOrders(r.Context())
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteRawJSON(w, http.StatusOK, data)
}

// All handles GET /api/orders. Admin-only; enforced by the route guard.
func (h *OrdersHandlers) All(w http.ResponseWriter, r *http.Request) {
	data, err := h.API.Orders(r.Context(), r.URL.Query())
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteRawJSON(w, http.StatusOK, data)
}
