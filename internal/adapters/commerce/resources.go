package commerce

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	domainsession "github.com/brightcart/storefront/internal/domain/session"
	apperrors "github.com/brightcart/storefront/internal/errors"
)

// Resource pass-throughs. These go through the bearer transport, so a stale
// access token is refreshed and the request replayed transparently. The
// gateway holds no resource state of its own; responses are relayed as the
// upstream returned them.

func withQuery(path string, query url.Values) string {
	if len(query) == 0 {
		return path
	}
	return path + "?" + query.Encode()
}

// Products lists catalog products. Public; no session required.
func (c *Client) Products(ctx context.Context, query url.Values) (json.RawMessage, error) {
	return c.do(ctx, c.resources, http.MethodGet, withQuery("/products", query), nil, nil)
}

// Product fetches a single product by ID.
func (c *Client) Product(ctx context.Context, id string) (json.RawMessage, error) {
	if id == "" {
		return nil, apperrors.Validation("product id is required")
	}
	return c.do(ctx, c.resources, http.MethodGet, "/products/"+url.PathEscape(id), nil, nil)
}

// Brands lists catalog brands. Public; no session required.
func (c *Client) Brands(ctx context.Context) (json.RawMessage, error) {
	return c.do(ctx, c.resources, http.MethodGet, "/brands", nil, nil)
}

// Me fetches the authenticated user's profile from the upstream.
func (c *Client) Me(ctx context.Context) (json.RawMessage, error) {
	return c.do(ctx, c.resources, http.MethodGet, "/users/me", nil, nil)
}

// UpdateMe applies a partial profile update upstream and returns the
// updated profile payload.
func (c *Client) UpdateMe(ctx context.Context, patch domainsession.ProfilePatch) (json.RawMessage, error) {
	return c.do(ctx, c.resources, http.MethodPatch, "/users/me", patch, nil)
}

// MyOrders lists the authenticated user's orders.
func (c *Client) MyOrders(ctx context.Context) (json.RawMessage, error) {
	return c.do(ctx, c.resources, http.MethodGet, "/orders/my-orders", nil, nil)
}

// Orders lists all orders. Admin-only; the gateway's route guard enforces
// the role before this is ever called.
func (c *Client) Orders(ctx context.Context, query url.Values) (json.RawMessage, error) {
	return c.do(ctx, c.resources, http.MethodGet, withQuery("/orders", query), nil, nil)
}
