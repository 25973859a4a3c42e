// Package mocks provides mock implementations for testing the storefront gateway.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for
// the session ports. The mocks are generated using go:generate directives and
// are not committed; regenerate after interface changes with:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	defer ctrl.Finish()
//	store := mocks.NewMockTokenStore(ctrl)
//	store.EXPECT().Get(gomock.Any(), "session-id").Return(rec, nil)
package mocks

// Generate mock for TokenStore interface from internal/ports.
// This creates MockTokenStore with Save, Get, Delete, IDs.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=token_store_mock.go github.com/brightcart/storefront/internal/ports TokenStore

// Generate mock for UpstreamAuth interface from internal/ports.
// This creates MockUpstreamAuth with Login, Logout, Refresh.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=upstream_auth_mock.go github.com/brightcart/storefront/internal/ports UpstreamAuth

// Generate mock for Notifier interface from internal/ports.
// This creates MockNotifier with Push, Drain.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=notifier_mock.go github.com/brightcart/storefront/internal/ports Notifier
