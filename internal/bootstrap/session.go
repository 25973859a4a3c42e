package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/brightcart/storefront/config"
	"github.com/brightcart/storefront/internal/adapters/commerce"
	"github.com/brightcart/storefront/internal/adapters/memstore"
	"github.com/brightcart/storefront/internal/adapters/postgres"
	redisadapter "github.com/brightcart/storefront/internal/adapters/redis"
	"github.com/brightcart/storefront/internal/observability/statsd"
	"github.com/brightcart/storefront/internal/ports"
	"github.com/brightcart/storefront/internal/service"
	"github.com/brightcart/storefront/internal/transport"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
)

// Backends holds the storage connections selected by configuration. Only
// the connection for the configured backend is populated.
type Backends struct {
	Redis    goredis.UniversalClient
	Postgres *pgxpool.Pool
}

// Close releases whichever backend connections were opened.
func (b *Backends) Close(logger *slog.Logger) {
	if b.Redis != nil {
		if err := b.Redis.Close(); err != nil && logger != nil {
			logger.Error("close redis failed", "error", err)
		}
	}
	if b.Postgres != nil {
		b.Postgres.Close()
	}
}

// ConnectBackends opens the storage connection the configured store backend
// needs. The memory backend needs none.
func ConnectBackends(cfg *config.AppConfig, logger *slog.Logger) (*Backends, error) {
	b := &Backends{}
	switch cfg.Store.Backend {
	case config.StoreBackendRedis:
		client, err := ConnectRedis(cfg.Redis, logger)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		b.Redis = client
	case config.StoreBackendPostgres:
		pool, err := ConnectPostgres(cfg.Postgres, logger)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		b.Postgres = pool
	case config.StoreBackendMemory:
		if !cfg.IsDev {
			logger.Warn("memory session store selected outside dev mode; sessions will not survive restarts")
		}
	default:
		return nil, fmt.Errorf("unknown session store backend %q", cfg.Store.Backend)
	}
	return b, nil
}

// Services is the wired application: everything the HTTP layer and the
// background sweep need.
type Services struct {
	Sessions *service.SessionService
	Upstream *commerce.Client
	Notifier ports.Notifier
	Metrics  *statsd.Client
}

// ServiceDeps groups inputs for BuildServices.
type ServiceDeps struct {
	Config   *config.AppConfig
	Backends *Backends
	Logger   *slog.Logger
}

// BuildServices wires the token store, notice queue, bearer transport,
// upstream client, and session service together.
func BuildServices(deps ServiceDeps) (*Services, error) {
	if deps.Config == nil {
		return nil, errors.New("config is required")
	}
	if deps.Backends == nil {
		return nil, errors.New("backends are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config

	metrics, err := statsd.NewClient(statsd.Config{
		Enabled: cfg.Observability.Metrics.IsEnabled(),
		Address: cfg.Observability.Metrics.StatsdAddress,
		Prefix:  cfg.Observability.Metrics.StatsdPrefix,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init statsd client: %w", err)
	}

	store, notifier, err := buildStore(cfg, deps.Backends, logger)
	if err != nil {
		return nil, err
	}

	events := &service.NoticeEvents{Notifier: notifier, Logger: logger}

	// The transport needs the client's Refresh and the client needs the
	// transport; bind the refresh call late through the closure.
	var upstream *commerce.Client
	bearer, err := transport.New(transport.Options{
		Store: store,
		Refresh: func(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
			return upstream.Refresh(ctx, refreshToken)
		},
		Events:  events,
		Logger:  logger,
		Metrics: metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("build bearer transport: %w", err)
	}

	upstream, err = commerce.New(commerce.Options{
		BaseURL:   cfg.Upstream.BaseURL,
		Transport: bearer,
		UserAgent: cfg.Upstream.UserAgent,
		Timeout:   cfg.Upstream.Timeout,
		Logger:    logger,
		Metrics:   metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("build upstream client: %w", err)
	}

	sessions, err := service.NewSessionService(service.SessionServiceOptions{
		Store:              store,
		Auth:               upstream,
		Notifier:           notifier,
		Logger:             logger,
		Metrics:            metrics,
		RevalidateInterval: cfg.Session.RevalidateInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("build session service: %w", err)
	}

	return &Services{
		Sessions: sessions,
		Upstream: upstream,
		Notifier: notifier,
		Metrics:  metrics,
	}, nil
}

// buildStore selects the token store and notice queue for the configured
// backend.
//
//nolint:ireturn // the store and notifier are selected at runtime.
func buildStore(cfg *config.AppConfig, b *Backends, logger *slog.Logger) (ports.TokenStore, ports.Notifier, error) {
	switch cfg.Store.Backend {
	case config.StoreBackendRedis:
		store := redisadapter.NewTokenStore(redisadapter.TokenStoreOptions{
			Client: b.Redis,
			TTL:    cfg.Session.TTL,
		})
		return store, redisadapter.NewNoticeStore(b.Redis, logger), nil
	case config.StoreBackendPostgres:
		store, err := postgres.NewTokenStore(postgres.TokenStoreOptions{
			Pool: b.Postgres,
			TTL:  cfg.Session.TTL,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("build postgres token store: %w", err)
		}
		// Notices are transient; process memory is the right place for
		// them when Redis is not around.
		return store, memstore.NewNotifier(), nil
	case config.StoreBackendMemory:
		return memstore.NewTokenStore(cfg.Session.TTL), memstore.NewNotifier(), nil
	default:
		return nil, nil, fmt.Errorf("unknown session store backend %q", cfg.Store.Backend)
	}
}
