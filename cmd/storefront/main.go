// Command storefront runs the storefront session gateway: it fronts the
// commerce REST API, owns the browser session lifecycle, and guards routes.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/brightcart/storefront/internal/bootstrap"
)

func main() {
	ctx := context.Background()
	logger := bootstrap.InitLogger()
	if err := run(ctx, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}

	logger.InfoContext(ctx, "starting storefront gateway",
		"addr", cfg.HTTP.Addr,
		"upstream", cfg.Upstream.BaseURL,
		"store", cfg.Store.Backend,
		"dev", cfg.IsDev)

	backends, err := bootstrap.ConnectBackends(&cfg, logger)
	if err != nil {
		return err
	}
	defer backends.Close(logger)

	services, err := bootstrap.BuildServices(bootstrap.ServiceDeps{
		Config:   &cfg,
		Backends: backends,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	return bootstrap.RunWithShutdown(ctx, &cfg, services, logger)
}
