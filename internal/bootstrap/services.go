package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/brightcart/storefront/config"
)

// RunWithShutdown starts the HTTP server and the background revalidation
// sweep, then blocks until SIGINT/SIGTERM and drains both.
func RunWithShutdown(ctx context.Context, cfg *config.AppConfig, services *Services, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := StartHTTPServer(cfg, services, logger)

	sweepDone := make(chan error, 1)
	go func() {
		sweepDone <- services.Sessions.Run(ctx)
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	// Use a fresh context: the signal context is already cancelled.
	if err := ShutdownHTTPServer(context.Background(), server, logger); err != nil {
		return err
	}

	if err := <-sweepDone; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	if services.Metrics != nil {
		if err := services.Metrics.Close(); err != nil {
			logger.Error("close statsd client failed", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return nil
}
