package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"allowance/internal/cache"
	"allowance/internal/cli"
	apphttp "allowance/internal/http"
	applog "allowance/internal/log"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig(slog.Default())
	logger := cli.SetupLogger(cfg, os.Stdout)

	store, err := cli.OpenStore(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to open data directory", applog.FieldError, err, "dir", cfg.DataDir)
		os.Exit(1)
	}

	publisher, closePublisher := cli.NewPublisher(cfg, logger)
	defer closePublisher()

	svc := cli.NewLedgerService(store, publisher, cfg, logger)

	caches := cache.NewManager(logger)
	if summaries := svc.SummaryCache(); summaries != nil {
		caches.Register(summaries)
	}
	caches.StartCleanup(5 * time.Minute)
	defer caches.Stop()

	srv := apphttp.NewServer(svc, apphttp.Options{
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		MaxUploadBytes:     cfg.MaxUploadBytes,
		Ready:              store.Ready,
	}, logger)

	ln, err := apphttp.Listen(cfg.Host, cfg.Port, logger)
	if err != nil {
		logger.Error("Failed to bind", applog.FieldError, err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
	})

	logger.Info("Starting allowance server", "data_dir", store.Dir(), "url", apphttp.DisplayURL(ln.Addr()))
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
