// Package cli holds the start-up steps shared by cmd/allowance,
// cmd/allowance-worker and cmd/allowancectl.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"allowance/internal/amqp"
	"allowance/internal/config"
	applog "allowance/internal/log"
	"allowance/internal/seed"
	"allowance/internal/services"
	"allowance/internal/sheets"
	"allowance/internal/sheets/flatfile"
	gsheet "allowance/internal/sheets/google"
	mem "allowance/internal/sheets/memory"
)

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// makes it the slog default.
func SetupLogger(cfg *config.Config, out io.Writer) *slog.Logger {
	lc := applog.DefaultConfig()
	lc.Level, _ = applog.ParseLevel(cfg.LogLevel)
	lc.Format = cfg.LogFormat
	if out != nil {
		lc.Output = out
	}
	logger := applog.New(lc)
	slog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *slog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// OpenStore opens the data directory, creates missing tables and seeds
// the ones it just created when SEED_FILE is set.
func OpenStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*flatfile.Store, error) {
	opts := cfg.StoreOptions()
	opts.Logger = logger
	store, err := flatfile.Open(cfg.DataDir, opts)
	if err != nil {
		return nil, err
	}
	created, err := store.EnsureTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare tables: %w", err)
	}
	if cfg.SeedFile == "" || len(created) == 0 {
		return store, nil
	}

	f, err := seed.Load(cfg.SeedFile)
	if err != nil {
		return nil, err
	}
	if err := seed.Apply(ctx, f, created, store.Goals, store.Presets, logger); err != nil {
		return nil, fmt.Errorf("apply seed: %w", err)
	}
	return store, nil
}

// NewPublisher connects to AMQP when AMQP_URL is set. A broker that cannot
// be reached at start-up is logged and replaced by a no-op publisher so
// the ledger keeps accepting entries. The returned closer is never nil.
func NewPublisher(cfg *config.Config, logger *slog.Logger) (services.Publisher, func()) {
	if cfg.AMQPURL == "" {
		logger.Info("AMQP disabled - no AMQP_URL provided")
		return services.NopPublisher{}, func() {}
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Warn("AMQP unavailable, events will not be published", applog.FieldError, err)
		return services.NopPublisher{}, func() {}
	}
	logger.Info("AMQP publisher ready", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	return client, func() {
		if err := client.Close(); err != nil {
			logger.Warn("Failed to close AMQP client", applog.FieldError, err)
		}
	}
}

// NewMirror returns the Google Sheets mirror when a spreadsheet is
// configured, the in-memory one otherwise.
func NewMirror(ctx context.Context, cfg *config.Config, logger *slog.Logger) (sheets.LedgerMirror, error) {
	if cfg.GoogleSpreadsheetID == "" {
		logger.Info("Google Sheets disabled - mirroring to memory")
		return mem.New(), nil
	}
	client, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleCredentialsJSON,
		CredentialsFile: cfg.GoogleCredentialsFile,
	})
	if err != nil {
		return nil, fmt.Errorf("init google sheets: %w", err)
	}
	logger.Info("Google Sheets mirror initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)
	return client, nil
}

// NewLedgerService wires the store into the service layer.
func NewLedgerService(store *flatfile.Store, publisher services.Publisher, cfg *config.Config, logger *slog.Logger) *services.LedgerService {
	return services.NewLedgerService(store.Ledger, store.Goals, store.Presets, store.Gateway, publisher, services.Config{
		RecentDays:      cfg.RecentDays,
		SummaryCacheTTL: cfg.SummaryCacheTTL,
	}, logger)
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that is closed once cleanup has returned or the timeout
// has passed.
func GracefulShutdown(logger *slog.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		finished := make(chan struct{})
		go func() {
			if cleanup != nil {
				cleanup(shutdownCtx)
			}
			close(finished)
		}()
		cancel()

		select {
		case <-shutdownCtx.Done():
			logger.Warn("Shutdown timeout reached")
		case <-finished:
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
