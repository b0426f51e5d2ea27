package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"allowance/internal/amqp"
	"allowance/internal/cli"
	applog "allowance/internal/log"
	"allowance/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig(slog.Default())
	logger := cli.SetupLogger(cfg, os.Stdout)

	logger.Info("Starting allowance-worker")

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required by the worker")
		os.Exit(1)
	}

	store, err := cli.OpenStore(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to open data directory", applog.FieldError, err, "dir", cfg.DataDir)
		os.Exit(1)
	}

	mirror, err := cli.NewMirror(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize ledger mirror", applog.FieldError, err)
		os.Exit(1)
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, nil)

	w := worker.NewMirrorWorker(store.Ledger, mirror, logger)
	// Start from the file. Events queued while the worker was down then
	// find their entries already mirrored.
	if err := w.Resync(ctx); err != nil {
		logger.Error("Startup resync failed", applog.FieldError, err)
	}

	if err := client.Consume(ctx, w.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", applog.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}
