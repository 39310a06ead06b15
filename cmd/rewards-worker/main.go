package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"
	"rewards/internal/backend"
	"rewards/internal/cli"
	applog "rewards/internal/log"
	"rewards/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	bootstrap := cli.SetupLogger("info")
	cfg := cli.LoadAndValidateConfig(bootstrap)
	logger := cli.SetupLogger(cfg.LogLevel).WithComponent(applog.ComponentWorker)

	logger.Info("Starting rewards-worker")

	primaryConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	mirrorConfig, err := backend.MirrorFromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid mirror configuration", applog.FieldError, err)
		os.Exit(1)
	}

	primary := cli.OpenBackend(context.Background(), logger, primaryConfig)
	defer primary.Close()
	mirror := cli.OpenBackend(context.Background(), logger, mirrorConfig)
	defer mirror.Close()

	amqpClient := cli.ConnectAMQP(logger, cfg)
	if amqpClient != nil {
		defer amqpClient.Close()
	}

	ctx, done := cli.GracefulShutdown(logger, 10*time.Second, nil)

	w := worker.NewMirrorWorker(primary.Store, mirror.Store)

	// On startup, copy whatever changed while the worker was down.
	if err := w.StartupSync(ctx); err != nil {
		logger.Error("Startup mirror failed", applog.FieldError, err, applog.FieldOperation, applog.OpMirror)
	}

	g, gctx := errgroup.WithContext(ctx)
	if amqpClient != nil {
		g.Go(func() error {
			return amqpClient.ConsumeTableChanged(gctx, w.HandleTableChanged)
		})
	} else {
		logger.Info("Skipping AMQP consumption, relying on periodic mirror")
	}
	g.Go(func() error {
		return w.Run(gctx, cfg.MirrorInterval)
	})

	logger.Info("Worker started",
		"primary", primaryConfig.Type.String(),
		"mirror", mirrorConfig.Type.String(),
		"interval", cfg.MirrorInterval.String())

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped", applog.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	at, syncs := w.LastSync()
	logger.Info("Worker stopped gracefully", "mirror_writes", syncs, "last_mirror", at.Format(time.RFC3339))
}
