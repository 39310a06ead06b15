package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"rewards/internal/backend"
	"rewards/internal/cache"
	"rewards/internal/cli"
	apphttp "rewards/internal/http"
	applog "rewards/internal/log"
	"rewards/internal/services"
)

func main() {
	cli.LoadEnvFile()

	bootstrap := cli.SetupLogger("info")
	cfg := cli.LoadAndValidateConfig(bootstrap)
	logger := cli.SetupLogger(cfg.LogLevel)

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration",
			applog.FieldError, err, applog.FieldErrorType, applog.ErrorTypeConfiguration)
		os.Exit(1)
	}
	store := cli.OpenBackend(context.Background(), logger, backendConfig)
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close backend", applog.FieldError, err, applog.FieldBackend, store.Type.String())
		}
	}()

	// A nil *amqp.Client must not reach the service as a non-nil interface.
	var publisher services.EventPublisher
	amqpClient := cli.ConnectAMQP(logger, cfg)
	if amqpClient != nil {
		publisher = amqpClient
		defer func() {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("Failed to close AMQP client", applog.FieldError, err)
			}
		}()
	}

	svc := services.NewEntryService(store.Store, publisher, services.EntryServiceConfig{
		Roster:     cfg.Roster(),
		Activities: cfg.ActivityList(),
		Start:      cfg.StartDate(),
		Location:   cfg.Location(),
	})

	caches := cache.NewManager()
	caches.Register(svc.Cache())
	caches.StartCleanup(time.Minute)

	srv := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{
		Ready:      store.Ready,
		CacheStats: svc.Cache().Stats,
		Backend:    store.Type.String(),
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		caches.Stop()
	})

	logger.Info("Starting rewards server",
		"port", cfg.Port,
		applog.FieldBackend, store.Type.String(),
		"challenge_start", cfg.StartDate().String(),
		"children", cfg.Roster().Names())

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
