package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"carteira/internal/amqp"
	"carteira/internal/backend"
	"carteira/internal/cache"
	"carteira/internal/cli"
	apphttp "carteira/internal/http"
	"carteira/internal/log"
	"carteira/internal/services"
	"carteira/internal/worker"
)

const (
	shutdownTimeout      = 30 * time.Second
	cacheCleanupInterval = time.Minute
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	// Setup structured logging
	logger := cli.SetupLogger()

	// Load and validate configuration
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Choose data backend per configuration (default: memory demo data)
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize data backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	datasets := services.NewDatasetService(result.Backend, nil, cfg.CacheTTL)

	// Initialize AMQP consumer so refresher announcements drop stale caches.
	// Without a broker the caches simply age out on TTL.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	invalidator := worker.NewInvalidator(datasets, amqpClient)
	go func() {
		if err := invalidator.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Cache invalidation consumer stopped", "error", err)
		}
	}()

	srv := apphttp.NewServer(":"+cfg.Port, datasets, log.New(log.Config{
		Level:     slog.LevelInfo,
		Component: "carteira",
	}))

	// Periodic eviction of expired cache entries
	cacheManager := cache.NewManager()
	cacheManager.Register(datasets.Cache())
	srv.RegisterCaches(cacheManager)
	cacheManager.StartCleanup(cacheCleanupInterval)

	// Graceful shutdown handling
	shutdownCtx, done := cli.GracefulShutdown(logger, shutdownTimeout, func() {
		drainCtx, drainCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer drainCancel()

		if err := srv.Shutdown(drainCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cacheManager.Stop()
		cancel()
		if amqpClient != nil {
			amqpClient.Close()
		}
		if result.Cleanup != nil {
			if err := result.Cleanup(); err != nil {
				logger.Error("Backend cleanup error", "error", err)
			}
		}
	})

	logger.Info("Starting carteira server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}
