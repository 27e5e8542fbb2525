package main

import (
	"context"
	"flag"
	"os"
	"time"

	"carteira/internal/amqp"
	"carteira/internal/cli"
	"carteira/internal/config"
	"carteira/internal/services"
	gsheet "carteira/internal/sheets/google"
)

const shutdownTimeout = 30 * time.Second

func main() {
	once := flag.Bool("once", false, "refresh every dataset once and exit")
	flag.Parse()

	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	// Setup structured logging
	logger := cli.SetupLogger()

	logger.Info("Starting carteira-refresher")

	// The refresher always needs spreadsheet access and a snapshot path,
	// regardless of which backend the web server runs on.
	cfg := config.Load()
	if err := cfg.ValidateRefresher(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Google Sheets client for fetching worksheets
	sheetsClient, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	// Initialize snapshot store the refreshed datasets land in
	repo := cli.InitSnapshotStore(logger, cfg.SnapshotDBPath)
	defer repo.Close()

	// Initialize AMQP client for publishing refresh announcements (optional)
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without refresh messages", "error", err)
			amqpClient = nil
		} else {
			defer amqpClient.Close()
			logger.Info("AMQP client initialized - refreshes will invalidate dashboard caches")
		}
	} else {
		logger.Info("AMQP disabled - dashboard caches expire on TTL only")
	}

	processor := services.NewRefreshProcessor(sheetsClient, repo, amqpClient, nil, services.RefreshProcessorConfig{
		PollInterval: cfg.RefreshInterval,
		MaxRetries:   cfg.RefreshMaxRetries,
	})

	// One-shot mode for cron jobs and first-run seeding
	if *once {
		if err := processor.RefreshAll(ctx); err != nil {
			logger.Error("Refresh failed", "error", err)
			os.Exit(1)
		}
		logger.Info("All datasets refreshed")
		return
	}

	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start refresh processor", "error", err)
		os.Exit(1)
	}

	// Graceful shutdown handling
	shutdownCtx, done := cli.GracefulShutdown(logger, shutdownTimeout, func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		if err := processor.Stop(stopCtx); err != nil {
			logger.Error("Processor stop error", "error", err)
		}
		cancel()
	})

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Refresher stopped gracefully")
}
