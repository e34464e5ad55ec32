package main

import (
	"context"
	"os"
	"time"

	"capext/internal/amqp"
	"capext/internal/cli"
	applog "capext/internal/log"
	gsheet "capext/internal/sheets/google"
	"capext/internal/storage"
	"capext/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentWorker)
	logger.Info("Starting capext-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if err := cfg.ValidateExporter(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath, logger)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", applog.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	sheetsClient, err := gsheet.New(context.Background(), gsheet.Options{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetBase:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	}, logger)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	exportWorker := worker.NewExportWorker(repo, sheetsClient, cfg.ExportBatchSize, logger)

	ctx, _ := cli.GracefulShutdown(logger, 30*time.Second, nil)

	logger.Info("Export worker running",
		"queue", cfg.AMQPQueue,
		"batch_size", cfg.ExportBatchSize,
		"interval", cfg.ExportInterval.String())
	if err := exportWorker.Run(ctx, amqpClient, cfg.ExportInterval); err != nil {
		logger.Error("Export worker stopped", applog.FieldError, err)
		amqpClient.Close()
		repo.Close()
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}
