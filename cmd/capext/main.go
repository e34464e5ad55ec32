package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"capext/internal/backend"
	"capext/internal/cli"
	"capext/internal/core"
	apphttp "capext/internal/http"
	applog "capext/internal/log"
	"capext/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", applog.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	svc := services.NewProjectionService(result.Store, result.Publisher, core.ParseCollation(cfg.CollationLocale), logger)

	srv := apphttp.NewServer(apphttp.Options{
		Addr:               ":" + cfg.Port,
		MaxUploadBytes:     cfg.MaxUploadBytes,
		ResultCacheSize:    cfg.ResultCacheSize,
		ResultCacheTTL:     cfg.ResultCacheTTL,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Ready:              result.Ready,
		Logger:             logger,
	}, svc)

	// Configure server timeouts and limits
	srv.ReadTimeout = 30 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		if result.Cleanup != nil {
			if err := result.Cleanup(); err != nil {
				logger.Error("Backend cleanup error", applog.FieldError, err)
			}
		}
	})

	logger.Info("Starting capext server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"export_enabled", result.Publisher != nil,
		"collation", cfg.CollationLocale)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
