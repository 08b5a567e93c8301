package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"caixinhas/internal/adapters"
	"caixinhas/internal/backend"
	"caixinhas/internal/cache"
	"caixinhas/internal/cli"
	apphttp "caixinhas/internal/http"
	"caixinhas/internal/log"
	"caixinhas/internal/services"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger("info", false, log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(cfg.LogLevel, cfg.LogJSON, log.ComponentApp)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	be, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend).Slog()).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize data backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	rateStack, err := cli.NewRateStack(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize rate source", log.FieldError, err, "source", cfg.RatesSource)
		_ = be.Cleanup()
		os.Exit(1)
	}

	projections := services.NewProjectionService(rateStack.Cached, be.Store)
	savings := adapters.NewSavingAdapter(be.NewSavingService(), projections)

	caches := cache.NewManager()
	caches.Register(projections.ResultCache())
	if rateStack.Memory != nil {
		caches.Register(rateStack.Memory)
	}
	caches.StartCleanup(cfg.CacheCleanupInterval)

	srv := apphttp.NewServer(":"+cfg.Port, savings, projections, apphttp.ServerConfig{
		AllowedOrigins:     cfg.AllowedOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger,
	})
	srv.AddReadinessCheck("store", be.Store.Ping)
	if rateStack.Redis != nil {
		srv.AddReadinessCheck("redis", rateStack.Ping)
	}
	if be.Events != nil {
		srv.AddReadinessCheck("amqp", func(context.Context) error { return be.Events.Ping() })
	}
	srv.AddGauge("caixinhas_projection_cache_entries", "Projection results held in memory.", func() int64 {
		return int64(projections.ResultCache().Size())
	})

	ctx, done := cli.GracefulShutdown(logger, cli.ShutdownTimeout, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		caches.Stop()
		if err := rateStack.Close(); err != nil {
			logger.Warn("Failed to close rate cache", log.FieldError, err)
		}
		if err := be.Cleanup(); err != nil {
			logger.Warn("Failed to close data backend", log.FieldError, err)
		}
	})

	logger.Info("Starting caixinhas server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"rates_source", cfg.RatesSource,
		"cache_backend", cfg.CacheBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
