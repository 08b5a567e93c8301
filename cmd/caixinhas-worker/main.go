package main

import (
	"context"
	"errors"
	"os"

	"caixinhas/internal/backend"
	"caixinhas/internal/cli"
	"caixinhas/internal/config"
	"caixinhas/internal/log"
	"caixinhas/internal/ports"
	"caixinhas/internal/services"
	gsheet "caixinhas/internal/sheets/google"
	"caixinhas/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger("info", false, log.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(cfg.LogLevel, cfg.LogJSON, log.ComponentWorker)

	logger.Info("Starting caixinhas-worker")
	if cfg.DataBackend == config.BackendMemory {
		logger.Warn("Memory backend is private to this process, the worker will not see the server's caixinhas")
	}

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

	// Google Sheets export is optional
	var exporter ports.SavingExporter
	if cfg.SheetsEnabled() {
		sheetsClient, err := gsheet.New(context.Background(), gsheet.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		exporter = sheetsClient
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)
	} else {
		logger.Info("Google Sheets export disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	projections := services.NewProjectionService(rateStack.Cached, be.Store)
	projectionWorker := worker.NewProjectionWorker(be.Store, projections, rateStack.Cached, exporter, cfg.ReprojectConcurrency)

	// cancelled on shutdown, before the scheduler is stopped
	taskCtx, stopTasks := context.WithCancel(context.Background())
	scheduler := worker.NewScheduler(taskCtx, cfg.TaskTimeout)
	if err := scheduler.Register(cfg.RatesRefreshCron, "rates_refresh", projectionWorker.RefreshRates); err != nil {
		logger.Error("Failed to schedule rate refresh", log.FieldError, err, "cron", cfg.RatesRefreshCron)
		stopTasks()
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, cli.ShutdownTimeout, func(shutdownCtx context.Context) {
		logger.Info("Shutting down worker...")
		stopTasks()
		scheduler.Stop(shutdownCtx)
		if err := rateStack.Close(); err != nil {
			logger.Warn("Failed to close rate cache", log.FieldError, err)
		}
		if err := be.Cleanup(); err != nil {
			logger.Warn("Failed to close data backend", log.FieldError, err)
		}
	})

	// Recover projections missed while the worker was down
	logger.Info("Performing startup projection check...")
	if err := projectionWorker.StartupCheck(ctx); err != nil {
		logger.Error("Startup projection check failed", log.FieldError, err)
	}

	scheduler.Start()

	if be.Events != nil {
		go func() {
			err := be.Events.ConsumeSavingEvents(ctx, projectionWorker.HandleSavingEvent)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Event consumption failed", log.FieldError, err)
			}
		}()
	} else {
		logger.Info("Skipping AMQP event consumption - no AMQP_URL provided")
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}
