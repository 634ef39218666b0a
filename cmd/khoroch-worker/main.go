package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"khoroch/internal/amqp"
	"khoroch/internal/cli"
	"khoroch/internal/config"
	applog "khoroch/internal/log"
	"khoroch/internal/metrics"
	"khoroch/internal/services"
	gsheet "khoroch/internal/sheets/google"
	"khoroch/internal/worker"
)

func main() {
	cfg, logger := cli.LoadAndValidateConfig(applog.ComponentWorker, (*config.Config).ValidateWorker)
	logger.Info("Starting khoroch-worker")

	store, err := cli.OpenStore(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to open record store", applog.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer store.Close()

	mirror, err := gsheet.New(context.Background(), gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsFile: cfg.GoogleServiceAccountFile,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	consumer, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}
	defer consumer.Close()

	m := metrics.New(nil)
	syncWorker := worker.NewSyncWorker(store, mirror, logger.WithComponent(applog.ComponentSheets).Slog())
	reconciler := services.NewSyncProcessor(syncWorker, services.SyncProcessorConfig{
		Interval: cfg.SyncInterval,
		Timeout:  time.Minute,
	}, logger.Slog())

	// Catch up on anything missed while the worker was down. A failure here
	// is retried by the periodic reconcile.
	if err := syncWorker.StartupSyncCheck(context.Background()); err != nil {
		logger.Error("Failed startup sync check", applog.FieldError, err)
	}

	metricsSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := reconciler.Stop(ctx); err != nil {
			logger.Error("Failed to stop reconciler", applog.FieldError, err)
		}
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logger.Error("Metrics server shutdown error", applog.FieldError, err)
		}
	})

	handle := func(ctx context.Context, ev *amqp.ExpenseEvent) error {
		err := syncWorker.HandleEvent(ctx, ev)
		result := "ok"
		if err != nil {
			result = "error"
		}
		m.ObserveEvent(string(ev.Type), result)
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := consumer.ConsumeExpenseEvents(gctx, handle)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		return reconciler.Start(gctx)
	})
	g.Go(func() error {
		logger.Info("Serving worker metrics", "port", cfg.Port)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", applog.FieldError, err)
		os.Exit(1)
	}
	<-done
	logger.Info("Worker stopped gracefully")
}
