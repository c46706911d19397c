package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"payrollforms/internal/amqp"
	"payrollforms/internal/cli"
	"payrollforms/internal/log"
	"payrollforms/internal/persist/local"
	"payrollforms/internal/settings"
	gsheet "payrollforms/internal/sheets/google"
	"payrollforms/internal/storage"
	"payrollforms/internal/worker"

	"golang.org/x/sync/errgroup"
)

const pingInterval = 5 * time.Minute

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, os.Stdout).WithComponent(log.ComponentWorker)

	logger.Info("Starting payrollforms-worker", log.FieldOperation, log.OpStartup)

	if cfg.AMQPURL == "" || cfg.GoogleSpreadsheetID == "" {
		err := errors.New("worker needs AMQP_URL and GOOGLE_SPREADSHEET_ID")
		logger.Error("Nothing to mirror", log.FieldError, err)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The local store holds both the records and the settings the server saved.
	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath, logger)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", cfg.SQLiteDBPath)
		return err
	}
	defer repo.Close()

	st := settings.NewStore(repo, settings.Settings{SheetName: cfg.GoogleSheetName}, logger)
	current, err := st.Load(ctx)
	if err != nil {
		logger.Warn("Using default sheet name", log.FieldError, err)
	}

	sheets, err := gsheet.New(ctx, gsheet.Options{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       current.SheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	}, logger)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		return err
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		return err
	}
	defer client.Close()

	mirror := worker.NewMirrorWorker(sheets, logger)

	// Catch up with saves made while the worker was down.
	if err := mirror.MirrorNow(ctx, local.New(repo, logger)); err != nil {
		logger.Error("Startup mirror failed", log.FieldOperation, log.OpMirror, log.FieldError, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return client.ConsumeWithReconnect(gctx, mirror.HandleFormsSaved)
	})
	g.Go(func() error {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if err := sheets.Ping(gctx); err != nil {
					logger.Warn("Spreadsheet unreachable", log.FieldSheet, sheets.SheetName(), log.FieldError, err)
				}
			}
		}
	})

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
		return err
	}
	logger.Info("Worker stopped gracefully", log.FieldOperation, log.OpShutdown)
	return nil
}
