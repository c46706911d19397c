package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"payrollforms/internal/backend"
	"payrollforms/internal/cli"
	"payrollforms/internal/config"
	"payrollforms/internal/controller"
	apphttp "payrollforms/internal/http"
	"payrollforms/internal/log"
	"payrollforms/internal/settings"

	"golang.org/x/sync/errgroup"
)

func main() {
	if err := serve(); err != nil {
		os.Exit(1)
	}
}

func serve() error {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res := cli.InitBackend(ctx, logger, cfg)
	defer func() {
		if err := res.Close(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()

	st := settings.NewStore(res.KV, settings.Settings{SheetName: cfg.GoogleSheetName, AutoOpen: cfg.AutoOpen}, logger)
	current, err := st.Load(ctx)
	if err != nil {
		logger.Warn("Using default settings", log.FieldError, err)
	}

	var sheets apphttp.SheetNamer
	if res.Sheets != nil {
		res.Sheets.SetSheetName(current.SheetName)
		sheets = res.Sheets
	}

	ctrl := controller.New(res.Adapter, controller.Options{
		SaveDebounce:           cfg.SaveDebounce,
		RestrictToCurrentMonth: cfg.RestrictToCurrentMonth,
		Logger:                 logger,
	})
	defer ctrl.Close()
	if err := ctrl.Load(ctx); err != nil {
		logger.Error("Starting with an empty store", log.FieldBackend, res.Type, log.FieldError, err)
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Controller: ctrl,
		Settings:   st,
		Sheets:     sheets,
		Ready:      res.Ready,
		Backend:    res.Type.String(),
		Logger:     logger,
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	return run(ctx, logger, cfg, res, srv, current.AutoOpen)
}

func run(ctx context.Context, logger *log.Logger, cfg *config.Config, res *backend.Result, srv *apphttp.Server, autoOpen bool) error {
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		logger.Error("Failed to listen", log.FieldError, err, "port", cfg.Port)
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting payrollforms server",
			log.FieldOperation, log.OpStartup,
			"port", cfg.Port,
			log.FieldBackend, res.Type)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// the listener is bound, so the page can load as soon as the browser asks
	cli.OpenUI(logger, autoOpen, fmt.Sprintf("http://localhost:%s/", cfg.Port))

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down", log.FieldOperation, log.OpShutdown)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		return err
	}
	logger.Info("Server stopped gracefully")
	return nil
}
