package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"payrollforms/internal/cli"
	"payrollforms/internal/config"
	"payrollforms/internal/controller"
	"payrollforms/internal/log"
	"payrollforms/internal/settings"
	"payrollforms/internal/tui"

	tea "github.com/charmbracelet/bubbletea"
)

const logFile = "payrollforms-tui.log"

func main() {
	exportDir := flag.String("export-dir", ".", "Directory that receives exported files")
	flag.Parse()

	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()

	// The screen belongs to the UI, so logs go to a file.
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Could not open %s: %v\n", logFile, err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg, f)

	code := run(cfg, *exportDir, logger)
	_ = f.Close()
	os.Exit(code)
}

func run(cfg *config.Config, exportDir string, logger *log.Logger) int {
	ctx := context.Background()
	res := cli.InitBackend(ctx, logger, cfg)
	defer func() {
		if err := res.Close(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()

	st := settings.NewStore(res.KV, settings.Settings{SheetName: cfg.GoogleSheetName, AutoOpen: cfg.AutoOpen}, logger)
	if current, err := st.Load(ctx); err != nil {
		logger.Warn("Using default settings", log.FieldError, err)
	} else if res.Sheets != nil {
		res.Sheets.SetSheetName(current.SheetName)
	}

	ctrl := controller.New(res.Adapter, controller.Options{
		SaveDebounce:           cfg.SaveDebounce,
		RestrictToCurrentMonth: cfg.RestrictToCurrentMonth,
		Logger:                 logger,
	})
	defer ctrl.Close()

	bridge := tui.NewBridge(0, logger)
	unsubscribe := ctrl.Subscribe(bridge.Observe)
	defer unsubscribe()

	if err := ctrl.Load(ctx); err != nil {
		logger.Error("Starting with an empty store", log.FieldBackend, res.Type, log.FieldError, err)
	}

	logger.Info("Starting TUI", log.FieldBackend, res.Type, log.FieldOperation, log.OpStartup)
	p := tea.NewProgram(tui.New(ctrl, bridge, tui.Options{ExportDir: exportDir, Logger: logger}), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		logger.Error("TUI exited with error", log.FieldError, err)
		fmt.Fprintln(os.Stderr, "Error running program:", err)
		return 1
	}
	return 0
}
