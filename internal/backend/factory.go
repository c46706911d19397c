// Package backend selects and builds the persistence variant at startup.
package backend

import (
	"context"
	"errors"
	"fmt"

	"payrollforms/internal/adapters"
	"payrollforms/internal/amqp"
	"payrollforms/internal/log"
	"payrollforms/internal/persist"
	"payrollforms/internal/persist/local"
	"payrollforms/internal/sheets/google"
	"payrollforms/internal/storage"
)

// Factory creates backends based on configuration
type Factory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) *Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &Factory{logger: logger.WithComponent(log.ComponentBackend)}
}

// Create builds the adapter described by config.
func (f *Factory) Create(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case LocalBackend:
		return f.createLocal(ctx, config)
	case SheetsBackend:
		return f.createSheets(ctx, config)
	case MemoryBackend:
		return f.createMemory(config), nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *Factory) createLocal(ctx context.Context, config Config) (*Result, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	var adapter persist.Adapter = local.New(repo, f.logger)
	cleanups := []CleanupFunc{repo.Close}

	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.logger)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without save events", log.FieldError, err)
		} else {
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
			adapter = adapters.NewPublishingAdapter(adapter, client, f.logger)
			cleanups = append(cleanups, client.Close)
		}
	}

	f.logger.InfoContext(ctx, "Initialized local backend",
		"db_path", config.SQLiteDBPath,
		"amqp_enabled", len(cleanups) > 1)

	return &Result{
		Type:    LocalBackend,
		Adapter: adapter,
		KV:      repo,
		Ready:   repo.Ping,
		Cleanup: combine(cleanups),
	}, nil
}

func (f *Factory) createSheets(ctx context.Context, config Config) (*Result, error) {
	client, err := google.New(ctx, google.Options{
		SpreadsheetID:   config.GoogleSpreadsheetID,
		SheetName:       config.GoogleSheetName,
		CredentialsJSON: config.GoogleServiceAccountJSON,
		CredentialsFile: config.GoogleServiceAccountFile,
	}, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	// settings still live locally
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize settings storage: %w", err)
	}

	f.logger.InfoContext(ctx, "Initialized Google Sheets backend", log.FieldSheet, client.SheetName())

	return &Result{
		Type:    SheetsBackend,
		Adapter: client,
		KV:      repo,
		Sheets:  client,
		Ready:   client.Ping,
		Cleanup: repo.Close,
	}, nil
}

func (f *Factory) createMemory(config Config) *Result {
	kv := local.NewMemoryKV(config.MemoryQuota)
	f.logger.Info("Initialized memory backend", "quota", config.MemoryQuota)
	return &Result{
		Type:    MemoryBackend,
		Adapter: local.New(kv, f.logger),
		KV:      kv,
		Ready:   func(context.Context) error { return nil },
	}
}

// combine runs cleanups in reverse order and joins their errors.
func combine(cleanups []CleanupFunc) CleanupFunc {
	return func() error {
		var errs []error
		for i := len(cleanups) - 1; i >= 0; i-- {
			if err := cleanups[i](); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
}
