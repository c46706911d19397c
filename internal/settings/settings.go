// Package settings persists the host integration settings next to the records.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"payrollforms/internal/log"
	"payrollforms/internal/persist"
)

// StorageKey holds the settings object.
const StorageKey = "payroll-forms-settings"

type Settings struct {
	// SheetName is the designated worksheet for the spreadsheet backend.
	SheetName string `json:"sheetName"`
	// AutoOpen opens the web UI in the default browser when the server starts.
	AutoOpen bool `json:"autoOpen"`
}

// Store caches the settings and writes every change through to the KV.
type Store struct {
	kv       persist.KV
	defaults Settings
	logger   *log.Logger

	mu      sync.RWMutex
	current Settings
}

func NewStore(kv persist.KV, defaults Settings, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Discard()
	}
	return &Store{
		kv:       kv,
		defaults: defaults,
		current:  defaults,
		logger:   logger.WithComponent(log.ComponentStorage),
	}
}

// Load reads stored settings. Absent or malformed data keeps the defaults;
// stored blank fields fall back to their default.
func (s *Store) Load(ctx context.Context) (Settings, error) {
	raw, err := s.kv.Get(ctx, StorageKey)
	if errors.Is(err, persist.ErrKeyNotFound) {
		return s.Get(), nil
	}
	if err != nil {
		return s.Get(), fmt.Errorf("load settings: %w", err)
	}

	loaded := s.defaults
	if err := json.Unmarshal([]byte(raw), &loaded); err != nil {
		s.logger.WarnContext(ctx, "Stored settings are malformed, using defaults", log.FieldError, err)
		return s.Get(), nil
	}
	if strings.TrimSpace(loaded.SheetName) == "" {
		loaded.SheetName = s.defaults.SheetName
	}

	s.mu.Lock()
	s.current = loaded
	s.mu.Unlock()
	return loaded, nil
}

func (s *Store) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Save persists next. The cached value only changes when the write succeeds.
func (s *Store) Save(ctx context.Context, next Settings) error {
	next.SheetName = strings.TrimSpace(next.SheetName)
	if next.SheetName == "" {
		next.SheetName = s.defaults.SheetName
	}
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if err := s.kv.Set(ctx, StorageKey, string(data)); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}

	s.mu.Lock()
	s.current = next
	s.mu.Unlock()
	s.logger.InfoContext(ctx, "Settings saved", log.FieldSheet, next.SheetName, "auto_open", next.AutoOpen)
	return nil
}
