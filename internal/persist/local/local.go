// Package local persists the record store as one JSON blob under a single key.
package local

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"slices"

	"payrollforms/internal/core"
	"payrollforms/internal/log"
	"payrollforms/internal/persist"
)

// StorageKey is the namespaced key holding the id to record object.
const StorageKey = "payroll-forms"

const backendName = "local"

type Adapter struct {
	kv     persist.KV
	key    string
	logger *log.Logger
}

var _ persist.Adapter = (*Adapter)(nil)

func New(kv persist.KV, logger *log.Logger) *Adapter {
	if logger == nil {
		logger = log.Discard()
	}
	return &Adapter{
		kv:     kv,
		key:    StorageKey,
		logger: logger.WithComponent(log.ComponentStorage),
	}
}

func (a *Adapter) Name() string { return backendName }

// Load never fails on absent or malformed data: both yield an empty store.
// Only a failing read of the underlying storage is reported.
func (a *Adapter) Load(ctx context.Context) (*core.Store, error) {
	raw, err := a.kv.Get(ctx, a.key)
	if errors.Is(err, persist.ErrKeyNotFound) {
		a.logger.DebugContext(ctx, "No stored forms, starting empty", "key", a.key)
		return core.NewStore(), nil
	}
	if err != nil {
		return nil, &core.PersistenceError{Backend: backendName, Op: log.OpLoad, Err: err}
	}
	if raw == "" {
		return core.NewStore(), nil
	}

	var stored map[string]core.Record
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		a.logger.WarnContext(ctx, "Stored forms are malformed, starting empty", "key", a.key, log.FieldError, err)
		return core.NewStore(), nil
	}
	return Decode(ctx, stored, a.logger), nil
}

// Decode rebuilds a store from an id to record mapping. The key wins over a
// mismatching id, a bad month key is recomputed from createdAt, and records
// are inserted oldest first so store order is deterministic.
func Decode(ctx context.Context, stored map[string]core.Record, logger *log.Logger) *core.Store {
	records := make([]core.Record, 0, len(stored))
	for key, r := range stored {
		if r.ID != key {
			logger.WarnContext(ctx, "Record id does not match its key", "key", key, log.FieldRecordID, r.ID)
			r.ID = key
		}
		if !core.ValidMonthKey(r.MonthKey) {
			fixed := core.MonthKey(r.CreatedAt.Local())
			logger.WarnContext(ctx, "Record has an invalid month key", log.FieldRecordID, key, "month_key", r.MonthKey, "replacement", fixed)
			r.MonthKey = fixed
		}
		records = append(records, r)
	}
	slices.SortFunc(records, func(a, b core.Record) int {
		if c := a.CreatedAt.Compare(b.CreatedAt.Time); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	s := core.NewStore()
	for _, r := range records {
		s.Put(r)
	}
	return s
}

// Save writes the whole store. On failure the caller's store is left as is.
func (a *Adapter) Save(ctx context.Context, s *core.Store) error {
	data, err := json.Marshal(s.Map())
	if err != nil {
		return &core.PersistenceError{Backend: backendName, Op: log.OpSave, Err: err}
	}
	if err := a.kv.Set(ctx, a.key, string(data)); err != nil {
		return &core.PersistenceError{Backend: backendName, Op: log.OpSave, Err: err}
	}
	a.logger.DebugContext(ctx, "Forms saved", log.FieldRecords, s.Len(), "bytes", len(data))
	return nil
}
