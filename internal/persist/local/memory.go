package local

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"payrollforms/internal/persist"
)

// ErrQuotaExceeded mirrors the browser storage failure when a write would not fit.
var ErrQuotaExceeded = errors.New("storage quota exceeded")

// MemoryKV is an in-process KV. A positive Quota caps the total bytes of keys and values.
type MemoryKV struct {
	mu     sync.RWMutex
	values map[string]string
	quota  int
}

var _ persist.KV = (*MemoryKV)(nil)

func NewMemoryKV(quota int) *MemoryKV {
	return &MemoryKV{values: make(map[string]string), quota: quota}
}

func (m *MemoryKV) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", persist.ErrKeyNotFound, key)
	}
	return v, nil
}

func (m *MemoryKV) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.quota > 0 {
		used := 0
		for k, v := range m.values {
			if k != key {
				used += len(k) + len(v)
			}
		}
		if used+len(key)+len(value) > m.quota {
			return fmt.Errorf("%w: %d bytes allowed", ErrQuotaExceeded, m.quota)
		}
	}
	m.values[key] = value
	return nil
}
