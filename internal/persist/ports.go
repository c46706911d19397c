// Package persist defines the storage ports the controller depends on.
package persist

import (
	"context"
	"errors"

	"payrollforms/internal/core"
)

// ErrKeyNotFound is returned by KV.Get for a key that was never written.
var ErrKeyNotFound = errors.New("key not found")

// Ports for outbound adapters.
type (
	// Adapter loads and saves the whole record store.
	Adapter interface {
		Load(ctx context.Context) (*core.Store, error)
		Save(ctx context.Context, s *core.Store) error
		Name() string
	}

	// KV is a namespaced string key/value storage, the host-side equivalent
	// of browser local storage.
	KV interface {
		Get(ctx context.Context, key string) (string, error)
		Set(ctx context.Context, key, value string) error
	}
)
