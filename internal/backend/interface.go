package backend

import (
	"context"

	"payrollforms/internal/persist"
	"payrollforms/internal/sheets/google"
)

// CleanupFunc releases resources held by a backend
type CleanupFunc func() error

// Result contains the selected adapter and the resources behind it.
type Result struct {
	Type    Type
	Adapter persist.Adapter
	// KV backs settings. It is the sqlite store for local and sheets, memory otherwise.
	KV persist.KV
	// Sheets is set only for the sheets backend, so callers can apply the
	// persisted sheet name.
	Sheets  *google.Client
	Ready   func(ctx context.Context) error
	Cleanup CleanupFunc
}

// Close runs Cleanup if there is one
func (r *Result) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Config holds configuration for backend creation
type Config struct {
	Type Type

	// Local storage
	SQLiteDBPath string
	MemoryQuota  int

	// Save events, optional
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
}

// Type represents the persistence variant
type Type string

const (
	MemoryBackend Type = "memory"
	LocalBackend  Type = "local"
	SheetsBackend Type = "sheets"
)

// DefaultMemoryQuota matches the usual browser storage allowance.
const DefaultMemoryQuota = 5 << 20

// String implements fmt.Stringer
func (t Type) String() string {
	return string(t)
}

// IsValid returns true if the backend type is valid
func (t Type) IsValid() bool {
	switch t {
	case MemoryBackend, LocalBackend, SheetsBackend:
		return true
	default:
		return false
	}
}

// Detect picks the spreadsheet when a spreadsheet id is configured and local storage otherwise.
func Detect(spreadsheetID string) Type {
	if spreadsheetID != "" {
		return SheetsBackend
	}
	return LocalBackend
}
