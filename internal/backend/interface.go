package backend

import (
	"context"

	"rewards/internal/records"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// CheckFunc reports whether the backend can currently serve requests
type CheckFunc func(ctx context.Context) error

// BackendResult contains the store and its optional lifecycle hooks
type BackendResult struct {
	Type    BackendType
	Store   records.Store
	Cleanup CleanupFunc
	Check   CheckFunc
}

// Close runs Cleanup when one is set
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Ready runs Check when one is set
func (r *BackendResult) Ready(ctx context.Context) error {
	if r == nil || r.Check == nil {
		return nil
	}
	return r.Check(ctx)
}

// Factory creates record stores based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// CSV specific
	DataFile string

	// SQLite specific
	SQLiteDBPath string

	// Google Sheets specific
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
}

// BackendType represents the type of backend
type BackendType string

const (
	CSVBackend    BackendType = "csv"
	SQLiteBackend BackendType = "sqlite"
	SheetsBackend BackendType = "sheets"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case CSVBackend, SQLiteBackend, SheetsBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
