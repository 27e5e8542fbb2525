package backend

import (
	"context"

	"carteira/internal/sheets"
)

// Backend is the data surface the web app consumes. Every backend serves
// normalized datasets; whether they come from demo fixtures, Google Sheets
// or local snapshots is the factory's concern.
type Backend interface {
	sheets.RecordReader
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the backend instance and optional cleanup function
type BackendResult struct {
	Backend Backend
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type BackendType

	// Snapshot store specific
	SnapshotDBPath string

	// Google Sheets specific
	GoogleSpreadsheetID      string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Dataset table served by the backend. Empty means the default
	// wallet worksheets.
	Datasets []sheets.DatasetSpec
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SheetsBackend   BackendType = "sheets"
	SnapshotBackend BackendType = "snapshot"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SheetsBackend, SnapshotBackend:
		return true
	default:
		return false
	}
}
