package sheets

import (
	"context"

	"carteira/internal/core"
)

// Ports for record sources and sinks.
type (
	// RecordReader loads one named dataset as normalized records.
	RecordReader interface {
		ReadRecords(ctx context.Context, dataset string) (*core.Dataset, error)
	}

	// SnapshotWriter persists a fetched dataset for offline serving.
	SnapshotWriter interface {
		WriteSnapshot(ctx context.Context, ds *core.Dataset) error
	}
)
