package backend

import (
	"context"
	"fmt"
	"log/slog"

	gsheet "carteira/internal/sheets/google"
	"carteira/internal/sheets/memory"
	"carteira/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if !config.Type.IsValid() {
		return nil, fmt.Errorf("invalid backend type: %s", config.Type)
	}

	switch config.Type {
	case MemoryBackend:
		return f.createMemoryBackend()
	case SheetsBackend:
		return f.createSheetsBackend(ctx, config)
	case SnapshotBackend:
		return f.createSnapshotBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createMemoryBackend() (*BackendResult, error) {
	store, err := memory.NewDemo()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize demo store: %w", err)
	}

	f.logger.Info("Initialized memory backend with demo worksheets")

	return &BackendResult{
		Backend: store,
		Cleanup: nil, // No cleanup needed for memory backend
	}, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*BackendResult, error) {
	cli, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   config.GoogleSpreadsheetID,
		CredentialsJSON: config.GoogleServiceAccountJSON,
		CredentialsFile: config.GoogleServiceAccountFile,
		Datasets:        config.Datasets,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	f.logger.Info("Initialized Google Sheets backend")

	return &BackendResult{
		Backend: cli,
		Cleanup: nil, // No cleanup needed for sheets backend
	}, nil
}

func (f *DefaultFactory) createSnapshotBackend(config Config) (*BackendResult, error) {
	repo, err := storage.NewSnapshotRepository(config.SnapshotDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize snapshot repository: %w", err)
	}

	f.logger.Info("Initialized snapshot backend", "db_path", config.SnapshotDBPath)

	return &BackendResult{
		Backend: repo,
		Cleanup: repo.Close,
	}, nil
}
