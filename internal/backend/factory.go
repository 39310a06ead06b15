package backend

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"rewards/internal/records/csvfile"
	gsheet "rewards/internal/records/google"
	"rewards/internal/records/memory"
	"rewards/internal/storage"
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
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case CSVBackend:
		return f.createCSVBackend(config)
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case SheetsBackend:
		return f.createSheetsBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend()
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createCSVBackend(config Config) (*BackendResult, error) {
	store := csvfile.New(config.DataFile)
	dir := filepath.Dir(config.DataFile)

	f.logger.Info("Initialized CSV backend", "path", config.DataFile)

	return &BackendResult{
		Type:  CSVBackend,
		Store: store,
		// The file itself may not exist yet; its directory must be usable.
		Check: func(context.Context) error {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("data directory: %w", err)
			}
			return nil
		},
	}, nil
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"schema_version", repo.SchemaVersion())

	return &BackendResult{
		Type:    SQLiteBackend,
		Store:   repo,
		Cleanup: repo.Close,
		Check:   repo.Ping,
	}, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*BackendResult, error) {
	var (
		cli *gsheet.Client
		err error
	)
	switch {
	case config.GoogleServiceAccountJSON != "":
		cli, err = gsheet.NewWithServiceAccount(ctx, config.GoogleSpreadsheetID, config.GoogleSheetName, []byte(config.GoogleServiceAccountJSON))
	case config.GoogleServiceAccountFile != "":
		var b []byte
		b, err = os.ReadFile(config.GoogleServiceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		cli, err = gsheet.NewWithServiceAccount(ctx, config.GoogleSpreadsheetID, config.GoogleSheetName, b)
	default:
		cli, err = gsheet.NewFromEnv(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	f.logger.Info("Initialized Google Sheets backend", "sheet", cli.SheetName())

	return &BackendResult{
		Type:  SheetsBackend,
		Store: cli,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend() (*BackendResult, error) {
	f.logger.Warn("Initialized memory backend, entries are lost on restart")

	return &BackendResult{
		Type:  MemoryBackend,
		Store: memory.New(),
	}, nil
}
