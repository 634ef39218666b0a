package storage

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
)

// Backend selects the Store implementation.
type Backend string

const (
	MemoryBackend   Backend = "memory"
	SQLiteBackend   Backend = "sqlite"
	PostgresBackend Backend = "postgres"
)

// String implements fmt.Stringer
func (b Backend) String() string {
	return string(b)
}

// IsValid returns true if the backend type is valid
func (b Backend) IsValid() bool {
	switch b {
	case MemoryBackend, SQLiteBackend, PostgresBackend:
		return true
	default:
		return false
	}
}

// Options holds what each backend needs to open.
type Options struct {
	Backend Backend

	SQLiteDBPath string
	DatabaseURL  string

	// DataDirectory holds seed_expenses.txt for the memory backend.
	DataDirectory string
}

// Validate validates the backend options
func (o Options) Validate() error {
	if !o.Backend.IsValid() {
		return fmt.Errorf("invalid backend type: %s", o.Backend)
	}
	switch o.Backend {
	case SQLiteBackend:
		if o.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	case PostgresBackend:
		if o.DatabaseURL == "" {
			return fmt.Errorf("database URL is required for postgres backend")
		}
	}
	return nil
}

// Open creates the Store selected by opts.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	switch opts.Backend {
	case SQLiteBackend:
		s, err := NewSQLiteStore(opts.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
		}
		logger.Info("Initialized SQLite backend", "db_path", opts.SQLiteDBPath)
		return s, nil
	case PostgresBackend:
		s, err := NewPostgresStore(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres store: %w", err)
		}
		logger.Info("Initialized Postgres backend")
		return s, nil
	default:
		dataDir := opts.DataDirectory
		if dataDir == "" {
			dataDir = "data"
		}
		s := NewMemoryStoreFromFile(filepath.Join(dataDir, "seed_expenses.txt"))
		logger.Info("Initialized memory backend", "data_directory", dataDir, "seeded", s.Len())
		return s, nil
	}
}
