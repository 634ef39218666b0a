package cli

import (
	"context"
	"path/filepath"
	"testing"

	"khoroch/internal/config"
	applog "khoroch/internal/log"
	"khoroch/internal/storage"
)

func TestStoreOptions(t *testing.T) {
	cfg := &config.Config{DataBackend: "sqlite", SQLiteDBPath: "x.db", DataDirectory: "data"}
	opts := StoreOptions(cfg)
	if opts.Backend != storage.SQLiteBackend || opts.SQLiteDBPath != "x.db" || opts.DataDirectory != "data" {
		t.Fatalf("unexpected options %+v", opts)
	}
}

func TestOpenStore(t *testing.T) {
	logger := applog.New(applog.Config{Format: "json"})
	cfg := &config.Config{DataBackend: "sqlite", SQLiteDBPath: filepath.Join(t.TempDir(), "k.db")}

	store, err := OpenStore(context.Background(), cfg, logger)
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}
	defer store.Close()

	cfg.DataBackend = "redis"
	if _, err := OpenStore(context.Background(), cfg, logger); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestSetupLogger(t *testing.T) {
	logger := SetupLogger(&config.Config{LogLevel: "debug", LogFormat: "json"}, "test")
	if logger.Component() != "test" {
		t.Fatalf("Component() = %q", logger.Component())
	}
}
