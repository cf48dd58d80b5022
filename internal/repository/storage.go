package repository

import (
	"context"
	"fmt"
	"os"

	"dddcore/internal/infra/persistence/memory"
	"dddcore/internal/infra/persistence/postgres"
	"dddcore/internal/infra/persistence/sqlite"
	"dddcore/pkg/domain"
)

// StorageDriver identifies a concrete snapshot store implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// OpenSnapshotStore selects a backend using environment variables.
// Defaults to sqlite when unset.
//
//	DDDCORE_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	DDDCORE_SQLITE_PATH: path to sqlite file (default ./dddcore.db)
//	DDDCORE_POSTGRES_DSN: postgres DSN when driver=postgres
func OpenSnapshotStore(ctx context.Context) (domain.SnapshotStore, error) {
	driver := os.Getenv("DDDCORE_STORAGE_DRIVER")
	if driver == "" {
		driver = string(StorageSQLite)
	}
	switch StorageDriver(driver) {
	case StorageMemory:
		return memory.NewStore(), nil
	case StorageSQLite:
		store, err := sqlite.NewStore(os.Getenv("DDDCORE_SQLITE_PATH"))
		if err != nil {
			return nil, err
		}
		return store, nil
	case StoragePostgres:
		store, err := postgres.NewStore(ctx, os.Getenv("DDDCORE_POSTGRES_DSN"))
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
