package core

import (
	"fmt"
	"os"

	"exfolab/internal/infra/persistence/memory"
	"exfolab/internal/infra/persistence/postgres"
	"exfolab/internal/infra/persistence/sqlite"
	"exfolab/pkg/domain"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

type (
	Transaction     = domain.Transaction
	TransactionView = domain.TransactionView
	PersistentStore = domain.PersistentStore
)

// StorageOptions parameterizes OpenStore.
type StorageOptions struct {
	Driver      StorageDriver
	SQLitePath  string
	PostgresDSN string
}

// OpenStore selects a persistence backend from the supplied options.
// An empty driver defaults to sqlite.
func OpenStore(opts StorageOptions, engine *domain.RulesEngine) (PersistentStore, error) {
	driver := opts.Driver
	if driver == "" {
		driver = StorageSQLite
	}
	switch driver {
	case StorageMemory:
		return memory.NewStore(engine), nil
	case StorageSQLite:
		return sqlite.NewStore(opts.SQLitePath, engine)
	case StoragePostgres:
		return postgres.NewStore(opts.PostgresDSN, engine)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}

// OpenPersistentStore selects a backend using environment variables.
// Defaults to sqlite when unset.
//
//	EXFOLAB_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	EXFOLAB_SQLITE_PATH: path to sqlite file (default ./exfolab.db)
//	EXFOLAB_POSTGRES_DSN: postgres DSN when driver=postgres
func OpenPersistentStore(engine *domain.RulesEngine) (PersistentStore, error) {
	return OpenStore(StorageOptions{
		Driver:      StorageDriver(os.Getenv("EXFOLAB_STORAGE_DRIVER")),
		SQLitePath:  os.Getenv("EXFOLAB_SQLITE_PATH"),
		PostgresDSN: os.Getenv("EXFOLAB_POSTGRES_DSN"),
	}, engine)
}
