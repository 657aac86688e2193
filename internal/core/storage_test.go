package core_test

import (
	"path/filepath"
	"testing"

	"exfolab/internal/core"
	"exfolab/pkg/domain"
)

func TestOpenStoreDrivers(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		store, err := core.OpenStore(core.StorageOptions{Driver: core.StorageMemory}, domain.NewRulesEngine())
		if err != nil {
			t.Fatalf("open memory: %v", err)
		}
		if store == nil {
			t.Fatalf("nil store")
		}
	})

	t.Run("sqlite", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "state.db")
		store, err := core.OpenStore(core.StorageOptions{Driver: core.StorageSQLite, SQLitePath: path}, domain.NewRulesEngine())
		if err != nil {
			t.Skipf("sqlite unavailable: %v", err)
		}
		if store == nil {
			t.Fatalf("nil store")
		}
	})

	t.Run("unknown", func(t *testing.T) {
		if _, err := core.OpenStore(core.StorageOptions{Driver: "tape"}, domain.NewRulesEngine()); err == nil {
			t.Fatalf("expected unknown driver error")
		}
	})
}

func TestOpenPersistentStoreFromEnv(t *testing.T) {
	t.Setenv("EXFOLAB_STORAGE_DRIVER", "memory")
	store, err := core.OpenPersistentStore(domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("open from env: %v", err)
	}
	if store == nil {
		t.Fatalf("nil store")
	}
}
