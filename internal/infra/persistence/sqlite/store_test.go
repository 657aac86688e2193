package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"exfolab/pkg/domain"
)

func sample(id string) domain.ExperimentRecord {
	return domain.ExperimentRecord{
		ExperimentID:         id,
		Timestamp:            time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC),
		Mode:                 domain.ModeConstantVoltage,
		Electrolyte:          "KOH",
		InitialMassPositiveG: 1.0,
		FinalMassPositiveG:   1.2,
		InitialMassNegativeG: 1.0,
		FinalMassNegativeG:   0.9,
	}
}

func TestSQLiteStorePersistAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.db")
	store, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, e := tx.CreateExperiment(sample("E1"))
		return e
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reloaded, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	t.Cleanup(func() { _ = reloaded.Close() })
	records := reloaded.ListExperiments()
	if len(records) != 1 {
		t.Fatalf("expected 1 experiment, got %d", len(records))
	}
	if records[0].ExperimentID != "E1" {
		t.Fatalf("unexpected record: %+v", records[0])
	}
	const eps = 1e-9
	if d := records[0].DeltaMassPositiveG - 0.2; d > eps || d < -eps {
		t.Fatalf("delta lost across reload: %v", records[0].DeltaMassPositiveG)
	}
}

func TestSQLiteStoreCreatesStateTable(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "state.db"), domain.NewRulesEngine())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	var tableName string
	if err := store.DB().QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='state'").Scan(&tableName); err != nil {
		t.Fatalf("lookup state table: %v", err)
	}
	if tableName != "state" {
		t.Fatalf("expected state table, got %s", tableName)
	}
}

func TestSQLiteStoreOverwritesSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	store, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	ctx := context.Background()
	var id string
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		rec, e := tx.CreateExperiment(sample("E1"))
		id = rec.ID
		return e
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return tx.DeleteExperiment(id)
	}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reloaded, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	t.Cleanup(func() { _ = reloaded.Close() })
	if got := len(reloaded.ListExperiments()); got != 0 {
		t.Fatalf("delete not persisted: %d records", got)
	}
}
