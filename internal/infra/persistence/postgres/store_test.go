package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"exfolab/pkg/domain"
)

var stubSeq uint64

// stubConn is a minimal database/sql driver that records statements and holds
// a single snapshot payload for the state table.
type stubConn struct {
	execs    []string
	payload  []byte
	failPing bool
	failExec bool
}

type stubDriver struct{ conn *stubConn }

func newStubDB(conn *stubConn) *sql.DB {
	name := fmt.Sprintf("stubpg%d", atomic.AddUint64(&stubSeq, 1))
	sql.Register(name, &stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		panic(err)
	}
	return db
}

func (d *stubDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

func (c *stubConn) Prepare(string) (driver.Stmt, error) { return nil, fmt.Errorf("not implemented") }
func (c *stubConn) Close() error                        { return nil }
func (c *stubConn) Begin() (driver.Tx, error)           { return nil, fmt.Errorf("not implemented") }

func (c *stubConn) Ping(context.Context) error {
	if c.failPing {
		return fmt.Errorf("ping fail")
	}
	return nil
}

func (c *stubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.execs = append(c.execs, query)
	if c.failExec {
		return nil, fmt.Errorf("exec fail")
	}
	if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "INSERT INTO STATE") && len(args) == 2 {
		if data, ok := args[1].Value.([]byte); ok {
			c.payload = append([]byte(nil), data...)
		}
	}
	return driver.RowsAffected(1), nil
}

func (c *stubConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	if !strings.Contains(strings.ToUpper(query), "FROM STATE") {
		return nil, fmt.Errorf("unexpected query: %s", query)
	}
	rows := &stubRows{}
	if c.payload != nil {
		rows.values = [][]driver.Value{{append([]byte(nil), c.payload...)}}
	}
	return rows, nil
}

type stubRows struct {
	values [][]driver.Value
	idx    int
}

func (r *stubRows) Columns() []string { return []string{"payload"} }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.values) {
		return io.EOF
	}
	copy(dest, r.values[r.idx])
	r.idx++
	return nil
}

func sample(id string) domain.ExperimentRecord {
	return domain.ExperimentRecord{
		ExperimentID:         id,
		Timestamp:            time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC),
		Mode:                 domain.ModeConstantCurrent,
		Electrolyte:          "H2SO4",
		InitialMassPositiveG: 2.0,
		FinalMassPositiveG:   2.05,
		InitialMassNegativeG: 2.0,
		FinalMassNegativeG:   1.8,
	}
}

func TestNewStoreEnsuresStateTableAndLoadsSnapshot(t *testing.T) {
	conn := &stubConn{}
	seed := map[string]domain.ExperimentRecord{
		"abc": func() domain.ExperimentRecord {
			rec := sample("E1")
			rec.ID = "abc"
			rec.ComputeDeltas()
			return rec
		}(),
	}
	payload, err := json.Marshal(seed)
	if err != nil {
		t.Fatalf("marshal seed: %v", err)
	}
	conn.payload = payload

	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return newStubDB(conn), nil })
	defer restore()

	store, err := NewStore("", domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	records := store.ListExperiments()
	if len(records) != 1 || records[0].ExperimentID != "E1" {
		t.Fatalf("snapshot not hydrated: %+v", records)
	}
	var sawDDL bool
	for _, stmt := range conn.execs {
		if strings.Contains(strings.ToUpper(stmt), "CREATE TABLE IF NOT EXISTS STATE") {
			sawDDL = true
		}
	}
	if !sawDDL {
		t.Fatalf("state table DDL not applied: %v", conn.execs)
	}
}

func TestRunInTransactionPersistsSnapshot(t *testing.T) {
	conn := &stubConn{}
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return newStubDB(conn), nil })
	defer restore()

	store, err := NewStore("", domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, e := tx.CreateExperiment(sample("E2"))
		return e
	}); err != nil {
		t.Fatalf("run in transaction: %v", err)
	}
	if conn.payload == nil {
		t.Fatalf("expected snapshot upsert after commit")
	}
	var decoded map[string]domain.ExperimentRecord
	if err := json.Unmarshal(conn.payload, &decoded); err != nil {
		t.Fatalf("decode persisted payload: %v", err)
	}
	if len(decoded) != 1 {
		t.Fatalf("expected 1 persisted record, got %d", len(decoded))
	}
	for _, rec := range decoded {
		if rec.ExperimentID != "E2" {
			t.Fatalf("unexpected record persisted: %+v", rec)
		}
	}
}

func TestNewStoreFailsWhenPingFails(t *testing.T) {
	conn := &stubConn{failPing: true}
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return newStubDB(conn), nil })
	defer restore()

	if _, err := NewStore("", domain.NewRulesEngine()); err == nil {
		t.Fatalf("expected ping failure")
	}
}
