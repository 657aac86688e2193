// Package memory provides an in-memory implementation of the experiment
// persistence store used for tests and ephemeral environments.
package memory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sort"
	"sync"
	"time"

	"exfolab/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

type memoryState struct {
	experiments map[string]domain.ExperimentRecord
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Experiments map[string]domain.ExperimentRecord `json:"experiments"`
}

func newMemoryState() memoryState {
	return memoryState{experiments: make(map[string]domain.ExperimentRecord)}
}

func (s memoryState) clone() memoryState {
	cloned := newMemoryState()
	for k, v := range s.experiments {
		cloned.experiments[k] = v
	}
	return cloned
}

// Store is an in-memory transactional store for experiment records.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *domain.RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *domain.RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the transaction timestamp source. Intended for tests.
func (s *Store) SetClock(nowFn func() time.Time) {
	if nowFn != nil {
		s.nowFn = nowFn
	}
}

func newID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b[:])
}

// transaction applies mutations to a cloned state, committed only when the
// rules engine raises no blocking violations.
type transaction struct {
	state   memoryState
	changes []domain.Change
	now     time.Time
}

var _ domain.Transaction = (*transaction)(nil)

type view struct {
	state *memoryState
}

var _ domain.TransactionView = view{}

// ListExperiments returns all experiments in the snapshot, ordered by
// timestamp descending (newest first), matching the query surface upstream.
func (v view) ListExperiments() []domain.ExperimentRecord {
	out := make([]domain.ExperimentRecord, 0, len(v.state.experiments))
	for _, rec := range v.state.experiments {
		out = append(out, rec)
	}
	sortByTimestampDesc(out)
	return out
}

func (v view) FindExperiment(id string) (domain.ExperimentRecord, bool) {
	rec, ok := v.state.experiments[id]
	return rec, ok
}

func (v view) FindExperimentByExperimentID(experimentID string) (domain.ExperimentRecord, bool) {
	for _, rec := range v.state.experiments {
		if rec.ExperimentID == experimentID {
			return rec, true
		}
	}
	return domain.ExperimentRecord{}, false
}

func sortByTimestampDesc(records []domain.ExperimentRecord) {
	sort.Slice(records, func(i, j int) bool {
		if !records[i].Timestamp.Equal(records[j].Timestamp) {
			return records[i].Timestamp.After(records[j].Timestamp)
		}
		// stable order for equal timestamps: fall back to experiment id
		return records[i].ExperimentID < records[j].ExperimentID
	})
}

// Snapshot returns a read-only view of the transactional state.
func (tx *transaction) Snapshot() domain.TransactionView {
	return view{state: &tx.state}
}

// CreateExperiment stores a new record within the transaction. Mass deltas
// are recomputed so the derived fields always match the raw masses.
func (tx *transaction) CreateExperiment(rec domain.ExperimentRecord) (domain.ExperimentRecord, error) {
	if rec.ID == "" {
		rec.ID = newID()
	}
	if _, exists := tx.state.experiments[rec.ID]; exists {
		return domain.ExperimentRecord{}, domain.ErrDuplicate{Entity: domain.EntityExperiment, ID: rec.ID}
	}
	rec.CreatedAt = tx.now
	rec.UpdatedAt = tx.now
	if rec.Timestamp.IsZero() {
		rec.Timestamp = tx.now
	}
	rec.ComputeDeltas()
	tx.state.experiments[rec.ID] = rec
	tx.changes = append(tx.changes, domain.Change{Entity: domain.EntityExperiment, Action: domain.ActionCreate, After: rec})
	return rec, nil
}

// UpdateExperiment mutates a record using the provided mutator. Deltas are
// recomputed after the mutator runs so edits to raw masses cannot leave a
// stale delta behind.
func (tx *transaction) UpdateExperiment(id string, mutator func(*domain.ExperimentRecord) error) (domain.ExperimentRecord, error) {
	current, ok := tx.state.experiments[id]
	if !ok {
		return domain.ExperimentRecord{}, domain.ErrNotFound{Entity: domain.EntityExperiment, ID: id}
	}
	before := current
	if err := mutator(&current); err != nil {
		return domain.ExperimentRecord{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	current.ComputeDeltas()
	tx.state.experiments[id] = current
	tx.changes = append(tx.changes, domain.Change{Entity: domain.EntityExperiment, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// DeleteExperiment removes a record from the transaction state.
func (tx *transaction) DeleteExperiment(id string) error {
	current, ok := tx.state.experiments[id]
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityExperiment, ID: id}
	}
	delete(tx.state.experiments, id)
	tx.changes = append(tx.changes, domain.Change{Entity: domain.EntityExperiment, Action: domain.ActionDelete, Before: current})
	return nil
}

// FindExperiment retrieves a record by store ID from the transaction state.
func (tx *transaction) FindExperiment(id string) (domain.ExperimentRecord, bool) {
	rec, ok := tx.state.experiments[id]
	return rec, ok
}

// RunInTransaction executes fn within a transactional copy of the store
// state, evaluates the rules engine over the result, and commits unless a
// blocking violation is present.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{state: s.state.clone(), now: s.nowFn()}
	if err := fn(tx); err != nil {
		return domain.Result{}, err
	}

	var result domain.Result
	if s.engine != nil {
		res, err := s.engine.Evaluate(ctx, view{state: &tx.state}, tx.changes)
		if err != nil {
			return domain.Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(domain.TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	return fn(view{state: &snapshot})
}

// GetExperiment retrieves a record by store ID.
func (s *Store) GetExperiment(id string) (domain.ExperimentRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.state.experiments[id]
	return rec, ok
}

// ListExperiments returns all records ordered newest first.
func (s *Store) ListExperiments() []domain.ExperimentRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ExperimentRecord, 0, len(s.state.experiments))
	for _, rec := range s.state.experiments {
		out = append(out, rec)
	}
	sortByTimestampDesc(out)
	return out
}

// ExportState captures the current state for durable backends.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{Experiments: make(map[string]domain.ExperimentRecord, len(s.state.experiments))}
	for k, v := range s.state.experiments {
		snap.Experiments[k] = v
	}
	return snap
}

// ImportState replaces the current state with the supplied snapshot.
func (s *Store) ImportState(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := newMemoryState()
	for k, v := range snap.Experiments {
		state.experiments[k] = v
	}
	s.state = state
}
