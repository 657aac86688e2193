package domain

import "context"

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	CreateExperiment(ExperimentRecord) (ExperimentRecord, error)
	UpdateExperiment(id string, mutator func(*ExperimentRecord) error) (ExperimentRecord, error)
	DeleteExperiment(id string) error
	FindExperiment(id string) (ExperimentRecord, bool)
}

// TransactionView provides read-only access to snapshot data for rules.
type TransactionView interface {
	ListExperiments() []ExperimentRecord
	FindExperiment(id string) (ExperimentRecord, bool)
	FindExperimentByExperimentID(experimentID string) (ExperimentRecord, bool)
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetExperiment(id string) (ExperimentRecord, bool)
	ListExperiments() []ExperimentRecord
}
