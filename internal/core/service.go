// Package core exposes the transactional experiment record service and its
// commit-time rules. The analysis engine itself lives in internal/analysis;
// this package feeds it validated, persisted records.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"exfolab/internal/analysis"
	"exfolab/internal/infra/persistence/memory"
	"exfolab/pkg/domain"
)

// ValidationError is returned when record input fails upstream validation
// before it ever reaches the store or the analysis engine.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Service exposes higher-level transactional CRUD and query operations over
// experiment records, plus analysis entry points over the stored set.
type Service struct {
	store   domain.PersistentStore
	logger  *slog.Logger
	metrics MetricsRecorder
}

// Option customizes service construction.
type Option func(*Service)

// WithLogger attaches a structured logger to the service.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics attaches an operation metrics recorder to the service.
func WithMetrics(rec MetricsRecorder) Option {
	return func(s *Service) { s.metrics = rec }
}

// NewService constructs a service backed by the supplied store.
func NewService(store domain.PersistentStore, opts ...Option) *Service {
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewInMemoryService creates a service and in-memory store with the given rules engine.
func NewInMemoryService(engine *domain.RulesEngine, opts ...Option) *Service {
	return NewService(memory.NewStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() domain.PersistentStore {
	return s.store
}

func (s *Service) observe(ctx context.Context, operation string, start time.Time, err error) {
	if s.metrics != nil {
		s.metrics.Observe(ctx, operation, err == nil, time.Since(start))
	}
}

func validateExperiment(rec domain.ExperimentRecord) error {
	if strings.TrimSpace(rec.ExperimentID) == "" {
		return ValidationError{Field: "experiment_id", Reason: "required"}
	}
	switch rec.Mode {
	case domain.ModeConstantVoltage, domain.ModeConstantCurrent:
	default:
		return ValidationError{Field: "mode", Reason: fmt.Sprintf("must be %s or %s", domain.ModeConstantVoltage, domain.ModeConstantCurrent)}
	}
	if strings.TrimSpace(rec.Electrolyte) == "" {
		return ValidationError{Field: "electrolyte", Reason: "required"}
	}
	return nil
}

// CreateExperiment validates and persists a new record. Mass deltas are
// computed inside the transaction so they cannot drift from the raw masses.
func (s *Service) CreateExperiment(ctx context.Context, rec domain.ExperimentRecord) (domain.ExperimentRecord, Result, error) {
	start := time.Now()
	var created domain.ExperimentRecord
	if err := validateExperiment(rec); err != nil {
		s.observe(ctx, "create_experiment", start, err)
		return domain.ExperimentRecord{}, Result{}, err
	}
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var err error
		created, err = tx.CreateExperiment(rec)
		return err
	})
	s.observe(ctx, "create_experiment", start, err)
	if err != nil {
		s.logger.Warn("create experiment failed", "experiment_id", rec.ExperimentID, "error", err)
		return domain.ExperimentRecord{}, res, err
	}
	s.logger.Debug("experiment created", "id", created.ID, "experiment_id", created.ExperimentID)
	return created, res, nil
}

// UpdateExperiment mutates a record using the provided mutator. The store
// recomputes deltas after the mutator runs.
func (s *Service) UpdateExperiment(ctx context.Context, id string, mutator func(*domain.ExperimentRecord) error) (domain.ExperimentRecord, Result, error) {
	start := time.Now()
	var updated domain.ExperimentRecord
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var err error
		updated, err = tx.UpdateExperiment(id, mutator)
		return err
	})
	s.observe(ctx, "update_experiment", start, err)
	if err != nil {
		return domain.ExperimentRecord{}, res, err
	}
	s.logger.Debug("experiment updated", "id", id)
	return updated, res, nil
}

// DeleteExperiment removes a record.
func (s *Service) DeleteExperiment(ctx context.Context, id string) (Result, error) {
	start := time.Now()
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return tx.DeleteExperiment(id)
	})
	s.observe(ctx, "delete_experiment", start, err)
	return res, err
}

// GetExperiment retrieves a record by store ID.
func (s *Service) GetExperiment(id string) (domain.ExperimentRecord, bool) {
	return s.store.GetExperiment(id)
}

// GetByExperimentID retrieves a record by its experiment identifier.
func (s *Service) GetByExperimentID(ctx context.Context, experimentID string) (domain.ExperimentRecord, error) {
	var found domain.ExperimentRecord
	var ok bool
	if err := s.store.View(ctx, func(view domain.TransactionView) error {
		found, ok = view.FindExperimentByExperimentID(experimentID)
		return nil
	}); err != nil {
		return domain.ExperimentRecord{}, err
	}
	if !ok {
		return domain.ExperimentRecord{}, ErrNotFound{Entity: EntityExperiment, ID: experimentID}
	}
	return found, nil
}

// ListExperiments returns all records, newest first.
func (s *Service) ListExperiments() []domain.ExperimentRecord {
	return s.store.ListExperiments()
}

// Filter narrows a record query. Zero fields are ignored; Search matches a
// case-insensitive substring against experiment id and notes.
type Filter struct {
	From        *time.Time
	To          *time.Time
	Mode        domain.Mode
	Electrolyte string
	Search      string
}

func (f Filter) matches(rec domain.ExperimentRecord) bool {
	if f.From != nil && rec.Timestamp.Before(*f.From) {
		return false
	}
	if f.To != nil && rec.Timestamp.After(*f.To) {
		return false
	}
	if f.Mode != "" && rec.Mode != f.Mode {
		return false
	}
	if f.Electrolyte != "" && rec.Electrolyte != f.Electrolyte {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(rec.ExperimentID), needle) &&
			!strings.Contains(strings.ToLower(rec.Notes), needle) {
			return false
		}
	}
	return true
}

// QueryExperiments returns the records matching the filter, ordered by
// timestamp descending.
func (s *Service) QueryExperiments(ctx context.Context, f Filter) ([]domain.ExperimentRecord, error) {
	start := time.Now()
	var out []domain.ExperimentRecord
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		for _, rec := range view.ListExperiments() {
			if f.matches(rec) {
				out = append(out, rec)
			}
		}
		return nil
	})
	s.observe(ctx, "query_experiments", start, err)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Tabulate projects the records matching the filter into an analysis table.
func (s *Service) Tabulate(ctx context.Context, f Filter) (analysis.Table, error) {
	records, err := s.QueryExperiments(ctx, f)
	if err != nil {
		return analysis.Table{}, err
	}
	return analysis.Tabulate(records), nil
}

// DetectAnomalies runs the anomaly rules over the records matching the filter.
func (s *Service) DetectAnomalies(ctx context.Context, f Filter, overrides domain.ThresholdOverrides) ([]domain.AnomalyFinding, error) {
	start := time.Now()
	records, err := s.QueryExperiments(ctx, f)
	if err != nil {
		s.observe(ctx, "detect_anomalies", start, err)
		return nil, err
	}
	findings := analysis.Detect(records, overrides)
	s.observe(ctx, "detect_anomalies", start, nil)
	s.logger.Debug("anomaly detection complete", "records", len(records), "findings", len(findings))
	return findings, nil
}

// Summarize builds the combined analysis bundle over the records matching the
// filter.
func (s *Service) Summarize(ctx context.Context, f Filter, overrides domain.ThresholdOverrides) (analysis.Summary, error) {
	start := time.Now()
	records, err := s.QueryExperiments(ctx, f)
	if err != nil {
		s.observe(ctx, "summarize", start, err)
		return analysis.Summary{}, err
	}
	summary := analysis.Summarize(records, overrides)
	s.observe(ctx, "summarize", start, nil)
	return summary, nil
}
