// Package domain defines the core persistent entities, value types, and
// rule evaluation primitives used by exfolab.
package domain

import (
	"fmt"
	"time"
)

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityExperiment identifies an exfoliation experiment record.
	EntityExperiment EntityType = "experiment"
)

// Mode enumerates the electrolysis operating modes recorded per experiment.
type Mode string

// Canonical operating modes: constant voltage and constant current.
const (
	ModeConstantVoltage Mode = "CV"
	ModeConstantCurrent Mode = "CC"
)

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ExperimentRecord captures one measured carbon-rod exfoliation trial. Mass
// deltas are derived fields kept in lockstep with the raw masses via
// ComputeDeltas; analysis code treats records as immutable inputs.
type ExperimentRecord struct {
	Base
	ExperimentID         string    `json:"experiment_id"`
	Timestamp            time.Time `json:"timestamp"`
	Mode                 Mode      `json:"mode"`
	Electrolyte          string    `json:"electrolyte"`
	VoltageV             *float64  `json:"voltage_v,omitempty"`
	CurrentA             *float64  `json:"current_a,omitempty"`
	DurationMin          *float64  `json:"duration_min,omitempty"`
	InitialMassPositiveG float64   `json:"initial_mass_positive_g"`
	FinalMassPositiveG   float64   `json:"final_mass_positive_g"`
	DeltaMassPositiveG   float64   `json:"delta_mass_positive_g"`
	InitialMassNegativeG float64   `json:"initial_mass_negative_g"`
	FinalMassNegativeG   float64   `json:"final_mass_negative_g"`
	DeltaMassNegativeG   float64   `json:"delta_mass_negative_g"`
	Notes                string    `json:"notes,omitempty"`
}

// ComputeDeltas recalculates both mass deltas from the raw masses. The store
// invokes it on every create and update so the derived fields never drift.
func (e *ExperimentRecord) ComputeDeltas() {
	e.DeltaMassPositiveG = e.FinalMassPositiveG - e.InitialMassPositiveG
	e.DeltaMassNegativeG = e.FinalMassNegativeG - e.InitialMassNegativeG
}

// Group returns the experimental-condition key the record belongs to.
func (e ExperimentRecord) Group() GroupKey {
	return GroupKey{Electrolyte: e.Electrolyte, Mode: e.Mode}
}

// GroupKey is the composite experimental condition (electrolyte, mode) used
// for statistics partitioning and group-level anomaly attribution. Membership
// is exact-match equality on both fields; no normalization is applied.
type GroupKey struct {
	Electrolyte string `json:"electrolyte"`
	Mode        Mode   `json:"mode"`
}

// String renders a stable display key for serializable summaries.
func (k GroupKey) String() string {
	return fmt.Sprintf("%s/%s", k.Electrolyte, k.Mode)
}

// SubjectID renders the synthetic identifier used for group-scoped findings.
func (k GroupKey) SubjectID() string {
	return fmt.Sprintf("GROUP-%s-%s", k.Electrolyte, k.Mode)
}

// AnomalyType classifies a detected irregularity.
type AnomalyType string

// Anomaly categories emitted by the detection rules.
const (
	// AnomalyHighCathodeLoss flags a per-record |Δm-|/|Δm+| ratio at or above threshold.
	AnomalyHighCathodeLoss AnomalyType = "HIGH_CATHODE_LOSS"
	// AnomalyHighAnodeLoss flags a per-record anode delta at or above threshold.
	AnomalyHighAnodeLoss AnomalyType = "HIGH_ANODE_LOSS"
	// AnomalyUnstableResults flags a group whose anode-delta spread is at or above threshold.
	AnomalyUnstableResults AnomalyType = "UNSTABLE_RESULTS"
)

// AnomalyFinding reports a single detected irregularity, scoped either to one
// experiment or to a whole condition group. Findings are value objects created
// fresh per analysis call and never mutated.
type AnomalyFinding struct {
	SubjectID string      `json:"subject_id"`
	Type      AnomalyType `json:"type"`
	Message   string      `json:"message"`
}

// Flatten renders the finding as a plain field-value map for the combined
// analysis summary consumed by the report assistant.
func (f AnomalyFinding) Flatten() map[string]string {
	return map[string]string{
		"subject_id": f.SubjectID,
		"type":       string(f.Type),
		"message":    f.Message,
	}
}
