// Package analysis implements the statistics and anomaly engine for
// exfoliation experiment records. Every operation is a pure function of its
// inputs; empty and degenerate inputs yield empty results rather than errors.
package analysis

import (
	"time"

	"exfolab/pkg/domain"
)

// Columns is the fixed tabulation schema, in export order. The tabulation,
// statistics, and export layers all key off this single definition.
var Columns = []string{
	"id",
	"timestamp",
	"experiment_id",
	"mode",
	"voltage_v",
	"current_a",
	"electrolyte",
	"duration_min",
	"initial_mass_positive_g",
	"final_mass_positive_g",
	"delta_mass_positive_g",
	"initial_mass_negative_g",
	"final_mass_negative_g",
	"delta_mass_negative_g",
	"notes",
}

// Row is one tabulated experiment. The timestamp is normalized to UTC so rows
// compare consistently regardless of the zone records were captured in.
type Row struct {
	ID                   string
	Timestamp            time.Time
	ExperimentID         string
	Mode                 domain.Mode
	Electrolyte          string
	VoltageV             *float64
	CurrentA             *float64
	DurationMin          *float64
	InitialMassPositiveG float64
	FinalMassPositiveG   float64
	DeltaMassPositiveG   float64
	InitialMassNegativeG float64
	FinalMassNegativeG   float64
	DeltaMassNegativeG   float64
	Notes                string
}

// Group returns the condition key the row belongs to.
func (r Row) Group() domain.GroupKey {
	return domain.GroupKey{Electrolyte: r.Electrolyte, Mode: r.Mode}
}

// Table is a row-oriented projection of a record sequence.
type Table struct {
	Rows []Row
}

// Empty reports whether the table carries no rows. Consumers short-circuit on
// empty tables instead of failing.
func (t Table) Empty() bool { return len(t.Rows) == 0 }

// Tabulate projects records into a table, one row per record, preserving
// input order. An empty or nil sequence produces an explicitly empty table.
func Tabulate(records []domain.ExperimentRecord) Table {
	if len(records) == 0 {
		return Table{}
	}
	rows := make([]Row, 0, len(records))
	for _, rec := range records {
		rows = append(rows, Row{
			ID:                   rec.ID,
			Timestamp:            rec.Timestamp.UTC(),
			ExperimentID:         rec.ExperimentID,
			Mode:                 rec.Mode,
			Electrolyte:          rec.Electrolyte,
			VoltageV:             rec.VoltageV,
			CurrentA:             rec.CurrentA,
			DurationMin:          rec.DurationMin,
			InitialMassPositiveG: rec.InitialMassPositiveG,
			FinalMassPositiveG:   rec.FinalMassPositiveG,
			DeltaMassPositiveG:   rec.DeltaMassPositiveG,
			InitialMassNegativeG: rec.InitialMassNegativeG,
			FinalMassNegativeG:   rec.FinalMassNegativeG,
			DeltaMassNegativeG:   rec.DeltaMassNegativeG,
			Notes:                rec.Notes,
		})
	}
	return Table{Rows: rows}
}
