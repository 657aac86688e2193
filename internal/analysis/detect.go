package analysis

import (
	"fmt"
	"math"

	"exfolab/pkg/domain"
)

// recordRule checks one experiment record against the merged thresholds.
type recordRule interface {
	Name() string
	Evaluate(rec domain.ExperimentRecord, limits domain.Thresholds) (domain.AnomalyFinding, bool)
}

// groupRule checks one condition group against the merged thresholds.
type groupRule interface {
	Name() string
	Evaluate(key domain.GroupKey, records []domain.ExperimentRecord, limits domain.Thresholds) (domain.AnomalyFinding, bool)
}

// Detector runs the anomaly rules over a record sequence. Record-scoped rules
// fire in input order, each record checked against every record rule before
// the next record; group-scoped rules follow, in first-appearance order of
// the groups. A detector is immutable after construction and safe for
// concurrent use.
type Detector struct {
	limits      domain.Thresholds
	recordRules []recordRule
	groupRules  []groupRule
}

// NewDetector merges the overrides over the default thresholds and registers
// the standard rules: high cathode loss, high anode loss, unstable results.
func NewDetector(overrides domain.ThresholdOverrides) *Detector {
	return &Detector{
		limits:      overrides.Merge(domain.DefaultThresholds()),
		recordRules: []recordRule{cathodeLossRule{}, anodeLossRule{}},
		groupRules:  []groupRule{instabilityRule{}},
	}
}

// Limits returns the merged thresholds the detector evaluates against.
func (d *Detector) Limits() domain.Thresholds { return d.limits }

// Detect evaluates all rules and returns the findings in evaluation order.
// An empty input returns an empty list.
func (d *Detector) Detect(records []domain.ExperimentRecord) []domain.AnomalyFinding {
	if len(records) == 0 {
		return nil
	}
	var findings []domain.AnomalyFinding
	for _, rec := range records {
		for _, rule := range d.recordRules {
			if finding, ok := rule.Evaluate(rec, d.limits); ok {
				findings = append(findings, finding)
			}
		}
	}
	for _, part := range partition(records) {
		for _, rule := range d.groupRules {
			if finding, ok := rule.Evaluate(part.key, part.records, d.limits); ok {
				findings = append(findings, finding)
			}
		}
	}
	return findings
}

// Detect is a convenience wrapper constructing a detector per call.
func Detect(records []domain.ExperimentRecord, overrides domain.ThresholdOverrides) []domain.AnomalyFinding {
	return NewDetector(overrides).Detect(records)
}

// cathodeLossRule flags records whose |Δm-|/|Δm+| ratio reaches the cathode
// loss threshold. Records with a zero anode delta are skipped to avoid the
// division singularity; that is a policy choice, not an error.
type cathodeLossRule struct{}

func (cathodeLossRule) Name() string { return "high_cathode_loss" }

func (cathodeLossRule) Evaluate(rec domain.ExperimentRecord, limits domain.Thresholds) (domain.AnomalyFinding, bool) {
	if rec.DeltaMassPositiveG == 0 {
		return domain.AnomalyFinding{}, false
	}
	ratio := math.Abs(rec.DeltaMassNegativeG) / math.Abs(rec.DeltaMassPositiveG)
	if ratio < limits.CathodeLossRatio {
		return domain.AnomalyFinding{}, false
	}
	return domain.AnomalyFinding{
		SubjectID: rec.ExperimentID,
		Type:      domain.AnomalyHighCathodeLoss,
		Message:   fmt.Sprintf("cathode mass change too large: |Δm-|/|Δm+| = %.2f exceeds threshold %g", ratio, limits.CathodeLossRatio),
	}, true
}

// anodeLossRule flags records whose anode delta reaches the loss threshold.
type anodeLossRule struct{}

func (anodeLossRule) Name() string { return "high_anode_loss" }

func (anodeLossRule) Evaluate(rec domain.ExperimentRecord, limits domain.Thresholds) (domain.AnomalyFinding, bool) {
	if rec.DeltaMassPositiveG < limits.AnodeLossG {
		return domain.AnomalyFinding{}, false
	}
	return domain.AnomalyFinding{
		SubjectID: rec.ExperimentID,
		Type:      domain.AnomalyHighAnodeLoss,
		Message:   fmt.Sprintf("anode mass loss %.3f g exceeds threshold %g g", rec.DeltaMassPositiveG, limits.AnodeLossG),
	}, true
}

// instabilityRule flags groups whose anode-delta population std dev reaches
// the instability threshold. A single-member group has a std dev of zero and
// cannot fire this rule.
type instabilityRule struct{}

func (instabilityRule) Name() string { return "unstable_results" }

func (instabilityRule) Evaluate(key domain.GroupKey, records []domain.ExperimentRecord, limits domain.Thresholds) (domain.AnomalyFinding, bool) {
	deltas := make([]float64, 0, len(records))
	for _, rec := range records {
		deltas = append(deltas, rec.DeltaMassPositiveG)
	}
	std := populationStdDev(deltas)
	if std < limits.StdDevInstabilityG {
		return domain.AnomalyFinding{}, false
	}
	return domain.AnomalyFinding{
		SubjectID: key.SubjectID(),
		Type:      domain.AnomalyUnstableResults,
		Message:   fmt.Sprintf("anode Δm std dev %.3f g under condition (%s, %s) exceeds %g g", std, key.Electrolyte, key.Mode, limits.StdDevInstabilityG),
	}, true
}

type recordGroup struct {
	key     domain.GroupKey
	records []domain.ExperimentRecord
}

// partition splits records by condition key, preserving the order in which
// each group first appears in the sequence.
func partition(records []domain.ExperimentRecord) []recordGroup {
	index := make(map[domain.GroupKey]int)
	var groups []recordGroup
	for _, rec := range records {
		key := rec.Group()
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, recordGroup{key: key})
		}
		groups[i].records = append(groups[i].records, rec)
	}
	return groups
}
