package analysis

import "exfolab/pkg/domain"

// Summary is the combined analysis bundle consumed by external collaborators
// such as the report assistant. Group keys are rendered to their stable
// string form and findings are flattened to plain field-value maps so the
// bundle serializes without referencing engine-internal types.
type Summary struct {
	OverallStats *Stats              `json:"overall_stats"`
	GroupedStats map[string]Stats    `json:"grouped_stats"`
	Anomalies    []map[string]string `json:"anomalies"`
}

// Summarize produces the combined bundle: overall statistics, per-group
// statistics, and anomaly findings under the merged thresholds. With no
// records, OverallStats is nil and the other fields are empty.
func Summarize(records []domain.ExperimentRecord, overrides domain.ThresholdOverrides) Summary {
	table := Tabulate(records)
	summary := Summary{
		GroupedStats: make(map[string]Stats),
		Anomalies:    []map[string]string{},
	}
	if overall, ok := Overall(table); ok {
		summary.OverallStats = &overall
	}
	for key, stats := range Grouped(table) {
		summary.GroupedStats[key.String()] = stats
	}
	for _, finding := range Detect(records, overrides) {
		summary.Anomalies = append(summary.Anomalies, finding.Flatten())
	}
	return summary
}
