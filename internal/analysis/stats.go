package analysis

import (
	"math"

	"exfolab/pkg/domain"
)

// ColumnStats summarizes one mass-delta column. Std is the population
// standard deviation (denominator n, not n-1).
type ColumnStats struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
	Max  float64 `json:"max"`
	Min  float64 `json:"min"`
}

// Stats bundles the summary statistics for both electrodes plus the aggregate
// absolute delta ratio. RatioMeanAbs averages |Δm-|/|Δm+| over rows with a
// non-zero anode delta; rows dividing by zero are excluded, and RatioSamples
// records how many rows contributed. With no contributing rows the ratio is 0.
type Stats struct {
	Anode        ColumnStats `json:"anode"`
	Cathode      ColumnStats `json:"cathode"`
	RatioMeanAbs float64     `json:"ratio_mean_abs"`
	RatioSamples int         `json:"ratio_samples"`
}

// Overall computes summary statistics for the whole table. The second return
// is false for an empty table; callers must check it before using the stats.
func Overall(t Table) (Stats, bool) {
	if t.Empty() {
		return Stats{}, false
	}
	anode := make([]float64, 0, len(t.Rows))
	cathode := make([]float64, 0, len(t.Rows))
	for _, row := range t.Rows {
		anode = append(anode, row.DeltaMassPositiveG)
		cathode = append(cathode, row.DeltaMassNegativeG)
	}
	stats := Stats{
		Anode:   describe(anode),
		Cathode: describe(cathode),
	}
	var ratioSum float64
	for _, row := range t.Rows {
		if row.DeltaMassPositiveG == 0 {
			continue
		}
		ratioSum += math.Abs(row.DeltaMassNegativeG) / math.Abs(row.DeltaMassPositiveG)
		stats.RatioSamples++
	}
	if stats.RatioSamples > 0 {
		stats.RatioMeanAbs = ratioSum / float64(stats.RatioSamples)
	}
	return stats, true
}

// Grouped partitions the table by condition key and applies Overall to each
// partition. An empty table yields an empty map. Iteration order of the
// result is not significant.
func Grouped(t Table) map[domain.GroupKey]Stats {
	out := make(map[domain.GroupKey]Stats)
	if t.Empty() {
		return out
	}
	parts := make(map[domain.GroupKey][]Row)
	for _, row := range t.Rows {
		key := row.Group()
		parts[key] = append(parts[key], row)
	}
	for key, rows := range parts {
		stats, ok := Overall(Table{Rows: rows})
		if !ok {
			continue
		}
		out[key] = stats
	}
	return out
}

// describe computes mean, population std dev, max, and min for a non-empty
// series.
func describe(values []float64) ColumnStats {
	n := float64(len(values))
	var sum float64
	maxV := values[0]
	minV := values[0]
	for _, v := range values {
		sum += v
		if v > maxV {
			maxV = v
		}
		if v < minV {
			minV = v
		}
	}
	mean := sum / n
	var sumSq float64
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return ColumnStats{
		Mean: mean,
		Std:  math.Sqrt(sumSq / n),
		Max:  maxV,
		Min:  minV,
	}
}

// populationStdDev returns the population standard deviation of the anode
// deltas in a record slice. Used by the group instability rule; a single
// record yields 0 by construction.
func populationStdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var sumSq float64
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(len(values)))
}
