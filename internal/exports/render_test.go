package exports

import (
	"bytes"
	"encoding/csv"
	"image/png"
	"testing"
	"time"

	"exfolab/internal/analysis"
	"exfolab/pkg/domain"
)

func TestRenderEmptyTable(t *testing.T) {
	summary := analysis.Summarize(nil, domain.ThresholdOverrides{})

	payload, err := renderCSV(analysis.Table{})
	if err != nil {
		t.Fatalf("csv: %v", err)
	}
	rows, err := csv.NewReader(bytes.NewReader(payload)).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("empty table should render header only: %v", rows)
	}

	img, err := renderPNG(analysis.Table{})
	if err != nil {
		t.Fatalf("png: %v", err)
	}
	if _, err := png.Decode(bytes.NewReader(img)); err != nil {
		t.Fatalf("decode png: %v", err)
	}

	if _, err := renderJSON(analysis.Table{}, summary); err != nil {
		t.Fatalf("json: %v", err)
	}
}

func TestRenderTrendOrdersChronologically(t *testing.T) {
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	records := []domain.ExperimentRecord{
		{
			Base:               domain.Base{ID: "r1"},
			ExperimentID:       "E1",
			Timestamp:          base.Add(2 * time.Hour),
			Mode:               domain.ModeConstantVoltage,
			Electrolyte:        "KOH",
			DeltaMassPositiveG: 0.4,
		},
		{
			Base:               domain.Base{ID: "r2"},
			ExperimentID:       "E2",
			Timestamp:          base,
			Mode:               domain.ModeConstantVoltage,
			Electrolyte:        "KOH",
			DeltaMassPositiveG: -0.2,
		},
	}
	table := analysis.Tabulate(records)

	payload, err := renderPNGTrend(table)
	if err != nil {
		t.Fatalf("trend: %v", err)
	}
	if _, err := png.Decode(bytes.NewReader(payload)); err != nil {
		t.Fatalf("decode png: %v", err)
	}
	// Sorting must not disturb the caller's table.
	if table.Rows[0].ExperimentID != "E1" {
		t.Fatalf("table mutated: first row %s", table.Rows[0].ExperimentID)
	}
}

func TestFileExt(t *testing.T) {
	if got := fileExt(FormatPNGTrend); got != "trend.png" {
		t.Fatalf("got %q", got)
	}
	if got := fileExt(FormatCSV); got != "csv" {
		t.Fatalf("got %q", got)
	}
}

func TestOptionalCell(t *testing.T) {
	if got := optionalCell(nil); got != "" {
		t.Fatalf("nil should render empty, got %q", got)
	}
	v := 3.5
	if got := optionalCell(&v); got != "3.5" {
		t.Fatalf("got %q", got)
	}
}
