package exports

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"sort"
	"strconv"
	"time"

	"exfolab/internal/analysis"
)

func render(format Format, table analysis.Table, summary analysis.Summary) ([]byte, error) {
	switch format {
	case FormatCSV:
		return renderCSV(table)
	case FormatJSON:
		return renderJSON(table, summary)
	case FormatPNG:
		return renderPNG(table)
	case FormatPNGTrend:
		return renderPNGTrend(table)
	default:
		return nil, fmt.Errorf("unsupported export format %s", format)
	}
}

func renderCSV(table analysis.Table) ([]byte, error) {
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(analysis.Columns); err != nil {
		return nil, err
	}
	for _, row := range table.Rows {
		if err := writer.Write(rowCells(row)); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func rowCells(r analysis.Row) []string {
	return []string{
		r.ID,
		r.Timestamp.Format(time.RFC3339),
		r.ExperimentID,
		string(r.Mode),
		optionalCell(r.VoltageV),
		optionalCell(r.CurrentA),
		r.Electrolyte,
		optionalCell(r.DurationMin),
		floatCell(r.InitialMassPositiveG),
		floatCell(r.FinalMassPositiveG),
		floatCell(r.DeltaMassPositiveG),
		floatCell(r.InitialMassNegativeG),
		floatCell(r.FinalMassNegativeG),
		floatCell(r.DeltaMassNegativeG),
		r.Notes,
	}
}

func floatCell(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func optionalCell(v *float64) string {
	if v == nil {
		return ""
	}
	return floatCell(*v)
}

type jsonExport struct {
	GeneratedAt time.Time        `json:"generated_at"`
	RowCount    int              `json:"row_count"`
	Rows        []map[string]any `json:"rows"`
	Summary     analysis.Summary `json:"summary"`
}

func renderJSON(table analysis.Table, summary analysis.Summary) ([]byte, error) {
	rows := make([]map[string]any, 0, len(table.Rows))
	for _, r := range table.Rows {
		rows = append(rows, map[string]any{
			"id":                      r.ID,
			"timestamp":               r.Timestamp.Format(time.RFC3339),
			"experiment_id":           r.ExperimentID,
			"mode":                    r.Mode,
			"voltage_v":               r.VoltageV,
			"current_a":               r.CurrentA,
			"electrolyte":             r.Electrolyte,
			"duration_min":            r.DurationMin,
			"initial_mass_positive_g": r.InitialMassPositiveG,
			"final_mass_positive_g":   r.FinalMassPositiveG,
			"delta_mass_positive_g":   r.DeltaMassPositiveG,
			"initial_mass_negative_g": r.InitialMassNegativeG,
			"final_mass_negative_g":   r.FinalMassNegativeG,
			"delta_mass_negative_g":   r.DeltaMassNegativeG,
			"notes":                   r.Notes,
		})
	}
	return json.Marshal(jsonExport{
		GeneratedAt: time.Now().UTC(),
		RowCount:    len(table.Rows),
		Rows:        rows,
		Summary:     summary,
	})
}

// renderPNG draws a bar chart of anode mass change per experiment, bar height
// scaled to the largest absolute delta in the table.
func renderPNG(table analysis.Table) ([]byte, error) {
	return renderBars(table.Rows)
}

// renderPNGTrend draws the same chart with bars ordered chronologically.
func renderPNGTrend(table analysis.Table) ([]byte, error) {
	rows := make([]analysis.Row, len(table.Rows))
	copy(rows, table.Rows)
	sort.Slice(rows, func(i, j int) bool { return rows[i].Timestamp.Before(rows[j].Timestamp) })
	return renderBars(rows)
}

func renderBars(rows []analysis.Row) ([]byte, error) {
	const (
		width  = 400
		height = 200
		margin = 10
	)
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{color.White}, image.Point{}, draw.Src)

	maxDelta := 0.0
	for _, row := range rows {
		if d := math.Abs(row.DeltaMassPositiveG); d > maxDelta {
			maxDelta = d
		}
	}
	if len(rows) > 0 && maxDelta > 0 {
		barWidth := (width - 2*margin) / len(rows)
		if barWidth < 1 {
			barWidth = 1
		}
		for i, row := range rows {
			frac := math.Abs(row.DeltaMassPositiveG) / maxDelta
			barHeight := int(frac * float64(height-2*margin))
			if barHeight < 1 {
				barHeight = 1
			}
			x0 := margin + i*barWidth
			x1 := x0 + barWidth - 2
			if x1 <= x0 {
				x1 = x0 + 1
			}
			bar := image.Rect(x0, height-margin-barHeight, x1, height-margin)
			fill := color.RGBA{0, 102, 204, 255}
			if row.DeltaMassPositiveG < 0 {
				fill = color.RGBA{204, 51, 51, 255}
			}
			draw.Draw(img, bar, &image.Uniform{fill}, image.Point{}, draw.Src)
		}
	}
	buf := &bytes.Buffer{}
	if err := png.Encode(buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
