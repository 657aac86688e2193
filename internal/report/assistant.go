package report

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"exfolab/internal/analysis"
	"exfolab/internal/logging"
	"exfolab/pkg/domain"
)

const (
	systemPrompt = "You are an assistant for chemical exfoliation experiments on carbon rods. Answer concisely."

	// MissingKeyNotice is returned instead of an error when no API key is set.
	MissingKeyNotice = "OPENAI_API_KEY is not set; language model calls are disabled."

	noDataNotice      = "No experiment data available."
	noAnomaliesNotice = "No anomalies detected."
)

// Assistant builds prompts from experiment data and delegates to the chat
// completions client.
type Assistant struct {
	client *Client
	logger *slog.Logger
}

// NewAssistant wraps a client.
func NewAssistant(client *Client) *Assistant {
	return &Assistant{client: client, logger: logging.New("report")}
}

func (a *Assistant) call(ctx context.Context, prompt string) (string, error) {
	if a.client.Config.APIKey == "" {
		a.logger.Warn("api key missing, skipping completion")
		return MissingKeyNotice, nil
	}
	return a.client.Complete(ctx, systemPrompt, prompt)
}

// SummarizeExperiments asks the model for a bullet summary of the record set.
func (a *Assistant) SummarizeExperiments(ctx context.Context, records []domain.ExperimentRecord) (string, error) {
	if len(records) == 0 {
		return noDataNotice, nil
	}
	table := analysis.Tabulate(records)
	stats, _ := analysis.Overall(table)

	var b strings.Builder
	fmt.Fprintf(&b, "%d records. Anode delta mean %.4f g, cathode delta mean %.4f g.\n", len(records), stats.Anode.Mean, stats.Cathode.Mean)
	fmt.Fprintf(&b, "Mean absolute cathode/anode delta ratio: %.2f.\n", stats.RatioMeanAbs)
	for _, line := range groupLines(table) {
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("Summarize the key findings as bullet points and assess whether anode exfoliation dominates as expected.")
	return a.call(ctx, b.String())
}

// ExplainAnomalies asks the model to analyze detected anomalies.
func (a *Assistant) ExplainAnomalies(ctx context.Context, findings []domain.AnomalyFinding, records []domain.ExperimentRecord) (string, error) {
	if len(findings) == 0 {
		return noAnomaliesNotice, nil
	}
	var b strings.Builder
	b.WriteString("The following anomalies were detected. Analyze likely causes and suggest improvements.\n")
	for _, f := range findings {
		fmt.Fprintf(&b, "%s: %s\n", f.SubjectID, f.Message)
	}
	if len(records) > 0 {
		fmt.Fprintf(&b, "Context: %d records across %d conditions.\n", len(records), len(analysis.Grouped(analysis.Tabulate(records))))
	}
	return a.call(ctx, b.String())
}

// DraftReport asks the model for a results-and-discussion draft based on the
// combined analysis bundle.
func (a *Assistant) DraftReport(ctx context.Context, records []domain.ExperimentRecord, summary analysis.Summary) (string, error) {
	if len(records) == 0 {
		return noDataNotice, nil
	}
	var b strings.Builder
	b.WriteString("Draft a results and discussion section from the data below.\n")
	if summary.OverallStats != nil {
		fmt.Fprintf(&b, "Overall: anode delta mean %.4f g (std %.4f), cathode delta mean %.4f g (std %.4f).\n",
			summary.OverallStats.Anode.Mean, summary.OverallStats.Anode.Std,
			summary.OverallStats.Cathode.Mean, summary.OverallStats.Cathode.Std)
	}
	for _, key := range sortedKeys(summary.GroupedStats) {
		stats := summary.GroupedStats[key]
		fmt.Fprintf(&b, "Condition %s: anode delta mean %.4f g, cathode delta mean %.4f g.\n", key, stats.Anode.Mean, stats.Cathode.Mean)
	}
	if len(summary.Anomalies) > 0 {
		messages := make([]string, 0, len(summary.Anomalies))
		for _, finding := range summary.Anomalies {
			messages = append(messages, finding["message"])
		}
		fmt.Fprintf(&b, "Anomalies: %s\n", strings.Join(messages, "; "))
	}
	b.WriteString("Cover the experiment goal, main trends, anode versus cathode differences, anomaly causes, and suggested improvements.")
	return a.call(ctx, b.String())
}

func groupLines(table analysis.Table) []string {
	grouped := analysis.Grouped(table)
	keys := make([]domain.GroupKey, 0, len(grouped))
	for key := range grouped {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	lines := make([]string, 0, len(keys))
	for _, key := range keys {
		stats := grouped[key]
		lines = append(lines, fmt.Sprintf("Condition %s - %s: anode delta mean %.4f g, cathode delta mean %.4f g.",
			key.Electrolyte, key.Mode, stats.Anode.Mean, stats.Cathode.Mean))
	}
	return lines
}

func sortedKeys(m map[string]analysis.Stats) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SaveReport writes content to dir with a timestamped markdown filename and
// returns the path.
func SaveReport(content, dir string) (string, error) {
	if dir == "" {
		dir = "reports"
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create reports dir: %w", err)
	}
	name := fmt.Sprintf("report_%s.md", time.Now().Format("20060102_150405"))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}
