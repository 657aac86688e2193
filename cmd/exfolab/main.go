package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"exfolab/internal/blob"
	"exfolab/internal/config"
	"exfolab/internal/core"
	"exfolab/internal/exports"
	"exfolab/internal/logging"
	"exfolab/internal/reagent"
	"exfolab/internal/report"
	"exfolab/pkg/domain"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "add":
		err = cmdAdd(os.Args[2:])
	case "edit":
		err = cmdEdit(os.Args[2:])
	case "delete":
		err = cmdDelete(os.Args[2:])
	case "list":
		err = cmdList(os.Args[2:])
	case "analyze":
		err = cmdAnalyze(os.Args[2:])
	case "export":
		err = cmdExport(os.Args[2:])
	case "report":
		err = cmdReport(os.Args[2:])
	case "reagent":
		err = cmdReagent(os.Args[2:])
	default:
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `exfolab — electrochemical exfoliation experiment tracker

Subcommands:
  add      Record a new experiment
  edit     Update fields of an existing experiment
  delete   Remove an experiment by its experiment id
  list     Show experiments matching a filter
  analyze  Print overall/grouped statistics and anomaly findings
  export   Write experiment artifacts (csv, json, png) to blob storage
  report   Draft language-model summaries and reports
  reagent  Electrolyte preparation calculations

Usage:
  exfolab add --id ID --mode CV|CC --electrolyte NAME [flags]
  exfolab edit --id ID [field flags]
  exfolab delete --id ID
  exfolab list [filter flags] [--json]
  exfolab analyze [filter flags] [threshold flags]
  exfolab export [filter flags] [--formats csv,json,png]
  exfolab report [--kind summary|anomalies|draft] [--save]
  exfolab reagent --formula FORMULA [--volume ML] [--molarity M]

Every subcommand accepts --config FILE (or EXFOLAB_CONFIG).
`)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func buildService(configPath string) (*core.Service, config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, config.Config{}, err
	}
	logging.Init(parseLevel(cfg.Log.Level), cfg.Log.Format)

	store, err := core.OpenStore(core.StorageOptions{
		Driver:      core.StorageDriver(cfg.Storage.Driver),
		SQLitePath:  cfg.Storage.SQLitePath,
		PostgresDSN: cfg.Storage.PostgresDSN,
	}, core.NewDefaultRulesEngine())
	if err != nil {
		return nil, config.Config{}, fmt.Errorf("open store: %w", err)
	}

	svc := core.NewService(store, core.WithLogger(logging.New("service")))
	return svc, cfg, nil
}

// filterFlags binds the shared record filter to a flag set.
type filterFlags struct {
	mode        *string
	electrolyte *string
	search      *string
	from        *string
	to          *string
}

func bindFilter(fs *flag.FlagSet) *filterFlags {
	return &filterFlags{
		mode:        fs.String("mode", "", "filter by mode (CV or CC)"),
		electrolyte: fs.String("electrolyte", "", "filter by electrolyte"),
		search:      fs.String("search", "", "substring match against experiment id and notes"),
		from:        fs.String("from", "", "earliest timestamp (YYYY-MM-DD or RFC3339)"),
		to:          fs.String("to", "", "latest timestamp (YYYY-MM-DD or RFC3339)"),
	}
}

func (f *filterFlags) build() (core.Filter, error) {
	filter := core.Filter{
		Mode:        domain.Mode(strings.ToUpper(*f.mode)),
		Electrolyte: *f.electrolyte,
		Search:      *f.search,
	}
	if *f.from != "" {
		t, err := parseTime(*f.from)
		if err != nil {
			return core.Filter{}, fmt.Errorf("parse --from: %w", err)
		}
		filter.From = &t
	}
	if *f.to != "" {
		t, err := parseTime(*f.to)
		if err != nil {
			return core.Filter{}, fmt.Errorf("parse --to: %w", err)
		}
		filter.To = &t
	}
	return filter, nil
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

func parseOptionalFloat(name, s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("parse --%s: %w", name, err)
	}
	return &v, nil
}

func cmdAdd(args []string) error {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	configPath := fs.String("config", "", "config file path")
	id := fs.String("id", "", "experiment id")
	mode := fs.String("mode", "", "electrolysis mode (CV or CC)")
	electrolyte := fs.String("electrolyte", "", "electrolyte name")
	voltage := fs.String("voltage", "", "set voltage in V (optional)")
	current := fs.String("current", "", "set current in A (optional)")
	duration := fs.String("duration", "", "electrolysis duration in minutes (optional)")
	initialPos := fs.Float64("initial-pos", 0, "anode initial mass in g")
	finalPos := fs.Float64("final-pos", 0, "anode final mass in g")
	initialNeg := fs.Float64("initial-neg", 0, "cathode initial mass in g")
	finalNeg := fs.Float64("final-neg", 0, "cathode final mass in g")
	notes := fs.String("notes", "", "free-form notes")
	timestamp := fs.String("timestamp", "", "experiment time (default now)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rec := domain.ExperimentRecord{
		ExperimentID:         *id,
		Mode:                 domain.Mode(strings.ToUpper(*mode)),
		Electrolyte:          *electrolyte,
		InitialMassPositiveG: *initialPos,
		FinalMassPositiveG:   *finalPos,
		InitialMassNegativeG: *initialNeg,
		FinalMassNegativeG:   *finalNeg,
		Notes:                *notes,
	}
	var err error
	if rec.VoltageV, err = parseOptionalFloat("voltage", *voltage); err != nil {
		return err
	}
	if rec.CurrentA, err = parseOptionalFloat("current", *current); err != nil {
		return err
	}
	if rec.DurationMin, err = parseOptionalFloat("duration", *duration); err != nil {
		return err
	}
	if *timestamp != "" {
		if rec.Timestamp, err = parseTime(*timestamp); err != nil {
			return fmt.Errorf("parse --timestamp: %w", err)
		}
	}

	svc, _, err := buildService(*configPath)
	if err != nil {
		return err
	}
	created, _, err := svc.CreateExperiment(context.Background(), rec)
	if err != nil {
		return err
	}
	return printJSON(created)
}

func cmdEdit(args []string) error {
	fs := flag.NewFlagSet("edit", flag.ContinueOnError)
	configPath := fs.String("config", "", "config file path")
	id := fs.String("id", "", "experiment id")
	mode := fs.String("mode", "", "new mode (CV or CC)")
	electrolyte := fs.String("electrolyte", "", "new electrolyte")
	voltage := fs.String("voltage", "", "new voltage in V")
	current := fs.String("current", "", "new current in A")
	duration := fs.String("duration", "", "new duration in minutes")
	initialPos := fs.String("initial-pos", "", "new anode initial mass in g")
	finalPos := fs.String("final-pos", "", "new anode final mass in g")
	initialNeg := fs.String("initial-neg", "", "new cathode initial mass in g")
	finalNeg := fs.String("final-neg", "", "new cathode final mass in g")
	notes := fs.String("notes", "", "new notes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return fmt.Errorf("--id is required")
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	svc, _, err := buildService(*configPath)
	if err != nil {
		return err
	}
	ctx := context.Background()
	existing, err := svc.GetByExperimentID(ctx, *id)
	if err != nil {
		return err
	}

	updated, _, err := svc.UpdateExperiment(ctx, existing.ID, func(rec *domain.ExperimentRecord) error {
		if set["mode"] {
			rec.Mode = domain.Mode(strings.ToUpper(*mode))
		}
		if set["electrolyte"] {
			rec.Electrolyte = *electrolyte
		}
		if set["notes"] {
			rec.Notes = *notes
		}
		var err error
		if set["voltage"] {
			if rec.VoltageV, err = parseOptionalFloat("voltage", *voltage); err != nil {
				return err
			}
		}
		if set["current"] {
			if rec.CurrentA, err = parseOptionalFloat("current", *current); err != nil {
				return err
			}
		}
		if set["duration"] {
			if rec.DurationMin, err = parseOptionalFloat("duration", *duration); err != nil {
				return err
			}
		}
		masses := []struct {
			name  string
			value string
			dst   *float64
		}{
			{"initial-pos", *initialPos, &rec.InitialMassPositiveG},
			{"final-pos", *finalPos, &rec.FinalMassPositiveG},
			{"initial-neg", *initialNeg, &rec.InitialMassNegativeG},
			{"final-neg", *finalNeg, &rec.FinalMassNegativeG},
		}
		for _, m := range masses {
			if !set[m.name] {
				continue
			}
			v, err := parseOptionalFloat(m.name, m.value)
			if err != nil {
				return err
			}
			if v != nil {
				*m.dst = *v
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	return printJSON(updated)
}

func cmdDelete(args []string) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	configPath := fs.String("config", "", "config file path")
	id := fs.String("id", "", "experiment id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return fmt.Errorf("--id is required")
	}

	svc, _, err := buildService(*configPath)
	if err != nil {
		return err
	}
	ctx := context.Background()
	existing, err := svc.GetByExperimentID(ctx, *id)
	if err != nil {
		return err
	}
	if _, err := svc.DeleteExperiment(ctx, existing.ID); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "deleted experiment %s\n", *id)
	return nil
}

func cmdList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	configPath := fs.String("config", "", "config file path")
	asJSON := fs.Bool("json", false, "print records as JSON")
	ff := bindFilter(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	filter, err := ff.build()
	if err != nil {
		return err
	}

	svc, _, err := buildService(*configPath)
	if err != nil {
		return err
	}
	records, err := svc.QueryExperiments(context.Background(), filter)
	if err != nil {
		return err
	}
	if *asJSON {
		return printJSON(records)
	}
	if len(records) == 0 {
		fmt.Println("no matching experiments")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "EXPERIMENT\tTIME\tMODE\tELECTROLYTE\tANODE ΔM (G)\tCATHODE ΔM (G)\tNOTES")
	for _, rec := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.4f\t%.4f\t%s\n",
			rec.ExperimentID,
			rec.Timestamp.Format("2006-01-02 15:04"),
			rec.Mode,
			rec.Electrolyte,
			rec.DeltaMassPositiveG,
			rec.DeltaMassNegativeG,
			rec.Notes,
		)
	}
	return w.Flush()
}

func bindThresholds(fs *flag.FlagSet) func() (domain.ThresholdOverrides, error) {
	cathodeRatio := fs.String("cathode-ratio", "", "cathode loss ratio threshold override")
	anodeLoss := fs.String("anode-loss", "", "anode loss threshold override in g")
	stdDev := fs.String("std-dev", "", "group std dev instability threshold override in g")
	return func() (domain.ThresholdOverrides, error) {
		var overrides domain.ThresholdOverrides
		var err error
		if overrides.CathodeLossRatio, err = parseOptionalFloat("cathode-ratio", *cathodeRatio); err != nil {
			return domain.ThresholdOverrides{}, err
		}
		if overrides.AnodeLossG, err = parseOptionalFloat("anode-loss", *anodeLoss); err != nil {
			return domain.ThresholdOverrides{}, err
		}
		if overrides.StdDevInstabilityG, err = parseOptionalFloat("std-dev", *stdDev); err != nil {
			return domain.ThresholdOverrides{}, err
		}
		return overrides, nil
	}
}

func cmdAnalyze(args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	configPath := fs.String("config", "", "config file path")
	ff := bindFilter(fs)
	thresholds := bindThresholds(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	filter, err := ff.build()
	if err != nil {
		return err
	}
	overrides, err := thresholds()
	if err != nil {
		return err
	}

	svc, cfg, err := buildService(*configPath)
	if err != nil {
		return err
	}
	summary, err := svc.Summarize(context.Background(), filter, mergeOverrides(cfg.Thresholds, overrides))
	if err != nil {
		return err
	}
	return printJSON(summary)
}

// mergeOverrides overlays flag-level overrides onto the configured ones.
func mergeOverrides(base, flags domain.ThresholdOverrides) domain.ThresholdOverrides {
	if flags.CathodeLossRatio != nil {
		base.CathodeLossRatio = flags.CathodeLossRatio
	}
	if flags.AnodeLossG != nil {
		base.AnodeLossG = flags.AnodeLossG
	}
	if flags.StdDevInstabilityG != nil {
		base.StdDevInstabilityG = flags.StdDevInstabilityG
	}
	return base
}

func openBlob(ctx context.Context, cfg config.Config) (blob.Store, error) {
	if os.Getenv("EXFOLAB_BLOB_DRIVER") != "" {
		return blob.Open(ctx)
	}
	return blob.NewFilesystem(cfg.DataDir)
}

func cmdExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	configPath := fs.String("config", "", "config file path")
	formats := fs.String("formats", "json,csv", "comma-separated artifact formats (csv, json, png, png_trend)")
	ff := bindFilter(fs)
	thresholds := bindThresholds(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	filter, err := ff.build()
	if err != nil {
		return err
	}
	overrides, err := thresholds()
	if err != nil {
		return err
	}

	svc, cfg, err := buildService(*configPath)
	if err != nil {
		return err
	}
	ctx := context.Background()
	store, err := openBlob(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}

	var input exports.Input
	input.Filter = filter
	input.Overrides = mergeOverrides(cfg.Thresholds, overrides)
	for _, name := range strings.Split(*formats, ",") {
		if name = strings.TrimSpace(name); name != "" {
			input.Formats = append(input.Formats, exports.Format(name))
		}
	}

	worker := exports.NewWorker(svc, store)
	worker.Start()
	defer worker.Stop(ctx)

	job, err := worker.Enqueue(ctx, input)
	if err != nil {
		return err
	}

	deadline := time.Now().Add(2 * time.Minute)
	for {
		current, ok := worker.Get(job.ID)
		if !ok {
			return fmt.Errorf("export %s disappeared", job.ID)
		}
		switch current.Status {
		case exports.StatusSucceeded:
			return printJSON(current)
		case exports.StatusFailed:
			return fmt.Errorf("export failed: %s", current.Error)
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("export %s timed out", job.ID)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func cmdReport(args []string) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	configPath := fs.String("config", "", "config file path")
	kind := fs.String("kind", "draft", "report kind: summary, anomalies, or draft")
	save := fs.Bool("save", false, "write the output to the reports directory")
	ff := bindFilter(fs)
	thresholds := bindThresholds(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	filter, err := ff.build()
	if err != nil {
		return err
	}
	overrides, err := thresholds()
	if err != nil {
		return err
	}

	svc, cfg, err := buildService(*configPath)
	if err != nil {
		return err
	}
	ctx := context.Background()
	records, err := svc.QueryExperiments(ctx, filter)
	if err != nil {
		return err
	}

	assistant := report.NewAssistant(report.NewClient(report.Config{
		BaseURL: cfg.OpenAI.APIBase,
		APIKey:  cfg.OpenAI.APIKey,
		Model:   cfg.OpenAI.Model,
	}))

	merged := mergeOverrides(cfg.Thresholds, overrides)
	var content string
	switch *kind {
	case "summary":
		content, err = assistant.SummarizeExperiments(ctx, records)
	case "anomalies":
		findings, derr := svc.DetectAnomalies(ctx, filter, merged)
		if derr != nil {
			return derr
		}
		content, err = assistant.ExplainAnomalies(ctx, findings, records)
	case "draft":
		summary, serr := svc.Summarize(ctx, filter, merged)
		if serr != nil {
			return serr
		}
		content, err = assistant.DraftReport(ctx, records, summary)
	default:
		return fmt.Errorf("unknown report kind %q", *kind)
	}
	if err != nil {
		return err
	}

	fmt.Println(content)
	if *save {
		path, err := report.SaveReport(content, cfg.ReportsDir)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "saved report to %s\n", path)
	}
	return nil
}

func cmdReagent(args []string) error {
	fs := flag.NewFlagSet("reagent", flag.ContinueOnError)
	formula := fs.String("formula", "", "compound formula")
	volume := fs.Float64("volume", 500, "solution volume in mL")
	molarity := fs.Float64("molarity", 0.10, "target concentration in mol/L")
	list := fs.Bool("list", false, "list supported formulas")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *list {
		for _, f := range reagent.Formulas() {
			fmt.Printf("%-16s %.4f g/mol\n", f, reagent.MolarMasses[f])
		}
		return nil
	}
	if *formula == "" {
		return fmt.Errorf("--formula is required")
	}

	if *formula == "H2SO4" {
		ml := reagent.SulfuricAcidVolume(*volume, *molarity)
		fmt.Printf("add %.2f mL of concentrated sulfuric acid for %.0f mL at %.2f M\n", ml, *volume, *molarity)
		return nil
	}

	grams, err := reagent.SolidMass(*formula, *volume, *molarity)
	if err != nil {
		return err
	}
	fmt.Printf("weigh %.4f g of %s for %.0f mL at %.2f M\n", grams, *formula, *volume, *molarity)
	return nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
