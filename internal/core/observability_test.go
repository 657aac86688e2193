package core_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"exfolab/internal/core"
)

func TestExpvarMetricsRecorderSnapshot(t *testing.T) {
	rec := core.NewExpvarMetricsRecorder("")
	if rec.Name() == "" {
		t.Fatalf("expected generated publish name")
	}
	ctx := context.Background()
	rec.Observe(ctx, "create_experiment", true, 5*time.Millisecond)
	rec.Observe(ctx, "create_experiment", true, 3*time.Millisecond)
	rec.Observe(ctx, "create_experiment", false, 2*time.Millisecond)
	rec.Observe(ctx, "delete_experiment", true, time.Millisecond)

	snap := rec.Snapshot()
	create, ok := snap.Results["create_experiment"]
	if !ok {
		t.Fatalf("missing create_experiment bucket: %+v", snap)
	}
	if create["success"] != 2 || create["error"] != 1 {
		t.Fatalf("unexpected counts: %+v", create)
	}
	if total := snap.DurationsMS["create_experiment"]; total != 10 {
		t.Fatalf("unexpected total duration ms: %v", total)
	}
	if del := snap.Results["delete_experiment"]; del["success"] != 1 || del["error"] != 0 {
		t.Fatalf("unexpected delete bucket: %+v", del)
	}
}

func TestPrometheusMetricsRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := core.NewPrometheusMetricsRecorder(reg)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	ctx := context.Background()
	rec.Observe(ctx, "summarize", true, 4*time.Millisecond)
	rec.Observe(ctx, "summarize", false, 2*time.Millisecond)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	byName := map[string]bool{}
	for _, mf := range families {
		byName[mf.GetName()] = true
		if mf.GetName() == "exfolab_service_operations_total" {
			var total float64
			for _, m := range mf.GetMetric() {
				total += m.GetCounter().GetValue()
			}
			if total != 2 {
				t.Fatalf("expected 2 observed operations, got %v", total)
			}
		}
	}
	if !byName["exfolab_service_operations_total"] || !byName["exfolab_service_operation_duration_seconds"] {
		t.Fatalf("missing metric families: %v", byName)
	}

	if _, err := core.NewPrometheusMetricsRecorder(reg); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}

func TestServiceObservesOperations(t *testing.T) {
	rec := core.NewExpvarMetricsRecorder("")
	svc := core.NewInMemoryService(core.NewDefaultRulesEngine(), core.WithMetrics(rec))
	ctx := context.Background()

	if _, _, err := svc.CreateExperiment(ctx, newExperiment("E1", "KOH", core.ModeConstantVoltage)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, _, err := svc.CreateExperiment(ctx, newExperiment("E1", "KOH", core.ModeConstantVoltage)); err == nil {
		t.Fatalf("expected duplicate to fail")
	}

	snap := rec.Snapshot()
	bucket := snap.Results["create_experiment"]
	if bucket["success"] != 1 || bucket["error"] != 1 {
		t.Fatalf("unexpected create bucket: %+v", bucket)
	}
}
