package domain

import "testing"

func TestComputeDeltas(t *testing.T) {
	rec := ExperimentRecord{
		InitialMassPositiveG: 1.000,
		FinalMassPositiveG:   1.125,
		InitialMassNegativeG: 0.900,
		FinalMassNegativeG:   0.880,
	}
	rec.ComputeDeltas()
	if rec.DeltaMassPositiveG != 0.125 {
		t.Fatalf("positive delta: got %v, want 0.125", rec.DeltaMassPositiveG)
	}
	if rec.DeltaMassNegativeG != 0.880-0.900 {
		t.Fatalf("negative delta: got %v", rec.DeltaMassNegativeG)
	}
	// mutating a mass and recomputing must overwrite the stale delta
	rec.FinalMassPositiveG = 1.250
	rec.ComputeDeltas()
	if rec.DeltaMassPositiveG != 0.250 {
		t.Fatalf("recomputed positive delta: got %v, want 0.250", rec.DeltaMassPositiveG)
	}
}

func TestGroupKeyRendering(t *testing.T) {
	key := GroupKey{Electrolyte: "KOH", Mode: ModeConstantVoltage}
	if key.String() != "KOH/CV" {
		t.Fatalf("display key: got %s", key.String())
	}
	if key.SubjectID() != "GROUP-KOH-CV" {
		t.Fatalf("subject id: got %s", key.SubjectID())
	}
}

func TestRecordGroupMatchesKeyFields(t *testing.T) {
	rec := ExperimentRecord{Electrolyte: "Na2SO4", Mode: ModeConstantCurrent}
	key := rec.Group()
	if key.Electrolyte != "Na2SO4" || key.Mode != ModeConstantCurrent {
		t.Fatalf("unexpected group key: %+v", key)
	}
}

func TestFindingFlatten(t *testing.T) {
	f := AnomalyFinding{SubjectID: "E1", Type: AnomalyHighAnodeLoss, Message: "m"}
	flat := f.Flatten()
	if flat["subject_id"] != "E1" || flat["type"] != "HIGH_ANODE_LOSS" || flat["message"] != "m" {
		t.Fatalf("unexpected flattened finding: %+v", flat)
	}
}

func TestThresholdMerge(t *testing.T) {
	base := DefaultThresholds()
	if base.CathodeLossRatio != 0.5 || base.AnodeLossG != 0.1 || base.StdDevInstabilityG != 0.05 {
		t.Fatalf("unexpected defaults: %+v", base)
	}
	ratio := 0.8
	merged := ThresholdOverrides{CathodeLossRatio: &ratio}.Merge(base)
	if merged.CathodeLossRatio != 0.8 {
		t.Fatalf("override not applied: %+v", merged)
	}
	if merged.AnodeLossG != 0.1 || merged.StdDevInstabilityG != 0.05 {
		t.Fatalf("unset keys must keep defaults: %+v", merged)
	}
	if empty := (ThresholdOverrides{}).Merge(base); empty != base {
		t.Fatalf("empty overrides must be identity: %+v", empty)
	}
}
