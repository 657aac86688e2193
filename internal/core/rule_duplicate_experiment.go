package core

import (
	"context"
	"fmt"

	"exfolab/pkg/domain"
)

// NewDuplicateExperimentRule returns the in-transaction rule blocking commits
// that would leave two records sharing one experiment identifier.
func NewDuplicateExperimentRule() domain.Rule {
	return duplicateExperimentRule{}
}

type duplicateExperimentRule struct{}

func (duplicateExperimentRule) Name() string { return "duplicate_experiment_id" }

func (duplicateExperimentRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	seen := make(map[string]string)
	res := domain.Result{}
	for _, rec := range view.ListExperiments() {
		if rec.ExperimentID == "" {
			continue
		}
		if firstID, dup := seen[rec.ExperimentID]; dup {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "duplicate_experiment_id",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("experiment id %s already used by record %s", rec.ExperimentID, firstID),
				Entity:   domain.EntityExperiment,
				EntityID: rec.ID,
			})
			continue
		}
		seen[rec.ExperimentID] = rec.ID
	}
	return res, nil
}

// NewDefaultRulesEngine returns an engine with the standard commit rules registered.
func NewDefaultRulesEngine() *domain.RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(NewDuplicateExperimentRule())
	return engine
}
