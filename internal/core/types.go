package core

import "exfolab/pkg/domain"

type (
	EntityType         = domain.EntityType
	Mode               = domain.Mode
	Severity           = domain.Severity
	Base               = domain.Base
	ExperimentRecord   = domain.ExperimentRecord
	GroupKey           = domain.GroupKey
	AnomalyFinding     = domain.AnomalyFinding
	Thresholds         = domain.Thresholds
	ThresholdOverrides = domain.ThresholdOverrides
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Result             = domain.Result
	RulesEngine        = domain.RulesEngine
	RuleViolationError = domain.RuleViolationError
	ErrNotFound        = domain.ErrNotFound
	ErrDuplicate       = domain.ErrDuplicate
)

const (
	EntityExperiment = domain.EntityExperiment

	ModeConstantVoltage = domain.ModeConstantVoltage
	ModeConstantCurrent = domain.ModeConstantCurrent

	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog

	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
	ActionDelete = domain.ActionDelete
)
