package domain

// Thresholds holds the named real-valued limits driving anomaly detection.
type Thresholds struct {
	// CathodeLossRatio bounds the per-record |Δm-|/|Δm+| ratio (rule: high cathode loss).
	CathodeLossRatio float64 `json:"cathode_loss_ratio_threshold" yaml:"cathode_loss_ratio_threshold"`
	// AnodeLossG bounds the per-record anode mass delta in grams (rule: high anode loss).
	AnodeLossG float64 `json:"anode_loss_threshold_g" yaml:"anode_loss_threshold_g"`
	// StdDevInstabilityG bounds the per-group anode-delta population std dev in grams (rule: unstable results).
	StdDevInstabilityG float64 `json:"std_dev_instability_threshold_g" yaml:"std_dev_instability_threshold_g"`
}

// DefaultThresholds returns the documented default limits.
func DefaultThresholds() Thresholds {
	return Thresholds{
		CathodeLossRatio:   0.5,
		AnodeLossG:         0.1,
		StdDevInstabilityG: 0.05,
	}
}

// ThresholdOverrides carries caller-supplied limits. Nil fields keep the
// default for that key; overrides are independent of each other.
type ThresholdOverrides struct {
	CathodeLossRatio   *float64 `json:"cathode_loss_ratio_threshold,omitempty" yaml:"cathode_loss_ratio_threshold,omitempty"`
	AnodeLossG         *float64 `json:"anode_loss_threshold_g,omitempty" yaml:"anode_loss_threshold_g,omitempty"`
	StdDevInstabilityG *float64 `json:"std_dev_instability_threshold_g,omitempty" yaml:"std_dev_instability_threshold_g,omitempty"`
}

// Merge overlays the overrides onto base key-by-key.
func (o ThresholdOverrides) Merge(base Thresholds) Thresholds {
	if o.CathodeLossRatio != nil {
		base.CathodeLossRatio = *o.CathodeLossRatio
	}
	if o.AnodeLossG != nil {
		base.AnodeLossG = *o.AnodeLossG
	}
	if o.StdDevInstabilityG != nil {
		base.StdDevInstabilityG = *o.StdDevInstabilityG
	}
	return base
}
