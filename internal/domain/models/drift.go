package models

import "time"

// Drift levels derived from the composite drift score.
const (
	DriftNone     = "none"
	DriftMild     = "mild"
	DriftModerate = "moderate"
	DriftSevere   = "severe"
)

// DriftReport compares the older and the recent window of a price series
// for distributional change. Same lifecycle as QualityReport.
type DriftReport struct {
	ItemID    int64     `json:"item_id"`
	Timestamp time.Time `json:"timestamp"`

	MeanShift    float64 `json:"mean_shift"`
	MeanShiftPct float64 `json:"mean_shift_pct"`
	StdShift     float64 `json:"std_shift"`
	StdShiftPct  float64 `json:"std_shift_pct"`

	KSStatistic         float64 `json:"ks_statistic"`
	KSPValue            float64 `json:"ks_pvalue"`
	KLDivergence        float64 `json:"kl_divergence"`
	WassersteinDistance float64 `json:"wasserstein_distance"`

	RangeShift    float64 `json:"range_shift"`
	RangeShiftPct float64 `json:"range_shift_pct"`

	DriftScore float64 `json:"drift_score"`
	DriftLevel string  `json:"drift_level"`

	HasDrift    bool   `json:"has_drift"`
	DriftReason string `json:"drift_reason,omitempty"`
}
