package models

import "time"

// Quality levels derived from the quality score.
const (
	QualityGood     = "good"
	QualityWarning  = "warning"
	QualityCritical = "critical"
)

// Trend directions reported by the quality checker.
const (
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
	TrendStable     = "stable"
)

// QualityReport scores a price series for completeness, anomalies and
// staleness. Built fresh on every training cycle, never mutated after.
type QualityReport struct {
	ItemID    int64     `json:"item_id"`
	Timestamp time.Time `json:"timestamp"`

	TotalPoints   int     `json:"total_points"`
	MissingValues int     `json:"missing_values"`
	MissingRatio  float64 `json:"missing_ratio"`

	OutlierCount   int     `json:"outlier_count"`
	OutlierRatio   float64 `json:"outlier_ratio"`
	OutlierIndices []int   `json:"outlier_indices"`

	PriceMean  float64 `json:"price_mean"`
	PriceStd   float64 `json:"price_std"`
	PriceMin   float64 `json:"price_min"`
	PriceMax   float64 `json:"price_max"`
	PriceRange float64 `json:"price_range"`
	PriceCV    float64 `json:"price_cv"`

	Volatility    float64 `json:"volatility"`
	Trend         string  `json:"trend"`
	TrendStrength float64 `json:"trend_strength"`

	SuspiciousJumpDays int `json:"suspicious_jump_days"`
	ConsecutiveSame    int `json:"consecutive_same"`

	QualityScore float64  `json:"quality_score"`
	QualityLevel string   `json:"quality_level"`
	Warnings     []string `json:"warnings"`
}
