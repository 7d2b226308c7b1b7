package alerting

import (
	"fmt"

	"PriceCast/internal/domain/models"
)

// Rule is one alert condition over the merged metrics map.
type Rule struct {
	Name        string
	Severity    string
	Title       string
	Recommended string
	When        func(m map[string]any) bool
	Describe    func(m map[string]any) string
}

// DefaultRules returns the built-in rule set, evaluated in order.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:        "low_quality_score",
			Severity:    models.SeverityCritical,
			Title:       "Data quality collapsed",
			Recommended: "inspect the data source and pause automated trading for this item",
			When: func(m map[string]any) bool {
				return metricFloat(m, "quality_score") < 40
			},
			Describe: func(m map[string]any) string {
				return fmt.Sprintf("quality score dropped to %.1f", metricFloat(m, "quality_score"))
			},
		},
		{
			Name:        "high_outlier_ratio",
			Severity:    models.SeverityWarning,
			Title:       "Outlier ratio elevated",
			Recommended: "review recent trades for manipulation or feed glitches",
			When: func(m map[string]any) bool {
				return metricFloat(m, "outlier_ratio") > 0.15
			},
			Describe: func(m map[string]any) string {
				return fmt.Sprintf("%.1f%% of observations are outliers", metricFloat(m, "outlier_ratio")*100)
			},
		},
		{
			Name:        "severe_drift",
			Severity:    models.SeverityCritical,
			Title:       "Severe distribution drift",
			Recommended: "retrain the model from scratch",
			When: func(m map[string]any) bool {
				return metricString(m, "drift_level") == models.DriftSevere
			},
			Describe: func(m map[string]any) string {
				return fmt.Sprintf("drift score %.0f: %s", metricFloat(m, "drift_score"), metricString(m, "drift_reason"))
			},
		},
		{
			Name:        "moderate_drift",
			Severity:    models.SeverityWarning,
			Title:       "Moderate distribution drift",
			Recommended: "schedule an incremental model update",
			When: func(m map[string]any) bool {
				return metricString(m, "drift_level") == models.DriftModerate
			},
			Describe: func(m map[string]any) string {
				return fmt.Sprintf("drift score %.0f: %s", metricFloat(m, "drift_score"), metricString(m, "drift_reason"))
			},
		},
		{
			Name:        "high_volatility",
			Severity:    models.SeverityWarning,
			Title:       "Price volatility elevated",
			Recommended: "widen forecast intervals and lower position sizing",
			When: func(m map[string]any) bool {
				return metricFloat(m, "volatility") > 0.08
			},
			Describe: func(m map[string]any) string {
				return fmt.Sprintf("volatility at %.1f%% per period", metricFloat(m, "volatility")*100)
			},
		},
		{
			Name:        "high_ensemble_mape",
			Severity:    models.SeverityWarning,
			Title:       "Forecast accuracy degraded",
			Recommended: "retrain or rebalance the ensemble weights",
			When: func(m map[string]any) bool {
				return metricFloat(m, "ensemble_mape") > 0.25
			},
			Describe: func(m map[string]any) string {
				return fmt.Sprintf("ensemble MAPE at %.1f%%", metricFloat(m, "ensemble_mape")*100)
			},
		},
		{
			Name:        "price_stagnation",
			Severity:    models.SeverityWarning,
			Title:       "Price stagnation",
			Recommended: "verify the item is still actively traded",
			When: func(m map[string]any) bool {
				return metricFloat(m, "consecutive_same") > 10
			},
			Describe: func(m map[string]any) string {
				return fmt.Sprintf("%.0f identical consecutive prices", metricFloat(m, "consecutive_same"))
			},
		},
	}
}

func metricFloat(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return 0
	}
}

func metricString(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

// MergeMetrics flattens the quality report, drift report and
// performance numbers into one metrics map. Later sources win on key
// collisions: quality first, then drift, then performance.
func MergeMetrics(q *models.QualityReport, d *models.DriftReport, perf map[string]float64) map[string]any {
	m := make(map[string]any)
	if q != nil {
		m["quality_score"] = q.QualityScore
		m["quality_level"] = q.QualityLevel
		m["outlier_ratio"] = q.OutlierRatio
		m["missing_ratio"] = q.MissingRatio
		m["volatility"] = q.Volatility
		m["consecutive_same"] = float64(q.ConsecutiveSame)
		m["total_points"] = float64(q.TotalPoints)
		m["trend"] = q.Trend
	}
	if d != nil {
		m["drift_score"] = d.DriftScore
		m["drift_level"] = d.DriftLevel
		m["drift_reason"] = d.DriftReason
		m["ks_statistic"] = d.KSStatistic
		m["mean_shift_pct"] = d.MeanShiftPct
	}
	for k, v := range perf {
		m[k] = v
	}
	return m
}
