package usecase

import (
	"time"

	"PriceCast/internal/domain/models"
)

// Decision thresholds of the training strategy table.
const (
	fullRetrainAgeDays = 7.0
	incrementalAgeDays = 3.0
	ksFullThreshold    = 0.5
	ksPartialThreshold = 0.3
)

// DecideStrategy maps model age and drift onto a training strategy.
// The table is checked top to bottom, first match wins:
//
//	no usable record                     -> full
//	age > 7 days                         -> full
//	severe drift or KS > 0.5             -> full
//	moderate drift or 0.3 < KS <= 0.5    -> incremental
//	age > 3 days                         -> incremental
//	otherwise                            -> skip
func DecideStrategy(record *models.ModelRecord, drift *models.DriftReport, now time.Time) string {
	if record == nil || len(record.SubmodelStates) == 0 {
		return models.StrategyFull
	}
	age := record.AgeDays(now)
	if age > fullRetrainAgeDays {
		return models.StrategyFull
	}
	if drift != nil {
		if drift.DriftLevel == models.DriftSevere || drift.KSStatistic > ksFullThreshold {
			return models.StrategyFull
		}
		if drift.DriftLevel == models.DriftModerate ||
			(drift.KSStatistic > ksPartialThreshold && drift.KSStatistic <= ksFullThreshold) {
			return models.StrategyIncremental
		}
	}
	if age > incrementalAgeDays {
		return models.StrategyIncremental
	}
	return models.StrategySkip
}
