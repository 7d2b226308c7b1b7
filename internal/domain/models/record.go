package models

import (
	"encoding/json"
	"time"
)

// ModelVersion tags persisted model blobs. Records written by an older
// version are discarded on load and retrained from scratch.
const ModelVersion = "1.0"

// Training strategies chosen per cycle.
const (
	StrategySkip        = "skip"
	StrategyIncremental = "incremental"
	StrategyFull        = "full"
)

// ErrorStats holds the evaluation errors of one predictor on a held-out
// window.
type ErrorStats struct {
	MSE  float64 `json:"mse"`
	MAE  float64 `json:"mae"`
	MAPE float64 `json:"mape"`
}

// ModelMetrics tracks per-submodel and ensemble evaluation results across
// training cycles.
type ModelMetrics struct {
	Submodels        map[string]ErrorStats `json:"submodels"`
	Ensemble         ErrorStats            `json:"ensemble"`
	TrainingSeconds  float64               `json:"training_seconds"`
	TrainingCount    int                   `json:"training_count"`
	LastTrainingTime time.Time             `json:"last_training_time"`
	TrainingStrategy string                `json:"training_strategy"`
}

// ModelRecord is the persisted state of one item's trained ensemble:
// serialized submodel states, ensemble weights and bookkeeping. It is
// created on first successful training, mutated only by the lifecycle
// manager under the item's lock, and written to disk as a single atomic
// blob. A record becomes visible to predict callers only after a
// successful persist.
type ModelRecord struct {
	ItemID              int64                      `json:"item_id"`
	SubmodelStates      map[string]json.RawMessage `json:"submodel_states"`
	Weights             map[string]float64         `json:"weights"`
	LastPrice           float64                    `json:"last_price"`
	LastObservationTime time.Time                  `json:"last_observation_time"`
	TrainSize           int                        `json:"train_size"`
	Metrics             ModelMetrics               `json:"metrics"`
	Version             string                     `json:"model_version"`
	FeatureSchemaID     string                     `json:"feature_schema_id"`
}

// AgeDays returns the record age in days measured from the last
// observation it was trained on. Records with a zero observation time
// report a very large age so the decision table forces a full retrain.
func (r *ModelRecord) AgeDays(now time.Time) float64 {
	if r == nil || r.LastObservationTime.IsZero() {
		return 999
	}
	return now.Sub(r.LastObservationTime).Hours() / 24
}
