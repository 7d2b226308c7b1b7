package models

import "time"

// Prediction modes. Bid mode targets buy-order placement, scan mode
// targets direct purchases and uses stricter profit thresholds.
const (
	ModeBid  = "bid"
	ModeScan = "scan"
)

// Recommendation actions.
const (
	ActionBuy  = "buy"
	ActionHold = "hold"
)

// SubmodelForecast is one predictor's horizon of future prices.
type SubmodelForecast struct {
	Model    string    `json:"model"`
	Forecast []float64 `json:"forecast"`
	Lower    []float64 `json:"lower,omitempty"`
	Upper    []float64 `json:"upper,omitempty"`
}

// Recommendation is the trading advice derived from the ensemble forecast.
type Recommendation struct {
	Action         string  `json:"action"`
	NextPrice      float64 `json:"next_price"`
	AvgFuturePrice float64 `json:"avg_future_price"`
	PriceChangePct float64 `json:"price_change_pct"`
	RecentTrendPct float64 `json:"recent_trend_pct"`
	ExpectedProfit float64 `json:"expected_profit"`
	Reason         string  `json:"reason"`
	Confidence     float64 `json:"confidence"`
}

// Forecast is the full prediction payload served to callers.
type Forecast struct {
	ItemID         int64                       `json:"item_id"`
	CurrentPrice   float64                     `json:"current_price"`
	LastTimestamp  time.Time                   `json:"last_timestamp"`
	ForecastDays   int                         `json:"forecast_days"`
	Mode           string                      `json:"mode"`
	Dates          []time.Time                 `json:"dates"`
	Submodels      map[string]SubmodelForecast `json:"predictions"`
	Ensemble       []float64                   `json:"ensemble"`
	Weights        map[string]float64          `json:"weights"`
	Recommendation Recommendation              `json:"recommendation"`
	EnsembleMAPE   float64                     `json:"ensemble_mape"`
	TrainingCount  int                         `json:"training_count"`
}

// BatchOutcome buckets per-item results of a batch operation. One item's
// failure never fails the whole batch.
const (
	OutcomeTrained           = "trained"
	OutcomeLoadedDisk        = "loaded_disk"
	OutcomeCached            = "cached"
	OutcomeSkippedNoData     = "skipped_no_data"
	OutcomeSkippedTrainFail  = "skipped_train_failed"
	OutcomePredictFailed     = "predict_failed"
	OutcomeError             = "error"
)

// BatchResult aggregates a batch prediction run.
type BatchResult struct {
	TotalRequested int            `json:"total_requested"`
	TotalSuccess   int            `json:"total_success"`
	Stats          map[string]int `json:"stats"`
	Results        []*Forecast    `json:"results"`
}

// CacheStatus reports the model cache fill level.
type CacheStatus struct {
	Size    int `json:"size"`
	MaxSize int `json:"max_size"`
}
