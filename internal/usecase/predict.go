package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"PriceCast/internal/domain/models"
	"PriceCast/internal/service/modelcache"
	"PriceCast/internal/services/alerting"
	"PriceCast/internal/services/forecast"
	"PriceCast/pkg/logger"
)

// Predict produces a forecast for one item, training a model first if
// none exists. The returned source is the batch outcome bucket the call
// maps to: cached, loaded_disk or trained.
func (m *Manager) Predict(ctx context.Context, itemID int64, days int, mode string) (*models.Forecast, string, error) {
	started := time.Now()
	if days < 1 {
		days = 1
	}
	if mode != models.ModeScan {
		mode = models.ModeBid
	}

	cached, source, err := m.ensureModel(ctx, itemID)
	if err != nil {
		return nil, source, err
	}
	record := cached.Record

	recent, err := m.history.FetchHistory(ctx, itemID, holdoutDays)
	if err != nil {
		m.log.Warn("recent history unavailable",
			logger.Int64("item_id", itemID),
			logger.Error(err))
		recent = nil
	}
	currentPrice, lastTS := m.currentPrice(ctx, itemID, record, recent)
	m.metrics.RecordLastPrice(itemID, currentPrice)

	submodels := make(map[string]models.SubmodelForecast, len(cached.Submodels))
	paths := make(map[string][]float64, len(cached.Submodels))
	for name, sub := range cached.Submodels {
		path, err := sub.Predict(days)
		if err != nil {
			m.log.Warn("submodel predict failed",
				logger.Int64("item_id", itemID),
				logger.String("model", name),
				logger.Error(err))
			continue
		}
		paths[name] = path
		mape := record.Metrics.Submodels[name].MAPE
		submodels[name] = models.SubmodelForecast{
			Model:    name,
			Forecast: path,
			Lower:    scalePath(path, 1-mape),
			Upper:    scalePath(path, 1+mape),
		}
	}
	if len(paths) == 0 {
		m.metrics.RecordError("predict")
		return nil, models.OutcomePredictFailed, fmt.Errorf("no submodel produced a forecast for item %d", itemID)
	}

	ensemble := forecast.BlendForecasts(paths, record.Weights, days)

	recentPrices := models.SellPrices(recent)
	rec := BuildRecommendation(ensemble, currentPrice, recentPrices, mode)
	rec.Confidence = m.confidence(paths, recentPrices, days, record, itemID)

	dates := make([]time.Time, days)
	for k := 0; k < days; k++ {
		dates[k] = lastTS.Add(time.Duration(k+1) * 24 * time.Hour)
	}

	out := &models.Forecast{
		ItemID:         itemID,
		CurrentPrice:   currentPrice,
		LastTimestamp:  lastTS,
		ForecastDays:   days,
		Mode:           mode,
		Dates:          dates,
		Submodels:      submodels,
		Ensemble:       ensemble,
		Weights:        record.Weights,
		Recommendation: rec,
		EnsembleMAPE:   record.Metrics.Ensemble.MAPE,
		TrainingCount:  record.Metrics.TrainingCount,
	}
	m.metrics.RecordLatency("predict", time.Since(started).Seconds())
	return out, source, nil
}

// ensureModel finds a usable model for the item: cache first, then
// disk, then a fresh training cycle.
func (m *Manager) ensureModel(ctx context.Context, itemID int64) (*modelcache.CachedModel, string, error) {
	if cached, ok := m.cache.Get(itemID); ok {
		return cached, models.OutcomeCached, nil
	}

	lock := m.cache.ItemLock(itemID)
	lock.Lock()
	defer lock.Unlock()

	// another goroutine may have filled the cache while we waited
	if cached, ok := m.cache.Get(itemID); ok {
		return cached, models.OutcomeCached, nil
	}
	if cached := m.loadExisting(itemID); cached != nil {
		return cached, models.OutcomeLoadedDisk, nil
	}

	_, _, err := m.trainLocked(ctx, itemID)
	if err != nil {
		return nil, trainOutcome(err), err
	}
	cached, ok := m.cache.Get(itemID)
	if !ok {
		return nil, models.OutcomeError, fmt.Errorf("trained model for item %d missing from cache", itemID)
	}
	return cached, models.OutcomeTrained, nil
}

// currentPrice prefers a fresh live tick, then the newest observation,
// then the price the model was trained on.
func (m *Manager) currentPrice(ctx context.Context, itemID int64, record *models.ModelRecord, recent []models.PriceObservation) (float64, time.Time) {
	if m.collector != nil {
		if tick, ok := m.collector.Latest(itemID); ok && time.Since(tick.Timestamp) < m.cfg.TickFreshness {
			return tick.Price, tick.Timestamp
		}
	}
	if last, ok := models.LatestObservation(recent); ok && last.SellPrice > 0 {
		return last.SellPrice, last.Timestamp
	}
	if latest, err := m.history.FetchLatest(ctx, itemID); err == nil && latest.SellPrice > 0 {
		return latest.SellPrice, latest.Timestamp
	}
	return record.LastPrice, record.LastObservationTime
}

func (m *Manager) confidence(paths map[string][]float64, recentPrices []float64, days int, record *models.ModelRecord, itemID int64) float64 {
	nextSteps := make([]float64, 0, len(paths))
	for _, path := range paths {
		if len(path) > 0 {
			nextSteps = append(nextSteps, path[0])
		}
	}

	qualityScore := 75.0
	volatility := 0.0
	if len(recentPrices) >= 2 {
		report := m.checker.Check(observationsFromPrices(recentPrices), itemID)
		qualityScore = report.QualityScore
		volatility = report.Volatility
	}
	return ComputeConfidence(nextSteps, qualityScore, volatility, days, record.Metrics.Ensemble.MAPE)
}

// observationsFromPrices lifts a bare price window into observations
// for the quality checker. Order counts are filled with a neutral
// value so liquidity penalties stay out of the confidence signal.
func observationsFromPrices(prices []float64) []models.PriceObservation {
	base := time.Now().Add(-time.Duration(len(prices)) * time.Hour)
	obs := make([]models.PriceObservation, len(prices))
	for i, p := range prices {
		obs[i] = models.PriceObservation{
			Timestamp:      base.Add(time.Duration(i) * time.Hour),
			BuyPrice:       p,
			SellPrice:      p,
			BuyOrderCount:  100,
			SellOrderCount: 100,
		}
	}
	return obs
}

func scalePath(path []float64, factor float64) []float64 {
	if factor < 0 {
		factor = 0
	}
	out := make([]float64, len(path))
	for i, v := range path {
		out[i] = v * factor
	}
	return out
}

func isAnyOf(err error, targets ...error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// trainOutcome maps a training error onto its batch bucket.
func trainOutcome(err error) string {
	switch {
	case isAnyOf(err, ErrDataInsufficient, ErrDataStale, ErrLowLiquidity, ErrPriceStagnation):
		return models.OutcomeSkippedNoData
	case isAnyOf(err, ErrTrainingFailed):
		return models.OutcomeSkippedTrainFail
	default:
		return models.OutcomeError
	}
}

// ClearCache drops every cached model and returns how many were held.
func (m *Manager) ClearCache() int {
	return m.cache.Clear()
}

// CacheStatus reports cache fill.
func (m *Manager) CacheStatus() models.CacheStatus {
	return m.cache.Status()
}

// Alerts exposes the alert engine for the API layer.
func (m *Manager) Alerts() *alerting.Engine {
	return m.alerts
}
