package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"PriceCast/internal/domain/models"
	"PriceCast/internal/domain/repository"
	domsvc "PriceCast/internal/domain/service"
	"PriceCast/internal/service/modelcache"
	"PriceCast/internal/services/alerting"
	"PriceCast/internal/services/drift"
	"PriceCast/internal/services/forecast"
	"PriceCast/internal/services/quality"
	"PriceCast/pkg/logger"
)

// LifecycleConfig tunes the training guards and data windows.
type LifecycleConfig struct {
	HistoryDays       int
	MinPoints         int
	MaxObservationAge time.Duration
	MinSellOrders     int
	StagnationWindow  time.Duration
	TickFreshness     time.Duration
}

// DefaultLifecycleConfig returns the standard guard settings.
func DefaultLifecycleConfig() LifecycleConfig {
	return LifecycleConfig{
		HistoryDays:       30,
		MinPoints:         10,
		MaxObservationAge: 24 * time.Hour,
		MinSellOrders:     90,
		StagnationWindow:  12 * time.Hour,
		TickFreshness:     10 * time.Minute,
	}
}

const (
	holdoutDays    = 7
	splitMinPoints = 20
	recentRatio    = 0.3
)

// Manager owns the full model lifecycle of every item: data guards,
// quality checks, drift detection, strategy decision, training,
// persistence and prediction. All mutation of one item's model happens
// under that item's lock.
type Manager struct {
	cfg       LifecycleConfig
	history   repository.HistoryFetcher
	store     repository.ModelStore
	cache     *modelcache.Cache
	factory   *forecast.Factory
	checker   *quality.Checker
	cleaner   *quality.Cleaner
	detector  *drift.Detector
	alerts    *alerting.Engine
	collector *Collector
	metrics   repository.Metrics
	log       *logger.Logger
}

// NewManager wires the lifecycle manager. collector may be nil when no
// live market stream is configured.
func NewManager(
	cfg LifecycleConfig,
	history repository.HistoryFetcher,
	store repository.ModelStore,
	cache *modelcache.Cache,
	factory *forecast.Factory,
	checker *quality.Checker,
	cleaner *quality.Cleaner,
	detector *drift.Detector,
	alerts *alerting.Engine,
	collector *Collector,
	metrics repository.Metrics,
	log *logger.Logger,
) *Manager {
	return &Manager{
		cfg:       cfg,
		history:   history,
		store:     store,
		cache:     cache,
		factory:   factory,
		checker:   checker,
		cleaner:   cleaner,
		detector:  detector,
		alerts:    alerts,
		collector: collector,
		metrics:   metrics,
		log:       log,
	}
}

// Train runs one training cycle for an item and returns the resulting
// record and the strategy that was applied. A skip returns the existing
// record untouched.
func (m *Manager) Train(ctx context.Context, itemID int64) (*models.ModelRecord, string, error) {
	lock := m.cache.ItemLock(itemID)
	lock.Lock()
	defer lock.Unlock()
	return m.trainLocked(ctx, itemID)
}

// ForceRetrain drops the persisted record and the cached model before
// training, so the cycle cannot resolve to a skip or a warm start.
func (m *Manager) ForceRetrain(ctx context.Context, itemID int64) (*models.ModelRecord, string, error) {
	lock := m.cache.ItemLock(itemID)
	lock.Lock()
	defer lock.Unlock()

	if err := m.store.Delete(itemID); err != nil {
		m.metrics.RecordError("persistence")
		return nil, "", fmt.Errorf("drop model for item %d: %w", itemID, err)
	}
	m.cache.Remove(itemID)
	return m.trainLocked(ctx, itemID)
}

func (m *Manager) trainLocked(ctx context.Context, itemID int64) (*models.ModelRecord, string, error) {
	started := time.Now()

	series, err := m.history.FetchHistory(ctx, itemID, m.cfg.HistoryDays)
	if err != nil {
		m.metrics.RecordError("fetch_history")
		return nil, "", fmt.Errorf("fetch history for item %d: %w", itemID, err)
	}
	if err := m.guard(series); err != nil {
		m.metrics.RecordError("guard")
		return nil, "", err
	}

	qualityReport := m.checker.Check(series, itemID)

	// cleaning rewrites the series, so it only runs when quality is
	// critical; on a healthy series it would drop real points
	cleaned := series
	var cleanStats quality.CleanStats
	if qualityReport.QualityLevel == models.QualityCritical {
		cleaned, cleanStats = m.cleaner.Clean(series)
		if len(cleaned) < m.cfg.MinPoints {
			m.metrics.RecordError("guard")
			return nil, "", fmt.Errorf("%w: %d points left after cleaning", ErrDataInsufficient, len(cleaned))
		}
	}

	driftReport := m.detectDrift(cleaned, itemID)
	existing := m.loadExisting(itemID)

	strategy := DecideStrategy(recordOf(existing), driftReport, time.Now())

	perf := map[string]float64{}
	if existing != nil {
		perf["ensemble_mape"] = existing.Record.Metrics.Ensemble.MAPE
	}
	m.alerts.Evaluate(ctx, itemID, alerting.MergeMetrics(qualityReport, driftReport, perf))

	if strategy == models.StrategySkip {
		m.log.Debug("training skipped",
			logger.Int64("item_id", itemID),
			logger.String("quality_level", qualityReport.QualityLevel))
		return existing.Record, models.StrategySkip, nil
	}

	cached, err := m.fitEnsemble(ctx, itemID, strategy, existing, cleaned)
	if err != nil {
		m.metrics.RecordError("training")
		return nil, "", errors.Join(ErrTrainingFailed, err)
	}

	record := cached.Record
	record.Metrics.TrainingSeconds = time.Since(started).Seconds()
	record.Metrics.LastTrainingTime = time.Now()
	record.Metrics.TrainingStrategy = strategy
	if existing != nil {
		record.Metrics.TrainingCount = existing.Record.Metrics.TrainingCount + 1
	} else {
		record.Metrics.TrainingCount = 1
	}

	if err := m.store.Save(record); err != nil {
		m.metrics.RecordError("persistence")
		return nil, "", errors.Join(ErrPersistence, err)
	}
	if err := m.store.SaveMetrics(record); err != nil {
		m.log.Warn("metrics snapshot failed",
			logger.Int64("item_id", itemID),
			logger.Error(err))
	}
	m.cache.Put(itemID, cached)

	m.metrics.RecordTraining(strategy)
	m.metrics.RecordLatency("train", time.Since(started).Seconds())
	m.log.Info("training cycle complete",
		logger.Int64("item_id", itemID),
		logger.String("strategy", strategy),
		logger.Int("points", len(cleaned)),
		logger.Int("outliers_removed", cleanStats.OutliersRemoved),
		logger.Any("weights", record.Weights))

	return record, strategy, nil
}

// guard rejects series that are too small, stale, illiquid or stagnant.
func (m *Manager) guard(series []models.PriceObservation) error {
	if len(series) < m.cfg.MinPoints {
		return fmt.Errorf("%w: %d of %d points", ErrDataInsufficient, len(series), m.cfg.MinPoints)
	}
	last, _ := models.LatestObservation(series)
	if age := time.Since(last.Timestamp); age > m.cfg.MaxObservationAge {
		return fmt.Errorf("%w: last observation %s old", ErrDataStale, age.Round(time.Minute))
	}
	if last.SellOrderCount < m.cfg.MinSellOrders {
		return fmt.Errorf("%w: %d sell orders", ErrLowLiquidity, last.SellOrderCount)
	}
	trailing := models.ObservationsSince(series, last.Timestamp.Add(-m.cfg.StagnationWindow))
	if len(trailing) >= 2 && allSamePrice(trailing) {
		return fmt.Errorf("%w: flat for %d observations", ErrPriceStagnation, len(trailing))
	}
	return nil
}

func allSamePrice(obs []models.PriceObservation) bool {
	for _, o := range obs[1:] {
		if o.SellPrice != obs[0].SellPrice {
			return false
		}
	}
	return true
}

// detectDrift compares the recent window of the cleaned series against
// the reference head.
func (m *Manager) detectDrift(cleaned []models.PriceObservation, itemID int64) *models.DriftReport {
	prices := models.SellPrices(cleaned)
	split := driftSplit(len(prices))
	return m.detector.Detect(prices[:split], prices[split:], itemID)
}

// driftSplit puts the window boundary so the recent side holds
// recentRatio of the points, falling back to halves when either side
// would drop under the detector's 3-point minimum.
func driftSplit(n int) int {
	split := n - int(float64(n)*recentRatio)
	if n-split < 3 || split < 3 {
		split = n / 2
	}
	return split
}

// loadExisting finds the item's model in the cache or restores it from
// disk. Returns nil when nothing usable exists.
func (m *Manager) loadExisting(itemID int64) *modelcache.CachedModel {
	if cached, ok := m.cache.Get(itemID); ok {
		return cached
	}
	record, err := m.store.Load(itemID)
	if err != nil || record == nil {
		return nil
	}
	if record.Version != models.ModelVersion {
		m.log.Warn("discarding model with old version",
			logger.Int64("item_id", itemID),
			logger.String("version", record.Version))
		return nil
	}
	submodels, err := m.restoreSubmodels(record)
	if err != nil {
		m.log.Warn("model restore failed",
			logger.Int64("item_id", itemID),
			logger.Error(err))
		return nil
	}
	cached := &modelcache.CachedModel{Record: record, Submodels: submodels}
	m.cache.Put(itemID, cached)
	return cached
}

func (m *Manager) restoreSubmodels(record *models.ModelRecord) (map[string]domsvc.Forecaster, error) {
	out := make(map[string]domsvc.Forecaster, len(record.SubmodelStates))
	for name, state := range record.SubmodelStates {
		sub, err := m.factory.NewByName(name)
		if err != nil {
			return nil, err
		}
		if err := sub.Restore(state); err != nil {
			return nil, fmt.Errorf("restore %s: %w", name, err)
		}
		out[name] = sub
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("record holds no submodel states")
	}
	return out, nil
}

func recordOf(cached *modelcache.CachedModel) *models.ModelRecord {
	if cached == nil {
		return nil
	}
	return cached.Record
}

// fitEnsemble produces the new cached model for the chosen strategy.
func (m *Manager) fitEnsemble(ctx context.Context, itemID int64, strategy string, existing *modelcache.CachedModel, cleaned []models.PriceObservation) (*modelcache.CachedModel, error) {
	weights, metrics, err := m.evaluate(ctx, strategy, existing, cleaned)
	if err != nil {
		return nil, err
	}

	var submodels map[string]domsvc.Forecaster
	if strategy == models.StrategyIncremental && existing != nil {
		submodels, err = m.updateSubmodels(ctx, existing, cleaned)
	} else {
		submodels, err = m.fitFresh(ctx, cleaned)
	}
	if err != nil {
		return nil, err
	}

	states := make(map[string]json.RawMessage, len(submodels))
	for name, sub := range submodels {
		state, err := sub.Snapshot()
		if err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", name, err)
		}
		states[name] = state
	}

	last, _ := models.LatestObservation(cleaned)
	record := &models.ModelRecord{
		ItemID:              itemID,
		SubmodelStates:      states,
		Weights:             weights,
		LastPrice:           last.SellPrice,
		LastObservationTime: last.Timestamp,
		TrainSize:           len(cleaned),
		Metrics:             metrics,
		Version:             models.ModelVersion,
	}
	return &modelcache.CachedModel{Record: record, Submodels: submodels}, nil
}

// fitFresh trains a new submodel set on the whole cleaned series.
// A single submodel failing to fit is tolerated as long as one survives.
func (m *Manager) fitFresh(ctx context.Context, cleaned []models.PriceObservation) (map[string]domsvc.Forecaster, error) {
	out := make(map[string]domsvc.Forecaster)
	for _, sub := range m.factory.NewSet() {
		if err := sub.Fit(ctx, cleaned); err != nil {
			m.log.Warn("submodel fit failed",
				logger.String("model", sub.Name()),
				logger.Error(err))
			continue
		}
		out[sub.Name()] = sub
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no submodel could fit the series")
	}
	return out, nil
}

// updateSubmodels continues training the live submodels on observations
// newer than the record. Submodels without warm start refit in full.
func (m *Manager) updateSubmodels(ctx context.Context, existing *modelcache.CachedModel, cleaned []models.PriceObservation) (map[string]domsvc.Forecaster, error) {
	fresh := freshObservations(cleaned, existing.Record.LastObservationTime)
	out := make(map[string]domsvc.Forecaster)
	for name, sub := range existing.Submodels {
		var err error
		if sub.SupportsWarmStart() {
			err = sub.Update(ctx, fresh)
		} else {
			err = sub.Fit(ctx, cleaned)
		}
		if err != nil {
			m.log.Warn("submodel update failed",
				logger.String("model", name),
				logger.Error(err))
			continue
		}
		out[name] = sub
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no submodel survived the incremental update")
	}
	return out, nil
}

// freshObservations returns the observations strictly newer than the
// cutoff.
func freshObservations(obs []models.PriceObservation, cutoff time.Time) []models.PriceObservation {
	for i, o := range obs {
		if o.Timestamp.After(cutoff) {
			return obs[i:]
		}
	}
	return nil
}

// evaluate holds out the series tail, fits a throwaway submodel set on
// the head and scores everything on the holdout. The throwaway set
// mirrors how the serving set will be trained: scratch fits for a full
// cycle, warm continuations of the persisted states for an incremental
// one. With 20 or more points the head splits again into train and
// tuning windows: tuning errors set the ensemble weights, holdout
// errors are reported. Shorter series fall back to an 80/20 split
// serving both purposes.
func (m *Manager) evaluate(ctx context.Context, strategy string, existing *modelcache.CachedModel, cleaned []models.PriceObservation) (map[string]float64, models.ModelMetrics, error) {
	n := len(cleaned)
	var fitEnd, tuneEnd int
	if n >= splitMinPoints {
		fitEnd = n - 2*holdoutDays
		tuneEnd = n - holdoutDays
	} else {
		fitEnd = n * 8 / 10
		tuneEnd = fitEnd
	}
	fitObs := cleaned[:fitEnd]
	horizon := n - fitEnd
	actual := models.SellPrices(cleaned[fitEnd:])

	paths := make(map[string][]float64)
	tuneMAPE := make(map[string]float64)
	submodelStats := make(map[string]models.ErrorStats)
	for _, sub := range m.evaluationSet(ctx, strategy, existing, fitObs) {
		path, err := sub.Predict(horizon)
		if err != nil {
			continue
		}
		paths[sub.Name()] = path

		tune := errorStats(path[:tuneEnd-fitEnd], actual[:tuneEnd-fitEnd])
		holdout := errorStats(path[tuneEnd-fitEnd:], actual[tuneEnd-fitEnd:])
		if tuneEnd == fitEnd {
			// 80/20 fallback: one window serves both purposes
			tune = errorStats(path, actual)
			holdout = tune
		}
		tuneMAPE[sub.Name()] = tune.MAPE
		submodelStats[sub.Name()] = holdout
	}
	if len(paths) == 0 {
		return nil, models.ModelMetrics{}, fmt.Errorf("no submodel produced an evaluation forecast")
	}

	names := make([]string, 0, len(paths))
	for name := range paths {
		names = append(names, name)
	}
	weights := forecast.AllocateWeights(names, tuneMAPE)

	blended := forecast.BlendForecasts(paths, weights, horizon)
	ensembleWindow := blended[tuneEnd-fitEnd:]
	actualWindow := actual[tuneEnd-fitEnd:]
	if tuneEnd == fitEnd {
		ensembleWindow = blended
		actualWindow = actual
	}

	metrics := models.ModelMetrics{
		Submodels: submodelStats,
		Ensemble:  errorStats(ensembleWindow, actualWindow),
	}
	return weights, metrics, nil
}

// evaluationSet fits throwaway submodels on the head window the same
// way the serving set is built, so the reported metrics describe the
// models that will actually predict. Restores run against fresh
// instances; the live submodels are never touched.
func (m *Manager) evaluationSet(ctx context.Context, strategy string, existing *modelcache.CachedModel, fitObs []models.PriceObservation) []domsvc.Forecaster {
	if strategy == models.StrategyIncremental && existing != nil {
		fresh := freshObservations(fitObs, existing.Record.LastObservationTime)
		out := make([]domsvc.Forecaster, 0, len(existing.Record.SubmodelStates))
		for name, state := range existing.Record.SubmodelStates {
			sub, err := m.factory.NewByName(name)
			if err != nil {
				continue
			}
			if err := sub.Restore(state); err != nil {
				continue
			}
			if sub.SupportsWarmStart() {
				err = sub.Update(ctx, fresh)
			} else {
				err = sub.Fit(ctx, fitObs)
			}
			if err != nil {
				continue
			}
			out = append(out, sub)
		}
		return out
	}

	set := m.factory.NewSet()
	out := make([]domsvc.Forecaster, 0, len(set))
	for _, sub := range set {
		if err := sub.Fit(ctx, fitObs); err != nil {
			continue
		}
		out = append(out, sub)
	}
	return out
}

// errorStats scores predictions against actual values. Zero actual
// prices are skipped for the MAPE.
func errorStats(predicted, actual []float64) models.ErrorStats {
	n := len(predicted)
	if len(actual) < n {
		n = len(actual)
	}
	if n == 0 {
		return models.ErrorStats{}
	}
	var sse, sae, sape float64
	mapeCount := 0
	for i := 0; i < n; i++ {
		d := predicted[i] - actual[i]
		sse += d * d
		sae += math.Abs(d)
		if actual[i] != 0 {
			sape += math.Abs(d) / math.Abs(actual[i])
			mapeCount++
		}
	}
	st := models.ErrorStats{
		MSE: sse / float64(n),
		MAE: sae / float64(n),
	}
	if mapeCount > 0 {
		st.MAPE = sape / float64(mapeCount)
	}
	return st
}
