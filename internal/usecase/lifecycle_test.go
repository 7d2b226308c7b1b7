package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"PriceCast/internal/domain/models"
	domsvc "PriceCast/internal/domain/service"
	"PriceCast/internal/service/modelcache"
	"PriceCast/internal/services/alerting"
	"PriceCast/internal/services/drift"
	"PriceCast/internal/services/forecast"
	"PriceCast/internal/services/quality"
	"PriceCast/pkg/logger"
)

type fakeHistory struct {
	mu     sync.Mutex
	series map[int64][]models.PriceObservation
	err    error
}

func (f *fakeHistory) FetchHistory(_ context.Context, itemID int64, _ int) ([]models.PriceObservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.series[itemID], nil
}

func (f *fakeHistory) FetchLatest(_ context.Context, itemID int64) (models.PriceObservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.series[itemID]
	if len(s) == 0 {
		return models.PriceObservation{}, errors.New("no data")
	}
	return s[len(s)-1], nil
}

type fakeStore struct {
	mu       sync.Mutex
	records  map[int64]*models.ModelRecord
	saves    int
	failSave bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[int64]*models.ModelRecord)}
}

func (f *fakeStore) Save(r *models.ModelRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSave {
		return errors.New("disk full")
	}
	f.saves++
	f.records[r.ItemID] = r
	return nil
}

func (f *fakeStore) Load(itemID int64) (*models.ModelRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[itemID]
	if !ok {
		return nil, nil
	}
	return r, nil
}

func (f *fakeStore) Delete(itemID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.records, itemID)
	return nil
}

func (f *fakeStore) SaveMetrics(*models.ModelRecord) error { return nil }

func (f *fakeStore) List() ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int64, 0, len(f.records))
	for id := range f.records {
		out = append(out, id)
	}
	return out, nil
}

type fakeAlertStore struct{}

func (fakeAlertStore) Append(*models.Alert) error { return nil }

type noopMetrics struct{}

func (noopMetrics) RecordTraining(string) {}
func (noopMetrics) RecordError(string) {}
func (noopMetrics) RecordLastPrice(int64, float64) {}
func (noopMetrics) RecordLatency(string, float64) {}
func (noopMetrics) RecordAlert(string) {}
func (noopMetrics) RecordCacheSize(int) {}

func liveSeries(n int, priceAt func(i int) float64) []models.PriceObservation {
	// hourly steps ending now, so the staleness guard passes
	end := time.Now().Add(-time.Minute)
	obs := make([]models.PriceObservation, n)
	for i := 0; i < n; i++ {
		p := priceAt(i)
		obs[i] = models.PriceObservation{
			Timestamp:      end.Add(-time.Duration(n-1-i) * time.Hour),
			BuyPrice:       p * 0.97,
			SellPrice:      p,
			BuyOrderCount:  150,
			SellOrderCount: 150,
		}
	}
	return obs
}

func rampAt(start, step float64) func(int) float64 {
	return func(i int) float64 { return start + step*float64(i) }
}

// cycleAt keeps the recent window inside the historical distribution so
// drift stays quiet.
func cycleAt(i int) float64 {
	return 100 + float64(i%5)
}

func newTestManager(t *testing.T, history *fakeHistory, store *fakeStore) *Manager {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	metrics := noopMetrics{}
	return NewManager(
		DefaultLifecycleConfig(),
		history,
		store,
		modelcache.New(16, metrics),
		forecast.NewFactory("", 0),
		quality.NewChecker(),
		quality.NewCleaner(),
		drift.NewDetector(1),
		alerting.NewEngine(fakeAlertStore{}, metrics, log),
		nil,
		metrics,
		log,
	)
}

func TestTrainFullCycle(t *testing.T) {
	history := &fakeHistory{series: map[int64][]models.PriceObservation{
		1: liveSeries(48, rampAt(100, 0.5)),
	}}
	store := newFakeStore()
	m := newTestManager(t, history, store)

	record, strategy, err := m.Train(context.Background(), 1)
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if strategy != models.StrategyFull {
		t.Fatalf("strategy = %s, want full for a new item", strategy)
	}
	if record.ItemID != 1 || record.Version != models.ModelVersion {
		t.Fatalf("record = %+v", record)
	}
	if len(record.SubmodelStates) == 0 || len(record.Weights) == 0 {
		t.Fatal("record missing states or weights")
	}
	sum := 0.0
	for _, w := range record.Weights {
		sum += w
	}
	if sum < 0.999 || sum > 1.001 {
		t.Fatalf("weights sum to %v", sum)
	}
	if record.Metrics.TrainingCount != 1 {
		t.Fatalf("training count = %d", record.Metrics.TrainingCount)
	}
	if store.saves != 1 {
		t.Fatalf("store saves = %d", store.saves)
	}
	if _, ok := m.cache.Get(1); !ok {
		t.Fatal("trained model not cached")
	}
}

func TestTrainGuards(t *testing.T) {
	now := time.Now()
	stale := liveSeries(48, rampAt(100, 0.5))
	for i := range stale {
		stale[i].Timestamp = now.Add(-48 * time.Hour).Add(time.Duration(i) * time.Minute)
	}
	thin := liveSeries(48, rampAt(100, 0.5))
	thin[len(thin)-1].SellOrderCount = 5

	cases := []struct {
		name   string
		series []models.PriceObservation
		want   error
	}{
		{"too few points", liveSeries(5, rampAt(100, 1)), ErrDataInsufficient},
		{"stale data", stale, ErrDataStale},
		{"thin order book", thin, ErrLowLiquidity},
		{"stagnant price", liveSeries(48, func(int) float64 { return 250 }), ErrPriceStagnation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			history := &fakeHistory{series: map[int64][]models.PriceObservation{1: tc.series}}
			m := newTestManager(t, history, newFakeStore())
			_, _, err := m.Train(context.Background(), 1)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestTrainSkipWhenFresh(t *testing.T) {
	history := &fakeHistory{series: map[int64][]models.PriceObservation{
		1: liveSeries(48, cycleAt),
	}}
	store := newFakeStore()
	m := newTestManager(t, history, store)

	first, _, err := m.Train(context.Background(), 1)
	if err != nil {
		t.Fatalf("first train: %v", err)
	}

	// same fresh data: the model is new and undrifted
	record, strategy, err := m.Train(context.Background(), 1)
	if err != nil {
		t.Fatalf("second train: %v", err)
	}
	if strategy != models.StrategySkip {
		t.Fatalf("strategy = %s, want skip", strategy)
	}
	if record.Metrics.TrainingCount != first.Metrics.TrainingCount {
		t.Fatal("skip must not advance the training count")
	}
	if store.saves != 1 {
		t.Fatalf("skip must not persist, saves = %d", store.saves)
	}
}

func TestTrainKeepsAllPointsOnGoodQuality(t *testing.T) {
	// one lone spike does not push quality to critical, so the series
	// must reach training untouched
	spiky := liveSeries(30, func(i int) float64 {
		if i == 15 {
			return 150
		}
		return cycleAt(i)
	})
	history := &fakeHistory{series: map[int64][]models.PriceObservation{1: spiky}}
	m := newTestManager(t, history, newFakeStore())

	record, _, err := m.Train(context.Background(), 1)
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if record.TrainSize != len(spiky) {
		t.Fatalf("trained on %d of %d points", record.TrainSize, len(spiky))
	}
}

func TestDriftSplitKeepsRecentThird(t *testing.T) {
	cases := []struct{ n, want int }{
		{48, 34},
		{30, 21},
		{10, 7},
		{8, 4}, // a 30% tail would be 2 points, halves instead
		{6, 3},
	}
	for _, tc := range cases {
		if got := driftSplit(tc.n); got != tc.want {
			t.Fatalf("driftSplit(%d) = %d, want %d", tc.n, got, tc.want)
		}
	}
}

func TestIncrementalEvaluationTracksServedSubmodels(t *testing.T) {
	series := liveSeries(48, rampAt(100, 0.5))
	history := &fakeHistory{series: map[int64][]models.PriceObservation{1: series}}
	m := newTestManager(t, history, newFakeStore())
	ctx := context.Background()

	// a record that serves only the linear submodel
	lin, err := m.factory.NewByName(forecast.ModelLinear)
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	if err := lin.Fit(ctx, series[:30]); err != nil {
		t.Fatalf("fit: %v", err)
	}
	state, err := lin.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	last, _ := models.LatestObservation(series[:30])
	existing := &modelcache.CachedModel{
		Record: &models.ModelRecord{
			ItemID:              1,
			SubmodelStates:      map[string]json.RawMessage{forecast.ModelLinear: state},
			LastObservationTime: last.Timestamp,
			Version:             models.ModelVersion,
		},
		Submodels: map[string]domsvc.Forecaster{forecast.ModelLinear: lin},
	}

	cached, err := m.fitEnsemble(ctx, 1, models.StrategyIncremental, existing, series)
	if err != nil {
		t.Fatalf("fit ensemble: %v", err)
	}
	if len(cached.Record.Weights) != 1 || cached.Record.Weights[forecast.ModelLinear] == 0 {
		t.Fatalf("weights = %v, want only the served submodel", cached.Record.Weights)
	}
	if len(cached.Record.Metrics.Submodels) != 1 {
		t.Fatalf("metrics cover %d submodels, want 1", len(cached.Record.Metrics.Submodels))
	}
}

func TestForceRetrainIgnoresFreshModel(t *testing.T) {
	history := &fakeHistory{series: map[int64][]models.PriceObservation{
		1: liveSeries(48, cycleAt),
	}}
	store := newFakeStore()
	m := newTestManager(t, history, store)

	if _, _, err := m.Train(context.Background(), 1); err != nil {
		t.Fatalf("first train: %v", err)
	}

	// a plain retrain would skip here; the forced path must not
	record, strategy, err := m.ForceRetrain(context.Background(), 1)
	if err != nil {
		t.Fatalf("force retrain: %v", err)
	}
	if strategy != models.StrategyFull {
		t.Fatalf("strategy = %s, want full", strategy)
	}
	if record.Metrics.TrainingCount != 1 {
		t.Fatalf("training count = %d, want 1 for a from-scratch record", record.Metrics.TrainingCount)
	}
	if store.saves != 2 {
		t.Fatalf("saves = %d, want 2", store.saves)
	}
}

func TestTrainPersistFailureKeepsOldModelInvisible(t *testing.T) {
	history := &fakeHistory{series: map[int64][]models.PriceObservation{
		1: liveSeries(48, rampAt(100, 0.5)),
	}}
	store := newFakeStore()
	store.failSave = true
	m := newTestManager(t, history, store)

	_, _, err := m.Train(context.Background(), 1)
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("err = %v, want ErrPersistence", err)
	}
	if _, ok := m.cache.Get(1); ok {
		t.Fatal("failed persist must not populate the cache")
	}
}

func TestDecideStrategyTable(t *testing.T) {
	now := time.Now()
	fresh := &models.ModelRecord{
		SubmodelStates:      map[string]json.RawMessage{"linear": []byte("{}")},
		LastObservationTime: now.Add(-1 * time.Hour),
	}
	aged := func(days float64) *models.ModelRecord {
		return &models.ModelRecord{
			SubmodelStates:      map[string]json.RawMessage{"linear": []byte("{}")},
			LastObservationTime: now.Add(-time.Duration(days*24) * time.Hour),
		}
	}
	noDrift := &models.DriftReport{DriftLevel: models.DriftNone}

	cases := []struct {
		name   string
		record *models.ModelRecord
		drift  *models.DriftReport
		want   string
	}{
		{"no record", nil, noDrift, models.StrategyFull},
		{"empty states", &models.ModelRecord{}, noDrift, models.StrategyFull},
		{"old model", aged(8), noDrift, models.StrategyFull},
		{"severe drift", fresh, &models.DriftReport{DriftLevel: models.DriftSevere}, models.StrategyFull},
		{"high ks", fresh, &models.DriftReport{DriftLevel: models.DriftNone, KSStatistic: 0.6}, models.StrategyFull},
		{"moderate drift", fresh, &models.DriftReport{DriftLevel: models.DriftModerate}, models.StrategyIncremental},
		{"mid ks", fresh, &models.DriftReport{DriftLevel: models.DriftMild, KSStatistic: 0.4}, models.StrategyIncremental},
		{"aging model", aged(4), noDrift, models.StrategyIncremental},
		{"fresh and stable", fresh, noDrift, models.StrategySkip},
		{"fresh no drift report", fresh, nil, models.StrategySkip},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DecideStrategy(tc.record, tc.drift, now); got != tc.want {
				t.Fatalf("strategy = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestConcurrentTrainSameItemSerializes(t *testing.T) {
	history := &fakeHistory{series: map[int64][]models.PriceObservation{
		1: liveSeries(48, cycleAt),
	}}
	store := newFakeStore()
	m := newTestManager(t, history, store)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			_, _, errs[g] = m.Train(context.Background(), 1)
		}(g)
	}
	wg.Wait()

	for g, err := range errs {
		if err != nil {
			t.Fatalf("goroutine %d: %v", g, err)
		}
	}
	// one full train, the rest skip against the fresh record
	if store.saves != 1 {
		t.Fatalf("saves = %d, want exactly 1", store.saves)
	}
}
