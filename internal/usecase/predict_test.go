package usecase

import (
	"context"
	"math"
	"testing"

	"PriceCast/internal/domain/models"
)

func TestPredictTrainsMissingModel(t *testing.T) {
	history := &fakeHistory{series: map[int64][]models.PriceObservation{
		1: liveSeries(48, cycleAt),
	}}
	store := newFakeStore()
	m := newTestManager(t, history, store)

	fc, source, err := m.Predict(context.Background(), 1, 7, models.ModeBid)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if source != models.OutcomeTrained {
		t.Fatalf("source = %s, want trained", source)
	}
	if fc.ItemID != 1 || fc.ForecastDays != 7 {
		t.Fatalf("forecast = %+v", fc)
	}
	if len(fc.Ensemble) != 7 || len(fc.Dates) != 7 {
		t.Fatalf("ensemble %d points, dates %d", len(fc.Ensemble), len(fc.Dates))
	}
	if fc.CurrentPrice <= 0 {
		t.Fatalf("current price = %v", fc.CurrentPrice)
	}
	for _, v := range fc.Ensemble {
		if v < 0 || math.IsNaN(v) {
			t.Fatalf("ensemble point = %v", v)
		}
	}
	if fc.Recommendation.Action != models.ActionBuy && fc.Recommendation.Action != models.ActionHold {
		t.Fatalf("action = %q", fc.Recommendation.Action)
	}
	if fc.Recommendation.Confidence < 0.30 || fc.Recommendation.Confidence > 0.98 {
		t.Fatalf("confidence = %v outside bounds", fc.Recommendation.Confidence)
	}

	// second call must hit the cache
	_, source, err = m.Predict(context.Background(), 1, 7, models.ModeBid)
	if err != nil {
		t.Fatalf("second predict: %v", err)
	}
	if source != models.OutcomeCached {
		t.Fatalf("source = %s, want cached", source)
	}
}

func TestPredictLoadsFromDisk(t *testing.T) {
	history := &fakeHistory{series: map[int64][]models.PriceObservation{
		1: liveSeries(48, cycleAt),
	}}
	store := newFakeStore()

	trainer := newTestManager(t, history, store)
	if _, _, err := trainer.Train(context.Background(), 1); err != nil {
		t.Fatalf("train: %v", err)
	}

	// fresh manager with an empty cache but the same store
	reader := newTestManager(t, history, store)
	_, source, err := reader.Predict(context.Background(), 1, 5, models.ModeScan)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if source != models.OutcomeLoadedDisk {
		t.Fatalf("source = %s, want loaded_disk", source)
	}
}

func TestPredictNoDataBucket(t *testing.T) {
	history := &fakeHistory{series: map[int64][]models.PriceObservation{}}
	m := newTestManager(t, history, newFakeStore())

	_, source, err := m.Predict(context.Background(), 9, 7, models.ModeBid)
	if err == nil {
		t.Fatal("predict without data must fail")
	}
	if source != models.OutcomeSkippedNoData {
		t.Fatalf("source = %s, want skipped_no_data", source)
	}
}

func TestBatchPredictBuckets(t *testing.T) {
	history := &fakeHistory{series: map[int64][]models.PriceObservation{
		1: liveSeries(48, cycleAt),
		2: liveSeries(48, rampAt(200, 0.2)),
	}}
	m := newTestManager(t, history, newFakeStore())

	result := m.BatchPredict(context.Background(), []int64{1, 2, 3}, 7, models.ModeBid)
	if result.TotalRequested != 3 {
		t.Fatalf("requested = %d", result.TotalRequested)
	}
	if result.TotalSuccess != 2 {
		t.Fatalf("succeeded = %d, want 2 (stats %v)", result.TotalSuccess, result.Stats)
	}
	if result.Stats[models.OutcomeTrained] != 2 {
		t.Fatalf("trained bucket = %d, want 2 (stats %v)", result.Stats[models.OutcomeTrained], result.Stats)
	}
	if result.Stats[models.OutcomeSkippedNoData] != 1 {
		t.Fatalf("no-data bucket = %d, want 1 (stats %v)", result.Stats[models.OutcomeSkippedNoData], result.Stats)
	}
	if len(result.Results) != 2 {
		t.Fatalf("results = %d", len(result.Results))
	}
}

func TestBuildRecommendationProfit(t *testing.T) {
	// 10% expected rise clears the 3% bid threshold even after the fee
	ensemble := []float64{110, 110, 110}
	rec := BuildRecommendation(ensemble, 100, []float64{98, 99, 100}, models.ModeBid)
	if rec.Action != models.ActionBuy {
		t.Fatalf("action = %s (%s)", rec.Action, rec.Reason)
	}
	wantProfit := (110*0.99 - 100) / 100
	if math.Abs(rec.ExpectedProfit-wantProfit) > 1e-9 {
		t.Fatalf("expected profit = %v, want %v", rec.ExpectedProfit, wantProfit)
	}

	// the same move misses the stricter scan threshold
	rec = BuildRecommendation(ensemble, 100, []float64{98, 99, 100}, models.ModeScan)
	if rec.Action != models.ActionHold {
		t.Fatalf("scan action = %s, want hold", rec.Action)
	}
}

func TestBuildRecommendationChaseHigh(t *testing.T) {
	// flat average but a 6% next-step spike with positive momentum
	ensemble := []float64{106, 100, 100, 100, 100, 100, 100}
	rec := BuildRecommendation(ensemble, 100, []float64{95, 98, 100}, models.ModeBid)
	if rec.Action != models.ActionBuy {
		t.Fatalf("action = %s (%s)", rec.Action, rec.Reason)
	}
}

func TestBuildRecommendationHoldOnFlat(t *testing.T) {
	ensemble := []float64{100.5, 100.5, 100.5}
	rec := BuildRecommendation(ensemble, 100, []float64{100, 100, 100}, models.ModeBid)
	if rec.Action != models.ActionHold {
		t.Fatalf("action = %s (%s)", rec.Action, rec.Reason)
	}
}

func TestBuildRecommendationEmptyEnsemble(t *testing.T) {
	rec := BuildRecommendation(nil, 100, nil, models.ModeBid)
	if rec.Action != models.ActionHold {
		t.Fatalf("action = %s", rec.Action)
	}
}

func TestComputeConfidenceBounds(t *testing.T) {
	// perfect agreement, clean data, short horizon
	high := ComputeConfidence([]float64{100, 100, 100}, 100, 0, 1, 0.01)
	if high < 0.90 || high > 0.98 {
		t.Fatalf("high confidence = %v", high)
	}

	// wild disagreement, broken data, long horizon
	low := ComputeConfidence([]float64{50, 150, 300}, 0, 0.5, 30, 0.9)
	if low != 0.30 {
		t.Fatalf("low confidence = %v, want the 0.30 floor", low)
	}

	if high <= low {
		t.Fatal("confidence ordering inverted")
	}
}
