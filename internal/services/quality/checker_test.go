package quality

import (
	"testing"
	"time"

	"PriceCast/internal/domain/models"
)

func seriesOf(prices ...float64) []models.PriceObservation {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	obs := make([]models.PriceObservation, len(prices))
	for i, p := range prices {
		obs[i] = models.PriceObservation{
			Timestamp:      base.Add(time.Duration(i) * time.Hour),
			BuyPrice:       p * 0.95,
			SellPrice:      p,
			BuyOrderCount:  100,
			SellOrderCount: 100,
		}
	}
	return obs
}

func TestCheckEmptySeries(t *testing.T) {
	r := NewChecker().Check(nil, 42)
	if r.QualityScore != 0 {
		t.Fatalf("score = %v, want 0", r.QualityScore)
	}
	if r.QualityLevel != models.QualityCritical {
		t.Fatalf("level = %q, want critical", r.QualityLevel)
	}
	if len(r.Warnings) == 0 {
		t.Fatal("expected a warning for the empty series")
	}
}

func TestCheckCleanSeriesScoresGood(t *testing.T) {
	prices := make([]float64, 30)
	for i := range prices {
		prices[i] = 100 + float64(i)*0.5
	}
	r := NewChecker().Check(seriesOf(prices...), 7)

	if r.QualityScore != 100 {
		t.Fatalf("score = %v, want 100 (warnings: %v)", r.QualityScore, r.Warnings)
	}
	if r.QualityLevel != models.QualityGood {
		t.Fatalf("level = %q, want good", r.QualityLevel)
	}
	if r.Trend != models.TrendIncreasing {
		t.Fatalf("trend = %q, want increasing", r.Trend)
	}
	if r.TrendStrength < 0.99 {
		t.Fatalf("trend strength = %v, want ~1 for a perfect line", r.TrendStrength)
	}
}

func TestCheckShortSeriesPenalty(t *testing.T) {
	// 8 slowly rising points: only the insufficient-points penalty applies
	r := NewChecker().Check(seriesOf(100, 100.5, 101, 101.5, 102, 102.5, 103, 103.5), 7)
	if r.QualityScore != 80 {
		t.Fatalf("score = %v, want 80 (warnings: %v)", r.QualityScore, r.Warnings)
	}
	if r.QualityLevel != models.QualityGood {
		t.Fatalf("level = %q, want good at the 80 boundary", r.QualityLevel)
	}

	// 15 points: the milder few-points penalty
	prices := make([]float64, 15)
	for i := range prices {
		prices[i] = 100 + float64(i)*0.5
	}
	r = NewChecker().Check(seriesOf(prices...), 7)
	if r.QualityScore != 90 {
		t.Fatalf("score = %v, want 90 (warnings: %v)", r.QualityScore, r.Warnings)
	}
}

func TestCheckStagnantSeries(t *testing.T) {
	prices := make([]float64, 30)
	for i := range prices {
		prices[i] = 250
	}
	r := NewChecker().Check(seriesOf(prices...), 7)

	if r.ConsecutiveSame != 29 {
		t.Fatalf("consecutive same = %d, want 29", r.ConsecutiveSame)
	}
	if r.QualityScore != 85 {
		t.Fatalf("score = %v, want 85 (warnings: %v)", r.QualityScore, r.Warnings)
	}
	if r.Trend != models.TrendStable {
		t.Fatalf("trend = %q, want stable", r.Trend)
	}
}

func TestCheckMissingValues(t *testing.T) {
	prices := make([]float64, 30)
	for i := range prices {
		prices[i] = 100 + float64(i)*0.5
	}
	obs := seriesOf(prices...)
	obs[3].SellPrice = 0
	obs[10].SellPrice = -1

	r := NewChecker().Check(obs, 7)
	if r.MissingValues != 2 {
		t.Fatalf("missing = %d, want 2", r.MissingValues)
	}
	// 2/30 ≈ 6.7% > 5% triggers the missing-data penalty
	if r.QualityScore >= 100 {
		t.Fatalf("score = %v, want penalized", r.QualityScore)
	}
}

func TestCheckOutlierMethods(t *testing.T) {
	prices := make([]float64, 40)
	for i := range prices {
		prices[i] = 100
	}
	prices[5] = 100.2
	prices[15] = 99.8
	prices[20] = 500

	iqr := NewChecker()
	r := iqr.Check(seriesOf(prices...), 7)
	if r.OutlierCount == 0 {
		t.Fatal("iqr method missed the spike")
	}

	z := NewChecker(WithMethod(MethodZScore), WithThreshold(3))
	r = z.Check(seriesOf(prices...), 7)
	if r.OutlierCount != 1 {
		t.Fatalf("zscore outliers = %d, want 1", r.OutlierCount)
	}
	if r.OutlierIndices[0] != 20 {
		t.Fatalf("zscore outlier index = %d, want 20", r.OutlierIndices[0])
	}
}

func TestCheckVolatilePenalty(t *testing.T) {
	prices := make([]float64, 30)
	for i := range prices {
		if i%2 == 0 {
			prices[i] = 100
		} else {
			prices[i] = 112
		}
	}
	r := NewChecker().Check(seriesOf(prices...), 7)
	if r.Volatility <= 0.05 {
		t.Fatalf("volatility = %v, want above 0.05", r.Volatility)
	}
	found := false
	for _, w := range r.Warnings {
		if len(w) >= 4 && w[:4] == "high" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a volatility warning, got %v", r.Warnings)
	}
}

func TestScoreNeverNegative(t *testing.T) {
	// tiny, stagnant, jumpy series stacks every penalty
	r := NewChecker().Check(seriesOf(1, 1, 1, 1, 1, 1, 1, 200, 1), 7)
	if r.QualityScore < 0 || r.QualityScore > 100 {
		t.Fatalf("score = %v, want within [0,100]", r.QualityScore)
	}
	if r.QualityLevel != models.QualityCritical {
		t.Fatalf("level = %q, want critical", r.QualityLevel)
	}
}
