package forecast

import (
	"context"
	"math"
	"testing"
	"time"

	"PriceCast/internal/domain/models"
	"PriceCast/internal/services/stats"
)

func obsSeries(prices ...float64) []models.PriceObservation {
	base := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	out := make([]models.PriceObservation, len(prices))
	for i, p := range prices {
		out[i] = models.PriceObservation{
			Timestamp:      base.Add(time.Duration(i) * 24 * time.Hour),
			BuyPrice:       p * 0.97,
			SellPrice:      p,
			BuyOrderCount:  120,
			SellOrderCount: 150,
		}
	}
	return out
}

func rampObs(start, step float64, n int) []models.PriceObservation {
	prices := make([]float64, n)
	for i := range prices {
		prices[i] = start + step*float64(i)
	}
	return obsSeries(prices...)
}

func TestLinearTrendFollowsRamp(t *testing.T) {
	m := NewLinearTrend()
	if err := m.Fit(context.Background(), rampObs(100, 1, 30)); err != nil {
		t.Fatalf("fit: %v", err)
	}
	out, err := m.Predict(3)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	// next values continue the unit slope: 130, 131, 132
	for k, want := range []float64{130, 131, 132} {
		if math.Abs(out[k]-want) > 0.5 {
			t.Fatalf("step %d = %v, want ~%v", k, out[k], want)
		}
	}
}

func TestLinearTrendWeighsRecentPoints(t *testing.T) {
	// flat for 20 points, then a steep recent rise: the weighted slope
	// must exceed the unweighted slope of the whole series
	prices := make([]float64, 30)
	for i := 0; i < 20; i++ {
		prices[i] = 100
	}
	for i := 20; i < 30; i++ {
		prices[i] = 100 + float64(i-19)*3
	}
	m := NewLinearTrend()
	if err := m.Fit(context.Background(), obsSeries(prices...)); err != nil {
		t.Fatalf("fit: %v", err)
	}
	out, err := m.Predict(1)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}

	// unweighted baseline extrapolated one step
	slope, _ := stats.LinearFit(prices)
	mean := stats.Mean(prices)
	baseline := mean + slope*(30-14.5)
	if out[0] <= baseline {
		t.Fatalf("weighted prediction %v does not beat the unweighted line %v", out[0], baseline)
	}
}

func TestLinearTrendFloorsAtZero(t *testing.T) {
	m := NewLinearTrend()
	if err := m.Fit(context.Background(), rampObs(50, -5, 12)); err != nil {
		t.Fatalf("fit: %v", err)
	}
	out, err := m.Predict(10)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	for k, v := range out {
		if v < 0 {
			t.Fatalf("step %d = %v, want non-negative", k, v)
		}
	}
}

func TestLinearTrendErrors(t *testing.T) {
	m := NewLinearTrend()
	if _, err := m.Predict(3); err != ErrNotFitted {
		t.Fatalf("predict before fit: %v, want ErrNotFitted", err)
	}
	if err := m.Fit(context.Background(), obsSeries(100)); err != ErrSeriesTooShort {
		t.Fatalf("fit on one point: %v, want ErrSeriesTooShort", err)
	}
}

func TestSmootherEnablesWeeklySeasonality(t *testing.T) {
	// strong period-7 pattern on a flat base
	prices := make([]float64, 42)
	for i := range prices {
		prices[i] = 100 + 10*math.Sin(2*math.Pi*float64(i%7)/7)
	}
	m := NewSmoother()
	if err := m.Fit(context.Background(), obsSeries(prices...)); err != nil {
		t.Fatalf("fit: %v", err)
	}
	if !m.state.Seasonal7 {
		t.Fatal("weekly seasonality not enabled on a periodic series")
	}

	flat := NewSmoother()
	if err := flat.Fit(context.Background(), rampObs(100, 0.5, 42)); err != nil {
		t.Fatalf("fit: %v", err)
	}
	if flat.state.Seasonal7 {
		t.Fatal("weekly seasonality enabled on a plain ramp")
	}
}

func TestSmootherWarmStartRoundTrip(t *testing.T) {
	m := NewSmoother()
	if err := m.Fit(context.Background(), rampObs(100, 1, 30)); err != nil {
		t.Fatalf("fit: %v", err)
	}
	if !m.SupportsWarmStart() {
		t.Fatal("smoother must warm start")
	}

	snap, err := m.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	restored := NewSmoother()
	if err := restored.Restore(snap); err != nil {
		t.Fatalf("restore: %v", err)
	}

	a, err := m.Predict(5)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	b, err := restored.Predict(5)
	if err != nil {
		t.Fatalf("predict restored: %v", err)
	}
	for k := range a {
		if a[k] != b[k] {
			t.Fatalf("restored forecast diverged at %d: %v vs %v", k, a[k], b[k])
		}
	}

	if err := restored.Update(context.Background(), rampObs(130, 1, 5)); err != nil {
		t.Fatalf("update: %v", err)
	}
	c, err := restored.Predict(1)
	if err != nil {
		t.Fatalf("predict after update: %v", err)
	}
	if c[0] <= a[0] {
		t.Fatalf("update did not advance the forecast: %v vs %v", c[0], a[0])
	}
}

func TestGradientModelLearnsTrend(t *testing.T) {
	m := NewGradientModel()
	series := rampObs(100, 1, 40)
	if err := m.Fit(context.Background(), series); err != nil {
		t.Fatalf("fit: %v", err)
	}
	out, err := m.Predict(7)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	last := series[len(series)-1].SellPrice
	// a rising ramp should forecast above the last observed price and
	// stay within a sane band
	if out[6] < last*0.8 || out[6] > last*1.6 {
		t.Fatalf("7-step forecast %v strays from last price %v", out[6], last)
	}
	for k, v := range out {
		if v < 0 {
			t.Fatalf("step %d = %v, want non-negative", k, v)
		}
	}
}

func TestGradientModelSnapshotRestore(t *testing.T) {
	m := NewGradientModel()
	if err := m.Fit(context.Background(), rampObs(100, 0.5, 40)); err != nil {
		t.Fatalf("fit: %v", err)
	}
	snap, err := m.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	restored := NewGradientModel()
	if err := restored.Restore(snap); err != nil {
		t.Fatalf("restore: %v", err)
	}
	a, _ := m.Predict(3)
	b, err := restored.Predict(3)
	if err != nil {
		t.Fatalf("predict restored: %v", err)
	}
	for k := range a {
		if a[k] != b[k] {
			t.Fatalf("restored forecast diverged at %d: %v vs %v", k, a[k], b[k])
		}
	}
}

func TestGradientModelWarmStart(t *testing.T) {
	m := NewGradientModel()
	if !m.SupportsWarmStart() {
		t.Fatal("gradient model must warm start")
	}
	if err := m.Update(context.Background(), rampObs(100, 1, 20)); err != ErrNotFitted {
		t.Fatalf("update before fit: %v, want ErrNotFitted", err)
	}
	if err := m.Fit(context.Background(), rampObs(100, 1, 40)); err != nil {
		t.Fatalf("fit: %v", err)
	}
	if err := m.Update(context.Background(), rampObs(140, 1, 10)); err != nil {
		t.Fatalf("update: %v", err)
	}
	out, err := m.Predict(1)
	if err != nil {
		t.Fatalf("predict after update: %v", err)
	}
	if out[0] <= 0 {
		t.Fatalf("forecast after warm start = %v", out[0])
	}
}

func TestAllocateWeights(t *testing.T) {
	names := []string{ModelLinear, ModelSmoother, ModelGradient}
	w := AllocateWeights(names, map[string]float64{
		ModelLinear:   0.10,
		ModelSmoother: 0.05,
		ModelGradient: 0.02,
	})

	sum := 0.0
	for _, v := range w {
		sum += v
	}
	if math.Abs(sum-1) > 1e-6 {
		t.Fatalf("weights sum to %v, want 1", sum)
	}
	if !(w[ModelGradient] > w[ModelSmoother] && w[ModelSmoother] > w[ModelLinear]) {
		t.Fatalf("lower error must earn higher weight: %v", w)
	}
}

func TestAllocateWeightsMissingMape(t *testing.T) {
	names := []string{ModelLinear, ModelSmoother}
	w := AllocateWeights(names, map[string]float64{ModelLinear: 0.05})
	// smoother falls back to MAPE 1.0 and gets almost no weight
	if w[ModelSmoother] >= w[ModelLinear] {
		t.Fatalf("missing mape should penalize: %v", w)
	}
	sum := w[ModelLinear] + w[ModelSmoother]
	if math.Abs(sum-1) > 1e-6 {
		t.Fatalf("weights sum to %v, want 1", sum)
	}
}

func TestAllocateWeightsFallbackPrior(t *testing.T) {
	names := []string{ModelLinear, ModelSmoother, ModelGradient}
	w := AllocateWeights(names, nil)
	if math.Abs(w[ModelLinear]-0.2) > 1e-9 || math.Abs(w[ModelSmoother]-0.3) > 1e-9 || math.Abs(w[ModelGradient]-0.5) > 1e-9 {
		t.Fatalf("fallback prior = %v", w)
	}
}

func TestBlendForecasts(t *testing.T) {
	forecasts := map[string][]float64{
		"a": {100, 100, 100},
		"b": {200, 200},
	}
	weights := map[string]float64{"a": 0.5, "b": 0.5}

	out := BlendForecasts(forecasts, weights, 3)
	if out[0] != 150 || out[1] != 150 {
		t.Fatalf("blend = %v, want 150 for the first two steps", out)
	}
	// b has no third point, a takes the whole step
	if out[2] != 100 {
		t.Fatalf("step 3 = %v, want 100", out[2])
	}
}

func TestFactorySet(t *testing.T) {
	f := NewFactory("", 0)
	set := f.NewSet()
	if len(set) != 3 {
		t.Fatalf("default set size = %d, want 3", len(set))
	}
	for _, name := range f.Names() {
		m, err := f.NewByName(name)
		if err != nil {
			t.Fatalf("NewByName(%s): %v", name, err)
		}
		if m.Name() != name {
			t.Fatalf("NewByName(%s) built %s", name, m.Name())
		}
	}
	if _, err := f.NewByName("nope"); err == nil {
		t.Fatal("unknown name must error")
	}

	withRemote := NewFactory("http://forecaster:9000", 5*time.Second)
	if len(withRemote.NewSet()) != 4 {
		t.Fatal("remote url must add the remote submodel")
	}
}
