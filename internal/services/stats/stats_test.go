package stats

import (
	"math"
	"testing"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestMeanAndStd(t *testing.T) {
	xs := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	if got := Mean(xs); !almostEqual(got, 5, 1e-9) {
		t.Fatalf("mean = %v, want 5", got)
	}
	if got := Std(xs); !almostEqual(got, 2, 1e-9) {
		t.Fatalf("std = %v, want 2", got)
	}
	if got := Mean(nil); got != 0 {
		t.Fatalf("mean of empty = %v, want 0", got)
	}
	if got := Std([]float64{3}); got != 0 {
		t.Fatalf("std of single = %v, want 0", got)
	}
}

func TestPercentile(t *testing.T) {
	xs := []float64{1, 2, 3, 4, 5}
	cases := []struct {
		p    float64
		want float64
	}{
		{0, 1},
		{25, 2},
		{50, 3},
		{75, 4},
		{100, 5},
		{10, 1.4},
	}
	for _, c := range cases {
		if got := Percentile(xs, c.p); !almostEqual(got, c.want, 1e-9) {
			t.Errorf("percentile(%v) = %v, want %v", c.p, got, c.want)
		}
	}
}

func TestLinearFit(t *testing.T) {
	// perfect line y = 2x + 1
	ys := []float64{1, 3, 5, 7, 9}
	slope, r2 := LinearFit(ys)
	if !almostEqual(slope, 2, 1e-9) {
		t.Fatalf("slope = %v, want 2", slope)
	}
	if !almostEqual(r2, 1, 1e-9) {
		t.Fatalf("r2 = %v, want 1", r2)
	}

	// constant series has zero slope and undefined fit quality
	slope, r2 = LinearFit([]float64{5, 5, 5, 5})
	if slope != 0 || r2 != 0 {
		t.Fatalf("constant fit = (%v, %v), want (0, 0)", slope, r2)
	}
}

func TestKSTestIdenticalSamples(t *testing.T) {
	a := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	d, p := KSTest(a, a)
	if d != 0 {
		t.Fatalf("statistic for identical samples = %v, want 0", d)
	}
	if p != 1 {
		t.Fatalf("pvalue for identical samples = %v, want 1", p)
	}
}

func TestKSTestDisjointSamples(t *testing.T) {
	a := make([]float64, 50)
	b := make([]float64, 50)
	for i := range a {
		a[i] = float64(i)
		b[i] = float64(i) + 1000
	}
	d, p := KSTest(a, b)
	if !almostEqual(d, 1, 1e-9) {
		t.Fatalf("statistic for disjoint samples = %v, want 1", d)
	}
	if p > 0.001 {
		t.Fatalf("pvalue for disjoint samples = %v, want near 0", p)
	}
}

func TestKSTestEmpty(t *testing.T) {
	d, p := KSTest(nil, []float64{1, 2})
	if d != 0 || p != 1 {
		t.Fatalf("empty sample = (%v, %v), want (0, 1)", d, p)
	}
}

func TestKLDivergence(t *testing.T) {
	a := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	if got := KLDivergence(a, a); !almostEqual(got, 0, 1e-6) {
		t.Fatalf("KL of identical samples = %v, want ~0", got)
	}

	b := make([]float64, len(a))
	for i := range a {
		b[i] = a[i] + 100
	}
	if got := KLDivergence(a, b); got <= 1 {
		t.Fatalf("KL of shifted samples = %v, want large", got)
	}
}

func TestWasserstein(t *testing.T) {
	a := []float64{1, 2, 3, 4}
	if got := Wasserstein(a, a); !almostEqual(got, 0, 1e-9) {
		t.Fatalf("distance to self = %v, want 0", got)
	}

	b := []float64{3, 4, 5, 6}
	if got := Wasserstein(a, b); !almostEqual(got, 2, 1e-9) {
		t.Fatalf("distance of shifted sample = %v, want 2", got)
	}
}

func TestAutocorrelation(t *testing.T) {
	// period-7 sawtooth has strong lag-7 autocorrelation
	xs := make([]float64, 42)
	for i := range xs {
		xs[i] = float64(i % 7)
	}
	if got := Autocorrelation(xs, 7); !almostEqual(got, 1, 1e-9) {
		t.Fatalf("lag-7 autocorrelation of periodic series = %v, want 1", got)
	}

	if got := Autocorrelation([]float64{1, 2, 3}, 7); got != 0 {
		t.Fatalf("short series = %v, want 0", got)
	}
	if got := Autocorrelation([]float64{5, 5, 5, 5, 5, 5, 5, 5, 5, 5}, 2); got != 0 {
		t.Fatalf("constant series = %v, want 0", got)
	}
}
