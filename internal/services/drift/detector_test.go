package drift

import (
	"testing"

	"PriceCast/internal/domain/models"
	"PriceCast/internal/services/stats"
)

func constantSeries(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func rampSeries(start, step float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	return out
}

func TestDetectIdenticalDistributions(t *testing.T) {
	a := rampSeries(100, 0.5, 40)
	r := NewDetector(1).Detect(a, a, 7)

	if r.DriftScore != 0 {
		t.Fatalf("drift score = %v, want 0 (reason: %q)", r.DriftScore, r.DriftReason)
	}
	if r.DriftLevel != models.DriftNone {
		t.Fatalf("level = %q, want none", r.DriftLevel)
	}
	if r.HasDrift {
		t.Fatal("identical windows flagged as drift")
	}
}

func TestDetectSevereShift(t *testing.T) {
	ref := rampSeries(100, 0.1, 50)
	cur := rampSeries(200, 0.1, 50)
	r := NewDetector(1).Detect(ref, cur, 7)

	if r.DriftLevel != models.DriftSevere {
		t.Fatalf("level = %q, want severe (score %v)", r.DriftLevel, r.DriftScore)
	}
	if !r.HasDrift {
		t.Fatal("severe drift not flagged")
	}
	if r.MeanShiftPct < 0.5 {
		t.Fatalf("mean shift pct = %v, want large", r.MeanShiftPct)
	}
	if r.DriftReason == "" {
		t.Fatal("severe drift carries no reason")
	}
}

func TestDetectModerateShift(t *testing.T) {
	// 7% mean shift with identical shape: mean (+15) and KS (+30) fire
	ref := rampSeries(100, 0.02, 60)
	cur := rampSeries(107, 0.02, 60)
	r := NewDetector(1).Detect(ref, cur, 7)

	if r.DriftLevel != models.DriftModerate {
		t.Fatalf("level = %q, want moderate (score %v, reason %q)", r.DriftLevel, r.DriftScore, r.DriftReason)
	}
}

func TestDetectShortWindows(t *testing.T) {
	r := NewDetector(1).Detect([]float64{1, 2}, []float64{1, 2, 3, 4}, 7)
	if r.DriftScore != 0 || r.HasDrift {
		t.Fatalf("short window gave score %v", r.DriftScore)
	}
	if r.KSPValue != 1 {
		t.Fatalf("short window pvalue = %v, want 1", r.KSPValue)
	}
	if r.DriftLevel != models.DriftNone {
		t.Fatalf("short window level = %q, want none", r.DriftLevel)
	}
}

func TestDetectVarianceExplosion(t *testing.T) {
	ref := constantSeries(100, 30)
	cur := make([]float64, 30)
	for i := range cur {
		if i%2 == 0 {
			cur[i] = 90
		} else {
			cur[i] = 110
		}
	}
	r := NewDetector(1).Detect(ref, cur, 7)

	if r.StdShiftPct != 0 {
		// reference std is zero, the relative shift is undefined
		t.Fatalf("std shift pct = %v, want 0 for a flat reference", r.StdShiftPct)
	}
	if r.StdShift <= 0 {
		t.Fatalf("std shift = %v, want positive", r.StdShift)
	}
}

func TestDefaultSensitivityFlagsModerateDrift(t *testing.T) {
	// 8% mean shift with identical shape lands in the moderate band
	ref := rampSeries(100, 0.02, 60)
	cur := rampSeries(108, 0.02, 60)
	r := NewDetector(0).Detect(ref, cur, 7)

	if r.DriftLevel != models.DriftModerate {
		t.Fatalf("level = %q, want moderate (score %v, reason %q)", r.DriftLevel, r.DriftScore, r.DriftReason)
	}
	if !r.HasDrift {
		t.Fatalf("moderate drift at score %v not flagged under the default sensitivity", r.DriftScore)
	}
}

func TestKLDivergenceMeasuredOldToNew(t *testing.T) {
	// tight reference against a wide current window: the two KL
	// directions differ by orders of magnitude
	ref := rampSeries(100, 0.025, 40)
	cur := rampSeries(100, 1, 40)
	r := NewDetector(0).Detect(ref, cur, 7)

	oldToNew := stats.KLDivergence(ref, cur)
	newToOld := stats.KLDivergence(cur, ref)
	if oldToNew == newToOld {
		t.Fatal("windows do not discriminate the divergence direction")
	}
	if r.KLDivergence != oldToNew {
		t.Fatalf("kl divergence = %v, want old-to-new %v (reversed gives %v)", r.KLDivergence, oldToNew, newToOld)
	}
}

func TestSensitivityScalesFlagging(t *testing.T) {
	// build a mild-band report: mean shift 6% only (+15), shape preserved
	// via large overlapping spread so the KS test stays insignificant
	ref := rampSeries(100, 2, 40)
	cur := make([]float64, 40)
	for i := range cur {
		cur[i] = ref[i] * 1.06
	}

	strict := NewDetector(0.5).Detect(ref, cur, 7)
	loose := NewDetector(1).Detect(ref, cur, 7)

	if strict.DriftScore != loose.DriftScore {
		t.Fatalf("sensitivity changed the score: %v vs %v", strict.DriftScore, loose.DriftScore)
	}
	if loose.DriftLevel == models.DriftMild {
		if loose.HasDrift && loose.DriftScore < 40 {
			t.Fatal("mild drift flagged below the default threshold")
		}
		if !strict.HasDrift && strict.DriftScore >= 20 {
			t.Fatal("strict sensitivity did not flag mild drift")
		}
	}
}
