package drift

import (
	"fmt"
	"math"
	"strings"
	"time"

	"PriceCast/internal/domain/models"
	"PriceCast/internal/services/stats"
)

// Detector compares a reference window of a price series against the
// recent window and scores distributional change. Detect never fails:
// degenerate windows yield a zero-score report.
type Detector struct {
	sensitivity float64
}

// NewDetector creates a Detector. Sensitivity scales the drift-flag
// thresholds for mild and moderate levels; 0.5 is the default, flagging
// mild drift from score 20 and moderate from 30. Higher values demand
// stronger evidence before flagging.
func NewDetector(sensitivity float64) *Detector {
	if sensitivity <= 0 {
		sensitivity = 0.5
	}
	return &Detector{sensitivity: sensitivity}
}

// Detect scores drift of the current window relative to the reference
// window. Windows with fewer than 3 points produce an empty report with
// a p-value of 1.
func (d *Detector) Detect(reference, current []float64, itemID int64) *models.DriftReport {
	report := &models.DriftReport{
		ItemID:     itemID,
		Timestamp:  time.Now(),
		KSPValue:   1,
		DriftLevel: models.DriftNone,
	}
	if len(reference) < 3 || len(current) < 3 {
		return report
	}

	refMean := stats.Mean(reference)
	curMean := stats.Mean(current)
	report.MeanShift = curMean - refMean
	if refMean != 0 {
		report.MeanShiftPct = math.Abs(report.MeanShift) / math.Abs(refMean)
	}

	refStd := stats.Std(reference)
	curStd := stats.Std(current)
	report.StdShift = curStd - refStd
	if refStd != 0 {
		report.StdShiftPct = math.Abs(report.StdShift) / refStd
	}

	report.KSStatistic, report.KSPValue = stats.KSTest(reference, current)
	report.KLDivergence = stats.KLDivergence(reference, current)
	report.WassersteinDistance = stats.Wasserstein(reference, current)

	refLo, refHi := stats.MinMax(reference)
	curLo, curHi := stats.MinMax(current)
	refRange := refHi - refLo
	report.RangeShift = (curHi - curLo) - refRange
	if refRange != 0 {
		report.RangeShiftPct = math.Abs(report.RangeShift) / refRange
	}

	d.score(report)
	return report
}

// score combines the shift signals into the composite drift score, the
// level and the drift flag.
func (d *Detector) score(r *models.DriftReport) {
	score := 0.0
	var reasons []string

	if r.MeanShiftPct > 0.10 {
		score += 30
		reasons = append(reasons, fmt.Sprintf("mean shift %.1f%%", r.MeanShiftPct*100))
	} else if r.MeanShiftPct > 0.05 {
		score += 15
		reasons = append(reasons, fmt.Sprintf("mean shift %.1f%%", r.MeanShiftPct*100))
	}

	if r.StdShiftPct > 0.20 {
		score += 20
		reasons = append(reasons, fmt.Sprintf("std shift %.1f%%", r.StdShiftPct*100))
	} else if r.StdShiftPct > 0.10 {
		score += 10
		reasons = append(reasons, fmt.Sprintf("std shift %.1f%%", r.StdShiftPct*100))
	}

	if r.KSPValue < 0.01 {
		score += 30
		reasons = append(reasons, fmt.Sprintf("ks pvalue %.4f", r.KSPValue))
	} else if r.KSPValue < 0.05 {
		score += 15
		reasons = append(reasons, fmt.Sprintf("ks pvalue %.4f", r.KSPValue))
	}

	if r.KLDivergence > 0.5 {
		score += 10
		reasons = append(reasons, fmt.Sprintf("kl divergence %.3f", r.KLDivergence))
	} else if r.KLDivergence > 0.2 {
		score += 5
		reasons = append(reasons, fmt.Sprintf("kl divergence %.3f", r.KLDivergence))
	}

	if r.RangeShiftPct > 0.30 {
		score += 10
		reasons = append(reasons, fmt.Sprintf("range shift %.1f%%", r.RangeShiftPct*100))
	}

	r.DriftScore = score
	r.DriftReason = strings.Join(reasons, "; ")

	switch {
	case score < 20:
		r.DriftLevel = models.DriftNone
	case score < 40:
		r.DriftLevel = models.DriftMild
	case score < 60:
		r.DriftLevel = models.DriftModerate
	default:
		r.DriftLevel = models.DriftSevere
	}

	switch r.DriftLevel {
	case models.DriftMild:
		r.HasDrift = score >= d.sensitivity*40
	case models.DriftModerate:
		r.HasDrift = score >= d.sensitivity*60
	case models.DriftSevere:
		r.HasDrift = true
	default:
		r.HasDrift = false
	}
}
