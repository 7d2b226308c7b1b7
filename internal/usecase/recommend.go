package usecase

import (
	"fmt"
	"math"

	"PriceCast/internal/domain/models"
	"PriceCast/internal/services/stats"
)

// tradeFee is the market's cut on a completed sale.
const tradeFee = 0.01

// Per-mode thresholds. Bid mode places patient buy orders and accepts
// smaller edges; scan mode buys instantly and needs a bigger move.
type modeThresholds struct {
	profit    float64
	chaseHigh float64
}

func thresholdsFor(mode string) modeThresholds {
	if mode == models.ModeScan {
		return modeThresholds{profit: 0.08, chaseHigh: 0.08}
	}
	return modeThresholds{profit: 0.03, chaseHigh: 0.05}
}

// BuildRecommendation derives trading advice from the ensemble path.
// recentPrices are the trailing observed prices used for the momentum
// signal.
func BuildRecommendation(ensemble []float64, currentPrice float64, recentPrices []float64, mode string) models.Recommendation {
	rec := models.Recommendation{Action: models.ActionHold}
	if len(ensemble) == 0 || currentPrice <= 0 {
		rec.Reason = "no forecast available"
		return rec
	}

	rec.NextPrice = ensemble[0]
	rec.AvgFuturePrice = stats.Mean(ensemble)
	rec.PriceChangePct = (rec.NextPrice - currentPrice) / currentPrice
	rec.ExpectedProfit = (rec.AvgFuturePrice*(1-tradeFee) - currentPrice) / currentPrice
	if len(recentPrices) >= 2 {
		first := recentPrices[0]
		last := recentPrices[len(recentPrices)-1]
		if first > 0 {
			rec.RecentTrendPct = (last - first) / first
		}
	}

	th := thresholdsFor(mode)
	switch {
	case rec.ExpectedProfit > th.profit:
		rec.Action = models.ActionBuy
		rec.Reason = fmt.Sprintf("expected profit %.1f%% after fees clears the %.0f%% threshold",
			rec.ExpectedProfit*100, th.profit*100)
	case rec.PriceChangePct > th.chaseHigh && rec.RecentTrendPct > 0:
		rec.Action = models.ActionBuy
		rec.Reason = fmt.Sprintf("price expected to rise %.1f%% with positive momentum",
			rec.PriceChangePct*100)
	default:
		rec.Reason = fmt.Sprintf("expected profit %.1f%% below the %.0f%% threshold",
			rec.ExpectedProfit*100, th.profit*100)
	}
	return rec
}

// Confidence factor weights.
const (
	wAgreement  = 0.40
	wQuality    = 0.25
	wVolatility = 0.20
	wHorizon    = 0.10
	wAccuracy   = 0.05
)

// ComputeConfidence scores how much to trust a forecast, in [0.30, 0.98].
// Submodel agreement dominates: tightly clustered next-step predictions
// signal a stable regime.
func ComputeConfidence(nextSteps []float64, qualityScore, volatility float64, horizonDays int, ensembleMAPE float64) float64 {
	agreement := 1.0
	if len(nextSteps) >= 2 {
		m := stats.Mean(nextSteps)
		if m > 0 {
			cv := stats.Std(nextSteps) / m
			agreement = 1 - math.Min(cv/0.15, 1)
		}
	}

	quality := math.Min(math.Max(qualityScore/100, 0), 1)
	vol := 1 - math.Min(volatility/0.10, 1)
	horizon := 1 - math.Min(float64(horizonDays-1)/30, 1)
	accuracy := 1 - math.Min(ensembleMAPE/0.50, 1)

	score := wAgreement*agreement + wQuality*quality + wVolatility*vol + wHorizon*horizon + wAccuracy*accuracy
	if score < 0.30 {
		return 0.30
	}
	if score > 0.98 {
		return 0.98
	}
	return score
}
