package forecast

import (
	"math"
	"time"

	"PriceCast/internal/domain/models"
	"PriceCast/internal/services/stats"
)

// featureCount is the width of the regressor vector, bias included.
const featureCount = 10

// minFeatureHistory is the shortest price window a feature row can be
// built from.
const minFeatureHistory = 4

// marketShape carries the slow-moving order book signals that recursive
// prediction holds constant while prices roll forward.
type marketShape struct {
	SpreadPct  float64 `json:"spread_pct"`
	OrderRatio float64 `json:"order_ratio"`
}

func shapeOf(o models.PriceObservation) marketShape {
	s := marketShape{}
	if o.SellPrice > 0 {
		s.SpreadPct = (o.SellPrice - o.BuyPrice) / o.SellPrice
	}
	total := o.BuyOrderCount + o.SellOrderCount
	if total > 0 {
		s.OrderRatio = float64(o.BuyOrderCount) / float64(total)
	}
	return s
}

// featuresAt builds one regressor vector from a price window ending at
// ts. The window is ordered ascending and must hold at least
// minFeatureHistory prices.
func featuresAt(window []float64, shape marketShape, ts time.Time) []float64 {
	x := make([]float64, featureCount)
	n := len(window)
	last := window[n-1]

	dow := float64(ts.Weekday())
	x[0] = 1
	x[1] = math.Sin(2 * math.Pi * dow / 7)
	x[2] = math.Cos(2 * math.Pi * dow / 7)
	x[3] = shape.SpreadPct
	x[4] = shape.OrderRatio
	x[5] = last
	x[6] = stats.Mean(window[n-3:])
	if window[n-4] != 0 {
		x[7] = (last - window[n-4]) / window[n-4]
	}
	x[8] = windowSlope(window, 7)
	x[9] = pricePosition(window, 30)
	return x
}

// buildTrainingRows converts an observation series into supervised rows:
// the features at step i predict the price at step i+1.
func buildTrainingRows(obs []models.PriceObservation) (xs [][]float64, ys []float64) {
	prices := models.SellPrices(obs)
	for i := minFeatureHistory - 1; i < len(obs)-1; i++ {
		x := featuresAt(prices[:i+1], shapeOf(obs[i]), obs[i].Timestamp)
		xs = append(xs, x)
		ys = append(ys, prices[i+1])
	}
	return xs, ys
}

// windowSlope is the OLS slope over the trailing `span` prices.
func windowSlope(window []float64, span int) float64 {
	if len(window) < 2 {
		return 0
	}
	if len(window) > span {
		window = window[len(window)-span:]
	}
	slope, _ := stats.LinearFit(window)
	return slope
}

// pricePosition places the last price inside the trailing `span` range,
// 0 at the low and 1 at the high. 0.5 for a flat window.
func pricePosition(window []float64, span int) float64 {
	if len(window) > span {
		window = window[len(window)-span:]
	}
	lo, hi := stats.MinMax(window)
	if hi == lo {
		return 0.5
	}
	return (window[len(window)-1] - lo) / (hi - lo)
}
