package quality

import (
	"fmt"
	"math"
	"time"

	"PriceCast/internal/domain/models"
	"PriceCast/internal/services/stats"
)

// Outlier detection methods.
const (
	MethodIQR    = "iqr"
	MethodZScore = "zscore"
)

// Checker scores a price series for completeness, anomalies and
// staleness. Check never fails: degenerate series map to worst-case
// scores instead of errors.
type Checker struct {
	method    string
	threshold float64
}

// Option configures a Checker.
type Option func(*Checker)

// WithMethod selects the outlier detection method.
func WithMethod(method string) Option {
	return func(c *Checker) {
		if method == MethodIQR || method == MethodZScore {
			c.method = method
		}
	}
}

// WithThreshold sets the outlier threshold: the IQR multiplier or the
// z-score cutoff depending on the method.
func WithThreshold(t float64) Option {
	return func(c *Checker) {
		if t > 0 {
			c.threshold = t
		}
	}
}

// NewChecker creates a Checker. Defaults to the IQR method with a 1.5
// multiplier; the conventional z-score cutoff is 3.
func NewChecker(opts ...Option) *Checker {
	c := &Checker{method: MethodIQR, threshold: 1.5}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check builds a QualityReport for an ordered observation series.
func (c *Checker) Check(obs []models.PriceObservation, itemID int64) *models.QualityReport {
	report := &models.QualityReport{
		ItemID:      itemID,
		Timestamp:   time.Now(),
		TotalPoints: len(obs),
		Trend:       models.TrendStable,
	}
	if len(obs) == 0 {
		report.QualityScore = 0
		report.QualityLevel = models.QualityCritical
		report.Warnings = []string{"empty series"}
		return report
	}

	prices := models.SellPrices(obs)

	// non-positive prices count as missing data points
	missing := 0
	for _, o := range obs {
		if o.SellPrice <= 0 || o.BuyPrice <= 0 {
			missing++
		}
	}
	report.MissingValues = missing
	report.MissingRatio = float64(missing) / float64(len(obs))

	report.OutlierIndices, report.OutlierRatio = c.detectOutliers(prices)
	report.OutlierCount = len(report.OutlierIndices)

	report.PriceMean = stats.Mean(prices)
	report.PriceStd = stats.Std(prices)
	report.PriceMin, report.PriceMax = stats.MinMax(prices)
	report.PriceRange = report.PriceMax - report.PriceMin
	if report.PriceMean > 0 {
		report.PriceCV = report.PriceStd / report.PriceMean
	}

	report.Volatility = returnVolatility(prices)
	report.Trend, report.TrendStrength = trendOf(prices)
	report.SuspiciousJumpDays, report.ConsecutiveSame = jumpAndRepeatCounts(prices)

	c.score(report)
	return report
}

// detectOutliers returns the indices of outlying prices and the outlier
// ratio.
func (c *Checker) detectOutliers(prices []float64) ([]int, float64) {
	var idx []int
	switch c.method {
	case MethodZScore:
		mean := stats.Mean(prices)
		std := stats.Std(prices)
		if std == 0 {
			return nil, 0
		}
		for i, p := range prices {
			if math.Abs((p-mean)/std) > c.threshold {
				idx = append(idx, i)
			}
		}
	default:
		q1 := stats.Percentile(prices, 25)
		q3 := stats.Percentile(prices, 75)
		iqr := q3 - q1
		lower := q1 - c.threshold*iqr
		upper := q3 + c.threshold*iqr
		for i, p := range prices {
			if p < lower || p > upper {
				idx = append(idx, i)
			}
		}
	}
	return idx, float64(len(idx)) / float64(len(prices))
}

// returnVolatility is the standard deviation of period-over-period
// returns.
func returnVolatility(prices []float64) float64 {
	if len(prices) < 2 {
		return 0
	}
	returns := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] != 0 {
			returns = append(returns, (prices[i]-prices[i-1])/prices[i-1])
		}
	}
	return stats.Std(returns)
}

// trendOf classifies the OLS slope of price versus index, with a dead
// zone of 1e-4 around zero, and reports R² as trend strength.
func trendOf(prices []float64) (string, float64) {
	slope, r2 := stats.LinearFit(prices)
	switch {
	case slope > 1e-4:
		return models.TrendIncreasing, math.Abs(r2)
	case slope < -1e-4:
		return models.TrendDecreasing, math.Abs(r2)
	default:
		return models.TrendStable, math.Abs(r2)
	}
}

// jumpAndRepeatCounts counts consecutive steps with a price change above
// 10% and transitions where the price repeats exactly.
func jumpAndRepeatCounts(prices []float64) (jumps, same int) {
	for i := 1; i < len(prices); i++ {
		if prices[i-1] != 0 && math.Abs(prices[i]-prices[i-1])/prices[i-1] > 0.10 {
			jumps++
		}
		if prices[i] == prices[i-1] {
			same++
		}
	}
	return jumps, same
}

// score applies the fixed penalties independently and cumulatively,
// clamps to [0,100] and assigns the level.
func (c *Checker) score(r *models.QualityReport) {
	score := 100.0
	var warnings []string

	if r.MissingRatio > 0.05 {
		score -= 20
		warnings = append(warnings, fmt.Sprintf("too many missing values: %.1f%%", r.MissingRatio*100))
	}

	if r.OutlierRatio > 0.10 {
		score -= 15
		warnings = append(warnings, fmt.Sprintf("too many outliers: %.1f%%", r.OutlierRatio*100))
	} else if r.OutlierRatio > 0.05 {
		score -= 5
		warnings = append(warnings, fmt.Sprintf("some outliers present: %.1f%%", r.OutlierRatio*100))
	}

	if r.Volatility > 0.05 {
		score -= 10
		warnings = append(warnings, fmt.Sprintf("high volatility: %.2f%%", r.Volatility*100))
	}

	if r.ConsecutiveSame > 5 {
		score -= 15
		warnings = append(warnings, fmt.Sprintf("repeated identical prices: %d", r.ConsecutiveSame))
	}

	if float64(r.SuspiciousJumpDays) > float64(r.TotalPoints)*0.1 {
		score -= 10
		warnings = append(warnings, fmt.Sprintf("suspicious price jumps: %d", r.SuspiciousJumpDays))
	}

	if r.TotalPoints < 10 {
		score -= 20
		warnings = append(warnings, fmt.Sprintf("insufficient data points: %d", r.TotalPoints))
	} else if r.TotalPoints < 20 {
		score -= 10
		warnings = append(warnings, fmt.Sprintf("few data points: %d", r.TotalPoints))
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	r.QualityScore = score
	r.Warnings = warnings

	switch {
	case score >= 80:
		r.QualityLevel = models.QualityGood
	case score >= 60:
		r.QualityLevel = models.QualityWarning
	default:
		r.QualityLevel = models.QualityCritical
	}
}
