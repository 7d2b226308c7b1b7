package stats

import (
	"math"
	"sort"
)

// Mean returns the arithmetic mean, or 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// Std returns the population standard deviation, or 0 for fewer than two
// points.
func Std(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := Mean(xs)
	sum := 0.0
	for _, x := range xs {
		d := x - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(xs)))
}

// MinMax returns the smallest and largest value. Zero values for an empty
// slice.
func MinMax(xs []float64) (float64, float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	lo, hi := xs[0], xs[0]
	for _, x := range xs[1:] {
		if x < lo {
			lo = x
		}
		if x > hi {
			hi = x
		}
	}
	return lo, hi
}

// Percentile computes the p-th percentile (0..100) with linear
// interpolation between closest ranks.
func Percentile(xs []float64, p float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)

	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// LinearFit fits y = intercept + slope*x by ordinary least squares and
// returns the slope and the coefficient of determination R².
func LinearFit(ys []float64) (slope, r2 float64) {
	n := float64(len(ys))
	if n < 2 {
		return 0, 0
	}
	// x = 0..n-1
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range ys {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	den := n*sumXX - sumX*sumX
	if den == 0 {
		return 0, 0
	}
	slope = (n*sumXY - sumX*sumY) / den
	intercept := (sumY - slope*sumX) / n

	meanY := sumY / n
	var ssRes, ssTot float64
	for i, y := range ys {
		pred := intercept + slope*float64(i)
		ssRes += (y - pred) * (y - pred)
		ssTot += (y - meanY) * (y - meanY)
	}
	if ssTot == 0 {
		return slope, 0
	}
	return slope, 1 - ssRes/ssTot
}

// KSTest computes the two-sample Kolmogorov-Smirnov statistic and its
// asymptotic p-value.
func KSTest(a, b []float64) (statistic, pvalue float64) {
	if len(a) == 0 || len(b) == 0 {
		return 0, 1
	}
	sa := make([]float64, len(a))
	sb := make([]float64, len(b))
	copy(sa, a)
	copy(sb, b)
	sort.Float64s(sa)
	sort.Float64s(sb)

	var i, j int
	var d float64
	na, nb := float64(len(sa)), float64(len(sb))
	for i < len(sa) && j < len(sb) {
		d1, d2 := sa[i], sb[j]
		if d1 <= d2 {
			i++
		}
		if d2 <= d1 {
			j++
		}
		diff := math.Abs(float64(i)/na - float64(j)/nb)
		if diff > d {
			d = diff
		}
	}

	en := math.Sqrt(na * nb / (na + nb))
	return d, ksPValue((en + 0.12 + 0.11/en) * d)
}

// ksPValue evaluates the Kolmogorov distribution tail
// Q(λ) = 2 Σ (-1)^(j-1) exp(-2 j² λ²).
func ksPValue(lambda float64) float64 {
	if lambda <= 0 {
		return 1
	}
	sum := 0.0
	sign := 1.0
	for j := 1; j <= 100; j++ {
		term := sign * math.Exp(-2*float64(j)*float64(j)*lambda*lambda)
		sum += term
		if math.Abs(term) < 1e-12 {
			break
		}
		sign = -sign
	}
	p := 2 * sum
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// KLDivergence estimates KL(a‖b) from 10 equal-width histogram bins over
// the union range of both samples, each bin count smoothed by a small
// epsilon before normalizing.
func KLDivergence(a, b []float64) float64 {
	const bins = 10
	const eps = 1e-10
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	loA, hiA := MinMax(a)
	loB, hiB := MinMax(b)
	lo := math.Min(loA, loB)
	hi := math.Max(hiA, hiB)
	if hi == lo {
		return 0
	}
	width := (hi - lo) / bins

	histA := histogram(a, lo, width, bins)
	histB := histogram(b, lo, width, bins)

	var sumA, sumB float64
	for i := 0; i < bins; i++ {
		histA[i] += eps
		histB[i] += eps
		sumA += histA[i]
		sumB += histB[i]
	}

	kl := 0.0
	for i := 0; i < bins; i++ {
		p := histA[i] / sumA
		q := histB[i] / sumB
		kl += p * math.Log(p/q)
	}
	return kl
}

func histogram(xs []float64, lo, width float64, bins int) []float64 {
	h := make([]float64, bins)
	for _, x := range xs {
		idx := int((x - lo) / width)
		if idx >= bins {
			idx = bins - 1
		}
		if idx < 0 {
			idx = 0
		}
		h[idx]++
	}
	return h
}

// Wasserstein computes the first Wasserstein distance between two
// empirical distributions as the integral of |F_a - F_b| over the merged
// support.
func Wasserstein(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	sa := make([]float64, len(a))
	sb := make([]float64, len(b))
	copy(sa, a)
	copy(sb, b)
	sort.Float64s(sa)
	sort.Float64s(sb)

	merged := make([]float64, 0, len(sa)+len(sb))
	merged = append(merged, sa...)
	merged = append(merged, sb...)
	sort.Float64s(merged)

	na, nb := float64(len(sa)), float64(len(sb))
	var dist float64
	var i, j int
	for k := 0; k < len(merged)-1; k++ {
		for i < len(sa) && sa[i] <= merged[k] {
			i++
		}
		for j < len(sb) && sb[j] <= merged[k] {
			j++
		}
		cdfA := float64(i) / na
		cdfB := float64(j) / nb
		dist += math.Abs(cdfA-cdfB) * (merged[k+1] - merged[k])
	}
	return dist
}

// Autocorrelation computes the Pearson correlation between the series and
// itself shifted by lag. Returns 0 when fewer than lag+2 points exist.
func Autocorrelation(xs []float64, lag int) float64 {
	if lag <= 0 || len(xs) < lag+2 {
		return 0
	}
	a := xs[:len(xs)-lag]
	b := xs[lag:]
	ma, mb := Mean(a), Mean(b)
	var cov, varA, varB float64
	for i := range a {
		da := a[i] - ma
		db := b[i] - mb
		cov += da * db
		varA += da * da
		varB += db * db
	}
	if varA == 0 || varB == 0 {
		return 0
	}
	c := cov / math.Sqrt(varA*varB)
	if math.IsNaN(c) {
		return 0
	}
	return c
}
