package forecast

// weightEpsilon keeps the inverse-error weight finite for a perfect
// submodel.
const weightEpsilon = 0.001

// fallbackPrior is used when no submodel has a usable validation error.
var fallbackPrior = map[string]float64{
	ModelLinear:   0.2,
	ModelSmoother: 0.3,
	ModelGradient: 0.5,
}

// AllocateWeights turns validation MAPEs into normalized ensemble
// weights: each submodel gets 1/(mape+epsilon), then the vector is
// scaled to sum to 1. A submodel missing from mapes is treated as a
// poor one with MAPE 1.0. With no usable errors at all the fixed prior
// is returned, renormalized over the given names.
func AllocateWeights(names []string, mapes map[string]float64) map[string]float64 {
	if len(names) == 0 {
		return map[string]float64{}
	}
	if len(mapes) == 0 {
		return priorWeights(names)
	}

	weights := make(map[string]float64, len(names))
	total := 0.0
	for _, name := range names {
		mape, ok := mapes[name]
		if !ok || mape < 0 {
			mape = 1.0
		}
		w := 1 / (mape + weightEpsilon)
		weights[name] = w
		total += w
	}
	if total <= 0 {
		return priorWeights(names)
	}
	for name := range weights {
		weights[name] /= total
	}
	return weights
}

// priorWeights projects the fallback prior onto the given names and
// normalizes. Names outside the prior share the average prior mass.
func priorWeights(names []string) map[string]float64 {
	avg := 0.0
	for _, w := range fallbackPrior {
		avg += w
	}
	avg /= float64(len(fallbackPrior))

	weights := make(map[string]float64, len(names))
	total := 0.0
	for _, name := range names {
		w, ok := fallbackPrior[name]
		if !ok {
			w = avg
		}
		weights[name] = w
		total += w
	}
	for name := range weights {
		weights[name] /= total
	}
	return weights
}

// BlendForecasts combines per-submodel forecasts into the ensemble path
// using the weights. Submodels without a forecast are skipped and the
// remaining weights renormalized per step.
func BlendForecasts(forecasts map[string][]float64, weights map[string]float64, horizon int) []float64 {
	out := make([]float64, horizon)
	for k := 0; k < horizon; k++ {
		sum, wsum := 0.0, 0.0
		for name, path := range forecasts {
			if k >= len(path) {
				continue
			}
			w := weights[name]
			sum += w * path[k]
			wsum += w
		}
		if wsum > 0 {
			out[k] = sum / wsum
		}
	}
	return out
}
