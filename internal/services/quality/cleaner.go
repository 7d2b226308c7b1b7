package quality

import (
	"PriceCast/internal/domain/models"
	"PriceCast/internal/services/stats"
)

// MinCleanPoints is the minimum number of observations a series must
// retain after cleaning to remain usable for training.
const MinCleanPoints = 10

// CleanStats summarizes what the cleaner changed.
type CleanStats struct {
	Input           int `json:"input"`
	OutliersRemoved int `json:"outliers_removed"`
	Filled          int `json:"filled"`
	DuplicatesCut   int `json:"duplicates_cut"`
	Output          int `json:"output"`
}

// Cleaner prepares a raw observation series for training: removes IQR
// outliers, fills missing prices and trims long runs of identical
// prices.
type Cleaner struct {
	iqrMultiplier  float64
	maxSameStretch int
}

// NewCleaner creates a Cleaner with the default 1.5 IQR multiplier and
// a cap of 10 consecutive identical prices.
func NewCleaner() *Cleaner {
	return &Cleaner{iqrMultiplier: 1.5, maxSameStretch: 10}
}

// Clean returns the cleaned copy of the series and the change summary.
// The input slice is never mutated. Callers must check that the result
// still has at least MinCleanPoints observations.
func (c *Cleaner) Clean(obs []models.PriceObservation) ([]models.PriceObservation, CleanStats) {
	st := CleanStats{Input: len(obs)}
	if len(obs) == 0 {
		return nil, st
	}

	out := make([]models.PriceObservation, len(obs))
	copy(out, obs)

	out, st.Filled = fillMissing(out)
	out, st.OutliersRemoved = c.dropOutliers(out)
	out, st.DuplicatesCut = c.trimRepeats(out)

	st.Output = len(out)
	return out, st
}

// fillMissing replaces non-positive prices by carrying the last valid
// price forward, then backward for a leading gap.
func fillMissing(obs []models.PriceObservation) ([]models.PriceObservation, int) {
	filled := 0
	lastSell, lastBuy := 0.0, 0.0
	for i := range obs {
		if obs[i].SellPrice > 0 {
			lastSell = obs[i].SellPrice
		} else if lastSell > 0 {
			obs[i].SellPrice = lastSell
			filled++
		}
		if obs[i].BuyPrice > 0 {
			lastBuy = obs[i].BuyPrice
		} else if lastBuy > 0 {
			obs[i].BuyPrice = lastBuy
		}
	}
	// backward pass for gaps before the first valid price
	nextSell, nextBuy := 0.0, 0.0
	for i := len(obs) - 1; i >= 0; i-- {
		if obs[i].SellPrice > 0 {
			nextSell = obs[i].SellPrice
		} else if nextSell > 0 {
			obs[i].SellPrice = nextSell
			filled++
		}
		if obs[i].BuyPrice > 0 {
			nextBuy = obs[i].BuyPrice
		} else if nextBuy > 0 {
			obs[i].BuyPrice = nextBuy
		}
	}
	return obs, filled
}

// dropOutliers removes observations whose sell price falls outside the
// IQR fences.
func (c *Cleaner) dropOutliers(obs []models.PriceObservation) ([]models.PriceObservation, int) {
	if len(obs) < 4 {
		return obs, 0
	}
	prices := models.SellPrices(obs)
	q1 := stats.Percentile(prices, 25)
	q3 := stats.Percentile(prices, 75)
	iqr := q3 - q1
	if iqr == 0 {
		return obs, 0
	}
	lower := q1 - c.iqrMultiplier*iqr
	upper := q3 + c.iqrMultiplier*iqr

	kept := obs[:0]
	removed := 0
	for _, o := range obs {
		if o.SellPrice < lower || o.SellPrice > upper {
			removed++
			continue
		}
		kept = append(kept, o)
	}
	return kept, removed
}

// trimRepeats caps runs of identical sell prices at maxSameStretch
// observations, keeping the earliest of each run.
func (c *Cleaner) trimRepeats(obs []models.PriceObservation) ([]models.PriceObservation, int) {
	if len(obs) == 0 {
		return obs, 0
	}
	kept := make([]models.PriceObservation, 0, len(obs))
	run := 0
	cut := 0
	prev := obs[0].SellPrice
	for i, o := range obs {
		if i > 0 && o.SellPrice == prev {
			run++
		} else {
			run = 0
		}
		prev = o.SellPrice
		if run >= c.maxSameStretch {
			cut++
			continue
		}
		kept = append(kept, o)
	}
	return kept, cut
}
