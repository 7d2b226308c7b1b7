package forecast

import (
	"context"
	"encoding/json"

	"PriceCast/internal/domain/models"
	"PriceCast/internal/services/stats"
)

// ModelSmoother names the exponential smoothing submodel.
const ModelSmoother = "smoother"

const seasonPeriod = 7

// seasonalityThreshold is the lag-7 autocorrelation above which the
// weekly seasonal component is switched on during Fit.
const seasonalityThreshold = 0.3

// Smoother is Holt's linear exponential smoothing with an adaptive
// additive weekly season: the seasonal component only participates when
// the fitted series shows real weekly periodicity.
type Smoother struct {
	alpha float64
	beta  float64
	gamma float64
	state smootherState
}

type smootherState struct {
	Level     float64               `json:"level"`
	Trend     float64               `json:"trend"`
	Seasonal  [seasonPeriod]float64 `json:"seasonal"`
	Phase     int                   `json:"phase"`
	Seasonal7 bool                  `json:"seasonal7"`
	Fitted    bool                  `json:"fitted"`
}

// NewSmoother creates a Smoother with the default smoothing factors
// alpha 0.5, beta 0.3, gamma 0.3.
func NewSmoother() *Smoother {
	return &Smoother{alpha: 0.5, beta: 0.3, gamma: 0.3}
}

func (m *Smoother) Name() string { return ModelSmoother }

// Fit initializes level, trend and the seasonal profile from the series
// and then smooths through it.
func (m *Smoother) Fit(_ context.Context, series []models.PriceObservation) error {
	prices := models.SellPrices(series)
	if len(prices) < 2 {
		return ErrSeriesTooShort
	}

	m.state = smootherState{
		Level: prices[0],
		Trend: prices[1] - prices[0],
	}

	if len(prices) >= 2*seasonPeriod && stats.Autocorrelation(prices, seasonPeriod) > seasonalityThreshold {
		m.state.Seasonal7 = true
		m.initSeasonal(prices)
	}

	m.consume(prices)
	m.state.Fitted = true
	return nil
}

// initSeasonal averages the deviation from the series mean per weekday
// slot.
func (m *Smoother) initSeasonal(prices []float64) {
	mean := stats.Mean(prices)
	var sums, counts [seasonPeriod]float64
	for i, p := range prices {
		slot := i % seasonPeriod
		sums[slot] += p - mean
		counts[slot]++
	}
	for s := 0; s < seasonPeriod; s++ {
		if counts[s] > 0 {
			m.state.Seasonal[s] = sums[s] / counts[s]
		}
	}
}

// consume advances the smoothing recursions over the prices.
func (m *Smoother) consume(prices []float64) {
	for _, y := range prices {
		slot := m.state.Phase % seasonPeriod
		season := 0.0
		if m.state.Seasonal7 {
			season = m.state.Seasonal[slot]
		}

		prevLevel := m.state.Level
		m.state.Level = m.alpha*(y-season) + (1-m.alpha)*(m.state.Level+m.state.Trend)
		m.state.Trend = m.beta*(m.state.Level-prevLevel) + (1-m.beta)*m.state.Trend
		if m.state.Seasonal7 {
			m.state.Seasonal[slot] = m.gamma*(y-m.state.Level) + (1-m.gamma)*season
		}
		m.state.Phase++
	}
}

// Predict extends level and trend forward, adding the seasonal slot when
// enabled. Prices are floored at zero.
func (m *Smoother) Predict(horizon int) ([]float64, error) {
	if !m.state.Fitted {
		return nil, ErrNotFitted
	}
	out := make([]float64, horizon)
	for k := 0; k < horizon; k++ {
		v := m.state.Level + float64(k+1)*m.state.Trend
		if m.state.Seasonal7 {
			v += m.state.Seasonal[(m.state.Phase+k)%seasonPeriod]
		}
		if v < 0 {
			v = 0
		}
		out[k] = v
	}
	return out, nil
}

// SupportsWarmStart reports true: the recursions continue from the
// persisted level and trend.
func (m *Smoother) SupportsWarmStart() bool { return true }

// Update smooths through additional observations without resetting
// state.
func (m *Smoother) Update(_ context.Context, series []models.PriceObservation) error {
	if !m.state.Fitted {
		return ErrNotFitted
	}
	m.consume(models.SellPrices(series))
	return nil
}

func (m *Smoother) Snapshot() (json.RawMessage, error) {
	return json.Marshal(m.state)
}

func (m *Smoother) Restore(state json.RawMessage) error {
	return json.Unmarshal(state, &m.state)
}
