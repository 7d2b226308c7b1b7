package forecast

import (
	"context"
	"encoding/json"
	"math"

	"PriceCast/internal/domain/models"
)

// ModelLinear names the weighted linear trend submodel.
const ModelLinear = "linear"

// LinearTrend fits a straight line through the price series with
// exponentially decaying sample weights, so the most recent prices
// dominate the slope.
type LinearTrend struct {
	state linearState
}

type linearState struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
	N         int     `json:"n"`
	Fitted    bool    `json:"fitted"`
}

// NewLinearTrend creates an unfitted LinearTrend.
func NewLinearTrend() *LinearTrend {
	return &LinearTrend{}
}

func (m *LinearTrend) Name() string { return ModelLinear }

// Fit runs weighted least squares over price versus index. Sample i of
// n carries weight exp(-2 + 2i/(n-1)): the newest point weighs e²
// times the oldest.
func (m *LinearTrend) Fit(_ context.Context, series []models.PriceObservation) error {
	prices := models.SellPrices(series)
	n := len(prices)
	if n < 2 {
		return ErrSeriesTooShort
	}

	var sumW, sumWX, sumWY, sumWXX, sumWXY float64
	for i, y := range prices {
		x := float64(i)
		w := math.Exp(-2 + 2*x/float64(n-1))
		sumW += w
		sumWX += w * x
		sumWY += w * y
		sumWXX += w * x * x
		sumWXY += w * x * y
	}
	den := sumW*sumWXX - sumWX*sumWX
	if den == 0 {
		return ErrSeriesTooShort
	}
	m.state.Slope = (sumW*sumWXY - sumWX*sumWY) / den
	m.state.Intercept = (sumWY - m.state.Slope*sumWX) / sumW
	m.state.N = n
	m.state.Fitted = true
	return nil
}

// Predict extrapolates the fitted line, floored at zero.
func (m *LinearTrend) Predict(horizon int) ([]float64, error) {
	if !m.state.Fitted {
		return nil, ErrNotFitted
	}
	out := make([]float64, horizon)
	for k := 0; k < horizon; k++ {
		x := float64(m.state.N + k)
		v := m.state.Intercept + m.state.Slope*x
		if v < 0 {
			v = 0
		}
		out[k] = v
	}
	return out, nil
}

// SupportsWarmStart reports false: the closed-form fit is cheap enough
// to redo in full.
func (m *LinearTrend) SupportsWarmStart() bool { return false }

func (m *LinearTrend) Update(ctx context.Context, series []models.PriceObservation) error {
	return m.Fit(ctx, series)
}

func (m *LinearTrend) Snapshot() (json.RawMessage, error) {
	return json.Marshal(m.state)
}

func (m *LinearTrend) Restore(state json.RawMessage) error {
	return json.Unmarshal(state, &m.state)
}
