package forecast

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"PriceCast/internal/domain/models"
)

// ModelGradient names the feature-regression submodel.
const ModelGradient = "gradient"

const (
	gradientFitEpochs    = 300
	gradientUpdateEpochs = 60
	gradientLearningRate = 0.05
)

// priceWindowSize bounds the rolling price window carried in state for
// recursive prediction and feature standardization.
const priceWindowSize = 30

// GradientModel regresses the next price on calendar, order book and
// momentum features, trained by batch gradient descent. It warm starts:
// persisted coefficients seed the next incremental round, and multi-step
// prediction rolls its own outputs back into the feature window.
type GradientModel struct {
	epochs int
	lr     float64
	state  gradientState
}

type gradientState struct {
	Theta  []float64   `json:"theta"`
	XMean  []float64   `json:"x_mean"`
	XStd   []float64   `json:"x_std"`
	YMean  float64     `json:"y_mean"`
	YStd   float64     `json:"y_std"`
	Window []float64   `json:"window"`
	Shape  marketShape `json:"shape"`
	LastTS time.Time   `json:"last_ts"`
	Fitted bool        `json:"fitted"`
}

// NewGradientModel creates an unfitted GradientModel with default
// training parameters.
func NewGradientModel() *GradientModel {
	return &GradientModel{epochs: gradientFitEpochs, lr: gradientLearningRate}
}

func (m *GradientModel) Name() string { return ModelGradient }

// Fit trains coefficients from scratch on the series.
func (m *GradientModel) Fit(ctx context.Context, series []models.PriceObservation) error {
	xs, ys := buildTrainingRows(series)
	if len(xs) < 2 {
		return ErrSeriesTooShort
	}

	m.state = gradientState{Theta: make([]float64, featureCount)}
	m.standardize(xs, ys)
	m.descend(ctx, xs, ys, m.epochs)
	m.captureTail(series)
	m.state.Fitted = true
	return nil
}

// SupportsWarmStart reports true: Update continues from the persisted
// coefficients.
func (m *GradientModel) SupportsWarmStart() bool { return true }

// Update refines the existing coefficients on fresh observations with a
// shorter descent. The feature scaling from the original fit is kept so
// the coefficients stay comparable.
func (m *GradientModel) Update(ctx context.Context, series []models.PriceObservation) error {
	if !m.state.Fitted {
		return ErrNotFitted
	}
	xs, ys := buildTrainingRows(series)
	if len(xs) == 0 {
		m.captureTail(series)
		return nil
	}
	m.descend(ctx, xs, ys, gradientUpdateEpochs)
	m.captureTail(series)
	return nil
}

// Predict rolls the model forward recursively: each predicted price is
// appended to a copy of the price window before the next step's features
// are built.
func (m *GradientModel) Predict(horizon int) ([]float64, error) {
	if !m.state.Fitted {
		return nil, ErrNotFitted
	}
	if len(m.state.Window) < minFeatureHistory {
		return nil, ErrSeriesTooShort
	}

	window := make([]float64, len(m.state.Window))
	copy(window, m.state.Window)
	ts := m.state.LastTS

	out := make([]float64, horizon)
	for k := 0; k < horizon; k++ {
		ts = ts.Add(24 * time.Hour)
		x := featuresAt(window, m.state.Shape, ts)
		v := m.predictOne(x)
		if v < 0 {
			v = 0
		}
		out[k] = v

		window = append(window, v)
		if len(window) > priceWindowSize {
			window = window[1:]
		}
	}
	return out, nil
}

func (m *GradientModel) Snapshot() (json.RawMessage, error) {
	return json.Marshal(m.state)
}

func (m *GradientModel) Restore(state json.RawMessage) error {
	return json.Unmarshal(state, &m.state)
}

// standardize captures per-feature means and deviations so descent sees
// zero-centered unit-scale inputs. The bias column stays untouched.
func (m *GradientModel) standardize(xs [][]float64, ys []float64) {
	n := float64(len(xs))
	m.state.XMean = make([]float64, featureCount)
	m.state.XStd = make([]float64, featureCount)

	for _, x := range xs {
		for j := 1; j < featureCount; j++ {
			m.state.XMean[j] += x[j]
		}
	}
	for j := 1; j < featureCount; j++ {
		m.state.XMean[j] /= n
	}
	for _, x := range xs {
		for j := 1; j < featureCount; j++ {
			d := x[j] - m.state.XMean[j]
			m.state.XStd[j] += d * d
		}
	}
	for j := 1; j < featureCount; j++ {
		m.state.XStd[j] = math.Sqrt(m.state.XStd[j] / n)
		if m.state.XStd[j] == 0 {
			m.state.XStd[j] = 1
		}
	}

	for _, y := range ys {
		m.state.YMean += y
	}
	m.state.YMean /= n
	for _, y := range ys {
		d := y - m.state.YMean
		m.state.YStd += d * d
	}
	m.state.YStd = math.Sqrt(m.state.YStd / n)
	if m.state.YStd == 0 {
		m.state.YStd = 1
	}
}

// descend runs batch gradient descent on the standardized rows.
// Checks ctx between epochs so a cancelled training cycle stops early.
func (m *GradientModel) descend(ctx context.Context, xs [][]float64, ys []float64, epochs int) {
	n := float64(len(xs))
	grad := make([]float64, featureCount)

	for e := 0; e < epochs; e++ {
		if ctx.Err() != nil {
			return
		}
		for j := range grad {
			grad[j] = 0
		}
		for i, x := range xs {
			xz := m.scaleRow(x)
			yz := (ys[i] - m.state.YMean) / m.state.YStd
			residual := dot(m.state.Theta, xz) - yz
			for j := 0; j < featureCount; j++ {
				grad[j] += residual * xz[j]
			}
		}
		for j := 0; j < featureCount; j++ {
			m.state.Theta[j] -= m.lr * 2 * grad[j] / n
		}
	}
}

func (m *GradientModel) predictOne(x []float64) float64 {
	return dot(m.state.Theta, m.scaleRow(x))*m.state.YStd + m.state.YMean
}

func (m *GradientModel) scaleRow(x []float64) []float64 {
	xz := make([]float64, featureCount)
	xz[0] = 1
	for j := 1; j < featureCount; j++ {
		xz[j] = (x[j] - m.state.XMean[j]) / m.state.XStd[j]
	}
	return xz
}

// captureTail stores the trailing price window, order book shape and
// last timestamp needed for recursive prediction.
func (m *GradientModel) captureTail(series []models.PriceObservation) {
	if len(series) == 0 {
		return
	}
	prices := models.SellPrices(series)
	if len(prices) > priceWindowSize {
		prices = prices[len(prices)-priceWindowSize:]
	}
	m.state.Window = prices
	last := series[len(series)-1]
	m.state.Shape = shapeOf(last)
	m.state.LastTS = last.Timestamp
}

func dot(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
