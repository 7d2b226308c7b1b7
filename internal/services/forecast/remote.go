package forecast

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"PriceCast/internal/domain/models"
	xhttp "PriceCast/pkg/http"
)

// RemoteForecaster delegates fitting and prediction to an external
// forecasting service over HTTP. It keeps the fitted series locally so
// the remote side can stay stateless.
type RemoteForecaster struct {
	name    string
	baseURL string
	client  *xhttp.Client
	series  []models.PriceObservation
}

// NewRemoteForecaster builds a remote submodel named `name` against the
// service at baseURL.
func NewRemoteForecaster(name, baseURL string, timeout time.Duration) *RemoteForecaster {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RemoteForecaster{
		name:    name,
		baseURL: baseURL,
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout)),
	}
}

func (m *RemoteForecaster) Name() string { return m.name }

// Fit retains the series for later prediction calls. The remote service
// receives it per request, so no round trip happens here.
func (m *RemoteForecaster) Fit(_ context.Context, series []models.PriceObservation) error {
	if len(series) < minFeatureHistory {
		return ErrSeriesTooShort
	}
	kept := series
	if len(kept) > 2*priceWindowSize {
		kept = kept[len(kept)-2*priceWindowSize:]
	}
	m.series = make([]models.PriceObservation, len(kept))
	copy(m.series, kept)
	return nil
}

type remoteForecastRequest struct {
	Model   string                    `json:"model"`
	Series  []models.PriceObservation `json:"series"`
	Horizon int                       `json:"horizon"`
}

type remoteForecastResponse struct {
	Forecast []float64 `json:"forecast"`
	Error    string    `json:"error,omitempty"`
}

// Predict posts the retained series and horizon to the service.
func (m *RemoteForecaster) Predict(horizon int) ([]float64, error) {
	if len(m.series) == 0 {
		return nil, ErrNotFitted
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var resp remoteForecastResponse
	err := m.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    m.baseURL + "/forecast",
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
		Body: remoteForecastRequest{Model: m.name, Series: m.series, Horizon: horizon},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("remote forecast %s: %w", m.name, err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("remote forecast %s: %s", m.name, resp.Error)
	}
	if len(resp.Forecast) < horizon {
		return nil, fmt.Errorf("remote forecast %s: got %d of %d points", m.name, len(resp.Forecast), horizon)
	}
	return resp.Forecast[:horizon], nil
}

func (m *RemoteForecaster) SupportsWarmStart() bool { return false }

func (m *RemoteForecaster) Update(ctx context.Context, series []models.PriceObservation) error {
	return m.Fit(ctx, series)
}

type remoteState struct {
	Series []models.PriceObservation `json:"series"`
}

func (m *RemoteForecaster) Snapshot() (json.RawMessage, error) {
	return json.Marshal(remoteState{Series: m.series})
}

func (m *RemoteForecaster) Restore(state json.RawMessage) error {
	var st remoteState
	if err := json.Unmarshal(state, &st); err != nil {
		return err
	}
	m.series = st.Series
	return nil
}
