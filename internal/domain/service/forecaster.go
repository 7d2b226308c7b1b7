package service

import (
	"context"
	"encoding/json"

	"PriceCast/internal/domain/models"
)

// Forecaster is one opaque forecasting capability inside the ensemble.
// The lifecycle manager never depends on a specific algorithm's shape:
// it fits, evaluates and queries submodels through this interface only.
type Forecaster interface {
	// Name identifies the submodel inside weights and metrics maps.
	Name() string

	// Fit trains the model from scratch on an ordered observation series.
	Fit(ctx context.Context, series []models.PriceObservation) error

	// Predict returns the next `horizon` prices after the fitted series.
	Predict(horizon int) ([]float64, error)

	// SupportsWarmStart reports whether Update can continue from the
	// current fitted state. Models without warm start are refit fully on
	// the incremental path.
	SupportsWarmStart() bool

	// Update continues training from the existing fitted state. Only
	// meaningful when SupportsWarmStart returns true.
	Update(ctx context.Context, series []models.PriceObservation) error

	// Snapshot serializes the fitted state for persistence.
	Snapshot() (json.RawMessage, error)

	// Restore rebuilds the fitted state from a snapshot.
	Restore(state json.RawMessage) error
}
