package forecast

import "errors"

var (
	// ErrSeriesTooShort means the series cannot support a fit.
	ErrSeriesTooShort = errors.New("forecast: series too short to fit")
	// ErrNotFitted means Predict was called before Fit or Restore.
	ErrNotFitted = errors.New("forecast: model not fitted")
	// ErrUnknownModel means no submodel is registered under the name.
	ErrUnknownModel = errors.New("forecast: unknown model name")
)
