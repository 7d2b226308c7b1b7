package usecase

import "errors"

// Sentinel errors of the model lifecycle. Handlers map them to response
// codes and batch runs map them to outcome buckets.
var (
	// ErrDataInsufficient means the series has too few usable points.
	ErrDataInsufficient = errors.New("not enough usable observations")
	// ErrDataStale means the newest observation is too old to trust.
	ErrDataStale = errors.New("latest observation is stale")
	// ErrLowLiquidity means the order book is too thin for forecasting.
	ErrLowLiquidity = errors.New("sell order volume too low")
	// ErrPriceStagnation means the price has not moved for too long.
	ErrPriceStagnation = errors.New("price stagnant over the trailing window")
	// ErrTrainingFailed wraps submodel fit failures.
	ErrTrainingFailed = errors.New("ensemble training failed")
	// ErrPersistence wraps model store read or write failures.
	ErrPersistence = errors.New("model persistence failed")
	// ErrNoModel means no trained model exists and training was not allowed.
	ErrNoModel = errors.New("no trained model available")
)
