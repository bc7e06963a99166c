package service

import "errors"

var (
	// ErrDataUnavailable means the provider could not supply the series or live price.
	ErrDataUnavailable = errors.New("market data unavailable")
	// ErrModelFitting means at least one model failed to fit or forecast.
	ErrModelFitting = errors.New("model fitting failed")
	// ErrBacktest means accuracy metrics could not be computed.
	ErrBacktest = errors.New("backtest failed")
	// ErrStorageUnavailable means the order bundle is missing or unreadable.
	ErrStorageUnavailable = errors.New("order storage unavailable")
)

// Kind labels a recovered error for logs and metrics.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrDataUnavailable):
		return "data_unavailable"
	case errors.Is(err, ErrModelFitting):
		return "model_fitting"
	case errors.Is(err, ErrBacktest):
		return "backtest"
	case errors.Is(err, ErrStorageUnavailable):
		return "storage_unavailable"
	default:
		return "unknown"
	}
}
