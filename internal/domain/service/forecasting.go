package service

// Interval is a per-step point forecast with two-sided bounds and standard errors.
type Interval struct {
	Mean   []float64
	Lower  []float64
	Upper  []float64
	StdErr []float64
}

// Model is a fitted forecasting model.
type Model interface {
	Name() string
	Forecast(steps int, level float64) (Interval, error)
	AIC() float64
	BIC() float64
}
