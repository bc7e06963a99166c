package forecast

import (
	"errors"
	"fmt"

	domsvc "FinCast/internal/domain/service"
	"FinCast/internal/services/features"

	"gonum.org/v1/gonum/stat"
)

const (
	fallbackLookback = 5
	fallbackDamping  = 10
	fallbackZ        = 1.96
)

var (
	errNoModels = errors.New("no models to combine")
	errNilModel = errors.New("model not fitted")
)

// Ensemble is the combined per-step forecast. StdDev is the spread of the
// model points, or the historical standard deviation on the fallback path.
type Ensemble struct {
	Mean     []float64
	Lower    []float64
	Upper    []float64
	StdDev   []float64
	Fallback bool
}

// Forecast runs every model and averages the results.
func Forecast(ms []domsvc.Model, steps int, level float64) (Ensemble, error) {
	intervals := make([]domsvc.Interval, 0, len(ms))
	for _, m := range ms {
		if m == nil {
			return Ensemble{}, fmt.Errorf("%w: %w", domsvc.ErrModelFitting, errNilModel)
		}
		iv, err := m.Forecast(steps, level)
		if err != nil {
			return Ensemble{}, err
		}
		intervals = append(intervals, iv)
	}
	return Combine(intervals...)
}

// Combine averages points and bounds step by step. StdDev is the population
// standard deviation of the points, which for two models is |a-b|/2.
func Combine(intervals ...domsvc.Interval) (Ensemble, error) {
	if len(intervals) == 0 {
		return Ensemble{}, fmt.Errorf("%w: %w", domsvc.ErrModelFitting, errNoModels)
	}
	steps := len(intervals[0].Mean)
	for _, iv := range intervals[1:] {
		if len(iv.Mean) != steps || len(iv.Lower) != steps || len(iv.Upper) != steps {
			return Ensemble{}, fmt.Errorf("%w: forecast horizons differ", domsvc.ErrModelFitting)
		}
	}
	out := Ensemble{
		Mean:   make([]float64, steps),
		Lower:  make([]float64, steps),
		Upper:  make([]float64, steps),
		StdDev: make([]float64, steps),
	}
	n := float64(len(intervals))
	points := make([]float64, len(intervals))
	for h := 0; h < steps; h++ {
		var lo, up float64
		for i, iv := range intervals {
			points[i] = iv.Mean[h]
			lo += iv.Lower[h]
			up += iv.Upper[h]
		}
		out.Mean[h], out.StdDev[h] = stat.PopMeanStdDev(points, nil)
		out.Lower[h] = lo / n
		out.Upper[h] = up / n
	}
	return out, nil
}

// Fallback extrapolates a damped trend from the last price when the models
// cannot be fitted. Bounds are 1.96 historical standard deviations wide.
func Fallback(closes []float64, steps int) Ensemble {
	out := Ensemble{
		Mean:     make([]float64, steps),
		Lower:    make([]float64, steps),
		Upper:    make([]float64, steps),
		StdDev:   make([]float64, steps),
		Fallback: true,
	}
	if len(closes) == 0 {
		return out
	}
	last := closes[len(closes)-1]
	tail := closes[max(0, len(closes)-fallbackLookback):]
	trend := (last - stat.Mean(tail, nil)) / fallbackDamping
	sd := features.SampleStdDev(closes)
	for i := 0; i < steps; i++ {
		p := last + trend*float64(i+1)
		out.Mean[i] = p
		out.Lower[i] = p - fallbackZ*sd
		out.Upper[i] = p + fallbackZ*sd
		out.StdDev[i] = sd
	}
	return out
}
