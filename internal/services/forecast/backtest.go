package forecast

import (
	"context"
	"fmt"
	"math"

	"FinCast/internal/domain/models"
	domsvc "FinCast/internal/domain/service"
)

// DefaultTrainRatio is the chronological train share of a backtest split.
const DefaultTrainRatio = 0.8

// Backtester refits the model pair on the leading share of a series and scores
// the averaged forecast against the held-out tail.
type Backtester struct {
	fitter     PairFitter
	trainRatio float64
}

func NewBacktester(fitter PairFitter) *Backtester {
	return &Backtester{fitter: fitter, trainRatio: DefaultTrainRatio}
}

// Split returns the train and test sizes for n observations.
func (b *Backtester) Split(n int) (train, test int) {
	train = int(float64(n) * b.trainRatio)
	return train, n - train
}

// Run returns an error wrapping ErrBacktest when either side of the split is
// empty or the refit fails.
func (b *Backtester) Run(ctx context.Context, closes []float64, spec models.ModelSpec, level float64) (*models.AccuracyMetrics, error) {
	train, test := b.Split(len(closes))
	if train == 0 || test == 0 {
		return nil, fmt.Errorf("%w: cannot split %d observations", domsvc.ErrBacktest, len(closes))
	}
	pair, err := b.fitter.FitPair(ctx, closes[:train], spec)
	if err != nil {
		return nil, fmt.Errorf("%w: refit: %w", domsvc.ErrBacktest, err)
	}
	ens, err := Forecast(pair.Models(), test, level)
	if err != nil {
		return nil, fmt.Errorf("%w: forecast: %w", domsvc.ErrBacktest, err)
	}
	m := Score(closes[train:], ens.Mean)
	return &m, nil
}

// Score computes RMSE, MAE and MAPE (as a percentage) of predicted against actual.
func Score(actual, predicted []float64) models.AccuracyMetrics {
	n := min(len(actual), len(predicted))
	if n == 0 {
		return models.AccuracyMetrics{}
	}
	var se, ae, ape float64
	for i := 0; i < n; i++ {
		e := actual[i] - predicted[i]
		se += e * e
		ae += math.Abs(e)
		ape += math.Abs(e) / math.Max(math.Abs(actual[i]), math.SmallestNonzeroFloat64)
	}
	fn := float64(n)
	return models.AccuracyMetrics{
		RMSE:     math.Sqrt(se / fn),
		MAE:      ae / fn,
		MAPE:     ape / fn * 100,
		TestSize: n,
	}
}
