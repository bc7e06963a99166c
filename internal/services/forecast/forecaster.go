package forecast

import (
	"context"

	"FinCast/internal/domain/models"
	domsvc "FinCast/internal/domain/service"
	"FinCast/internal/services/tsa"

	"golang.org/x/sync/errgroup"
)

// Pair is the closed model set the ensemble averages over.
type Pair struct {
	NonSeasonal domsvc.Model
	Seasonal    domsvc.Model
}

func (p Pair) Models() []domsvc.Model { return []domsvc.Model{p.NonSeasonal, p.Seasonal} }

// PairFitter fits both models of a Pair.
type PairFitter interface {
	FitPair(ctx context.Context, closes []float64, spec models.ModelSpec) (Pair, error)
}

// DualForecaster fits the non-seasonal and seasonal models concurrently.
type DualForecaster struct {
	opts tsa.FitOptions
}

type Option func(*DualForecaster)

// WithMaxEvaluations caps likelihood evaluations per fit.
func WithMaxEvaluations(n int) Option {
	return func(f *DualForecaster) { f.opts.MaxEvaluations = n }
}

func NewDualForecaster(opts ...Option) *DualForecaster {
	f := &DualForecaster{}
	for _, o := range opts {
		o(f)
	}
	return f
}

var _ PairFitter = (*DualForecaster)(nil)

// FitPair fails with an error wrapping ErrModelFitting when either model fails.
func (f *DualForecaster) FitPair(ctx context.Context, closes []float64, spec models.ModelSpec) (Pair, error) {
	if err := ctx.Err(); err != nil {
		return Pair{}, err
	}
	var (
		a *NonSeasonalModel
		b *SeasonalModel
		g errgroup.Group
	)
	g.Go(func() error {
		var err error
		a, err = FitNonSeasonal(closes, spec, f.opts)
		return err
	})
	g.Go(func() error {
		var err error
		b, err = FitSeasonal(closes, spec, f.opts)
		return err
	})
	if err := g.Wait(); err != nil {
		return Pair{}, err
	}
	return Pair{NonSeasonal: a, Seasonal: b}, nil
}
