package forecast

import (
	"fmt"

	"FinCast/internal/domain/models"
	domsvc "FinCast/internal/domain/service"
	"FinCast/internal/services/tsa"
)

const (
	NameNonSeasonal = "arima"
	NameSeasonal    = "sarima"
)

// fitted adapts tsa.Results to domsvc.Model.
type fitted struct {
	name string
	res  *tsa.Results
}

func (m *fitted) Name() string { return m.name }
func (m *fitted) AIC() float64 { return m.res.AIC }
func (m *fitted) BIC() float64 { return m.res.BIC }

func (m *fitted) Forecast(steps int, level float64) (domsvc.Interval, error) {
	fc, err := m.res.Forecast(steps, level)
	if err != nil {
		return domsvc.Interval{}, fmt.Errorf("%s forecast: %w: %w", m.name, domsvc.ErrModelFitting, err)
	}
	return domsvc.Interval{Mean: fc.Mean, Lower: fc.Lower, Upper: fc.Upper, StdErr: fc.StdErr}, nil
}

// NonSeasonalModel is ARIMA(p,d,q) fitted by exact maximum likelihood.
type NonSeasonalModel struct{ fitted }

// SeasonalModel is SARIMA(p,d,q)(P,D,Q,s) fitted by exact maximum likelihood.
type SeasonalModel struct{ fitted }

var (
	_ domsvc.Model = (*NonSeasonalModel)(nil)
	_ domsvc.Model = (*SeasonalModel)(nil)
)

// FitNonSeasonal fits the ARIMA part of spec on closes.
func FitNonSeasonal(closes []float64, spec models.ModelSpec, opts tsa.FitOptions) (*NonSeasonalModel, error) {
	res, err := tsa.Fit(closes, tsa.Spec{Order: tsaOrder(spec.Order)}, opts)
	if err != nil {
		return nil, fmt.Errorf("fit %s: %w: %w", NameNonSeasonal, domsvc.ErrModelFitting, err)
	}
	return &NonSeasonalModel{fitted{name: NameNonSeasonal, res: res}}, nil
}

// FitSeasonal fits the full seasonal spec on closes.
func FitSeasonal(closes []float64, spec models.ModelSpec, opts tsa.FitOptions) (*SeasonalModel, error) {
	s := tsa.Spec{
		Order: tsaOrder(spec.Order),
		Seasonal: tsa.SeasonalOrder{
			P: spec.Seasonal.P, D: spec.Seasonal.D, Q: spec.Seasonal.Q, S: spec.Seasonal.S,
		},
	}
	res, err := tsa.Fit(closes, s, opts)
	if err != nil {
		return nil, fmt.Errorf("fit %s: %w: %w", NameSeasonal, domsvc.ErrModelFitting, err)
	}
	return &SeasonalModel{fitted{name: NameSeasonal, res: res}}, nil
}

func tsaOrder(o models.Order) tsa.Order {
	return tsa.Order{P: o.P, D: o.D, Q: o.Q}
}
