// Package tsa fits seasonal ARIMA models by exact Gaussian maximum likelihood
// and produces interval forecasts from them.
package tsa

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat/distuv"
)

var (
	ErrInvalidOrder = errors.New("tsa: invalid model order")
	ErrTooShort     = errors.New("tsa: series too short for model order")
	ErrDegenerate   = errors.New("tsa: differenced series has zero variance")
	ErrNotConverged = errors.New("tsa: likelihood optimisation did not converge")
	ErrInvalidLevel = errors.New("tsa: confidence level must be in (0, 1)")
	ErrInvalidSteps = errors.New("tsa: forecast steps must be positive")
)

const (
	defaultMaxEvals = 20000
	// penaltyObjective replaces the negative log-likelihood at inadmissible points.
	penaltyObjective = 1e10
)

// Order is the non-seasonal (p, d, q) order.
type Order struct {
	P, D, Q int
}

// SeasonalOrder is the seasonal (P, D, Q, s) order.
type SeasonalOrder struct {
	P, D, Q, S int
}

// Spec describes a SARIMA(p,d,q)(P,D,Q,s) model without a trend term.
type Spec struct {
	Order    Order
	Seasonal SeasonalOrder
}

func (s Spec) seasonal() bool {
	return s.Seasonal.P > 0 || s.Seasonal.D > 0 || s.Seasonal.Q > 0
}

func (s Spec) numParams() int {
	n := s.Order.P + s.Order.Q
	if s.seasonal() {
		n += s.Seasonal.P + s.Seasonal.Q
	}
	return n
}

// Validate checks that the orders are usable.
func (s Spec) Validate() error {
	o, so := s.Order, s.Seasonal
	if o.P < 0 || o.D < 0 || o.Q < 0 || so.P < 0 || so.D < 0 || so.Q < 0 || so.S < 0 {
		return fmt.Errorf("%w: negative order %v%v", ErrInvalidOrder, o, so)
	}
	if s.seasonal() && so.S < 2 {
		return fmt.Errorf("%w: seasonal period %d must be at least 2", ErrInvalidOrder, so.S)
	}
	return nil
}

func (s Spec) String() string {
	if !s.seasonal() {
		return fmt.Sprintf("ARIMA(%d,%d,%d)", s.Order.P, s.Order.D, s.Order.Q)
	}
	return fmt.Sprintf("SARIMA(%d,%d,%d)(%d,%d,%d,%d)",
		s.Order.P, s.Order.D, s.Order.Q, s.Seasonal.P, s.Seasonal.D, s.Seasonal.Q, s.Seasonal.S)
}

// Params are the fitted coefficients in lag-polynomial sign convention:
// AR terms enter as 1 - c L, MA terms as 1 + c L.
type Params struct {
	AR  []float64
	MA  []float64
	SAR []float64
	SMA []float64
}

// FitOptions tunes the optimiser.
type FitOptions struct {
	MaxEvaluations int
}

// Results is a fitted model.
type Results struct {
	Spec   Spec
	Params Params
	Sigma2 float64
	LogLik float64
	AIC    float64
	BIC    float64
	NObs   int

	y     []float64
	diff  []float64
	model arma
	state []float64
	// intAR is diff(L) * phi(L) * Phi(L^s); ma is theta(L) * Theta(L^s).
	intAR []float64
	ma    []float64
}

// Forecast is an h-step interval forecast on the level scale.
type Forecast struct {
	Mean   []float64
	Lower  []float64
	Upper  []float64
	StdErr []float64
}

// Fit estimates the model on y. The optimiser starts from zero coefficients so
// repeated fits on the same input return identical results.
func Fit(y []float64, spec Spec, opts FitOptions) (*Results, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	period := spec.Seasonal.S
	seasonalD := 0
	if spec.seasonal() {
		seasonalD = spec.Seasonal.D
	}
	diff := diffPoly(spec.Order.D, seasonalD, period)
	w := applyPoly(diff, y)
	k := spec.numParams()
	if len(w) < k+3 {
		return nil, fmt.Errorf("%w: %d observations after differencing, %s needs %d",
			ErrTooShort, len(w), spec, k+3)
	}
	var ss float64
	for _, v := range w {
		ss += v * v
	}
	if ss == 0 || math.IsNaN(ss) || math.IsInf(ss, 0) {
		return nil, ErrDegenerate
	}

	x := make([]float64, k)
	if k > 0 {
		maxEvals := opts.MaxEvaluations
		if maxEvals <= 0 {
			maxEvals = defaultMaxEvals
		}
		problem := optimize.Problem{
			Func: func(x []float64) float64 {
				res, err := newARMA(spec.polynomials(x)).filter(w)
				if err != nil {
					return penaltyObjective
				}
				return -res.logLik
			},
		}
		settings := &optimize.Settings{
			FuncEvaluations: maxEvals,
			Concurrent:      1,
			Converger: &optimize.FunctionConverge{
				Absolute:   1e-8,
				Relative:   1e-8,
				Iterations: 100,
			},
		}
		result, err := optimize.Minimize(problem, x, settings, &optimize.NelderMead{SimplexSize: 0.5})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNotConverged, err)
		}
		switch result.Status {
		case optimize.FunctionEvaluationLimit, optimize.IterationLimit, optimize.Failure, optimize.RuntimeLimit:
			return nil, fmt.Errorf("%w: %s", ErrNotConverged, result.Status)
		}
		if result.F >= penaltyObjective {
			return nil, fmt.Errorf("%w: no admissible parameters found", ErrNotConverged)
		}
		copy(x, result.X)
	}

	arP, maP := spec.polynomials(x)
	model := newARMA(arP, maP)
	fr, err := model.filter(w)
	if err != nil {
		if k == 0 {
			return nil, fmt.Errorf("%w: %v", ErrDegenerate, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrNotConverged, err)
	}

	nParams := float64(k + 1)
	n := float64(fr.nobs)
	return &Results{
		Spec:   spec,
		Params: spec.unpack(x),
		Sigma2: fr.sigma2,
		LogLik: fr.logLik,
		AIC:    -2*fr.logLik + 2*nParams,
		BIC:    -2*fr.logLik + nParams*math.Log(n),
		NObs:   fr.nobs,
		y:      append([]float64(nil), y...),
		diff:   diff,
		model:  model,
		state:  fr.state,
		intAR:  polyMul(diff, arP),
		ma:     maP,
	}, nil
}

// unpack splits an unconstrained vector [ar, ma, sar, sma] into constrained coefficients.
func (s Spec) unpack(x []float64) Params {
	var p Params
	i := 0
	take := func(n int) []float64 {
		v := x[i : i+n]
		i += n
		return v
	}
	p.AR = constrainStationary(take(s.Order.P))
	p.MA = constrainInvertible(take(s.Order.Q))
	if s.seasonal() {
		p.SAR = constrainStationary(take(s.Seasonal.P))
		p.SMA = constrainInvertible(take(s.Seasonal.Q))
	}
	return p
}

// polynomials returns phi(L)Phi(L^s) and theta(L)Theta(L^s) for x.
func (s Spec) polynomials(x []float64) (ar, ma []float64) {
	p := s.unpack(x)
	ar = arPoly(p.AR, 1)
	ma = maPoly(p.MA, 1)
	if s.seasonal() {
		ar = polyMul(ar, arPoly(p.SAR, s.Seasonal.S))
		ma = polyMul(ma, maPoly(p.SMA, s.Seasonal.S))
	}
	return ar, ma
}

// Forecast projects steps observations past the end of the sample with
// two-sided intervals at the given confidence level.
func (r *Results) Forecast(steps int, level float64) (Forecast, error) {
	if steps <= 0 {
		return Forecast{}, ErrInvalidSteps
	}
	if !(level > 0 && level < 1) {
		return Forecast{}, fmt.Errorf("%w: got %v", ErrInvalidLevel, level)
	}
	z := distuv.UnitNormal.Quantile(1 - (1-level)/2)

	// differenced-scale predictions from the filtered state
	wHat := make([]float64, steps)
	a := append([]float64(nil), r.state...)
	for h := 0; h < steps; h++ {
		wHat[h] = a[0]
		a = r.model.predictState(a)
	}

	// undo the differencing: y_t = w_t - sum_{i>=1} delta_i y_{t-i}
	hist := append([]float64(nil), r.y...)
	mean := make([]float64, steps)
	for h := 0; h < steps; h++ {
		v := wHat[h]
		t := len(hist)
		for i := 1; i < len(r.diff); i++ {
			v -= r.diff[i] * hist[t-i]
		}
		hist = append(hist, v)
		mean[h] = v
	}

	psi := psiWeights(r.intAR, r.ma, steps)
	out := Forecast{
		Mean:   mean,
		Lower:  make([]float64, steps),
		Upper:  make([]float64, steps),
		StdErr: make([]float64, steps),
	}
	var acc float64
	for h := 0; h < steps; h++ {
		acc += psi[h] * psi[h]
		se := math.Sqrt(r.Sigma2 * acc)
		out.StdErr[h] = se
		out.Lower[h] = mean[h] - z*se
		out.Upper[h] = mean[h] + z*se
	}
	return out, nil
}
