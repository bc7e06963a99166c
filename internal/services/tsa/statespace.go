package tsa

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	lyapunovMaxIter = 64
	lyapunovTol     = 1e-12
	minVariance     = 1e-300
)

var errNumerical = errors.New("numerical failure in state-space filter")

// arma holds an ARMA process w_t = sum ar_i w_{t-i} + e_t + sum ma_j e_{t-j}
// cast into Harvey's companion state-space form of dimension r.
type arma struct {
	ar []float64
	ma []float64
	r  int
}

// newARMA converts AR/MA lag polynomials (leading 1) into a state-space ARMA.
func newARMA(arP, maP []float64) arma {
	m := arma{}
	for _, c := range arP[1:] {
		m.ar = append(m.ar, -c)
	}
	m.ma = append(m.ma, maP[1:]...)
	m.r = len(m.ar)
	if len(m.ma)+1 > m.r {
		m.r = len(m.ma) + 1
	}
	if m.r == 0 {
		m.r = 1
	}
	return m
}

func (m arma) arAt(i int) float64 {
	if i < len(m.ar) {
		return m.ar[i]
	}
	return 0
}

func (m arma) selection() []float64 {
	sel := make([]float64, m.r)
	sel[0] = 1
	for j := 1; j < m.r && j-1 < len(m.ma); j++ {
		sel[j] = m.ma[j-1]
	}
	return sel
}

func (m arma) transitionDense() *mat.Dense {
	t := mat.NewDense(m.r, m.r, nil)
	for i := 0; i < m.r; i++ {
		t.Set(i, 0, m.arAt(i))
		if i+1 < m.r {
			t.Set(i, i+1, 1)
		}
	}
	return t
}

// stationaryCovariance solves P = T P T' + R R' by the doubling algorithm.
func (m arma) stationaryCovariance() ([][]float64, error) {
	sel := m.selection()
	q := mat.NewDense(m.r, m.r, nil)
	q.Outer(1, mat.NewVecDense(m.r, sel), mat.NewVecDense(m.r, sel))

	a := m.transitionDense()
	p := mat.DenseCopyOf(q)
	var ap, apa, next mat.Dense
	for i := 0; i < lyapunovMaxIter; i++ {
		ap.Reset()
		ap.Mul(a, p)
		apa.Reset()
		apa.Mul(&ap, a.T())
		next.Reset()
		next.Add(p, &apa)

		inc := mat.Norm(&apa, 1)
		if math.IsNaN(inc) || math.IsInf(inc, 0) {
			return nil, errNumerical
		}
		p = mat.DenseCopyOf(&next)
		if inc <= lyapunovTol*(1+mat.Norm(p, 1)) {
			out := make([][]float64, m.r)
			for r := range out {
				out[r] = append([]float64(nil), p.RawRowView(r)...)
			}
			return out, nil
		}
		var a2 mat.Dense
		a2.Mul(a, a)
		a = &a2
	}
	return nil, fmt.Errorf("%w: initial covariance did not converge", errNumerical)
}

// predictCovariance returns T P T' + R R' using the companion structure of T.
func (m arma) predictCovariance(p [][]float64, rr [][]float64) [][]float64 {
	r := m.r
	tp := make([][]float64, r)
	for i := 0; i < r; i++ {
		tp[i] = make([]float64, r)
		ai := m.arAt(i)
		for j := 0; j < r; j++ {
			v := ai * p[0][j]
			if i+1 < r {
				v += p[i+1][j]
			}
			tp[i][j] = v
		}
	}
	out := make([][]float64, r)
	for i := 0; i < r; i++ {
		out[i] = make([]float64, r)
		for j := 0; j < r; j++ {
			v := tp[i][0] * m.arAt(j)
			if j+1 < r {
				v += tp[i][j+1]
			}
			out[i][j] = v + rr[i][j]
		}
	}
	return out
}

func (m arma) predictState(a []float64) []float64 {
	out := make([]float64, m.r)
	for i := 0; i < m.r; i++ {
		v := m.arAt(i) * a[0]
		if i+1 < m.r {
			v += a[i+1]
		}
		out[i] = v
	}
	return out
}

type filterResult struct {
	logLik float64
	sigma2 float64
	nobs   int
	// state is the one-step-ahead predicted state after the last observation.
	state []float64
}

// filter runs the Kalman filter with unit disturbance variance and returns the
// exact Gaussian log-likelihood with sigma^2 concentrated out.
func (m arma) filter(w []float64) (filterResult, error) {
	n := len(w)
	if n == 0 {
		return filterResult{}, fmt.Errorf("%w: empty series", errNumerical)
	}
	p, err := m.stationaryCovariance()
	if err != nil {
		return filterResult{}, err
	}
	sel := m.selection()
	rr := make([][]float64, m.r)
	for i := range rr {
		rr[i] = make([]float64, m.r)
		for j := range rr[i] {
			rr[i][j] = sel[i] * sel[j]
		}
	}

	a := make([]float64, m.r)
	var sumLogF, sumV2 float64
	for t := 0; t < n; t++ {
		v := w[t] - a[0]
		f := p[0][0]
		if !(f > 0) || math.IsInf(f, 0) {
			return filterResult{}, fmt.Errorf("%w: non-positive innovation variance at t=%d", errNumerical, t)
		}
		sumLogF += math.Log(f)
		sumV2 += v * v / f

		// measurement update
		k := make([]float64, m.r)
		for i := 0; i < m.r; i++ {
			k[i] = p[i][0] / f
			a[i] += k[i] * v
		}
		row0 := append([]float64(nil), p[0]...)
		for i := 0; i < m.r; i++ {
			for j := 0; j < m.r; j++ {
				p[i][j] -= k[i] * row0[j]
			}
		}

		a = m.predictState(a)
		p = m.predictCovariance(p, rr)
	}

	sigma2 := sumV2 / float64(n)
	if !(sigma2 > minVariance) || math.IsInf(sigma2, 0) {
		return filterResult{}, fmt.Errorf("%w: degenerate innovation variance", errNumerical)
	}
	ll := -0.5*float64(n)*(math.Log(2*math.Pi)+math.Log(sigma2)+1) - 0.5*sumLogF
	if math.IsNaN(ll) || math.IsInf(ll, 0) {
		return filterResult{}, fmt.Errorf("%w: non-finite log-likelihood", errNumerical)
	}
	return filterResult{logLik: ll, sigma2: sigma2, nobs: n, state: a}, nil
}
