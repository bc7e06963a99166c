package tsa

import "math"

// constrainStationary maps unconstrained reals onto the coefficients of a stationary
// AR polynomial 1 - c1 L - ... - cn L^n (Monahan 1984, Jones 1980).
func constrainStationary(x []float64) []float64 {
	n := len(x)
	if n == 0 {
		return nil
	}
	y := make([][]float64, n)
	for k := range y {
		y[k] = make([]float64, n)
	}
	for k := 0; k < n; k++ {
		r := x[k] / math.Sqrt(1+x[k]*x[k])
		for i := 0; i < k; i++ {
			y[k][i] = y[k-1][i] + r*y[k-1][k-i-1]
		}
		y[k][k] = r
	}
	out := make([]float64, n)
	for i, v := range y[n-1] {
		out[i] = -v
	}
	return out
}

// constrainInvertible maps unconstrained reals onto an invertible 1 + c1 L + ... polynomial.
func constrainInvertible(x []float64) []float64 {
	out := constrainStationary(x)
	for i := range out {
		out[i] = -out[i]
	}
	return out
}
