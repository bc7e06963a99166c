package tsa

// Lag polynomials are stored lowest power first: c[0] + c[1]L + c[2]L^2 + ...

func polyMul(a, b []float64) []float64 {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	out := make([]float64, len(a)+len(b)-1)
	for i, x := range a {
		if x == 0 {
			continue
		}
		for j, y := range b {
			out[i+j] += x * y
		}
	}
	return out
}

// arPoly builds 1 - c1 L - c2 L^2 - ... spaced by step (1 for non-seasonal, s for seasonal).
func arPoly(coefs []float64, step int) []float64 {
	return lagPoly(coefs, step, -1)
}

// maPoly builds 1 + c1 L + c2 L^2 + ... spaced by step.
func maPoly(coefs []float64, step int) []float64 {
	return lagPoly(coefs, step, 1)
}

func lagPoly(coefs []float64, step int, sign float64) []float64 {
	if step < 1 {
		step = 1
	}
	out := make([]float64, len(coefs)*step+1)
	out[0] = 1
	for i, c := range coefs {
		out[(i+1)*step] = sign * c
	}
	return out
}

// diffPoly returns (1-L)^d (1-L^s)^D.
func diffPoly(d, seasonalD, period int) []float64 {
	out := []float64{1}
	for i := 0; i < d; i++ {
		out = polyMul(out, []float64{1, -1})
	}
	if seasonalD > 0 && period > 0 {
		sd := make([]float64, period+1)
		sd[0], sd[period] = 1, -1
		for i := 0; i < seasonalD; i++ {
			out = polyMul(out, sd)
		}
	}
	return out
}

// applyPoly filters y through poly, dropping the first len(poly)-1 observations.
func applyPoly(poly, y []float64) []float64 {
	k := len(poly) - 1
	if len(y) <= k {
		return nil
	}
	out := make([]float64, len(y)-k)
	for t := k; t < len(y); t++ {
		var s float64
		for i, c := range poly {
			s += c * y[t-i]
		}
		out[t-k] = s
	}
	return out
}

// psiWeights expands ma(L)/ar(L) into its first n moving-average weights.
func psiWeights(ar, ma []float64, n int) []float64 {
	psi := make([]float64, n)
	for j := 0; j < n; j++ {
		var v float64
		if j < len(ma) {
			v = ma[j]
		}
		for i := 1; i <= j && i < len(ar); i++ {
			v -= ar[i] * psi[j-i]
		}
		psi[j] = v
	}
	return psi
}
