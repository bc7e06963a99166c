package features

import (
	"math"

	"FinCast/internal/domain/models"

	"github.com/markcheno/go-talib"
)

const (
	smaPeriod       = 20
	emaSpan         = 20
	bollingerPeriod = 20
	bollingerWidth  = 2.0
	rsiPeriod       = 14
	macdFast        = 12
	macdSlow        = 26
	macdSignal      = 9
)

// ComputeIndicators derives the chart indicators for a series. Every sequence
// has the series length; values that are undefined for the leading points are 0.
func ComputeIndicators(s models.PriceSeries) models.Indicators {
	closes := s.Closes()
	dates := make([]string, len(s.Points))
	for i, p := range s.Points {
		dates[i] = p.Time.Format(models.DateLayout)
	}

	sma := SMA(closes, smaPeriod)
	upper, lower := Bollinger(closes, sma, bollingerPeriod, bollingerWidth)
	macd, signal, hist := MACD(closes, macdFast, macdSlow, macdSignal)
	return models.Indicators{
		Dates:          dates,
		SMA20:          sma,
		EMA20:          EMA(closes, emaSpan),
		RSI:            RSI(closes, rsiPeriod),
		MACD:           macd,
		MACDSignal:     signal,
		MACDHist:       hist,
		BollingerUpper: upper,
		BollingerLower: lower,
	}
}

// SMA is the simple moving average with zeros before the first full window.
func SMA(closes []float64, period int) []float64 {
	if period < 1 || len(closes) < period {
		return make([]float64, len(closes))
	}
	return talib.Sma(closes, period)
}

// EMA is the recursive exponential average seeded with the first value,
// alpha = 2/(span+1).
func EMA(xs []float64, span int) []float64 {
	out := make([]float64, len(xs))
	if len(xs) == 0 {
		return out
	}
	alpha := 2 / (float64(span) + 1)
	out[0] = xs[0]
	for i := 1; i < len(xs); i++ {
		out[i] = alpha*xs[i] + (1-alpha)*out[i-1]
	}
	return out
}

// Bollinger returns sma +/- width * rolling sample standard deviation.
func Bollinger(closes, sma []float64, period int, width float64) (upper, lower []float64) {
	upper = make([]float64, len(closes))
	lower = make([]float64, len(closes))
	if period < 2 {
		return upper, lower
	}
	for i := period - 1; i < len(closes); i++ {
		sd := SampleStdDev(closes[i-period+1 : i+1])
		upper[i] = sma[i] + width*sd
		lower[i] = sma[i] - width*sd
	}
	return upper, lower
}

// RSI uses simple rolling means of gains and losses. A window without losses
// scores 100.
func RSI(closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	if period < 1 {
		return out
	}
	for i := period; i < len(closes); i++ {
		var gain, loss float64
		for j := i - period + 1; j <= i; j++ {
			d := closes[j] - closes[j-1]
			if d > 0 {
				gain += d
			} else {
				loss -= d
			}
		}
		gain /= float64(period)
		loss /= float64(period)
		if loss == 0 {
			out[i] = 100
			continue
		}
		v := 100 - 100/(1+gain/loss)
		out[i] = math.Max(0, math.Min(100, v))
	}
	return out
}

// MACD returns EMA(fast) - EMA(slow), its EMA(signal) and the histogram.
func MACD(closes []float64, fast, slow, signal int) (macd, sig, hist []float64) {
	ef, es := EMA(closes, fast), EMA(closes, slow)
	macd = make([]float64, len(closes))
	for i := range closes {
		macd[i] = ef[i] - es[i]
	}
	sig = EMA(macd, signal)
	hist = make([]float64, len(closes))
	for i := range macd {
		hist[i] = macd[i] - sig[i]
	}
	return macd, sig, hist
}
