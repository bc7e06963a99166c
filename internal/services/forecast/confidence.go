package forecast

import (
	"math"

	"FinCast/internal/domain/models"
)

const (
	dispersionWeight = 5
	dispersionCap    = 30
	volatilityWeight = 2
	volatilityCap    = 20
	mapeCap          = 30
)

// ConfidenceScore maps forecast spread, price volatility and backtest error to
// [0, 100]. volatility is annualized return volatility times the live price.
// The MAPE term only applies when acc is present.
func ConfidenceScore(stdDev []float64, volatility float64, acc *models.AccuracyMetrics) float64 {
	score := 100.0
	if len(stdDev) > 0 {
		var sum float64
		for _, v := range stdDev {
			sum += v
		}
		score -= math.Min(sum/float64(len(stdDev))*dispersionWeight, dispersionCap)
	}
	score -= math.Min(volatility*volatilityWeight, volatilityCap)
	if acc != nil {
		score -= math.Min(acc.MAPE/2, mapeCap)
	}
	if math.IsNaN(score) {
		return 0
	}
	return math.Max(0, math.Min(100, score))
}
