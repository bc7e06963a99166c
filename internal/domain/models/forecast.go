package models

import "time"

// DateLayout formats forecast and indicator dates.
const DateLayout = "2006-01-02"

const EnsembleSimpleAverage = "simple_average"

// ForecastPoint is one step of an ensemble forecast.
type ForecastPoint struct {
	Date       string  `json:"date"`
	Price      float64 `json:"price"`
	LowerBound float64 `json:"lowerBound"`
	UpperBound float64 `json:"upperBound"`
	StdDev     float64 `json:"stdDev"`
}

// AccuracyMetrics are out-of-sample errors from the chronological backtest.
// MAPE is a percentage.
type AccuracyMetrics struct {
	RMSE     float64 `json:"rmse"`
	MAE      float64 `json:"mae"`
	MAPE     float64 `json:"mape"`
	TestSize int     `json:"testSize"`
}

// Indicators are display-only technical series aligned with Dates.
type Indicators struct {
	Dates          []string  `json:"dates"`
	SMA20          []float64 `json:"sma20"`
	EMA20          []float64 `json:"ema20"`
	RSI            []float64 `json:"rsi"`
	MACD           []float64 `json:"macd"`
	MACDSignal     []float64 `json:"macdSignal"`
	MACDHist       []float64 `json:"macdHist"`
	BollingerUpper []float64 `json:"bbUpper"`
	BollingerLower []float64 `json:"bbLower"`
}

type Trend struct {
	Direction        string  `json:"direction"` // "up" | "down"
	PercentageChange float64 `json:"percentageChange"`
	Recent10dChange  float64 `json:"recent10dChange"`
}

type ModelInfo struct {
	ArimaOrder          [3]int `json:"arimaOrder"`
	SarimaSeasonalOrder [4]int `json:"sarimaSeasonalOrder"`
	EnsembleMethod      string `json:"ensembleMethod"`
	Fallback            bool   `json:"fallback"`
}

// Prediction is the full forecast response for one symbol.
type Prediction struct {
	Symbol          string           `json:"symbol"`
	LivePrice       float64          `json:"livePrice"`
	LiveTime        time.Time        `json:"liveTime"`
	Historical      []PricePoint     `json:"historical"`
	Forecast        []ForecastPoint  `json:"forecast"`
	Indicators      Indicators       `json:"indicators"`
	PredictedT1     float64          `json:"predictedT1"`
	PredictedT10    float64          `json:"predictedT10"`
	Trend           Trend            `json:"trend"`
	Volatility      float64          `json:"volatility"`
	ConfidenceScore float64          `json:"confidenceScore"`
	ConfidenceLevel float64          `json:"confidenceLevel"`
	AccuracyMetrics *AccuracyMetrics `json:"accuracyMetrics"`
	ModelInfo       ModelInfo        `json:"modelInfo"`
}

// PredictionSummary is the dashboard projection of a five-step Prediction.
type PredictionSummary struct {
	Symbol            string  `json:"symbol"`
	CurrentPrice      float64 `json:"currentPrice"`
	NextDayPrediction float64 `json:"nextDayPrediction"`
	WeekPrediction    float64 `json:"weekPrediction"`
	Trend             string  `json:"trend"`
	Confidence        float64 `json:"confidence"`
}

// ModelScore summarises one individually fitted model.
type ModelScore struct {
	T1  float64 `json:"t1"`
	T10 float64 `json:"t10"`
	AIC float64 `json:"aic"`
	BIC float64 `json:"bic"`
}

type ModelComparison struct {
	Symbol    string     `json:"symbol"`
	LivePrice float64    `json:"livePrice"`
	Arima     ModelScore `json:"arima"`
	Sarima    ModelScore `json:"sarima"`
}

// ForecastEvent is the message published for every computed Prediction.
type ForecastEvent struct {
	ID         string     `json:"id"`
	Source     string     `json:"source"`
	ProducedAt time.Time  `json:"producedAt"`
	Prediction Prediction `json:"prediction"`
}
