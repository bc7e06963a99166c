package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	domsvc "FinCast/internal/domain/service"
	"FinCast/internal/services/features"
	"FinCast/internal/services/forecast"
	applogger "FinCast/pkg/logger"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultSteps           = 10
	DefaultConfidenceLevel = 0.95
	SummarySteps           = 5
	recentChangeLookback   = 10
)

var ErrInvalidRequest = errors.New("invalid forecast request")

// Predictor runs the forecasting pipeline for one symbol per call:
// provider, indicators, dual model fit, ensemble, backtest, confidence.
type Predictor struct {
	provider domrepo.SeriesProvider
	orders   domrepo.OrderStore
	fitter   forecast.PairFitter
	backtest *forecast.Backtester
	metrics  domrepo.Metrics
	pub      domrepo.ForecastPublisher
	l        *applogger.Logger
	window   int
}

type PredictorOption func(*Predictor)

// WithWindow sets how many recent points the models see.
func WithWindow(n int) PredictorOption {
	return func(p *Predictor) {
		if n > 0 {
			p.window = n
		}
	}
}

func WithMetrics(m domrepo.Metrics) PredictorOption {
	return func(p *Predictor) {
		if m != nil {
			p.metrics = m
		}
	}
}

// WithPublisher publishes every computed Prediction.
func WithPublisher(pub domrepo.ForecastPublisher) PredictorOption {
	return func(p *Predictor) { p.pub = pub }
}

func WithLogger(l *applogger.Logger) PredictorOption {
	return func(p *Predictor) {
		if l != nil {
			p.l = l
		}
	}
}

func NewPredictor(provider domrepo.SeriesProvider, orders domrepo.OrderStore, fitter forecast.PairFitter, opts ...PredictorOption) *Predictor {
	p := &Predictor{
		provider: provider,
		orders:   orders,
		fitter:   fitter,
		backtest: forecast.NewBacktester(fitter),
		metrics:  nopMetrics{},
		l:        applogger.Nop(),
		window:   models.DefaultWindow,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Predict forecasts steps days ahead with intervals at level. Zero values take
// the defaults. Only data errors are returned; model, backtest and storage
// failures degrade the result.
func (p *Predictor) Predict(ctx context.Context, symbol string, steps int, level float64) (*models.Prediction, error) {
	start := time.Now()
	if steps == 0 {
		steps = DefaultSteps
	}
	if level == 0 {
		level = DefaultConfidenceLevel
	}
	if steps < 0 || !(level > 0 && level < 1) {
		return nil, fmt.Errorf("%w: steps=%d confidence_level=%v", ErrInvalidRequest, steps, level)
	}

	series, live, liveAt, err := p.loadSeries(ctx, symbol)
	if err != nil {
		p.metrics.RecordError(domsvc.Kind(err))
		return nil, err
	}
	spec := p.loadSpec(ctx)
	closes := series.Closes()

	var (
		pair          forecast.Pair
		fitErr, btErr error
		acc           *models.AccuracyMetrics
		g             errgroup.Group
	)
	g.Go(func() error {
		pair, fitErr = p.fitter.FitPair(ctx, closes, spec)
		return nil
	})
	g.Go(func() error {
		acc, btErr = p.backtest.Run(ctx, closes, spec, level)
		return nil
	})
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var ens forecast.Ensemble
	if fitErr == nil {
		ens, fitErr = forecast.Forecast(pair.Models(), steps, level)
	}
	if fitErr != nil {
		if !errors.Is(fitErr, domsvc.ErrModelFitting) {
			return nil, fitErr
		}
		p.recovered(ctx, symbol, fitErr)
		ens = forecast.Fallback(closes, steps)
		acc = nil
	} else if btErr != nil {
		p.recovered(ctx, symbol, btErr)
		acc = nil
	}

	returns := features.ComputePctReturns(closes)
	volatility := features.AnnualizedVolatility(returns, features.TradingDaysPerYear) * live
	score := forecast.ConfidenceScore(ens.StdDev, volatility, acc)

	last := series.Last().Time
	points := make([]models.ForecastPoint, steps)
	for i := range points {
		points[i] = models.ForecastPoint{
			Date:       last.AddDate(0, 0, i+1).Format(models.DateLayout),
			Price:      ens.Mean[i],
			LowerBound: ens.Lower[i],
			UpperBound: ens.Upper[i],
			StdDev:     ens.StdDev[i],
		}
	}
	final := ens.Mean[steps-1]
	direction := "down"
	if final > live {
		direction = "up"
	}
	var recent float64
	if n := series.Len(); n > recentChangeLookback {
		recent = features.PercentChange(closes[n-recentChangeLookback], live)
	}

	pred := &models.Prediction{
		Symbol:       symbol,
		LivePrice:    live,
		LiveTime:     liveAt,
		Historical:   series.Points,
		Forecast:     points,
		Indicators:   features.ComputeIndicators(series),
		PredictedT1:  ens.Mean[0],
		PredictedT10: final,
		Trend: models.Trend{
			Direction:        direction,
			PercentageChange: features.PercentChange(live, final),
			Recent10dChange:  recent,
		},
		Volatility:      volatility,
		ConfidenceScore: score,
		ConfidenceLevel: level,
		AccuracyMetrics: acc,
		ModelInfo: models.ModelInfo{
			ArimaOrder:          spec.Order.Array(),
			SarimaSeasonalOrder: spec.Seasonal.Array(),
			EnsembleMethod:      models.EnsembleSimpleAverage,
			Fallback:            ens.Fallback,
		},
	}

	elapsed := time.Since(start)
	p.metrics.RecordForecast(symbol, ens.Fallback, elapsed.Seconds())
	p.metrics.RecordConfidence(symbol, score)
	p.l.Ctx(ctx).Info("forecast computed",
		applogger.String("symbol", symbol),
		applogger.Int("steps", steps),
		applogger.Bool("fallback", ens.Fallback),
		applogger.Float64("confidence", score),
		applogger.Duration("took_ms", elapsed),
	)
	p.publish(ctx, pred)
	return pred, nil
}

// Summarize is a five-step Predict reduced to the dashboard fields.
func (p *Predictor) Summarize(ctx context.Context, symbol string) (*models.PredictionSummary, error) {
	pred, err := p.Predict(ctx, symbol, SummarySteps, DefaultConfidenceLevel)
	if err != nil {
		return nil, err
	}
	return &models.PredictionSummary{
		Symbol:            pred.Symbol,
		CurrentPrice:      pred.LivePrice,
		NextDayPrediction: pred.PredictedT1,
		WeekPrediction:    pred.PredictedT10,
		Trend:             pred.Trend.Direction,
		Confidence:        pred.ConfidenceScore,
	}, nil
}

// CompareModels fits each model on its own and reports its first and last
// forecast step with information criteria. Fit failures are returned.
func (p *Predictor) CompareModels(ctx context.Context, symbol string, steps int) (*models.ModelComparison, error) {
	if steps == 0 {
		steps = DefaultSteps
	}
	if steps < 0 {
		return nil, fmt.Errorf("%w: steps=%d", ErrInvalidRequest, steps)
	}
	series, live, _, err := p.loadSeries(ctx, symbol)
	if err != nil {
		p.metrics.RecordError(domsvc.Kind(err))
		return nil, err
	}
	spec := p.loadSpec(ctx)
	pair, err := p.fitter.FitPair(ctx, series.Closes(), spec)
	if err != nil {
		p.metrics.RecordError(domsvc.Kind(err))
		return nil, err
	}
	arima, err := score(pair.NonSeasonal, steps)
	if err != nil {
		return nil, err
	}
	sarima, err := score(pair.Seasonal, steps)
	if err != nil {
		return nil, err
	}
	return &models.ModelComparison{Symbol: symbol, LivePrice: live, Arima: arima, Sarima: sarima}, nil
}

func score(m domsvc.Model, steps int) (models.ModelScore, error) {
	iv, err := m.Forecast(steps, DefaultConfidenceLevel)
	if err != nil {
		return models.ModelScore{}, err
	}
	return models.ModelScore{T1: iv.Mean[0], T10: iv.Mean[steps-1], AIC: m.AIC(), BIC: m.BIC()}, nil
}

// loadSeries fetches history and the live quote and returns the owned window.
func (p *Predictor) loadSeries(ctx context.Context, symbol string) (models.PriceSeries, float64, time.Time, error) {
	hist, err := p.provider.Historical(ctx, symbol)
	if err != nil {
		return models.PriceSeries{}, 0, time.Time{}, asUnavailable(err, "historical %s", symbol)
	}
	live, at, err := p.provider.LivePrice(ctx, symbol)
	if err != nil {
		return models.PriceSeries{}, 0, time.Time{}, asUnavailable(err, "live price %s", symbol)
	}
	if hist.Symbol == "" {
		hist.Symbol = symbol
	}
	series := hist.WithLive(live, at, p.window)
	if err := series.Validate(); err != nil {
		return models.PriceSeries{}, 0, time.Time{}, fmt.Errorf("%w: %w", domsvc.ErrDataUnavailable, err)
	}
	if series.Len() < 2 {
		return models.PriceSeries{}, 0, time.Time{}, fmt.Errorf("%w: %d points for %s", domsvc.ErrDataUnavailable, series.Len(), symbol)
	}
	return series, live, at, nil
}

func asUnavailable(err error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if errors.Is(err, domsvc.ErrDataUnavailable) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", msg, err)
	}
	return fmt.Errorf("%s: %w: %w", msg, domsvc.ErrDataUnavailable, err)
}

// loadSpec never fails: a missing or corrupt bundle yields the default orders.
func (p *Predictor) loadSpec(ctx context.Context) models.ModelSpec {
	if p.orders == nil {
		return models.DefaultModelSpec()
	}
	spec, err := p.orders.Load(ctx)
	if err != nil {
		p.recovered(ctx, "", fmt.Errorf("%w: %w", domsvc.ErrStorageUnavailable, err))
		return models.DefaultModelSpec()
	}
	return spec
}

func (p *Predictor) recovered(ctx context.Context, symbol string, err error) {
	kind := domsvc.Kind(err)
	p.metrics.RecordRecovered(kind)
	p.l.Ctx(ctx).Warn("forecast degraded",
		applogger.String("symbol", symbol),
		applogger.String("kind", kind),
		applogger.Error(err),
	)
}

func (p *Predictor) publish(ctx context.Context, pred *models.Prediction) {
	if p.pub == nil {
		return
	}
	if err := p.pub.PublishPrediction(ctx, pred); err != nil {
		p.metrics.RecordError("publish")
		p.l.Ctx(ctx).Error("publish prediction", applogger.String("symbol", pred.Symbol), applogger.Error(err))
	}
}

type nopMetrics struct{}

func (nopMetrics) RecordForecast(string, bool, float64) {}
func (nopMetrics) RecordRecovered(string)               {}
func (nopMetrics) RecordConfidence(string, float64)     {}
func (nopMetrics) RecordError(string)                   {}
func (nopMetrics) RecordLatency(string, float64)        {}
