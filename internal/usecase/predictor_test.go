package usecase

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"FinCast/internal/domain/models"
	domsvc "FinCast/internal/domain/service"
	"FinCast/internal/services/forecast"
)

var day0 = time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

type stubProvider struct {
	closes []float64
	live   float64
	liveAt time.Time
	err    error
}

func (p *stubProvider) Historical(_ context.Context, symbol string) (models.PriceSeries, error) {
	if p.err != nil {
		return models.PriceSeries{}, p.err
	}
	pts := make([]models.PricePoint, len(p.closes))
	for i, c := range p.closes {
		pts[i] = models.PricePoint{Time: day0.AddDate(0, 0, i), Price: c}
	}
	return models.PriceSeries{Symbol: symbol, Points: pts}, nil
}

func (p *stubProvider) LivePrice(context.Context, string) (float64, time.Time, error) {
	return p.live, p.liveAt, nil
}

type stubOrders struct {
	spec models.ModelSpec
	err  error
}

func (s stubOrders) Load(context.Context) (models.ModelSpec, error) { return s.spec, s.err }

type stubModel struct {
	name  string
	level float64
}

func (m stubModel) Name() string { return m.name }
func (m stubModel) AIC() float64 { return 10 }
func (m stubModel) BIC() float64 { return 12 }

func (m stubModel) Forecast(steps int, _ float64) (domsvc.Interval, error) {
	iv := domsvc.Interval{
		Mean:   make([]float64, steps),
		Lower:  make([]float64, steps),
		Upper:  make([]float64, steps),
		StdErr: make([]float64, steps),
	}
	for i := range iv.Mean {
		iv.Mean[i] = m.level
		iv.Lower[i] = m.level - 1
		iv.Upper[i] = m.level + 1
	}
	return iv, nil
}

type stubFitter struct {
	err   error
	specs []models.ModelSpec
}

func (f *stubFitter) FitPair(_ context.Context, _ []float64, spec models.ModelSpec) (forecast.Pair, error) {
	f.specs = append(f.specs, spec)
	if f.err != nil {
		return forecast.Pair{}, f.err
	}
	return forecast.Pair{
		NonSeasonal: stubModel{name: forecast.NameNonSeasonal, level: 101},
		Seasonal:    stubModel{name: forecast.NameSeasonal, level: 103},
	}, nil
}

type countingMetrics struct {
	nopMetrics
	recovered map[string]int
	forecasts int
}

func (m *countingMetrics) RecordRecovered(kind string) {
	if m.recovered == nil {
		m.recovered = map[string]int{}
	}
	m.recovered[kind]++
}

func (m *countingMetrics) RecordForecast(string, bool, float64) { m.forecasts++ }

type capturePublisher struct{ got []*models.Prediction }

func (c *capturePublisher) PublishPrediction(_ context.Context, p *models.Prediction) error {
	c.got = append(c.got, p)
	return nil
}
func (c *capturePublisher) Close() error { return nil }

func randomWalk(n int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	x := 100.0
	for i := range out {
		x += rng.NormFloat64()
		out[i] = x
	}
	return out
}

func newProvider(closes []float64) *stubProvider {
	return &stubProvider{
		closes: closes,
		live:   closes[len(closes)-1] + 0.5,
		liveAt: day0.AddDate(0, 0, len(closes)),
	}
}

func TestPredictShapeAndDates(t *testing.T) {
	prov := newProvider(randomWalk(130, 1))
	pub := &capturePublisher{}
	p := NewPredictor(prov, stubOrders{spec: models.DefaultModelSpec()}, &stubFitter{}, WithPublisher(pub))

	pred, err := p.Predict(context.Background(), "AAPL", 7, 0.9)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if len(pred.Forecast) != 7 {
		t.Fatalf("forecast len = %d, want 7", len(pred.Forecast))
	}
	if len(pred.Historical) != models.DefaultWindow {
		t.Fatalf("historical len = %d, want %d", len(pred.Historical), models.DefaultWindow)
	}
	lastHist := pred.Historical[len(pred.Historical)-1]
	if !lastHist.Time.Equal(prov.liveAt) || lastHist.Price != prov.live {
		t.Fatalf("live point not appended: %+v", lastHist)
	}
	want := prov.liveAt.AddDate(0, 0, 1).Format(models.DateLayout)
	if pred.Forecast[0].Date != want {
		t.Fatalf("first date = %s, want %s", pred.Forecast[0].Date, want)
	}
	for i := 1; i < len(pred.Forecast); i++ {
		if pred.Forecast[i].Date <= pred.Forecast[i-1].Date {
			t.Fatalf("dates not increasing at %d: %s <= %s", i, pred.Forecast[i].Date, pred.Forecast[i-1].Date)
		}
	}
	for _, fp := range pred.Forecast {
		if fp.Price != 102 || fp.StdDev != 1 {
			t.Fatalf("ensemble point = %+v, want price 102 stdDev 1", fp)
		}
	}
	if pred.PredictedT10 != pred.Forecast[6].Price || pred.PredictedT1 != pred.Forecast[0].Price {
		t.Errorf("t1/t10 = %v/%v", pred.PredictedT1, pred.PredictedT10)
	}
	if pred.ConfidenceScore < 0 || pred.ConfidenceScore > 100 {
		t.Errorf("confidence %v out of range", pred.ConfidenceScore)
	}
	if pred.AccuracyMetrics == nil || pred.AccuracyMetrics.TestSize != 24 {
		t.Errorf("accuracy = %+v, want 24-point backtest", pred.AccuracyMetrics)
	}
	if pred.ModelInfo.EnsembleMethod != "simple_average" || pred.ModelInfo.Fallback {
		t.Errorf("model info = %+v", pred.ModelInfo)
	}
	if pred.ModelInfo.ArimaOrder != [3]int{5, 1, 0} || pred.ModelInfo.SarimaSeasonalOrder != [4]int{1, 1, 1, 5} {
		t.Errorf("orders = %v %v", pred.ModelInfo.ArimaOrder, pred.ModelInfo.SarimaSeasonalOrder)
	}
	wantDir := "down"
	if 102 > prov.live {
		wantDir = "up"
	}
	if pred.Trend.Direction != wantDir {
		t.Errorf("direction = %s, want %s", pred.Trend.Direction, wantDir)
	}
	if len(pub.got) != 1 || pub.got[0] != pred {
		t.Errorf("published %d predictions", len(pub.got))
	}
	if len(pred.Indicators.RSI) != len(pred.Historical) {
		t.Errorf("indicators not aligned")
	}
}

func TestPredictFallsBackOnModelFailure(t *testing.T) {
	closes := randomWalk(60, 2)
	prov := newProvider(closes)
	m := &countingMetrics{}
	p := NewPredictor(prov, stubOrders{spec: models.DefaultModelSpec()},
		&stubFitter{err: domsvc.ErrModelFitting}, WithMetrics(m))

	pred, err := p.Predict(context.Background(), "MSFT", 0, 0)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if pred.AccuracyMetrics != nil {
		t.Errorf("fallback must not report accuracy")
	}
	if !pred.ModelInfo.Fallback || len(pred.Forecast) != DefaultSteps {
		t.Fatalf("fallback=%v len=%d", pred.ModelInfo.Fallback, len(pred.Forecast))
	}
	series := make([]float64, 0, len(closes)+1)
	series = append(series, closes...)
	series = append(series, prov.live)
	var mu float64
	for _, v := range series {
		mu += v
	}
	mu /= float64(len(series))
	var ss float64
	for _, v := range series {
		ss += (v - mu) * (v - mu)
	}
	sd := math.Sqrt(ss / float64(len(series)-1))
	for i, fp := range pred.Forecast {
		if w := fp.UpperBound - fp.LowerBound; math.Abs(w-2*1.96*sd) > 1e-9 {
			t.Fatalf("step %d width = %v, want %v", i, w, 2*1.96*sd)
		}
	}
	if m.recovered["model_fitting"] != 1 {
		t.Errorf("recovered = %v", m.recovered)
	}
	if pred.ConfidenceLevel != DefaultConfidenceLevel {
		t.Errorf("level = %v", pred.ConfidenceLevel)
	}
}

func TestPredictConstantSeriesWithRealModels(t *testing.T) {
	closes := make([]float64, 80)
	for i := range closes {
		closes[i] = 25
	}
	prov := &stubProvider{closes: closes, live: 25, liveAt: day0.AddDate(0, 0, 80)}
	p := NewPredictor(prov, stubOrders{spec: models.DefaultModelSpec()}, forecast.NewDualForecaster())
	pred, err := p.Predict(context.Background(), "FLAT", 5, 0.95)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if pred.AccuracyMetrics != nil || !pred.ModelInfo.Fallback {
		t.Fatalf("constant series should fall back without metrics")
	}
	for _, fp := range pred.Forecast {
		if fp.Price != 25 || fp.UpperBound-fp.LowerBound != 0 {
			t.Fatalf("point = %+v, want flat 25 with zero width", fp)
		}
	}
	if pred.ConfidenceScore != 100 {
		t.Errorf("confidence = %v, want 100", pred.ConfidenceScore)
	}
}

func TestPredictIsDeterministic(t *testing.T) {
	prov := newProvider(randomWalk(120, 5))
	p := NewPredictor(prov, stubOrders{spec: models.DefaultModelSpec()}, forecast.NewDualForecaster())
	a, err := p.Predict(context.Background(), "DET", 10, 0.95)
	if err != nil {
		t.Fatalf("first Predict: %v", err)
	}
	b, err := p.Predict(context.Background(), "DET", 10, 0.95)
	if err != nil {
		t.Fatalf("second Predict: %v", err)
	}
	if !reflect.DeepEqual(a.Forecast, b.Forecast) {
		t.Fatalf("forecasts differ:\n%v\n%v", a.Forecast, b.Forecast)
	}
	if a.ConfidenceScore != b.ConfidenceScore {
		t.Fatalf("scores differ: %v vs %v", a.ConfidenceScore, b.ConfidenceScore)
	}
}

func TestPredictDataUnavailable(t *testing.T) {
	prov := &stubProvider{err: errors.New("http 503")}
	p := NewPredictor(prov, nil, &stubFitter{})
	_, err := p.Predict(context.Background(), "X", 5, 0.95)
	if !errors.Is(err, domsvc.ErrDataUnavailable) {
		t.Fatalf("err = %v, want ErrDataUnavailable", err)
	}
	if _, err := p.Predict(context.Background(), "X", -1, 0.95); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("negative steps: err = %v", err)
	}
}

func TestPredictUsesDefaultOrdersWhenStoreFails(t *testing.T) {
	m := &countingMetrics{}
	f := &stubFitter{}
	p := NewPredictor(newProvider(randomWalk(50, 3)), stubOrders{err: errors.New("no such file")}, f, WithMetrics(m))
	if _, err := p.Predict(context.Background(), "IBM", 3, 0.95); err != nil {
		t.Fatalf("Predict: %v", err)
	}
	for _, s := range f.specs {
		if s != models.DefaultModelSpec() {
			t.Fatalf("spec = %+v, want defaults", s)
		}
	}
	if m.recovered["storage_unavailable"] != 1 {
		t.Errorf("recovered = %v", m.recovered)
	}
}

func TestSummarizeAndCompare(t *testing.T) {
	prov := newProvider(randomWalk(40, 4))
	p := NewPredictor(prov, stubOrders{spec: models.DefaultModelSpec()}, &stubFitter{})

	sum, err := p.Summarize(context.Background(), "NVDA")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if sum.CurrentPrice != prov.live || sum.NextDayPrediction != 102 || sum.WeekPrediction != 102 {
		t.Errorf("summary = %+v", sum)
	}

	cmp, err := p.CompareModels(context.Background(), "NVDA", 4)
	if err != nil {
		t.Fatalf("CompareModels: %v", err)
	}
	if cmp.Arima.T1 != 101 || cmp.Sarima.T10 != 103 || cmp.Arima.AIC != 10 || cmp.Sarima.BIC != 12 {
		t.Errorf("comparison = %+v", cmp)
	}

	failing := NewPredictor(prov, stubOrders{spec: models.DefaultModelSpec()}, &stubFitter{err: domsvc.ErrModelFitting})
	if _, err := failing.CompareModels(context.Background(), "NVDA", 4); !errors.Is(err, domsvc.ErrModelFitting) {
		t.Fatalf("err = %v, want ErrModelFitting", err)
	}
}
