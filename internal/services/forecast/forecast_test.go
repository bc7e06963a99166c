package forecast

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"FinCast/internal/domain/models"
	domsvc "FinCast/internal/domain/service"
)

// stubModel forecasts a constant level with a fixed half-width.
type stubModel struct {
	name  string
	level float64
	width float64
	err   error
}

func (m stubModel) Name() string { return m.name }
func (m stubModel) AIC() float64 { return 1 }
func (m stubModel) BIC() float64 { return 2 }

func (m stubModel) Forecast(steps int, _ float64) (domsvc.Interval, error) {
	if m.err != nil {
		return domsvc.Interval{}, m.err
	}
	iv := domsvc.Interval{
		Mean:   make([]float64, steps),
		Lower:  make([]float64, steps),
		Upper:  make([]float64, steps),
		StdErr: make([]float64, steps),
	}
	for i := range iv.Mean {
		iv.Mean[i] = m.level + float64(i)
		iv.Lower[i] = iv.Mean[i] - m.width
		iv.Upper[i] = iv.Mean[i] + m.width
		iv.StdErr[i] = m.width / 2
	}
	return iv, nil
}

type stubFitter struct {
	pair   Pair
	err    error
	trainN int
}

func (f *stubFitter) FitPair(_ context.Context, closes []float64, _ models.ModelSpec) (Pair, error) {
	f.trainN = len(closes)
	return f.pair, f.err
}

func TestEnsembleIsMeanOfModels(t *testing.T) {
	a := stubModel{name: "a", level: 100, width: 2}
	b := stubModel{name: "b", level: 104, width: 6}
	ens, err := Forecast([]domsvc.Model{a, b}, 5, 0.95)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if len(ens.Mean) != 5 {
		t.Fatalf("len = %d, want 5", len(ens.Mean))
	}
	for i := range ens.Mean {
		pa, pb := 100+float64(i), 104+float64(i)
		if want := (pa + pb) / 2; math.Abs(ens.Mean[i]-want) > 1e-12 {
			t.Errorf("mean[%d] = %v, want %v", i, ens.Mean[i], want)
		}
		if want := ((pa - 2) + (pb - 6)) / 2; math.Abs(ens.Lower[i]-want) > 1e-12 {
			t.Errorf("lower[%d] = %v, want %v", i, ens.Lower[i], want)
		}
		if want := ((pa + 2) + (pb + 6)) / 2; math.Abs(ens.Upper[i]-want) > 1e-12 {
			t.Errorf("upper[%d] = %v, want %v", i, ens.Upper[i], want)
		}
		if math.Abs(ens.StdDev[i]-2) > 1e-12 {
			t.Errorf("dispersion[%d] = %v, want |a-b|/2 = 2", i, ens.StdDev[i])
		}
	}
	if ens.Fallback {
		t.Errorf("fallback flag set on model ensemble")
	}
}

func TestEnsemblePropagatesModelError(t *testing.T) {
	bad := stubModel{name: "bad", err: domsvc.ErrModelFitting}
	_, err := Forecast([]domsvc.Model{stubModel{level: 1}, bad}, 3, 0.95)
	if !errors.Is(err, domsvc.ErrModelFitting) {
		t.Fatalf("err = %v, want ErrModelFitting", err)
	}
}

func TestFallbackDampedTrend(t *testing.T) {
	closes := []float64{10, 10, 10, 10, 10, 10, 15}
	ens := Fallback(closes, 3)
	// mean(last 5) = 11, trend = (15-11)/10 = 0.4
	var mu float64
	for _, c := range closes {
		mu += c
	}
	mu /= float64(len(closes))
	var ss float64
	for _, c := range closes {
		ss += (c - mu) * (c - mu)
	}
	sd := math.Sqrt(ss / float64(len(closes)-1))
	for i := 0; i < 3; i++ {
		want := 15 + 0.4*float64(i+1)
		if math.Abs(ens.Mean[i]-want) > 1e-9 {
			t.Errorf("point %d = %v, want %v", i, ens.Mean[i], want)
		}
		if w := ens.Upper[i] - ens.Lower[i]; math.Abs(w-2*1.96*sd) > 1e-9 {
			t.Errorf("width %d = %v, want %v", i, w, 2*1.96*sd)
		}
		if math.Abs(ens.StdDev[i]-sd) > 1e-12 {
			t.Errorf("stdDev %d = %v, want %v", i, ens.StdDev[i], sd)
		}
	}
	if !ens.Fallback {
		t.Errorf("fallback flag not set")
	}
}

func TestFallbackConstantSeries(t *testing.T) {
	ens := Fallback([]float64{50, 50, 50, 50, 50, 50}, 4)
	for i := range ens.Mean {
		if ens.Mean[i] != 50 || ens.Lower[i] != 50 || ens.Upper[i] != 50 {
			t.Fatalf("step %d = %v [%v, %v], want flat 50", i, ens.Mean[i], ens.Lower[i], ens.Upper[i])
		}
	}
}

func TestBacktestSplitAndMetrics(t *testing.T) {
	closes := make([]float64, 120)
	for i := range closes {
		closes[i] = 100 + float64(i%7)
	}
	f := &stubFitter{pair: Pair{
		NonSeasonal: stubModel{level: 101},
		Seasonal:    stubModel{level: 103},
	}}
	bt := NewBacktester(f)
	if train, test := bt.Split(120); train != 96 || test != 24 {
		t.Fatalf("split = %d/%d, want 96/24", train, test)
	}
	m, err := bt.Run(context.Background(), closes, models.DefaultModelSpec(), 0.95)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if f.trainN != 96 {
		t.Errorf("refit on %d points, want 96", f.trainN)
	}
	if m.TestSize != 24 {
		t.Errorf("testSize = %d, want 24", m.TestSize)
	}
	if m.RMSE < 0 || m.MAE < 0 || m.MAPE < 0 || m.RMSE < m.MAE {
		t.Errorf("bad metrics %+v", *m)
	}
	// errors are a few units on a ~100 level, so MAPE is a percentage well above 1
	if m.MAPE < 1 || m.MAPE > 100 {
		t.Errorf("mape = %v, want a percentage", m.MAPE)
	}
}

func TestBacktestFailures(t *testing.T) {
	f := &stubFitter{}
	bt := NewBacktester(f)
	for _, n := range []int{0, 1} {
		if _, err := bt.Run(context.Background(), make([]float64, n), models.DefaultModelSpec(), 0.95); !errors.Is(err, domsvc.ErrBacktest) {
			t.Errorf("%d observations: err = %v, want ErrBacktest", n, err)
		}
	}
	if f.trainN != 0 {
		t.Errorf("refit ran on an unsplittable series")
	}

	bt = NewBacktester(&stubFitter{err: domsvc.ErrModelFitting})
	_, err := bt.Run(context.Background(), make([]float64, 50), models.DefaultModelSpec(), 0.95)
	if !errors.Is(err, domsvc.ErrBacktest) || !errors.Is(err, domsvc.ErrModelFitting) {
		t.Errorf("refit failure: err = %v", err)
	}

	// a fitter that reports success without models
	bt = NewBacktester(&stubFitter{})
	_, err = bt.Run(context.Background(), make([]float64, 50), models.DefaultModelSpec(), 0.95)
	if !errors.Is(err, domsvc.ErrBacktest) || !errors.Is(err, domsvc.ErrModelFitting) {
		t.Errorf("empty pair: err = %v", err)
	}
}

func TestForecastRejectsNilModel(t *testing.T) {
	_, err := Forecast([]domsvc.Model{stubModel{level: 100}, nil}, 3, 0.95)
	if !errors.Is(err, domsvc.ErrModelFitting) {
		t.Fatalf("err = %v, want ErrModelFitting", err)
	}
}

func TestScore(t *testing.T) {
	m := Score([]float64{100, 200}, []float64{110, 180})
	if math.Abs(m.RMSE-math.Sqrt((100+400)/2.0)) > 1e-12 {
		t.Errorf("rmse = %v", m.RMSE)
	}
	if m.MAE != 15 {
		t.Errorf("mae = %v, want 15", m.MAE)
	}
	if math.Abs(m.MAPE-10) > 1e-12 {
		t.Errorf("mape = %v, want 10", m.MAPE)
	}
}

func TestConfidenceScore(t *testing.T) {
	if got := ConfidenceScore([]float64{0, 0}, 0, nil); got != 100 {
		t.Errorf("zero inputs = %v, want 100", got)
	}
	if got := ConfidenceScore([]float64{1e6}, 1e6, &models.AccuracyMetrics{MAPE: 1e6}); got != 20 {
		t.Errorf("saturated = %v, want 20", got)
	}
	if got := ConfidenceScore([]float64{2}, 3, &models.AccuracyMetrics{MAPE: 10}); got != 100-10-6-5 {
		t.Errorf("partial = %v, want 79", got)
	}
	if got := ConfidenceScore([]float64{-100}, -100, nil); got != 100 {
		t.Errorf("clamp high = %v, want 100", got)
	}
	if got := ConfidenceScore([]float64{math.NaN()}, 0, nil); got < 0 || got > 100 {
		t.Errorf("nan input = %v, want within [0, 100]", got)
	}
}

func TestDualForecasterFitsRealModels(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	closes := make([]float64, 120)
	x := 100.0
	for i := range closes {
		x += 0.2*math.Sin(float64(i)*0.7) + rng.NormFloat64()
		closes[i] = x
	}
	pair, err := NewDualForecaster().FitPair(context.Background(), closes, models.DefaultModelSpec())
	if err != nil {
		t.Fatalf("FitPair: %v", err)
	}
	if pair.NonSeasonal.Name() != NameNonSeasonal || pair.Seasonal.Name() != NameSeasonal {
		t.Fatalf("names = %s/%s", pair.NonSeasonal.Name(), pair.Seasonal.Name())
	}
	ens, err := Forecast(pair.Models(), 10, 0.95)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	for i := range ens.Mean {
		if ens.Lower[i] > ens.Mean[i] || ens.Upper[i] < ens.Mean[i] {
			t.Errorf("step %d: %v outside [%v, %v]", i, ens.Mean[i], ens.Lower[i], ens.Upper[i])
		}
	}
}

func TestDualForecasterFailsOnFlatSeries(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 7
	}
	_, err := NewDualForecaster().FitPair(context.Background(), closes, models.DefaultModelSpec())
	if !errors.Is(err, domsvc.ErrModelFitting) {
		t.Fatalf("err = %v, want ErrModelFitting", err)
	}
}
