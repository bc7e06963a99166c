package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	models "FinCast/internal/domain/models"
	domsvc "FinCast/internal/domain/service"
	"FinCast/internal/service/ratelimit"

	"github.com/labstack/echo/v4"
)

type fakeForecaster struct {
	err        error
	compareErr error

	gotSymbol string
	gotSteps  int
	gotLevel  float64
}

func (f *fakeForecaster) Predict(_ context.Context, symbol string, steps int, level float64) (*models.Prediction, error) {
	f.gotSymbol, f.gotSteps, f.gotLevel = symbol, steps, level
	if f.err != nil {
		return nil, f.err
	}
	return &models.Prediction{Symbol: symbol, LivePrice: 100, ConfidenceLevel: level}, nil
}

func (f *fakeForecaster) Summarize(_ context.Context, symbol string) (*models.PredictionSummary, error) {
	f.gotSymbol = symbol
	if f.err != nil {
		return nil, f.err
	}
	return &models.PredictionSummary{Symbol: symbol, CurrentPrice: 100, Trend: "up"}, nil
}

func (f *fakeForecaster) CompareModels(_ context.Context, symbol string, steps int) (*models.ModelComparison, error) {
	f.gotSymbol, f.gotSteps = symbol, steps
	if f.compareErr != nil {
		return nil, f.compareErr
	}
	return &models.ModelComparison{Symbol: symbol, LivePrice: 100}, nil
}

type checkFunc func(context.Context) error

func (f checkFunc) Health(ctx context.Context) error { return f(ctx) }

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func serve(t *testing.T, h *ForecastEchoHandler, target string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	e := echo.New()
	h.RegisterRoutes(e)

	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.RemoteAddr = "10.0.0.1:5000"
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	if env.Status != rec.Code {
		t.Fatalf("envelope status %d != http status %d", env.Status, rec.Code)
	}
	return rec, env
}

func TestPredictAppliesDefaults(t *testing.T) {
	f := &fakeForecaster{}
	rec, env := serve(t, NewForecastEchoHandler(nil, f), "/api/predict/aapl")

	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, body %s", rec.Code, rec.Body.String())
	}
	if f.gotSymbol != "AAPL" || f.gotSteps != 10 || f.gotLevel != 0.95 {
		t.Fatalf("forwarded (%s, %d, %v)", f.gotSymbol, f.gotSteps, f.gotLevel)
	}
	var pred models.Prediction
	if err := json.Unmarshal(env.Data, &pred); err != nil {
		t.Fatal(err)
	}
	if pred.Symbol != "AAPL" || pred.LivePrice != 100 {
		t.Fatalf("unexpected data %+v", pred)
	}
	if cc := rec.Header().Get(echo.HeaderCacheControl); cc != "private, max-age=30" {
		t.Fatalf("cache-control = %q", cc)
	}
}

func TestPredictPassesQuery(t *testing.T) {
	f := &fakeForecaster{}
	rec, _ := serve(t, NewForecastEchoHandler(nil, f), "/api/predict/MSFT?steps=30&confidence_level=0.8")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	if f.gotSteps != 30 || f.gotLevel != 0.8 {
		t.Fatalf("forwarded steps=%d level=%v", f.gotSteps, f.gotLevel)
	}
}

func TestPredictValidation(t *testing.T) {
	cases := []struct {
		query string
		field string
	}{
		{"steps=61", "steps"},
		{"steps=-1", "steps"},
		{"confidence_level=1.5", "confidence_level"},
	}
	for _, tc := range cases {
		t.Run(tc.query, func(t *testing.T) {
			rec, env := serve(t, NewForecastEchoHandler(nil, &fakeForecaster{}), "/api/predict/AAPL?"+tc.query)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("code = %d", rec.Code)
			}
			var errs []struct {
				Field string `json:"field"`
			}
			if err := json.Unmarshal(env.Data, &errs); err != nil {
				t.Fatal(err)
			}
			if len(errs) != 1 || errs[0].Field != tc.field {
				t.Fatalf("errors = %s", env.Data)
			}
		})
	}
}

func TestPredictBindError(t *testing.T) {
	rec, _ := serve(t, NewForecastEchoHandler(nil, &fakeForecaster{}), "/api/predict/AAPL?steps=ten")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("code = %d", rec.Code)
	}
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"unavailable", fmt.Errorf("history: %w", domsvc.ErrDataUnavailable), http.StatusNotFound},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, _ := serve(t, NewForecastEchoHandler(nil, &fakeForecaster{err: tc.err}), "/api/summary/AAPL")
			if rec.Code != tc.status {
				t.Fatalf("code = %d, want %d", rec.Code, tc.status)
			}
			if rec.Header().Get(echo.HeaderCacheControl) != "" {
				t.Fatal("errors must not be cacheable")
			}
		})
	}
}

func TestCompareFitFailureIs422(t *testing.T) {
	f := &fakeForecaster{compareErr: fmt.Errorf("arima: %w", domsvc.ErrModelFitting)}
	rec, env := serve(t, NewForecastEchoHandler(nil, f), "/api/compare/AAPL?steps=5")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("code = %d", rec.Code)
	}
	if f.gotSteps != 5 {
		t.Fatalf("steps = %d", f.gotSteps)
	}
	var errs []struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(env.Data, &errs); err != nil {
		t.Fatal(err)
	}
	if len(errs) != 1 || errs[0].Code != "ERR_UNPROCESSABLE" {
		t.Fatalf("errors = %s", env.Data)
	}
}

func TestRateLimitPerClient(t *testing.T) {
	h := NewForecastEchoHandler(nil, &fakeForecaster{}, WithRateLimiter(ratelimit.New(0.001, 1, time.Minute)))
	e := echo.New()
	h.RegisterRoutes(e)

	do := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/summary/AAPL", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec.Code
	}
	if code := do("10.0.0.1:1"); code != http.StatusOK {
		t.Fatalf("first = %d", code)
	}
	if code := do("10.0.0.1:2"); code != http.StatusTooManyRequests {
		t.Fatalf("second = %d", code)
	}
	if code := do("10.0.0.2:1"); code != http.StatusOK {
		t.Fatalf("other client = %d", code)
	}
}

func TestHealth(t *testing.T) {
	ok := checkFunc(func(context.Context) error { return nil })
	down := checkFunc(func(context.Context) error { return errors.New("connection refused") })

	rec, _ := serve(t, NewForecastEchoHandler(nil, &fakeForecaster{}, WithHealthCheck("redis", ok)), "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("healthy code = %d", rec.Code)
	}

	h := NewForecastEchoHandler(nil, &fakeForecaster{},
		WithHealthCheck("redis", ok),
		WithHealthCheck("clickhouse", down),
	)
	rec, env := serve(t, h, "/healthz")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("degraded code = %d", rec.Code)
	}
	var body struct {
		Dependencies map[string]string `json:"dependencies"`
	}
	if err := json.Unmarshal(env.Data, &body); err != nil {
		t.Fatal(err)
	}
	if body.Dependencies["redis"] != "ok" || body.Dependencies["clickhouse"] != "connection refused" {
		t.Fatalf("dependencies = %v", body.Dependencies)
	}
}
