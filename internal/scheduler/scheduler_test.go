package scheduler

import (
	"context"
	"errors"
	"testing"

	"FinCast/internal/domain/models"
)

type fakeForecaster struct {
	calls []string
	fail  map[string]bool
}

func (f *fakeForecaster) Predict(_ context.Context, symbol string, steps int, level float64) (*models.Prediction, error) {
	f.calls = append(f.calls, symbol)
	if f.fail[symbol] {
		return nil, errors.New("boom")
	}
	return &models.Prediction{Symbol: symbol, PredictedT1: 1, ConfidenceLevel: level}, nil
}

func TestRunSkipsFailures(t *testing.T) {
	f := &fakeForecaster{fail: map[string]bool{"BAD": true}}
	s := New(f, []string{"AAPL", "BAD", "MSFT"}, nil, WithHorizon(5, 0.9))
	if got := s.run(context.Background()); got != 2 {
		t.Fatalf("ok = %d, want 2", got)
	}
	if len(f.calls) != 3 {
		t.Fatalf("calls = %v", f.calls)
	}
}

func TestRegisterRejectsBadSpec(t *testing.T) {
	s := New(&fakeForecaster{}, nil, nil)
	if err := s.Register("not a cron"); err == nil {
		t.Fatalf("expected error for invalid spec")
	}
	if err := s.Register("0 18 * * 1-5"); err != nil {
		t.Fatalf("Register: %v", err)
	}
}
