package scheduler

import (
	"context"
	"fmt"
	"time"

	"FinCast/internal/domain/models"
	applogger "FinCast/pkg/logger"

	"github.com/robfig/cron/v3"
)

// Forecaster is the part of the predictor the watch-list job needs.
type Forecaster interface {
	Predict(ctx context.Context, symbol string, steps int, level float64) (*models.Prediction, error)
}

// Scheduler periodically forecasts every watch-list symbol. Results reach
// consumers through the predictor's publisher.
type Scheduler struct {
	cron      *cron.Cron
	predictor Forecaster
	symbols   []string
	steps     int
	level     float64
	timeout   time.Duration
	l         *applogger.Logger
}

type Option func(*Scheduler)

func WithHorizon(steps int, level float64) Option {
	return func(s *Scheduler) {
		s.steps = steps
		s.level = level
	}
}

// WithJobTimeout bounds a single symbol's forecast.
func WithJobTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func New(predictor Forecaster, symbols []string, l *applogger.Logger, opts ...Option) *Scheduler {
	if l == nil {
		l = applogger.Nop()
	}
	s := &Scheduler{
		cron:      cron.New(),
		predictor: predictor,
		symbols:   symbols,
		timeout:   time.Minute,
		l:         l,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Register adds the watch-list job on a standard five-field cron spec.
func (s *Scheduler) Register(spec string) error {
	if _, err := s.cron.AddFunc(spec, s.RunOnce); err != nil {
		return fmt.Errorf("register watchlist job %q: %w", spec, err)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.l.Info("scheduler started", applogger.Int("symbols", len(s.symbols)))
}

// Stop waits for a running job to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.l.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

// RunOnce forecasts each symbol in order. Failures are logged and skipped.
func (s *Scheduler) RunOnce() {
	s.run(context.Background())
}

// run returns the number of successful forecasts.
func (s *Scheduler) run(parent context.Context) int {
	ok := 0
	for _, sym := range s.symbols {
		ctx, cancel := context.WithTimeout(parent, s.timeout)
		pred, err := s.predictor.Predict(ctx, sym, s.steps, s.level)
		cancel()
		if err != nil {
			s.l.Warn("watchlist forecast failed", applogger.String("symbol", sym), applogger.Error(err))
			continue
		}
		ok++
		s.l.Debug("watchlist forecast",
			applogger.String("symbol", sym),
			applogger.Float64("t1", pred.PredictedT1),
			applogger.Float64("confidence", pred.ConfidenceScore),
		)
	}
	return ok
}
