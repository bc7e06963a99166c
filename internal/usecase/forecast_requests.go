package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	pkgkafka "FinCast/pkg/kafka"
	applogger "FinCast/pkg/logger"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

// ForecastRequestHandler consumes forecast requests from Kafka and runs Predict.
// The resulting Prediction is published by the Predictor.
type ForecastRequestHandler struct {
	topic     string
	predictor *Predictor
	metrics   domrepo.Metrics
	validate  *validator.Validate
	l         *applogger.Logger
}

func NewForecastRequestHandler(topic string, predictor *Predictor, metrics domrepo.Metrics, l *applogger.Logger) *ForecastRequestHandler {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &ForecastRequestHandler{
		topic:     topic,
		predictor: predictor,
		metrics:   metrics,
		validate:  validator.New(),
		l:         l,
	}
}

func (h *ForecastRequestHandler) Topic() string { return h.topic }

// incoming message schema: {symbol, steps, confidenceLevel}
func (h *ForecastRequestHandler) Handle(ctx context.Context, b []byte) error {
	var req models.PredictRequest
	if err := json.Unmarshal(b, &req); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return fmt.Errorf("%w: decode forecast request: %w", pkgkafka.ErrPermanent, err)
	}
	req.Symbol = models.NormalizeSymbol(req.Symbol)
	if err := defaults.Set(&req); err != nil {
		return fmt.Errorf("defaults: %w", err)
	}
	if err := h.validate.StructCtx(ctx, &req); err != nil {
		h.metrics.RecordError("consumer_validate")
		return fmt.Errorf("%w: %w: %w", pkgkafka.ErrPermanent, ErrInvalidRequest, err)
	}

	start := time.Now()
	_, err := h.predictor.Predict(ctx, req.Symbol, req.Steps, req.ConfidenceLevel)
	h.metrics.RecordLatency("consumer_predict_seconds", time.Since(start).Seconds())
	if err != nil {
		h.l.Error("forecast request failed", applogger.String("symbol", req.Symbol), applogger.Error(err))
		return err
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*ForecastRequestHandler)(nil)
