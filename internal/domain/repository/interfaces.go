package repository

import (
	"context"
	"time"

	"FinCast/internal/domain/models"
)

// SeriesProvider supplies daily closes and the latest traded price for a symbol.
// Missing or unreadable data is reported wrapped in service.ErrDataUnavailable.
type SeriesProvider interface {
	Historical(ctx context.Context, symbol string) (models.PriceSeries, error)
	LivePrice(ctx context.Context, symbol string) (float64, time.Time, error)
}

// OrderStore loads the persisted model orders.
type OrderStore interface {
	Load(ctx context.Context) (models.ModelSpec, error)
}

// OrderWriter persists model orders. Implemented by the file and redis stores.
type OrderWriter interface {
	Save(ctx context.Context, spec models.ModelSpec) error
}

// ForecastPublisher fans computed predictions out to downstream consumers.
type ForecastPublisher interface {
	PublishPrediction(ctx context.Context, p *models.Prediction) error
	Close() error
}

type Metrics interface {
	RecordForecast(symbol string, fallback bool, seconds float64)
	RecordRecovered(kind string)
	RecordConfidence(symbol string, score float64)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
