package repository

import (
	"context"
	"fmt"
	"time"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	pkgkafka "FinCast/pkg/kafka"

	"github.com/google/uuid"
)

// EventSource tags events produced by this service.
const EventSource = "fincast"

type eventProducer interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}, headers ...pkgkafka.Header) error
	Close() error
}

// KafkaForecastPublisher publishes each Prediction as a ForecastEvent keyed by symbol.
type KafkaForecastPublisher struct {
	producer eventProducer
	topic    string
	now      func() time.Time
}

var _ domrepo.ForecastPublisher = (*KafkaForecastPublisher)(nil)

func NewKafkaForecastPublisher(p *pkgkafka.Producer, topic string) *KafkaForecastPublisher {
	return &KafkaForecastPublisher{producer: p, topic: topic, now: time.Now}
}

func (p *KafkaForecastPublisher) PublishPrediction(ctx context.Context, pred *models.Prediction) error {
	if pred == nil {
		return nil
	}
	ev := models.ForecastEvent{
		ID:         uuid.NewString(),
		Source:     EventSource,
		ProducedAt: p.now().UTC(),
		Prediction: *pred,
	}
	if err := p.producer.Publish(ctx, p.topic, []byte(pred.Symbol), ev,
		pkgkafka.Header{Key: "event_id", Value: ev.ID},
		pkgkafka.Header{Key: "content_type", Value: "application/json"},
	); err != nil {
		return fmt.Errorf("publish forecast %s: %w", pred.Symbol, err)
	}
	return nil
}

func (p *KafkaForecastPublisher) Close() error {
	return p.producer.Close()
}
