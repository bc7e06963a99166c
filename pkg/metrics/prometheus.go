package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fincast"

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	forecasts  *prometheus.CounterVec
	recovered  *prometheus.CounterVec
	errors     *prometheus.CounterVec
	confidence *prometheus.GaugeVec
	latency    *prometheus.HistogramVec
}

// New registers the forecast metrics on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		forecasts: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "forecasts_total",
				Help:      "Total number of forecasts produced",
			},
			[]string{"symbol", "fallback"},
		),
		recovered: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "recovered_errors_total",
				Help:      "Errors that degraded a forecast instead of failing it",
			},
			[]string{"kind"},
		),
		errors: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of errors returned to callers",
			},
			[]string{"type"},
		),
		confidence: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "confidence_score",
				Help:      "Last confidence score for a symbol",
			},
			[]string{"symbol"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Duration of operations in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"operation"},
		),
	}
}

// RecordForecast counts a produced forecast and observes its duration.
func (r *Recorder) RecordForecast(symbol string, fallback bool, seconds float64) {
	r.forecasts.WithLabelValues(symbol, strconv.FormatBool(fallback)).Inc()
	r.latency.WithLabelValues("forecast").Observe(seconds)
}

func (r *Recorder) RecordRecovered(kind string) {
	r.recovered.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordConfidence(symbol string, score float64) {
	r.confidence.WithLabelValues(symbol).Set(score)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errors.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
