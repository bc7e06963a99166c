package repository

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"FinCast/internal/domain/models"
	domsvc "FinCast/internal/domain/service"
	pkgcache "FinCast/pkg/cache"
	pkgkafka "FinCast/pkg/kafka"

	"github.com/google/uuid"
)

func day(i int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
}

func TestSQLiteSeriesRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSQLiteSeries(":memory:", 3)
	if err != nil {
		t.Fatalf("OpenSQLiteSeries: %v", err)
	}
	defer s.Close()

	pts := []models.PricePoint{
		{Time: day(3), Price: 13}, {Time: day(1), Price: 11},
		{Time: day(2), Price: 12}, {Time: day(0), Price: 10},
	}
	if err := s.UpsertDaily(ctx, "AAPL", pts); err != nil {
		t.Fatalf("UpsertDaily: %v", err)
	}
	// replacing a day keeps one row
	if err := s.UpsertDaily(ctx, "AAPL", []models.PricePoint{{Time: day(3), Price: 14}}); err != nil {
		t.Fatalf("UpsertDaily: %v", err)
	}

	got, err := s.Historical(ctx, "AAPL")
	if err != nil {
		t.Fatalf("Historical: %v", err)
	}
	want := []float64{11, 12, 14}
	if got.Len() != len(want) {
		t.Fatalf("len = %d, want %d (limit)", got.Len(), len(want))
	}
	for i, p := range got.Points {
		if p.Price != want[i] {
			t.Errorf("point %d = %v, want %v", i, p.Price, want[i])
		}
	}
	if err := got.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}

	// no tick yet: the newest close stands in
	price, at, err := s.LivePrice(ctx, "AAPL")
	if err != nil || price != 14 || !at.Equal(day(3)) {
		t.Fatalf("LivePrice = %v %v %v", price, at, err)
	}
	tick := day(3).Add(15 * time.Hour)
	if err := s.RecordTick(ctx, "AAPL", 14.5, tick); err != nil {
		t.Fatalf("RecordTick: %v", err)
	}
	price, at, err = s.LivePrice(ctx, "AAPL")
	if err != nil || price != 14.5 || !at.Equal(tick) {
		t.Fatalf("LivePrice after tick = %v %v %v", price, at, err)
	}
}

func TestSQLiteSeriesMissingSymbol(t *testing.T) {
	s, err := OpenSQLiteSeries(":memory:", 0)
	if err != nil {
		t.Fatalf("OpenSQLiteSeries: %v", err)
	}
	defer s.Close()
	if _, err := s.Historical(context.Background(), "ZZZ"); !errors.Is(err, domsvc.ErrDataUnavailable) {
		t.Errorf("Historical err = %v", err)
	}
	if _, _, err := s.LivePrice(context.Background(), "ZZZ"); !errors.Is(err, domsvc.ErrDataUnavailable) {
		t.Errorf("LivePrice err = %v", err)
	}
}

type countingProvider struct {
	historical int
	series     models.PriceSeries
	err        error
}

func (p *countingProvider) Historical(context.Context, string) (models.PriceSeries, error) {
	p.historical++
	return p.series, p.err
}

func (p *countingProvider) LivePrice(context.Context, string) (float64, time.Time, error) {
	return 42, day(10), nil
}

func TestCachedSeriesServesHistoryFromCache(t *testing.T) {
	ctx := context.Background()
	inner := &countingProvider{series: models.PriceSeries{
		Symbol: "AAPL",
		Points: []models.PricePoint{{Time: day(0), Price: 1}, {Time: day(1), Price: 2}},
	}}
	mc := pkgcache.NewMemoryCache()
	defer mc.Close()
	c := NewCachedSeries(inner, mc, time.Hour, nil)

	for i := 0; i < 3; i++ {
		s, err := c.Historical(ctx, "aapl")
		if err != nil {
			t.Fatalf("Historical: %v", err)
		}
		if s.Len() != 2 || !s.Last().Time.Equal(day(1)) {
			t.Fatalf("series = %+v", s)
		}
	}
	if inner.historical != 1 {
		t.Fatalf("inner calls = %d, want 1", inner.historical)
	}

	if err := c.Invalidate(ctx, "AAPL"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	_, _ = c.Historical(ctx, "AAPL")
	if inner.historical != 2 {
		t.Fatalf("inner calls after invalidate = %d, want 2", inner.historical)
	}

	if p, _, _ := c.LivePrice(ctx, "AAPL"); p != 42 {
		t.Errorf("LivePrice = %v", p)
	}
}

func TestCachedSeriesDoesNotCacheErrors(t *testing.T) {
	inner := &countingProvider{err: domsvc.ErrDataUnavailable}
	mc := pkgcache.NewMemoryCache()
	defer mc.Close()
	c := NewCachedSeries(inner, mc, time.Hour, nil)
	for i := 0; i < 2; i++ {
		if _, err := c.Historical(context.Background(), "X"); !errors.Is(err, domsvc.ErrDataUnavailable) {
			t.Fatalf("err = %v", err)
		}
	}
	if inner.historical != 2 {
		t.Fatalf("inner calls = %d, want 2", inner.historical)
	}
}

func TestFileOrderStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	for _, name := range []string{"orders.yaml", "orders.json"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)
			s := NewFileOrderStore(path)
			spec := models.ModelSpec{
				Order:    models.Order{P: 2, D: 1, Q: 1},
				Seasonal: models.SeasonalOrder{P: 1, D: 0, Q: 1, S: 7},
			}
			if err := s.Save(ctx, spec); err != nil {
				t.Fatalf("Save: %v", err)
			}
			got, err := s.Load(ctx)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if got != spec {
				t.Fatalf("got %+v, want %+v", got, spec)
			}
		})
	}
}

func TestFileOrderStoreRejectsCorruptBundle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.yaml")
	if err := os.WriteFile(path, []byte("version: 2\nnonSeasonalOrder: [1,1,1]\nseasonalOrder: [0,0,0,0]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := NewFileOrderStore(path).Load(context.Background())
	if !errors.Is(err, domsvc.ErrStorageUnavailable) || !errors.Is(err, models.ErrInvalidBundle) {
		t.Fatalf("err = %v, want storage unavailable wrapping invalid bundle", err)
	}
}

type recMetrics struct{ recovered []string }

func (m *recMetrics) RecordForecast(string, bool, float64) {}
func (m *recMetrics) RecordRecovered(kind string)          { m.recovered = append(m.recovered, kind) }
func (m *recMetrics) RecordConfidence(string, float64)     {}
func (m *recMetrics) RecordError(string)                   {}
func (m *recMetrics) RecordLatency(string, float64)        {}

type flipStore struct {
	spec models.ModelSpec
	err  error
}

func (s *flipStore) Load(context.Context) (models.ModelSpec, error) { return s.spec, s.err }

func TestDefaultingOrderStore(t *testing.T) {
	ctx := context.Background()
	inner := &flipStore{err: errors.New("disk gone")}
	m := &recMetrics{}
	s := NewDefaultingOrderStore(inner, m, nil)

	got, err := s.Load(ctx)
	if err != nil || got != models.DefaultModelSpec() {
		t.Fatalf("first load = %+v, %v; want defaults", got, err)
	}

	custom := models.ModelSpec{Order: models.Order{P: 1, D: 1}}
	inner.spec, inner.err = custom, nil
	if got, _ := s.Load(ctx); got != custom {
		t.Fatalf("load = %+v, want %+v", got, custom)
	}

	inner.err = domsvc.ErrStorageUnavailable
	if got, _ := s.Load(ctx); got != models.DefaultModelSpec() {
		t.Fatalf("after failure load = %+v, want defaults", got)
	}
	if len(m.recovered) != 2 || m.recovered[0] != "storage_unavailable" {
		t.Fatalf("recovered = %v", m.recovered)
	}
}

func TestDefaultingOrderStoreCorruptFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "orders.yaml")
	file := NewFileOrderStore(path)
	custom := models.ModelSpec{
		Order:    models.Order{P: 2, D: 1, Q: 1},
		Seasonal: models.SeasonalOrder{P: 1, S: 7},
	}
	if err := file.Save(ctx, custom); err != nil {
		t.Fatalf("Save: %v", err)
	}

	s := NewDefaultingOrderStore(file, nil, nil)
	fallback := models.ModelSpec{Order: models.Order{P: 3, D: 1}, Seasonal: models.SeasonalOrder{P: 1, D: 1, Q: 1, S: 5}}
	s.SetFallback(fallback)
	if got, _ := s.Load(ctx); got != custom {
		t.Fatalf("load = %+v, want %+v", got, custom)
	}

	if err := os.WriteFile(path, []byte("version: [corrupt"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got, err := s.Load(ctx); err != nil || got != fallback {
		t.Fatalf("corrupt bundle load = %+v, %v; want fallback %+v", got, err, fallback)
	}
}

type captureProducer struct {
	topic   string
	key     []byte
	value   interface{}
	headers []pkgkafka.Header
}

func (p *captureProducer) Publish(_ context.Context, topic string, key []byte, value interface{}, headers ...pkgkafka.Header) error {
	p.topic, p.key, p.value, p.headers = topic, key, value, headers
	return nil
}

func (p *captureProducer) Close() error { return nil }

func TestKafkaForecastPublisherBuildsEvent(t *testing.T) {
	cp := &captureProducer{}
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	pub := &KafkaForecastPublisher{producer: cp, topic: "forecasts", now: func() time.Time { return fixed }}

	pred := &models.Prediction{Symbol: "AAPL", PredictedT1: 101.5}
	if err := pub.PublishPrediction(context.Background(), pred); err != nil {
		t.Fatalf("PublishPrediction: %v", err)
	}
	if cp.topic != "forecasts" || string(cp.key) != "AAPL" {
		t.Fatalf("topic/key = %s/%s", cp.topic, cp.key)
	}
	ev, ok := cp.value.(models.ForecastEvent)
	if !ok {
		t.Fatalf("value type %T", cp.value)
	}
	if _, err := uuid.Parse(ev.ID); err != nil {
		t.Errorf("event id %q: %v", ev.ID, err)
	}
	if ev.Source != EventSource || !ev.ProducedAt.Equal(fixed) || ev.Prediction.PredictedT1 != 101.5 {
		t.Errorf("event = %+v", ev)
	}
	if len(cp.headers) == 0 || cp.headers[0].Value != ev.ID {
		t.Errorf("headers = %+v", cp.headers)
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back map[string]any
	_ = json.Unmarshal(raw, &back)
	if _, ok := back["producedAt"]; !ok {
		t.Errorf("event json missing producedAt: %s", raw)
	}
}
