package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	pkgcache "FinCast/pkg/cache"
	applogger "FinCast/pkg/logger"
)

const seriesKeyPrefix = "series:daily"

type cachedSeries struct {
	Symbol string              `json:"symbol"`
	Points []models.PricePoint `json:"points"`
}

// CachedSeries caches daily history from another provider. Live prices always
// go to the inner provider.
type CachedSeries struct {
	inner domrepo.SeriesProvider
	cache pkgcache.Service
	ttl   time.Duration
	l     *applogger.Logger
}

var _ domrepo.SeriesProvider = (*CachedSeries)(nil)

func NewCachedSeries(inner domrepo.SeriesProvider, cache pkgcache.Service, ttl time.Duration, l *applogger.Logger) *CachedSeries {
	if l == nil {
		l = applogger.Nop()
	}
	return &CachedSeries{inner: inner, cache: cache, ttl: ttl, l: l}
}

func seriesKey(symbol string) string {
	return pkgcache.Key(seriesKeyPrefix, strings.ToUpper(symbol))
}

func (c *CachedSeries) Historical(ctx context.Context, symbol string) (models.PriceSeries, error) {
	key := seriesKey(symbol)
	var hit cachedSeries
	err := c.cache.Get(ctx, key, &hit)
	switch {
	case err == nil && len(hit.Points) > 0:
		return models.PriceSeries{Symbol: hit.Symbol, Points: hit.Points}, nil
	case err != nil && !errors.Is(err, pkgcache.ErrCacheMiss):
		c.l.Warn("series cache read failed", applogger.String("symbol", symbol), applogger.Error(err))
	}

	s, err := c.inner.Historical(ctx, symbol)
	if err != nil {
		return models.PriceSeries{}, err
	}
	if err := c.cache.Set(ctx, key, cachedSeries{Symbol: s.Symbol, Points: s.Points}, c.ttl); err != nil {
		c.l.Warn("series cache write failed", applogger.String("symbol", symbol), applogger.Error(err))
	}
	return s, nil
}

func (c *CachedSeries) LivePrice(ctx context.Context, symbol string) (float64, time.Time, error) {
	return c.inner.LivePrice(ctx, symbol)
}

// Invalidate drops the cached history for symbol.
func (c *CachedSeries) Invalidate(ctx context.Context, symbol string) error {
	return c.cache.Delete(ctx, seriesKey(symbol))
}
