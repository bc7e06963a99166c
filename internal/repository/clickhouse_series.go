package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	domsvc "FinCast/internal/domain/service"
	pkgch "FinCast/pkg/clickhouse"
	applogger "FinCast/pkg/logger"
)

// ClickHouseSchema creates the tables ClickHouseSeries reads from.
func ClickHouseSchema(db string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.daily_closes (
            symbol LowCardinality(String),
            day    Date,
            close  Float64
        ) ENGINE = ReplacingMergeTree ORDER BY (symbol, day)`, db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.ticks (
            symbol LowCardinality(String),
            ts     DateTime64(3),
            price  Float64
        ) ENGINE = MergeTree ORDER BY (symbol, ts) TTL toDateTime(ts) + INTERVAL 7 DAY`, db),
	}
}

// ClickHouseSeries serves daily closes and the latest tick from ClickHouse.
type ClickHouseSeries struct {
	db       *sql.DB
	database string
	limit    int
	l        *applogger.Logger
}

// NewClickHouseSeries reads at most limit daily closes per symbol.
func NewClickHouseSeries(ch *pkgch.Client, database string, limit int) *ClickHouseSeries {
	if limit <= 0 {
		limit = 2 * models.DefaultWindow
	}
	return &ClickHouseSeries{db: ch.DB(), database: database, limit: limit, l: applogger.Nop()}
}

var _ domrepo.SeriesProvider = (*ClickHouseSeries)(nil)

// SetLogger injects a structured logger.
func (s *ClickHouseSeries) SetLogger(l *applogger.Logger) {
	if l != nil {
		s.l = l
	}
}

func (s *ClickHouseSeries) Historical(ctx context.Context, symbol string) (models.PriceSeries, error) {
	start := time.Now()
	q := fmt.Sprintf(`
        SELECT day, close FROM (
            SELECT day, close
            FROM %s.daily_closes FINAL
            WHERE symbol = ?
            ORDER BY day DESC
            LIMIT ?
        ) ORDER BY day ASC`, s.database)
	rows, err := s.db.QueryContext(ctx, q, symbol, s.limit)
	if err != nil {
		s.l.Error("clickhouse historical query error", applogger.String("symbol", symbol), applogger.Error(err))
		return models.PriceSeries{}, fmt.Errorf("%w: clickhouse historical: %v", domsvc.ErrDataUnavailable, err)
	}
	defer rows.Close()

	pts := make([]models.PricePoint, 0, s.limit)
	for rows.Next() {
		var p models.PricePoint
		if err := rows.Scan(&p.Time, &p.Price); err != nil {
			s.l.Error("clickhouse historical scan error", applogger.String("symbol", symbol), applogger.Error(err))
			return models.PriceSeries{}, fmt.Errorf("%w: scan close: %v", domsvc.ErrDataUnavailable, err)
		}
		pts = append(pts, p)
	}
	if err := rows.Err(); err != nil {
		return models.PriceSeries{}, fmt.Errorf("%w: rows: %v", domsvc.ErrDataUnavailable, err)
	}
	if len(pts) == 0 {
		return models.PriceSeries{}, fmt.Errorf("%w: no daily closes for %s", domsvc.ErrDataUnavailable, symbol)
	}
	s.l.Debug("clickhouse historical ok",
		applogger.String("symbol", symbol),
		applogger.Int("rows", len(pts)),
		applogger.Duration("took", time.Since(start)))
	return models.PriceSeries{Symbol: symbol, Points: pts}, nil
}

func (s *ClickHouseSeries) LivePrice(ctx context.Context, symbol string) (float64, time.Time, error) {
	q := fmt.Sprintf(`SELECT price, ts FROM %s.ticks WHERE symbol = ? ORDER BY ts DESC LIMIT 1`, s.database)
	var (
		price float64
		at    time.Time
	)
	err := s.db.QueryRowContext(ctx, q, symbol).Scan(&price, &at)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return 0, time.Time{}, fmt.Errorf("%w: no ticks for %s", domsvc.ErrDataUnavailable, symbol)
	case err != nil:
		s.l.Error("clickhouse live price error", applogger.String("symbol", symbol), applogger.Error(err))
		return 0, time.Time{}, fmt.Errorf("%w: clickhouse live price: %v", domsvc.ErrDataUnavailable, err)
	}
	return price, at, nil
}
