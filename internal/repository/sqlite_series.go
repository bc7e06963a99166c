package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	domsvc "FinCast/internal/domain/service"
	applogger "FinCast/pkg/logger"

	_ "modernc.org/sqlite"
)

// SQLiteSeries serves an offline price dataset stored in a SQLite file.
// Times are unix seconds in UTC.
type SQLiteSeries struct {
	db    *sql.DB
	mu    sync.Mutex
	limit int
	l     *applogger.Logger
}

var _ domrepo.SeriesProvider = (*SQLiteSeries)(nil)

// OpenSQLiteSeries opens (or creates) the database at path and migrates it.
func OpenSQLiteSeries(path string, limit int) (*SQLiteSeries, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if path == ":memory:" {
		// each pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if limit <= 0 {
		limit = 2 * models.DefaultWindow
	}
	s := &SQLiteSeries{db: db, limit: limit, l: applogger.Nop()}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteSeries) SetLogger(l *applogger.Logger) {
	if l != nil {
		s.l = l
	}
}

func (s *SQLiteSeries) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS daily_closes (
			symbol TEXT    NOT NULL,
			day    INTEGER NOT NULL,
			close  REAL    NOT NULL,
			PRIMARY KEY (symbol, day)
		)`,
		`CREATE TABLE IF NOT EXISTS ticks (
			id     INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol TEXT    NOT NULL,
			ts     INTEGER NOT NULL,
			price  REAL    NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ticks_symbol_ts ON ticks(symbol, ts)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// UpsertDaily stores closes for symbol, replacing existing days.
func (s *SQLiteSeries) UpsertDaily(ctx context.Context, symbol string, pts []models.PricePoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO daily_closes (symbol, day, close) VALUES (?, ?, ?)
		 ON CONFLICT(symbol, day) DO UPDATE SET close = excluded.close`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()
	for _, p := range pts {
		if _, err := stmt.ExecContext(ctx, symbol, p.Time.Unix(), p.Price); err != nil {
			return fmt.Errorf("insert close %s: %w", p.Time.Format(models.DateLayout), err)
		}
	}
	return tx.Commit()
}

// RecordTick appends a live trade price.
func (s *SQLiteSeries) RecordTick(ctx context.Context, symbol string, price float64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `INSERT INTO ticks (symbol, ts, price) VALUES (?, ?, ?)`, symbol, at.Unix(), price)
	if err != nil {
		return fmt.Errorf("insert tick: %w", err)
	}
	return nil
}

func (s *SQLiteSeries) Historical(ctx context.Context, symbol string) (models.PriceSeries, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT day, close FROM (
			SELECT day, close FROM daily_closes
			WHERE symbol = ?
			ORDER BY day DESC
			LIMIT ?
		) ORDER BY day ASC`, symbol, s.limit)
	if err != nil {
		return models.PriceSeries{}, fmt.Errorf("%w: sqlite historical: %v", domsvc.ErrDataUnavailable, err)
	}
	defer rows.Close()

	var pts []models.PricePoint
	for rows.Next() {
		var (
			day   int64
			price float64
		)
		if err := rows.Scan(&day, &price); err != nil {
			return models.PriceSeries{}, fmt.Errorf("%w: scan close: %v", domsvc.ErrDataUnavailable, err)
		}
		pts = append(pts, models.PricePoint{Time: time.Unix(day, 0).UTC(), Price: price})
	}
	if err := rows.Err(); err != nil {
		return models.PriceSeries{}, fmt.Errorf("%w: rows: %v", domsvc.ErrDataUnavailable, err)
	}
	if len(pts) == 0 {
		return models.PriceSeries{}, fmt.Errorf("%w: no daily closes for %s", domsvc.ErrDataUnavailable, symbol)
	}
	s.l.Debug("sqlite historical ok", applogger.String("symbol", symbol), applogger.Int("rows", len(pts)))
	return models.PriceSeries{Symbol: symbol, Points: pts}, nil
}

// LivePrice returns the newest tick, or the newest daily close when no tick exists.
func (s *SQLiteSeries) LivePrice(ctx context.Context, symbol string) (float64, time.Time, error) {
	var (
		price float64
		ts    int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT price, ts FROM ticks WHERE symbol = ? ORDER BY ts DESC, id DESC LIMIT 1`, symbol).Scan(&price, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		err = s.db.QueryRowContext(ctx,
			`SELECT close, day FROM daily_closes WHERE symbol = ? ORDER BY day DESC LIMIT 1`, symbol).Scan(&price, &ts)
	}
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return 0, time.Time{}, fmt.Errorf("%w: no prices for %s", domsvc.ErrDataUnavailable, symbol)
	case err != nil:
		return 0, time.Time{}, fmt.Errorf("%w: sqlite live price: %v", domsvc.ErrDataUnavailable, err)
	}
	return price, time.Unix(ts, 0).UTC(), nil
}

// Close closes the database.
func (s *SQLiteSeries) Close() error {
	return s.db.Close()
}
