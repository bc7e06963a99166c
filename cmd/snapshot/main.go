// Command snapshot copies Alpha Vantage daily closes and the latest intraday
// price into the SQLite dataset used by the sqlite provider.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"FinCast/internal/repository"
	"FinCast/internal/service/alphavantage"
	"FinCast/pkg/config"
	applogger "FinCast/pkg/logger"

	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "config file path")
	symbols := flag.String("symbols", "", "comma separated symbols, defaults to the scheduler watchlist")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Fatalf("load .env: %v", err)
	}

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	l, err := applogger.New(&applogger.Config{Level: cfg.Log.Level, Format: "console", Output: "stdout"})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}

	list := cfg.Scheduler.Watchlist
	if *symbols != "" {
		list = strings.Split(*symbols, ",")
	}
	if len(list) == 0 {
		log.Fatal("no symbols: pass -symbols or set scheduler.watchlist")
	}

	store, err := repository.OpenSQLiteSeries(cfg.SQLite.Path, cfg.SQLite.HistoryLimit)
	if err != nil {
		log.Fatalf("open sqlite: %v", err)
	}
	defer store.Close()

	av := alphavantage.New(cfg.AlphaVantage.APIKey,
		alphavantage.WithBaseURL(cfg.AlphaVantage.BaseURL),
		alphavantage.WithRateLimit(cfg.AlphaVantage.RequestsPerMinute),
		alphavantage.WithLogger(l),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	failed := 0
	for _, sym := range list {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if err := snapshot(ctx, av, store, sym); err != nil {
			l.Error("snapshot failed", applogger.String("symbol", sym), applogger.Error(err))
			failed++
			if ctx.Err() != nil {
				break
			}
			continue
		}
		l.Info("snapshot stored", applogger.String("symbol", sym))
	}
	if failed > 0 {
		store.Close()
		os.Exit(1)
	}
}

func snapshot(ctx context.Context, av *alphavantage.Client, store *repository.SQLiteSeries, symbol string) error {
	series, err := av.Historical(ctx, symbol)
	if err != nil {
		return err
	}
	if err := store.UpsertDaily(ctx, symbol, series.Points); err != nil {
		return err
	}
	price, at, err := av.LivePrice(ctx, symbol)
	if err != nil {
		return err
	}
	return store.RecordTick(ctx, symbol, price, at)
}
