// Package alphavantage implements a SeriesProvider on the Alpha Vantage REST API.
package alphavantage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"FinCast/internal/domain/models"
	drepo "FinCast/internal/domain/repository"
	domsvc "FinCast/internal/domain/service"
	xhttp "FinCast/pkg/http"
	applogger "FinCast/pkg/logger"

	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://www.alphavantage.co/query"

	dailyKey    = "Time Series (Daily)"
	intradayKey = "Time Series (1min)"
	closeField  = "4. close"

	dailyLayout    = "2006-01-02"
	intradayLayout = "2006-01-02 15:04:05"
)

var (
	errNoAPIKey = errors.New("alphavantage: api key not configured")
	// the free tier answers throttled or invalid calls with 200 and a message body
	errThrottled = errors.New("alphavantage: request throttled")
)

// bar is one OHLCV entry; only the close is used.
type bar map[string]string

type response struct {
	Note         string         `json:"Note"`
	Information  string         `json:"Information"`
	ErrorMessage string         `json:"Error Message"`
	Daily        map[string]bar `json:"Time Series (Daily)"`
	Intraday     map[string]bar `json:"Time Series (1min)"`
}

// Client fetches daily history and the latest intraday close.
type Client struct {
	http     *xhttp.Client
	baseURL  string
	apiKey   string
	location *time.Location
	limiter  *rate.Limiter
	l        *applogger.Logger
}

type Option func(*Client)

// WithBaseURL points the client at another endpoint, used by tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithRateLimit caps outbound calls per minute. Zero disables limiting.
func WithRateLimit(perMinute int) Option {
	return func(c *Client) {
		if perMinute <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
	}
}

func WithHTTPClient(h *xhttp.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithLogger(l *applogger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.l = l
		}
	}
}

// WithLocation sets the exchange time zone used to parse timestamps.
func WithLocation(loc *time.Location) Option {
	return func(c *Client) {
		if loc != nil {
			c.location = loc
		}
	}
}

// New creates a client. The free tier allows five calls a minute.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		http:     xhttp.NewClient(xhttp.WithTimeout(15 * time.Second)),
		baseURL:  DefaultBaseURL,
		apiKey:   apiKey,
		location: time.UTC,
		l:        applogger.Nop(),
	}
	WithRateLimit(5)(c)
	for _, o := range opts {
		o(c)
	}
	return c
}

var _ drepo.SeriesProvider = (*Client)(nil)

// Historical returns the compact (about 100 sessions) daily close history.
func (c *Client) Historical(ctx context.Context, symbol string) (models.PriceSeries, error) {
	var resp response
	if err := c.query(ctx, symbol, map[string][]string{
		"function":   {"TIME_SERIES_DAILY"},
		"outputsize": {"compact"},
	}, &resp); err != nil {
		return models.PriceSeries{}, err
	}
	if len(resp.Daily) == 0 {
		return models.PriceSeries{}, fmt.Errorf("%w: %s missing %q", domsvc.ErrDataUnavailable, symbol, dailyKey)
	}
	pts, err := c.points(resp.Daily, dailyLayout)
	if err != nil {
		return models.PriceSeries{}, fmt.Errorf("%w: %s: %v", domsvc.ErrDataUnavailable, symbol, err)
	}
	s := models.PriceSeries{Symbol: symbol, Points: pts}
	if err := s.Validate(); err != nil {
		return models.PriceSeries{}, fmt.Errorf("%w: %w", domsvc.ErrDataUnavailable, err)
	}
	c.l.Debug("daily history fetched", applogger.String("symbol", symbol), applogger.Int("points", len(pts)))
	return s, nil
}

// LivePrice returns the most recent one-minute close.
func (c *Client) LivePrice(ctx context.Context, symbol string) (float64, time.Time, error) {
	var resp response
	if err := c.query(ctx, symbol, map[string][]string{
		"function": {"TIME_SERIES_INTRADAY"},
		"interval": {"1min"},
	}, &resp); err != nil {
		return 0, time.Time{}, err
	}
	if len(resp.Intraday) == 0 {
		return 0, time.Time{}, fmt.Errorf("%w: %s missing %q", domsvc.ErrDataUnavailable, symbol, intradayKey)
	}
	pts, err := c.points(resp.Intraday, intradayLayout)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("%w: %s: %v", domsvc.ErrDataUnavailable, symbol, err)
	}
	last := pts[len(pts)-1]
	return last.Price, last.Time, nil
}

func (c *Client) query(ctx context.Context, symbol string, params map[string][]string, dest *response) error {
	if c.apiKey == "" {
		return fmt.Errorf("%w: %w", domsvc.ErrDataUnavailable, errNoAPIKey)
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: rate limiter: %v", domsvc.ErrDataUnavailable, err)
		}
	}
	params["symbol"] = []string{strings.ToUpper(symbol)}
	params["apikey"] = []string{c.apiKey}

	start := time.Now()
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         c.baseURL,
		QueryParams: params,
	}, dest)
	if err != nil {
		c.l.Warn("alphavantage request failed",
			applogger.String("symbol", symbol),
			applogger.String("function", params["function"][0]),
			applogger.Error(err))
		return fmt.Errorf("%w: %s: %w", domsvc.ErrDataUnavailable, params["function"][0], err)
	}
	c.l.Debug("alphavantage request",
		applogger.String("symbol", symbol),
		applogger.String("function", params["function"][0]),
		applogger.Duration("took", time.Since(start)))

	switch {
	case dest.ErrorMessage != "":
		return fmt.Errorf("%w: %s", domsvc.ErrDataUnavailable, dest.ErrorMessage)
	case dest.Note != "":
		return fmt.Errorf("%w: %w: %s", domsvc.ErrDataUnavailable, errThrottled, dest.Note)
	case dest.Information != "" && len(dest.Daily) == 0 && len(dest.Intraday) == 0:
		return fmt.Errorf("%w: %w: %s", domsvc.ErrDataUnavailable, errThrottled, dest.Information)
	}
	return nil
}

// points parses a keyed time series into closes sorted oldest first.
func (c *Client) points(ts map[string]bar, layout string) ([]models.PricePoint, error) {
	out := make([]models.PricePoint, 0, len(ts))
	for k, b := range ts {
		at, err := time.ParseInLocation(layout, k, c.location)
		if err != nil {
			return nil, fmt.Errorf("parse time %q: %w", k, err)
		}
		raw, ok := b[closeField]
		if !ok {
			return nil, fmt.Errorf("entry %s has no %q", k, closeField)
		}
		price, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("parse close %q at %s: %w", raw, k, err)
		}
		out = append(out, models.PricePoint{Time: at, Price: price})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out, nil
}
