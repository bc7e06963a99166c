package models

import (
	"errors"
	"fmt"
	"time"
)

// DefaultWindow is the number of most recent points a forecast works on.
const DefaultWindow = 120

var ErrInvalidSeries = errors.New("invalid price series")

// PricePoint is a single closing price.
type PricePoint struct {
	Time  time.Time `json:"date"`
	Price float64   `json:"price"`
}

// PriceSeries is an ordered run of closes for one symbol, oldest first.
type PriceSeries struct {
	Symbol string
	Points []PricePoint
}

func (s PriceSeries) Len() int { return len(s.Points) }

// Closes returns the prices in time order.
func (s PriceSeries) Closes() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Price
	}
	return out
}

// Last returns the newest point. The series must not be empty.
func (s PriceSeries) Last() PricePoint { return s.Points[len(s.Points)-1] }

// Validate checks that timestamps strictly increase and prices are positive.
func (s PriceSeries) Validate() error {
	for i, p := range s.Points {
		if !(p.Price > 0) {
			return fmt.Errorf("%w: non-positive price %v at %s", ErrInvalidSeries, p.Price, p.Time.Format(time.RFC3339))
		}
		if i > 0 && !p.Time.After(s.Points[i-1].Time) {
			return fmt.Errorf("%w: timestamp %s does not follow %s", ErrInvalidSeries,
				p.Time.Format(time.RFC3339), s.Points[i-1].Time.Format(time.RFC3339))
		}
	}
	return nil
}

// WithLive returns a copy with the live price as the newest point, truncated to
// the last window points. A live time not after the newest point replaces that
// point's price instead of appending.
func (s PriceSeries) WithLive(price float64, at time.Time, window int) PriceSeries {
	pts := make([]PricePoint, len(s.Points), len(s.Points)+1)
	copy(pts, s.Points)
	if n := len(pts); n > 0 && !at.After(pts[n-1].Time) {
		pts[n-1].Price = price
	} else {
		pts = append(pts, PricePoint{Time: at, Price: price})
	}
	if window > 0 && len(pts) > window {
		pts = pts[len(pts)-window:]
	}
	return PriceSeries{Symbol: s.Symbol, Points: pts}
}
