package analytics

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ramonehamilton/deckforge/internal/apperr"
	"github.com/ramonehamilton/deckforge/internal/collection"
	"github.com/ramonehamilton/deckforge/internal/prices"
)

// PricePoint is one day of a price history.
type PricePoint struct {
	Date  time.Time       `json:"date"`
	Price decimal.Decimal `json:"price"`
}

// VolatilityRow is the price volatility of one card over a trailing window
// of daily observations. Volatility is nil when Unavailable is set.
type VolatilityRow struct {
	CardName   string       `json:"cardName"`
	SetCode    string       `json:"setCode,omitempty"`
	Window     int          `json:"window"`
	Volatility *float64     `json:"volatility,omitempty"` // stddev / mean
	Mean       *float64     `json:"mean,omitempty"`
	StdDev     *float64     `json:"stdDev,omitempty"`
	Spike      bool         `json:"spike"`
	History    []PricePoint `json:"history"`

	Unavailable string `json:"unavailable,omitempty"`
}

// Volatility computes, per card and in input order, the coefficient of
// variation over the last window daily prices and flags a spike when the
// latest price exceeds the mean of the preceding prices by more than
// SpikeMultiple of their standard deviation. Fewer than MinWindow points,
// including a window shorter than MinWindow, is reported per card as
// unavailable. Only a negative window is an InputError.
func (e *Engine) Volatility(ctx context.Context, refs []collection.CardRef, snap *prices.Snapshot, window int) ([]VolatilityRow, error) {
	start := time.Now()
	defer e.observe("volatility", start)

	if window < 0 {
		return nil, apperr.Input("window cannot be negative", fmt.Sprint(window))
	}

	rows := make([]VolatilityRow, len(refs))
	err := e.fanOut(ctx, len(refs), func(_ context.Context, i int) error {
		rows[i] = e.volatility(refs[i], snap, window)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to compute volatility: %w", err)
	}
	return rows, nil
}

func (e *Engine) volatility(ref collection.CardRef, snap *prices.Snapshot, window int) VolatilityRow {
	row := VolatilityRow{CardName: ref.Name, SetCode: ref.SetCode, Window: window}
	if window < e.config.MinWindow {
		row.Unavailable = apperr.ReasonInsufficientHistory
		return row
	}

	trailing := snap.Trailing(ref.Name, ref.SetCode, window)
	values := make([]float64, len(trailing))
	row.History = make([]PricePoint, len(trailing))
	for i, obs := range trailing {
		row.History[i] = PricePoint{Date: obs.Day(), Price: obs.Price}
		values[i] = obs.Price.InexactFloat64()
	}

	if len(values) < e.config.MinWindow {
		row.Unavailable = apperr.ReasonInsufficientHistory
		return row
	}

	mean, sd := meanStdDev(values)
	if mean == 0 {
		row.Unavailable = apperr.ReasonZeroPrice
		return row
	}
	vol := sd / mean
	row.Mean, row.StdDev, row.Volatility = &mean, &sd, &vol

	prevMean, prevSD := meanStdDev(values[:len(values)-1])
	row.Spike = values[len(values)-1] > prevMean+e.config.SpikeMultiple*prevSD
	return row
}

// meanStdDev returns the mean and population standard deviation.
func meanStdDev(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	sq := 0.0
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(sq / float64(len(values)))
}
