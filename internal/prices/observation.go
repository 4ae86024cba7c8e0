// Package prices holds time-indexed price observations, the read-through
// price cache and the scheduled refresh that feeds them.
package prices

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DayLayout is the format of day-bucket keys.
const DayLayout = "2006-01-02"

// Observation is one market price seen for a printing at a point in time.
type Observation struct {
	CardName   string          `json:"card_name"`
	SetCode    string          `json:"set_code"`
	Source     string          `json:"source"`
	Price      decimal.Decimal `json:"price"`
	ObservedAt time.Time       `json:"observed_at"`
}

// SeriesKey identifies one price series.
type SeriesKey struct {
	CardName string
	SetCode  string
	Source   string
}

// NewSeriesKey normalizes name and set for use as a map key.
func NewSeriesKey(name, setCode, source string) SeriesKey {
	return SeriesKey{
		CardName: strings.ToLower(strings.TrimSpace(name)),
		SetCode:  strings.ToLower(strings.TrimSpace(setCode)),
		Source:   strings.ToLower(strings.TrimSpace(source)),
	}
}

func (k SeriesKey) String() string {
	return k.CardName + "|" + k.SetCode + "|" + k.Source
}

// Series returns the series the observation belongs to.
func (o Observation) Series() SeriesKey {
	return NewSeriesKey(o.CardName, o.SetCode, o.Source)
}

// Day returns the UTC day bucket of the observation.
func (o Observation) Day() time.Time {
	return Day(o.ObservedAt)
}

// Validate checks the observation can be stored.
func (o Observation) Validate() error {
	if strings.TrimSpace(o.CardName) == "" {
		return fmt.Errorf("observation has no card name")
	}
	if strings.TrimSpace(o.Source) == "" {
		return fmt.Errorf("observation for %s has no source", o.CardName)
	}
	if o.Price.IsNegative() {
		return fmt.Errorf("observation for %s has negative price %s", o.CardName, o.Price)
	}
	if o.ObservedAt.IsZero() {
		return fmt.Errorf("observation for %s has no timestamp", o.CardName)
	}
	return nil
}

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DayKey formats the UTC day of t.
func DayKey(t time.Time) string {
	return Day(t).Format(DayLayout)
}
