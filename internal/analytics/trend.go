package analytics

import (
	"iter"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ramonehamilton/deckforge/internal/collection"
	"github.com/ramonehamilton/deckforge/internal/prices"
	"github.com/ramonehamilton/deckforge/internal/stats"
)

// TrendPoint is the collection value on one day.
type TrendPoint struct {
	Date       time.Time       `json:"date"`
	TotalValue decimal.Decimal `json:"totalValue"`
	// PricedCards counts the printings with a price on or before Date.
	PricedCards int `json:"pricedCards"`
}

// Trend yields the value of coll for each day of r in ascending order. The
// value of a day is the sum of quantity times the latest price observed on
// or before that day, so gaps carry the last known price forward. The
// sequence is lazy, finite and can be ranged over again with the same
// result.
func (e *Engine) Trend(coll *collection.Collection, snap *prices.Snapshot, r stats.DateRange) iter.Seq[TrendPoint] {
	items := coll.Items()
	return func(yield func(TrendPoint) bool) {
		start := time.Now()
		defer e.observe("trend", start)

		for day := range r.Days() {
			p := TrendPoint{Date: day, TotalValue: decimal.Zero}
			for _, it := range items {
				obs, ok := snap.LatestOnOrBefore(it.Card.Name, it.Card.SetCode, day)
				if !ok {
					continue
				}
				p.TotalValue = p.TotalValue.Add(obs.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
				p.PricedCards++
			}
			if !yield(p) {
				return
			}
		}
	}
}

// CollectTrend materializes a trend sequence.
func CollectTrend(seq iter.Seq[TrendPoint]) []TrendPoint {
	var out []TrendPoint
	for p := range seq {
		out = append(out, p)
	}
	return out
}
