package analytics

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ramonehamilton/deckforge/internal/apperr"
	"github.com/ramonehamilton/deckforge/internal/collection"
	"github.com/ramonehamilton/deckforge/internal/prices"
)

var hundred = decimal.NewFromInt(100)

// roiPlaces is the precision of ROI percentages.
const roiPlaces = 4

// ROIRow is the return on one owned printing. ROIPercent is nil when
// Unavailable is set.
type ROIRow struct {
	CardName      string           `json:"cardName"`
	SetCode       string           `json:"setCode,omitempty"`
	Quantity      int              `json:"quantity"`
	PurchasePrice *decimal.Decimal `json:"purchasePrice,omitempty"` // per copy
	CurrentPrice  *decimal.Decimal `json:"currentPrice,omitempty"`  // per copy
	ROIPercent    *decimal.Decimal `json:"roiPercent,omitempty"`
	Unavailable   string           `json:"unavailable,omitempty"`
}

// ROIReport is the collection return on investment. TotalSpent and
// CurrentValue cover only cards with both a purchase and a current price,
// so ROIPercent == 100 * (CurrentValue - TotalSpent) / TotalSpent.
// CollectionValue is the current value of every priced card.
type ROIReport struct {
	TotalSpent      decimal.Decimal  `json:"totalSpent"`
	CurrentValue    decimal.Decimal  `json:"currentValue"`
	ROIPercent      *decimal.Decimal `json:"roiPercent,omitempty"`
	CollectionValue decimal.Decimal  `json:"collectionValue"`
	Cards           []ROIRow         `json:"cards"`
	Unavailable     []ROIRow         `json:"unavailable,omitempty"`
}

// ROI computes per-card and aggregate returns. Cards without a purchase
// price or a current price are listed as unavailable and left out of the
// aggregate.
func (e *Engine) ROI(coll *collection.Collection, snap *prices.Snapshot) *ROIReport {
	start := time.Now()
	defer e.observe("roi", start)

	r := &ROIReport{TotalSpent: decimal.Zero, CurrentValue: decimal.Zero, CollectionValue: decimal.Zero}

	for _, it := range coll.Items() {
		qty := decimal.NewFromInt(int64(it.Quantity))
		row := ROIRow{
			CardName:      it.Card.Name,
			SetCode:       it.Card.SetCode,
			Quantity:      it.Quantity,
			PurchasePrice: it.PurchasePrice,
		}
		if obs, ok := snap.Latest(it.Card.Name, it.Card.SetCode); ok {
			p := obs.Price
			row.CurrentPrice = &p
			r.CollectionValue = r.CollectionValue.Add(p.Mul(qty))
		}

		switch {
		case row.PurchasePrice == nil:
			row.Unavailable = apperr.ReasonNoPurchasePrice
		case row.CurrentPrice == nil:
			row.Unavailable = apperr.ReasonMissingPrice
		}
		if row.Unavailable != "" {
			r.Unavailable = append(r.Unavailable, row)
			continue
		}

		r.TotalSpent = r.TotalSpent.Add(row.PurchasePrice.Mul(qty))
		r.CurrentValue = r.CurrentValue.Add(row.CurrentPrice.Mul(qty))
		if row.PurchasePrice.IsPositive() {
			pct := percentChange(*row.PurchasePrice, *row.CurrentPrice)
			row.ROIPercent = &pct
		} else {
			// Free cards count toward the aggregate but have no ratio.
			row.Unavailable = apperr.ReasonZeroPrice
		}
		r.Cards = append(r.Cards, row)
	}

	if r.TotalSpent.IsPositive() {
		pct := percentChange(r.TotalSpent, r.CurrentValue)
		r.ROIPercent = &pct
	}
	return r
}

// percentChange returns 100 * (current - base) / base.
func percentChange(base, current decimal.Decimal) decimal.Decimal {
	return current.Sub(base).Mul(hundred).DivRound(base, roiPlaces)
}
