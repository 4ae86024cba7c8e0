package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ramonehamilton/deckforge/internal/apperr"
	"github.com/ramonehamilton/deckforge/internal/collection"
	"github.com/ramonehamilton/deckforge/internal/prices"
)

// ReasonNoInclusionRate marks a card the statistics provider has no data for.
const ReasonNoInclusionRate = "no inclusion rate"

// CEIRow is the card efficiency index of one card: inclusion rate per unit
// of price. CEI is nil when Unavailable is set.
type CEIRow struct {
	CardName      string           `json:"cardName"`
	SetCode       string           `json:"setCode,omitempty"`
	InclusionRate *float64         `json:"inclusionRate,omitempty"`
	Price         *decimal.Decimal `json:"price,omitempty"`
	CEI           *float64         `json:"cei,omitempty"`
	Unavailable   string           `json:"unavailable,omitempty"`
}

// CEI computes the efficiency index for each card, in input order. A card
// with a missing or zero price, or without an inclusion rate, is reported
// unavailable rather than failing the batch. Provider errors abort.
func (e *Engine) CEI(ctx context.Context, refs []collection.CardRef, snap *prices.Snapshot) ([]CEIRow, error) {
	start := time.Now()
	defer e.observe("cei", start)

	rows := make([]CEIRow, len(refs))
	err := e.fanOut(ctx, len(refs), func(ctx context.Context, i int) error {
		row, err := e.cei(ctx, refs[i], snap)
		if err != nil {
			return err
		}
		rows[i] = row
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to compute card efficiency: %w", err)
	}
	return rows, nil
}

func (e *Engine) cei(ctx context.Context, ref collection.CardRef, snap *prices.Snapshot) (CEIRow, error) {
	row := CEIRow{CardName: ref.Name, SetCode: ref.SetCode}

	if obs, ok := snap.Latest(ref.Name, ref.SetCode); ok {
		p := obs.Price
		row.Price = &p
	}

	if e.stats != nil {
		rate, found, err := e.stats.InclusionRate(ctx, ref.Name)
		if err != nil {
			return row, fmt.Errorf("inclusion rate for %s: %w", ref.Name, err)
		}
		if found {
			row.InclusionRate = &rate
		}
	}

	switch {
	case row.Price == nil:
		row.Unavailable = apperr.ReasonMissingPrice
	case row.Price.IsZero():
		row.Unavailable = apperr.ReasonZeroPrice
	case row.InclusionRate == nil:
		row.Unavailable = ReasonNoInclusionRate
	default:
		cei := *row.InclusionRate / row.Price.InexactFloat64()
		row.CEI = &cei
	}
	return row, nil
}
