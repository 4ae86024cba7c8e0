package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ramonehamilton/deckforge/internal/apperr"
	"github.com/ramonehamilton/deckforge/internal/mtga/cards"
	"github.com/ramonehamilton/deckforge/internal/mtga/deckbuilder"
	"github.com/ramonehamilton/deckforge/internal/prices"
)

// ReasonNoDeckRecord marks a deck the statistics provider has no games for.
const ReasonNoDeckRecord = "no deck record"

// CostToWinRow relates a deck's current price to its win rate.
type CostToWinRow struct {
	DeckID   string          `json:"deckId,omitempty"`
	DeckName string          `json:"deckName"`
	Price    decimal.Decimal `json:"price"`
	Wins     int             `json:"wins"`
	Games    int             `json:"games"`
	WinRate  float64         `json:"winRate"`

	// CostToWin is price / win rate. It is nil when the deck has no wins
	// (Unbounded) or no record.
	CostToWin   *decimal.Decimal `json:"costToWin,omitempty"`
	Unbounded   bool             `json:"unbounded,omitempty"`
	Unavailable string           `json:"unavailable,omitempty"`
	Unpriced    []string         `json:"unpriced,omitempty"`
}

// CostToWin prices each deck at its latest known card prices and divides
// by the deck's win rate. A deck with games but no wins is unbounded.
func (e *Engine) CostToWin(ctx context.Context, decks []*deckbuilder.Deck, snap *prices.Snapshot) ([]CostToWinRow, error) {
	start := time.Now()
	defer e.observe("cost_to_win", start)

	rows := make([]CostToWinRow, len(decks))
	err := e.fanOut(ctx, len(decks), func(ctx context.Context, i int) error {
		row, err := e.costToWin(ctx, decks[i], snap)
		if err != nil {
			return err
		}
		rows[i] = row
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to compute cost to win: %w", err)
	}
	return rows, nil
}

func (e *Engine) costToWin(ctx context.Context, deck *deckbuilder.Deck, snap *prices.Snapshot) (CostToWinRow, error) {
	row := CostToWinRow{DeckID: deck.ID, DeckName: deck.Name}
	row.Price, row.Unpriced = DeckPrice(deck, snap)

	if e.stats == nil || deck.ID == "" {
		row.Unavailable = ReasonNoDeckRecord
		return row, nil
	}
	rec, found, err := e.stats.DeckRecord(ctx, deck.ID)
	if err != nil {
		return row, fmt.Errorf("deck record for %s: %w", deck.Name, err)
	}
	if !found || rec.Games() == 0 {
		row.Unavailable = ReasonNoDeckRecord
		return row, nil
	}

	row.Wins, row.Games, row.WinRate = rec.Wins, rec.Games(), rec.WinRate()
	if rec.Wins == 0 {
		row.Unbounded = true
		row.Unavailable = apperr.ReasonNoWins
		return row, nil
	}

	// price / (wins/games) kept exact as price * games / wins.
	cost := row.Price.Mul(decimal.NewFromInt(int64(rec.Games()))).DivRound(decimal.NewFromInt(int64(rec.Wins)), 2)
	row.CostToWin = &cost
	return row, nil
}

// DeckPrice sums the latest price of every card in the deck, commander
// included. Cards without a price are returned by name.
func DeckPrice(deck *deckbuilder.Deck, snap *prices.Snapshot) (decimal.Decimal, []string) {
	total := decimal.Zero
	var unpriced []string

	add := func(card *cards.Card, qty int) {
		obs, ok := snap.Latest(card.Name, card.SetCode)
		if !ok {
			unpriced = append(unpriced, card.Name)
			return
		}
		total = total.Add(obs.Price.Mul(decimal.NewFromInt(int64(qty))))
	}

	if deck.Commander != nil {
		add(deck.Commander, 1)
	}
	for _, dc := range deck.Cards {
		add(dc.Card, dc.Quantity)
	}
	sort.Strings(unpriced)
	return total, unpriced
}
