package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ramonehamilton/deckforge/internal/analytics"
	"github.com/ramonehamilton/deckforge/internal/mtga/deckbuilder"
	"github.com/ramonehamilton/deckforge/internal/prices"
	"github.com/ramonehamilton/deckforge/internal/stats"
	"github.com/ramonehamilton/deckforge/internal/storage/repository"
)

func heading(w io.Writer, title string) {
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, strings.Repeat("=", len(title)))
	fmt.Fprintln(w)
}

func optionalPrice(p *decimal.Decimal) string {
	if p == nil {
		return "n/a"
	}
	return analytics.FormatUSD(*p)
}

func printResult(w io.Writer, result *deckbuilder.Result) {
	if result.Deck != nil {
		printDeck(w, result.Deck)
	} else {
		heading(w, "Assembly Failed")
		fmt.Fprintf(w, "Reason: %s\n\n", result.Reason)
	}

	if len(result.Exclusions) > 0 {
		fmt.Fprintf(w, "Excluded (%d):\n", len(result.Exclusions))
		for i, ex := range result.Exclusions {
			if i == 20 {
				fmt.Fprintf(w, "  ... and %d more\n", len(result.Exclusions)-i)
				break
			}
			fmt.Fprintf(w, "  %-30s %s (%s)\n", ex.Card, ex.Reason, ex.Stage)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "Stages:")
	for _, ev := range result.Trace {
		fmt.Fprintf(w, "  %-20s +%-3d %8s", ev.State, ev.Added, ev.Duration.Round(time.Microsecond))
		if ev.Note != "" {
			fmt.Fprintf(w, "  %s", ev.Note)
		}
		fmt.Fprintln(w)
	}
}

func printDeck(w io.Writer, deck *deckbuilder.Deck) {
	heading(w, deck.Name)

	if deck.ID != "" {
		fmt.Fprintf(w, "ID:        %s\n", deck.ID)
	}
	fmt.Fprintf(w, "Format:    %s\n", deck.Format)
	if deck.Commander != nil {
		fmt.Fprintf(w, "Commander: %s (%s)\n", deck.Commander.Name, deck.Commander.SetCode)
	}
	if a := deck.Analysis; a != nil {
		fmt.Fprintf(w, "Cards:     %d (%d spells, %d lands)\n", a.Size, a.SpellCount, a.LandCount)
		fmt.Fprintf(w, "Avg MV:    %.2f\n", a.AverageManaValue)
		fmt.Fprintf(w, "Price:     %s", analytics.FormatUSD(a.TotalPrice))
		if len(a.UnpricedCards) > 0 {
			fmt.Fprintf(w, " (%d unpriced)", len(a.UnpricedCards))
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w)

		fmt.Fprintln(w, "Mana Curve:")
		for _, b := range a.Curve {
			fmt.Fprintf(w, "  %-4s %-20s %d/%d\n", b.Label, strings.Repeat("#", b.Count), b.Count, b.Target)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Decklist:")
	for _, c := range deck.Cards {
		fmt.Fprintf(w, "  %2d %-34s %s\n", c.Quantity, c.Card.Name, optionalPrice(c.Price))
	}
	fmt.Fprintln(w)
}

func printDecks(w io.Writer, decks []*repository.DeckSummary) {
	if len(decks) == 0 {
		fmt.Fprintln(w, "No saved decks.")
		return
	}
	heading(w, "Saved Decks")
	for _, d := range decks {
		fmt.Fprintf(w, "  %-36s %-30s %-10s %s\n", d.ID, d.Name, d.Format, d.UpdatedAt.Format("2006-01-02"))
	}
}

func printTrend(w io.Writer, dr stats.DateRange, points []analytics.TrendPoint) {
	heading(w, "Collection Value "+dr.FormatPeriod())
	for _, p := range points {
		fmt.Fprintf(w, "  %s  %12s  (%d priced)\n", p.Date.Format("2006-01-02"), analytics.FormatUSD(p.TotalValue), p.PricedCards)
	}
	fmt.Fprintln(w)
}

func printBreakdown(w io.Writer, b *analytics.Breakdown) {
	heading(w, "Value by "+string(b.Dimension))
	for _, g := range b.Groups() {
		fmt.Fprintf(w, "  %-12s %12s\n", g, analytics.FormatUSD(b.Values[g]))
	}
	fmt.Fprintf(w, "  %-12s %12s\n", "total", analytics.FormatUSD(b.Total))
	if len(b.Unpriced) > 0 {
		fmt.Fprintf(w, "\n%d cards have no price.\n", len(b.Unpriced))
	}
	fmt.Fprintln(w)
}

func printROI(w io.Writer, r *analytics.ROIReport) {
	heading(w, "Return on Investment")
	fmt.Fprintf(w, "Total Spent:      %s\n", analytics.FormatUSD(r.TotalSpent))
	fmt.Fprintf(w, "Current Value:    %s\n", analytics.FormatUSD(r.CurrentValue))
	if r.ROIPercent != nil {
		fmt.Fprintf(w, "ROI:              %s%%\n", r.ROIPercent.StringFixed(2))
	} else {
		fmt.Fprintln(w, "ROI:              n/a")
	}
	fmt.Fprintf(w, "Collection Value: %s\n", analytics.FormatUSD(r.CollectionValue))
	fmt.Fprintln(w)

	for _, row := range r.Cards {
		pct := "n/a"
		if row.ROIPercent != nil {
			pct = row.ROIPercent.StringFixed(2) + "%"
		}
		fmt.Fprintf(w, "  %-30s x%-3d %10s -> %-10s %s\n", row.CardName, row.Quantity,
			optionalPrice(row.PurchasePrice),
			optionalPrice(row.CurrentPrice), pct)
	}
	if len(r.Unavailable) > 0 {
		fmt.Fprintf(w, "\n%d cards left out:\n", len(r.Unavailable))
		for _, row := range r.Unavailable {
			fmt.Fprintf(w, "  %-30s %s\n", row.CardName, row.Unavailable)
		}
	}
	fmt.Fprintln(w)
}

func printVolatility(w io.Writer, rows []analytics.VolatilityRow) {
	heading(w, "Price Volatility")
	for _, row := range rows {
		if row.Volatility == nil {
			fmt.Fprintf(w, "  %-30s %s\n", row.CardName, row.Unavailable)
			continue
		}
		spike := ""
		if row.Spike {
			spike = "  SPIKE"
		}
		fmt.Fprintf(w, "  %-30s %6.3f over %d days%s\n", row.CardName, *row.Volatility, row.Window, spike)
	}
	fmt.Fprintln(w)
}

func printCEI(w io.Writer, rows []analytics.CEIRow) {
	heading(w, "Card Efficiency Index")
	for _, row := range rows {
		if row.CEI == nil {
			fmt.Fprintf(w, "  %-30s %s\n", row.CardName, row.Unavailable)
			continue
		}
		fmt.Fprintf(w, "  %-30s %8.4f  (%.1f%% at %s)\n", row.CardName, *row.CEI,
			*row.InclusionRate*100, optionalPrice(row.Price))
	}
	fmt.Fprintln(w)
}

func printCostToWin(w io.Writer, rows []analytics.CostToWinRow) {
	heading(w, "Cost to Win")
	for _, row := range rows {
		switch {
		case row.Unbounded:
			fmt.Fprintf(w, "  %-30s %10s  0/%d wins, unbounded\n", row.DeckName, analytics.FormatUSD(row.Price), row.Games)
		case row.Unavailable != "" || row.CostToWin == nil:
			fmt.Fprintf(w, "  %-30s %s\n", row.DeckName, row.Unavailable)
		default:
			fmt.Fprintf(w, "  %-30s %10s  %d/%d wins  %s per win rate\n", row.DeckName,
				analytics.FormatUSD(row.Price), row.Wins, row.Games, analytics.FormatUSD(*row.CostToWin))
		}
	}
	fmt.Fprintln(w)
}

func printRefresh(w io.Writer, r *prices.RefreshResult) {
	fmt.Fprintf(w, "Refreshed %d of %d prices in %s.\n", r.Refreshed, r.Requested, r.Duration.Round(time.Millisecond))
	for card, reason := range r.Failed {
		fmt.Fprintf(w, "  failed: %s: %s\n", card, reason)
	}
}
