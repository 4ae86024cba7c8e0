package analytics

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ramonehamilton/deckforge/internal/apperr"
	"github.com/ramonehamilton/deckforge/internal/collection"
	"github.com/ramonehamilton/deckforge/internal/mtga/cards"
	"github.com/ramonehamilton/deckforge/internal/prices"
)

// Dimension is a breakdown grouping.
type Dimension string

const (
	ByRarity Dimension = "rarity"
	BySet    Dimension = "set"
)

// ParseDimension validates a dimension name.
func ParseDimension(s string) (Dimension, error) {
	switch d := Dimension(strings.ToLower(strings.TrimSpace(s))); d {
	case ByRarity, BySet:
		return d, nil
	}
	return "", apperr.Input("unknown breakdown dimension", s)
}

// unknownGroup collects cards whose dimension value is not known.
const unknownGroup = "unknown"

// Breakdown is the current collection value grouped by a dimension.
type Breakdown struct {
	Dimension Dimension                  `json:"dimension"`
	Values    map[string]decimal.Decimal `json:"values"`
	Total     decimal.Decimal            `json:"total"`
	Unpriced  []string                   `json:"unpriced,omitempty"`
}

// Groups returns the group names ordered by value descending, then name.
func (b *Breakdown) Groups() []string {
	out := make([]string, 0, len(b.Values))
	for g := range b.Values {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := b.Values[out[i]].Cmp(b.Values[out[j]]); c != 0 {
			return c > 0
		}
		return out[i] < out[j]
	})
	return out
}

// Breakdown sums quantity times latest price per dimension value. Cards
// without a price are listed in Unpriced and contribute nothing.
func (e *Engine) Breakdown(coll *collection.Collection, snap *prices.Snapshot, dim Dimension) (*Breakdown, error) {
	start := time.Now()
	defer e.observe("breakdown", start)

	if _, err := ParseDimension(string(dim)); err != nil {
		return nil, err
	}

	b := &Breakdown{Dimension: dim, Values: make(map[string]decimal.Decimal), Total: decimal.Zero}
	for _, it := range coll.Items() {
		obs, ok := snap.Latest(it.Card.Name, it.Card.SetCode)
		if !ok {
			b.Unpriced = append(b.Unpriced, it.Card.Name)
			continue
		}
		value := obs.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
		group := e.group(it.Card, dim)
		b.Values[group] = b.Values[group].Add(value)
		b.Total = b.Total.Add(value)
	}
	return b, nil
}

func (e *Engine) group(ref collection.CardRef, dim Dimension) string {
	switch dim {
	case BySet:
		if ref.SetCode != "" {
			return ref.SetCode
		}
		if card, ok := e.lookup(ref); ok && card.SetCode != "" {
			return card.SetCode
		}
	case ByRarity:
		if card, ok := e.lookup(ref); ok && card.Rarity != "" {
			return card.Rarity
		}
	}
	return unknownGroup
}

func (e *Engine) lookup(ref collection.CardRef) (*cards.Card, bool) {
	if e.catalog == nil {
		return nil, false
	}
	return e.catalog.Lookup(ref.Name, ref.SetCode)
}
