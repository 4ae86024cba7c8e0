// Package collection models a user's owned cards. A Collection is built by
// import or merge operations and is only read by the engines.
package collection

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ramonehamilton/deckforge/internal/apperr"
	"github.com/ramonehamilton/deckforge/internal/mtga/cards"
)

// CardRef identifies a card by name and optional set code.
type CardRef struct {
	Name    string `json:"name"`
	SetCode string `json:"setCode,omitempty"`
}

// Key returns the catalog key for the reference.
func (r CardRef) Key() string { return cards.Key(r.Name, r.SetCode) }

// OwnedCard is one owned printing with its purchase information.
type OwnedCard struct {
	Card          CardRef          `json:"card"`
	Quantity      int              `json:"quantity"`
	PurchasePrice *decimal.Decimal `json:"purchasePrice,omitempty"` // per copy
	PurchaseDate  *time.Time       `json:"purchaseDate,omitempty"`
}

// Record is a normalized import row supplied by the file-import collaborator.
type Record struct {
	Name          string           `json:"name"`
	SetCode       string           `json:"setCode,omitempty"`
	Quantity      int              `json:"quantity"`
	PurchasePrice *decimal.Decimal `json:"purchasePrice,omitempty"`
	PurchaseDate  *time.Time       `json:"purchaseDate,omitempty"`
}

// Collection is an order-irrelevant set of owned cards keyed by printing.
type Collection struct {
	items map[string]*OwnedCard
}

// New returns an empty collection.
func New() *Collection {
	return &Collection{items: make(map[string]*OwnedCard)}
}

// FromRecords builds a collection from import records. Duplicate printings
// are merged. Records with an empty name, a quantity below one or a
// negative purchase price are rejected with an InputError.
func FromRecords(records []Record) (*Collection, error) {
	c := New()
	for i, rec := range records {
		name := strings.TrimSpace(rec.Name)
		if name == "" {
			return nil, apperr.Input("record has no card name", fmt.Sprintf("record %d", i))
		}
		if rec.Quantity < 1 {
			return nil, apperr.Input("quantity must be at least 1", name)
		}
		if rec.PurchasePrice != nil && rec.PurchasePrice.IsNegative() {
			return nil, apperr.Input("purchase price cannot be negative", name)
		}
		c.add(OwnedCard{
			Card:          CardRef{Name: name, SetCode: strings.ToLower(strings.TrimSpace(rec.SetCode))},
			Quantity:      rec.Quantity,
			PurchasePrice: rec.PurchasePrice,
			PurchaseDate:  rec.PurchaseDate,
		})
	}
	return c, nil
}

// add merges oc into the collection. Quantities are summed, the purchase
// price becomes the quantity-weighted average of the priced copies and the
// earliest purchase date is kept.
func (c *Collection) add(oc OwnedCard) {
	key := oc.Card.Key()
	existing, ok := c.items[key]
	if !ok {
		cp := oc
		c.items[key] = &cp
		return
	}

	switch {
	case existing.PurchasePrice == nil:
		existing.PurchasePrice = oc.PurchasePrice
	case oc.PurchasePrice != nil:
		total := existing.PurchasePrice.Mul(decimal.NewFromInt(int64(existing.Quantity))).
			Add(oc.PurchasePrice.Mul(decimal.NewFromInt(int64(oc.Quantity))))
		avg := total.Div(decimal.NewFromInt(int64(existing.Quantity + oc.Quantity))).Round(4)
		existing.PurchasePrice = &avg
	}

	if oc.PurchaseDate != nil && (existing.PurchaseDate == nil || oc.PurchaseDate.Before(*existing.PurchaseDate)) {
		existing.PurchaseDate = oc.PurchaseDate
	}
	existing.Quantity += oc.Quantity
}

// Merge returns a new collection containing the cards of c and other.
// Neither input is modified.
func (c *Collection) Merge(other *Collection) *Collection {
	out := New()
	for _, oc := range c.Items() {
		out.add(oc)
	}
	if other != nil {
		for _, oc := range other.Items() {
			out.add(oc)
		}
	}
	return out
}

// Items returns copies of the owned cards sorted by name then set code.
func (c *Collection) Items() []OwnedCard {
	if c == nil {
		return nil
	}
	out := make([]OwnedCard, 0, len(c.items))
	for _, oc := range c.items {
		out = append(out, *oc)
	}
	sort.Slice(out, func(i, j int) bool {
		ni, nj := strings.ToLower(out[i].Card.Name), strings.ToLower(out[j].Card.Name)
		if ni != nj {
			return ni < nj
		}
		return out[i].Card.SetCode < out[j].Card.SetCode
	})
	return out
}

// Len returns the number of distinct printings.
func (c *Collection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.items)
}

// TotalQuantity returns the number of physical cards.
func (c *Collection) TotalQuantity() int {
	total := 0
	for _, oc := range c.Items() {
		total += oc.Quantity
	}
	return total
}

// QuantityByName returns owned quantities summed across printings, keyed by
// lowercase card name.
func (c *Collection) QuantityByName() map[string]int {
	out := make(map[string]int)
	for _, oc := range c.Items() {
		out[cards.Key(oc.Card.Name, "")] += oc.Quantity
	}
	return out
}
