package cards

import (
	"sort"
	"strings"

	"github.com/ramonehamilton/deckforge/internal/mtga/cards/fuzzy"
)

// Catalog is a read-only lookup of canonical card metadata.
// A Catalog is never mutated after construction, so it is safe for
// concurrent use; reloads build a new Catalog.
type Catalog struct {
	byKey  map[string]*Card
	byName map[string]*Card // first printing seen for each name
	names  []string         // sorted lowercase names
}

// NewCatalog builds a catalog. When the same key appears twice the later
// record wins; a name lookup without set code resolves to the printing
// with the lowest set code so lookups are stable across load order.
func NewCatalog(records []*Card) *Catalog {
	c := &Catalog{
		byKey:  make(map[string]*Card, len(records)),
		byName: make(map[string]*Card, len(records)),
	}

	for _, card := range records {
		if card == nil || strings.TrimSpace(card.Name) == "" {
			continue
		}
		card.Tags = NormalizeTags(card.Tags)
		c.byKey[card.Key()] = card

		name := Key(card.Name, "")
		if existing, ok := c.byName[name]; !ok || card.SetCode < existing.SetCode {
			c.byName[name] = card
		}
	}

	c.names = make([]string, 0, len(c.byName))
	for name := range c.byName {
		c.names = append(c.names, name)
	}
	sort.Strings(c.names)

	return c
}

// Lookup finds a card by name and optional set code. When the set-specific
// printing is unknown it falls back to the name-only record.
func (c *Catalog) Lookup(name, setCode string) (*Card, bool) {
	if c == nil {
		return nil, false
	}
	if setCode != "" {
		if card, ok := c.byKey[Key(name, setCode)]; ok {
			return card, true
		}
	}
	if card, ok := c.byKey[Key(name, "")]; ok {
		return card, true
	}
	card, ok := c.byName[Key(name, "")]
	return card, ok
}

// Len returns the number of distinct card names.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.names)
}

// Cards returns one record per name in name order.
func (c *Catalog) Cards() []*Card {
	if c == nil {
		return nil
	}
	out := make([]*Card, 0, len(c.names))
	for _, name := range c.names {
		out = append(out, c.byName[name])
	}
	return out
}

// Suggest returns up to limit card names similar to name, best first.
func (c *Catalog) Suggest(name string, limit int) []string {
	if c == nil {
		return nil
	}
	opts := fuzzy.DefaultOptions()
	if limit > 0 {
		opts.MaxResults = limit
	}
	matches := fuzzy.Search(name, c.names, func(n string) string { return n }, opts)

	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, c.byName[m.Item].Name)
	}
	return out
}
