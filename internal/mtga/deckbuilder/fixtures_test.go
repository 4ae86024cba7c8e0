package deckbuilder

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ramonehamilton/deckforge/internal/collection"
	"github.com/ramonehamilton/deckforge/internal/mtga/cards"
	"github.com/ramonehamilton/deckforge/internal/prices"
)

var (
	themeTags   = []string{"tokens", "counters", "draw", "ramp", "sacrifice"}
	spellColors = []cards.Color{cards.White, cards.Black, cards.Green}
)

func legalIn(f cards.Format) map[cards.Format]cards.Legality {
	return map[cards.Format]cards.Legality{f: cards.Legal}
}

func testCommander() *cards.Card {
	return &cards.Card{
		Name:          "Ghave, Guru of Spores",
		SetCode:       "c15",
		Colors:        cards.NewColorSet(cards.White, cards.Black, cards.Green),
		ColorIdentity: cards.NewColorSet(cards.White, cards.Black, cards.Green),
		ManaCost:      "{2}{W}{B}{G}",
		ManaValue:     5,
		TypeLine:      "Legendary Creature — Fungus Shaman",
		Rarity:        "mythic",
		Legalities:    legalIn(cards.FormatCommander),
		Tags:          []string{"counters", "sacrifice", "tokens"},
	}
}

func testSpell(i int, color cards.Color) *cards.Card {
	mv := 1 + i%7
	cost := fmt.Sprintf("{%d}{%s}", mv-1, color)
	if mv == 1 {
		cost = fmt.Sprintf("{%s}", color)
	}
	typeLine := "Sorcery"
	if i%2 == 0 {
		typeLine = "Creature — Human"
	}
	return &cards.Card{
		Name:          fmt.Sprintf("Spell %s%03d", color, i),
		SetCode:       "tst",
		Colors:        cards.NewColorSet(color),
		ColorIdentity: cards.NewColorSet(color),
		ManaCost:      cost,
		ManaValue:     float64(mv),
		TypeLine:      typeLine,
		Rarity:        "common",
		Legalities:    legalIn(cards.FormatCommander),
		Tags:          []string{themeTags[i%len(themeTags)]},
	}
}

func testBasic(color cards.Color) *cards.Card {
	name := cards.BasicLandNames[color]
	return &cards.Card{
		Name:          name,
		SetCode:       "tst",
		ColorIdentity: cards.NewColorSet(color),
		TypeLine:      "Basic Land — " + name,
		Rarity:        "common",
		Legalities:    legalIn(cards.FormatCommander),
	}
}

// fixture is a Ghave (WBG) collection: in-identity spells spread evenly
// over mana values 1-7, a nonbasic land, basics, and cards that must be
// filtered out (off-identity, banned, uncatalogued).
type fixture struct {
	catalog   *cards.Catalog
	records   []collection.Record
	commander *cards.Card
	spells    []*cards.Card
}

func newFixture(spells, basicsEach int) fixture {
	f := fixture{commander: testCommander()}
	records := []*cards.Card{f.commander}
	own := func(c *cards.Card, qty int) {
		records = append(records, c)
		f.records = append(f.records, collection.Record{Name: c.Name, SetCode: c.SetCode, Quantity: qty})
	}

	for i := 0; i < spells; i++ {
		c := testSpell(i, spellColors[i%len(spellColors)])
		f.spells = append(f.spells, c)
		own(c, 1)
	}
	for i := 0; i < 5; i++ {
		own(testSpell(i, cards.Red), 1)
	}

	banned := testSpell(900, cards.Black)
	banned.Name = "Banned Spell"
	banned.Legalities = map[cards.Format]cards.Legality{cards.FormatCommander: cards.Banned}
	own(banned, 1)

	own(&cards.Card{
		Name:       "Command Tower",
		SetCode:    "tst",
		TypeLine:   "Land",
		Rarity:     "common",
		Legalities: legalIn(cards.FormatCommander),
		Tags:       []string{"ramp"},
	}, 1)

	for _, c := range spellColors {
		own(testBasic(c), basicsEach)
	}
	own(testBasic(cards.Blue), 5)

	f.catalog = cards.NewCatalog(records)
	f.records = append(f.records, collection.Record{Name: "Unknown Card", Quantity: 1})
	return f
}

func (f fixture) collection(t *testing.T) *collection.Collection {
	t.Helper()
	c, err := collection.FromRecords(f.records)
	if err != nil {
		t.Fatalf("FromRecords: %v", err)
	}
	return c
}

// priceAll prices every fixture spell at each and the commander at
// commander, all observed on the same day.
func (f fixture) priceAll(each, commander string) *prices.Snapshot {
	day := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	obs := []prices.Observation{{
		CardName: f.commander.Name, SetCode: f.commander.SetCode, Source: "test",
		Price: decimal.RequireFromString(commander), ObservedAt: day,
	}}
	for _, c := range f.spells {
		obs = append(obs, prices.Observation{
			CardName: c.Name, SetCode: c.SetCode, Source: "test",
			Price: decimal.RequireFromString(each), ObservedAt: day,
		})
	}
	return prices.NewSnapshot(obs)
}

func pricedAt(c *cards.Card, price string) prices.Observation {
	return prices.Observation{
		CardName: c.Name, SetCode: c.SetCode, Source: "test",
		Price: decimal.RequireFromString(price), ObservedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func newTestAssembler(t *testing.T, catalog CatalogLookup, opts Options) *Assembler {
	t.Helper()
	a, err := NewAssembler(catalog, nil, AssemblerConfig{Options: opts})
	if err != nil {
		t.Fatalf("NewAssembler: %v", err)
	}
	return a
}
