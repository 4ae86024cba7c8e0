package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/deckforge/internal/collection"
	"github.com/ramonehamilton/deckforge/internal/metrics"
	"github.com/ramonehamilton/deckforge/internal/mtga/cards"
	"github.com/ramonehamilton/deckforge/internal/prices"
	"github.com/ramonehamilton/deckforge/internal/storage"
)

const (
	testSource    = "test"
	testCommander = "Omnath, Locus of Mana"
)

func commanderLegal() map[cards.Format]cards.Legality {
	return map[cards.Format]cards.Legality{cards.FormatCommander: cards.Legal}
}

// testCatalog is a mono-green commander with spells spread over mana
// values 1-6 and enough Forests to fill the mana base.
func testCatalog() *cards.Catalog {
	green := cards.NewColorSet(cards.Green)
	records := []*cards.Card{{
		Name:          testCommander,
		SetCode:       "wwk",
		Colors:        green,
		ColorIdentity: green,
		ManaCost:      "{2}{G}",
		ManaValue:     3,
		TypeLine:      "Legendary Creature — Elemental",
		Rarity:        "mythic",
		Legalities:    commanderLegal(),
		Tags:          []string{"ramp"},
	}, {
		Name:          "Forest",
		SetCode:       "tst",
		ColorIdentity: green,
		TypeLine:      "Basic Land — Forest",
		Rarity:        "common",
		Legalities:    commanderLegal(),
	}}
	for i := range 80 {
		mv := 1 + i%6
		records = append(records, &cards.Card{
			Name:          spellName(i),
			SetCode:       "tst",
			Colors:        green,
			ColorIdentity: green,
			ManaCost:      fmt.Sprintf("{%d}{G}", mv-1),
			ManaValue:     float64(mv),
			TypeLine:      "Creature — Elf",
			Rarity:        "common",
			Legalities:    commanderLegal(),
			Tags:          []string{"ramp"},
		})
	}
	return cards.NewCatalog(records)
}

func spellName(i int) string { return fmt.Sprintf("Spell G%03d", i) }

func testRecords() []collection.Record {
	records := []collection.Record{{Name: "Forest", SetCode: "tst", Quantity: 45}}
	for i := range 80 {
		records = append(records, collection.Record{Name: spellName(i), SetCode: "tst", Quantity: 1})
	}
	return records
}

// fixedSource prices every card at price and counts fetches.
type fixedSource struct {
	price   decimal.Decimal
	fetches atomic.Int64
}

func (s *fixedSource) Name() string { return testSource }

func (s *fixedSource) Fetch(_ context.Context, cardName, setCode string) (prices.Observation, error) {
	s.fetches.Add(1)
	return prices.Observation{
		CardName:   cardName,
		SetCode:    setCode,
		Source:     testSource,
		Price:      s.price,
		ObservedAt: time.Now().UTC(),
	}, nil
}

type testEnv struct {
	svc    *Service
	store  *storage.Service
	source *fixedSource
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	store := storage.NewService(storage.NewTestDB(t))
	source := &fixedSource{price: decimal.RequireFromString("0.25")}

	svc, err := New(Deps{
		Catalog: testCatalog(),
		Store:   store,
		Source:  source,
		Metrics: metrics.NewEngine(),
	}, Config{DefaultWindow: 7})
	require.NoError(t, err)

	return testEnv{svc: svc, store: store, source: source}
}

func observation(name, price string, day time.Time) prices.Observation {
	return prices.Observation{
		CardName:   name,
		SetCode:    "tst",
		Source:     testSource,
		Price:      decimal.RequireFromString(price),
		ObservedAt: day,
	}
}
