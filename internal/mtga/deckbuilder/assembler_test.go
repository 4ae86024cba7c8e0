package deckbuilder

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/deckforge/internal/apperr"
	"github.com/ramonehamilton/deckforge/internal/collection"
	"github.com/ramonehamilton/deckforge/internal/metrics"
	"github.com/ramonehamilton/deckforge/internal/mtga/cards"
	"github.com/ramonehamilton/deckforge/internal/mtga/formats"
)

func commanderRequest(f fixture, coll *collection.Collection) Request {
	return Request{
		Collection: coll,
		Format:     cards.FormatCommander,
		Commander:  f.commander.Name,
	}
}

func TestAssemble_CommanderDeck(t *testing.T) {
	f := newFixture(100, 20)
	m := metrics.NewEngine()
	a, err := NewAssembler(f.catalog, formats.Default(), AssemblerConfig{Metrics: m})
	require.NoError(t, err)

	res, err := a.Assemble(context.Background(), commanderRequest(f, f.collection(t)))
	require.NoError(t, err)
	require.Equal(t, StateValidated, res.State)
	require.NotNil(t, res.Deck)

	deck := res.Deck
	assert.Equal(t, 100, deck.Size())
	assert.Equal(t, f.commander.Name, deck.Commander.Name)
	assert.Equal(t, "Ghave, Guru of Spores (commander)", deck.Name)

	identity := f.commander.ColorIdentity
	seen := make(map[string]bool)
	for _, dc := range deck.Cards {
		assert.True(t, dc.Card.ColorIdentity.SubsetOf(identity), "%s outside identity", dc.Card.Name)
		if dc.Card.IsBasicLand() {
			continue
		}
		assert.Equal(t, 1, dc.Quantity, dc.Card.Name)
		assert.False(t, seen[dc.Card.Name], "duplicate %s", dc.Card.Name)
		seen[dc.Card.Name] = true
	}
	assert.NoError(t, Validate(deck, mustRules(t, cards.FormatCommander)))

	lands := deck.Analysis.LandCount
	assert.GreaterOrEqual(t, lands, 30)
	assert.LessOrEqual(t, lands, 42)
	assert.Equal(t, 99, deck.Analysis.SpellCount+lands)

	var states []State
	for _, ev := range res.Trace {
		states = append(states, ev.State)
	}
	assert.Equal(t, []State{StateInit, StateSeeding, StateFilling, StateCurveBalancing, StateLandFill, StateValidated}, states)

	reasons := make(map[string]string)
	for _, ex := range res.Exclusions {
		reasons[ex.Card] = ex.Reason
	}
	assert.Equal(t, ExcludeBanned, reasons["Banned Spell"])
	assert.Equal(t, ExcludeIdentity, reasons["Spell R000"])
	assert.Equal(t, ExcludeIdentity, reasons["Island"])
	assert.Equal(t, ExcludeNotInCatalog, reasons["Unknown Card"])

	assert.Equal(t, 1, m.GetStats().AssemblyLatency.Count)
}

func TestAssemble_Deterministic(t *testing.T) {
	f := newFixture(100, 20)
	a := newTestAssembler(t, f.catalog, Options{})

	names := func(coll *collection.Collection) []string {
		res, err := a.Assemble(context.Background(), commanderRequest(f, coll))
		require.NoError(t, err)
		var out []string
		for _, dc := range res.Deck.Cards {
			for i := 0; i < dc.Quantity; i++ {
				out = append(out, dc.Card.Name)
			}
		}
		return out
	}

	first := names(f.collection(t))

	// Same cards imported in reverse order.
	reversed := make([]collection.Record, len(f.records))
	for i, r := range f.records {
		reversed[len(f.records)-1-i] = r
	}
	coll, err := collection.FromRecords(reversed)
	require.NoError(t, err)

	assert.Equal(t, first, names(coll))
	assert.Equal(t, first, names(f.collection(t)))
}

func TestAssemble_SeedsShareCommanderThemes(t *testing.T) {
	f := newFixture(100, 20)
	a := newTestAssembler(t, f.catalog, Options{})

	res, err := a.Assemble(context.Background(), commanderRequest(f, f.collection(t)))
	require.NoError(t, err)

	seeds := 0
	for _, dc := range res.Deck.Cards {
		if dc.Stage != StateSeeding {
			continue
		}
		seeds++
		shared := dc.Card.HasTag("tokens") || dc.Card.HasTag("counters") || dc.Card.HasTag("sacrifice")
		assert.True(t, shared, "seed %s shares no commander theme", dc.Card.Name)
	}
	assert.Greater(t, seeds, 0)
	assert.LessOrEqual(t, seeds, DefaultOptions().SeedCap)
}

func TestAssemble_InsufficientLegalCards(t *testing.T) {
	// 61 spells + Command Tower + 18 basics = 80 legal cards for 99 slots.
	f := newFixture(61, 6)
	a := newTestAssembler(t, f.catalog, Options{})

	res, err := a.Assemble(context.Background(), commanderRequest(f, f.collection(t)))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindInfeasible))
	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, apperr.ReasonInsufficientCards, res.Reason)
	assert.Nil(t, res.Deck)
}

func TestAssemble_InputErrors(t *testing.T) {
	f := newFixture(100, 20)
	a := newTestAssembler(t, f.catalog, Options{})
	coll := f.collection(t)

	nonLegendary := f.spells[0].Name

	tests := []struct {
		name   string
		req    Request
		reason string
	}{
		{"unknown format", Request{Collection: coll, Format: "tiny-leaders", Commander: f.commander.Name}, apperr.ReasonUnknownFormat},
		{"empty collection", Request{Collection: collection.New(), Format: cards.FormatCommander, Commander: f.commander.Name}, apperr.ReasonEmptyCollection},
		{"missing commander", Request{Collection: coll, Format: cards.FormatCommander}, apperr.ReasonInvalidCommander},
		{"unknown commander", Request{Collection: coll, Format: cards.FormatCommander, Commander: "Nobody"}, apperr.ReasonInvalidCommander},
		{"not legendary", Request{Collection: coll, Format: cards.FormatCommander, Commander: nonLegendary}, apperr.ReasonInvalidCommander},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := a.Assemble(context.Background(), tt.req)
			require.Error(t, err)
			assert.Equal(t, apperr.KindInput, apperr.KindOf(err))
			assert.Equal(t, StateFailed, res.State)
			assert.Equal(t, tt.reason, res.Reason)
			require.Len(t, res.Trace, 2)
			assert.Equal(t, StateFailed, res.Trace[1].State)
		})
	}
}

func TestAssemble_Budget(t *testing.T) {
	f := newFixture(100, 20)

	expensive := testSpell(3, cards.Green)
	expensive.Name = "Expensive Staple"
	expensive.Tags = []string{"staple", "tokens"}
	records := append([]*cards.Card{}, f.catalog.Cards()...)
	records = append(records, expensive)
	f.catalog = cards.NewCatalog(records)
	f.records = append(f.records, collection.Record{Name: expensive.Name, SetCode: "tst", Quantity: 1})

	snapshot := f.priceAll("0.50", "5.00").With(pricedAt(expensive, "150"))
	a := newTestAssembler(t, f.catalog, Options{})

	t.Run("within budget", func(t *testing.T) {
		budget := decimal.NewFromInt(50)
		req := commanderRequest(f, f.collection(t))
		req.Budget, req.Prices = &budget, snapshot

		res, err := a.Assemble(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, 100, res.Deck.Size())
		assert.True(t, res.Deck.Analysis.TotalPrice.LessThanOrEqual(budget), "total %s", res.Deck.Analysis.TotalPrice)

		var overBudget []string
		for _, ex := range res.Exclusions {
			if ex.Reason == ExcludeOverBudget {
				overBudget = append(overBudget, ex.Card)
			}
		}
		assert.Equal(t, []string{"Expensive Staple"}, overBudget)
	})

	t.Run("commander over budget", func(t *testing.T) {
		budget := decimal.NewFromInt(1)
		req := commanderRequest(f, f.collection(t))
		req.Budget, req.Prices = &budget, snapshot

		res, err := a.Assemble(context.Background(), req)
		require.Error(t, err)
		assert.Equal(t, apperr.ReasonBudgetInfeasible, res.Reason)
		assert.True(t, apperr.Is(err, apperr.KindInfeasible))
	})

	t.Run("too few affordable spells", func(t *testing.T) {
		budget := decimal.NewFromInt(10)
		req := commanderRequest(f, f.collection(t))
		req.Budget, req.Prices = &budget, snapshot

		res, err := a.Assemble(context.Background(), req)
		require.Error(t, err)
		assert.Equal(t, apperr.ReasonBudgetInfeasible, res.Reason)
		assert.Equal(t, StateFailed, res.State)
	})

	t.Run("negative budget", func(t *testing.T) {
		budget := decimal.NewFromInt(-1)
		req := commanderRequest(f, f.collection(t))
		req.Budget = &budget

		_, err := a.Assemble(context.Background(), req)
		assert.True(t, apperr.Is(err, apperr.KindInput))
	})
}

func TestAssemble_OwnedCommanderLeavesPool(t *testing.T) {
	f := newFixture(100, 20)
	f.records = append(f.records, collection.Record{Name: f.commander.Name, SetCode: "c15", Quantity: 1})
	a := newTestAssembler(t, f.catalog, Options{})

	res, err := a.Assemble(context.Background(), commanderRequest(f, f.collection(t)))
	require.NoError(t, err)
	for _, dc := range res.Deck.Cards {
		assert.NotEqual(t, f.commander.Name, dc.Card.Name)
	}
}

func TestAssemble_UnlimitedBasics(t *testing.T) {
	// Two basics each is far from enough unless basics are unlimited.
	f := newFixture(100, 2)
	a := newTestAssembler(t, f.catalog, Options{UnlimitedBasics: true})

	res, err := a.Assemble(context.Background(), commanderRequest(f, f.collection(t)))
	require.NoError(t, err)
	assert.Equal(t, 100, res.Deck.Size())

	limited := newTestAssembler(t, f.catalog, Options{})
	res, err = limited.Assemble(context.Background(), commanderRequest(f, f.collection(t)))
	require.Error(t, err)
	assert.Equal(t, apperr.ReasonInsufficientCards, res.Reason)
}

func TestAssemble_ContextCancelled(t *testing.T) {
	f := newFixture(100, 20)
	a := newTestAssembler(t, f.catalog, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := a.Assemble(ctx, commanderRequest(f, f.collection(t)))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, res)
}

func TestNewAssembler_InvalidOptions(t *testing.T) {
	_, err := NewAssembler(cards.NewCatalog(nil), nil, AssemblerConfig{
		Options: Options{CurveTolerance: 2},
	})
	assert.Error(t, err)
}

func TestAllocateBasics(t *testing.T) {
	f := newFixture(0, 20)
	a := newTestAssembler(t, f.catalog, Options{})
	rules := mustRules(t, cards.FormatCommander)

	newRun := func() *assembly {
		r := &assembly{a: a, rules: rules, basics: make(map[string]*candidate), excluded: make(map[string]bool)}
		r.req.Collection = f.collection(t)
		r.commander = f.commander
		id := f.commander.ColorIdentity
		r.identity = &id
		r.deck = NewPartialDeck(f.commander, a.opts.Curve, 60)
		r.buildPool()
		return r
	}

	t.Run("proportional with remainder to the most frequent color", func(t *testing.T) {
		r := newRun()
		// Commander contributes W, B, G; add two extra green pips.
		r.deck.Add(&cards.Card{Name: "Green Thing", ManaCost: "{G}{G}", ManaValue: 2, TypeLine: "Creature"})
		alloc, ok := r.allocateBasics(10)
		require.True(t, ok)

		got := make(map[string]int)
		for _, b := range alloc {
			got[b.cand.card.Name] += b.count
		}
		// W1 B1 G3 of 5 pips: floors 2, 2, 6 sum 10.
		assert.Equal(t, map[string]int{"Plains": 2, "Swamp": 2, "Forest": 6}, got)
	})

	t.Run("shortfall moves to colors with spare basics", func(t *testing.T) {
		r := newRun()
		r.deck.Add(&cards.Card{Name: "Green Thing", ManaCost: "{G}{G}{G}{G}{G}{G}{G}", ManaValue: 7, TypeLine: "Creature"})
		alloc, ok := r.allocateBasics(30)
		require.True(t, ok)

		total := 0
		for _, b := range alloc {
			assert.LessOrEqual(t, b.count, 20)
			total += b.count
		}
		assert.Equal(t, 30, total)
	})

	t.Run("not enough basics", func(t *testing.T) {
		r := newRun()
		_, ok := r.allocateBasics(61)
		assert.False(t, ok)
	})
}

func mustRules(t *testing.T, f cards.Format) formats.Rules {
	t.Helper()
	rules, err := formats.Default().Lookup(f)
	require.NoError(t, err)
	return rules
}
