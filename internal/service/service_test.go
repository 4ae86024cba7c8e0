package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/deckforge/internal/analytics"
	"github.com/ramonehamilton/deckforge/internal/apperr"
	"github.com/ramonehamilton/deckforge/internal/collection"
	"github.com/ramonehamilton/deckforge/internal/mtga/cards"
	"github.com/ramonehamilton/deckforge/internal/mtga/deckbuilder"
	"github.com/ramonehamilton/deckforge/internal/prices"
	"github.com/ramonehamilton/deckforge/internal/stats"
	"github.com/ramonehamilton/deckforge/internal/storage"
)

func TestNew_RequiresDeps(t *testing.T) {
	store := storage.NewService(storage.NewTestDB(t))

	_, err := New(Deps{Store: store, Source: &fixedSource{}}, Config{})
	assert.Error(t, err, "missing catalog")

	_, err = New(Deps{Catalog: testCatalog(), Source: &fixedSource{}}, Config{})
	assert.Error(t, err, "missing store")

	_, err = New(Deps{Catalog: testCatalog(), Store: store}, Config{})
	assert.Error(t, err, "missing source")
}

func TestService_AssembleAndSave(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.ImportCollection(ctx, testRecords(), true)
	require.NoError(t, err)

	res, err := env.svc.AssembleDeck(ctx, AssembleRequest{
		Format:    cards.FormatCommander,
		Commander: testCommander,
		Save:      true,
	})
	require.NoError(t, err)
	require.Equal(t, deckbuilder.StateValidated, res.State)
	require.NotNil(t, res.Deck)
	assert.Equal(t, 100, res.Deck.Size())
	require.NotEmpty(t, res.Deck.ID)

	decks, err := env.svc.ListDecks(ctx)
	require.NoError(t, err)
	require.Len(t, decks, 1)
	assert.Equal(t, res.Deck.ID, decks[0].ID)

	saved, err := env.svc.GetDeck(ctx, res.Deck.ID)
	require.NoError(t, err)
	assert.Equal(t, testCommander, saved.Commander.Name)

	// No budget means no upstream traffic.
	assert.Zero(t, env.source.fetches.Load())
}

func TestService_AssembleWithBudget(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.ImportCollection(ctx, testRecords(), true)
	require.NoError(t, err)

	budget := decimal.RequireFromString("100")
	res, err := env.svc.AssembleDeck(ctx, AssembleRequest{
		Format:        cards.FormatCommander,
		Commander:     testCommander,
		Budget:        &budget,
		RefreshPrices: true,
	})
	require.NoError(t, err)
	require.Equal(t, deckbuilder.StateValidated, res.State)

	// Every owned printing plus the commander was fetched and recorded.
	assert.Equal(t, int64(82), env.source.fetches.Load())
	n, err := env.store.Prices().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 82, n)

	price, unpriced := analytics.DeckPrice(res.Deck, mustSnapshot(t, env))
	assert.Empty(t, unpriced)
	assert.True(t, price.LessThanOrEqual(budget), "deck price %s over budget", price)
}

func TestService_AssembleErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.AssembleDeck(ctx, AssembleRequest{Format: cards.FormatCommander, Commander: testCommander})
	assert.Equal(t, apperr.KindInput, apperr.KindOf(err), "empty collection")

	_, err = env.svc.ImportCollection(ctx, testRecords(), true)
	require.NoError(t, err)

	negative := decimal.RequireFromString("-1")
	_, err = env.svc.AssembleDeck(ctx, AssembleRequest{Format: cards.FormatCommander, Commander: testCommander, Budget: &negative})
	assert.Equal(t, apperr.KindInput, apperr.KindOf(err), "negative budget")

	res, err := env.svc.AssembleDeck(ctx, AssembleRequest{Format: "hearthstone", Commander: testCommander})
	assert.Equal(t, apperr.KindInput, apperr.KindOf(err), "unknown format")
	if assert.NotNil(t, res) {
		assert.Equal(t, deckbuilder.StateFailed, res.State)
	}

	tight := decimal.RequireFromString("1")
	_, err = env.svc.AssembleDeck(ctx, AssembleRequest{
		Format: cards.FormatCommander, Commander: testCommander, Budget: &tight, RefreshPrices: true,
	})
	assert.Equal(t, apperr.KindInfeasible, apperr.KindOf(err), "budget too small")
}

func TestService_ImportCollection(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.ImportCollection(ctx, []collection.Record{{Name: "Spell G000", Quantity: 0}}, false)
	assert.Equal(t, apperr.KindInput, apperr.KindOf(err))

	_, err = env.svc.ImportCollection(ctx, nil, true)
	assert.Equal(t, apperr.KindInput, apperr.KindOf(err))

	_, err = env.svc.ImportCollection(ctx, []collection.Record{{Name: "Forest", SetCode: "tst", Quantity: 2}}, false)
	require.NoError(t, err)
	coll, err := env.svc.ImportCollection(ctx, []collection.Record{{Name: "Forest", SetCode: "TST", Quantity: 3}}, false)
	require.NoError(t, err)
	assert.Equal(t, 5, coll.TotalQuantity())

	stored, err := env.svc.Collection(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, stored.TotalQuantity())
}

func TestService_DeckNotFound(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.GetDeck(ctx, "missing")
	assert.Equal(t, apperr.KindUnavailable, apperr.KindOf(err))

	err = env.svc.DeleteDeck(ctx, "missing")
	assert.Equal(t, apperr.KindUnavailable, apperr.KindOf(err))

	err = env.svc.RecordGame(ctx, stats.Game{DeckID: "missing", Outcome: stats.Win})
	assert.Equal(t, apperr.KindInput, apperr.KindOf(err))
}

func TestService_Analytics(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	paid := decimal.RequireFromString("0.50")
	_, err := env.svc.ImportCollection(ctx, []collection.Record{
		{Name: "Spell G000", SetCode: "tst", Quantity: 2, PurchasePrice: &paid},
		{Name: "Spell G001", SetCode: "tst", Quantity: 1},
	}, true)
	require.NoError(t, err)

	day1 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)
	require.NoError(t, env.store.Prices().Append(ctx,
		observation("Spell G000", "1.00", day1),
		observation("Spell G000", "2.00", day2),
	))

	r, err := stats.NewDateRange(day1, day2)
	require.NoError(t, err)
	trend, err := env.svc.GetTrend(ctx, r)
	require.NoError(t, err)
	require.Len(t, trend, 2)
	assert.True(t, decimal.RequireFromString("2.00").Equal(trend[0].TotalValue), "day 1 value %s", trend[0].TotalValue)
	assert.True(t, decimal.RequireFromString("4.00").Equal(trend[1].TotalValue), "day 2 value %s", trend[1].TotalValue)

	breakdown, err := env.svc.GetBreakdown(ctx, analytics.ByRarity)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("4.00").Equal(breakdown.Values["common"]))
	assert.Equal(t, []string{"Spell G001"}, breakdown.Unpriced)

	_, err = env.svc.GetBreakdown(ctx, "color")
	assert.Equal(t, apperr.KindInput, apperr.KindOf(err))

	roi, err := env.svc.GetROI(ctx)
	require.NoError(t, err)
	require.NotNil(t, roi.ROIPercent)
	assert.True(t, decimal.NewFromInt(300).Equal(*roi.ROIPercent), "roi %s", roi.ROIPercent)
	assert.Len(t, roi.Unavailable, 1)

	vol, err := env.svc.GetVolatility(ctx, nil, 2)
	require.NoError(t, err)
	require.Len(t, vol, 2)
	assert.Empty(t, vol[0].Unavailable)
	assert.NotEmpty(t, vol[1].Unavailable)

	vol, err = env.svc.GetVolatility(ctx, nil, 1)
	require.NoError(t, err)
	for _, row := range vol {
		assert.Equal(t, apperr.ReasonInsufficientHistory, row.Unavailable)
	}

	cei, err := env.svc.GetCEI(ctx, []collection.CardRef{{Name: "Spell G000", SetCode: "tst"}})
	require.NoError(t, err)
	require.Len(t, cei, 1)
	assert.Equal(t, analytics.ReasonNoInclusionRate, cei[0].Unavailable)
}

func TestService_CostToWin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.ImportCollection(ctx, testRecords(), true)
	require.NoError(t, err)
	res, err := env.svc.AssembleDeck(ctx, AssembleRequest{
		Format: cards.FormatCommander, Commander: testCommander, Save: true,
	})
	require.NoError(t, err)
	id := res.Deck.ID

	for _, o := range []stats.Outcome{stats.Win, stats.Loss, stats.Loss, stats.Win} {
		require.NoError(t, env.svc.RecordGame(ctx, stats.Game{DeckID: id, Outcome: o}))
	}

	_, err = env.svc.RefreshPrices(ctx)
	require.NoError(t, err)

	rows, err := env.svc.GetCostToWin(ctx, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, id, row.DeckID)
	assert.Equal(t, 2, row.Wins)
	assert.Equal(t, 4, row.Games)
	require.NotNil(t, row.CostToWin)
	assert.True(t, row.Price.Mul(decimal.NewFromInt(2)).Equal(*row.CostToWin), "cost to win %s for price %s", row.CostToWin, row.Price)

	n, err := env.svc.RecomputeInclusionRates(ctx)
	require.NoError(t, err)
	assert.Positive(t, n)

	require.NoError(t, env.svc.DeleteDeck(ctx, id))
	_, err = env.svc.GetCostToWin(ctx, []string{id})
	assert.Equal(t, apperr.KindUnavailable, apperr.KindOf(err))
}

func TestService_RefreshAndStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.ImportCollection(ctx, testRecords(), true)
	require.NoError(t, err)

	result, err := env.svc.RefreshPrices(ctx)
	require.NoError(t, err)
	assert.Equal(t, 81, result.Requested)
	assert.Equal(t, 81, result.Refreshed)
	assert.Empty(t, result.Failed)

	// Cached for the rest of the day.
	obs, err := env.svc.GetPrice(ctx, "Forest", "tst")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("0.25").Equal(obs.Price))
	assert.Equal(t, int64(81), env.source.fetches.Load())

	_, err = env.svc.GetPrice(ctx, "", "")
	assert.Equal(t, apperr.KindInput, apperr.KindOf(err))

	st, err := env.svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 82, st.CatalogCards)
	assert.Equal(t, 125, st.OwnedCards)
	assert.Equal(t, 81, st.Printings)
	assert.Equal(t, testSource, st.PriceSource)
	require.NotNil(t, st.LastRefresh)
	assert.Equal(t, 81, st.LastRefresh.Refreshed)
}

func TestService_SuggestAndFormats(t *testing.T) {
	env := newTestEnv(t)

	got := env.svc.SuggestCards("omnath locus", 3)
	require.NotEmpty(t, got)
	assert.Equal(t, testCommander, got[0])

	assert.Contains(t, env.svc.Formats(), cards.FormatCommander)
}

func TestService_Run(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- env.svc.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func mustSnapshot(t *testing.T, env testEnv) *prices.Snapshot {
	t.Helper()
	snap, err := env.store.Prices().Snapshot(context.Background(), testSource)
	require.NoError(t, err)
	return snap
}
