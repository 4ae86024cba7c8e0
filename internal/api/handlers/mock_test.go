package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ramonehamilton/deckforge/internal/analytics"
	"github.com/ramonehamilton/deckforge/internal/collection"
	"github.com/ramonehamilton/deckforge/internal/mtga/cards"
	"github.com/ramonehamilton/deckforge/internal/mtga/deckbuilder"
	"github.com/ramonehamilton/deckforge/internal/prices"
	"github.com/ramonehamilton/deckforge/internal/service"
	"github.com/ramonehamilton/deckforge/internal/stats"
	"github.com/ramonehamilton/deckforge/internal/storage/repository"
)

// mockService is a mock implementation of every handler service.
type mockService struct {
	result     *deckbuilder.Result
	deck       *deckbuilder.Deck
	decks      []*repository.DeckSummary
	coll       *collection.Collection
	trend      []analytics.TrendPoint
	breakdown  *analytics.Breakdown
	cei        []analytics.CEIRow
	costToWin  []analytics.CostToWinRow
	volatility []analytics.VolatilityRow
	roi        *analytics.ROIReport
	price      prices.Observation
	names      []string
	status     *service.Status
	refresh    *prices.RefreshResult
	err        error

	// captured arguments
	assembleReq service.AssembleRequest
	game        stats.Game
	records     []collection.Record
	replace     bool
	dateRange   stats.DateRange
	refs        []collection.CardRef
	window      int
	deckIDs     []string
}

func (m *mockService) AssembleDeck(_ context.Context, req service.AssembleRequest) (*deckbuilder.Result, error) {
	m.assembleReq = req
	return m.result, m.err
}

func (m *mockService) GetDeck(_ context.Context, _ string) (*deckbuilder.Deck, error) {
	return m.deck, m.err
}

func (m *mockService) ListDecks(_ context.Context) ([]*repository.DeckSummary, error) {
	return m.decks, m.err
}

func (m *mockService) DeleteDeck(_ context.Context, _ string) error {
	return m.err
}

func (m *mockService) RecordGame(_ context.Context, game stats.Game) error {
	m.game = game
	return m.err
}

func (m *mockService) ImportCollection(_ context.Context, records []collection.Record, replace bool) (*collection.Collection, error) {
	m.records, m.replace = records, replace
	if m.err != nil {
		return nil, m.err
	}
	return collection.FromRecords(records)
}

func (m *mockService) Collection(_ context.Context) (*collection.Collection, error) {
	return m.coll, m.err
}

func (m *mockService) GetTrend(_ context.Context, r stats.DateRange) ([]analytics.TrendPoint, error) {
	m.dateRange = r
	return m.trend, m.err
}

func (m *mockService) GetBreakdown(_ context.Context, _ analytics.Dimension) (*analytics.Breakdown, error) {
	return m.breakdown, m.err
}

func (m *mockService) GetCEI(_ context.Context, refs []collection.CardRef) ([]analytics.CEIRow, error) {
	m.refs = refs
	return m.cei, m.err
}

func (m *mockService) GetCostToWin(_ context.Context, deckIDs []string) ([]analytics.CostToWinRow, error) {
	m.deckIDs = deckIDs
	return m.costToWin, m.err
}

func (m *mockService) GetVolatility(_ context.Context, refs []collection.CardRef, window int) ([]analytics.VolatilityRow, error) {
	m.refs, m.window = refs, window
	return m.volatility, m.err
}

func (m *mockService) GetROI(_ context.Context) (*analytics.ROIReport, error) {
	return m.roi, m.err
}

func (m *mockService) SuggestCards(_ string, _ int) []string {
	return m.names
}

func (m *mockService) GetPrice(_ context.Context, _, _ string) (prices.Observation, error) {
	return m.price, m.err
}

func (m *mockService) Formats() []cards.Format {
	return []cards.Format{cards.FormatBrawl, cards.FormatCommander}
}

func (m *mockService) Status(_ context.Context) (*service.Status, error) {
	return m.status, m.err
}

func (m *mockService) RefreshPrices(_ context.Context) (*prices.RefreshResult, error) {
	return m.refresh, m.err
}

func (m *mockService) RecomputeInclusionRates(_ context.Context) (int, error) {
	return 3, m.err
}

// newRequest builds a request with an optional JSON body and chi URL params.
func newRequest(method, target, body string, params map[string]string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if len(params) > 0 {
		rctx := chi.NewRouteContext()
		for k, v := range params {
			rctx.URLParams.Add(k, v)
		}
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	}
	return req
}
