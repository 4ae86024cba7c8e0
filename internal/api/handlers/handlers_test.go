package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ramonehamilton/deckforge/internal/analytics"
	"github.com/ramonehamilton/deckforge/internal/api/response"
	"github.com/ramonehamilton/deckforge/internal/apperr"
	"github.com/ramonehamilton/deckforge/internal/mtga/cards"
	"github.com/ramonehamilton/deckforge/internal/mtga/deckbuilder"
	"github.com/ramonehamilton/deckforge/internal/prices"
	"github.com/ramonehamilton/deckforge/internal/storage/repository"
)

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	body := struct {
		Data any `json:"data"`
	}{Data: v}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) response.ErrorResponse {
	t.Helper()
	var body response.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error: %v", err)
	}
	return body
}

func TestDeckHandler_Assemble(t *testing.T) {
	deck := &deckbuilder.Deck{ID: "d1", Name: "Omnath", Format: cards.FormatCommander}
	tests := []struct {
		name       string
		body       string
		mock       *mockService
		wantStatus int
		wantReason string
	}{
		{
			name:       "validated",
			body:       `{"format":"commander","commander":"Omnath, Locus of Mana"}`,
			mock:       &mockService{result: &deckbuilder.Result{State: deckbuilder.StateValidated, Deck: deck}},
			wantStatus: http.StatusOK,
		},
		{
			name:       "saved",
			body:       `{"format":"commander","commander":"Omnath, Locus of Mana","save":true}`,
			mock:       &mockService{result: &deckbuilder.Result{State: deckbuilder.StateValidated, Deck: deck}},
			wantStatus: http.StatusCreated,
		},
		{
			name: "budget infeasible",
			body: `{"format":"commander","commander":"Omnath, Locus of Mana","budget":"1.00"}`,
			mock: &mockService{
				result: &deckbuilder.Result{State: deckbuilder.StateFailed, Reason: apperr.ReasonBudgetInfeasible},
				err:    apperr.Infeasible(apperr.ReasonBudgetInfeasible, "Omnath, Locus of Mana"),
			},
			wantStatus: http.StatusUnprocessableEntity,
			wantReason: apperr.ReasonBudgetInfeasible,
		},
		{
			name:       "invalid commander",
			body:       `{"format":"commander","commander":"Nobody"}`,
			mock:       &mockService{err: apperr.Input(apperr.ReasonInvalidCommander, "Nobody")},
			wantStatus: http.StatusBadRequest,
			wantReason: apperr.ReasonInvalidCommander,
		},
		{
			name:       "bad body",
			body:       `{"format":`,
			mock:       &mockService{},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewDeckHandler(tt.mock)
			rec := httptest.NewRecorder()
			h.Assemble(rec, newRequest(http.MethodPost, "/api/v1/decks/assemble", tt.body, nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantReason != "" {
				if got := decodeError(t, rec); got.Reason != tt.wantReason {
					t.Errorf("reason = %q, want %q", got.Reason, tt.wantReason)
				}
			}
		})
	}
}

func TestDeckHandler_AssembleParsesBudget(t *testing.T) {
	mock := &mockService{result: &deckbuilder.Result{State: deckbuilder.StateValidated}}
	h := NewDeckHandler(mock)
	rec := httptest.NewRecorder()
	h.Assemble(rec, newRequest(http.MethodPost, "/", `{"format":"commander","commander":"X","budget":"25.50","refreshPrices":true}`, nil))

	if mock.assembleReq.Budget == nil || !mock.assembleReq.Budget.Equal(decimal.RequireFromString("25.5")) {
		t.Errorf("budget = %v, want 25.5", mock.assembleReq.Budget)
	}
	if !mock.assembleReq.RefreshPrices {
		t.Error("expected refreshPrices to be passed through")
	}
}

func TestDeckHandler_GetDecks_Paginated(t *testing.T) {
	var decks []*repository.DeckSummary
	for _, id := range []string{"a", "b", "c"} {
		decks = append(decks, &repository.DeckSummary{ID: id})
	}
	h := NewDeckHandler(&mockService{decks: decks})

	rec := httptest.NewRecorder()
	h.GetDecks(rec, newRequest(http.MethodGet, "/api/v1/decks?page=2&page_size=2", "", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body struct {
		Data       []repository.DeckSummary `json:"data"`
		TotalCount int                      `json:"total_count"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Data) != 1 || body.Data[0].ID != "c" || body.TotalCount != 3 {
		t.Errorf("unexpected page: %+v", body)
	}
}

func TestDeckHandler_GetDeck_NotFound(t *testing.T) {
	h := NewDeckHandler(&mockService{err: apperr.Unavailable(apperr.ReasonNotFound, "x")})
	rec := httptest.NewRecorder()
	h.GetDeck(rec, newRequest(http.MethodGet, "/api/v1/decks/x", "", map[string]string{"deckID": "x"}))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestDeckHandler_DeleteDeck(t *testing.T) {
	h := NewDeckHandler(&mockService{})
	rec := httptest.NewRecorder()
	h.DeleteDeck(rec, newRequest(http.MethodDelete, "/api/v1/decks/x", "", map[string]string{"deckID": "x"}))

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
}

func TestDeckHandler_RecordGame(t *testing.T) {
	mock := &mockService{}
	h := NewDeckHandler(mock)
	rec := httptest.NewRecorder()
	h.RecordGame(rec, newRequest(http.MethodPost, "/api/v1/decks/d1/games",
		`{"outcome":"win","playedAt":"2026-03-01T20:00:00Z"}`, map[string]string{"deckID": "d1"}))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	if mock.game.DeckID != "d1" || mock.game.Outcome != "win" {
		t.Errorf("unexpected game: %+v", mock.game)
	}
	if !mock.game.PlayedAt.Equal(time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)) {
		t.Errorf("playedAt = %v", mock.game.PlayedAt)
	}
}

func TestCollectionHandler_Import(t *testing.T) {
	mock := &mockService{}
	h := NewCollectionHandler(mock)

	body := `{"records":[{"name":"Sol Ring","quantity":1}],"csv":"name,quantity\nForest,10\n","replace":true}`
	rec := httptest.NewRecorder()
	h.Import(rec, newRequest(http.MethodPost, "/api/v1/collection/import", body, nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if len(mock.records) != 2 || !mock.replace {
		t.Errorf("records = %+v, replace = %v", mock.records, mock.replace)
	}

	var got CollectionResponse
	decodeData(t, rec, &got)
	if got.TotalQuantity != 11 || got.Printings != 2 {
		t.Errorf("unexpected collection: %+v", got)
	}
}

func TestCollectionHandler_ImportErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty", `{}`},
		{"bad csv", `{"csv":"name\nSol Ring\n"}`},
		{"bad quantity", `{"records":[{"name":"Sol Ring","quantity":0}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewCollectionHandler(&mockService{})
			rec := httptest.NewRecorder()
			h.Import(rec, newRequest(http.MethodPost, "/", tt.body, nil))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestAnalyticsHandler_GetTrendRange(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantDays   int
	}{
		{"default", "", http.StatusOK, defaultTrendDays},
		{"days", "?days=7", http.StatusOK, 7},
		{"explicit", "?start=2026-03-01&end=2026-03-05", http.StatusOK, 5},
		{"open end", "?start=2026-03-08", http.StatusOK, 3},
		{"reversed", "?start=2026-03-05&end=2026-03-01", http.StatusBadRequest, 0},
		{"bad days", "?days=zero", http.StatusBadRequest, 0},
		{"too long", "?start=2000-01-01&end=2026-01-01", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockService{trend: []analytics.TrendPoint{}}
			h := NewAnalyticsHandler(mock)
			h.now = func() time.Time { return now }

			rec := httptest.NewRecorder()
			h.GetTrend(rec, newRequest(http.MethodGet, "/api/v1/analytics/trend"+tt.query, "", nil))
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantDays > 0 && mock.dateRange.Len() != tt.wantDays {
				t.Errorf("range has %d days, want %d", mock.dateRange.Len(), tt.wantDays)
			}
		})
	}
}

func TestAnalyticsHandler_GetBreakdown(t *testing.T) {
	b := &analytics.Breakdown{Dimension: analytics.BySet, Values: map[string]decimal.Decimal{"c21": decimal.NewFromInt(3)}}
	h := NewAnalyticsHandler(&mockService{breakdown: b})

	rec := httptest.NewRecorder()
	h.GetBreakdown(rec, newRequest(http.MethodGet, "/api/v1/analytics/breakdown?by=set", "", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.GetBreakdown(rec, newRequest(http.MethodGet, "/api/v1/analytics/breakdown?by=color", "", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestAnalyticsHandler_PerCardRequests(t *testing.T) {
	mock := &mockService{}
	h := NewAnalyticsHandler(mock)

	rec := httptest.NewRecorder()
	h.GetVolatility(rec, newRequest(http.MethodPost, "/", `{"cards":[{"name":"Sol Ring","setCode":"c21"}],"window":14}`, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("volatility status = %d", rec.Code)
	}
	if len(mock.refs) != 1 || mock.refs[0].SetCode != "c21" || mock.window != 14 {
		t.Errorf("refs = %+v, window = %d", mock.refs, mock.window)
	}

	// An empty body analyses the whole collection.
	rec = httptest.NewRecorder()
	h.GetCEI(rec, newRequest(http.MethodPost, "/", "", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("cei status = %d", rec.Code)
	}
	if mock.refs != nil {
		t.Errorf("expected no refs, got %+v", mock.refs)
	}

	rec = httptest.NewRecorder()
	h.GetCostToWin(rec, newRequest(http.MethodPost, "/", `{"deckIds":["a","b"]}`, nil))
	if rec.Code != http.StatusOK || len(mock.deckIDs) != 2 {
		t.Errorf("cost to win status = %d, deck ids = %v", rec.Code, mock.deckIDs)
	}

	rec = httptest.NewRecorder()
	h.GetVolatility(rec, newRequest(http.MethodPost, "/", `{"window":-1}`, nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("negative window status = %d, want 400", rec.Code)
	}
}

func TestAnalyticsHandler_GetROI(t *testing.T) {
	pct := decimal.RequireFromString("12.5")
	report := &analytics.ROIReport{
		TotalSpent:      decimal.RequireFromString("100"),
		CurrentValue:    decimal.RequireFromString("112.50"),
		CollectionValue: decimal.RequireFromString("1234.5"),
		ROIPercent:      &pct,
	}
	h := NewAnalyticsHandler(&mockService{roi: report})

	rec := httptest.NewRecorder()
	h.GetROI(rec, newRequest(http.MethodGet, "/api/v1/analytics/roi", "", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var got struct {
		Display ROIDisplay `json:"display"`
	}
	decodeData(t, rec, &got)
	if got.Display.ROIPercent != "12.50%" {
		t.Errorf("roi display = %q", got.Display.ROIPercent)
	}
	if got.Display.CollectionValue != "$1,234.50" {
		t.Errorf("collection value display = %q", got.Display.CollectionValue)
	}
}

func TestChartHandler(t *testing.T) {
	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	mock := &mockService{
		trend: []analytics.TrendPoint{{Date: day, TotalValue: decimal.NewFromInt(10)}},
		volatility: []analytics.VolatilityRow{{
			CardName: "Sol Ring",
			History:  []analytics.PricePoint{{Date: day, Price: decimal.NewFromInt(2)}},
		}},
	}
	h := NewChartHandler(mock)

	rec := httptest.NewRecorder()
	h.Trend(rec, newRequest(http.MethodGet, "/api/v1/charts/trend?days=1", "", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("trend status = %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html") {
		t.Errorf("Content-Type = %q", rec.Header().Get("Content-Type"))
	}

	rec = httptest.NewRecorder()
	h.PriceHistory(rec, newRequest(http.MethodGet, "/api/v1/charts/prices?card=Sol+Ring%7Cc21&window=5", "", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("price history status = %d: %s", rec.Code, rec.Body.String())
	}
	if mock.window != 5 || mock.refs[0].SetCode != "c21" {
		t.Errorf("refs = %+v, window = %d", mock.refs, mock.window)
	}

	// Nothing priced yet.
	mock.breakdown = &analytics.Breakdown{Dimension: analytics.ByRarity}
	rec = httptest.NewRecorder()
	h.Breakdown(rec, newRequest(http.MethodGet, "/api/v1/charts/breakdown", "", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("empty breakdown status = %d, want 404", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.PriceHistory(rec, newRequest(http.MethodGet, "/api/v1/charts/prices", "", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing card status = %d, want 400", rec.Code)
	}
}

func TestCardHandler(t *testing.T) {
	mock := &mockService{
		names: []string{"Sol Ring"},
		price: prices.Observation{CardName: "Sol Ring", Price: decimal.RequireFromString("1.25")},
	}
	h := NewCardHandler(mock)

	rec := httptest.NewRecorder()
	h.SearchCards(rec, newRequest(http.MethodGet, "/api/v1/cards/search?q=sol", "", nil))
	var names []string
	decodeData(t, rec, &names)
	if len(names) != 1 || names[0] != "Sol Ring" {
		t.Errorf("names = %v", names)
	}

	rec = httptest.NewRecorder()
	h.SearchCards(rec, newRequest(http.MethodGet, "/api/v1/cards/search", "", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing q status = %d, want 400", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.GetPrice(rec, newRequest(http.MethodGet, "/api/v1/cards/price?name=Sol+Ring", "", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("price status = %d", rec.Code)
	}

	mock.err = apperr.Timeout("Sol Ring", errors.New("upstream slow"))
	rec = httptest.NewRecorder()
	h.GetPrice(rec, newRequest(http.MethodGet, "/api/v1/cards/price?name=Sol+Ring", "", nil))
	if rec.Code != http.StatusGatewayTimeout {
		t.Errorf("timeout status = %d, want 504", rec.Code)
	}
}

func TestSystemHandler(t *testing.T) {
	mock := &mockService{refresh: &prices.RefreshResult{Requested: 2, Refreshed: 2}}
	h := NewSystemHandler(mock)

	rec := httptest.NewRecorder()
	h.RefreshPrices(rec, newRequest(http.MethodPost, "/api/v1/prices/refresh", "", nil))
	var result prices.RefreshResult
	decodeData(t, rec, &result)
	if result.Refreshed != 2 {
		t.Errorf("refreshed = %d, want 2", result.Refreshed)
	}

	rec = httptest.NewRecorder()
	h.RecomputeInclusion(rec, newRequest(http.MethodPost, "/api/v1/stats/inclusion", "", nil))
	var counts map[string]int
	decodeData(t, rec, &counts)
	if counts["cards"] != 3 {
		t.Errorf("cards = %d, want 3", counts["cards"])
	}

	mock.err = errors.New("database closed")
	rec = httptest.NewRecorder()
	h.GetStatus(rec, newRequest(http.MethodGet, "/api/v1/status", "", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}
