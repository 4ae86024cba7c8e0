package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/ramonehamilton/deckforge/internal/analytics"
	"github.com/ramonehamilton/deckforge/internal/api/response"
	"github.com/ramonehamilton/deckforge/internal/apperr"
	"github.com/ramonehamilton/deckforge/internal/collection"
	"github.com/ramonehamilton/deckforge/internal/stats"
)

// maxRangeDays bounds the trend range a single request may ask for.
const maxRangeDays = 3660

// defaultTrendDays is the trend range when the request names none.
const defaultTrendDays = 30

// AnalyticsService is the analytics part of the service facade.
type AnalyticsService interface {
	GetTrend(ctx context.Context, r stats.DateRange) ([]analytics.TrendPoint, error)
	GetBreakdown(ctx context.Context, dim analytics.Dimension) (*analytics.Breakdown, error)
	GetCEI(ctx context.Context, refs []collection.CardRef) ([]analytics.CEIRow, error)
	GetCostToWin(ctx context.Context, deckIDs []string) ([]analytics.CostToWinRow, error)
	GetVolatility(ctx context.Context, refs []collection.CardRef, window int) ([]analytics.VolatilityRow, error)
	GetROI(ctx context.Context) (*analytics.ROIReport, error)
}

// AnalyticsHandler handles portfolio analytics API requests.
type AnalyticsHandler struct {
	svc AnalyticsService
	now func() time.Time
}

// NewAnalyticsHandler creates a new AnalyticsHandler.
func NewAnalyticsHandler(svc AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{svc: svc, now: time.Now}
}

// dateRange reads start and end (YYYY-MM-DD) or days from the query.
// Without either, the last defaultTrendDays days are used.
func dateRange(r *http.Request, now time.Time) (stats.DateRange, error) {
	q := r.URL.Query()
	start, end := q.Get("start"), q.Get("end")

	var (
		dr  stats.DateRange
		err error
	)
	switch {
	case start != "" || end != "":
		if end == "" {
			end = now.UTC().Format("2006-01-02")
		}
		if start == "" {
			return dr, apperr.Input("start date is required with end", end)
		}
		dr, err = stats.ParseDateRange(start, end)
		if err != nil {
			return dr, apperr.Input("invalid date range", start+".."+end).Wrap(err)
		}
	case q.Get("days") != "":
		days, err := strconv.Atoi(q.Get("days"))
		if err != nil || days < 1 {
			return dr, apperr.Input("days must be a positive integer", q.Get("days"))
		}
		dr = stats.LastDays(now, days)
	default:
		dr = stats.LastDays(now, defaultTrendDays)
	}

	if dr.Len() > maxRangeDays {
		return dr, apperr.Input(fmt.Sprintf("range exceeds %d days", maxRangeDays), dr.FormatPeriod())
	}
	return dr, nil
}

// decodeOptional decodes a JSON body, treating an empty body as the zero
// value.
func decodeOptional(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// TrendResponse is the collection value over a date range.
type TrendResponse struct {
	Period string                 `json:"period"`
	Points []analytics.TrendPoint `json:"points"`
}

// GetTrend returns the daily collection value.
func (h *AnalyticsHandler) GetTrend(w http.ResponseWriter, r *http.Request) {
	dr, err := dateRange(r, h.now())
	if err != nil {
		response.FromError(w, err)
		return
	}

	points, err := h.svc.GetTrend(r.Context(), dr)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, TrendResponse{Period: dr.FormatPeriod(), Points: points})
}

// GetBreakdown returns the collection value grouped by rarity or set.
func (h *AnalyticsHandler) GetBreakdown(w http.ResponseWriter, r *http.Request) {
	by := r.URL.Query().Get("by")
	if by == "" {
		by = string(analytics.ByRarity)
	}
	dim, err := analytics.ParseDimension(by)
	if err != nil {
		response.FromError(w, err)
		return
	}

	b, err := h.svc.GetBreakdown(r.Context(), dim)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, b)
}

// CardsRequest selects cards for per-card analytics. An empty list means
// the whole collection.
type CardsRequest struct {
	Cards  []collection.CardRef `json:"cards,omitempty"`
	Window int                  `json:"window,omitempty"`
}

// GetCEI returns the card efficiency index.
func (h *AnalyticsHandler) GetCEI(w http.ResponseWriter, r *http.Request) {
	var req CardsRequest
	if err := decodeOptional(r, &req); err != nil {
		response.BadRequest(w, errors.New("invalid request body"))
		return
	}

	rows, err := h.svc.GetCEI(r.Context(), req.Cards)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, rows)
}

// CostToWinRequest selects saved decks. An empty list means every deck.
type CostToWinRequest struct {
	DeckIDs []string `json:"deckIds,omitempty"`
}

// GetCostToWin relates deck prices to win rates.
func (h *AnalyticsHandler) GetCostToWin(w http.ResponseWriter, r *http.Request) {
	var req CostToWinRequest
	if err := decodeOptional(r, &req); err != nil {
		response.BadRequest(w, errors.New("invalid request body"))
		return
	}

	rows, err := h.svc.GetCostToWin(r.Context(), req.DeckIDs)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, rows)
}

// GetVolatility returns price volatility and spike flags.
func (h *AnalyticsHandler) GetVolatility(w http.ResponseWriter, r *http.Request) {
	var req CardsRequest
	if err := decodeOptional(r, &req); err != nil {
		response.BadRequest(w, errors.New("invalid request body"))
		return
	}
	if req.Window < 0 {
		response.FromError(w, apperr.Input("window cannot be negative", strconv.Itoa(req.Window)))
		return
	}

	rows, err := h.svc.GetVolatility(r.Context(), req.Cards, req.Window)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, rows)
}

// ROIResponse is the ROI report with display-formatted totals.
type ROIResponse struct {
	*analytics.ROIReport
	Display ROIDisplay `json:"display"`
}

// ROIDisplay holds currency-formatted ROI totals.
type ROIDisplay struct {
	TotalSpent      string `json:"totalSpent"`
	CurrentValue    string `json:"currentValue"`
	CollectionValue string `json:"collectionValue"`
	ROIPercent      string `json:"roiPercent,omitempty"`
}

// GetROI returns the collection return on investment.
func (h *AnalyticsHandler) GetROI(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.GetROI(r.Context())
	if err != nil {
		response.FromError(w, err)
		return
	}

	display := ROIDisplay{
		TotalSpent:      analytics.FormatUSD(report.TotalSpent),
		CurrentValue:    analytics.FormatUSD(report.CurrentValue),
		CollectionValue: analytics.FormatUSD(report.CollectionValue),
	}
	if report.ROIPercent != nil {
		display.ROIPercent = report.ROIPercent.StringFixed(2) + "%"
	}
	response.Success(w, ROIResponse{ROIReport: report, Display: display})
}
