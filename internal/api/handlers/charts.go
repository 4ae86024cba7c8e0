package handlers

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ramonehamilton/deckforge/internal/analytics"
	"github.com/ramonehamilton/deckforge/internal/api/response"
	"github.com/ramonehamilton/deckforge/internal/apperr"
	"github.com/ramonehamilton/deckforge/internal/charts"
	"github.com/ramonehamilton/deckforge/internal/collection"
)

// ChartHandler renders analytics as HTML charts.
type ChartHandler struct {
	svc AnalyticsService
	now func() time.Time
}

// NewChartHandler creates a new ChartHandler.
func NewChartHandler(svc AnalyticsService) *ChartHandler {
	return &ChartHandler{svc: svc, now: time.Now}
}

// writeHTML renders into a buffer first so a failure can still be reported
// as a JSON error.
func writeHTML(w http.ResponseWriter, render func(io.Writer) error) {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		if errors.Is(err, charts.ErrNoData) {
			response.FromError(w, apperr.Unavailable("nothing to chart", "").Wrap(err))
			return
		}
		response.InternalError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// Trend renders the collection value over a date range.
func (h *ChartHandler) Trend(w http.ResponseWriter, r *http.Request) {
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

	cfg := charts.DefaultChartConfig()
	cfg.Subtitle = dr.FormatPeriod()
	writeHTML(w, func(out io.Writer) error { return charts.RenderTrend(out, points, cfg) })
}

// Breakdown renders the collection value by rarity or set.
func (h *ChartHandler) Breakdown(w http.ResponseWriter, r *http.Request) {
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

	cfg := charts.DefaultChartConfig()
	cfg.Subtitle = "Total " + analytics.FormatUSD(b.Total)
	writeHTML(w, func(out io.Writer) error { return charts.RenderBreakdown(out, b, cfg) })
}

// PriceHistory renders the trailing daily prices of the cards named by the
// repeated card query parameter ("Name" or "Name|set"). window defaults to
// the configured volatility window.
func (h *ChartHandler) PriceHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var refs []collection.CardRef
	for _, v := range q["card"] {
		name, set, _ := strings.Cut(v, "|")
		if strings.TrimSpace(name) == "" {
			continue
		}
		refs = append(refs, collection.CardRef{Name: strings.TrimSpace(name), SetCode: strings.TrimSpace(set)})
	}
	if len(refs) == 0 {
		response.FromError(w, apperr.Input("at least one card is required", ""))
		return
	}

	window := 0
	if s := q.Get("window"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			response.FromError(w, apperr.Input("window must be a positive integer", s))
			return
		}
		window = n
	}

	rows, err := h.svc.GetVolatility(r.Context(), refs, window)
	if err != nil {
		response.FromError(w, err)
		return
	}
	writeHTML(w, func(out io.Writer) error {
		return charts.RenderPriceHistory(out, rows, charts.DefaultChartConfig())
	})
}
