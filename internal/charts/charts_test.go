package charts

import (
	"bytes"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ramonehamilton/deckforge/internal/analytics"
)

func TestRenderTrend(t *testing.T) {
	points := []analytics.TrendPoint{
		{Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), TotalValue: decimal.RequireFromString("10.005")},
		{Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), TotalValue: decimal.RequireFromString("12.50")},
	}

	var buf bytes.Buffer
	if err := RenderTrend(&buf, points, DefaultChartConfig()); err != nil {
		t.Fatalf("RenderTrend() error = %v", err)
	}

	html := buf.String()
	for _, want := range []string{"Collection value", "2024-01-01", "2024-01-02", "12.5"} {
		if !strings.Contains(html, want) {
			t.Errorf("expected chart to contain %q", want)
		}
	}
}

func TestRenderTrend_Empty(t *testing.T) {
	err := RenderTrend(&bytes.Buffer{}, nil, DefaultChartConfig())
	if !errors.Is(err, ErrNoData) {
		t.Errorf("expected ErrNoData for empty trend, got %v", err)
	}
}

func TestRenderBreakdown(t *testing.T) {
	b := &analytics.Breakdown{
		Dimension: analytics.ByRarity,
		Values: map[string]decimal.Decimal{
			"rare":     decimal.RequireFromString("40"),
			"uncommon": decimal.RequireFromString("2.25"),
		},
	}

	var buf bytes.Buffer
	if err := RenderBreakdown(&buf, b, DefaultChartConfig()); err != nil {
		t.Fatalf("RenderBreakdown() error = %v", err)
	}

	html := buf.String()
	if !strings.Contains(html, "rare") || !strings.Contains(html, "uncommon") {
		t.Error("expected group labels in chart")
	}
	if strings.Index(html, `"rare"`) > strings.Index(html, `"uncommon"`) {
		t.Error("expected groups ordered by value")
	}

	if err := RenderBreakdown(&buf, &analytics.Breakdown{}, DefaultChartConfig()); err == nil {
		t.Error("expected error for empty breakdown")
	}
}

func TestRenderPriceHistory(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2024, 2, d, 0, 0, 0, 0, time.UTC) }
	rows := []analytics.VolatilityRow{
		{CardName: "Sol Ring", History: []analytics.PricePoint{
			{Date: day(1), Price: decimal.RequireFromString("1.00")},
			{Date: day(3), Price: decimal.RequireFromString("1.20")},
		}},
		{CardName: "Mana Crypt", History: []analytics.PricePoint{
			{Date: day(2), Price: decimal.RequireFromString("150")},
		}},
	}

	var buf bytes.Buffer
	if err := RenderPriceHistory(&buf, rows, DefaultChartConfig()); err != nil {
		t.Fatalf("RenderPriceHistory() error = %v", err)
	}
	html := buf.String()
	for _, want := range []string{"Sol Ring", "Mana Crypt", "2024-02-02"} {
		if !strings.Contains(html, want) {
			t.Errorf("expected chart to contain %q", want)
		}
	}

	if err := RenderPriceHistory(&buf, nil, DefaultChartConfig()); err == nil {
		t.Error("expected error without history")
	}
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trend.html")
	points := []analytics.TrendPoint{{Date: time.Now(), TotalValue: decimal.NewFromInt(1)}}

	err := WriteFile(path, func(w io.Writer) error {
		return RenderTrend(w, points, DefaultChartConfig())
	})
	if err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}
