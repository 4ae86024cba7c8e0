// Package charts renders analytics results as interactive HTML charts.
package charts

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/shopspring/decimal"

	"github.com/ramonehamilton/deckforge/internal/analytics"
	"github.com/ramonehamilton/deckforge/internal/prices"
)

// ErrNoData is returned when there is nothing to plot.
var ErrNoData = errors.New("no data to chart")

// ChartConfig holds configuration for charts.
type ChartConfig struct {
	Title    string
	Subtitle string
	Width    string // e.g. "900px"
	Height   string
	Theme    string
	Smooth   bool // line charts only
	Colors   []string
}

// DefaultChartConfig returns default chart configuration.
func DefaultChartConfig() ChartConfig {
	return ChartConfig{
		Width:  "900px",
		Height: "500px",
		Theme:  "light",
		Smooth: true,
		Colors: []string{"#5470C6", "#91CC75", "#FAC858", "#EE6666", "#73C0DE", "#3BA272", "#FC8452", "#9A60B4", "#EA7CCC"},
	}
}

func (c ChartConfig) globalOptions() []charts.GlobalOpts {
	return []charts.GlobalOpts{
		charts.WithInitializationOpts(opts.Initialization{
			Width:  c.Width,
			Height: c.Height,
			Theme:  c.Theme,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    c.Title,
			Subtitle: c.Subtitle,
		}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show:    opts.Bool(true),
			Trigger: "axis",
		}),
		charts.WithLegendOpts(opts.Legend{
			Show: opts.Bool(true),
		}),
		charts.WithColorsOpts(opts.Colors(c.Colors)),
	}
}

// money converts a decimal amount to a float rounded to cents for display.
func money(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}

// RenderTrend writes a line chart of collection value per day.
func RenderTrend(w io.Writer, points []analytics.TrendPoint, config ChartConfig) error {
	if len(points) == 0 {
		return fmt.Errorf("%w: no trend points", ErrNoData)
	}
	if config.Title == "" {
		config.Title = "Collection value"
	}

	line := charts.NewLine()
	line.SetGlobalOptions(config.globalOptions()...)

	labels := make([]string, len(points))
	values := make([]opts.LineData, len(points))
	for i, p := range points {
		labels[i] = prices.DayKey(p.Date)
		values[i] = opts.LineData{Value: money(p.TotalValue)}
	}

	line.SetXAxis(labels).
		AddSeries("Value", values).
		SetSeriesOptions(
			charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(config.Smooth)}),
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(false)}),
		)

	if err := line.Render(w); err != nil {
		return fmt.Errorf("failed to render trend chart: %w", err)
	}
	return nil
}

// RenderBreakdown writes a bar chart of value per group, largest first.
func RenderBreakdown(w io.Writer, b *analytics.Breakdown, config ChartConfig) error {
	if b == nil || len(b.Values) == 0 {
		return fmt.Errorf("%w: no priced groups", ErrNoData)
	}
	if config.Title == "" {
		config.Title = "Value by " + string(b.Dimension)
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(config.globalOptions()...)

	groups := b.Groups()
	values := make([]opts.BarData, len(groups))
	for i, g := range groups {
		values[i] = opts.BarData{Value: money(b.Values[g])}
	}

	bar.SetXAxis(groups).
		AddSeries("Value", values).
		SetSeriesOptions(charts.WithLabelOpts(opts.Label{Show: opts.Bool(false)}))

	if err := bar.Render(w); err != nil {
		return fmt.Errorf("failed to render breakdown chart: %w", err)
	}
	return nil
}

// RenderPriceHistory writes one price line per card on a shared day axis.
// Days without an observation for a card are left empty.
func RenderPriceHistory(w io.Writer, rows []analytics.VolatilityRow, config ChartConfig) error {
	days := make(map[string]struct{})
	for _, r := range rows {
		for _, p := range r.History {
			days[prices.DayKey(p.Date)] = struct{}{}
		}
	}
	if len(days) == 0 {
		return fmt.Errorf("%w: no price history", ErrNoData)
	}
	if config.Title == "" {
		config.Title = "Price history"
	}

	labels := make([]string, 0, len(days))
	for d := range days {
		labels = append(labels, d)
	}
	sort.Strings(labels)

	line := charts.NewLine()
	line.SetGlobalOptions(config.globalOptions()...)
	line.SetXAxis(labels)

	for _, r := range rows {
		byDay := make(map[string]float64, len(r.History))
		for _, p := range r.History {
			byDay[prices.DayKey(p.Date)] = money(p.Price)
		}
		values := make([]opts.LineData, len(labels))
		for i, d := range labels {
			if v, ok := byDay[d]; ok {
				values[i] = opts.LineData{Value: v}
			} else {
				values[i] = opts.LineData{Value: "-"}
			}
		}
		line.AddSeries(r.CardName, values,
			charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(config.Smooth), ConnectNulls: opts.Bool(true)}),
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(false)}),
		)
	}

	if err := line.Render(w); err != nil {
		return fmt.Errorf("failed to render price history chart: %w", err)
	}
	return nil
}

// WriteFile renders a chart to path with render.
func WriteFile(path string, render func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create chart file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close chart file: %w", closeErr)
		}
	}()
	return render(f)
}

// OpenInBrowser opens the given file path in the default web browser.
func OpenInBrowser(filePath string) error {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", absPath)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", absPath)
	case "linux":
		cmd = exec.Command("xdg-open", absPath)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}
