// Package analytics computes the financial views of a collection and its
// decks: value trend, breakdowns, card efficiency, cost-to-win, volatility
// and return on investment. Every computation reads one prices.Snapshot so
// a result never mixes prices from different store states.
package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ramonehamilton/deckforge/internal/metrics"
	"github.com/ramonehamilton/deckforge/internal/mtga/cards"
	"github.com/ramonehamilton/deckforge/internal/stats"
)

// CatalogLookup resolves card metadata for breakdowns.
type CatalogLookup interface {
	Lookup(name, setCode string) (*cards.Card, bool)
}

// Config tunes the engine.
type Config struct {
	// Workers bounds per-card fan-out.
	Workers int

	// MinWindow is the fewest daily observations volatility is computed on.
	MinWindow int

	// SpikeMultiple is k in "latest > mean + k*stddev" of the preceding
	// observations.
	SpikeMultiple float64

	Metrics *metrics.Engine
	Logger  *slog.Logger
}

// DefaultConfig returns the default tuning.
func DefaultConfig() Config {
	return Config{Workers: 8, MinWindow: 2, SpikeMultiple: 2}
}

// Engine computes analytics. It holds no mutable state and is safe for
// concurrent use.
type Engine struct {
	catalog CatalogLookup
	stats   stats.Provider
	config  Config
	logger  *slog.Logger
}

// NewEngine creates an engine. catalog and provider may be nil; the
// operations needing them then report their rows as unavailable.
func NewEngine(catalog CatalogLookup, provider stats.Provider, config Config) (*Engine, error) {
	d := DefaultConfig()
	if config.Workers <= 0 {
		config.Workers = d.Workers
	}
	if config.MinWindow <= 0 {
		config.MinWindow = d.MinWindow
	}
	if config.SpikeMultiple <= 0 {
		config.SpikeMultiple = d.SpikeMultiple
	}
	if config.MinWindow < 2 {
		return nil, fmt.Errorf("minimum volatility window must be at least 2, got %d", config.MinWindow)
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{catalog: catalog, stats: provider, config: config, logger: logger}, nil
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.config }

// observe records the duration of an operation.
func (e *Engine) observe(op string, start time.Time) {
	e.config.Metrics.RecordAnalytics(op, time.Since(start))
}

// fanOut runs fn for every index in [0, n) on at most Workers goroutines.
// Each call writes only its own slot of the caller's result slice.
func (e *Engine) fanOut(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.Workers)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, i)
		})
	}
	return g.Wait()
}
