// Package service is the application facade. It wires the card catalog,
// persistence, price cache and the deck and analytics engines together for
// the HTTP API and the command line.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/ramonehamilton/deckforge/internal/analytics"
	"github.com/ramonehamilton/deckforge/internal/apperr"
	"github.com/ramonehamilton/deckforge/internal/collection"
	"github.com/ramonehamilton/deckforge/internal/metrics"
	"github.com/ramonehamilton/deckforge/internal/mtga/cards"
	"github.com/ramonehamilton/deckforge/internal/mtga/deckbuilder"
	"github.com/ramonehamilton/deckforge/internal/mtga/formats"
	"github.com/ramonehamilton/deckforge/internal/prices"
	"github.com/ramonehamilton/deckforge/internal/stats"
	"github.com/ramonehamilton/deckforge/internal/storage"
	"github.com/ramonehamilton/deckforge/internal/storage/repository"
)

// CardCatalog is the card lookup used by the engines. Both *cards.Catalog
// and *cards.Watcher implement it.
type CardCatalog interface {
	Lookup(name, setCode string) (*cards.Card, bool)
	Suggest(name string, limit int) []string
	Len() int
}

// Deps are the collaborators of a Service.
type Deps struct {
	Catalog CardCatalog
	Store   *storage.Service
	Source  prices.Source
	Formats *formats.Registry // optional, defaults to formats.Default()
	Watcher *cards.Watcher    // optional, run by Run to hot-reload the catalog
	Metrics *metrics.Engine   // optional
	Logger  *slog.Logger
}

// Config tunes a Service.
type Config struct {
	Assembly  deckbuilder.Options
	Analytics analytics.Config

	// DefaultWindow is the volatility window used when a request gives none.
	DefaultWindow int

	CacheTTL        time.Duration
	UpstreamTimeout time.Duration
	MaxCacheEntries int

	// RefreshSchedule is the cron expression of the daily price refresh.
	RefreshSchedule string
	RefreshWorkers  int
}

// Service is the application facade.
type Service struct {
	catalog   CardCatalog
	store     *storage.Service
	formats   *formats.Registry
	cache     *prices.Cache
	assembler *deckbuilder.Assembler
	analytics *analytics.Engine
	refresher *prices.RefreshScheduler
	watcher   *cards.Watcher
	metrics   *metrics.Engine
	config    Config
	logger    *slog.Logger
}

// New wires a Service.
func New(deps Deps, config Config) (*Service, error) {
	if deps.Catalog == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if deps.Source == nil {
		return nil, fmt.Errorf("price source is required")
	}
	if deps.Formats == nil {
		deps.Formats = formats.Default()
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cache := prices.NewCache(deps.Source, prices.CacheConfig{
		TTL:             config.CacheTTL,
		UpstreamTimeout: config.UpstreamTimeout,
		MaxEntries:      config.MaxCacheEntries,
		Backing:         deps.Store.Prices(),
		Recorder:        deps.Store.Prices(),
		Metrics:         deps.Metrics,
		Logger:          logger.With("component", "price_cache"),
	})

	assembler, err := deckbuilder.NewAssembler(deps.Catalog, deps.Formats, deckbuilder.AssemblerConfig{
		Options: config.Assembly,
		Metrics: deps.Metrics,
		Logger:  logger.With("component", "assembler"),
	})
	if err != nil {
		return nil, err
	}

	ac := config.Analytics
	ac.Metrics = deps.Metrics
	ac.Logger = logger.With("component", "analytics")
	engine, err := analytics.NewEngine(deps.Catalog, deps.Store.Stats(), ac)
	if err != nil {
		return nil, fmt.Errorf("failed to create analytics engine: %w", err)
	}
	if config.DefaultWindow < engine.Config().MinWindow {
		config.DefaultWindow = max(30, engine.Config().MinWindow)
	}

	s := &Service{
		catalog:   deps.Catalog,
		store:     deps.Store,
		formats:   deps.Formats,
		cache:     cache,
		assembler: assembler,
		analytics: engine,
		watcher:   deps.Watcher,
		metrics:   deps.Metrics,
		config:    config,
		logger:    logger,
	}

	s.refresher, err = prices.NewRefreshScheduler(prices.RefreshConfig{
		Schedule: config.RefreshSchedule,
		Cache:    cache,
		Targets:  s.refreshTargets,
		Workers:  config.RefreshWorkers,
		Logger:   logger.With("component", "price_refresh"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create price refresh: %w", err)
	}

	return s, nil
}

// Metrics returns the engine metrics, or nil when disabled.
func (s *Service) Metrics() *metrics.Engine { return s.metrics }

// Run starts the background work: the scheduled price refresh and, when
// configured, the catalog file watcher. It blocks until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	if err := s.refresher.Start(ctx); err != nil {
		return err
	}
	defer s.refresher.Stop()

	g, gctx := errgroup.WithContext(ctx)
	if s.watcher != nil {
		g.Go(func() error { return s.watcher.Run(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close releases the store.
func (s *Service) Close() error {
	return s.store.Close()
}

// refreshTargets lists the owned printings for the scheduled refresh.
func (s *Service) refreshTargets(ctx context.Context) ([]collection.CardRef, error) {
	coll, err := s.store.LoadCollection(ctx)
	if err != nil {
		return nil, err
	}
	return refsOf(coll), nil
}

// snapshot reads every stored observation of the active price source. Each
// analytics call works on one snapshot so concurrent refreshes cannot tear
// its results.
func (s *Service) snapshot(ctx context.Context) (*prices.Snapshot, error) {
	snap, err := s.store.Prices().Snapshot(ctx, s.cache.SourceName())
	if err != nil {
		return nil, fmt.Errorf("failed to read price snapshot: %w", err)
	}
	return snap, nil
}

func refsOf(coll *collection.Collection) []collection.CardRef {
	items := coll.Items()
	refs := make([]collection.CardRef, len(items))
	for i, it := range items {
		refs[i] = it.Card
	}
	return refs
}

// AssembleRequest describes a deck build against the stored collection.
type AssembleRequest struct {
	Name         string           `json:"name"`
	Format       cards.Format     `json:"format"`
	Commander    string           `json:"commander"`
	CommanderSet string           `json:"commanderSet,omitempty"`
	Budget       *decimal.Decimal `json:"budget,omitempty"`

	// RefreshPrices fetches today's prices for the collection before a
	// budgeted build instead of relying on the last scheduled refresh.
	RefreshPrices bool `json:"refreshPrices,omitempty"`

	// Save stores a validated deck for later cost-to-win analysis.
	Save bool `json:"save,omitempty"`
}

// AssembleDeck builds a deck from the stored collection. A FAILED build is
// returned together with its *apperr.Error.
func (s *Service) AssembleDeck(ctx context.Context, req AssembleRequest) (*deckbuilder.Result, error) {
	coll, err := s.store.LoadCollection(ctx)
	if err != nil {
		return nil, err
	}

	var lookup deckbuilder.PriceLookup
	if req.Budget != nil {
		if req.Budget.IsNegative() {
			return nil, apperr.Input("budget cannot be negative", req.Budget.String())
		}
		if req.RefreshPrices {
			refs := refsOf(coll)
			refs = append(refs, collection.CardRef{Name: req.Commander, SetCode: req.CommanderSet})
			res, err := s.cache.GetMany(ctx, refs, s.config.RefreshWorkers)
			if err != nil {
				return nil, err
			}
			if len(res.Errors) > 0 {
				s.logger.Warn("Some prices could not be refreshed", "failed", len(res.Errors))
			}
		}
		snap, err := s.snapshot(ctx)
		if err != nil {
			return nil, err
		}
		lookup = snap
	}

	result, err := s.assembler.Assemble(ctx, deckbuilder.Request{
		Name:         req.Name,
		Collection:   coll,
		Format:       req.Format,
		Commander:    req.Commander,
		CommanderSet: req.CommanderSet,
		Budget:       req.Budget,
		Prices:       lookup,
	})
	if err != nil {
		return result, err
	}

	if req.Save && result.Deck != nil {
		if _, err := s.store.SaveDeck(ctx, result.Deck); err != nil {
			return nil, fmt.Errorf("failed to save assembled deck: %w", err)
		}
		s.logger.Info("Saved assembled deck", "deck_id", result.Deck.ID, "name", result.Deck.Name)
	}
	return result, nil
}

// GetDeck loads a saved deck.
func (s *Service) GetDeck(ctx context.Context, id string) (*deckbuilder.Deck, error) {
	return s.store.GetDeck(ctx, id)
}

// ListDecks lists the saved decks, newest first.
func (s *Service) ListDecks(ctx context.Context) ([]*repository.DeckSummary, error) {
	return s.store.ListDecks(ctx)
}

// DeleteDeck removes a saved deck and its games.
func (s *Service) DeleteDeck(ctx context.Context, id string) error {
	if _, err := s.store.GetDeck(ctx, id); err != nil {
		return err
	}
	return s.store.DeleteDeck(ctx, id)
}

// RecordGame stores a game result for a saved deck.
func (s *Service) RecordGame(ctx context.Context, game stats.Game) error {
	return s.store.RecordGame(ctx, game)
}

// RecomputeInclusionRates derives card inclusion rates from the saved decks.
func (s *Service) RecomputeInclusionRates(ctx context.Context) (int, error) {
	return s.store.RecomputeInclusionRates(ctx)
}

// ImportCollection validates and stores import records. Without replace
// they are merged into the stored collection.
func (s *Service) ImportCollection(ctx context.Context, records []collection.Record, replace bool) (*collection.Collection, error) {
	imported, err := collection.FromRecords(records)
	if err != nil {
		return nil, err
	}
	if imported.Len() == 0 && replace {
		return nil, apperr.Input(apperr.ReasonEmptyCollection, "")
	}

	for _, it := range imported.Items() {
		if _, ok := s.catalog.Lookup(it.Card.Name, it.Card.SetCode); !ok && s.catalog.Len() > 0 {
			s.logger.Debug("Imported card is not in the catalog", "card", it.Card.Name, "set", it.Card.SetCode)
		}
	}

	coll, err := s.store.ImportCollection(ctx, imported, replace)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Imported collection", "records", len(records), "printings", coll.Len(), "replace", replace)
	return coll, nil
}

// Collection returns the stored collection.
func (s *Service) Collection(ctx context.Context) (*collection.Collection, error) {
	return s.store.LoadCollection(ctx)
}

// GetTrend returns the daily collection value over r.
func (s *Service) GetTrend(ctx context.Context, r stats.DateRange) ([]analytics.TrendPoint, error) {
	coll, snap, err := s.collectionAndSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	return analytics.CollectTrend(s.analytics.Trend(coll, snap, r)), nil
}

// GetBreakdown groups the current collection value by dim.
func (s *Service) GetBreakdown(ctx context.Context, dim analytics.Dimension) (*analytics.Breakdown, error) {
	coll, snap, err := s.collectionAndSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	return s.analytics.Breakdown(coll, snap, dim)
}

// GetCEI computes the card efficiency index of refs, or of the whole
// collection when refs is empty.
func (s *Service) GetCEI(ctx context.Context, refs []collection.CardRef) ([]analytics.CEIRow, error) {
	refs, snap, err := s.refsAndSnapshot(ctx, refs)
	if err != nil {
		return nil, err
	}
	return s.analytics.CEI(ctx, refs, snap)
}

// GetCostToWin relates saved decks to their win rates. An empty deckIDs
// covers every saved deck.
func (s *Service) GetCostToWin(ctx context.Context, deckIDs []string) ([]analytics.CostToWinRow, error) {
	if len(deckIDs) == 0 {
		summaries, err := s.store.ListDecks(ctx)
		if err != nil {
			return nil, err
		}
		for _, d := range summaries {
			deckIDs = append(deckIDs, d.ID)
		}
	}

	decks := make([]*deckbuilder.Deck, 0, len(deckIDs))
	for _, id := range deckIDs {
		deck, err := s.store.GetDeck(ctx, id)
		if err != nil {
			return nil, err
		}
		decks = append(decks, deck)
	}

	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return s.analytics.CostToWin(ctx, decks, snap)
}

// GetVolatility computes price volatility over the last window days for
// refs, or for the whole collection when refs is empty. A zero window uses
// the configured default.
func (s *Service) GetVolatility(ctx context.Context, refs []collection.CardRef, window int) ([]analytics.VolatilityRow, error) {
	if window == 0 {
		window = s.config.DefaultWindow
	}
	refs, snap, err := s.refsAndSnapshot(ctx, refs)
	if err != nil {
		return nil, err
	}
	return s.analytics.Volatility(ctx, refs, snap, window)
}

// GetROI computes the return on the stored collection.
func (s *Service) GetROI(ctx context.Context) (*analytics.ROIReport, error) {
	coll, snap, err := s.collectionAndSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	return s.analytics.ROI(coll, snap), nil
}

func (s *Service) collectionAndSnapshot(ctx context.Context) (*collection.Collection, *prices.Snapshot, error) {
	coll, err := s.store.LoadCollection(ctx)
	if err != nil {
		return nil, nil, err
	}
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, nil, err
	}
	return coll, snap, nil
}

func (s *Service) refsAndSnapshot(ctx context.Context, refs []collection.CardRef) ([]collection.CardRef, *prices.Snapshot, error) {
	if len(refs) == 0 {
		coll, err := s.store.LoadCollection(ctx)
		if err != nil {
			return nil, nil, err
		}
		refs = refsOf(coll)
	}
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, nil, err
	}
	return refs, snap, nil
}

// GetPrice returns today's price of a printing through the cache.
func (s *Service) GetPrice(ctx context.Context, cardName, setCode string) (prices.Observation, error) {
	if cardName == "" {
		return prices.Observation{}, apperr.Input("card name is required", "")
	}
	return s.cache.Get(ctx, cardName, setCode)
}

// RefreshPrices refreshes every owned printing now.
func (s *Service) RefreshPrices(ctx context.Context) (*prices.RefreshResult, error) {
	return s.refresher.RunOnce(ctx)
}

// SuggestCards returns catalog names close to query.
func (s *Service) SuggestCards(query string, limit int) []string {
	return s.catalog.Suggest(query, limit)
}

// Formats lists the supported formats.
func (s *Service) Formats() []cards.Format {
	return s.formats.Names()
}

// Status summarizes the state of the engine.
type Status struct {
	CatalogCards  int                   `json:"catalogCards"`
	OwnedCards    int                   `json:"ownedCards"`
	Printings     int                   `json:"printings"`
	SavedDecks    int                   `json:"savedDecks"`
	CachedPrices  int                   `json:"cachedPrices"`
	PriceSource   string                `json:"priceSource"`
	NextRefresh   *time.Time            `json:"nextRefresh,omitempty"`
	LastRefresh   *prices.RefreshResult `json:"lastRefresh,omitempty"`
	CatalogReload int64                 `json:"catalogReloads,omitempty"`
}

// Status reports catalog, collection and price cache sizes.
func (s *Service) Status(ctx context.Context) (*Status, error) {
	coll, err := s.store.LoadCollection(ctx)
	if err != nil {
		return nil, err
	}
	decks, err := s.store.ListDecks(ctx)
	if err != nil {
		return nil, err
	}

	st := &Status{
		CatalogCards: s.catalog.Len(),
		OwnedCards:   coll.TotalQuantity(),
		Printings:    coll.Len(),
		SavedDecks:   len(decks),
		CachedPrices: s.cache.Size(),
		PriceSource:  s.cache.SourceName(),
		LastRefresh:  s.refresher.LastResult(),
	}
	if next := s.refresher.NextRun(); !next.IsZero() {
		st.NextRefresh = &next
	}
	if s.watcher != nil {
		st.CatalogReload = s.watcher.Reloads()
	}
	return st, nil
}
