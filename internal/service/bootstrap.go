package service

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/ramonehamilton/deckforge/internal/analytics"
	"github.com/ramonehamilton/deckforge/internal/config"
	"github.com/ramonehamilton/deckforge/internal/metrics"
	"github.com/ramonehamilton/deckforge/internal/mtga/cards"
	"github.com/ramonehamilton/deckforge/internal/mtga/cards/scryfall"
	"github.com/ramonehamilton/deckforge/internal/mtga/formats"
	"github.com/ramonehamilton/deckforge/internal/prices"
	"github.com/ramonehamilton/deckforge/internal/storage"
)

// ConfigFrom maps the file configuration to service tuning.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		Assembly: cfg.Assembly,
		Analytics: analytics.Config{
			Workers:       cfg.Analytics.Workers,
			MinWindow:     cfg.Analytics.MinWindow,
			SpikeMultiple: cfg.Analytics.SpikeMultiple,
		},
		DefaultWindow:   cfg.Analytics.DefaultWindow,
		CacheTTL:        config.Duration(cfg.Cache.TTL),
		UpstreamTimeout: config.Duration(cfg.Cache.UpstreamTimeout),
		MaxCacheEntries: cfg.Cache.MaxEntries,
		RefreshSchedule: cfg.Prices.Schedule,
		RefreshWorkers:  cfg.Prices.Workers,
	}
}

// Open builds a Service from a validated configuration: it opens the
// database, loads the catalog and selects the price source. The caller
// owns the returned Service and must Close it.
func Open(cfg *config.Config, m *metrics.Engine, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := storage.Open(storage.DefaultConfig(cfg.Storage.Path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	store := storage.NewService(db)

	catalog, watcher, err := openCatalog(cfg.Catalog, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	deps := Deps{
		Catalog: catalog,
		Store:   store,
		Source:  newPriceSource(cfg.Prices, store),
		Formats: formats.Default(),
		Watcher: watcher,
		Metrics: m,
		Logger:  logger,
	}

	svc, err := New(deps, ConfigFrom(cfg))
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	logger.Info("Service ready",
		"database", cfg.Storage.Path,
		"catalog_cards", catalog.Len(),
		"price_source", deps.Source.Name())
	return svc, nil
}

// openCatalog loads the bulk file. A missing file yields an empty catalog
// so the server still starts before the first catalog sync.
func openCatalog(cfg config.CatalogConfig, logger *slog.Logger) (CardCatalog, *cards.Watcher, error) {
	if _, err := os.Stat(cfg.BulkPath); os.IsNotExist(err) {
		logger.Warn("Card catalog not found, starting with an empty catalog; run 'deckforge catalog sync'",
			"path", cfg.BulkPath)
		return cards.NewCatalog(nil), nil, nil
	}

	if cfg.Watch {
		w, err := cards.NewWatcher(cfg.BulkPath, logger.With("component", "catalog"))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load card catalog: %w", err)
		}
		return w, w, nil
	}

	catalog, err := cards.LoadBulkFile(cfg.BulkPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load card catalog: %w", err)
	}
	return catalog, nil, nil
}

// newPriceSource selects the upstream price source. The offline store
// source serves previously recorded Scryfall observations.
func newPriceSource(cfg config.PricesConfig, store *storage.Service) prices.Source {
	if cfg.Source == "store" {
		name := scryfall.NewPriceSource(nil, scryfall.Currency(cfg.Currency)).Name()
		return &prices.StoreSource{Store: store.Prices(), SourceName: name}
	}
	client := scryfall.NewClient(scryfall.ClientConfig{
		BaseURL:   cfg.BaseURL,
		UserAgent: cfg.UserAgent,
		RateDelay: config.Duration(cfg.RateDelay),
	})
	return scryfall.NewPriceSource(client, scryfall.Currency(cfg.Currency))
}

// NewScryfallClient builds the catalog sync client from configuration.
func NewScryfallClient(cfg *config.Config) *scryfall.Client {
	return scryfall.NewClient(scryfall.ClientConfig{
		BaseURL:   cfg.Prices.BaseURL,
		UserAgent: cfg.Prices.UserAgent,
		RateDelay: config.Duration(cfg.Prices.RateDelay),
	})
}
