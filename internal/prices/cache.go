package prices

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/ramonehamilton/deckforge/internal/apperr"
	"github.com/ramonehamilton/deckforge/internal/collection"
	"github.com/ramonehamilton/deckforge/internal/metrics"
)

// CacheBacking persists cache entries (the price_cache table) so a restart
// does not refetch every price and fallbacks survive eviction.
type CacheBacking interface {
	GetCached(ctx context.Context, key SeriesKey) (obs Observation, updatedAt time.Time, found bool, err error)
	PutCached(ctx context.Context, obs Observation, updatedAt time.Time) error
}

// CacheConfig configures a Cache.
type CacheConfig struct {
	// TTL bounds how long a fetched price is served without refetching.
	// Default: 6 hours
	TTL time.Duration

	// UpstreamTimeout bounds a single upstream fetch.
	// Default: 10 seconds
	UpstreamTimeout time.Duration

	// MaxEntries bounds the in-memory entries and, separately, the
	// last-good values kept for fallback; the oldest is evicted first.
	// Default: 50000
	MaxEntries int

	Backing  CacheBacking    // optional
	Recorder Store           // optional; fetched observations are appended
	Metrics  *metrics.Engine // optional
	Logger   *slog.Logger
	Now      func() time.Time
}

type cacheKey struct {
	series SeriesKey
	day    string
}

func (k cacheKey) String() string { return k.series.String() + "|" + k.day }

type cacheEntry struct {
	obs       Observation
	expiresAt time.Time
}

// Cache is a read-through price cache keyed by (card, set, source, day).
// Concurrent misses for the same key share one upstream fetch, expiry is
// checked on read, and a failed fetch falls back to the last value seen.
type Cache struct {
	source Source
	config CacheConfig
	logger *slog.Logger

	mu      sync.Mutex
	entries map[cacheKey]*cacheEntry
	order   []cacheKey                // insertion order for eviction
	last      map[SeriesKey]Observation // last good value per series
	lastOrder []SeriesKey               // insertion order of last

	group singleflight.Group
}

// NewCache creates a cache in front of source.
func NewCache(source Source, config CacheConfig) *Cache {
	if config.TTL <= 0 {
		config.TTL = 6 * time.Hour
	}
	if config.UpstreamTimeout <= 0 {
		config.UpstreamTimeout = 10 * time.Second
	}
	if config.MaxEntries <= 0 {
		config.MaxEntries = 50000
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Cache{
		source:  source,
		config:  config,
		logger:  logger,
		entries: make(map[cacheKey]*cacheEntry),
		last:    make(map[SeriesKey]Observation),
	}
}

// SourceName returns the name of the upstream source.
func (c *Cache) SourceName() string { return c.source.Name() }

// Get returns today's price for a printing, fetching it at most once per
// key across concurrent callers. If ctx ends first the caller gets ctx.Err()
// while the shared fetch completes and is committed for later readers.
func (c *Cache) Get(ctx context.Context, cardName, setCode string) (Observation, error) {
	now := c.config.Now()
	key := cacheKey{series: NewSeriesKey(cardName, setCode, c.source.Name()), day: DayKey(now)}

	if obs, ok := c.lookup(key, now); ok {
		c.config.Metrics.RecordCacheHit()
		return obs, nil
	}
	c.config.Metrics.RecordCacheMiss()

	// The fetch must outlive the first caller so waiters are not cancelled
	// with it.
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key.String(), func() (any, error) {
		return c.load(fetchCtx, key, cardName, setCode)
	})

	select {
	case <-ctx.Done():
		return Observation{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Observation{}, res.Err
		}
		return res.Val.(Observation), nil
	}
}

// lookup returns a live entry, removing it if it has expired.
func (c *Cache) lookup(key cacheKey, now time.Time) (Observation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return Observation{}, false
	}
	if !now.Before(entry.expiresAt) {
		delete(c.entries, key)
		return Observation{}, false
	}
	return entry.obs, true
}

func (c *Cache) load(ctx context.Context, key cacheKey, cardName, setCode string) (Observation, error) {
	now := c.config.Now()

	// A fresh persisted entry from today counts as a hit.
	if c.config.Backing != nil {
		obs, updatedAt, found, err := c.config.Backing.GetCached(ctx, key.series)
		if err != nil {
			c.logger.Warn("Price cache backing read failed", "card", cardName, "error", err)
		} else if found && DayKey(updatedAt) == key.day && now.Before(updatedAt.Add(c.config.TTL)) {
			c.store(key, obs, updatedAt)
			return obs, nil
		}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, c.config.UpstreamTimeout)
	defer cancel()

	obs, err := c.source.Fetch(fetchCtx, cardName, setCode)
	if err == nil {
		if obs.Source == "" {
			obs.Source = c.source.Name()
		}
		if obs.ObservedAt.IsZero() {
			obs.ObservedAt = now
		}
		err = obs.Validate()
	}
	c.config.Metrics.RecordUpstreamFetch(err)

	if err != nil {
		return c.fallback(ctx, key.series, cardName, err)
	}

	c.store(key, obs, now)
	if c.config.Backing != nil {
		if err := c.config.Backing.PutCached(ctx, obs, now); err != nil {
			c.logger.Warn("Failed to persist cached price", "card", cardName, "error", err)
		}
	}
	if c.config.Recorder != nil {
		if err := c.config.Recorder.Append(ctx, obs); err != nil {
			c.logger.Warn("Failed to record price observation", "card", cardName, "error", err)
		}
	}
	return obs, nil
}

// fallback serves the last known value after a failed fetch. Without one
// the failure surfaces as DataUnavailable.
func (c *Cache) fallback(ctx context.Context, series SeriesKey, cardName string, cause error) (Observation, error) {
	if errors.Is(cause, context.DeadlineExceeded) {
		cause = apperr.Timeout(cardName, cause)
	}

	c.mu.Lock()
	obs, ok := c.last[series]
	c.mu.Unlock()

	if !ok && c.config.Backing != nil {
		var err error
		obs, _, ok, err = c.config.Backing.GetCached(ctx, series)
		if err != nil {
			ok = false
		}
	}

	if ok {
		c.config.Metrics.RecordCacheFallback()
		c.logger.Warn("Serving last cached price after upstream failure",
			"card", cardName, "observed_at", obs.ObservedAt, "error", cause)
		return obs, nil
	}

	return Observation{}, apperr.Unavailable(apperr.ReasonMissingPrice, cardName).Wrap(cause)
}

func (c *Cache) store(key cacheKey, obs Observation, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists {
		for len(c.entries) >= c.config.MaxEntries && len(c.order) > 0 {
			c.evictOldest()
		}
		c.order = append(c.order, key)
	}
	c.entries[key] = &cacheEntry{obs: obs, expiresAt: at.Add(c.config.TTL)}

	if _, exists := c.last[key.series]; !exists {
		for len(c.last) >= c.config.MaxEntries && len(c.lastOrder) > 0 {
			delete(c.last, c.lastOrder[0])
			c.lastOrder = c.lastOrder[1:]
		}
		c.lastOrder = append(c.lastOrder, key.series)
	}
	c.last[key.series] = obs
}

// evictOldest removes the oldest inserted key. Keys already dropped by
// lazy expiry are skipped.
func (c *Cache) evictOldest() {
	for len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		if _, ok := c.entries[oldest]; ok {
			delete(c.entries, oldest)
			return
		}
	}
}

// Size returns the number of in-memory entries, expired ones included.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Invalidate drops the live entries of a printing. The fallback value is
// kept.
func (c *Cache) Invalidate(cardName, setCode string) {
	series := NewSeriesKey(cardName, setCode, c.source.Name())

	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if key.series == series {
			delete(c.entries, key)
		}
	}
}

// PrefetchResult reports the outcome of GetMany.
type PrefetchResult struct {
	Prices map[string]Observation // keyed by CardRef.Key()
	Errors map[string]error
}

// GetMany fetches prices for refs using at most workers concurrent lookups.
// A failure for one card never blocks the others.
func (c *Cache) GetMany(ctx context.Context, refs []collection.CardRef, workers int) (*PrefetchResult, error) {
	if workers <= 0 {
		workers = 4
	}

	res := &PrefetchResult{
		Prices: make(map[string]Observation, len(refs)),
		Errors: make(map[string]error),
	}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, ref := range refs {
		g.Go(func() error {
			obs, err := c.Get(gctx, ref.Name, ref.SetCode)
			if err != nil && gctx.Err() != nil {
				return gctx.Err()
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Errors[ref.Key()] = err
			} else {
				res.Prices[ref.Key()] = obs
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to fetch prices: %w", err)
	}
	return res, nil
}
