package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Engine tracks price cache and deck assembly activity. Counters are kept
// both as atomics (for the JSON stats endpoint) and as Prometheus
// collectors on a private registry. A nil *Engine is a valid no-op.
type Engine struct {
	AssemblyLatency  *Histogram
	AnalyticsLatency *Histogram

	CacheHits       atomic.Uint64
	CacheMisses     atomic.Uint64
	UpstreamFetches atomic.Uint64
	UpstreamErrors  atomic.Uint64
	CacheFallbacks  atomic.Uint64

	registry    *prometheus.Registry
	cacheEvents *prometheus.CounterVec
	assemblies  *prometheus.CounterVec
	stageTime   *prometheus.HistogramVec
	analytics   *prometheus.HistogramVec

	startTime time.Time
}

// NewEngine creates a metrics collector with its own registry.
func NewEngine() *Engine {
	m := &Engine{
		AssemblyLatency:  NewHistogram(10000),
		AnalyticsLatency: NewHistogram(10000),
		registry:         prometheus.NewRegistry(),
		cacheEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "deckforge",
			Subsystem: "price_cache",
			Name:      "events_total",
			Help:      "Price cache events by type.",
		}, []string{"event"}),
		assemblies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "deckforge",
			Subsystem: "assembler",
			Name:      "runs_total",
			Help:      "Deck assembly runs by outcome.",
		}, []string{"outcome"}),
		stageTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "deckforge",
			Subsystem: "assembler",
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each assembly stage.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"stage"}),
		analytics: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "deckforge",
			Subsystem: "analytics",
			Name:      "duration_seconds",
			Help:      "Analytics computation time by operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		startTime: time.Now(),
	}

	m.registry.MustRegister(
		m.cacheEvents,
		m.assemblies,
		m.stageTime,
		m.analytics,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// RecordCacheHit counts a read served from the cache.
func (m *Engine) RecordCacheHit() {
	if m == nil {
		return
	}
	m.CacheHits.Add(1)
	m.cacheEvents.WithLabelValues("hit").Inc()
}

// RecordCacheMiss counts a read that had to go upstream.
func (m *Engine) RecordCacheMiss() {
	if m == nil {
		return
	}
	m.CacheMisses.Add(1)
	m.cacheEvents.WithLabelValues("miss").Inc()
}

// RecordUpstreamFetch counts one upstream call and whether it failed.
func (m *Engine) RecordUpstreamFetch(err error) {
	if m == nil {
		return
	}
	m.UpstreamFetches.Add(1)
	m.cacheEvents.WithLabelValues("fetch").Inc()
	if err != nil {
		m.UpstreamErrors.Add(1)
		m.cacheEvents.WithLabelValues("fetch_error").Inc()
	}
}

// RecordCacheFallback counts a stale value served after an upstream failure.
func (m *Engine) RecordCacheFallback() {
	if m == nil {
		return
	}
	m.CacheFallbacks.Add(1)
	m.cacheEvents.WithLabelValues("fallback").Inc()
}

// RecordAssembly records a finished assembly. outcome is "validated" or the
// failure reason.
func (m *Engine) RecordAssembly(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.AssemblyLatency.Record(d)
	m.assemblies.WithLabelValues(outcome).Inc()
}

// RecordStage records the time spent in one assembly stage.
func (m *Engine) RecordStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageTime.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordAnalytics records the duration of an analytics operation.
func (m *Engine) RecordAnalytics(operation string, d time.Duration) {
	if m == nil {
		return
	}
	m.AnalyticsLatency.Record(d)
	m.analytics.WithLabelValues(operation).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Engine) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// EngineStats is a JSON snapshot of the counters.
type EngineStats struct {
	AssemblyLatency  LatencyStats `json:"assembly_latency"`
	AnalyticsLatency LatencyStats `json:"analytics_latency"`

	CacheHits       uint64  `json:"cache_hits"`
	CacheMisses     uint64  `json:"cache_misses"`
	CacheHitRate    float64 `json:"cache_hit_rate"` // percentage
	UpstreamFetches uint64  `json:"upstream_fetches"`
	UpstreamErrors  uint64  `json:"upstream_errors"`
	CacheFallbacks  uint64  `json:"cache_fallbacks"`

	Uptime string `json:"uptime"`
}

// GetStats returns a snapshot of the current statistics.
func (m *Engine) GetStats() *EngineStats {
	if m == nil {
		return &EngineStats{}
	}

	hits := m.CacheHits.Load()
	misses := m.CacheMisses.Load()
	hitRate := 0.0
	if hits+misses > 0 {
		hitRate = float64(hits) / float64(hits+misses) * 100
	}

	return &EngineStats{
		AssemblyLatency:  m.AssemblyLatency.Stats(),
		AnalyticsLatency: m.AnalyticsLatency.Stats(),
		CacheHits:        hits,
		CacheMisses:      misses,
		CacheHitRate:     hitRate,
		UpstreamFetches:  m.UpstreamFetches.Load(),
		UpstreamErrors:   m.UpstreamErrors.Load(),
		CacheFallbacks:   m.CacheFallbacks.Load(),
		Uptime:           time.Since(m.startTime).Round(time.Second).String(),
	}
}
