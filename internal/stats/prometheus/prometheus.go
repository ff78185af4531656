// Package prometheus provides a Prometheus-based stats collector.
package prometheus

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/discochess/coach/internal/stats"
)

// Compile-time check that Collector implements stats.Collector.
var _ stats.Collector = (*Collector)(nil)

// help describes the metrics this repository emits. Unknown names use the
// name itself as help text.
var help = map[string]string{
	stats.MetricCacheGets:           "Analysis cache lookups.",
	stats.MetricCacheHits:           "Analysis cache lookups that found a valid entry.",
	stats.MetricCacheMisses:         "Analysis cache lookups that found no entry.",
	stats.MetricCachePuts:           "Analysis cache entries written.",
	stats.MetricCacheCorrupt:        "Analysis cache entries discarded as corrupt.",
	stats.MetricCacheEntries:        "Analysis cache entries present after the last snapshot.",
	stats.MetricCacheEntrySize:      "Encoded analysis cache entry size in bytes.",
	stats.MetricStoreCacheHits:      "Read-through store cache hits.",
	stats.MetricStoreCacheMisses:    "Read-through store cache misses.",
	stats.MetricStoreCacheEvictions: "Read-through store cache evictions.",
	stats.MetricStoreCacheSize:      "Read-through store cache size.",
	stats.MetricGamesFetched:        "Games fetched from the game source.",
	stats.MetricGamesEvaluated:      "Games evaluated by the engine.",
	stats.MetricGamesFailed:         "Games whose evaluation failed.",
	stats.MetricEngineTimeouts:      "Games aborted by an engine timeout.",
	stats.MetricEvalSeconds:         "Wall-clock seconds spent evaluating one game.",
	stats.MetricProfileGames:        "Games included in the current profile.",
}

// buckets overrides the default histogram buckets per metric.
var buckets = map[string][]float64{
	stats.MetricEvalSeconds:    prometheus.ExponentialBuckets(0.5, 2, 10),
	stats.MetricCacheEntrySize: prometheus.ExponentialBuckets(256, 2, 10),
}

// Collector implements stats.Collector using Prometheus metrics.
type Collector struct {
	registry prometheus.Registerer

	mu         sync.RWMutex
	counters   map[string]prometheus.Counter
	gauges     map[string]prometheus.Gauge
	histograms map[string]prometheus.Histogram
}

// New creates a new Prometheus collector.
// If registry is nil, prometheus.DefaultRegisterer is used.
func New(registry prometheus.Registerer) *Collector {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	return &Collector{
		registry:   registry,
		counters:   make(map[string]prometheus.Counter),
		gauges:     make(map[string]prometheus.Gauge),
		histograms: make(map[string]prometheus.Histogram),
	}
}

// IncCounter increments a counter metric.
func (c *Collector) IncCounter(name string, delta int64) {
	getOrRegister(c, c.counters, name, func() prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: helpFor(name)})
	}).Add(float64(delta))
}

// SetGauge sets a gauge metric.
func (c *Collector) SetGauge(name string, value int64) {
	getOrRegister(c, c.gauges, name, func() prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: helpFor(name)})
	}).Set(float64(value))
}

// ObserveHistogram records a value in a histogram.
func (c *Collector) ObserveHistogram(name string, value float64) {
	getOrRegister(c, c.histograms, name, func() prometheus.Histogram {
		b, ok := buckets[name]
		if !ok {
			b = prometheus.DefBuckets
		}
		return prometheus.NewHistogram(prometheus.HistogramOpts{Name: name, Help: helpFor(name), Buckets: b})
	}).Observe(value)
}

func helpFor(name string) string {
	if h, ok := help[name]; ok {
		return h
	}
	return name
}

// getOrRegister returns the metric stored under name, creating and
// registering it on first use. A metric registered elsewhere under the same
// name is adopted.
func getOrRegister[M prometheus.Collector](c *Collector, metrics map[string]M, name string, create func() M) M {
	c.mu.RLock()
	m, ok := metrics[name]
	c.mu.RUnlock()
	if ok {
		return m
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check after acquiring write lock.
	if m, ok = metrics[name]; ok {
		return m
	}

	m = create()
	if err := c.registry.Register(m); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(M); ok {
				m = existing
			}
		}
		// Otherwise keep the unregistered metric so callers still work.
	}
	metrics[name] = m
	return m
}
