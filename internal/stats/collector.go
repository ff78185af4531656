// Package stats provides a unified interface for collecting metrics.
package stats

// Metric names used throughout the library.
const (
	// Analysis cache metrics.
	MetricCacheGets      = "coach_cache_gets_total"
	MetricCacheHits      = "coach_cache_hits_total"
	MetricCacheMisses    = "coach_cache_misses_total"
	MetricCachePuts      = "coach_cache_puts_total"
	MetricCacheCorrupt   = "coach_cache_corrupt_total"
	MetricCacheEntries   = "coach_cache_entries"
	MetricCacheEntrySize = "coach_cache_entry_bytes"

	// Read-through store cache metrics.
	MetricStoreCacheHits      = "coach_store_cache_hits_total"
	MetricStoreCacheMisses    = "coach_store_cache_misses_total"
	MetricStoreCacheEvictions = "coach_store_cache_evictions_total"
	MetricStoreCacheSize      = "coach_store_cache_size"

	// Pipeline metrics.
	MetricGamesFetched   = "coach_games_fetched_total"
	MetricGamesEvaluated = "coach_games_evaluated_total"
	MetricGamesFailed    = "coach_games_failed_total"
	MetricEngineTimeouts = "coach_engine_timeouts_total"
	MetricEvalSeconds    = "coach_game_eval_seconds"

	// Profile metrics.
	MetricProfileGames = "coach_profile_games"
)

// Collector defines the interface for collecting metrics.
type Collector interface {
	// IncCounter increments a counter metric by delta.
	IncCounter(name string, delta int64)

	// SetGauge sets a gauge metric to value.
	SetGauge(name string, value int64)

	// ObserveHistogram records a value in a histogram metric.
	ObserveHistogram(name string, value float64)
}
