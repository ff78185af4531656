package memory

import (
	"testing"

	"github.com/discochess/coach/internal/store/cachedstore/cachestrategy/lru"
)

// countingCollector records counter increments by name.
type countingCollector struct {
	counters map[string]int64
	gauges   map[string]int64
}

func newCountingCollector() *countingCollector {
	return &countingCollector{counters: map[string]int64{}, gauges: map[string]int64{}}
}

func (c *countingCollector) IncCounter(name string, delta int64)         { c.counters[name] += delta }
func (c *countingCollector) SetGauge(name string, value int64)           { c.gauges[name] = value }
func (c *countingCollector) ObserveHistogram(name string, value float64) {}

func newBackend(t *testing.T, capacity int) (*Backend, *countingCollector) {
	t.Helper()
	strategy, err := lru.New(capacity)
	if err != nil {
		t.Fatalf("lru.New() error = %v", err)
	}
	c := newCountingCollector()
	return New(strategy, c), c
}

func TestBackend_GetSetRemove(t *testing.T) {
	b, _ := newBackend(t, 10)

	if _, ok := b.Get("entry/1"); ok {
		t.Error("Get() should return false for missing key")
	}

	b.Set("entry/1", []byte("hello"))
	data, ok := b.Get("entry/1")
	if !ok || string(data) != "hello" {
		t.Errorf("Get() = %q, %v; want %q, true", data, ok, "hello")
	}

	b.Remove("entry/1")
	if _, ok := b.Get("entry/1"); ok {
		t.Error("Get() after Remove should miss")
	}
}

func TestBackend_Stats(t *testing.T) {
	b, c := newBackend(t, 10)

	b.Set("a", []byte("data"))
	b.Get("a")
	b.Get("b")

	s := b.Stats()
	if s.Hits != 1 || s.Misses != 1 || s.Size != 1 {
		t.Errorf("Stats() = %+v, want 1 hit, 1 miss, size 1", s)
	}
	if c.counters["coach_store_cache_hits_total"] != 1 {
		t.Errorf("hit counter = %d, want 1", c.counters["coach_store_cache_hits_total"])
	}
	if c.gauges["coach_store_cache_size"] != 1 {
		t.Errorf("size gauge = %d, want 1", c.gauges["coach_store_cache_size"])
	}
}

func TestBackend_LRUEviction(t *testing.T) {
	b, c := newBackend(t, 2)

	b.Set("a", []byte("1"))
	b.Set("b", []byte("2"))
	b.Get("a") // a is now most recently used
	b.Set("c", []byte("3"))

	if _, ok := b.Get("b"); ok {
		t.Error("least recently used key should have been evicted")
	}
	if _, ok := b.Get("a"); !ok {
		t.Error("recently used key should still be cached")
	}
	if got := c.counters["coach_store_cache_evictions_total"]; got != 1 {
		t.Errorf("eviction counter = %d, want 1", got)
	}
}
