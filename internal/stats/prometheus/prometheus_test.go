package prometheus

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/discochess/coach/internal/stats"
)

func gather(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	t.Fatalf("metric %s not found in registry", name)
	return nil
}

func TestNew_DefaultRegistry(t *testing.T) {
	c := New(nil)
	if c.registry != prometheus.DefaultRegisterer {
		t.Error("registry should default to prometheus.DefaultRegisterer")
	}
}

func TestCollector_IncCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.IncCounter(stats.MetricCacheHits, 5)
	c.IncCounter(stats.MetricCacheHits, 3)

	f := gather(t, reg, stats.MetricCacheHits)
	if got := f.GetMetric()[0].GetCounter().GetValue(); got != 8 {
		t.Errorf("counter value = %v, want 8", got)
	}
	if f.GetHelp() == stats.MetricCacheHits {
		t.Error("known metrics should carry descriptive help text")
	}
}

func TestCollector_SetGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.SetGauge(stats.MetricProfileGames, 42)
	c.SetGauge(stats.MetricProfileGames, 40)

	f := gather(t, reg, stats.MetricProfileGames)
	if got := f.GetMetric()[0].GetGauge().GetValue(); got != 40 {
		t.Errorf("gauge value = %v, want 40", got)
	}
}

func TestCollector_ObserveHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	for _, v := range []float64{0.7, 3, 12} {
		c.ObserveHistogram(stats.MetricEvalSeconds, v)
	}

	h := gather(t, reg, stats.MetricEvalSeconds).GetMetric()[0].GetHistogram()
	if got := h.GetSampleCount(); got != 3 {
		t.Errorf("histogram count = %v, want 3", got)
	}
	if got := len(h.GetBucket()); got != 10 {
		t.Errorf("bucket count = %d, want 10", got)
	}
}

func TestCollector_AdoptsRegisteredMetric(t *testing.T) {
	reg := prometheus.NewRegistry()

	New(reg).IncCounter("custom_total", 1)
	New(reg).IncCounter("custom_total", 2)

	f := gather(t, reg, "custom_total")
	if got := f.GetMetric()[0].GetCounter().GetValue(); got != 3 {
		t.Errorf("counter value = %v, want 3", got)
	}
}

func TestCollector_ConcurrentAccess(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.IncCounter(stats.MetricGamesEvaluated, 1)
				c.SetGauge(stats.MetricCacheEntries, int64(j))
				c.ObserveHistogram(stats.MetricCacheEntrySize, float64(j))
			}
		}()
	}
	wg.Wait()

	f := gather(t, reg, stats.MetricGamesEvaluated)
	if got := f.GetMetric()[0].GetCounter().GetValue(); got != 1000 {
		t.Errorf("counter value = %v, want 1000", got)
	}
	h := gather(t, reg, stats.MetricCacheEntrySize).GetMetric()[0].GetHistogram()
	if got := h.GetSampleCount(); got != 1000 {
		t.Errorf("histogram count = %v, want 1000", got)
	}
}
