package stats

// Noop is a collector that discards all metrics.
type Noop struct{}

// Compile-time check that Noop implements Collector.
var _ Collector = (*Noop)(nil)

// NewNoop creates a new no-op collector.
func NewNoop() *Noop {
	return &Noop{}
}

func (n *Noop) IncCounter(name string, delta int64)         {}
func (n *Noop) SetGauge(name string, value int64)           {}
func (n *Noop) ObserveHistogram(name string, value float64) {}

// Multi fans every metric out to several collectors, e.g. Prometheus for
// scraping plus the zap collector for debug logs.
type Multi []Collector

// Compile-time check that Multi implements Collector.
var _ Collector = Multi(nil)

// NewMulti combines collectors, dropping nil ones. A single collector is
// returned as is; none yields a Noop.
func NewMulti(collectors ...Collector) Collector {
	var m Multi
	for _, c := range collectors {
		if c != nil {
			m = append(m, c)
		}
	}
	switch len(m) {
	case 0:
		return NewNoop()
	case 1:
		return m[0]
	}
	return m
}

func (m Multi) IncCounter(name string, delta int64) {
	for _, c := range m {
		c.IncCounter(name, delta)
	}
}

func (m Multi) SetGauge(name string, value int64) {
	for _, c := range m {
		c.SetGauge(name, value)
	}
}

func (m Multi) ObserveHistogram(name string, value float64) {
	for _, c := range m {
		c.ObserveHistogram(name, value)
	}
}
