// Package metrics provides the small metrics surface the plugin system
// reports lifecycle activity through. The Prometheus implementation is the
// default for applications; the no-op implementation is for tests and
// embedders that do not scrape.
package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Counter is a monotonically increasing counter.
type Counter interface {
	Inc()
	Add(delta float64)
}

// Gauge is a value that can go up and down.
type Gauge interface {
	Set(value float64)
	Inc()
	Dec()
}

// Metrics creates named collectors on demand. Implementations must return the
// same collector for repeated calls with the same name.
type Metrics interface {
	Counter(name string) Counter
	Gauge(name string) Gauge
}

// prometheusMetrics implements Metrics on a prometheus.Registerer.
type prometheusMetrics struct {
	mu         sync.Mutex
	registerer prometheus.Registerer
	counters   map[string]prometheus.Counter
	gauges     map[string]prometheus.Gauge
}

// NewPrometheus creates a Metrics backed by the given registerer. A nil
// registerer falls back to the default prometheus registry.
func NewPrometheus(registerer prometheus.Registerer) Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &prometheusMetrics{
		registerer: registerer,
		counters:   make(map[string]prometheus.Counter),
		gauges:     make(map[string]prometheus.Gauge),
	}
}

func (p *prometheusMetrics) Counter(name string) Counter {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.counters[name]; ok {
		return c
	}

	c := prometheus.NewCounter(prometheus.CounterOpts{Name: sanitize(name)})
	p.registerer.MustRegister(c)
	p.counters[name] = c

	return c
}

func (p *prometheusMetrics) Gauge(name string) Gauge {
	p.mu.Lock()
	defer p.mu.Unlock()

	if g, ok := p.gauges[name]; ok {
		return g
	}

	g := prometheus.NewGauge(prometheus.GaugeOpts{Name: sanitize(name)})
	p.registerer.MustRegister(g)
	p.gauges[name] = g

	return g
}

// sanitize maps dotted metric names onto the Prometheus naming model.
func sanitize(name string) string {
	return strings.NewReplacer(".", "_", "-", "_").Replace(name)
}

// noop implementation

type noopMetrics struct{}

type noopCounter struct{}

type noopGauge struct{}

// NewNoop creates a Metrics that discards everything.
func NewNoop() Metrics { return noopMetrics{} }

func (noopMetrics) Counter(name string) Counter { return noopCounter{} }
func (noopMetrics) Gauge(name string) Gauge     { return noopGauge{} }

func (noopCounter) Inc()              {}
func (noopCounter) Add(delta float64) {}

func (noopGauge) Set(value float64) {}
func (noopGauge) Inc()              {}
func (noopGauge) Dec()              {}
