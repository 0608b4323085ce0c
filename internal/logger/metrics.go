package logger

import (
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

const namespace = "race_results"

// Metrics tracks counters, gauges and timings in a Prometheus registry.
// Metrics are registered on first use. All operations are thread-safe.
type Metrics struct {
	mu       sync.Mutex
	registry *prometheus.Registry
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	timings  map[string]prometheus.Histogram
}

var defaultMetrics *Metrics

func init() {
	defaultMetrics = NewMetrics()
}

// DefaultMetrics returns the tracker used by the package-level functions
func DefaultMetrics() *Metrics {
	return defaultMetrics
}

// NewMetrics creates a metrics tracker with its own registry
func NewMetrics() *Metrics {
	return &Metrics{
		registry: prometheus.NewRegistry(),
		counters: make(map[string]prometheus.Counter),
		gauges:   make(map[string]prometheus.Gauge),
		timings:  make(map[string]prometheus.Histogram),
	}
}

// metricName turns "lookup.exact" into "lookup_exact"
func metricName(name string) string {
	return strings.NewReplacer(".", "_", "-", "_", " ", "_").Replace(strings.ToLower(name))
}

// IncrCounter increments a counter by 1
func (m *Metrics) IncrCounter(name string) {
	m.mu.Lock()
	c, ok := m.counters[name]
	if !ok {
		c = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      metricName(name) + "_total",
			Help:      "Count of " + name,
		})
		m.registry.MustRegister(c)
		m.counters[name] = c
	}
	m.mu.Unlock()

	c.Inc()
}

// SetGauge sets a gauge to value
func (m *Metrics) SetGauge(name string, value float64) {
	m.mu.Lock()
	g, ok := m.gauges[name]
	if !ok {
		g = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      metricName(name),
			Help:      "Current " + name,
		})
		m.registry.MustRegister(g)
		m.gauges[name] = g
	}
	m.mu.Unlock()

	g.Set(value)
}

// RecordTiming observes a duration in seconds
func (m *Metrics) RecordTiming(name string, duration time.Duration) {
	m.mu.Lock()
	h, ok := m.timings[name]
	if !ok {
		h = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      metricName(name) + "_seconds",
			Help:      "Duration of " + name,
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 60},
		})
		m.registry.MustRegister(h)
		m.timings[name] = h
	}
	m.mu.Unlock()

	h.Observe(duration.Seconds())
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// GetSnapshot returns the current values keyed by the names used to record
// them:
//   - "counters": counter values
//   - "gauges": gauge values
//   - "timings": count and total seconds per timing
func (m *Metrics) GetSnapshot() map[string]interface{} {
	m.mu.Lock()
	names := make(map[string]string, len(m.counters)+len(m.gauges)+len(m.timings))
	for n := range m.counters {
		names[namespace+"_"+metricName(n)+"_total"] = n
	}
	for n := range m.gauges {
		names[namespace+"_"+metricName(n)] = n
	}
	for n := range m.timings {
		names[namespace+"_"+metricName(n)+"_seconds"] = n
	}
	m.mu.Unlock()

	counters := make(map[string]int64)
	gauges := make(map[string]float64)
	timings := make(map[string]map[string]interface{})

	families, _ := m.registry.Gather()
	for _, mf := range families {
		name, ok := names[mf.GetName()]
		if !ok || len(mf.GetMetric()) == 0 {
			continue
		}
		metric := mf.GetMetric()[0]

		switch mf.GetType() {
		case dto.MetricType_COUNTER:
			counters[name] = int64(metric.GetCounter().GetValue())
		case dto.MetricType_GAUGE:
			gauges[name] = metric.GetGauge().GetValue()
		case dto.MetricType_HISTOGRAM:
			hist := metric.GetHistogram()
			timings[name] = map[string]interface{}{
				"count": hist.GetSampleCount(),
				"total": time.Duration(math.Round(hist.GetSampleSum() * float64(time.Second))).String(),
			}
		}
	}

	return map[string]interface{}{
		"counters": counters,
		"gauges":   gauges,
		"timings":  timings,
	}
}

// IncrCounter increments a counter on the default metrics tracker
func IncrCounter(name string) {
	defaultMetrics.IncrCounter(name)
}

// SetGauge sets a gauge on the default metrics tracker
func SetGauge(name string, value float64) {
	defaultMetrics.SetGauge(name, value)
}

// RecordTiming records a timing on the default metrics tracker
func RecordTiming(name string, duration time.Duration) {
	defaultMetrics.RecordTiming(name, duration)
}

// GetMetricsSnapshot returns a snapshot of the default metrics tracker
func GetMetricsSnapshot() map[string]interface{} {
	return defaultMetrics.GetSnapshot()
}

// MetricsHandler serves the default metrics tracker over HTTP
func MetricsHandler() http.Handler {
	return defaultMetrics.Handler()
}
