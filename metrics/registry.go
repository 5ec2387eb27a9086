// Package metrics holds the global counters and gauges the filter
// analyzers and SystemRunner publish. Two distinct update disciplines
// coexist by design: SSL filter metrics accumulate into the registry
// only at analyzer teardown, while HTTP filter metrics overwrite the
// registry's totals on every event.
package metrics

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Registry is the process-wide home for filter and system metrics.
var Registry = prometheus.NewRegistry()

var (
	sslTotalEvents = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "agentsight_ssl_filter_events_total",
		Help: "Total SSL events observed by SslFilter instances (merged at teardown).",
	})
	sslFilteredEvents = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "agentsight_ssl_filter_dropped_total",
		Help: "Total SSL events dropped by SslFilter instances (merged at teardown).",
	})

	httpTotalEvents = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "agentsight_http_filter_events_total",
		Help: "Running total of HTTP events observed by the most recent HttpFilter update.",
	})
	httpFilteredEvents = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "agentsight_http_filter_dropped_total",
		Help: "Running total of HTTP events dropped by the most recent HttpFilter update.",
	})

	systemCPUPercent = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "agentsight_system_cpu_percent",
		Help: "CPU usage percent for the most recent SystemRunner sample.",
	}, []string{"comm"})
	systemMemoryRSSBytes = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "agentsight_system_memory_rss_bytes",
		Help: "RSS memory in bytes for the most recent SystemRunner sample.",
	}, []string{"comm"})
	systemThreadCount = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "agentsight_system_thread_count",
		Help: "Thread count for the most recent SystemRunner sample.",
	}, []string{"comm"})
)

func init() {
	Registry.MustRegister(
		sslTotalEvents, sslFilteredEvents,
		httpTotalEvents, httpFilteredEvents,
		systemCPUPercent, systemMemoryRSSBytes, systemThreadCount,
	)
}

// SSLFilterMetrics accumulates one SslFilter instance's counters. It
// is merged into the global registry only when the instance is closed
// — the Go analog of the Rust original's Drop impl.
type SSLFilterMetrics struct {
	mu       sync.Mutex
	total    uint64
	filtered uint64
}

func (m *SSLFilterMetrics) IncrementTotal() {
	m.mu.Lock()
	m.total++
	m.mu.Unlock()
}

func (m *SSLFilterMetrics) IncrementFiltered() {
	m.mu.Lock()
	m.filtered++
	m.mu.Unlock()
}

// MergeIntoGlobal adds this instance's counters into the global SSL
// filter registry. Call exactly once, when the owning analyzer is
// torn down.
func (m *SSLFilterMetrics) MergeIntoGlobal() {
	m.mu.Lock()
	defer m.mu.Unlock()
	sslTotalEvents.Add(float64(m.total))
	sslFilteredEvents.Add(float64(m.filtered))
}

// PrintGlobalSSLFilterMetrics writes a human-readable summary of the
// merged SSL filter metrics to stdout, in the spirit of the original
// print_global_ssl_filter_metrics().
func PrintGlobalSSLFilterMetrics() {
	total := fetchCounterValue(sslTotalEvents)
	filtered := fetchCounterValue(sslFilteredEvents)
	fmt.Printf("SSL filter: %d events seen, %d dropped\n", uint64(total), uint64(filtered))
}

// HTTPFilterMetrics tracks one HttpFilter instance's running totals
// and overwrites the global registry on every event it processes —
// intentionally different from SSLFilterMetrics's merge-at-teardown
// discipline.
type HTTPFilterMetrics struct {
	mu       sync.Mutex
	total    uint64
	filtered uint64
}

func (m *HTTPFilterMetrics) RecordEvent(filtered bool) {
	m.mu.Lock()
	m.total++
	if filtered {
		m.filtered++
	}
	total, dropped := m.total, m.filtered
	m.mu.Unlock()

	httpTotalEvents.Set(float64(total))
	httpFilteredEvents.Set(float64(dropped))
}

// PrintGlobalHTTPFilterMetrics writes a human-readable summary of the
// HTTP filter metrics to stdout.
func PrintGlobalHTTPFilterMetrics() {
	total := fetchGaugeValue(httpTotalEvents)
	filtered := fetchGaugeValue(httpFilteredEvents)
	fmt.Printf("HTTP filter: %d events seen, %d dropped\n", uint64(total), uint64(filtered))
}

// RecordSystemSample publishes one SystemRunner sample's gauges.
func RecordSystemSample(comm string, cpuPercent, rssBytes float64, threads int) {
	systemCPUPercent.WithLabelValues(comm).Set(cpuPercent)
	systemMemoryRSSBytes.WithLabelValues(comm).Set(rssBytes)
	systemThreadCount.WithLabelValues(comm).Set(float64(threads))
}

func fetchCounterValue(c prometheus.Counter) float64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

func fetchGaugeValue(g prometheus.Gauge) float64 {
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		return 0
	}
	return m.GetGauge().GetValue()
}
