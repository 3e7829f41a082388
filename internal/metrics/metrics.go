// =============================================================================
// Rural Credit Season Pipeline - Metrics
// =============================================================================
//
// Prometheus collectors for the load cycle and the HTTP API. Every method is
// safe to call on a nil *Metrics, so components can be built without
// metrics in tests and one-shot CLI runs.
//
// =============================================================================

package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "safra"

// Metrics holds the pipeline collectors.
type Metrics struct {
	registry *prometheus.Registry

	partitionsLoaded  prometheus.Counter
	partitionFailures *prometheus.CounterVec
	partitionFetch    prometheus.Histogram
	tableRows         prometheus.Gauge
	loadDuration      prometheus.Histogram

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them on a fresh registry,
// together with the Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		partitionsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "partitions_loaded_total",
			Help:      "Partitions fetched, decoded and harmonized successfully.",
		}),
		partitionFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "partition_failures_total",
			Help:      "Partitions skipped during a load, by failing stage.",
		}, []string{"stage"}),
		partitionFetch: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "partition_fetch_seconds",
			Help:      "Time to fetch the raw bytes of one partition.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		tableRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "table_rows",
			Help:      "Rows in the most recently loaded table.",
		}),
		loadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "load_duration_seconds",
			Help:      "Wall time of a full load cycle.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "API requests by route and status code.",
		}, []string{"route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "API request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.partitionsLoaded,
		m.partitionFailures,
		m.partitionFetch,
		m.tableRows,
		m.loadDuration,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// PartitionLoaded records one successful partition.
func (m *Metrics) PartitionLoaded(fetch time.Duration) {
	if m == nil {
		return
	}
	m.partitionsLoaded.Inc()
	m.partitionFetch.Observe(fetch.Seconds())
}

// PartitionFailed records one skipped partition.
func (m *Metrics) PartitionFailed(stage string) {
	if m == nil {
		return
	}
	m.partitionFailures.WithLabelValues(stage).Inc()
}

// LoadFinished records a completed load cycle.
func (m *Metrics) LoadFinished(rows int, took time.Duration) {
	if m == nil {
		return
	}
	m.tableRows.Set(float64(rows))
	m.loadDuration.Observe(took.Seconds())
}

// RequestServed records one API request.
func (m *Metrics) RequestServed(route string, code int, took time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(took.Seconds())
}
