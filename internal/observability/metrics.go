// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Source metrics
	FetchesTotal      *prometheus.CounterVec
	FetchLatency      *prometheus.HistogramVec
	FetchesSuperseded prometheus.Counter
	ImagesLoaded      prometheus.Counter

	// Graph metrics
	GraphBuilds     prometheus.Counter
	GraphNodes      prometheus.Histogram
	RecordsSkipped  *prometheus.CounterVec
	FilterRunsTotal *prometheus.CounterVec
	FilterCacheHits prometheus.Counter

	// Layout metrics
	LayoutTicks      prometheus.Counter
	LayoutRestarts   prometheus.Counter
	LayoutRecoveries prometheus.Counter
	ActiveLayouts    prometheus.Gauge

	// Server metrics
	ActiveSessions  prometheus.Gauge
	WSClients       prometheus.Gauge
	WSFramesSent    prometheus.Counter
	WSFramesDropped prometheus.Counter

	// Ingest metrics
	SwapsIngested *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulFetch prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "token_flow_lab"
	}

	return &Metrics{
		// Source metrics
		FetchesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "fetches_total",
			Help:      "Total number of pair fetches by source and status",
		}, []string{"source", "status"}),
		FetchLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "fetch_latency_seconds",
			Help:      "Pair fetch latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
		FetchesSuperseded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "fetches_superseded_total",
			Help:      "Total number of fetch results discarded because a newer request started",
		}),
		ImagesLoaded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "images_loaded_total",
			Help:      "Total number of token image URLs added to the cache",
		}),

		// Graph metrics
		GraphBuilds: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "builds_total",
			Help:      "Total number of graphs built from pair records",
		}),
		GraphNodes: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "nodes",
			Help:      "Number of nodes per built graph",
			Buckets:   []float64{0, 5, 10, 25, 50, 100, 200, 500},
		}),
		RecordsSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "records_skipped_total",
			Help:      "Total number of pair records skipped or deduplicated by reason",
		}, []string{"reason"}),
		FilterRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "filter_runs_total",
			Help:      "Total number of filter pipeline runs by mode",
		}, []string{"mode"}),
		FilterCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "filter_cache_hits_total",
			Help:      "Total number of filter results reused without restarting layout",
		}),

		// Layout metrics
		LayoutTicks: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "layout",
			Name:      "ticks_total",
			Help:      "Total number of simulation ticks",
		}),
		LayoutRestarts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "layout",
			Name:      "restarts_total",
			Help:      "Total number of layouts started for a new snapshot",
		}),
		LayoutRecoveries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "layout",
			Name:      "recoveries_total",
			Help:      "Total number of bodies reset after non-finite positions",
		}),
		ActiveLayouts: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "layout",
			Name:      "active",
			Help:      "Number of running layout loops",
		}),

		// Server metrics
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "active_sessions",
			Help:      "Number of open explorer sessions",
		}),
		WSClients: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "ws_clients",
			Help:      "Number of connected websocket clients",
		}),
		WSFramesSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "ws_frames_sent_total",
			Help:      "Total number of layout frames written to websocket clients",
		}),
		WSFramesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "ws_frames_dropped_total",
			Help:      "Total number of layout frames dropped for slow clients",
		}),

		// Ingest metrics
		SwapsIngested: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "swaps_total",
			Help:      "Total number of swaps written by store",
		}, []string{"store"}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulFetch: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_fetch_timestamp",
			Help:      "Unix timestamp of last successful pair fetch",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordFetch records a pair fetch outcome and latency.
func RecordFetch(source, status string, seconds float64) {
	DefaultMetrics.FetchesTotal.WithLabelValues(source, status).Inc()
	DefaultMetrics.FetchLatency.WithLabelValues(source).Observe(seconds)
}

// RecordFetchSuperseded increments the superseded fetch counter.
func RecordFetchSuperseded() {
	DefaultMetrics.FetchesSuperseded.Inc()
}

// UpdateLastFetch sets the last successful fetch timestamp.
func UpdateLastFetch(unix int64) {
	DefaultMetrics.LastSuccessfulFetch.Set(float64(unix))
}

// RecordImagesLoaded adds n to the loaded image counter.
func RecordImagesLoaded(n int) {
	DefaultMetrics.ImagesLoaded.Add(float64(n))
}

// RecordGraphBuild records a built graph and its dropped records.
func RecordGraphBuild(nodes, skipped, duplicates int) {
	DefaultMetrics.GraphBuilds.Inc()
	DefaultMetrics.GraphNodes.Observe(float64(nodes))
	if skipped > 0 {
		DefaultMetrics.RecordsSkipped.WithLabelValues("invalid").Add(float64(skipped))
	}
	if duplicates > 0 {
		DefaultMetrics.RecordsSkipped.WithLabelValues("duplicate").Add(float64(duplicates))
	}
}

// RecordFilterRun increments the filter counter for mode.
func RecordFilterRun(mode string) {
	DefaultMetrics.FilterRunsTotal.WithLabelValues(mode).Inc()
}

// RecordFilterCacheHit increments the filter cache hit counter.
func RecordFilterCacheHit() {
	DefaultMetrics.FilterCacheHits.Inc()
}

// RecordLayoutTick increments the simulation tick counter.
func RecordLayoutTick() {
	DefaultMetrics.LayoutTicks.Inc()
}

// RecordLayoutStart records a layout loop starting.
func RecordLayoutStart() {
	DefaultMetrics.LayoutRestarts.Inc()
	DefaultMetrics.ActiveLayouts.Inc()
}

// RecordLayoutStop records a layout loop exiting.
func RecordLayoutStop() {
	DefaultMetrics.ActiveLayouts.Dec()
}

// RecordLayoutRecoveries adds n body resets.
func RecordLayoutRecoveries(n int) {
	DefaultMetrics.LayoutRecoveries.Add(float64(n))
}

// UpdateActiveSessions sets the open session gauge.
func UpdateActiveSessions(n int) {
	DefaultMetrics.ActiveSessions.Set(float64(n))
}

// RecordWSClient adjusts the websocket client gauge by delta.
func RecordWSClient(delta int) {
	DefaultMetrics.WSClients.Add(float64(delta))
}

// RecordWSFrame records a frame sent or dropped.
func RecordWSFrame(sent bool) {
	if sent {
		DefaultMetrics.WSFramesSent.Inc()
		return
	}
	DefaultMetrics.WSFramesDropped.Inc()
}

// RecordSwapsIngested adds n to the ingested swap counter for store.
func RecordSwapsIngested(store string, n int) {
	DefaultMetrics.SwapsIngested.WithLabelValues(store).Add(float64(n))
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
