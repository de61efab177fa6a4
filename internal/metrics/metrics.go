// Package metrics exposes Prometheus instruments for indexing, sync,
// enrichment and upstream traffic.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "authindex"

var (
	indexRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "index",
		Name:      "records_total",
		Help:      "Authority records processed by the bulk indexer by outcome",
	}, []string{"outcome"})

	duplicates = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "index",
		Name:      "duplicates_total",
		Help:      "Heading collisions by kind and decision",
	}, []string{"kind", "decision"})

	syncRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "runs_total",
		Help:      "Incremental sync runs by index type and result",
	}, []string{"index_type", "result"})

	syncDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "duration_seconds",
		Help:      "Incremental sync duration",
		Buckets:   []float64{1, 5, 15, 60, 300, 900, 1800, 3600, 7200},
	}, []string{"index_type"})

	syncChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "changes_total",
		Help:      "Index changes applied by sync by index type and action",
	}, []string{"index_type", "action"})

	syncInProgress = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "in_progress",
		Help:      "1 while a sync for the index type is running",
	}, []string{"index_type"})

	enrichRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "enrich",
		Name:      "records_total",
		Help:      "Records passed through the resolver by mode",
	}, []string{"mode"})

	enrichInjected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "enrich",
		Name:      "injected_subfields_total",
		Help:      "Identifier subfields injected by mode",
	}, []string{"mode"})

	enrichPartial = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "enrich",
		Name:      "partial_total",
		Help:      "Batches resolved in degraded mode after a store failure",
	})

	enrichLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "enrich",
		Name:      "batch_seconds",
		Help:      "Resolver batch latency",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"mode"})

	upstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "upstream",
		Name:      "requests_total",
		Help:      "Upstream HTTP requests by operation and status class",
	}, []string{"operation", "status"})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordIndexRecord counts one record handled by the bulk indexer.
func RecordIndexRecord(outcome string) {
	indexRecords.WithLabelValues(outcome).Inc()
}

// RecordDuplicate counts a heading collision.
func RecordDuplicate(kind string, accepted bool) {
	decision := "rejected"
	if accepted {
		decision = "replaced"
	}
	duplicates.WithLabelValues(kind, decision).Inc()
}

// RecordSyncStarted flips the in-progress gauge on.
func RecordSyncStarted(indexType string) {
	syncInProgress.WithLabelValues(indexType).Set(1)
}

// RecordSyncFinished records the outcome of a sync run.
func RecordSyncFinished(indexType, result string, seconds float64) {
	syncInProgress.WithLabelValues(indexType).Set(0)
	syncRuns.WithLabelValues(indexType, result).Inc()
	syncDuration.WithLabelValues(indexType).Observe(seconds)
}

// RecordSyncChange counts one applied sync change such as "added" or "deleted".
func RecordSyncChange(indexType, action string) {
	syncChanges.WithLabelValues(indexType, action).Inc()
}

// RecordEnrichBatch records one resolver batch.
func RecordEnrichBatch(mode string, records, injected int, partial bool, seconds float64) {
	enrichRecords.WithLabelValues(mode).Add(float64(records))
	enrichInjected.WithLabelValues(mode).Add(float64(injected))
	enrichLatency.WithLabelValues(mode).Observe(seconds)
	if partial {
		enrichPartial.Inc()
	}
}

// RecordUpstreamRequest counts one upstream HTTP exchange. status is the
// response code class such as "2xx", or "error" for transport failures.
func RecordUpstreamRequest(operation, status string) {
	upstreamRequests.WithLabelValues(operation, status).Inc()
}
