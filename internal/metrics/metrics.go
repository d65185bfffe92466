// Package metrics provides Prometheus metrics for rfprag.
//
// The CLI is short-lived, so metrics are kept in a private registry and
// flushed to a node_exporter textfile at exit instead of being scraped.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for rfprag. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Ingestion metrics
	IngestionJobsTotal   *prometheus.CounterVec
	IngestionDuration    prometheus.Histogram
	DocumentsProcessed   prometheus.Counter
	DocumentsFailed      *prometheus.CounterVec
	DocumentsRemoved     prometheus.Counter
	ChunksInserted       prometheus.Counter
	IngestionsInProgress prometheus.Gauge
	IndexChunks          *prometheus.GaugeVec

	// External call metrics
	ExternalCallsTotal   *prometheus.CounterVec
	ExternalCallDuration *prometheus.HistogramVec
	RetriesTotal         *prometheus.CounterVec

	// Retrieval and generation metrics
	RetrievalsTotal      prometheus.Counter
	RetrievedTokens      prometheus.Histogram
	QueryCacheTotal      *prometheus.CounterVec
	SectionsGenerated    prometheus.Counter
	GenerationRejections prometheus.Counter
}

// New creates all metrics in a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	m := &Metrics{registry: reg}

	m.IngestionJobsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rfprag_ingestion_jobs_total",
			Help: "Total number of ingestion jobs by final state",
		},
		[]string{"state"},
	)

	m.IngestionDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rfprag_ingestion_duration_seconds",
			Help:    "Duration of ingestion jobs in seconds",
			Buckets: []float64{.1, .5, 1, 5, 10, 30, 60, 300, 900},
		},
	)

	m.DocumentsProcessed = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "rfprag_documents_processed_total",
			Help: "Total number of documents indexed",
		},
	)

	m.DocumentsFailed = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rfprag_documents_failed_total",
			Help: "Total number of documents that could not be indexed",
		},
		[]string{"reason"},
	)

	m.DocumentsRemoved = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "rfprag_documents_removed_total",
			Help: "Total number of vanished documents removed from the index",
		},
	)

	m.ChunksInserted = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "rfprag_chunks_inserted_total",
			Help: "Total number of chunks written to the index",
		},
	)

	m.IngestionsInProgress = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "rfprag_ingestions_in_progress",
			Help: "Number of ingestion jobs currently running",
		},
	)

	m.IndexChunks = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rfprag_index_chunks",
			Help: "Number of chunks currently indexed per project",
		},
		[]string{"project"},
	)

	m.ExternalCallsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rfprag_external_calls_total",
			Help: "Total number of embedding and model calls",
		},
		[]string{"op", "status"},
	)

	m.ExternalCallDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rfprag_external_call_duration_seconds",
			Help:    "Duration of embedding and model calls in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"op"},
	)

	m.RetriesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rfprag_retries_total",
			Help: "Total number of retried external calls",
		},
		[]string{"op"},
	)

	m.RetrievalsTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "rfprag_retrievals_total",
			Help: "Total number of retrieval requests",
		},
	)

	m.RetrievedTokens = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rfprag_retrieved_context_tokens",
			Help:    "Tokens packed into retrieved contexts",
			Buckets: prometheus.ExponentialBuckets(64, 2, 8),
		},
	)

	m.QueryCacheTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rfprag_query_cache_total",
			Help: "Query embedding cache lookups by result",
		},
		[]string{"result"},
	)

	m.SectionsGenerated = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "rfprag_sections_generated_total",
			Help: "Total number of draft sections generated",
		},
	)

	m.GenerationRejections = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "rfprag_generation_rejections_total",
			Help: "Total number of model calls rejected without retry",
		},
	)

	return m
}

// Registry exposes the underlying registry for gathering.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// WriteToTextfile writes all metrics in the node_exporter textfile format.
func (m *Metrics) WriteToTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}

// RecordCall records one external call attempt.
func (m *Metrics) RecordCall(op string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.ExternalCallsTotal.WithLabelValues(op, status).Inc()
	m.ExternalCallDuration.WithLabelValues(op).Observe(duration.Seconds())
}

func (m *Metrics) RecordRetry(op string) {
	if m == nil {
		return
	}
	m.RetriesTotal.WithLabelValues(op).Inc()
}

func (m *Metrics) JobStarted() {
	if m == nil {
		return
	}
	m.IngestionsInProgress.Inc()
}

// JobFinished records the outcome of an ingestion job.
func (m *Metrics) JobFinished(state string, duration time.Duration, processed, removed, chunks int) {
	if m == nil {
		return
	}
	m.IngestionsInProgress.Dec()
	m.IngestionJobsTotal.WithLabelValues(state).Inc()
	m.IngestionDuration.Observe(duration.Seconds())
	m.DocumentsProcessed.Add(float64(processed))
	m.DocumentsRemoved.Add(float64(removed))
	m.ChunksInserted.Add(float64(chunks))
}

func (m *Metrics) DocumentFailed(reason string) {
	if m == nil {
		return
	}
	m.DocumentsFailed.WithLabelValues(reason).Inc()
}

func (m *Metrics) SetIndexChunks(projectID int64, chunks int) {
	if m == nil {
		return
	}
	m.IndexChunks.WithLabelValues(strconv.FormatInt(projectID, 10)).Set(float64(chunks))
}

func (m *Metrics) RecordRetrieval(usedTokens int) {
	if m == nil {
		return
	}
	m.RetrievalsTotal.Inc()
	m.RetrievedTokens.Observe(float64(usedTokens))
}

func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.QueryCacheTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) SectionGenerated() {
	if m == nil {
		return
	}
	m.SectionsGenerated.Inc()
}

func (m *Metrics) GenerationRejected() {
	if m == nil {
		return
	}
	m.GenerationRejections.Inc()
}
