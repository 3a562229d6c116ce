package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Job run outcomes used as the "outcome" label.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeUnknown   = "unknown_type"
)

// Metrics contains all Prometheus metrics for the catalog sync service.
// Metrics are organized by subsystem: jobs, catalog requests, reconciliation
// and the outbox relay. All collectors are registered via promauto with the
// default Prometheus registry.
type Metrics struct {
	// JobsScheduled counts schedule calls, labeled by job type.
	JobsScheduled *prometheus.CounterVec

	// JobsRun counts job executions, labeled by job type and outcome.
	JobsRun *prometheus.CounterVec

	// JobDuration observes handler duration in seconds, labeled by job type.
	JobDuration *prometheus.HistogramVec

	// JobsRescheduled counts failed jobs that were rescheduled by their retry policy.
	JobsRescheduled *prometheus.CounterVec

	// DrainsCompleted counts completed run-due drains.
	DrainsCompleted prometheus.Counter

	// CatalogRequestsTotal counts HTTP requests to catalog APIs, labeled by catalog and endpoint.
	CatalogRequestsTotal *prometheus.CounterVec

	// CatalogRequestsFailed counts failed catalog requests, labeled by catalog, endpoint, and error type.
	CatalogRequestsFailed *prometheus.CounterVec

	// CatalogRequestDuration observes catalog request duration in seconds.
	CatalogRequestDuration *prometheus.HistogramVec

	// CatalogRateLimited counts 429 responses from catalog APIs, labeled by catalog.
	CatalogRateLimited *prometheus.CounterVec

	// CatalogCacheHits counts GET responses served from the response cache, labeled by catalog.
	CatalogCacheHits *prometheus.CounterVec

	// EntitiesCreated counts canonical rows created by the resolver, labeled by entity kind.
	EntitiesCreated *prometheus.CounterVec

	// DTOsMerged counts publication records merged, labeled by catalog.
	DTOsMerged *prometheus.CounterVec

	// DTOsSkipped counts records skipped for missing identity, labeled by kind.
	DTOsSkipped *prometheus.CounterVec

	// OutboxPublished counts outbox events published to Kafka.
	OutboxPublished prometheus.Counter

	// OutboxFailed counts failed outbox publish attempts.
	OutboxFailed prometheus.Counter

	// TriggerMessages counts refresh-request messages consumed, labeled by outcome.
	TriggerMessages *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		// Jobs
		JobsScheduled: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_scheduled_total",
			Help:      "Total number of job schedule calls",
		}, []string{"job_type"}),
		JobsRun: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_run_total",
			Help:      "Total number of job executions by outcome",
		}, []string{"job_type", "outcome"}),
		JobDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Duration of job handler execution in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
		}, []string{"job_type"}),
		JobsRescheduled: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_rescheduled_total",
			Help:      "Total number of failed jobs rescheduled by their retry policy",
		}, []string{"job_type"}),
		DrainsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_drains_total",
			Help:      "Total number of completed run-due drains",
		}),

		// Catalog requests
		CatalogRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_requests_total",
			Help:      "Total number of HTTP requests to catalog APIs",
		}, []string{"catalog", "endpoint"}),
		CatalogRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_requests_failed_total",
			Help:      "Total number of failed HTTP requests to catalog APIs",
		}, []string{"catalog", "endpoint", "error_type"}),
		CatalogRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "catalog_request_duration_seconds",
			Help:      "Duration of catalog API requests in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"catalog", "endpoint"}),
		CatalogRateLimited: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_rate_limited_total",
			Help:      "Total number of rate limit responses from catalog APIs",
		}, []string{"catalog"}),
		CatalogCacheHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_cache_hits_total",
			Help:      "Total number of catalog responses served from cache",
		}, []string{"catalog"}),

		// Reconciliation
		EntitiesCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_entities_created_total",
			Help:      "Total number of canonical entities created during reconciliation",
		}, []string{"entity"}),
		DTOsMerged: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_dtos_merged_total",
			Help:      "Total number of catalog publication records merged",
		}, []string{"catalog"}),
		DTOsSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_dtos_skipped_total",
			Help:      "Total number of catalog records skipped for missing identity",
		}, []string{"kind"}),

		// Outbox
		OutboxPublished: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_published_total",
			Help:      "Total number of outbox events published to Kafka",
		}),
		OutboxFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_publish_failures_total",
			Help:      "Total number of failed outbox publish attempts",
		}),

		// Trigger listener
		TriggerMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trigger_messages_total",
			Help:      "Total number of refresh-request messages consumed",
		}, []string{"outcome"}),
	}
}

// RecordJobScheduled records a schedule call.
func (m *Metrics) RecordJobScheduled(jobType string) {
	m.JobsScheduled.WithLabelValues(jobType).Inc()
}

// RecordJobRun records one job execution.
func (m *Metrics) RecordJobRun(jobType, outcome string, durationSeconds float64) {
	m.JobsRun.WithLabelValues(jobType, outcome).Inc()
	m.JobDuration.WithLabelValues(jobType).Observe(durationSeconds)
}

// RecordJobRescheduled records a failed job rescheduled by its retry policy.
func (m *Metrics) RecordJobRescheduled(jobType string) {
	m.JobsRescheduled.WithLabelValues(jobType).Inc()
}

// RecordDrainCompleted records a completed run-due drain.
func (m *Metrics) RecordDrainCompleted() {
	m.DrainsCompleted.Inc()
}

// RecordCatalogRequest records a request to a catalog API.
func (m *Metrics) RecordCatalogRequest(catalog, endpoint string, durationSeconds float64) {
	m.CatalogRequestsTotal.WithLabelValues(catalog, endpoint).Inc()
	m.CatalogRequestDuration.WithLabelValues(catalog, endpoint).Observe(durationSeconds)
}

// RecordCatalogRequestFailed records a failed request to a catalog API.
func (m *Metrics) RecordCatalogRequestFailed(catalog, endpoint, errorType string) {
	m.CatalogRequestsFailed.WithLabelValues(catalog, endpoint, errorType).Inc()
}

// RecordCatalogRateLimited records a rate limit response from a catalog.
func (m *Metrics) RecordCatalogRateLimited(catalog string) {
	m.CatalogRateLimited.WithLabelValues(catalog).Inc()
}

// RecordCatalogCacheHit records a response served from cache.
func (m *Metrics) RecordCatalogCacheHit(catalog string) {
	m.CatalogCacheHits.WithLabelValues(catalog).Inc()
}

// RecordEntitiesCreated records canonical entities created by the resolver.
func (m *Metrics) RecordEntitiesCreated(entity string, count int) {
	if count <= 0 {
		return
	}
	m.EntitiesCreated.WithLabelValues(entity).Add(float64(count))
}

// RecordDTOMerged records a merged publication record.
func (m *Metrics) RecordDTOMerged(catalog string) {
	m.DTOsMerged.WithLabelValues(catalog).Inc()
}

// RecordDTOSkipped records a record skipped for missing identity.
func (m *Metrics) RecordDTOSkipped(kind string) {
	m.DTOsSkipped.WithLabelValues(kind).Inc()
}

// RecordOutboxPublished records events published by the relay.
func (m *Metrics) RecordOutboxPublished(count int) {
	m.OutboxPublished.Add(float64(count))
}

// RecordOutboxFailed records a failed publish attempt.
func (m *Metrics) RecordOutboxFailed() {
	m.OutboxFailed.Inc()
}

// RecordTriggerMessage records a consumed refresh-request message.
func (m *Metrics) RecordTriggerMessage(outcome string) {
	m.TriggerMessages.WithLabelValues(outcome).Inc()
}
