// Package observability provides logging and metrics support for the catalog
// sync service.
//
// # Logging
//
// Create a logger from configuration:
//
//	logger := observability.NewLogger(observability.LoggingConfig{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "stdout",
//	})
//
// Add job or catalog context to a logger:
//
//	logger = observability.WithJobContext(logger, string(job.JobType), job.ID)
//	logger = observability.WithCatalogContext(logger, "scopus", "2-s2.0-85000000001")
//
// # Metrics
//
//	metrics := observability.NewMetrics("catalog_sync")
//	metrics.RecordJobRun("source_refresh", observability.OutcomeSucceeded, 1.2)
//
// # Standard Fields
//
//   - component: emitting component (runner, resolver, relay, ...)
//   - job_type, job_id: the running async job
//   - entity_id, entity_id_string: the job's target entity
//   - catalog, catalog_identifier: an external catalog record
//   - request_id: operator API request identifier
package observability
