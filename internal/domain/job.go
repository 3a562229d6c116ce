package domain

import (
	"fmt"
	"time"
)

// JobType discriminates async job rows. Each value binds to exactly one
// handler in the job registry.
type JobType string

const (
	JobTypeRefreshAll                        JobType = "refresh_all"
	JobTypeAcademicRefresh                   JobType = "academic_refresh"
	JobTypeAcademicFindNewPotentialSources   JobType = "academic_find_new_potential_sources"
	JobTypeAcademicEnsureSourcesArePotential JobType = "academic_ensure_sources_are_potential"
	JobTypeSourceRefresh                     JobType = "source_refresh"
	JobTypeSourceGetPublications             JobType = "source_get_publications"
	JobTypeCatalogPublicationRefresh         JobType = "catalog_publication_refresh"
	JobTypePublicationInitialise             JobType = "publication_initialise"
	JobTypePublicationGetMissingScopus       JobType = "publication_get_missing_scopus"
	JobTypePublicationGetScivalInstitutions  JobType = "publication_get_scival_institutions"
	JobTypeAffiliationRefresh                JobType = "affiliation_refresh"
	JobTypeInstitutionRefresh                JobType = "institution_refresh"
	JobTypePublicationRemoveUnused           JobType = "publication_remove_unused"
	JobTypeAutoFillFolders                   JobType = "auto_fill_folders"
)

// AllJobTypes lists every job type in the orchestration graph.
var AllJobTypes = []JobType{
	JobTypeRefreshAll,
	JobTypeAcademicRefresh,
	JobTypeAcademicFindNewPotentialSources,
	JobTypeAcademicEnsureSourcesArePotential,
	JobTypeSourceRefresh,
	JobTypeSourceGetPublications,
	JobTypeCatalogPublicationRefresh,
	JobTypePublicationInitialise,
	JobTypePublicationGetMissingScopus,
	JobTypePublicationGetScivalInstitutions,
	JobTypeAffiliationRefresh,
	JobTypeInstitutionRefresh,
	JobTypePublicationRemoveUnused,
	JobTypeAutoFillFolders,
}

// IsValid reports whether t is a known job type.
func (t JobType) IsValid() bool {
	for _, known := range AllJobTypes {
		if t == known {
			return true
		}
	}
	return false
}

// String returns the string representation of the job type.
func (t JobType) String() string {
	return string(t)
}

// RetryUnit is the unit of a job's retry backoff.
// These values must match the async_jobs_retry_unit_check constraint.
type RetryUnit string

const (
	RetryUnitHours RetryUnit = "hours"
	RetryUnitDays  RetryUnit = "days"
)

// Duration returns the length of one unit, or zero for an unknown unit.
func (u RetryUnit) Duration() time.Duration {
	switch u {
	case RetryUnitHours:
		return time.Hour
	case RetryUnitDays:
		return 24 * time.Hour
	default:
		return 0
	}
}

// Job is a persisted unit of deferred work. (JobType, EntityID,
// EntityIDString) is the deduplication key: scheduling the same key twice
// updates one row.
//
// A job is pending while ScheduledAt is set. A successful run clears both
// ScheduledAt and Error; a failed run without retry leaves Error set and
// ScheduledAt nil, which is the terminal failed state.
type Job struct {
	ID             int64
	JobType        JobType
	EntityID       *int64
	EntityIDString *string
	ScheduledAt    *time.Time
	Error          string
	RetryEnabled   bool
	RetryUnit      RetryUnit
	RetrySize      int
	LastRunAt      *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time

	// retrySet marks a policy chosen by the caller, including "never retry".
	// It is not persisted.
	retrySet bool
}

// NewJob creates a job for the given entity, due immediately.
func NewJob(jobType JobType, entityID *int64, entityIDString *string, now time.Time) *Job {
	return &Job{
		JobType:        jobType,
		EntityID:       entityID,
		EntityIDString: entityIDString,
		ScheduledAt:    &now,
		RetryUnit:      RetryUnitDays,
	}
}

// NewEntityJob creates a job keyed by an integer entity ID, due immediately.
func NewEntityJob(jobType JobType, entityID int64, now time.Time) *Job {
	return NewJob(jobType, &entityID, nil, now)
}

// WithRetry enables retries every size units.
func (j *Job) WithRetry(unit RetryUnit, size int) *Job {
	j.RetryEnabled = true
	j.RetryUnit = unit
	j.RetrySize = size
	j.retrySet = true
	return j
}

// WithoutRetry makes a failure terminal, overriding any default policy.
func (j *Job) WithoutRetry() *Job {
	j.RetryEnabled = false
	j.RetrySize = 0
	j.retrySet = true
	return j
}

// HasRetryPolicy reports whether the caller chose a retry policy.
func (j *Job) HasRetryPolicy() bool {
	return j.retrySet || j.RetryEnabled
}

// Backoff returns the retry delay, or zero when the job must not be retried.
func (j *Job) Backoff() time.Duration {
	if !j.RetryEnabled || j.RetrySize <= 0 {
		return 0
	}
	return time.Duration(j.RetrySize) * j.RetryUnit.Duration()
}

// MarkSucceeded clears the schedule and error after a successful run.
func (j *Job) MarkSucceeded(now time.Time) {
	j.ScheduledAt = nil
	j.Error = ""
	j.LastRunAt = &now
}

// MarkFailed records err and reschedules the job according to its retry
// policy. Jobs without a usable policy are left unscheduled.
func (j *Job) MarkFailed(err error, now time.Time) {
	j.Error = err.Error()
	j.LastRunAt = &now
	if backoff := j.Backoff(); backoff > 0 {
		next := now.Add(backoff)
		j.ScheduledAt = &next
		return
	}
	j.ScheduledAt = nil
}

// IsPending reports whether the job is scheduled to run.
func (j *Job) IsPending() bool {
	return j.ScheduledAt != nil
}

// IsFailed reports whether the last run failed.
func (j *Job) IsFailed() bool {
	return j.Error != ""
}

// Key returns a printable form of the deduplication key.
func (j *Job) Key() string {
	entityID := "-"
	if j.EntityID != nil {
		entityID = fmt.Sprintf("%d", *j.EntityID)
	}
	entityIDString := "-"
	if j.EntityIDString != nil {
		entityIDString = *j.EntityIDString
	}
	return fmt.Sprintf("%s/%s/%s", j.JobType, entityID, entityIDString)
}
