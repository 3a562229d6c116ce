package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobType_IsValid(t *testing.T) {
	for _, jt := range AllJobTypes {
		assert.True(t, jt.IsValid(), jt.String())
	}
	assert.Len(t, AllJobTypes, 14)
	assert.False(t, JobType("reindex_everything").IsValid())
}

func TestRetryUnit_Duration(t *testing.T) {
	assert.Equal(t, time.Hour, RetryUnitHours.Duration())
	assert.Equal(t, 24*time.Hour, RetryUnitDays.Duration())
	assert.Zero(t, RetryUnit("weeks").Duration())
}

func TestJob_MarkFailed(t *testing.T) {
	now := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	failure := errors.New("scopus: connection reset")

	t.Run("retry enabled reschedules after backoff", func(t *testing.T) {
		job := NewEntityJob(JobTypePublicationGetMissingScopus, 42, now).WithRetry(RetryUnitDays, 7)

		job.MarkFailed(failure, now)

		require.NotNil(t, job.ScheduledAt)
		assert.Equal(t, now.Add(7*24*time.Hour), *job.ScheduledAt)
		assert.Equal(t, "scopus: connection reset", job.Error)
		assert.True(t, job.IsPending())
		assert.True(t, job.IsFailed())
	})

	t.Run("hours unit", func(t *testing.T) {
		job := NewEntityJob(JobTypeSourceRefresh, 1, now).WithRetry(RetryUnitHours, 6)

		job.MarkFailed(failure, now)

		require.NotNil(t, job.ScheduledAt)
		assert.Equal(t, now.Add(6*time.Hour), *job.ScheduledAt)
	})

	t.Run("retry disabled leaves job unscheduled", func(t *testing.T) {
		job := NewEntityJob(JobTypeSourceRefresh, 1, now)

		job.MarkFailed(failure, now)

		assert.Nil(t, job.ScheduledAt)
		assert.Equal(t, failure.Error(), job.Error)
		assert.False(t, job.IsPending())
	})

	t.Run("zero size is treated as no retry", func(t *testing.T) {
		job := NewEntityJob(JobTypeSourceRefresh, 1, now)
		job.RetryEnabled = true

		job.MarkFailed(failure, now)

		assert.Nil(t, job.ScheduledAt)
	})
}

func TestJob_MarkSucceeded(t *testing.T) {
	now := time.Now().UTC()
	job := NewEntityJob(JobTypeAffiliationRefresh, 3, now)
	job.Error = "previous failure"

	job.MarkSucceeded(now)

	assert.Nil(t, job.ScheduledAt)
	assert.Empty(t, job.Error)
	require.NotNil(t, job.LastRunAt)
	assert.Equal(t, now, *job.LastRunAt)
}

func TestJob_Key(t *testing.T) {
	now := time.Now()
	key := "scopus:123"

	assert.Equal(t, "refresh_all/-/-", NewJob(JobTypeRefreshAll, nil, nil, now).Key())
	assert.Equal(t, "source_refresh/9/-", NewEntityJob(JobTypeSourceRefresh, 9, now).Key())
	assert.Equal(t, "catalog_publication_refresh/-/scopus:123", NewJob(JobTypeCatalogPublicationRefresh, nil, &key, now).Key())
}
