package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/catalog-sync-service/internal/database"
	"github.com/helixir/catalog-sync-service/internal/domain"
	"github.com/helixir/catalog-sync-service/internal/jobs"
	"github.com/helixir/catalog-sync-service/internal/queue"
	"github.com/helixir/catalog-sync-service/internal/repository"
	"github.com/helixir/catalog-sync-service/internal/repository/memstore"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type stubHealth struct {
	status database.HealthStatus
}

func (s stubHealth) Health(context.Context) database.HealthStatus {
	return s.status
}

var healthy = stubHealth{status: database.HealthStatus{Status: database.StatusHealthy}}

func newTestHTTPServer(db *memstore.DB, registry *jobs.Registry, health HealthChecker, metricsPath string) *Server {
	if registry == nil {
		registry = jobs.NewRegistry()
	}
	clock := func() time.Time { return testNow }
	enqueuer := queue.NewEnqueuer(queue.RetryPolicy{}, zerolog.Nop(), queue.WithClock(clock))
	runner := jobs.NewRunner(db, registry, jobs.RunnerConfig{}, nil, zerolog.Nop())
	runner.SetClock(clock)
	return NewServer(Config{MetricsPath: metricsPath}, db, runner, enqueuer, health, zerolog.Nop())
}

func doRequest(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v))
	return v
}

func seedJob(db *memstore.DB, jobType domain.JobType, entityID int64, scheduledAt *time.Time, errMsg string) int64 {
	return db.SeedJob(domain.Job{JobType: jobType, EntityID: &entityID, ScheduledAt: scheduledAt, Error: errMsg})
}

func TestHealthz(t *testing.T) {
	s := newTestHTTPServer(memstore.New(), nil, stubHealth{}, "")

	rr := doRequest(t, s, http.MethodGet, "/healthz", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestReadyz(t *testing.T) {
	tests := []struct {
		name       string
		status     database.HealthStatus
		wantCode   int
		wantStatus string
	}{
		{
			name:       "database healthy",
			status:     database.HealthStatus{Status: database.StatusHealthy, PingMillis: 0.4},
			wantCode:   http.StatusOK,
			wantStatus: "ready",
		},
		{
			name:       "database unhealthy",
			status:     database.HealthStatus{Status: database.StatusUnhealthy, Error: "connection refused"},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "not_ready",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestHTTPServer(memstore.New(), nil, stubHealth{status: tt.status}, "")

			rr := doRequest(t, s, http.MethodGet, "/readyz", nil)

			assert.Equal(t, tt.wantCode, rr.Code)
			body := decode[readinessResponse](t, rr)
			assert.Equal(t, tt.wantStatus, body.Status)
			assert.Equal(t, tt.status, body.Database)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Run("mounted at configured path", func(t *testing.T) {
		s := newTestHTTPServer(memstore.New(), nil, healthy, "/metrics")
		rr := doRequest(t, s, http.MethodGet, "/metrics", nil)
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "go_goroutines")
	})

	t.Run("absent without path", func(t *testing.T) {
		s := newTestHTTPServer(memstore.New(), nil, healthy, "")
		rr := doRequest(t, s, http.MethodGet, "/metrics", nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestScheduleJob(t *testing.T) {
	tests := []struct {
		name     string
		body     interface{}
		wantCode int
		wantErr  string
	}{
		{
			name:     "entity job",
			body:     map[string]interface{}{"job_type": "academic_refresh", "entity_id": 12},
			wantCode: http.StatusAccepted,
		},
		{
			name:     "global job",
			body:     map[string]interface{}{"job_type": "refresh_all"},
			wantCode: http.StatusAccepted,
		},
		{
			name:     "invalid json",
			body:     `{"job_type":`,
			wantCode: http.StatusBadRequest,
			wantErr:  "invalid JSON request body",
		},
		{
			name:     "missing job type",
			body:     map[string]interface{}{"entity_id": 12},
			wantCode: http.StatusBadRequest,
			wantErr:  "job_type failed required validation",
		},
		{
			name:     "unknown job type",
			body:     map[string]interface{}{"job_type": "reindex_everything"},
			wantCode: http.StatusBadRequest,
			wantErr:  "unknown job_type: reindex_everything",
		},
		{
			name:     "non-positive entity id",
			body:     map[string]interface{}{"job_type": "source_refresh", "entity_id": 0},
			wantCode: http.StatusBadRequest,
			wantErr:  "entity_id failed gt validation",
		},
		{
			name:     "bad retry unit",
			body:     map[string]interface{}{"job_type": "source_refresh", "entity_id": 3, "retry_unit": "weeks", "retry_size": 1},
			wantCode: http.StatusBadRequest,
			wantErr:  "retry_unit failed oneof validation",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := memstore.New()
			s := newTestHTTPServer(db, nil, healthy, "")

			rr := doRequest(t, s, http.MethodPost, "/api/v1/jobs", tt.body)

			require.Equal(t, tt.wantCode, rr.Code, rr.Body.String())
			if tt.wantErr != "" {
				assert.Equal(t, tt.wantErr, decode[map[string]string](t, rr)["error"])
				assert.Empty(t, db.Jobs())
				return
			}

			resp := decode[jobResponse](t, rr)
			assert.NotZero(t, resp.ID)
			assert.Equal(t, jobStatePending, resp.State)
			require.NotNil(t, resp.ScheduledAt)
			assert.True(t, testNow.Equal(*resp.ScheduledAt))
			assert.Len(t, db.Jobs(), 1)
		})
	}
}

func TestScheduleJob_WithRetryAndFutureTime(t *testing.T) {
	db := memstore.New()
	s := newTestHTTPServer(db, nil, healthy, "")
	at := testNow.Add(48 * time.Hour)

	rr := doRequest(t, s, http.MethodPost, "/api/v1/jobs", map[string]interface{}{
		"job_type":     "publication_get_missing_scopus",
		"entity_id":    5,
		"scheduled_at": at,
		"retry_unit":   "hours",
		"retry_size":   6,
	})
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())

	stored := db.Jobs()
	require.Len(t, stored, 1)
	assert.True(t, stored[0].RetryEnabled)
	assert.Equal(t, domain.RetryUnitHours, stored[0].RetryUnit)
	assert.Equal(t, 6, stored[0].RetrySize)
	require.NotNil(t, stored[0].ScheduledAt)
	assert.True(t, at.Equal(*stored[0].ScheduledAt))
}

func TestScheduleJob_RetryEnabledFlag(t *testing.T) {
	newServer := func(db *memstore.DB) *Server {
		clock := func() time.Time { return testNow }
		enqueuer := queue.NewEnqueuer(queue.RetryPolicy{Unit: domain.RetryUnitDays, Size: 1}, zerolog.Nop(), queue.WithClock(clock))
		runner := jobs.NewRunner(db, jobs.NewRegistry(), jobs.RunnerConfig{}, nil, zerolog.Nop())
		return NewServer(Config{}, db, runner, enqueuer, healthy, zerolog.Nop())
	}

	tests := []struct {
		name        string
		body        map[string]interface{}
		wantCode    int
		wantErr     string
		wantEnabled bool
		wantSize    int
	}{
		{
			name:        "omitted uses the default policy",
			body:        map[string]interface{}{"job_type": "source_refresh", "entity_id": 3},
			wantCode:    http.StatusAccepted,
			wantEnabled: true,
			wantSize:    1,
		},
		{
			name:     "false disables retries",
			body:     map[string]interface{}{"job_type": "source_refresh", "entity_id": 3, "retry_enabled": false},
			wantCode: http.StatusAccepted,
		},
		{
			name:        "true with size",
			body:        map[string]interface{}{"job_type": "source_refresh", "entity_id": 3, "retry_enabled": true, "retry_size": 4},
			wantCode:    http.StatusAccepted,
			wantEnabled: true,
			wantSize:    4,
		},
		{
			name:     "false with size",
			body:     map[string]interface{}{"job_type": "source_refresh", "entity_id": 3, "retry_enabled": false, "retry_size": 2},
			wantCode: http.StatusBadRequest,
			wantErr:  "retry_size requires retry_enabled",
		},
		{
			name:     "true without size",
			body:     map[string]interface{}{"job_type": "source_refresh", "entity_id": 3, "retry_enabled": true},
			wantCode: http.StatusBadRequest,
			wantErr:  "retry_enabled requires a positive retry_size",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := memstore.New()
			rr := doRequest(t, newServer(db), http.MethodPost, "/api/v1/jobs", tt.body)

			require.Equal(t, tt.wantCode, rr.Code, rr.Body.String())
			if tt.wantErr != "" {
				assert.Equal(t, tt.wantErr, decode[map[string]string](t, rr)["error"])
				assert.Empty(t, db.Jobs())
				return
			}

			resp := decode[jobResponse](t, rr)
			assert.Equal(t, tt.wantEnabled, resp.RetryEnabled)
			assert.Equal(t, tt.wantSize, resp.RetrySize)

			stored := db.Jobs()
			require.Len(t, stored, 1)
			assert.Equal(t, tt.wantEnabled, stored[0].RetryEnabled)
			assert.Equal(t, tt.wantSize, stored[0].RetrySize)
		})
	}
}

func TestScheduleJob_RepeatedKeyUpdatesOneRow(t *testing.T) {
	db := memstore.New()
	s := newTestHTTPServer(db, nil, healthy, "")
	body := map[string]interface{}{"job_type": "source_refresh", "entity_id": 9}

	first := decode[jobResponse](t, doRequest(t, s, http.MethodPost, "/api/v1/jobs", body))
	second := decode[jobResponse](t, doRequest(t, s, http.MethodPost, "/api/v1/jobs", body))

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, db.Jobs(), 1)
}

func TestListJobs(t *testing.T) {
	db := memstore.New()
	due := testNow
	seedJob(db, domain.JobTypeSourceRefresh, 1, &due, "")
	seedJob(db, domain.JobTypeSourceRefresh, 2, nil, "catalog timeout")
	seedJob(db, domain.JobTypeAcademicRefresh, 3, nil, "")
	s := newTestHTTPServer(db, nil, healthy, "")

	tests := []struct {
		name      string
		query     string
		wantCode  int
		wantCount int
		wantTotal int64
	}{
		{name: "default is all", query: "", wantCode: http.StatusOK, wantCount: 3, wantTotal: 3},
		{name: "pending", query: "?state=pending", wantCode: http.StatusOK, wantCount: 1, wantTotal: 1},
		{name: "failed", query: "?state=failed", wantCode: http.StatusOK, wantCount: 1, wantTotal: 1},
		{name: "by job type", query: "?job_type=academic_refresh", wantCode: http.StatusOK, wantCount: 1, wantTotal: 1},
		{name: "limit", query: "?limit=2", wantCode: http.StatusOK, wantCount: 2, wantTotal: 3},
		{name: "offset past end", query: "?offset=10", wantCode: http.StatusOK, wantCount: 0, wantTotal: 3},
		{name: "unknown state", query: "?state=stuck", wantCode: http.StatusBadRequest},
		{name: "unknown job type", query: "?job_type=nope", wantCode: http.StatusBadRequest},
		{name: "bad limit", query: "?limit=ten", wantCode: http.StatusBadRequest},
		{name: "negative offset", query: "?offset=-1", wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(t, s, http.MethodGet, "/api/v1/jobs"+tt.query, nil)

			require.Equal(t, tt.wantCode, rr.Code, rr.Body.String())
			if tt.wantCode != http.StatusOK {
				assert.NotEmpty(t, decode[map[string]string](t, rr)["error"])
				return
			}
			resp := decode[listJobsResponse](t, rr)
			assert.Len(t, resp.Jobs, tt.wantCount)
			assert.Equal(t, tt.wantTotal, resp.TotalCount)
		})
	}
}

func TestGetJob(t *testing.T) {
	db := memstore.New()
	failedID := seedJob(db, domain.JobTypeSourceRefresh, 4, nil, "catalog timeout")
	s := newTestHTTPServer(db, nil, healthy, "")

	t.Run("found", func(t *testing.T) {
		rr := doRequest(t, s, http.MethodGet, "/api/v1/jobs/"+strconv.FormatInt(failedID, 10), nil)
		require.Equal(t, http.StatusOK, rr.Code)

		resp := decode[jobResponse](t, rr)
		assert.Equal(t, failedID, resp.ID)
		assert.Equal(t, "source_refresh", resp.JobType)
		assert.Equal(t, jobStateFailed, resp.State)
		assert.Equal(t, "catalog timeout", resp.Error)
		require.NotNil(t, resp.EntityID)
		assert.Equal(t, int64(4), *resp.EntityID)
	})

	t.Run("not found", func(t *testing.T) {
		rr := doRequest(t, s, http.MethodGet, "/api/v1/jobs/99999", nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("bad id", func(t *testing.T) {
		rr := doRequest(t, s, http.MethodGet, "/api/v1/jobs/abc", nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestRunDue(t *testing.T) {
	db := memstore.New()
	due := testNow.Add(-time.Minute)
	later := testNow.Add(time.Hour)
	okID := seedJob(db, domain.JobTypeSourceRefresh, 1, &due, "")
	failID := seedJob(db, domain.JobTypeAcademicRefresh, 2, &due, "")
	seedJob(db, domain.JobTypeSourceRefresh, 3, &later, "")

	registry := jobs.NewRegistry()
	registry.Register(domain.JobTypeSourceRefresh, func(context.Context, repository.Store, *domain.Job) error {
		return nil
	})
	registry.Register(domain.JobTypeAcademicRefresh, func(context.Context, repository.Store, *domain.Job) error {
		return errors.New("catalog unavailable")
	})
	s := newTestHTTPServer(db, registry, healthy, "")

	rr := doRequest(t, s, http.MethodPost, "/api/v1/jobs/run-due", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	resp := decode[runDueResponse](t, rr)
	assert.Equal(t, jobs.RunSummary{Total: 2, Succeeded: 1, Failed: 1}, resp.RunSummary)
	assert.NotEmpty(t, resp.Duration)

	for _, j := range db.Jobs() {
		switch j.ID {
		case okID:
			assert.Equal(t, jobStateCompleted, jobState(&j))
		case failID:
			assert.Equal(t, jobStateFailed, jobState(&j))
			assert.Equal(t, "catalog unavailable", j.Error)
		default:
			assert.Equal(t, jobStatePending, jobState(&j))
		}
	}
}

// heldLock is a drain lock some other process already holds.
type heldLock struct{}

func (heldLock) TryLock(context.Context) (func(), bool, error) {
	return nil, false, nil
}

func TestRunDue_RejectsConcurrentDrain(t *testing.T) {
	s := newTestHTTPServer(memstore.New(), nil, healthy, "")
	s.runner.SetDrainLock(heldLock{})

	rr := doRequest(t, s, http.MethodPost, "/api/v1/jobs/run-due", nil)

	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestRefreshAll(t *testing.T) {
	db := memstore.New()
	s := newTestHTTPServer(db, nil, healthy, "")

	rr := doRequest(t, s, http.MethodPost, "/api/v1/jobs/refresh-all", nil)
	require.Equal(t, http.StatusAccepted, rr.Code)

	assert.Equal(t, []string{"refresh_all"}, decode[scheduledResponse](t, rr).Scheduled)
	stored := db.Jobs()
	require.Len(t, stored, 1)
	assert.Equal(t, domain.JobTypeRefreshAll, stored[0].JobType)
	assert.Nil(t, stored[0].EntityID)
}

func TestMaintenance(t *testing.T) {
	db := memstore.New()
	s := newTestHTTPServer(db, nil, healthy, "")

	rr := doRequest(t, s, http.MethodPost, "/api/v1/jobs/maintenance", nil)
	require.Equal(t, http.StatusAccepted, rr.Code)

	var types []domain.JobType
	for _, j := range db.Jobs() {
		types = append(types, j.JobType)
	}
	assert.ElementsMatch(t, []domain.JobType{
		domain.JobTypePublicationRemoveUnused,
		domain.JobTypeAutoFillFolders,
	}, types)
}

func TestWriteDomainError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"not found", &domain.NotFoundError{Entity: "job", ID: "1"}, http.StatusNotFound},
		{"validation", domain.NewValidationError("state", "bad"), http.StatusBadRequest},
		{"unknown job type", domain.ErrUnknownJobType, http.StatusBadRequest},
		{"already exists", domain.ErrAlreadyExists, http.StatusConflict},
		{"unavailable", domain.ErrServiceUnavailable, http.StatusServiceUnavailable},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			writeDomainError(rr, tt.err)
			assert.Equal(t, tt.wantCode, rr.Code)
		})
	}
}
