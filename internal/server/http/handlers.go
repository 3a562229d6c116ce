package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/helixir/catalog-sync-service/internal/domain"
	"github.com/helixir/catalog-sync-service/internal/jobs"
	"github.com/helixir/catalog-sync-service/internal/repository"
)

const maxRequestBodySize = 1 << 20 // 1 MB limit for request bodies

// scheduleJobRequest is the JSON request body for scheduling a single job.
type scheduleJobRequest struct {
	JobType        string     `json:"job_type" validate:"required"`
	EntityID       *int64     `json:"entity_id,omitempty" validate:"omitempty,gt=0"`
	EntityIDString *string    `json:"entity_id_string,omitempty" validate:"omitempty,min=1,max=255"`
	ScheduledAt    *time.Time `json:"scheduled_at,omitempty"`
	RetryEnabled   *bool      `json:"retry_enabled,omitempty"`
	RetryUnit      string     `json:"retry_unit,omitempty" validate:"omitempty,oneof=hours days"`
	RetrySize      int        `json:"retry_size,omitempty" validate:"gte=0"`
}

// scheduleJob handles POST /api/v1/jobs.
func (s *Server) scheduleJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var req scheduleJobRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	jobType := domain.JobType(strings.TrimSpace(req.JobType))
	if !jobType.IsValid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown job_type: %s", req.JobType))
		return
	}

	job := domain.NewJob(jobType, req.EntityID, req.EntityIDString, s.enqueuer.Now())
	if req.ScheduledAt != nil {
		at := req.ScheduledAt.UTC()
		job.ScheduledAt = &at
	}
	switch {
	case req.RetryEnabled != nil && !*req.RetryEnabled:
		if req.RetrySize > 0 {
			writeError(w, http.StatusBadRequest, "retry_size requires retry_enabled")
			return
		}
		job.WithoutRetry()
	case req.RetryEnabled != nil && req.RetrySize == 0:
		writeError(w, http.StatusBadRequest, "retry_enabled requires a positive retry_size")
		return
	case req.RetryEnabled != nil || req.RetryUnit != "" || req.RetrySize > 0:
		unit := domain.RetryUnit(req.RetryUnit)
		if unit == "" {
			unit = domain.RetryUnitDays
		}
		job.WithRetry(unit, req.RetrySize)
	}

	if err := jobs.ScheduleJob(ctx, s.factory, s.enqueuer, job); err != nil {
		s.logger.Error().Err(err).Str("job_key", job.Key()).Msg("failed to schedule job")
		writeDomainError(w, err)
		return
	}

	s.logger.Info().
		Int64("job_id", job.ID).
		Str("job_key", job.Key()).
		Msg("job scheduled via API")
	writeJSON(w, http.StatusAccepted, domainJobToResponse(job))
}

// listJobs handles GET /api/v1/jobs.
func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	filter := repository.JobFilter{
		State: repository.JobState(query.Get("state")),
	}
	if v := query.Get("job_type"); v != "" {
		jobType := domain.JobType(v)
		filter.JobType = &jobType
	}
	var ok bool
	if filter.Limit, ok = parseIntParam(w, query.Get("limit"), "limit"); !ok {
		return
	}
	if filter.Offset, ok = parseIntParam(w, query.Get("offset"), "offset"); !ok {
		return
	}
	if err := filter.Validate(); err != nil {
		writeDomainError(w, err)
		return
	}

	store, err := s.factory.Begin(ctx)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	defer store.Close(ctx)

	list, total, err := store.Jobs().List(ctx, filter)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list jobs")
		writeDomainError(w, err)
		return
	}

	resp := listJobsResponse{
		Jobs:       make([]jobResponse, 0, len(list)),
		TotalCount: total,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}
	for _, j := range list {
		resp.Jobs = append(resp.Jobs, domainJobToResponse(j))
	}
	writeJSON(w, http.StatusOK, resp)
}

// getJob handles GET /api/v1/jobs/{jobID}.
func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := strconv.ParseInt(chi.URLParam(r, "jobID"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "job_id must be a positive integer")
		return
	}

	store, err := s.factory.Begin(ctx)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	defer store.Close(ctx)

	job, err := store.Jobs().Get(ctx, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domainJobToResponse(job))
}

// runDue handles POST /api/v1/jobs/run-due. It drains synchronously.
func (s *Server) runDue(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	summary, err := s.runner.RunDue(r.Context())
	if errors.Is(err, jobs.ErrDrainInProgress) {
		writeError(w, http.StatusConflict, "a drain is already running")
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("drain failed")
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runDueResponse{
		RunSummary: summary,
		Duration:   time.Since(start).String(),
	})
}

// refreshAll handles POST /api/v1/jobs/refresh-all.
func (s *Server) refreshAll(w http.ResponseWriter, r *http.Request) {
	if err := jobs.ScheduleRefreshAll(r.Context(), s.factory, s.enqueuer); err != nil {
		s.logger.Error().Err(err).Msg("failed to schedule refresh all")
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, scheduledResponse{
		Scheduled: []string{domain.JobTypeRefreshAll.String()},
	})
}

// maintenance handles POST /api/v1/jobs/maintenance.
func (s *Server) maintenance(w http.ResponseWriter, r *http.Request) {
	if err := jobs.ScheduleMaintenance(r.Context(), s.factory, s.enqueuer); err != nil {
		s.logger.Error().Err(err).Msg("failed to schedule maintenance")
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, scheduledResponse{
		Scheduled: []string{
			domain.JobTypePublicationRemoveUnused.String(),
			domain.JobTypeAutoFillFolders.String(),
		},
	})
}

// writeDomainError maps domain errors to appropriate HTTP status codes
// and writes a JSON error response. Internal error details are not leaked to clients.
func writeDomainError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, domain.ErrUnknownJobType):
		writeError(w, http.StatusBadRequest, "unknown job type")
	case errors.Is(err, domain.ErrInvalidInput):
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Error())
		} else {
			writeError(w, http.StatusBadRequest, "invalid input")
		}
	case errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "resource already exists")
	case errors.Is(err, domain.ErrServiceUnavailable):
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// validationMessage renders the first failed field of a validator error.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
	return "invalid request"
}

// parseIntParam parses an optional non-negative integer query parameter,
// writing a 400 error response if invalid.
func parseIntParam(w http.ResponseWriter, s, name string) (int, bool) {
	if s == "" {
		return 0, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%s must be a non-negative integer", name))
		return 0, false
	}
	return n, true
}
