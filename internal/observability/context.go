package observability

import (
	"context"
)

// Context keys for observability data.
type contextKey string

const (
	requestIDKey contextKey = "request_id"
	jobTypeKey   contextKey = "job_type"
	jobIDKey     contextKey = "job_id"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext retrieves the request ID from context.
// Returns empty string if not present.
func RequestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// WithJob adds the running job's type and ID to the context.
func WithJob(ctx context.Context, jobType string, jobID int64) context.Context {
	ctx = context.WithValue(ctx, jobTypeKey, jobType)
	ctx = context.WithValue(ctx, jobIDKey, jobID)
	return ctx
}

// JobFromContext retrieves the running job's type and ID from context.
// Returns zero values if not present.
func JobFromContext(ctx context.Context) (jobType string, jobID int64) {
	if v := ctx.Value(jobTypeKey); v != nil {
		if t, ok := v.(string); ok {
			jobType = t
		}
	}
	if v := ctx.Value(jobIDKey); v != nil {
		if id, ok := v.(int64); ok {
			jobID = id
		}
	}
	return jobType, jobID
}
