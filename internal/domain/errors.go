package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound: the entity, job or catalog record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists: a row with the same natural key is already stored.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput: caller-supplied data failed validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrRateLimited: a catalog kept answering 429 after retries.
	ErrRateLimited = errors.New("rate limited")

	// ErrServiceUnavailable: a catalog or the database cannot serve requests.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrNoIdentifier: a catalog record carries no usable identifier.
	ErrNoIdentifier = errors.New("no identifier")

	// ErrUnknownJobType: no handler is registered for a job type.
	ErrUnknownJobType = errors.New("unknown job type")
)

// ValidationError names the offending field. It matches ErrInvalidInput.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NotFoundError identifies the missing row or record. It matches ErrNotFound.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// AlreadyExistsError identifies a duplicate row. It matches ErrAlreadyExists.
type AlreadyExistsError struct {
	Entity string
	ID     string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s already exists: %s", e.Entity, e.ID)
}

func (e *AlreadyExistsError) Unwrap() error {
	return ErrAlreadyExists
}

// RateLimitError is returned once a catalog's 429 retries are exhausted.
// RetryAfter is the last delay the catalog asked for.
type RateLimitError struct {
	Catalog    string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited by %s: retry after %s", e.Catalog, e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// CatalogAPIError is a non-success catalog response other than 404 and 429.
type CatalogAPIError struct {
	Catalog    string
	StatusCode int
	Message    string
	Cause      error
}

func (e *CatalogAPIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Catalog, e.StatusCode, e.Message)
}

// Unwrap returns Cause, or ErrServiceUnavailable when there is none.
func (e *CatalogAPIError) Unwrap() error {
	if e.Cause == nil {
		return ErrServiceUnavailable
	}
	return e.Cause
}

// Transient reports whether retrying the same request later may succeed.
func (e *CatalogAPIError) Transient() bool {
	return e.StatusCode == 0 || e.StatusCode >= 500
}

// NewNotFoundError creates a NotFoundError.
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

// NewAlreadyExistsError creates an AlreadyExistsError.
func NewAlreadyExistsError(entity, id string) *AlreadyExistsError {
	return &AlreadyExistsError{Entity: entity, ID: id}
}

// NewValidationError creates a ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// NewRateLimitError creates a RateLimitError.
func NewRateLimitError(catalog string, retryAfter time.Duration) *RateLimitError {
	return &RateLimitError{Catalog: catalog, RetryAfter: retryAfter}
}

// NewCatalogAPIError creates a CatalogAPIError.
func NewCatalogAPIError(catalog string, statusCode int, message string, cause error) *CatalogAPIError {
	return &CatalogAPIError{
		Catalog:    catalog,
		StatusCode: statusCode,
		Message:    message,
		Cause:      cause,
	}
}
