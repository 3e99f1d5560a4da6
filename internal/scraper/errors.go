package scraper

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// FetchErrorKind classifies strategy-level transport and navigation failures.
type FetchErrorKind string

// Supported fetch failure classes.
const (
	FetchUnreachable FetchErrorKind = "unreachable"
	FetchTimeout     FetchErrorKind = "timeout"
	FetchElementWait FetchErrorKind = "element_wait"
)

// FetchError reports a failed fetch attempt with its classification.
type FetchError struct {
	Kind FetchErrorKind
	URL  string
	Err  error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// NewFetchError builds a classified fetch failure.
func NewFetchError(kind FetchErrorKind, url string, err error) *FetchError {
	return &FetchError{Kind: kind, URL: url, Err: err}
}

// ExtractionError reports a parser or selector failure on fetched content.
type ExtractionError struct {
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract content: %v", e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// InvalidStateError reports an operation attempted against a job that is not
// in the required lifecycle state.
type InvalidStateError struct {
	JobID  uuid.UUID
	Status JobStatus
	Want   JobStatus
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("job %s is %s, want %s", e.JobID, e.Status, e.Want)
}

// ConflictError reports a uniqueness violation on a site policy field.
type ConflictError struct {
	Field string
	Value string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("site policy with %s %q already exists", e.Field, e.Value)
}

// NotFoundError reports a missing job, policy, or result.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// IsNotFound reports whether err wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsConflict reports whether err wraps a ConflictError.
func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}

// IsInvalidState reports whether err wraps an InvalidStateError.
func IsInvalidState(err error) bool {
	var s *InvalidStateError
	return errors.As(err, &s)
}
