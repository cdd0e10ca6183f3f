package research

import (
	"errors"
	"fmt"
)

// ProviderError is a transport or auth failure of a single model call.
type ProviderError struct {
	Role  Role
	Model string
	Err   error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider call for %s (%s) failed: %v", e.Role, e.Model, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// MalformedResponseError means a model answer could not be parsed into the shape
// the calling stage expects.
type MalformedResponseError struct {
	Role   Role
	Reason string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed %s response: %s: %v", e.Role, e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed %s response: %s", e.Role, e.Reason)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// SearchUnavailableError is returned when the search backend could not be reached
// within the retry budget.
type SearchUnavailableError struct {
	Query string
	Err   error
}

func (e *SearchUnavailableError) Error() string {
	return fmt.Sprintf("search unavailable for %q: %v", e.Query, e.Err)
}

func (e *SearchUnavailableError) Unwrap() error { return e.Err }

// RetryExhaustedError carries the error of every attempt, oldest first.
type RetryExhaustedError struct {
	Operation string
	Errors    []error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Operation, len(e.Errors), e.Last())
}

// Last returns the error of the final attempt.
func (e *RetryExhaustedError) Last() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e.Errors[len(e.Errors)-1]
}

func (e *RetryExhaustedError) Unwrap() error { return e.Last() }

// PipelineFailedError is the single fatal error surfaced to callers of Engine.Run.
type PipelineFailedError struct {
	Stage State
	Err   error
}

func (e *PipelineFailedError) Error() string {
	return fmt.Sprintf("research pipeline failed during %s: %v", e.Stage, e.Err)
}

func (e *PipelineFailedError) Unwrap() error { return e.Err }

// IsPipelineFailure reports whether err is (or wraps) a PipelineFailedError.
func IsPipelineFailure(err error) bool {
	var pf *PipelineFailedError
	return errors.As(err, &pf)
}
