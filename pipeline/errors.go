package pipeline

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tinfoilsh/confidential-planner/jsonfix"
)

// PipelineError wraps errors that occur during pipeline execution
type PipelineError struct {
	Stage string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline failed at stage %q: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// ValidationError indicates a request body that could not be decoded
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on field %q: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// TransientBackendError is a backend failure worth retrying (timeout, connection failure)
type TransientBackendError struct {
	Attempt int
	Err     error
}

func (e *TransientBackendError) Error() string {
	return fmt.Sprintf("transient backend error on attempt %d: %v", e.Attempt, e.Err)
}

func (e *TransientBackendError) Unwrap() error {
	return e.Err
}

// BackendExhaustedError is returned once the retry budget is spent
type BackendExhaustedError struct {
	Attempts int
	Err      error
}

func (e *BackendExhaustedError) Error() string {
	return fmt.Sprintf("backend request failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *BackendExhaustedError) Unwrap() error {
	return e.Err
}

// MalformedOutputError means the backend output could not be turned into a JSON object
type MalformedOutputError struct {
	Reason string
	Err    error
}

func (e *MalformedOutputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed model output: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed model output: %s", e.Reason)
}

func (e *MalformedOutputError) Unwrap() error {
	return e.Err
}

// TruncatedOutputError reports a structural bracket mismatch. It matches
// *MalformedOutputError under errors.As.
type TruncatedOutputError struct {
	Counts jsonfix.Counts
}

func (e *TruncatedOutputError) Error() string {
	c := e.Counts
	return fmt.Sprintf("truncated model output: braces %d/%d, brackets %d/%d",
		c.OpenBraces, c.CloseBraces, c.OpenBrackets, c.CloseBrackets)
}

func (e *TruncatedOutputError) Unwrap() error {
	return &MalformedOutputError{Reason: "unbalanced brackets"}
}

// DownstreamPersistenceError wraps a failure to store a finished artifact.
// It is logged and never fails the task that produced the artifact.
type DownstreamPersistenceError struct {
	Target string
	Err    error
}

func (e *DownstreamPersistenceError) Error() string {
	return fmt.Sprintf("persisting result to %s failed: %v", e.Target, e.Err)
}

func (e *DownstreamPersistenceError) Unwrap() error {
	return e.Err
}

// ErrorResponse maps an error to an HTTP status code and response body
func ErrorResponse(err error) (int, map[string]any) {
	var validationErr *ValidationError
	var exhaustedErr *BackendExhaustedError
	var transientErr *TransientBackendError
	var truncatedErr *TruncatedOutputError
	var malformedErr *MalformedOutputError
	var pipelineErr *PipelineError

	stage := ""
	if errors.As(err, &pipelineErr) {
		stage = pipelineErr.Stage
		err = pipelineErr.Err
	}

	body := func(message, kind string) map[string]any {
		e := map[string]string{
			"message": message,
			"type":    kind,
		}
		if stage != "" {
			e["stage"] = stage
		}
		return map[string]any{"error": e}
	}

	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, map[string]any{
			"error": map[string]string{
				"message": validationErr.Message,
				"type":    "validation_error",
				"field":   validationErr.Field,
			},
		}

	case errors.As(err, &exhaustedErr), errors.As(err, &transientErr):
		return http.StatusServiceUnavailable, body("generation backend unavailable", "backend_unavailable")

	case errors.As(err, &truncatedErr):
		return http.StatusBadGateway, body("model output was truncated", "truncated_output")

	case errors.As(err, &malformedErr):
		return http.StatusBadGateway, body("model output could not be parsed", "malformed_output")

	default:
		return http.StatusInternalServerError, body("internal server error", "api_error")
	}
}
