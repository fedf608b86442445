package engine

import (
	"errors"
	"fmt"
)

// EvaluationErrorCode categorizes fatal evaluation errors.
type EvaluationErrorCode string

const (
	// ErrCodeProviderError indicates a compute phase returned an unexpected error.
	ErrCodeProviderError EvaluationErrorCode = "PROVIDER_ERROR"

	// ErrCodeProviderPanic indicates a compute phase panicked.
	ErrCodeProviderPanic EvaluationErrorCode = "PROVIDER_PANIC"

	// ErrCodeMissingValue indicates the caller did not supply a Reference the
	// plan reads.
	ErrCodeMissingValue EvaluationErrorCode = "MISSING_VALUE"

	// ErrCodeInvalidInput indicates supplied values do not match the
	// Reference's nesting depth.
	ErrCodeInvalidInput EvaluationErrorCode = "INVALID_INPUT"
)

// ErrMissingValue is matched by errors.Is for missing Reference values.
var ErrMissingValue = errors.New("missing dependency value")

// EvaluationError aborts a pass. It carries the failing provider's
// identity for server-side diagnostics.
type EvaluationError struct {
	Code       EvaluationErrorCode
	ProviderID string

	// Indices is the index tuple being computed, nil when the error is not
	// tied to one computation.
	Indices []int

	// Reference is set for missing and invalid input errors.
	Reference string

	Err error
}

// Error implements the error interface.
func (e *EvaluationError) Error() string {
	msg := fmt.Sprintf("%s: provider %q", e.Code, e.ProviderID)
	if e.Indices != nil {
		msg += fmt.Sprintf(" at %v", e.Indices)
	}
	if e.Reference != "" {
		msg += fmt.Sprintf(" (reference %q)", e.Reference)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *EvaluationError) Unwrap() error {
	return e.Err
}

// Is matches ErrMissingValue for missing value errors.
func (e *EvaluationError) Is(target error) bool {
	return target == ErrMissingValue && e.Code == ErrCodeMissingValue
}

// IsEvaluationError reports whether err aborted a pass.
// Uses errors.As to handle wrapped errors.
func IsEvaluationError(err error) bool {
	var ee *EvaluationError
	return errors.As(err, &ee)
}

// FailedProvider returns the provider identity carried by a fatal error,
// or "" when err is not an EvaluationError.
func FailedProvider(err error) string {
	var ee *EvaluationError
	if errors.As(err, &ee) {
		return ee.ProviderID
	}
	return ""
}
