package provider

import (
	"errors"
	"fmt"
)

// Failure is a declared computation failure: the provider cannot compute
// now. The engine skips the provider and everything downstream of it for
// the current pass.
type Failure struct {
	Reason string
}

// Error implements the error interface.
func (f *Failure) Error() string {
	if f.Reason == "" {
		return "cannot compute"
	}
	return "cannot compute: " + f.Reason
}

// Fail returns a declared computation failure.
func Fail(format string, args ...any) error {
	return &Failure{Reason: fmt.Sprintf(format, args...)}
}

// IsFailure reports whether err is (or wraps) a declared computation failure.
func IsFailure(err error) bool {
	var f *Failure
	return errors.As(err, &f)
}
